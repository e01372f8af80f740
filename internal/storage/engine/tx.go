package engine

import (
	"fmt"

	"github.com/kilerdb/kiler/internal/storage"
	"github.com/kilerdb/kiler/internal/storage/btree"
)

// Txn is a write transaction. It sees its own uncommitted writes on
// top of the snapshot it started from. All methods must be called from
// a single goroutine; a finished transaction rejects further use with
// ErrTxnDone.
type Txn struct {
	db    *DB
	batch *storage.WriteBatch
	tree  *btree.Tree
	done  bool
}

// Get returns the value for key, including writes staged by this
// transaction.
func (tx *Txn) Get(key []byte) ([]byte, bool, error) {
	if tx.done {
		return nil, false, ErrTxnDone
	}
	return tx.tree.Get(key)
}

// Set inserts key or replaces its value.
func (tx *Txn) Set(key, val []byte) error {
	if tx.done {
		return ErrTxnDone
	}
	_, _, err := tx.tree.Put(key, val, btree.Upsert)
	return err
}

// Add inserts key only if it does not exist and reports whether it was
// inserted.
func (tx *Txn) Add(key, val []byte) (bool, error) {
	if tx.done {
		return false, ErrTxnDone
	}
	added, _, err := tx.tree.Put(key, val, btree.InsertOnly)
	return added, err
}

// Update replaces the value only if key exists and reports whether it
// did.
func (tx *Txn) Update(key, val []byte) (bool, error) {
	if tx.done {
		return false, ErrTxnDone
	}
	_, updated, err := tx.tree.Put(key, val, btree.UpdateOnly)
	return updated, err
}

// Delete removes key and reports whether it was present. Removing an
// absent key is a successful no-op.
func (tx *Txn) Delete(key []byte) (bool, error) {
	if tx.done {
		return false, ErrTxnDone
	}
	return tx.tree.Delete(key)
}

// Scan returns a forward scanner over [start, end) that includes the
// transaction's own staged writes. A nil end scans to the last key.
func (tx *Txn) Scan(start, end []byte) (*Scanner, error) {
	if tx.done {
		return nil, ErrTxnDone
	}
	return newScanner(tx.tree, start, end), nil
}

// Commit makes the transaction durable. On error nothing is published
// and the database keeps its previous committed state.
func (tx *Txn) Commit() error {
	if tx.done {
		return ErrTxnDone
	}
	tx.done = true
	defer tx.db.writer.Unlock()

	if !tx.batch.Dirty() {
		return nil
	}

	master, err := tx.flushStaged()
	if err != nil {
		return err
	}
	return tx.publish(master)
}

// flushStaged rebuilds the free list and writes the staged pages to
// the file without publishing them. The returned master page names the
// flushed state.
func (tx *Txn) flushStaged() (storage.MasterPage, error) {
	freeHead, err := tx.batch.CommitFreeList()
	if err != nil {
		return storage.MasterPage{}, fmt.Errorf("%w: free list: %w", ErrCommitFailed, err)
	}
	if err := tx.db.store.FlushBatch(tx.batch); err != nil {
		return storage.MasterPage{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	return storage.MasterPage{
		Version:  storage.FormatVersion,
		Root:     tx.tree.Root(),
		Used:     tx.batch.Used(),
		FreeHead: freeHead,
	}, nil
}

// publish writes the master page and moves the committed state
// forward.
func (tx *Txn) publish(master storage.MasterPage) error {
	if err := tx.db.store.PublishMaster(master, tx.batch); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	tx.db.meta.Lock()
	tx.db.root = master.Root
	tx.db.freeHead = master.FreeHead
	tx.db.meta.Unlock()
	return nil
}

// Abort discards the transaction. Nothing it staged reaches the file's
// committed state.
func (tx *Txn) Abort() {
	if tx.done {
		return
	}
	tx.done = true
	tx.db.writer.Unlock()
}

// txnPager routes the tree's page traffic through the write batch.
type txnPager struct {
	batch *storage.WriteBatch
}

func (p txnPager) PageGet(id storage.PageID) (btree.Node, error) {
	page, err := p.batch.PageGet(id)
	if err != nil {
		return nil, err
	}
	return btree.Node(page), nil
}

func (p txnPager) PageNew(node btree.Node) (storage.PageID, error) {
	return p.batch.PageNew(node)
}

func (p txnPager) PageDel(id storage.PageID) {
	p.batch.PageDel(id)
}
