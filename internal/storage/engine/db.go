package engine

import (
	"errors"
	"sync"

	"github.com/kilerdb/kiler/internal/logging"
	"github.com/kilerdb/kiler/internal/storage"
	"github.com/kilerdb/kiler/internal/storage/btree"
)

// Engine errors.
var (
	ErrClosed       = errors.New("engine: database is closed")
	ErrTxnDone      = errors.New("engine: transaction already committed or aborted")
	ErrCommitFailed = errors.New("engine: commit failed")
)

// DB is an open database handle, safe for concurrent use.
type DB struct {
	store  *storage.PageStore
	logger logging.Logger

	readOnly bool

	// writer serializes write transactions from Begin to Commit or
	// Abort.
	writer sync.Mutex

	// meta guards the committed root and free-list head that new
	// readers and transactions start from.
	meta     sync.RWMutex
	root     storage.PageID
	freeHead storage.PageID
	closed   bool
}

// Open opens or creates the database file at path.
func Open(path string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	store, err := storage.Open(path, storage.Options{
		CacheSize: opts.CacheSize,
		ReadOnly:  opts.ReadOnly,
		NoSync:    opts.NoSync,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	master := store.Master()
	return &DB{
		store:    store,
		logger:   opts.Logger,
		readOnly: opts.ReadOnly,
		root:     master.Root,
		freeHead: master.FreeHead,
	}, nil
}

// Close releases the database. It waits for an in-flight write
// transaction to finish.
func (db *DB) Close() error {
	db.writer.Lock()
	defer db.writer.Unlock()

	db.meta.Lock()
	if db.closed {
		db.meta.Unlock()
		return nil
	}
	db.closed = true
	db.meta.Unlock()

	return db.store.Close()
}

// snapshot returns the committed root for a new reader.
func (db *DB) snapshot() (storage.PageID, error) {
	db.meta.RLock()
	defer db.meta.RUnlock()
	if db.closed {
		return 0, ErrClosed
	}
	return db.root, nil
}

// Get returns the value for key from the last committed state. The
// returned slice must not be modified.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	root, err := db.snapshot()
	if err != nil {
		return nil, false, err
	}
	tree := btree.New(readPager{db.store}, root)
	return tree.Get(key)
}

// Scan returns a forward scanner over the last committed state for
// keys in [start, end). A nil end scans to the last key.
func (db *DB) Scan(start, end []byte) (*Scanner, error) {
	root, err := db.snapshot()
	if err != nil {
		return nil, err
	}
	tree := btree.New(readPager{db.store}, root)
	return newScanner(tree, start, end), nil
}

// Begin starts a write transaction. It blocks while another write
// transaction is open.
func (db *DB) Begin() (*Txn, error) {
	if db.readOnly {
		return nil, storage.ErrReadOnly
	}
	db.writer.Lock()

	db.meta.RLock()
	closed, root, freeHead := db.closed, db.root, db.freeHead
	db.meta.RUnlock()
	if closed {
		db.writer.Unlock()
		return nil, ErrClosed
	}

	batch, err := storage.NewBatch(db.store, freeHead)
	if err != nil {
		db.writer.Unlock()
		return nil, err
	}
	return &Txn{
		db:    db,
		batch: batch,
		tree:  btree.New(txnPager{batch}, root),
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.store.Path()
}

// Stats describes the committed state of the database.
type Stats struct {
	PagesUsed  uint64 // committed pages, master page included
	PagesFree  uint64 // recyclable pages on the free list
	FilePages  uint64 // file size in pages, including speculative growth
	TreeHeight int    // 0 for an empty tree
}

// Stats reports page accounting and tree height.
func (db *DB) Stats() (Stats, error) {
	root, err := db.snapshot()
	if err != nil {
		return Stats{}, err
	}
	free, err := db.store.FreeCount()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		PagesUsed: db.store.Flushed(),
		PagesFree: free,
		FilePages: db.store.FilePages(),
	}
	for id := root; id != 0; {
		node, err := readPager{db.store}.PageGet(id)
		if err != nil {
			return Stats{}, err
		}
		st.TreeHeight++
		if node.Type() == storage.PageInternal {
			id = node.GetPtr(0)
		} else {
			id = 0
		}
	}
	return st, nil
}

// readPager adapts the page store to the tree's page manager for
// read-only snapshots.
type readPager struct {
	store *storage.PageStore
}

func (r readPager) PageGet(id storage.PageID) (btree.Node, error) {
	page, err := r.store.ReadPage(id)
	if err != nil {
		return nil, err
	}
	return btree.Node(page), nil
}

func (r readPager) PageNew(btree.Node) (storage.PageID, error) {
	return 0, storage.ErrReadOnly
}

func (r readPager) PageDel(storage.PageID) {}
