package storage

import (
	"fmt"
	"sort"
)

// WriteBatch stages the page allocations of one write transaction.
// New page images go to recycled free-list entries first and to the
// end of the file when the list runs dry. Nothing touches committed
// pages: the batch only becomes real through FlushBatch followed by
// PublishMaster.
//
// Pages freed by the batch are not reused within it. A page popped
// from the free list was freed by an earlier commit, so its old
// content is unreachable from the committed root and overwriting it
// cannot hurt a crashed-and-recovered reader.
type WriteBatch struct {
	store *PageStore
	free  FreeList

	updates map[PageID][]byte // staged page images, nil marks a freed page
	flushed uint64            // committed pages at batch start
	nappend uint64            // pages appended past flushed
	nfree   uint64            // committed free-list entries consumed
	total   uint64            // committed free-list total at batch start
}

// NewBatch starts a write batch on top of the committed state named by
// freeHead.
func NewBatch(store *PageStore, freeHead PageID) (*WriteBatch, error) {
	b := &WriteBatch{
		store:   store,
		updates: make(map[PageID][]byte),
		flushed: store.Flushed(),
	}
	b.free = FreeList{batch: b, head: freeHead}
	total, err := b.free.Total()
	if err != nil {
		return nil, err
	}
	b.total = total
	return b, nil
}

// pageRead returns the page image for id, preferring pages staged by
// this batch over committed ones.
func (b *WriteBatch) pageRead(id PageID) ([]byte, error) {
	if page, ok := b.updates[id]; ok {
		if page == nil {
			return nil, fmt.Errorf("%w: page %d freed by this batch", ErrPageOutOfRange, id)
		}
		return page, nil
	}
	return b.store.ReadPage(id)
}

// PageGet returns the page image for id.
func (b *WriteBatch) PageGet(id PageID) ([]byte, error) {
	return b.pageRead(id)
}

// PageNew stages a new page image and returns its id.
func (b *WriteBatch) PageNew(page []byte) (PageID, error) {
	if len(page) != PageSize {
		return 0, fmt.Errorf("%w: staged page has size %d", ErrCorrupted, len(page))
	}
	if b.nfree < b.total {
		id, err := b.free.Get(b.nfree)
		if err != nil {
			return 0, err
		}
		b.nfree++
		b.pageReuse(id, page)
		return id, nil
	}
	return b.pageAppend(page)
}

// PageDel marks a page as freed. It joins the free list at commit.
func (b *WriteBatch) PageDel(id PageID) {
	b.updates[id] = nil
}

// pageAppend stages a page past the end of the committed file.
func (b *WriteBatch) pageAppend(page []byte) (PageID, error) {
	id := PageID(b.flushed + b.nappend)
	b.nappend++
	b.updates[id] = page
	return id, nil
}

// pageReuse stages a page at a recycled id.
func (b *WriteBatch) pageReuse(id PageID, page []byte) {
	b.updates[id] = page
}

// CommitFreeList folds the batch's freed pages and consumed entries
// into a rebuilt free list and returns its new head. Must be called
// exactly once, after all tree updates and before FlushBatch.
func (b *WriteBatch) CommitFreeList() (PageID, error) {
	freed := make([]PageID, 0, len(b.updates))
	for id, page := range b.updates {
		if page == nil {
			freed = append(freed, id)
		}
	}
	// Map iteration order is random; keep the on-disk list stable.
	sort.Slice(freed, func(i, j int) bool { return freed[i] < freed[j] })

	if err := b.free.Update(b.nfree, freed); err != nil {
		return 0, err
	}
	return b.free.head, nil
}

// Dirty reports whether the batch staged pages or consumed free-list
// entries.
func (b *WriteBatch) Dirty() bool {
	return len(b.updates) > 0 || b.nfree > 0
}

// Used returns the page count of the file after this batch commits.
func (b *WriteBatch) Used() uint64 {
	return b.flushed + b.nappend
}
