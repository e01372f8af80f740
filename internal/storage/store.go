package storage

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kilerdb/kiler/internal/logging"
)

// PageStore owns the database file. It serves committed pages to any
// number of concurrent readers and persists write batches with the
// two-phase flush-then-publish commit protocol.
type PageStore struct {
	path   string
	file   *os.File
	logger logging.Logger

	readOnly bool
	noSync   bool

	cache *ristretto.Cache[uint64, []byte]

	mu        sync.RWMutex
	master    MasterPage
	flushed   uint64 // committed pages, including the master page
	filePages uint64 // current file size in pages
	closed    bool
}

// Open opens or creates the database file at path. A zero-length file
// is a fresh database; anything else must start with a valid master
// page or Open fails with ErrInvalidMaster.
func Open(path string, opts Options) (*PageStore, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	flags := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	filePages := uint64(st.Size()) / PageSize

	s := &PageStore{
		path:      path,
		file:      file,
		logger:    opts.Logger,
		readOnly:  opts.ReadOnly,
		noSync:    opts.NoSync,
		filePages: filePages,
	}

	if st.Size() == 0 {
		// Fresh database. The master page is written on the first
		// commit; until then the file stays empty.
		s.master = MasterPage{Version: FormatVersion, Used: 1}
		s.flushed = 1
	} else {
		buf := make([]byte, PageSize)
		if _, err := file.ReadAt(buf, 0); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			file.Close()
			return nil, fmt.Errorf("storage: read master page: %w", err)
		}
		master, err := ParseMaster(buf, filePages)
		if err != nil {
			file.Close()
			return nil, err
		}
		s.master = *master
		s.flushed = master.Used
	}

	if opts.CacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
			NumCounters: opts.CacheSize / PageSize * 10,
			MaxCost:     opts.CacheSize,
			BufferItems: 64,
		})
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("storage: page cache: %w", err)
		}
		s.cache = cache
	}

	s.logger.Info("store opened",
		"path", path,
		"pages", s.flushed,
		"root", s.master.Root,
		"read_only", s.readOnly)
	return s, nil
}

// Master returns the committed master page.
func (s *PageStore) Master() MasterPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master
}

// Flushed returns the number of committed pages, master page included.
func (s *PageStore) Flushed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushed
}

// Path returns the database file path.
func (s *PageStore) Path() string {
	return s.path
}

// FilePages returns the current size of the file in pages, which can
// exceed the committed page count after speculative growth.
func (s *PageStore) FilePages() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filePages
}

// ReadPage returns the committed page image for id. The returned slice
// may be shared with the cache and must not be modified.
func (s *PageStore) ReadPage(id PageID) ([]byte, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	flushed := s.flushed
	s.mu.RUnlock()

	if id == 0 || uint64(id) >= flushed {
		return nil, fmt.Errorf("%w: page %d, committed %d", ErrPageOutOfRange, id, flushed)
	}

	if s.cache != nil {
		if page, ok := s.cache.Get(uint64(id)); ok {
			return page, nil
		}
	}

	page := make([]byte, PageSize)
	if _, err := s.file.ReadAt(page, int64(id)*PageSize); err != nil {
		return nil, fmt.Errorf("storage: read page %d: %w", id, err)
	}
	if err := ValidatePage(id, page); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(uint64(id), page, PageSize)
	}
	return page, nil
}

// growLocked extends the file to hold at least npages pages, growing
// exponentially so that repeated appends amortize to O(1) truncates.
func (s *PageStore) growLocked(npages uint64) error {
	if s.filePages >= npages {
		return nil
	}
	target := s.filePages
	if target == 0 {
		target = 1
	}
	for target < npages {
		inc := target / 8
		if inc < 1 {
			inc = 1
		}
		target += inc
	}
	if err := s.file.Truncate(int64(target) * PageSize); err != nil {
		return fmt.Errorf("storage: grow file to %d pages: %w", target, err)
	}
	s.logger.Debug("file grown", "from_pages", s.filePages, "to_pages", target)
	s.filePages = target
	return nil
}

// FlushBatch writes the batch's staged pages to the file and syncs.
// The committed state is untouched: readers keep seeing the old pages
// until PublishMaster succeeds.
func (s *PageStore) FlushBatch(b *WriteBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}

	if err := s.growLocked(b.flushed + b.nappend); err != nil {
		return err
	}
	for id, page := range b.updates {
		if page == nil {
			continue
		}
		if _, err := s.file.WriteAt(page, int64(id)*PageSize); err != nil {
			return fmt.Errorf("storage: write page %d: %w", id, err)
		}
	}
	if !s.noSync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("storage: sync pages: %w", err)
		}
	}
	return nil
}

// PublishMaster atomically commits a flushed batch by rewriting the
// master page, then syncing. On success the new state is durable and
// visible; on failure the previous commit remains intact.
func (s *PageStore) PublishMaster(master MasterPage, b *WriteBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}

	buf := master.Serialize()
	// The serialized master fits in the first sector, so this write
	// cannot tear on sector-atomic drives.
	if _, err := s.file.WriteAt(buf[:MasterSize], 0); err != nil {
		return fmt.Errorf("storage: write master page: %w", err)
	}
	if !s.noSync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("storage: sync master page: %w", err)
		}
	}

	s.master = master
	s.flushed = master.Used

	if s.cache != nil {
		for id, page := range b.updates {
			if page == nil {
				s.cache.Del(uint64(id))
			} else {
				s.cache.Set(uint64(id), page, PageSize)
			}
		}
	}

	s.logger.Debug("commit published",
		"root", master.Root,
		"used", master.Used,
		"free_head", master.FreeHead)
	return nil
}

// Sync flushes the file to stable storage.
func (s *PageStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync: %w", err)
	}
	return nil
}

// Close releases the file and the page cache. Uncommitted batches are
// discarded, which is safe: nothing they staged is reachable from the
// master page.
func (s *PageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cache != nil {
		s.cache.Close()
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	s.logger.Info("store closed", "path", s.path)
	return nil
}

// FreeCount returns the number of recyclable pages on the committed
// free list.
func (s *PageStore) FreeCount() (uint64, error) {
	head := s.Master().FreeHead
	if head == 0 {
		return 0, nil
	}
	page, err := s.ReadPage(head)
	if err != nil {
		return 0, err
	}
	return flNode(page).total(), nil
}
