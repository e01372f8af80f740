package storage

import "github.com/kilerdb/kiler/internal/logging"

// Options configures a PageStore.
type Options struct {
	// CacheSize is the maximum memory, in bytes, spent on the
	// committed page cache. Zero disables the cache.
	CacheSize int64

	// ReadOnly opens the file for reading only. Write batches and
	// commits fail with ErrReadOnly.
	ReadOnly bool

	// NoSync skips fsync on flush and publish. Dramatically faster,
	// but a power loss can lose or corrupt recent commits. Useful
	// for tests and bulk loads only.
	NoSync bool

	// Logger receives store-level events. Nil means no logging.
	Logger logging.Logger
}

// DefaultOptions returns the options used when none are given:
// a 32 MiB page cache, read-write, fsync on every commit.
func DefaultOptions() Options {
	return Options{
		CacheSize: 32 << 20,
		Logger:    logging.NewNop(),
	}
}
