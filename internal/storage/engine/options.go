package engine

import "github.com/kilerdb/kiler/internal/logging"

// Options configures an opened database.
type Options struct {
	// CacheSize is the committed-page cache budget in bytes.
	// Zero disables caching.
	CacheSize int64

	// ReadOnly rejects Begin and all write operations.
	ReadOnly bool

	// NoSync disables fsync on commit. Not crash-safe.
	NoSync bool

	// Logger for engine events. Nil disables logging.
	Logger logging.Logger
}

// DefaultOptions returns the standard configuration: 32 MiB cache,
// read-write, synchronous commits, no logging.
func DefaultOptions() Options {
	return Options{
		CacheSize: 32 << 20,
		Logger:    logging.NewNop(),
	}
}
