// Package kiler is the public face of the KilerDB embedded key/value
// store. It re-exports the engine API so external programs can open a
// database without reaching into internal packages:
//
//	db, err := kiler.Open("data.kiler", kiler.DefaultOptions())
//	if err != nil { ... }
//	defer db.Close()
//
//	tx, err := db.Begin()
//	if err != nil { ... }
//	if err := tx.Set([]byte("key"), []byte("value")); err != nil { ... }
//	if err := tx.Commit(); err != nil { ... }
//
// The store keeps everything in a single file, commits atomically, and
// serves any number of concurrent readers alongside one writer.
package kiler

import (
	"github.com/kilerdb/kiler/internal/logging"
	"github.com/kilerdb/kiler/internal/storage"
	"github.com/kilerdb/kiler/internal/storage/btree"
	"github.com/kilerdb/kiler/internal/storage/engine"
)

// Key and value size limits enforced by write operations.
const (
	MaxKeySize   = storage.MaxKeySize
	MaxValueSize = storage.MaxValueSize
)

// DB is an open database handle, safe for concurrent use.
type DB = engine.DB

// Txn is a write transaction.
type Txn = engine.Txn

// Scanner iterates a key range in ascending order.
type Scanner = engine.Scanner

// Options configures an opened database.
type Options = engine.Options

// Stats describes the committed state of the database.
type Stats = engine.Stats

// Logger receives engine events when set on Options.
type Logger = logging.Logger

// Errors surfaced by the public API.
var (
	ErrClosed       = engine.ErrClosed
	ErrTxnDone      = engine.ErrTxnDone
	ErrCommitFailed = engine.ErrCommitFailed
	ErrCorrupted    = storage.ErrCorrupted
	ErrReadOnly     = storage.ErrReadOnly
	ErrKeyTooLarge  = btree.ErrKeyTooLarge
	ErrValTooLarge  = btree.ErrValTooLarge
	ErrEmptyKey     = btree.ErrEmptyKey
)

// Open opens or creates the database file at path.
func Open(path string, opts Options) (*DB, error) {
	return engine.Open(path, opts)
}

// DefaultOptions returns the standard configuration: 32 MiB cache,
// read-write, synchronous commits, no logging.
func DefaultOptions() Options {
	return engine.DefaultOptions()
}
