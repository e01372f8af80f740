// Package engine exposes the public KilerDB API: an embedded,
// single-file key/value store with serializable write transactions
// and lock-free snapshot reads.
//
// One writer runs at a time; Begin blocks until the previous write
// transaction commits or aborts. Readers always see the last committed
// root and never block the writer.
package engine
