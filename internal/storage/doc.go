// Package storage implements the single-file page store underlying KilerDB.
//
// The database file is an array of fixed-size 4096-byte pages. Page 0 is
// the master page and carries the committed tree root, the page count in
// use, and the head of the persistent free list, protected by a checksum.
// All other pages hold B+tree nodes or free-list nodes.
//
// Pages are never updated in place. A write batch stages new page images
// at freshly allocated or recycled page numbers; a commit flushes the
// staged pages, syncs the file, and then publishes the new master page
// with a single sector-sized write. A crash at any point leaves either
// the old or the new master on disk, so the previously committed state
// is always recoverable.
//
// Committed pages are immutable until freed, which makes them safe to
// serve to concurrent readers straight from an in-process cache.
package storage
