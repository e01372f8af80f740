// Package btree implements a copy-on-write B+tree over an abstract
// page manager. Nodes are plain byte buffers in the on-disk page
// format; mutations never modify an existing node, they build new
// node images and allocate fresh pages for them, freeing the old
// pages through the page manager.
//
// The tree keeps an empty sentinel key as the first entry of the
// leftmost path so that a less-or-equal descent always finds a slot.
// The sentinel is invisible to lookups and deletes and is skipped by
// the iterator's consumers.
package btree
