package btree

import (
	"bytes"

	"github.com/kilerdb/kiler/internal/storage"
)

// Cmp selects the seek comparison: the iterator lands on the first key
// matching the relation to the reference key, looking forward for GT
// and GE, backward for LT and LE.
type Cmp int

const (
	GE Cmp = +3
	GT Cmp = +2
	LT Cmp = -2
	LE Cmp = -3
)

func cmpOK(key []byte, cmp Cmp, ref []byte) bool {
	r := bytes.Compare(key, ref)
	switch cmp {
	case GE:
		return r >= 0
	case GT:
		return r > 0
	case LT:
		return r < 0
	case LE:
		return r <= 0
	}
	return false
}

// Iterator walks the tree in key order. It holds the root-to-leaf path
// of the current position, so Next and Prev cost O(1) amortized page
// reads. The iterator sees the tree as of the time of the seek; it is
// not safe against concurrent mutation of the same tree handle.
type Iterator struct {
	pager PageManager
	path  []Node // root to leaf
	pos   []int  // matching position at each level
	err   error
}

// SeekLE positions the iterator at the greatest key less than or equal
// to key. With the sentinel in place it is always valid on a non-empty
// tree.
func (t *Tree) SeekLE(key []byte) *Iterator {
	it := &Iterator{pager: t.pager}
	if t.root == 0 {
		return it
	}
	for id := t.root; id != 0; {
		node, err := t.pager.PageGet(id)
		if err != nil {
			it.err = err
			it.path, it.pos = nil, nil
			return it
		}
		idx := node.lookupLE(key)
		it.path = append(it.path, node)
		it.pos = append(it.pos, idx)
		if node.Type() == storage.PageInternal {
			id = node.GetPtr(idx)
		} else {
			id = 0
		}
	}
	return it
}

// Seek positions the iterator relative to key according to cmp.
func (t *Tree) Seek(key []byte, cmp Cmp) *Iterator {
	it := t.SeekLE(key)
	if cmp != LE && it.Valid() {
		if !cmpOK(it.Key(), cmp, key) {
			// SeekLE lands one position off for the other relations
			if cmp > 0 {
				it.Next()
			} else {
				it.Prev()
			}
		}
	}
	return it
}

// Valid reports whether the iterator points at an entry.
func (it *Iterator) Valid() bool {
	if it.err != nil || len(it.path) == 0 {
		return false
	}
	last := len(it.path) - 1
	return it.pos[last] >= 0 && it.pos[last] < it.path[last].NKeys()
}

// Err returns the page read error that invalidated the iterator, if
// any.
func (it *Iterator) Err() error {
	return it.err
}

// Key returns the current key. Valid must be true.
func (it *Iterator) Key() []byte {
	last := len(it.path) - 1
	return it.path[last].GetKey(it.pos[last])
}

// Value returns the current value. Valid must be true.
func (it *Iterator) Value() []byte {
	last := len(it.path) - 1
	return it.path[last].GetVal(it.pos[last])
}

// Next advances to the following key. Advancing past the last entry
// invalidates the iterator.
func (it *Iterator) Next() {
	if it.err != nil || len(it.path) == 0 {
		return
	}
	it.next(len(it.path) - 1)
}

// next reports whether the position actually moved; false means the
// tree is exhausted and the leaf position was pushed past the end.
func (it *Iterator) next(level int) bool {
	if it.pos[level]+1 < it.path[level].NKeys() {
		it.pos[level]++ // move within this node
	} else if level > 0 {
		if !it.next(level - 1) { // move into the next sibling subtree
			return false
		}
	} else {
		it.pos[len(it.pos)-1]++ // past the last key
		return false
	}
	if level+1 < len(it.pos) {
		node, err := it.pager.PageGet(it.path[level].GetPtr(it.pos[level]))
		if err != nil {
			it.err = err
			return false
		}
		it.path[level+1] = node
		it.pos[level+1] = 0
	}
	return true
}

// Prev moves to the preceding key. Moving before the first entry
// invalidates the iterator.
func (it *Iterator) Prev() {
	if it.err != nil || len(it.path) == 0 {
		return
	}
	it.prev(len(it.path) - 1)
}

func (it *Iterator) prev(level int) bool {
	if it.pos[level] > 0 {
		it.pos[level]--
	} else if level > 0 {
		if !it.prev(level - 1) {
			return false
		}
	} else {
		it.pos[len(it.pos)-1]-- // before the first key
		return false
	}
	if level+1 < len(it.pos) {
		node, err := it.pager.PageGet(it.path[level].GetPtr(it.pos[level]))
		if err != nil {
			it.err = err
			return false
		}
		it.path[level+1] = node
		it.pos[level+1] = node.NKeys() - 1
	}
	return true
}
