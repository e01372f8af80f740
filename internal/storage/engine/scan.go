package engine

import (
	"bytes"

	"github.com/kilerdb/kiler/internal/storage/btree"
)

// Scanner iterates keys in ascending order over a half-open range.
// Usage follows the bufio.Scanner shape:
//
//	sc, err := db.Scan(start, end)
//	for sc.Next() {
//		... sc.Key(), sc.Value() ...
//	}
//	if err := sc.Err(); err != nil { ... }
//
// Key and Value return slices that alias immutable page images; they
// stay valid after Next but must not be modified.
type Scanner struct {
	it      *btree.Iterator
	end     []byte
	started bool
}

func newScanner(tree *btree.Tree, start, end []byte) *Scanner {
	return &Scanner{
		it:  tree.Seek(start, btree.GE),
		end: end,
	}
}

// Next advances to the next key in range and reports whether one
// exists.
func (s *Scanner) Next() bool {
	if !s.started {
		s.started = true
	} else if s.it.Valid() {
		s.it.Next()
	}
	for s.it.Valid() {
		key := s.it.Key()
		if len(key) == 0 {
			// skip the tree's internal sentinel entry
			s.it.Next()
			continue
		}
		if s.end != nil && bytes.Compare(key, s.end) >= 0 {
			return false
		}
		return true
	}
	return false
}

// Key returns the current key.
func (s *Scanner) Key() []byte {
	return s.it.Key()
}

// Value returns the current value.
func (s *Scanner) Value() []byte {
	return s.it.Value()
}

// Err returns the error that stopped the scan early, if any.
func (s *Scanner) Err() error {
	return s.it.Err()
}
