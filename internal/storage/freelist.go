package storage

import (
	"encoding/binary"
	"fmt"
)

// Free-list node page layout:
//
//	| type 2B | size 2B | total 8B | next 8B | pointers size*8B |
//
// Nodes form a singly linked list headed by the master page's freeHead
// field. The total field is meaningful only on the head node and holds
// the number of free pages in the whole list. A zero head means the
// list is empty.
const (
	flHeader = 20

	// MaxFreeListEntries is the pointer capacity of one node page.
	MaxFreeListEntries = (PageSize - flHeader) / 8
)

// flNode wraps a free-list page image.
type flNode []byte

func (n flNode) size() int {
	return int(binary.LittleEndian.Uint16(n[2:4]))
}

func (n flNode) total() uint64 {
	return binary.LittleEndian.Uint64(n[4:12])
}

func (n flNode) next() PageID {
	return PageID(binary.LittleEndian.Uint64(n[12:20]))
}

func (n flNode) ptr(i int) PageID {
	return PageID(binary.LittleEndian.Uint64(n[flHeader+i*8:]))
}

func (n flNode) setPtr(i int, p PageID) {
	binary.LittleEndian.PutUint64(n[flHeader+i*8:], uint64(p))
}

func (n flNode) setHeader(size int, next PageID) {
	binary.LittleEndian.PutUint16(n[0:2], PageFreeList)
	binary.LittleEndian.PutUint16(n[2:4], uint16(size))
	binary.LittleEndian.PutUint64(n[12:20], uint64(next))
}

func (n flNode) setTotal(t uint64) {
	binary.LittleEndian.PutUint64(n[4:12], t)
}

// FreeList tracks the pages released by past commits so they can be
// recycled instead of growing the file. It lives inside a write batch:
// reads go through the batch so staged node pages are visible, and new
// node pages are staged like any other page.
type FreeList struct {
	batch *WriteBatch
	head  PageID
}

// Head returns the current head page of the list.
func (fl *FreeList) Head() PageID {
	return fl.head
}

// Total returns the number of free pages in the list.
func (fl *FreeList) Total() (uint64, error) {
	if fl.head == 0 {
		return 0, nil
	}
	node, err := fl.batch.pageRead(fl.head)
	if err != nil {
		return 0, err
	}
	return flNode(node).total(), nil
}

// Get returns the topn-th free page counted from the head of the list.
// The caller removes taken entries later via Update.
func (fl *FreeList) Get(topn uint64) (PageID, error) {
	node, err := fl.batch.pageRead(fl.head)
	if err != nil {
		return 0, err
	}
	for uint64(flNode(node).size()) <= topn {
		topn -= uint64(flNode(node).size())
		next := flNode(node).next()
		if next == 0 {
			return 0, fmt.Errorf("%w: free list ends before entry", ErrCorrupted)
		}
		node, err = fl.batch.pageRead(next)
		if err != nil {
			return 0, err
		}
	}
	return flNode(node).ptr(flNode(node).size() - int(topn) - 1), nil
}

// Update removes the first popn entries from the list and adds the
// freed pages, rebuilding the head of the chain. Consumed node pages
// are themselves recycled. After Update the head node is staged in the
// batch, so the new list only becomes visible at commit.
func (fl *FreeList) Update(popn uint64, freed []PageID) error {
	if popn == 0 && len(freed) == 0 {
		return nil
	}

	total, err := fl.Total()
	if err != nil {
		return err
	}
	if popn > total {
		return fmt.Errorf("%w: free list pops %d of %d entries", ErrCorrupted, popn, total)
	}

	// Consume head nodes until the popped entries are gone and there
	// are enough reusable pages to house the rebuilt chain.
	var reuse []PageID
	for fl.head != 0 && (popn > 0 || uint64(len(reuse))*MaxFreeListEntries < uint64(len(freed))) {
		buf, err := fl.batch.pageRead(fl.head)
		if err != nil {
			return err
		}
		node := flNode(buf)
		freed = append(freed, fl.head) // the node page itself is free now

		if popn >= uint64(node.size()) {
			popn -= uint64(node.size())
		} else {
			remain := node.size() - int(popn)
			popn = 0
			// Peel off entries to house the new chain.
			for remain > 0 && uint64(len(reuse))*MaxFreeListEntries < uint64(len(freed))+uint64(remain) {
				remain--
				reuse = append(reuse, node.ptr(remain))
			}
			for i := 0; i < remain; i++ {
				freed = append(freed, node.ptr(i))
			}
		}

		total -= uint64(node.size())
		fl.head = node.next()
	}

	// The peel loop can harvest one node page more than the rebuilt
	// chain needs when the entry count lands just past a node boundary.
	// Surplus reuse pages are free pages, so return them to the set.
	for uint64(len(reuse)) > (uint64(len(freed))+MaxFreeListEntries-1)/MaxFreeListEntries {
		freed = append(freed, reuse[len(reuse)-1])
		reuse = reuse[:len(reuse)-1]
	}

	newTotal := total + uint64(len(freed))
	if err := fl.push(freed, reuse); err != nil {
		return err
	}

	head, err := fl.batch.pageRead(fl.head)
	if err != nil {
		return err
	}
	flNode(head).setTotal(newTotal)
	return nil
}

// push prepends nodes holding the freed pointers, drawing node pages
// from reuse first and appending to the file when reuse runs out.
func (fl *FreeList) push(freed, reuse []PageID) error {
	for len(freed) > 0 {
		node := flNode(make([]byte, PageSize))
		size := len(freed)
		if size > MaxFreeListEntries {
			size = MaxFreeListEntries
		}
		node.setHeader(size, fl.head)
		for i, p := range freed[:size] {
			node.setPtr(i, p)
		}
		freed = freed[size:]

		if len(reuse) > 0 {
			fl.head, reuse = reuse[0], reuse[1:]
			fl.batch.pageReuse(fl.head, node)
		} else {
			id, err := fl.batch.pageAppend(node)
			if err != nil {
				return err
			}
			fl.head = id
		}
	}
	if len(reuse) != 0 {
		return fmt.Errorf("%w: free list rebuild left %d unused node pages", ErrCorrupted, len(reuse))
	}
	return nil
}
