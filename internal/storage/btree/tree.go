package btree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/kilerdb/kiler/internal/storage"
)

// Tree errors.
var (
	ErrKeyTooLarge = errors.New("btree: key exceeds maximum size")
	ErrValTooLarge = errors.New("btree: value exceeds maximum size")
	ErrEmptyKey    = errors.New("btree: empty key")
)

// PageManager supplies and recycles node pages. The storage write
// batch implements it for writers; a read-only adapter over the page
// store implements it for readers.
type PageManager interface {
	// PageGet returns the node image for a page id.
	PageGet(storage.PageID) (Node, error)
	// PageNew stages a node image on a fresh page and returns its id.
	PageNew(Node) (storage.PageID, error)
	// PageDel releases a page.
	PageDel(storage.PageID)
}

// InsertMode selects how Put treats an existing or missing key.
type InsertMode int

const (
	// Upsert inserts the key or replaces its value.
	Upsert InsertMode = iota
	// UpdateOnly replaces the value only if the key exists.
	UpdateOnly
	// InsertOnly inserts only if the key does not exist.
	InsertOnly
)

// Tree is a copy-on-write B+tree rooted at a page id. A zero root is
// the empty tree. Tree methods never modify committed pages; updates
// route all page traffic through the PageManager.
type Tree struct {
	root  storage.PageID
	pager PageManager
}

// New returns a tree over pager rooted at root.
func New(pager PageManager, root storage.PageID) *Tree {
	return &Tree{root: root, pager: pager}
}

// Root returns the current root page id. It changes on every
// successful mutation.
func (t *Tree) Root() storage.PageID {
	return t.root
}

// Get looks up key and reports whether it exists.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	if t.root == 0 {
		return nil, false, nil
	}
	node, err := t.pager.PageGet(t.root)
	if err != nil {
		return nil, false, err
	}
	for {
		idx := node.lookupLE(key)
		switch node.Type() {
		case storage.PageLeaf:
			// the sentinel empty key at index 0 is not a user key
			if len(key) > 0 && bytes.Equal(node.GetKey(idx), key) {
				return node.GetVal(idx), true, nil
			}
			return nil, false, nil
		case storage.PageInternal:
			node, err = t.pager.PageGet(node.GetPtr(idx))
			if err != nil {
				return nil, false, err
			}
		default:
			return nil, false, fmt.Errorf("%w: node type %d", storage.ErrCorrupted, node.Type())
		}
	}
}

// putResult accumulates what a Put changed on the way down.
type putResult struct {
	added   bool
	updated bool
}

// Put inserts or updates key according to mode. added reports whether
// a new key was created, updated whether anything changed at all.
func (t *Tree) Put(key, val []byte, mode InsertMode) (added, updated bool, err error) {
	if len(key) == 0 {
		return false, false, ErrEmptyKey
	}
	if len(key) > storage.MaxKeySize {
		return false, false, fmt.Errorf("%w: %d bytes", ErrKeyTooLarge, len(key))
	}
	if len(val) > storage.MaxValueSize {
		return false, false, fmt.Errorf("%w: %d bytes", ErrValTooLarge, len(val))
	}

	if t.root == 0 {
		if mode == UpdateOnly {
			return false, false, nil
		}
		// First key ever: the root leaf also carries the sentinel
		// empty key so lookupLE never misses.
		root := Node(make([]byte, storage.PageSize))
		root.setHeader(storage.PageLeaf, 2)
		root.appendKV(0, 0, nil, nil)
		root.appendKV(1, 0, key, val)
		id, err := t.pager.PageNew(root)
		if err != nil {
			return false, false, err
		}
		t.root = id
		return true, true, nil
	}

	node, err := t.pager.PageGet(t.root)
	if err != nil {
		return false, false, err
	}
	res := &putResult{}
	updatedNode, err := t.treeInsert(res, node, key, val, mode)
	if err != nil {
		return false, false, err
	}
	if updatedNode == nil {
		return false, false, nil
	}

	nsplit, split := nodeSplit3(updatedNode)
	t.pager.PageDel(t.root)
	if nsplit > 1 {
		// the root split, grow the tree by one level
		root := Node(make([]byte, storage.PageSize))
		root.setHeader(storage.PageInternal, nsplit)
		for i, kid := range split[:nsplit] {
			id, err := t.pager.PageNew(kid)
			if err != nil {
				return false, false, err
			}
			root.appendKV(i, id, kid.GetKey(0), nil)
		}
		id, err := t.pager.PageNew(root)
		if err != nil {
			return false, false, err
		}
		t.root = id
	} else {
		id, err := t.pager.PageNew(split[0])
		if err != nil {
			return false, false, err
		}
		t.root = id
	}
	return res.added, res.updated, nil
}

// treeInsert recursively copies the path to key and applies the
// update. It returns nil when the mode rejected the operation; the
// result may exceed one page and is split by the caller.
func (t *Tree) treeInsert(res *putResult, node Node, key, val []byte, mode InsertMode) (Node, error) {
	new := Node(make([]byte, 2*storage.PageSize))
	idx := node.lookupLE(key)

	switch node.Type() {
	case storage.PageLeaf:
		if bytes.Equal(node.GetKey(idx), key) {
			if mode == InsertOnly {
				return nil, nil
			}
			leafUpdate(new, node, idx, key, val)
			res.updated = true
		} else {
			if mode == UpdateOnly {
				return nil, nil
			}
			leafInsert(new, node, idx+1, key, val)
			res.added, res.updated = true, true
		}
		return new, nil

	case storage.PageInternal:
		kptr := node.GetPtr(idx)
		kid, err := t.pager.PageGet(kptr)
		if err != nil {
			return nil, err
		}
		knew, err := t.treeInsert(res, kid, key, val, mode)
		if err != nil {
			return nil, err
		}
		if knew == nil {
			return nil, nil
		}
		t.pager.PageDel(kptr)

		nsplit, split := nodeSplit3(knew)
		if err := t.nodeReplaceKidN(new, node, idx, split[:nsplit]...); err != nil {
			return nil, err
		}
		return new, nil

	default:
		return nil, fmt.Errorf("%w: node type %d", storage.ErrCorrupted, node.Type())
	}
}

// nodeReplaceKidN relinks position idx of old to one or more new kids,
// allocating pages for them.
func (t *Tree) nodeReplaceKidN(new, old Node, idx int, kids ...Node) error {
	inc := len(kids)
	new.setHeader(storage.PageInternal, old.NKeys()+inc-1)
	appendRange(new, old, 0, 0, idx)
	for i, kid := range kids {
		id, err := t.pager.PageNew(kid)
		if err != nil {
			return err
		}
		new.appendKV(idx+i, id, kid.GetKey(0), nil)
	}
	appendRange(new, old, idx+inc, idx+1, old.NKeys()-(idx+1))
	return nil
}
