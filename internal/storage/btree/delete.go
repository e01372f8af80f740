package btree

import (
	"bytes"
	"fmt"

	"github.com/kilerdb/kiler/internal/storage"
)

// Delete removes key from the tree and reports whether it was present.
// Deleting an absent key is a successful no-op.
func (t *Tree) Delete(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, ErrEmptyKey
	}
	if len(key) > storage.MaxKeySize {
		return false, fmt.Errorf("%w: %d bytes", ErrKeyTooLarge, len(key))
	}
	if t.root == 0 {
		return false, nil
	}

	node, err := t.pager.PageGet(t.root)
	if err != nil {
		return false, err
	}
	updated, err := t.treeDelete(node, key)
	if err != nil {
		return false, err
	}
	if updated == nil {
		return false, nil
	}

	// A delete can grow an internal node when a kid's first key gets
	// longer, so the root may need the same split treatment as an
	// insert.
	nsplit, split := nodeSplit3(updated)
	t.pager.PageDel(t.root)
	switch {
	case nsplit > 1:
		root := Node(make([]byte, storage.PageSize))
		root.setHeader(storage.PageInternal, nsplit)
		for i, kid := range split[:nsplit] {
			id, err := t.pager.PageNew(kid)
			if err != nil {
				return false, err
			}
			root.appendKV(i, id, kid.GetKey(0), nil)
		}
		id, err := t.pager.PageNew(root)
		if err != nil {
			return false, err
		}
		t.root = id
	case split[0].Type() == storage.PageInternal && split[0].NKeys() == 1:
		// the root has a single kid, shrink the tree by one level
		t.root = split[0].GetPtr(0)
	default:
		id, err := t.pager.PageNew(split[0])
		if err != nil {
			return false, err
		}
		t.root = id
	}
	return true, nil
}

// treeDelete recursively copies the path to key and removes it,
// merging underfull nodes on the way up. It returns nil when the key
// was not found.
func (t *Tree) treeDelete(node Node, key []byte) (Node, error) {
	idx := node.lookupLE(key)
	switch node.Type() {
	case storage.PageLeaf:
		if !bytes.Equal(node.GetKey(idx), key) {
			return nil, nil
		}
		new := Node(make([]byte, storage.PageSize))
		leafDelete(new, node, idx)
		return new, nil
	case storage.PageInternal:
		return t.nodeDelete(node, idx, key)
	default:
		return nil, fmt.Errorf("%w: node type %d", storage.ErrCorrupted, node.Type())
	}
}

// nodeDelete applies a delete to the idx-th kid of an internal node
// and repairs the balance afterwards.
func (t *Tree) nodeDelete(node Node, idx int, key []byte) (Node, error) {
	kptr := node.GetPtr(idx)
	kid, err := t.pager.PageGet(kptr)
	if err != nil {
		return nil, err
	}
	updated, err := t.treeDelete(kid, key)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, nil
	}
	t.pager.PageDel(kptr)

	new := Node(make([]byte, 2*storage.PageSize))
	mergeDir, sibling, err := t.shouldMerge(node, idx, updated)
	if err != nil {
		return nil, err
	}
	switch {
	case mergeDir < 0: // merge with the left sibling
		merged := Node(make([]byte, storage.PageSize))
		nodeMerge(merged, sibling, updated)
		t.pager.PageDel(node.GetPtr(idx - 1))
		id, err := t.pager.PageNew(merged)
		if err != nil {
			return nil, err
		}
		nodeReplace2Kid(new, node, idx-1, id, merged.GetKey(0))
	case mergeDir > 0: // merge with the right sibling
		merged := Node(make([]byte, storage.PageSize))
		nodeMerge(merged, updated, sibling)
		t.pager.PageDel(node.GetPtr(idx + 1))
		id, err := t.pager.PageNew(merged)
		if err != nil {
			return nil, err
		}
		nodeReplace2Kid(new, node, idx, id, merged.GetKey(0))
	case updated.NKeys() == 0:
		// The kid emptied out with no sibling to merge into, which
		// only happens when the parent holds this one kid. Propagate
		// the empty node up; the root shrink removes the level.
		new.setHeader(storage.PageInternal, 0)
	default:
		nsplit, split := nodeSplit3(updated)
		if err := t.nodeReplaceKidN(new, node, idx, split[:nsplit]...); err != nil {
			return nil, err
		}
	}
	return new, nil
}

// shouldMerge decides whether the updated kid at idx is small enough
// to join a sibling. It returns -1 for the left sibling, +1 for the
// right, 0 for no merge.
func (t *Tree) shouldMerge(node Node, idx int, updated Node) (int, Node, error) {
	if updated.Size() > storage.PageSize/4 {
		return 0, nil, nil
	}
	if idx > 0 {
		sibling, err := t.pager.PageGet(node.GetPtr(idx - 1))
		if err != nil {
			return 0, nil, err
		}
		if sibling.Size()+updated.Size()-header <= storage.PageSize {
			return -1, sibling, nil
		}
	}
	if idx+1 < node.NKeys() {
		sibling, err := t.pager.PageGet(node.GetPtr(idx + 1))
		if err != nil {
			return 0, nil, err
		}
		if sibling.Size()+updated.Size()-header <= storage.PageSize {
			return +1, sibling, nil
		}
	}
	return 0, nil, nil
}

// nodeReplace2Kid collapses the kids at idx and idx+1 into one merged
// kid.
func nodeReplace2Kid(new, old Node, idx int, merged storage.PageID, key []byte) {
	new.setHeader(storage.PageInternal, old.NKeys()-1)
	appendRange(new, old, 0, 0, idx)
	new.appendKV(idx, merged, key, nil)
	appendRange(new, old, idx+1, idx+2, old.NKeys()-(idx+2))
}
