package btree

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/kilerdb/kiler/internal/storage"
)

// ============================================================================
// Test Harness
// ============================================================================

// memPager keeps node pages in memory, mimicking the write batch's
// copy-on-write contract: pages are never updated in place.
type memPager struct {
	t     *testing.T
	pages map[storage.PageID]Node
	next  storage.PageID
}

func newMemPager(t *testing.T) *memPager {
	return &memPager{t: t, pages: make(map[storage.PageID]Node), next: 1}
}

func (p *memPager) PageGet(id storage.PageID) (Node, error) {
	node, ok := p.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %d", storage.ErrPageOutOfRange, id)
	}
	return node, nil
}

func (p *memPager) PageNew(node Node) (storage.PageID, error) {
	if len(node) != storage.PageSize {
		p.t.Fatalf("allocated node has %d bytes, want %d", len(node), storage.PageSize)
	}
	if node.Size() > storage.PageSize {
		p.t.Fatalf("allocated node encodes %d bytes, exceeds page", node.Size())
	}
	id := p.next
	p.next++
	p.pages[id] = node
	return id, nil
}

func (p *memPager) PageDel(id storage.PageID) {
	if _, ok := p.pages[id]; !ok {
		p.t.Fatalf("double free of page %d", id)
	}
	delete(p.pages, id)
}

func newTestTree(t *testing.T) (*Tree, *memPager) {
	t.Helper()
	pager := newMemPager(t)
	return New(pager, 0), pager
}

func mustPut(t *testing.T, tree *Tree, key, val string) {
	t.Helper()
	if _, _, err := tree.Put([]byte(key), []byte(val), Upsert); err != nil {
		t.Fatalf("Put(%q): %v", key, err)
	}
}

func mustGet(t *testing.T, tree *Tree, key, want string) {
	t.Helper()
	val, ok, err := tree.Get([]byte(key))
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	if !ok {
		t.Fatalf("Get(%q): not found, want %q", key, want)
	}
	if string(val) != want {
		t.Fatalf("Get(%q) = %q, want %q", key, val, want)
	}
}

func mustMiss(t *testing.T, tree *Tree, key string) {
	t.Helper()
	if _, ok, err := tree.Get([]byte(key)); err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	} else if ok {
		t.Fatalf("Get(%q): found, want miss", key)
	}
}

// collectKeys walks the whole tree through the iterator, skipping the
// sentinel, and verifies strict ascending order on the way.
func collectKeys(t *testing.T, tree *Tree) []string {
	t.Helper()
	var keys []string
	var prev []byte
	it := tree.Seek(nil, GE)
	for ; it.Valid(); it.Next() {
		key := it.Key()
		if len(key) == 0 {
			continue
		}
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			t.Fatalf("keys out of order: %q then %q", prev, key)
		}
		prev = append(prev[:0], key...)
		keys = append(keys, string(key))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator: %v", err)
	}
	return keys
}

// checkInvariants walks every node: sizes within a page, keys sorted,
// internal separator keys equal to the first key of their kid.
func checkInvariants(t *testing.T, tree *Tree) {
	t.Helper()
	if tree.Root() == 0 {
		return
	}
	var walk func(id storage.PageID)
	walk = func(id storage.PageID) {
		node, err := tree.pager.PageGet(id)
		if err != nil {
			t.Fatalf("PageGet(%d): %v", id, err)
		}
		if node.Size() > storage.PageSize {
			t.Fatalf("node %d encodes %d bytes", id, node.Size())
		}
		for i := 1; i < node.NKeys(); i++ {
			if bytes.Compare(node.GetKey(i-1), node.GetKey(i)) >= 0 {
				t.Fatalf("node %d keys out of order at %d", id, i)
			}
		}
		if node.Type() != storage.PageInternal {
			return
		}
		for i := 0; i < node.NKeys(); i++ {
			kid, err := tree.pager.PageGet(node.GetPtr(i))
			if err != nil {
				t.Fatalf("kid of node %d: %v", id, err)
			}
			if !bytes.Equal(node.GetKey(i), kid.GetKey(0)) {
				t.Fatalf("node %d separator %q != kid first key %q",
					id, node.GetKey(i), kid.GetKey(0))
			}
			walk(node.GetPtr(i))
		}
	}
	walk(tree.Root())
}

// ============================================================================
// Insert / Get
// ============================================================================

func TestPutGetSingle(t *testing.T) {
	tree, _ := newTestTree(t)
	mustPut(t, tree, "hello", "world")
	mustGet(t, tree, "hello", "world")
	mustMiss(t, tree, "absent")
}

func TestPutOverwrites(t *testing.T) {
	tree, _ := newTestTree(t)
	mustPut(t, tree, "k", "v1")
	mustPut(t, tree, "k", "v2")
	mustGet(t, tree, "k", "v2")
	if keys := collectKeys(t, tree); len(keys) != 1 {
		t.Errorf("duplicate key after overwrite: %v", keys)
	}
}

func TestPutRejectsBadInput(t *testing.T) {
	tree, _ := newTestTree(t)
	if _, _, err := tree.Put(nil, []byte("v"), Upsert); err == nil {
		t.Error("empty key accepted")
	}
	if _, _, err := tree.Put(bytes.Repeat([]byte{'k'}, storage.MaxKeySize+1), nil, Upsert); err == nil {
		t.Error("oversized key accepted")
	}
	if _, _, err := tree.Put([]byte("k"), bytes.Repeat([]byte{'v'}, storage.MaxValueSize+1), Upsert); err == nil {
		t.Error("oversized value accepted")
	}
}

func TestInsertModes(t *testing.T) {
	tree, _ := newTestTree(t)

	added, _, err := tree.Put([]byte("k"), []byte("v1"), InsertOnly)
	if err != nil || !added {
		t.Fatalf("InsertOnly on fresh key: added=%v err=%v", added, err)
	}
	added, _, err = tree.Put([]byte("k"), []byte("v2"), InsertOnly)
	if err != nil || added {
		t.Fatalf("InsertOnly on existing key: added=%v err=%v", added, err)
	}
	mustGet(t, tree, "k", "v1")

	_, updated, err := tree.Put([]byte("k"), []byte("v3"), UpdateOnly)
	if err != nil || !updated {
		t.Fatalf("UpdateOnly on existing key: updated=%v err=%v", updated, err)
	}
	mustGet(t, tree, "k", "v3")

	_, updated, err = tree.Put([]byte("missing"), []byte("v"), UpdateOnly)
	if err != nil || updated {
		t.Fatalf("UpdateOnly on missing key: updated=%v err=%v", updated, err)
	}
	mustMiss(t, tree, "missing")
}

func TestGrowsBeyondOnePage(t *testing.T) {
	tree, pager := newTestTree(t)
	const n = 500
	for i := 0; i < n; i++ {
		mustPut(t, tree, fmt.Sprintf("key%06d", i), fmt.Sprintf("val%d", i))
	}
	checkInvariants(t, tree)

	root, err := pager.PageGet(tree.Root())
	if err != nil {
		t.Fatal(err)
	}
	if root.Type() != storage.PageInternal {
		t.Error("tree never split beyond one page")
	}
	for i := 0; i < n; i++ {
		mustGet(t, tree, fmt.Sprintf("key%06d", i), fmt.Sprintf("val%d", i))
	}
	if keys := collectKeys(t, tree); len(keys) != n {
		t.Errorf("tree holds %d keys, want %d", len(keys), n)
	}
}

func TestRandomOrderInsert(t *testing.T) {
	tree, _ := newTestTree(t)
	rng := rand.New(rand.NewSource(1))
	perm := rng.Perm(1000)
	for _, i := range perm {
		mustPut(t, tree, fmt.Sprintf("%04d", i+1), fmt.Sprintf("v%d", i+1))
	}
	checkInvariants(t, tree)

	keys := collectKeys(t, tree)
	if len(keys) != 1000 {
		t.Fatalf("tree holds %d keys, want 1000", len(keys))
	}
	for i, k := range keys {
		if want := fmt.Sprintf("%04d", i+1); k != want {
			t.Fatalf("key %d = %q, want %q", i, k, want)
		}
	}
}

func TestLargeValues(t *testing.T) {
	tree, _ := newTestTree(t)
	big := bytes.Repeat([]byte{'x'}, storage.MaxValueSize)
	for i := 0; i < 20; i++ {
		mustPut(t, tree, fmt.Sprintf("big%02d", i), string(big))
	}
	checkInvariants(t, tree)
	for i := 0; i < 20; i++ {
		mustGet(t, tree, fmt.Sprintf("big%02d", i), string(big))
	}
}

// ============================================================================
// Delete
// ============================================================================

func TestDeleteSingle(t *testing.T) {
	tree, _ := newTestTree(t)
	mustPut(t, tree, "a", "1")
	mustPut(t, tree, "b", "2")

	removed, err := tree.Delete([]byte("a"))
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	mustMiss(t, tree, "a")
	mustGet(t, tree, "b", "2")

	// deleting again is a successful no-op
	removed, err = tree.Delete([]byte("a"))
	if err != nil || removed {
		t.Fatalf("second Delete: removed=%v err=%v", removed, err)
	}
}

func TestDeleteAbsentKey(t *testing.T) {
	tree, _ := newTestTree(t)
	if removed, err := tree.Delete([]byte("ghost")); err != nil || removed {
		t.Fatalf("Delete on empty tree: removed=%v err=%v", removed, err)
	}
	mustPut(t, tree, "k", "v")
	if removed, err := tree.Delete([]byte("ghost")); err != nil || removed {
		t.Fatalf("Delete absent key: removed=%v err=%v", removed, err)
	}
}

func TestDeleteMergesNodes(t *testing.T) {
	tree, pager := newTestTree(t)
	const n = 1000
	for i := 0; i < n; i++ {
		mustPut(t, tree, fmt.Sprintf("key%06d", i), fmt.Sprintf("v%d", i))
	}
	pagesFull := len(pager.pages)

	for i := 0; i < n; i += 2 {
		if removed, err := tree.Delete([]byte(fmt.Sprintf("key%06d", i))); err != nil || !removed {
			t.Fatalf("Delete key%06d: removed=%v err=%v", i, removed, err)
		}
	}
	checkInvariants(t, tree)

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%06d", i)
		if i%2 == 0 {
			mustMiss(t, tree, key)
		} else {
			mustGet(t, tree, key, fmt.Sprintf("v%d", i))
		}
	}
	if len(pager.pages) >= pagesFull {
		t.Errorf("page count did not shrink after deleting half: %d -> %d",
			pagesFull, len(pager.pages))
	}
}

func TestDeleteAllShrinksToRootLeaf(t *testing.T) {
	tree, pager := newTestTree(t)
	const n = 600
	for i := 0; i < n; i++ {
		mustPut(t, tree, fmt.Sprintf("key%06d", i), "v")
	}
	for i := 0; i < n; i++ {
		if removed, err := tree.Delete([]byte(fmt.Sprintf("key%06d", i))); err != nil || !removed {
			t.Fatalf("Delete key%06d: removed=%v err=%v", i, removed, err)
		}
	}
	checkInvariants(t, tree)

	if keys := collectKeys(t, tree); len(keys) != 0 {
		t.Errorf("tree still holds %v", keys)
	}
	root, err := pager.PageGet(tree.Root())
	if err != nil {
		t.Fatal(err)
	}
	if root.Type() != storage.PageLeaf {
		t.Error("empty tree root is not a leaf")
	}
	if len(pager.pages) != 1 {
		t.Errorf("empty tree keeps %d pages, want 1", len(pager.pages))
	}
}

func TestMixedInsertDeleteChurn(t *testing.T) {
	tree, _ := newTestTree(t)
	rng := rand.New(rand.NewSource(7))
	live := make(map[string]string)

	for i := 0; i < 5000; i++ {
		key := fmt.Sprintf("k%05d", rng.Intn(800))
		if rng.Intn(3) == 0 {
			removed, err := tree.Delete([]byte(key))
			if err != nil {
				t.Fatalf("Delete(%q): %v", key, err)
			}
			if _, exists := live[key]; exists != removed {
				t.Fatalf("Delete(%q) = %v, model says %v", key, removed, exists)
			}
			delete(live, key)
		} else {
			val := fmt.Sprintf("v%d", i)
			mustPut(t, tree, key, val)
			live[key] = val
		}
	}
	checkInvariants(t, tree)

	keys := collectKeys(t, tree)
	if len(keys) != len(live) {
		t.Fatalf("tree holds %d keys, model holds %d", len(keys), len(live))
	}
	for key, val := range live {
		mustGet(t, tree, key, val)
	}
}
