package btree

import (
	"bytes"
	"encoding/binary"

	"github.com/kilerdb/kiler/internal/storage"
)

// Node page layout:
//
//	| type 2B | nkeys 2B | pointers nkeys*8B | offsets nkeys*2B | packed KVs |
//
// Each KV is | klen 2B | vlen 2B | key | value |. offsets[i] is the end
// of the i-th KV relative to the start of the KV area, so the position
// of KV i is found from offsets[i-1] in O(1). Internal nodes keep child
// page ids in the pointer array and separator keys with empty values;
// leaves keep the pointer array zeroed.
const header = 4

// Node is a B+tree node image. A node read from the page manager is
// exactly one page; nodes under construction may temporarily exceed a
// page and are cut down by splitting before allocation.
type Node []byte

// Type returns the node type tag, storage.PageInternal or
// storage.PageLeaf.
func (n Node) Type() uint16 {
	return binary.LittleEndian.Uint16(n[0:2])
}

// NKeys returns the number of keys in the node.
func (n Node) NKeys() int {
	return int(binary.LittleEndian.Uint16(n[2:4]))
}

func (n Node) setHeader(btype uint16, nkeys int) {
	binary.LittleEndian.PutUint16(n[0:2], btype)
	binary.LittleEndian.PutUint16(n[2:4], uint16(nkeys))
}

// GetPtr returns the i-th child page id. Zero on leaves.
func (n Node) GetPtr(i int) storage.PageID {
	return storage.PageID(binary.LittleEndian.Uint64(n[header+8*i:]))
}

func (n Node) setPtr(i int, p storage.PageID) {
	binary.LittleEndian.PutUint64(n[header+8*i:], uint64(p))
}

// getOffset returns the end of the i-th KV relative to the KV area.
// Offset 0 is implicit.
func (n Node) getOffset(i int) int {
	if i == 0 {
		return 0
	}
	return int(binary.LittleEndian.Uint16(n[header+8*n.NKeys()+2*(i-1):]))
}

func (n Node) setOffset(i, off int) {
	binary.LittleEndian.PutUint16(n[header+8*n.NKeys()+2*(i-1):], uint16(off))
}

// kvPos returns the byte position of the i-th KV. i may equal NKeys(),
// in which case the result is the encoded size of the node.
func (n Node) kvPos(i int) int {
	return header + 10*n.NKeys() + n.getOffset(i)
}

// GetKey returns the i-th key. The slice aliases the node buffer.
func (n Node) GetKey(i int) []byte {
	pos := n.kvPos(i)
	klen := int(binary.LittleEndian.Uint16(n[pos:]))
	return n[pos+4:][:klen]
}

// GetVal returns the i-th value. The slice aliases the node buffer.
func (n Node) GetVal(i int) []byte {
	pos := n.kvPos(i)
	klen := int(binary.LittleEndian.Uint16(n[pos:]))
	vlen := int(binary.LittleEndian.Uint16(n[pos+2:]))
	return n[pos+4+klen:][:vlen]
}

// Size returns the encoded size of the node in bytes.
func (n Node) Size() int {
	return n.kvPos(n.NKeys())
}

// lookupLE returns the index of the greatest key that is less than or
// equal to key. The sentinel empty key at index 0 of the leftmost path
// guarantees a hit on any descent from the root.
func (n Node) lookupLE(key []byte) int {
	lo, hi := 0, n.NKeys()
	// invariant: key(lo) <= key < key(hi)
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.GetKey(mid), key) <= 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// appendKV writes KV i with the given child pointer. Entries must be
// appended in order; the offset array is maintained as a side effect.
func (n Node) appendKV(i int, ptr storage.PageID, key, val []byte) {
	n.setPtr(i, ptr)
	pos := n.kvPos(i)
	binary.LittleEndian.PutUint16(n[pos:], uint16(len(key)))
	binary.LittleEndian.PutUint16(n[pos+2:], uint16(len(val)))
	copy(n[pos+4:], key)
	copy(n[pos+4+len(key):], val)
	n.setOffset(i+1, n.getOffset(i)+4+len(key)+len(val))
}

// appendRange copies n entries from old starting at srcOld into new
// starting at dstNew.
func appendRange(new, old Node, dstNew, srcOld, count int) {
	for i := 0; i < count; i++ {
		new.appendKV(dstNew+i, old.GetPtr(srcOld+i), old.GetKey(srcOld+i), old.GetVal(srcOld+i))
	}
}

// leafInsert adds a new KV at position idx.
func leafInsert(new, old Node, idx int, key, val []byte) {
	new.setHeader(storage.PageLeaf, old.NKeys()+1)
	appendRange(new, old, 0, 0, idx)
	new.appendKV(idx, 0, key, val)
	appendRange(new, old, idx+1, idx, old.NKeys()-idx)
}

// leafUpdate replaces the value of the KV at position idx.
func leafUpdate(new, old Node, idx int, key, val []byte) {
	new.setHeader(storage.PageLeaf, old.NKeys())
	appendRange(new, old, 0, 0, idx)
	new.appendKV(idx, 0, key, val)
	appendRange(new, old, idx+1, idx+1, old.NKeys()-idx-1)
}

// leafDelete removes the KV at position idx.
func leafDelete(new, old Node, idx int) {
	new.setHeader(storage.PageLeaf, old.NKeys()-1)
	appendRange(new, old, 0, 0, idx)
	appendRange(new, old, idx, idx+1, old.NKeys()-idx-1)
}

// nodeMerge joins two sibling nodes into one.
func nodeMerge(new, left, right Node) {
	new.setHeader(left.Type(), left.NKeys()+right.NKeys())
	appendRange(new, left, 0, 0, left.NKeys())
	appendRange(new, right, left.NKeys(), 0, right.NKeys())
}

// nodeSplit2 divides an oversized node roughly in half, keeping the
// right half within a page. The left half can still exceed a page when
// a single huge KV sits near the middle; the caller splits again.
func nodeSplit2(left, right, old Node) {
	nleft := old.NKeys() / 2

	leftBytes := func() int {
		return header + 10*nleft + old.getOffset(nleft)
	}
	for leftBytes() > storage.PageSize {
		nleft--
	}

	rightBytes := func() int {
		return old.Size() - leftBytes() + header
	}
	for rightBytes() > storage.PageSize {
		nleft++
	}

	nright := old.NKeys() - nleft
	left.setHeader(old.Type(), nleft)
	right.setHeader(old.Type(), nright)
	appendRange(left, old, 0, 0, nleft)
	appendRange(right, old, 0, nleft, nright)
}

// nodeSplit3 cuts a possibly oversized node into one, two or three
// page-sized nodes.
func nodeSplit3(old Node) (int, [3]Node) {
	if old.Size() <= storage.PageSize {
		old = old[:storage.PageSize]
		return 1, [3]Node{old}
	}
	left := Node(make([]byte, 2*storage.PageSize))
	right := Node(make([]byte, storage.PageSize))
	nodeSplit2(left, right, old)
	if left.Size() <= storage.PageSize {
		left = left[:storage.PageSize]
		return 2, [3]Node{left, right}
	}
	leftleft := Node(make([]byte, storage.PageSize))
	middle := Node(make([]byte, storage.PageSize))
	nodeSplit2(leftleft, middle, left)
	return 3, [3]Node{leftleft, middle, right}
}
