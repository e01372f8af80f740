package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Master page layout, page 0 of the database file. Only the first
// MasterSize bytes are meaningful; the rest of the page is zero.
//
//	| signature 16B | version 4B | reserved 4B | root 8B | used 8B | freeHead 8B | checksum 8B |
//	| 0            | 16         | 20          | 24      | 32      | 40          | 48       56 |
//
// The checksum is xxhash64 over bytes [0:48]. The whole master page
// fits in a single disk sector, so publishing a new master is atomic
// on any drive that does not tear sector writes.
const (
	masterSig  = "KilerDB format00"
	MasterSize = 56

	// FormatVersion is bumped on incompatible on-disk changes.
	FormatVersion uint32 = 1
)

// MasterPage is the decoded form of page 0. It names the committed
// state of the database: the B+tree root, the number of pages in use
// (including the master page itself), and the head of the free list.
type MasterPage struct {
	Version  uint32
	Root     PageID
	Used     uint64
	FreeHead PageID
}

// Serialize encodes the master page into a PageSize buffer.
func (m *MasterPage) Serialize() []byte {
	buf := make([]byte, PageSize)
	copy(buf[0:16], masterSig)
	binary.LittleEndian.PutUint32(buf[16:20], m.Version)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(m.Root))
	binary.LittleEndian.PutUint64(buf[32:40], m.Used)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(m.FreeHead))
	sum := xxhash.Sum64(buf[0:48])
	binary.LittleEndian.PutUint64(buf[48:56], sum)
	return buf
}

// ParseMaster decodes and validates page 0. filePages is the size of
// the file in pages, used to reject masters that point past the end
// of the file.
func ParseMaster(buf []byte, filePages uint64) (*MasterPage, error) {
	if len(buf) < MasterSize {
		return nil, fmt.Errorf("%w: short read", ErrInvalidMaster)
	}
	if !bytes.Equal(buf[0:16], []byte(masterSig)) {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidMaster)
	}
	sum := xxhash.Sum64(buf[0:48])
	if sum != binary.LittleEndian.Uint64(buf[48:56]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidMaster)
	}

	m := &MasterPage{
		Version:  binary.LittleEndian.Uint32(buf[16:20]),
		Root:     PageID(binary.LittleEndian.Uint64(buf[24:32])),
		Used:     binary.LittleEndian.Uint64(buf[32:40]),
		FreeHead: PageID(binary.LittleEndian.Uint64(buf[40:48])),
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidMaster, m.Version)
	}
	if m.Used < 1 || m.Used > filePages {
		return nil, fmt.Errorf("%w: used %d exceeds file size %d pages", ErrInvalidMaster, m.Used, filePages)
	}
	if uint64(m.Root) >= m.Used {
		return nil, fmt.Errorf("%w: root %d outside used range", ErrInvalidMaster, m.Root)
	}
	if uint64(m.FreeHead) >= m.Used {
		return nil, fmt.Errorf("%w: free list head %d outside used range", ErrInvalidMaster, m.FreeHead)
	}
	return m, nil
}
