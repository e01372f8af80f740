package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PageSize is the fixed size of every page in the database file.
const PageSize = 4096

// Limits on key and value lengths. They guarantee that a single
// key-value pair always fits in one node page together with the
// node header and bookkeeping arrays.
const (
	MaxKeySize   = 1000
	MaxValueSize = 3000
)

// PageID identifies a page by its position in the file.
// Page 0 is the master page and is never handed out.
type PageID uint64

// Page type tags stored in the first two bytes of every non-master page.
const (
	PageInternal uint16 = 1 // B+tree internal node
	PageLeaf     uint16 = 2 // B+tree leaf node
	PageFreeList uint16 = 3 // free-list node
)

// Storage errors.
var (
	ErrCorrupted      = errors.New("storage: corrupted page")
	ErrInvalidMaster  = errors.New("storage: invalid master page")
	ErrPageOutOfRange = errors.New("storage: page id out of range")
	ErrStoreClosed    = errors.New("storage: store is closed")
	ErrReadOnly       = errors.New("storage: store is read-only")
)

// pageType returns the type tag of a page image.
func pageType(page []byte) uint16 {
	return binary.LittleEndian.Uint16(page[0:2])
}

// ValidatePage checks that a page image read from disk carries a known
// type tag and that its self-described size fits the page. Content
// checks beyond that belong to the layer that owns the format.
func ValidatePage(id PageID, page []byte) error {
	if len(page) != PageSize {
		return fmt.Errorf("%w: page %d has size %d", ErrCorrupted, id, len(page))
	}
	switch pageType(page) {
	case PageInternal, PageLeaf:
		nkeys := int(binary.LittleEndian.Uint16(page[2:4]))
		// header, nkeys pointers (8B), nkeys offsets (2B)
		fixed := 4 + 10*nkeys
		if fixed > PageSize {
			return fmt.Errorf("%w: page %d claims %d keys", ErrCorrupted, id, nkeys)
		}
		if nkeys > 0 {
			last := int(binary.LittleEndian.Uint16(page[4+8*nkeys+2*(nkeys-1):]))
			if fixed+last > PageSize {
				return fmt.Errorf("%w: page %d content overflows", ErrCorrupted, id)
			}
		}
	case PageFreeList:
		size := int(binary.LittleEndian.Uint16(page[2:4]))
		if flHeader+8*size > PageSize {
			return fmt.Errorf("%w: page %d claims %d free entries", ErrCorrupted, id, size)
		}
	default:
		return fmt.Errorf("%w: page %d has unknown type %d", ErrCorrupted, id, pageType(page))
	}
	return nil
}
