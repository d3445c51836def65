package core

import "fmt"

// BlockID numbers a 4096-byte block within one heap file, allocated
// monotonically starting at 1.
type BlockID uint32

// RecordID numbers a record within one page, allocated monotonically
// starting at 1. Tombstoned ids are never reused.
type RecordID uint16

// Handle is the physical locator of a live row inside one table. It is
// stable only until the row is deleted or relocated by an update.
type Handle struct {
	Block  BlockID
	Record RecordID
}

func (h Handle) String() string {
	return fmt.Sprintf("(%d,%d)", h.Block, h.Record)
}
