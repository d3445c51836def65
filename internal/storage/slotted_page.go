package storage

import (
	"encoding/binary"
	"fmt"

	"ocelot/internal/core"
)

// SlottedPage manages one 4096-byte block containing several records,
// modeled after the slotted page of Database System Concepts. Record ids
// are handed out sequentially starting at 1. The slot directory grows from
// the low end of the buffer while record bytes grow from the high end:
//
//	bytes 0x00-0x01: number of records
//	bytes 0x02-0x03: offset of the last used byte of the free region
//	bytes 0x04-0x05: size of record 1
//	bytes 0x06-0x07: offset of record 1
//	...
//
// A size of 0 and offset of 0 mark a tombstone. All 16-bit header fields
// are little-endian.
type SlottedPage struct {
	id         core.BlockID
	data       []byte
	numRecords uint16
	endFree    uint16
}

// NewSlottedPage binds a page to a block buffer. When isNew is true the
// buffer is initialized as an empty page; otherwise the header is read
// from the buffer.
func NewSlottedPage(id core.BlockID, data []byte, isNew bool) *SlottedPage {
	p := &SlottedPage{id: id, data: data}
	if isNew {
		p.numRecords = 0
		p.endFree = BlockSize - 1
		p.writeHeader()
	} else {
		p.numRecords = p.getN(0)
		p.endFree = p.getN(2)
	}
	return p
}

// ID returns the page's block id within its heap file.
func (p *SlottedPage) ID() core.BlockID { return p.id }

// Data returns the page's backing buffer.
func (p *SlottedPage) Data() []byte { return p.data }

// Add stores a new record and returns its id.
func (p *SlottedPage) Add(record []byte) (core.RecordID, error) {
	size := uint16(len(record))
	if !p.hasRoom(size + 4) {
		return 0, fmt.Errorf("page %d: add %d bytes: %w", p.id, size, core.ErrNoRoom)
	}
	p.numRecords++
	id := core.RecordID(p.numRecords)
	p.endFree -= size
	loc := p.endFree + 1
	p.writeHeader()
	p.putSlot(id, size, loc)
	copy(p.data[loc:], record)
	return id, nil
}

// Get returns the bytes stored for a record. The returned slice is a view
// into the page; callers must not retain it across a mutating call.
func (p *SlottedPage) Get(id core.RecordID) ([]byte, error) {
	if !p.exists(id) {
		return nil, fmt.Errorf("page %d: record %d: %w", p.id, id, core.ErrNotFound)
	}
	size, loc := p.slot(id)
	return p.data[loc : loc+size], nil
}

// Put replaces the bytes stored for a record in place, shifting later
// records as needed. The old record is retained on ErrNoRoom.
func (p *SlottedPage) Put(id core.RecordID, record []byte) error {
	if !p.exists(id) {
		return fmt.Errorf("page %d: record %d: %w", p.id, id, core.ErrNotFound)
	}
	oldSize, oldLoc := p.slot(id)
	newSize := uint16(len(record))

	switch {
	case newSize == oldSize:
		copy(p.data[oldLoc:], record)
	case newSize > oldSize:
		diff := newSize - oldSize
		if !p.hasRoom(diff) {
			return fmt.Errorf("page %d: put record %d (%d bytes): %w", p.id, id, newSize, core.ErrNoRoom)
		}
		shifted := p.shift(id+1, diff, true)
		newLoc := oldLoc - diff
		copy(p.data[newLoc:], record)
		p.putSlot(id, newSize, newLoc)
		if !shifted {
			p.endFree -= diff
		}
	default:
		diff := oldSize - newSize
		shifted := p.shift(id+1, diff, false)
		newLoc := oldLoc + diff
		copy(p.data[newLoc:], record)
		p.putSlot(id, newSize, newLoc)
		if !shifted {
			p.endFree += diff
		}
	}
	p.writeHeader()
	return nil
}

// Del tombstones a record and closes the byte gap it leaves.
func (p *SlottedPage) Del(id core.RecordID) error {
	if !p.exists(id) {
		return fmt.Errorf("page %d: record %d: %w", p.id, id, core.ErrNotFound)
	}
	size, _ := p.slot(id)
	shifted := p.shift(id+1, size, false)
	p.putSlot(id, 0, 0)
	if !shifted {
		p.endFree += size
	}
	p.writeHeader()
	return nil
}

// IDs returns the live record ids in ascending order.
func (p *SlottedPage) IDs() []core.RecordID {
	ids := make([]core.RecordID, 0, p.numRecords)
	for i := core.RecordID(1); uint16(i) <= p.numRecords; i++ {
		if p.exists(i) {
			ids = append(ids, i)
		}
	}
	return ids
}

// shift moves the contiguous live byte range below the first live record
// with id >= begin by delta bytes, toward low addresses when towardLow is
// true, and rewrites the offset slot of every shifted record. It reports
// whether anything was shifted; endFree is adjusted only in that case.
// Tombstoned slots participate only as header fixups, not as byte moves.
func (p *SlottedPage) shift(begin core.RecordID, delta uint16, towardLow bool) bool {
	for uint16(begin) <= p.numRecords && !p.exists(begin) {
		begin++
	}
	if uint16(begin) > p.numRecords {
		return false
	}

	beginSize, beginLoc := p.slot(begin)
	regionLen := beginLoc + beginSize - 1 - p.endFree
	region := make([]byte, regionLen)
	copy(region, p.data[p.endFree+1:])
	if towardLow {
		copy(p.data[p.endFree+1-delta:], region)
	} else {
		copy(p.data[p.endFree+1+delta:], region)
	}

	for i := begin; uint16(i) <= p.numRecords; i++ {
		if !p.exists(i) {
			continue
		}
		size, loc := p.slot(i)
		if towardLow {
			p.putSlot(i, size, loc-delta)
		} else {
			p.putSlot(i, size, loc+delta)
		}
	}

	if towardLow {
		p.endFree -= delta
	} else {
		p.endFree += delta
	}
	p.writeHeader()
	return true
}

// hasRoom reports whether size more bytes fit between the slot directory
// and the record area.
func (p *SlottedPage) hasRoom(size uint16) bool {
	return 4*int(p.numRecords)+3 < int(p.endFree)-int(size)+1
}

func (p *SlottedPage) exists(id core.RecordID) bool {
	if id == 0 || uint16(id) > p.numRecords {
		return false
	}
	_, loc := p.slot(id)
	return loc != 0
}

func (p *SlottedPage) slot(id core.RecordID) (size, loc uint16) {
	return p.getN(4 * uint16(id)), p.getN(4*uint16(id) + 2)
}

func (p *SlottedPage) putSlot(id core.RecordID, size, loc uint16) {
	p.putN(4*uint16(id), size)
	p.putN(4*uint16(id)+2, loc)
}

func (p *SlottedPage) writeHeader() {
	p.putN(0, p.numRecords)
	p.putN(2, p.endFree)
}

func (p *SlottedPage) getN(offset uint16) uint16 {
	return binary.LittleEndian.Uint16(p.data[offset:])
}

func (p *SlottedPage) putN(offset, n uint16) {
	binary.LittleEndian.PutUint16(p.data[offset:], n)
}
