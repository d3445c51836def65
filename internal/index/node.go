package index

import (
	"encoding/binary"
	"fmt"
	"sort"

	"ocelot/internal/core"
	"ocelot/internal/storage"
)

// The tree's backing store holds three kinds of pages. Block 1 is the stat
// page: one record with the root block id and the tree height. Leaf pages
// hold sorted (key, handle) records. Interior pages hold a first-child
// record followed by sorted (child, key) records. Every node page is
// rewritten wholesale on save, so record ids always equal sorted positions
// and tombstones never persist inside the tree.

const statBlock = core.BlockID(1)

type treeStat struct {
	root   core.BlockID
	height uint32
}

func loadStat(file *storage.HeapFile) (*treeStat, error) {
	page, err := file.Get(statBlock)
	if err != nil {
		return nil, err
	}
	record, err := page.Get(1)
	if err != nil {
		return nil, fmt.Errorf("index %s: stat page: %w", file.Name(), err)
	}
	if len(record) != 8 {
		return nil, fmt.Errorf("index %s: stat record has %d bytes", file.Name(), len(record))
	}
	return &treeStat{
		root:   core.BlockID(binary.LittleEndian.Uint32(record)),
		height: binary.LittleEndian.Uint32(record[4:]),
	}, nil
}

func saveStat(file *storage.HeapFile, stat *treeStat) error {
	record := make([]byte, 8)
	binary.LittleEndian.PutUint32(record, uint32(stat.root))
	binary.LittleEndian.PutUint32(record[4:], stat.height)
	return savePage(file, statBlock, [][]byte{record})
}

// savePage rebuilds block id from scratch with the given records.
func savePage(file *storage.HeapFile, id core.BlockID, records [][]byte) error {
	page := storage.NewSlottedPage(id, make([]byte, storage.BlockSize), true)
	for _, record := range records {
		if _, err := page.Add(record); err != nil {
			return err
		}
	}
	return file.Put(page)
}

// recordsFit reports whether records of the given sizes fit in one page.
func recordsFit(sizes []int) bool {
	total := 0
	for _, s := range sizes {
		total += s
	}
	return 4*len(sizes)+3 < storage.BlockSize-total
}

// leafEntry is one (key, handle) pair of a leaf page.
type leafEntry struct {
	key    keyTuple
	handle core.Handle
}

type leafNode struct {
	id      core.BlockID
	entries []leafEntry
}

func loadLeaf(file *storage.HeapFile, id core.BlockID, profile []core.DataType) (*leafNode, error) {
	page, err := file.Get(id)
	if err != nil {
		return nil, err
	}
	node := &leafNode{id: id}
	for _, recordID := range page.IDs() {
		record, err := page.Get(recordID)
		if err != nil {
			return nil, err
		}
		key, n, err := decodeKey(profile, record)
		if err != nil {
			return nil, fmt.Errorf("index %s: leaf %d: %w", file.Name(), id, err)
		}
		if len(record)-n != 6 {
			return nil, fmt.Errorf("index %s: leaf %d: malformed entry", file.Name(), id)
		}
		node.entries = append(node.entries, leafEntry{
			key: key,
			handle: core.Handle{
				Block:  core.BlockID(binary.LittleEndian.Uint32(record[n:])),
				Record: core.RecordID(binary.LittleEndian.Uint16(record[n+4:])),
			},
		})
	}
	return node, nil
}

func (n *leafNode) records() [][]byte {
	records := make([][]byte, len(n.entries))
	for i, e := range n.entries {
		record := encodeKey(e.key)
		record = binary.LittleEndian.AppendUint32(record, uint32(e.handle.Block))
		record = binary.LittleEndian.AppendUint16(record, uint16(e.handle.Record))
		records[i] = record
	}
	return records
}

func (n *leafNode) fits() bool {
	sizes := make([]int, len(n.entries))
	for i, record := range n.records() {
		sizes[i] = len(record)
	}
	return recordsFit(sizes)
}

func (n *leafNode) save(file *storage.HeapFile) error {
	return savePage(file, n.id, n.records())
}

// search returns the position of key and whether an entry with that exact
// key is present.
func (n *leafNode) search(key keyTuple) (int, bool) {
	pos := sort.Search(len(n.entries), func(i int) bool {
		return n.entries[i].key.compare(key) >= 0
	})
	return pos, pos < len(n.entries) && n.entries[pos].key.equal(key)
}

// interiorEntry routes keys >= key (and below the next entry's key) to
// child.
type interiorEntry struct {
	key   keyTuple
	child core.BlockID
}

type interiorNode struct {
	id      core.BlockID
	first   core.BlockID
	entries []interiorEntry
}

func loadInterior(file *storage.HeapFile, id core.BlockID, profile []core.DataType) (*interiorNode, error) {
	page, err := file.Get(id)
	if err != nil {
		return nil, err
	}
	node := &interiorNode{id: id}
	for i, recordID := range page.IDs() {
		record, err := page.Get(recordID)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			if len(record) != 4 {
				return nil, fmt.Errorf("index %s: interior %d: malformed first child", file.Name(), id)
			}
			node.first = core.BlockID(binary.LittleEndian.Uint32(record))
			continue
		}
		if len(record) < 4 {
			return nil, fmt.Errorf("index %s: interior %d: malformed entry", file.Name(), id)
		}
		child := core.BlockID(binary.LittleEndian.Uint32(record))
		key, n, err := decodeKey(profile, record[4:])
		if err != nil {
			return nil, fmt.Errorf("index %s: interior %d: %w", file.Name(), id, err)
		}
		if len(record)-4 != n {
			return nil, fmt.Errorf("index %s: interior %d: malformed entry", file.Name(), id)
		}
		node.entries = append(node.entries, interiorEntry{key: key, child: child})
	}
	return node, nil
}

func (n *interiorNode) records() [][]byte {
	records := make([][]byte, 0, len(n.entries)+1)
	first := make([]byte, 4)
	binary.LittleEndian.PutUint32(first, uint32(n.first))
	records = append(records, first)
	for _, e := range n.entries {
		record := make([]byte, 4, 4+len(e.key)*4)
		binary.LittleEndian.PutUint32(record, uint32(e.child))
		record = append(record, encodeKey(e.key)...)
		records = append(records, record)
	}
	return records
}

func (n *interiorNode) fits() bool {
	records := n.records()
	sizes := make([]int, len(records))
	for i, record := range records {
		sizes[i] = len(record)
	}
	return recordsFit(sizes)
}

func (n *interiorNode) save(file *storage.HeapFile) error {
	return savePage(file, n.id, n.records())
}

// find returns the child block a key descends to: first for keys below
// every routing key, otherwise the child of the last entry whose key is
// <= the search key.
func (n *interiorNode) find(key keyTuple) core.BlockID {
	pos := sort.Search(len(n.entries), func(i int) bool {
		return n.entries[i].key.compare(key) > 0
	})
	if pos == 0 {
		return n.first
	}
	return n.entries[pos-1].child
}

// insert adds a routing entry in key order.
func (n *interiorNode) insert(key keyTuple, child core.BlockID) {
	pos := sort.Search(len(n.entries), func(i int) bool {
		return n.entries[i].key.compare(key) >= 0
	})
	n.entries = append(n.entries, interiorEntry{})
	copy(n.entries[pos+1:], n.entries[pos:])
	n.entries[pos] = interiorEntry{key: key, child: child}
}
