package storage

import (
	"fmt"
	"path/filepath"

	"ocelot/internal/core"
)

// HeapFile materializes one table (or index) as an ordered sequence of
// slotted pages over a block store. Pages are numbered [1, last]; the file
// never compacts, never reuses deleted pages, and never shrinks.
type HeapFile struct {
	name  string
	store BlockStore
	last  core.BlockID
	open  bool
}

// NewHeapFile returns a heap file backed by fileName inside dir. The file
// is not touched until Create or Open.
func NewHeapFile(dir, fileName string) *HeapFile {
	return &HeapFile{
		name:  fileName,
		store: NewFileStore(filepath.Join(dir, fileName)),
	}
}

// Name returns the file name within the database directory.
func (f *HeapFile) Name() string { return f.name }

// Create creates the underlying store exclusively and writes block 1 as an
// empty page, so every heap file has at least one block.
func (f *HeapFile) Create() error {
	if err := f.store.Create(); err != nil {
		return err
	}
	f.open = true
	f.last = 0
	if _, err := f.GetNew(); err != nil {
		return err
	}
	return nil
}

// Drop closes the file and removes it from the block store.
func (f *HeapFile) Drop() error {
	f.open = false
	f.last = 0
	return f.store.Drop()
}

// Open opens the underlying store and reloads the block count. Opening an
// already-open file is a no-op.
func (f *HeapFile) Open() error {
	if f.open {
		return nil
	}
	if err := f.store.Open(); err != nil {
		return err
	}
	count, err := f.store.Count()
	if err != nil {
		return err
	}
	f.last = core.BlockID(count)
	f.open = true
	return nil
}

// Close closes the underlying store; subsequent operations require reopen.
func (f *HeapFile) Close() error {
	f.open = false
	return f.store.Close()
}

// GetNew initializes a fresh buffer as an empty page, appends it to the
// store, and returns the page with the next block id.
func (f *HeapFile) GetNew() (*SlottedPage, error) {
	buf := make([]byte, BlockSize)
	page := NewSlottedPage(f.last+1, buf, true)
	id, err := f.store.Append(buf)
	if err != nil {
		return nil, err
	}
	if id != f.last+1 {
		return nil, fmt.Errorf("heap file %s: appended block %d, expected %d", f.name, id, f.last+1)
	}
	f.last = id
	return page, nil
}

// Get fetches block id and returns a page bound to its bytes.
func (f *HeapFile) Get(id core.BlockID) (*SlottedPage, error) {
	if id == 0 || id > f.last {
		return nil, fmt.Errorf("heap file %s: block %d: %w", f.name, id, core.ErrNotFound)
	}
	buf, err := f.store.Get(id)
	if err != nil {
		return nil, err
	}
	return NewSlottedPage(id, buf, false), nil
}

// Put writes a page's bytes back under its block id.
func (f *HeapFile) Put(page *SlottedPage) error {
	return f.store.Put(page.ID(), page.Data())
}

// BlockIDs returns [1..last] in ascending order.
func (f *HeapFile) BlockIDs() []core.BlockID {
	ids := make([]core.BlockID, 0, f.last)
	for i := core.BlockID(1); i <= f.last; i++ {
		ids = append(ids, i)
	}
	return ids
}

// Last returns the highest allocated block id.
func (f *HeapFile) Last() core.BlockID { return f.last }
