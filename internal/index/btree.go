package index

import (
	"fmt"

	"ocelot/internal/core"
	"ocelot/internal/storage"
)

func init() {
	Register("BTREE", func(rel Relation, dir, name string, keyColumns []string, unique bool) (Index, error) {
		return NewBTree(rel, dir, name, keyColumns, unique)
	})
}

// BTree is a unique ordered index over a key projection of a relation,
// persisted in its own heap-file-shaped store named <table>-<index>.
// Interior pages hold routing keys and child pointers; leaf pages hold
// (key, handle) pairs in key order. Height 1 means the root is a leaf.
type BTree struct {
	relation   Relation
	name       string
	keyColumns []string
	profile    []core.DataType
	file       *storage.HeapFile
	stat       *treeStat
	open       bool
}

// NewBTree builds the index and its key profile. Non-unique keys are not
// supported.
func NewBTree(rel Relation, dir, name string, keyColumns []string, unique bool) (*BTree, error) {
	if !unique {
		return nil, fmt.Errorf("index %s on %s: %w", name, rel.Name(), core.ErrNonUniqueUnsupported)
	}
	if len(keyColumns) == 0 {
		return nil, fmt.Errorf("index %s on %s: empty key", name, rel.Name())
	}
	schema := rel.Schema()
	profile := make([]core.DataType, len(keyColumns))
	for i, col := range keyColumns {
		dt, err := schema.TypeOf(col)
		if err != nil {
			return nil, fmt.Errorf("index %s on %s: %w", name, rel.Name(), err)
		}
		profile[i] = dt
	}
	return &BTree{
		relation:   rel,
		name:       name,
		keyColumns: keyColumns,
		profile:    profile,
		file:       storage.NewHeapFile(dir, rel.Name()+"-"+name),
	}, nil
}

// Name returns the index name.
func (t *BTree) Name() string { return t.name }

// KeyColumns returns the indexed columns in key order.
func (t *BTree) KeyColumns() []string { return t.keyColumns }

// Create creates the backing file with an empty leaf as root, then
// bulk-indexes every existing row of the relation.
func (t *BTree) Create() error {
	if err := t.file.Create(); err != nil {
		return err
	}
	root, err := t.file.GetNew()
	if err != nil {
		return err
	}
	t.stat = &treeStat{root: root.ID(), height: 1}
	if err := saveStat(t.file, t.stat); err != nil {
		return err
	}
	t.open = true

	handles, err := t.relation.Select()
	if err != nil {
		return err
	}
	for _, handle := range handles {
		if err := t.Insert(handle); err != nil {
			return err
		}
	}
	return nil
}

// Drop removes the backing file.
func (t *BTree) Drop() error {
	t.open = false
	t.stat = nil
	return t.file.Drop()
}

// Open opens the backing file and reconstructs the stat page.
func (t *BTree) Open() error {
	if t.open {
		return nil
	}
	if err := t.file.Open(); err != nil {
		return err
	}
	stat, err := loadStat(t.file)
	if err != nil {
		return err
	}
	t.stat = stat
	t.open = true
	return nil
}

// Close closes the backing file.
func (t *BTree) Close() error {
	t.open = false
	t.stat = nil
	return t.file.Close()
}

// Lookup projects the key dictionary to a key tuple and descends from the
// root. It returns the handle of the matching row, or no handles when the
// key is absent.
func (t *BTree) Lookup(key core.Row) ([]core.Handle, error) {
	if err := t.Open(); err != nil {
		return nil, err
	}
	tuple, err := t.tkey(key)
	if err != nil {
		return nil, err
	}
	leaf, err := t.descend(tuple)
	if err != nil {
		return nil, err
	}
	pos, found := leaf.search(tuple)
	if !found {
		return nil, nil
	}
	return []core.Handle{leaf.entries[pos].handle}, nil
}

// Insert projects the row at handle to a key tuple and inserts it in key
// order, splitting leaves, interiors, and finally the root as needed.
func (t *BTree) Insert(handle core.Handle) error {
	if err := t.Open(); err != nil {
		return err
	}
	tuple, err := t.rowKey(handle)
	if err != nil {
		return err
	}
	sp, err := t.insertAt(t.stat.root, t.stat.height, tuple, handle)
	if err != nil {
		return err
	}
	if sp == nil {
		return nil
	}

	// The root split: a new interior root adopts both halves and the tree
	// grows one level.
	page, err := t.file.GetNew()
	if err != nil {
		return err
	}
	root := &interiorNode{id: page.ID(), first: t.stat.root}
	root.insert(sp.key, sp.child)
	if err := root.save(t.file); err != nil {
		return err
	}
	t.stat.root = root.id
	t.stat.height++
	return saveStat(t.file, t.stat)
}

// Delete removes the (key, handle) pair for the row at handle from its
// leaf. The tree never rebalances: height and node count are preserved.
func (t *BTree) Delete(handle core.Handle) error {
	if err := t.Open(); err != nil {
		return err
	}
	tuple, err := t.rowKey(handle)
	if err != nil {
		return err
	}
	leaf, err := t.descend(tuple)
	if err != nil {
		return err
	}
	pos, found := leaf.search(tuple)
	if !found || leaf.entries[pos].handle != handle {
		return fmt.Errorf("index %s on %s: handle %s: %w", t.name, t.relation.Name(), handle, core.ErrNotFound)
	}
	leaf.entries = append(leaf.entries[:pos], leaf.entries[pos+1:]...)
	return leaf.save(t.file)
}

// Range is not supported.
func (t *BTree) Range(min, max core.Row) ([]core.Handle, error) {
	return nil, fmt.Errorf("index %s on %s: range query: %w", t.name, t.relation.Name(), core.ErrNotImplemented)
}

// split reports a node split to the parent: the new right sibling and the
// first key it is responsible for. A nil *split means no split happened.
type split struct {
	child core.BlockID
	key   keyTuple
}

func (t *BTree) insertAt(id core.BlockID, height uint32, key keyTuple, handle core.Handle) (*split, error) {
	if height == 1 {
		return t.insertLeaf(id, key, handle)
	}
	node, err := loadInterior(t.file, id, t.profile)
	if err != nil {
		return nil, err
	}
	sp, err := t.insertAt(node.find(key), height-1, key, handle)
	if err != nil {
		return nil, err
	}
	if sp == nil {
		return nil, nil
	}

	node.insert(sp.key, sp.child)
	if node.fits() {
		return nil, node.save(t.file)
	}

	// Split the interior: the middle key moves up, its child becomes the
	// right half's first pointer.
	mid := len(node.entries) / 2
	promoted := node.entries[mid]
	page, err := t.file.GetNew()
	if err != nil {
		return nil, err
	}
	right := &interiorNode{
		id:      page.ID(),
		first:   promoted.child,
		entries: append([]interiorEntry(nil), node.entries[mid+1:]...),
	}
	node.entries = node.entries[:mid]
	if err := node.save(t.file); err != nil {
		return nil, err
	}
	if err := right.save(t.file); err != nil {
		return nil, err
	}
	return &split{child: right.id, key: promoted.key}, nil
}

func (t *BTree) insertLeaf(id core.BlockID, key keyTuple, handle core.Handle) (*split, error) {
	leaf, err := loadLeaf(t.file, id, t.profile)
	if err != nil {
		return nil, err
	}
	pos, found := leaf.search(key)
	if found {
		return nil, fmt.Errorf("index %s on %s: key %v: %w", t.name, t.relation.Name(), key, core.ErrDuplicateKey)
	}
	leaf.entries = append(leaf.entries, leafEntry{})
	copy(leaf.entries[pos+1:], leaf.entries[pos:])
	leaf.entries[pos] = leafEntry{key: key, handle: handle}

	if leaf.fits() {
		return nil, leaf.save(t.file)
	}

	mid := len(leaf.entries) / 2
	page, err := t.file.GetNew()
	if err != nil {
		return nil, err
	}
	right := &leafNode{
		id:      page.ID(),
		entries: append([]leafEntry(nil), leaf.entries[mid:]...),
	}
	leaf.entries = leaf.entries[:mid]
	if !leaf.fits() || !right.fits() {
		return nil, fmt.Errorf("index %s on %s: key too large for a leaf: %w",
			t.name, t.relation.Name(), core.ErrRowTooLarge)
	}
	if err := leaf.save(t.file); err != nil {
		return nil, err
	}
	if err := right.save(t.file); err != nil {
		return nil, err
	}
	return &split{child: right.id, key: right.entries[0].key}, nil
}

// descend walks from the root to the leaf responsible for key.
func (t *BTree) descend(key keyTuple) (*leafNode, error) {
	id := t.stat.root
	for height := t.stat.height; height > 1; height-- {
		node, err := loadInterior(t.file, id, t.profile)
		if err != nil {
			return nil, err
		}
		id = node.find(key)
	}
	return loadLeaf(t.file, id, t.profile)
}

// rowKey projects the relation row at handle onto the key columns.
func (t *BTree) rowKey(handle core.Handle) (keyTuple, error) {
	row, err := t.relation.ProjectColumns(handle, t.keyColumns)
	if err != nil {
		return nil, err
	}
	return t.tkey(row)
}

// tkey orders the values of a key dictionary by key column.
func (t *BTree) tkey(key core.Row) (keyTuple, error) {
	tuple := make(keyTuple, len(t.keyColumns))
	for i, col := range t.keyColumns {
		v, ok := key[col]
		if !ok {
			return nil, fmt.Errorf("index %s on %s: %w: %q", t.name, t.relation.Name(), core.ErrUnknownColumn, col)
		}
		if v.Type != t.profile[i] {
			return nil, fmt.Errorf("index %s on %s: key column %q wants %s, got %s: %w",
				t.name, t.relation.Name(), col, t.profile[i], v.Type, core.ErrRowShape)
		}
		tuple[i] = v
	}
	return tuple, nil
}
