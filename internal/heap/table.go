package heap

import (
	"errors"
	"fmt"

	"ocelot/internal/core"
	"ocelot/internal/storage"
)

// Table is the row-level API above one heap file: row validation, the
// binary row codec, row CRUD, and full-scan selection.
type Table struct {
	name   string
	schema core.Schema
	file   *storage.HeapFile
}

// NewTable returns a heap table named name with the given schema, stored
// as <name>.db inside dir.
func NewTable(dir, name string, schema core.Schema) *Table {
	return &Table{
		name:   name,
		schema: schema,
		file:   NewFileFor(dir, name),
	}
}

// NewFileFor returns the heap file a table of the given name is stored in.
func NewFileFor(dir, name string) *storage.HeapFile {
	return storage.NewHeapFile(dir, name+".db")
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table's ordered column descriptors.
func (t *Table) Schema() core.Schema { return t.schema }

// Create creates the backing heap file; it fails if the file exists.
func (t *Table) Create() error {
	return t.file.Create()
}

// CreateIfNotExists opens the backing heap file, creating it first if it
// does not exist yet.
func (t *Table) CreateIfNotExists() error {
	if err := t.file.Open(); err != nil {
		return t.Create()
	}
	return nil
}

// Drop removes the backing heap file.
func (t *Table) Drop() error {
	return t.file.Drop()
}

// Open opens the backing heap file. Opening an open table is a no-op.
func (t *Table) Open() error {
	return t.file.Open()
}

// Close closes the backing heap file.
func (t *Table) Close() error {
	return t.file.Close()
}

// Insert validates and appends a row, returning its handle. A page with no
// room triggers allocation of a new page; ErrNoRoom from a fresh page is
// fatal to the statement.
func (t *Table) Insert(row core.Row) (core.Handle, error) {
	if err := t.Open(); err != nil {
		return core.Handle{}, err
	}
	if err := t.validate(row); err != nil {
		return core.Handle{}, err
	}
	record, err := Marshal(t.schema, row)
	if err != nil {
		return core.Handle{}, err
	}

	page, err := t.file.Get(t.file.Last())
	if err != nil {
		return core.Handle{}, err
	}
	recordID, err := page.Add(record)
	if errors.Is(err, core.ErrNoRoom) {
		page, err = t.file.GetNew()
		if err != nil {
			return core.Handle{}, err
		}
		recordID, err = page.Add(record)
	}
	if err != nil {
		return core.Handle{}, err
	}
	if err := t.file.Put(page); err != nil {
		return core.Handle{}, err
	}
	return core.Handle{Block: page.ID(), Record: recordID}, nil
}

// Update re-marshals the row at handle with the given column values
// applied. Index maintenance is not wired to updates.
func (t *Table) Update(handle core.Handle, values core.Row) error {
	if err := t.Open(); err != nil {
		return err
	}
	row, err := t.Project(handle)
	if err != nil {
		return err
	}
	for name, v := range values {
		if !t.schema.Has(name) {
			return fmt.Errorf("table %s: %w: %q", t.name, core.ErrUnknownColumn, name)
		}
		row[name] = v
	}
	if err := t.validate(row); err != nil {
		return err
	}
	record, err := Marshal(t.schema, row)
	if err != nil {
		return err
	}
	page, err := t.file.Get(handle.Block)
	if err != nil {
		return err
	}
	if err := page.Put(handle.Record, record); err != nil {
		return err
	}
	return t.file.Put(page)
}

// Delete removes the row at handle.
func (t *Table) Delete(handle core.Handle) error {
	if err := t.Open(); err != nil {
		return err
	}
	page, err := t.file.Get(handle.Block)
	if err != nil {
		return err
	}
	if err := page.Del(handle.Record); err != nil {
		return err
	}
	return t.file.Put(page)
}

// Select returns the handles of all live rows, in (block, record) order.
func (t *Table) Select() ([]core.Handle, error) {
	return t.SelectWhere(nil)
}

// SelectWhere returns the handles of rows whose projection onto the keys
// of where equals where. A nil where selects every row.
func (t *Table) SelectWhere(where core.Row) ([]core.Handle, error) {
	if err := t.Open(); err != nil {
		return nil, err
	}
	var handles []core.Handle
	for _, blockID := range t.file.BlockIDs() {
		page, err := t.file.Get(blockID)
		if err != nil {
			return nil, err
		}
		for _, recordID := range page.IDs() {
			handle := core.Handle{Block: blockID, Record: recordID}
			if where != nil {
				ok, err := t.Matches(handle, where)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			handles = append(handles, handle)
		}
	}
	return handles, nil
}

// Matches reports whether the row at handle satisfies the equality
// conjunction where.
func (t *Table) Matches(handle core.Handle, where core.Row) (bool, error) {
	row, err := t.Project(handle)
	if err != nil {
		return false, err
	}
	return row.Matches(where), nil
}

// Project returns the full row at handle.
func (t *Table) Project(handle core.Handle) (core.Row, error) {
	if err := t.Open(); err != nil {
		return nil, err
	}
	page, err := t.file.Get(handle.Block)
	if err != nil {
		return nil, err
	}
	record, err := page.Get(handle.Record)
	if err != nil {
		return nil, err
	}
	return Unmarshal(t.schema, record)
}

// ProjectColumns returns the subset row at handle for the named columns.
func (t *Table) ProjectColumns(handle core.Handle, columns []string) (core.Row, error) {
	row, err := t.Project(handle)
	if err != nil {
		return nil, err
	}
	sub, err := row.Project(columns)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	return sub, nil
}

// validate checks that row has exactly one correctly-typed entry per
// schema column.
func (t *Table) validate(row core.Row) error {
	if len(row) != len(t.schema) {
		return fmt.Errorf("table %s: row has %d values, schema has %d columns: %w",
			t.name, len(row), len(t.schema), core.ErrRowShape)
	}
	for _, col := range t.schema {
		v, ok := row[col.Name]
		if !ok {
			return fmt.Errorf("table %s: missing value for %q: %w", t.name, col.Name, core.ErrRowShape)
		}
		if v.Type != col.Type {
			return fmt.Errorf("table %s: column %q wants %s, got %s: %w",
				t.name, col.Name, col.Type, v.Type, core.ErrRowShape)
		}
	}
	return nil
}
