// Package catalog maintains the self-describing schema metadata: the
// _tables, _columns, and _indices heap tables, plus caches of open user
// tables and indexes. The three catalog tables are created on first use
// and never dropped.
package catalog

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ocelot/internal/core"
	"ocelot/internal/heap"
	"ocelot/internal/index"
)

// Names of the catalog tables.
const (
	TablesTable  = "_tables"
	ColumnsTable = "_columns"
	IndicesTable = "_indices"
)

// IsSchemaTable reports whether name is one of the three catalog tables.
func IsSchemaTable(name string) bool {
	return name == TablesTable || name == ColumnsTable || name == IndicesTable
}

func tablesSchema() core.Schema {
	return core.Schema{
		{Name: "table_name", Type: core.TypeText},
	}
}

func columnsSchema() core.Schema {
	return core.Schema{
		{Name: "table_name", Type: core.TypeText},
		{Name: "column_name", Type: core.TypeText},
		{Name: "data_type", Type: core.TypeText},
	}
}

func indicesSchema() core.Schema {
	return core.Schema{
		{Name: "table_name", Type: core.TypeText},
		{Name: "index_name", Type: core.TypeText},
		{Name: "seq_in_index", Type: core.TypeInt},
		{Name: "column_name", Type: core.TypeText},
		{Name: "index_type", Type: core.TypeText},
		{Name: "is_unique", Type: core.TypeBoolean},
	}
}

// Catalog is the process-scoped schema resource. It owns the catalog
// tables and caches reconstructed user tables and indexes. Access is not
// synchronized: statement execution is strictly serial.
type Catalog struct {
	dir     string
	log     *zap.Logger
	tables  map[string]*heap.Table
	indexes map[string]index.Index
	ready   bool
}

// New returns a catalog rooted at the database directory dir.
func New(dir string, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		dir:     dir,
		log:     log,
		tables:  make(map[string]*heap.Table),
		indexes: make(map[string]index.Index),
	}
}

// Dir returns the database directory.
func (c *Catalog) Dir() string { return c.dir }

// Init bootstraps the three catalog tables, creating their heap files on
// first use. It is idempotent.
func (c *Catalog) Init() error {
	if c.ready {
		return nil
	}
	for _, boot := range []struct {
		name   string
		schema core.Schema
	}{
		{TablesTable, tablesSchema()},
		{ColumnsTable, columnsSchema()},
		{IndicesTable, indicesSchema()},
	} {
		table := heap.NewTable(c.dir, boot.name, boot.schema)
		if err := table.CreateIfNotExists(); err != nil {
			return fmt.Errorf("catalog: bootstrap %s: %w", boot.name, err)
		}
		c.tables[boot.name] = table
	}
	c.ready = true
	c.log.Debug("catalog initialized", zap.String("dir", c.dir))
	return nil
}

// Tables returns the _tables catalog table.
func (c *Catalog) Tables() *heap.Table { return c.tables[TablesTable] }

// Columns returns the _columns catalog table.
func (c *Catalog) Columns() *heap.Table { return c.tables[ColumnsTable] }

// Indices returns the _indices catalog table.
func (c *Catalog) Indices() *heap.Table { return c.tables[IndicesTable] }

// GetTable returns the heap table for name. Catalog tables carry their
// fixed schemas; user table schemas are reconstructed from _columns in
// insertion order. The table's heap file is not touched until an
// operation opens it.
func (c *Catalog) GetTable(name string) (*heap.Table, error) {
	if err := c.Init(); err != nil {
		return nil, err
	}
	if table, ok := c.tables[name]; ok {
		return table, nil
	}

	schema, err := c.tableSchema(name)
	if err != nil {
		return nil, err
	}
	table := heap.NewTable(c.dir, name, schema)
	c.tables[name] = table
	return table, nil
}

// tableSchema reconstructs a user table's schema by selecting its rows
// from _columns. Handles ascend in insertion order, which defines column
// order.
func (c *Catalog) tableSchema(name string) (core.Schema, error) {
	columns := c.Columns()
	handles, err := columns.SelectWhere(core.Row{"table_name": core.TextValue(name)})
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("catalog: %w: %q", core.ErrUnknownTable, name)
	}
	schema := make(core.Schema, 0, len(handles))
	for _, handle := range handles {
		row, err := columns.Project(handle)
		if err != nil {
			return nil, err
		}
		dt, err := core.ParseDataType(row["data_type"].Text)
		if err != nil {
			return nil, fmt.Errorf("catalog: table %q: %w", name, err)
		}
		schema = append(schema, core.Column{Name: row["column_name"].Text, Type: dt})
	}
	return schema, nil
}

// TableRegistered reports whether a row for name exists in _tables.
func (c *Catalog) TableRegistered(name string) (bool, error) {
	if err := c.Init(); err != nil {
		return false, err
	}
	if IsSchemaTable(name) {
		return true, nil
	}
	handles, err := c.Tables().SelectWhere(core.Row{"table_name": core.TextValue(name)})
	if err != nil {
		return false, err
	}
	return len(handles) > 0, nil
}

// EvictTable drops a table from the cache after DROP TABLE. Catalog
// tables are never evicted.
func (c *Catalog) EvictTable(name string) {
	if IsSchemaTable(name) {
		return
	}
	delete(c.tables, name)
}

// GetIndex reconstructs an index from its _indices rows, filtered by
// (table, name) and sorted by seq_in_index, and opens the cached instance
// lazily on use.
func (c *Catalog) GetIndex(tableName, indexName string) (index.Index, error) {
	if err := c.Init(); err != nil {
		return nil, err
	}
	cacheKey := tableName + "." + indexName
	if idx, ok := c.indexes[cacheKey]; ok {
		return idx, nil
	}

	rows, err := c.indexRows(tableName, indexName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog: %w: %q on %q", core.ErrUnknownIndex, indexName, tableName)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i]["seq_in_index"].Int < rows[j]["seq_in_index"].Int
	})

	keyColumns := make([]string, len(rows))
	for i, row := range rows {
		keyColumns[i] = row["column_name"].Text
	}
	table, err := c.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	idx, err := index.New(rows[0]["index_type"].Text, table, c.dir, indexName, keyColumns, rows[0]["is_unique"].Bool)
	if err != nil {
		return nil, err
	}
	c.indexes[cacheKey] = idx
	return idx, nil
}

func (c *Catalog) indexRows(tableName, indexName string) ([]core.Row, error) {
	indices := c.Indices()
	handles, err := indices.SelectWhere(core.Row{
		"table_name": core.TextValue(tableName),
		"index_name": core.TextValue(indexName),
	})
	if err != nil {
		return nil, err
	}
	rows := make([]core.Row, 0, len(handles))
	for _, handle := range handles {
		row, err := indices.Project(handle)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// IndexNames returns the distinct index names on a table; order is
// unspecified.
func (c *Catalog) IndexNames(tableName string) ([]string, error) {
	if err := c.Init(); err != nil {
		return nil, err
	}
	indices := c.Indices()
	handles, err := indices.SelectWhere(core.Row{"table_name": core.TextValue(tableName)})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, handle := range handles {
		row, err := indices.ProjectColumns(handle, []string{"index_name"})
		if err != nil {
			return nil, err
		}
		name := row["index_name"].Text
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// EvictIndex drops an index from the cache after DROP INDEX.
func (c *Catalog) EvictIndex(tableName, indexName string) {
	delete(c.indexes, tableName+"."+indexName)
}

// Close closes every cached table and index. The catalog can be
// re-initialized afterwards.
func (c *Catalog) Close() error {
	var firstErr error
	for _, idx := range c.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, table := range c.tables {
		if err := table.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.tables = make(map[string]*heap.Table)
	c.indexes = make(map[string]index.Index)
	c.ready = false
	return firstErr
}
