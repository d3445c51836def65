package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocelot/internal/core"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat := New(t.TempDir(), nil)
	require.NoError(t, cat.Init())
	return cat
}

// registerTable writes the metadata rows and creates the heap file the
// way the executor's CREATE TABLE does.
func registerTable(t *testing.T, cat *Catalog, name string, schema core.Schema) {
	t.Helper()
	_, err := cat.Tables().Insert(core.Row{"table_name": core.TextValue(name)})
	require.NoError(t, err)
	for _, col := range schema {
		_, err := cat.Columns().Insert(core.Row{
			"table_name":  core.TextValue(name),
			"column_name": core.TextValue(col.Name),
			"data_type":   core.TextValue(string(col.Type)),
		})
		require.NoError(t, err)
	}
	table, err := cat.GetTable(name)
	require.NoError(t, err)
	require.NoError(t, table.Create())
}

func TestInitCreatesSchemaFiles(t *testing.T) {
	dir := t.TempDir()
	cat := New(dir, nil)
	require.NoError(t, cat.Init())

	for _, name := range []string{"_tables.db", "_columns.db", "_indices.db"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestInitIsIdempotentAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	cat := New(dir, nil)
	require.NoError(t, cat.Init())
	registerTable(t, cat, "foo", core.Schema{{Name: "id", Type: core.TypeInt}})
	require.NoError(t, cat.Close())

	again := New(dir, nil)
	require.NoError(t, again.Init())
	table, err := again.GetTable("foo")
	require.NoError(t, err)
	assert.Equal(t, core.Schema{{Name: "id", Type: core.TypeInt}}, table.Schema())
}

func TestGetTableReconstructsSchemaInOrder(t *testing.T) {
	cat := newCatalog(t)
	schema := core.Schema{
		{Name: "z", Type: core.TypeText},
		{Name: "a", Type: core.TypeInt},
		{Name: "m", Type: core.TypeBoolean},
	}
	registerTable(t, cat, "ordered", schema)

	// Insertion order, not name order, defines column order.
	cat.EvictTable("ordered")
	table, err := cat.GetTable("ordered")
	require.NoError(t, err)
	assert.Equal(t, schema, table.Schema())
}

func TestGetTableUnknown(t *testing.T) {
	cat := newCatalog(t)
	_, err := cat.GetTable("missing")
	assert.ErrorIs(t, err, core.ErrUnknownTable)
}

func TestSchemaTablesHaveFixedSchemas(t *testing.T) {
	cat := newCatalog(t)
	tables, err := cat.GetTable(TablesTable)
	require.NoError(t, err)
	assert.Equal(t, []string{"table_name"}, tables.Schema().Names())

	indices, err := cat.GetTable(IndicesTable)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"table_name", "index_name", "seq_in_index", "column_name", "index_type", "is_unique"},
		indices.Schema().Names())
}

func TestGetIndexReconstruction(t *testing.T) {
	cat := newCatalog(t)
	registerTable(t, cat, "foo", core.Schema{
		{Name: "id", Type: core.TypeInt},
		{Name: "name", Type: core.TypeText},
	})

	// Rows inserted out of seq order; reconstruction must sort them.
	for _, row := range []core.Row{
		{
			"table_name":   core.TextValue("foo"),
			"index_name":   core.TextValue("fx"),
			"seq_in_index": core.IntValue(2),
			"column_name":  core.TextValue("name"),
			"index_type":   core.TextValue("BTREE"),
			"is_unique":    core.BoolValue(true),
		},
		{
			"table_name":   core.TextValue("foo"),
			"index_name":   core.TextValue("fx"),
			"seq_in_index": core.IntValue(1),
			"column_name":  core.TextValue("id"),
			"index_type":   core.TextValue("BTREE"),
			"is_unique":    core.BoolValue(true),
		},
	} {
		_, err := cat.Indices().Insert(row)
		require.NoError(t, err)
	}

	idx, err := cat.GetIndex("foo", "fx")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, idx.KeyColumns())

	names, err := cat.IndexNames("foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"fx"}, names)
}

func TestGetIndexUnknown(t *testing.T) {
	cat := newCatalog(t)
	registerTable(t, cat, "foo", core.Schema{{Name: "id", Type: core.TypeInt}})
	_, err := cat.GetIndex("foo", "nope")
	assert.ErrorIs(t, err, core.ErrUnknownIndex)
}

func TestIsSchemaTable(t *testing.T) {
	assert.True(t, IsSchemaTable("_tables"))
	assert.True(t, IsSchemaTable("_columns"))
	assert.True(t, IsSchemaTable("_indices"))
	assert.False(t, IsSchemaTable("foo"))
}
