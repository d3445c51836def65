// Package index implements secondary indexes over heap tables. The one
// concrete implementation is a unique B-tree persisted in its own
// heap-file-shaped store. Index types are looked up through a registry so
// the executor can reject anything but BTREE at CREATE INDEX time.
package index

import (
	"fmt"
	"maps"
	"sync"

	"ocelot/internal/core"
)

// Relation is the slice of table behavior an index needs: the schema to
// build its key profile, a full scan for bulk indexing, and key projection
// of single rows.
type Relation interface {
	Name() string
	Schema() core.Schema
	Select() ([]core.Handle, error)
	ProjectColumns(handle core.Handle, columns []string) (core.Row, error)
}

// Index is an ordered secondary index over a key projection of a relation.
type Index interface {
	// Name returns the index name.
	Name() string
	// KeyColumns returns the indexed columns in key order.
	KeyColumns() []string
	// Create creates the backing store and bulk-indexes every existing row
	// of the relation.
	Create() error
	// Drop removes the backing store.
	Drop() error
	Open() error
	Close() error
	// Lookup returns the handles matching the key dictionary exactly.
	Lookup(key core.Row) ([]core.Handle, error)
	// Insert indexes the row at handle; the row must exist in the relation.
	Insert(handle core.Handle) error
	// Delete removes the row at handle from the index.
	Delete(handle core.Handle) error
	// Range returns the handles between two keys. The B-tree does not
	// support range queries and fails with ErrNotImplemented.
	Range(min, max core.Row) ([]core.Handle, error)
}

// Constructor builds an index of one registered type.
type Constructor func(rel Relation, dir, name string, keyColumns []string, unique bool) (Index, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a constructor for the named index type.
func Register(typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = ctor
}

// Types returns the registered index type names.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range maps.Keys(registry) {
		names = append(names, name)
	}
	return names
}

// Supported reports whether the named index type is registered.
func Supported(typeName string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[typeName]
	return ok
}

// New builds an index of the named type, or fails with
// ErrUnsupportedIndexType when the type is not registered.
func New(typeName string, rel Relation, dir, name string, keyColumns []string, unique bool) (Index, error) {
	registryMu.RLock()
	ctor, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("index type %q: %w", typeName, core.ErrUnsupportedIndexType)
	}
	return ctor(rel, dir, name, keyColumns, unique)
}
