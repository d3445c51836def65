// Package exec builds and runs evaluation plans and dispatches parsed
// statements against the catalog.
package exec

import (
	"ocelot/internal/catalog"
	"ocelot/internal/core"
	"ocelot/internal/heap"
	"ocelot/internal/index"
)

// Node is one evaluation plan node. Pipeline produces the handle set for
// delete paths; Evaluate materializes rows. A plan owns its children;
// Optimize consumes its input tree and returns the tree to use.
type Node interface {
	Pipeline() (*heap.Table, []core.Handle, error)
	Evaluate() ([]core.Row, error)
}

// TableScan emits every handle of a table.
type TableScan struct {
	Table *heap.Table
}

func (n *TableScan) Pipeline() (*heap.Table, []core.Handle, error) {
	handles, err := n.Table.Select()
	return n.Table, handles, err
}

func (n *TableScan) Evaluate() ([]core.Row, error) {
	return materialize(n)
}

// Select filters the handles of its child by an equality conjunction.
type Select struct {
	Where core.Row
	Child Node
}

func (n *Select) Pipeline() (*heap.Table, []core.Handle, error) {
	table, handles, err := n.Child.Pipeline()
	if err != nil {
		return nil, nil, err
	}
	var kept []core.Handle
	for _, handle := range handles {
		ok, err := table.Matches(handle, n.Where)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			kept = append(kept, handle)
		}
	}
	return table, kept, nil
}

func (n *Select) Evaluate() ([]core.Row, error) {
	return materialize(n)
}

// Project materializes rows, projecting each handle of its child onto the
// named columns.
type Project struct {
	Columns []string
	Child   Node
}

func (n *Project) Pipeline() (*heap.Table, []core.Handle, error) {
	return n.Child.Pipeline()
}

func (n *Project) Evaluate() ([]core.Row, error) {
	table, handles, err := n.Child.Pipeline()
	if err != nil {
		return nil, err
	}
	rows := make([]core.Row, 0, len(handles))
	for _, handle := range handles {
		row, err := table.ProjectColumns(handle, n.Columns)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// IndexLookup emits the handles an index returns for an equality key. The
// optimizer substitutes it for a Select over a TableScan.
type IndexLookup struct {
	Table *heap.Table
	Index index.Index
	Key   core.Row
}

func (n *IndexLookup) Pipeline() (*heap.Table, []core.Handle, error) {
	handles, err := n.Index.Lookup(n.Key)
	return n.Table, handles, err
}

func (n *IndexLookup) Evaluate() ([]core.Row, error) {
	return materialize(n)
}

// materialize projects every handle of a node onto its table's full
// schema.
func materialize(n Node) ([]core.Row, error) {
	table, handles, err := n.Pipeline()
	if err != nil {
		return nil, err
	}
	rows := make([]core.Row, 0, len(handles))
	for _, handle := range handles {
		row, err := table.Project(handle)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Optimize rewrites the tree in one pass: every Select directly over a
// TableScan whose table has an index covering a subset of the WHERE
// columns becomes an IndexLookup, re-wrapped in a Select when residual
// predicates remain.
func Optimize(n Node, cat *catalog.Catalog) (Node, error) {
	switch node := n.(type) {
	case *Project:
		child, err := Optimize(node.Child, cat)
		if err != nil {
			return nil, err
		}
		node.Child = child
		return node, nil
	case *Select:
		scan, ok := node.Child.(*TableScan)
		if !ok {
			child, err := Optimize(node.Child, cat)
			if err != nil {
				return nil, err
			}
			node.Child = child
			return node, nil
		}
		lookup, residue, err := indexedLookup(scan.Table, node.Where, cat)
		if err != nil {
			return nil, err
		}
		if lookup == nil {
			return node, nil
		}
		if len(residue) > 0 {
			return &Select{Where: residue, Child: lookup}, nil
		}
		return lookup, nil
	default:
		return n, nil
	}
}

// indexedLookup finds an index of the table whose key columns are all
// bound by the equality conjunction. It returns the lookup node and the
// residual predicates, or nil when no index applies.
func indexedLookup(table *heap.Table, where core.Row, cat *catalog.Catalog) (*IndexLookup, core.Row, error) {
	names, err := cat.IndexNames(table.Name())
	if err != nil {
		return nil, nil, err
	}
	for _, name := range names {
		idx, err := cat.GetIndex(table.Name(), name)
		if err != nil {
			return nil, nil, err
		}
		key := make(core.Row, len(idx.KeyColumns()))
		covered := true
		for _, col := range idx.KeyColumns() {
			v, ok := where[col]
			if !ok {
				covered = false
				break
			}
			key[col] = v
		}
		if !covered {
			continue
		}
		residue := make(core.Row)
		for col, v := range where {
			if _, ok := key[col]; !ok {
				residue[col] = v
			}
		}
		return &IndexLookup{Table: table, Index: idx, Key: key}, residue, nil
	}
	return nil, nil, nil
}
