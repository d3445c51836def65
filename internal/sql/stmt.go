// Package sql converts the external parser's syntax tree into the small
// statement set the executor understands. Parsing itself is delegated to
// the TiDB parser; this package only translates.
package sql

import "ocelot/internal/core"

// Stmt is one executable statement.
type Stmt interface {
	// Kind names the statement for error wrapping and logging.
	Kind() string
}

// CreateTable is CREATE TABLE <table> (<columns>).
type CreateTable struct {
	Table       string
	Columns     core.Schema
	IfNotExists bool
}

func (CreateTable) Kind() string { return "create table" }

// CreateIndex is CREATE INDEX <index> ON <table> (<columns>) [USING <type>].
type CreateIndex struct {
	Table   string
	Index   string
	Columns []string
	Type    string
}

func (CreateIndex) Kind() string { return "create index" }

// DropTable is DROP TABLE [IF EXISTS] <table>.
type DropTable struct {
	Table    string
	IfExists bool
}

func (DropTable) Kind() string { return "drop table" }

// DropIndex is DROP INDEX <index> ON <table>.
type DropIndex struct {
	Table string
	Index string
}

func (DropIndex) Kind() string { return "drop index" }

// ShowTables is SHOW TABLES.
type ShowTables struct{}

func (ShowTables) Kind() string { return "show tables" }

// ShowColumns is SHOW COLUMNS FROM <table>.
type ShowColumns struct {
	Table string
}

func (ShowColumns) Kind() string { return "show columns" }

// ShowIndex is SHOW INDEX FROM <table>.
type ShowIndex struct {
	Table string
}

func (ShowIndex) Kind() string { return "show index" }

// Insert is INSERT INTO <table> [(<columns>)] VALUES (...), (...).
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]core.Value
}

func (Insert) Kind() string { return "insert" }

// Delete is DELETE FROM <table> [WHERE <conjunction>]. A nil Where deletes
// every row.
type Delete struct {
	Table string
	Where core.Row
}

func (Delete) Kind() string { return "delete" }

// Select is SELECT <list> FROM <table> [WHERE <conjunction>]. Star expands
// to the table's columns in declaration order.
type Select struct {
	Table   string
	Columns []string
	Star    bool
	Where   core.Row
}

func (Select) Kind() string { return "select" }
