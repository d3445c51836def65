package core

import "errors"

// Error kinds surfaced by the storage and execution stack. Layers wrap these
// with context via fmt.Errorf and callers match with errors.Is.
var (
	// ErrNoRoom means a page cannot fit a record or an update.
	ErrNoRoom = errors.New("no room in page")

	// ErrNotFound means a lookup of a missing block, record, or index
	// entry. Missing tables, indexes, and columns have their own errors
	// below.
	ErrNotFound = errors.New("not found")

	// ErrUnknownTable means the catalog has no entry for the table.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownIndex means the catalog has no entry for the index.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrUnknownColumn means a column name is not in the schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRowShape means a row does not match its table schema.
	ErrRowShape = errors.New("row does not match schema")

	// ErrRowTooLarge means a marshaled row would exceed page capacity.
	ErrRowTooLarge = errors.New("row too large")

	// ErrDuplicateKey means a unique index already holds the key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrUnsupportedPredicate means a WHERE clause is not a conjunction of
	// column = literal comparisons.
	ErrUnsupportedPredicate = errors.New("unsupported predicate")

	// ErrCannotDropSchema means an attempt to drop a catalog table.
	ErrCannotDropSchema = errors.New("cannot drop a schema table")

	// ErrNonUniqueUnsupported means a B-tree index was requested with
	// unique=false.
	ErrNonUniqueUnsupported = errors.New("btree index must have unique key")

	// ErrUnsupportedIndexType means an index type other than BTREE.
	ErrUnsupportedIndexType = errors.New("unsupported index type")

	// ErrNotImplemented covers range queries and update-through-index.
	ErrNotImplemented = errors.New("not implemented")
)
