package exec

import (
	"fmt"

	"go.uber.org/zap"

	"ocelot/internal/catalog"
	"ocelot/internal/core"
	"ocelot/internal/index"
	"ocelot/internal/sql"
)

// Executor dispatches parsed statements to the catalog and to evaluation
// plans. Execution is strictly serial.
type Executor struct {
	cat *catalog.Catalog
	log *zap.Logger
}

// New returns an executor over the given catalog.
func New(cat *catalog.Catalog, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{cat: cat, log: log}
}

// Execute runs one statement. Errors are wrapped with the statement kind;
// partial catalog writes are compensated best-effort before the error
// surfaces.
func (e *Executor) Execute(stmt sql.Stmt) (*core.QueryResult, error) {
	if err := e.cat.Init(); err != nil {
		return nil, fmt.Errorf("%s: %w", stmt.Kind(), err)
	}
	e.log.Debug("executing statement", zap.String("kind", stmt.Kind()))

	var (
		result *core.QueryResult
		err    error
	)
	switch s := stmt.(type) {
	case sql.CreateTable:
		result, err = e.createTable(s)
	case sql.CreateIndex:
		result, err = e.createIndex(s)
	case sql.DropTable:
		result, err = e.dropTable(s)
	case sql.DropIndex:
		result, err = e.dropIndex(s)
	case sql.ShowTables:
		result, err = e.showTables()
	case sql.ShowColumns:
		result, err = e.showColumns(s)
	case sql.ShowIndex:
		result, err = e.showIndex(s)
	case sql.Insert:
		result, err = e.insert(s)
	case sql.Delete:
		result, err = e.delete(s)
	case sql.Select:
		result, err = e.selectRows(s)
	default:
		err = fmt.Errorf("statement not implemented: %T", stmt)
	}
	if err != nil {
		e.log.Warn("statement failed", zap.String("kind", stmt.Kind()), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", stmt.Kind(), err)
	}
	return result, nil
}

func (e *Executor) createTable(stmt sql.CreateTable) (*core.QueryResult, error) {
	registered, err := e.cat.TableRegistered(stmt.Table)
	if err != nil {
		return nil, err
	}
	if registered {
		if stmt.IfNotExists {
			return core.MessageResult(fmt.Sprintf("table %s already exists", stmt.Table)), nil
		}
		return nil, fmt.Errorf("table %q already exists", stmt.Table)
	}

	tables := e.cat.Tables()
	tableHandle, err := tables.Insert(core.Row{"table_name": core.TextValue(stmt.Table)})
	if err != nil {
		return nil, err
	}

	columns := e.cat.Columns()
	var columnHandles []core.Handle
	err = func() error {
		for _, col := range stmt.Columns {
			handle, err := columns.Insert(core.Row{
				"table_name":  core.TextValue(stmt.Table),
				"column_name": core.TextValue(col.Name),
				"data_type":   core.TextValue(string(col.Type)),
			})
			if err != nil {
				return err
			}
			columnHandles = append(columnHandles, handle)
		}
		table, err := e.cat.GetTable(stmt.Table)
		if err != nil {
			return err
		}
		if stmt.IfNotExists {
			return table.CreateIfNotExists()
		}
		return table.Create()
	}()
	if err != nil {
		// Best-effort compensation: undo _columns, then _tables, and
		// propagate the original error.
		for _, handle := range columnHandles {
			_ = columns.Delete(handle)
		}
		_ = tables.Delete(tableHandle)
		e.cat.EvictTable(stmt.Table)
		return nil, err
	}
	return core.MessageResult("created " + stmt.Table), nil
}

func (e *Executor) createIndex(stmt sql.CreateIndex) (*core.QueryResult, error) {
	table, err := e.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	schema := table.Schema()
	for _, col := range stmt.Columns {
		if !schema.Has(col) {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, col)
		}
	}
	if !index.Supported(stmt.Type) {
		return nil, fmt.Errorf("%q: %w", stmt.Type, core.ErrUnsupportedIndexType)
	}
	existing, err := e.cat.IndexNames(stmt.Table)
	if err != nil {
		return nil, err
	}
	for _, name := range existing {
		if name == stmt.Index {
			return nil, fmt.Errorf("index %q on %q already exists", stmt.Index, stmt.Table)
		}
	}

	indices := e.cat.Indices()
	var rowHandles []core.Handle
	err = func() error {
		for seq, col := range stmt.Columns {
			handle, err := indices.Insert(core.Row{
				"table_name":   core.TextValue(stmt.Table),
				"index_name":   core.TextValue(stmt.Index),
				"seq_in_index": core.IntValue(int32(seq + 1)),
				"column_name":  core.TextValue(col),
				"index_type":   core.TextValue(stmt.Type),
				"is_unique":    core.BoolValue(stmt.Type == "BTREE"),
			})
			if err != nil {
				return err
			}
			rowHandles = append(rowHandles, handle)
		}
		idx, err := e.cat.GetIndex(stmt.Table, stmt.Index)
		if err != nil {
			return err
		}
		return idx.Create()
	}()
	if err != nil {
		for _, handle := range rowHandles {
			_ = indices.Delete(handle)
		}
		e.cat.EvictIndex(stmt.Table, stmt.Index)
		return nil, err
	}
	return core.MessageResult("created index " + stmt.Index), nil
}

func (e *Executor) dropTable(stmt sql.DropTable) (*core.QueryResult, error) {
	if catalog.IsSchemaTable(stmt.Table) {
		return nil, fmt.Errorf("%q: %w", stmt.Table, core.ErrCannotDropSchema)
	}
	registered, err := e.cat.TableRegistered(stmt.Table)
	if err != nil {
		return nil, err
	}
	if !registered {
		if stmt.IfExists {
			return core.MessageResult(fmt.Sprintf("table %s does not exist", stmt.Table)), nil
		}
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownTable, stmt.Table)
	}
	table, err := e.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	// Index rows first, then column rows, then the file, then the table
	// row.
	indexNames, err := e.cat.IndexNames(stmt.Table)
	if err != nil {
		return nil, err
	}
	for _, indexName := range indexNames {
		if err := e.removeIndex(stmt.Table, indexName); err != nil {
			return nil, err
		}
	}

	where := core.Row{"table_name": core.TextValue(stmt.Table)}
	columns := e.cat.Columns()
	columnHandles, err := columns.SelectWhere(where)
	if err != nil {
		return nil, err
	}
	for _, handle := range columnHandles {
		if err := columns.Delete(handle); err != nil {
			return nil, err
		}
	}

	if err := table.Drop(); err != nil {
		return nil, err
	}
	e.cat.EvictTable(stmt.Table)

	tables := e.cat.Tables()
	tableHandles, err := tables.SelectWhere(where)
	if err != nil {
		return nil, err
	}
	for _, handle := range tableHandles {
		if err := tables.Delete(handle); err != nil {
			return nil, err
		}
	}
	return core.MessageResult("dropped " + stmt.Table), nil
}

func (e *Executor) dropIndex(stmt sql.DropIndex) (*core.QueryResult, error) {
	if err := e.removeIndex(stmt.Table, stmt.Index); err != nil {
		return nil, err
	}
	return core.MessageResult("dropped index " + stmt.Index), nil
}

// removeIndex deletes an index's _indices rows and drops its backing
// file.
func (e *Executor) removeIndex(tableName, indexName string) error {
	idx, err := e.cat.GetIndex(tableName, indexName)
	if err != nil {
		return err
	}
	indices := e.cat.Indices()
	handles, err := indices.SelectWhere(core.Row{
		"table_name": core.TextValue(tableName),
		"index_name": core.TextValue(indexName),
	})
	if err != nil {
		return err
	}
	for _, handle := range handles {
		if err := indices.Delete(handle); err != nil {
			return err
		}
	}
	if err := idx.Drop(); err != nil {
		return err
	}
	e.cat.EvictIndex(tableName, indexName)
	return nil
}

func (e *Executor) showTables() (*core.QueryResult, error) {
	tables := e.cat.Tables()
	handles, err := tables.Select()
	if err != nil {
		return nil, err
	}
	var rows []core.Row
	for _, handle := range handles {
		row, err := tables.Project(handle)
		if err != nil {
			return nil, err
		}
		if catalog.IsSchemaTable(row["table_name"].Text) {
			continue
		}
		rows = append(rows, row)
	}
	return &core.QueryResult{
		Columns: []string{"table_name"},
		Types:   []core.DataType{core.TypeText},
		Rows:    rows,
		Message: fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

func (e *Executor) showColumns(stmt sql.ShowColumns) (*core.QueryResult, error) {
	columns := e.cat.Columns()
	handles, err := columns.SelectWhere(core.Row{"table_name": core.TextValue(stmt.Table)})
	if err != nil {
		return nil, err
	}
	rows := make([]core.Row, 0, len(handles))
	for _, handle := range handles {
		row, err := columns.Project(handle)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return &core.QueryResult{
		Columns: []string{"table_name", "column_name", "data_type"},
		Types:   []core.DataType{core.TypeText, core.TypeText, core.TypeText},
		Rows:    rows,
		Message: fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

func (e *Executor) showIndex(stmt sql.ShowIndex) (*core.QueryResult, error) {
	indices := e.cat.Indices()
	handles, err := indices.SelectWhere(core.Row{"table_name": core.TextValue(stmt.Table)})
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
	return &core.QueryResult{
		Columns: []string{"table_name", "index_name", "seq_in_index", "column_name", "index_type", "is_unique"},
		Types: []core.DataType{
			core.TypeText, core.TypeText, core.TypeInt, core.TypeText, core.TypeText, core.TypeBoolean,
		},
		Rows:    rows,
		Message: fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

func (e *Executor) insert(stmt sql.Insert) (*core.QueryResult, error) {
	table, err := e.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	schema := table.Schema()
	columns := stmt.Columns
	if len(columns) == 0 {
		columns = schema.Names()
	}

	indexNames, err := e.cat.IndexNames(stmt.Table)
	if err != nil {
		return nil, err
	}

	inserted := 0
	for _, values := range stmt.Rows {
		if len(values) != len(columns) {
			return nil, fmt.Errorf("%d values for %d columns: %w", len(values), len(columns), core.ErrRowShape)
		}
		row := make(core.Row, len(columns))
		for i, col := range columns {
			dt, err := schema.TypeOf(col)
			if err != nil {
				return nil, err
			}
			row[col] = coerce(values[i], dt)
		}
		handle, err := table.Insert(row)
		if err != nil {
			return nil, err
		}
		if err := e.maintainInsert(stmt.Table, indexNames, handle); err != nil {
			_ = table.Delete(handle)
			return nil, err
		}
		inserted++
	}

	msg := fmt.Sprintf("successfully inserted %d row%s into %s", inserted, plural(inserted), stmt.Table)
	if len(indexNames) > 0 {
		msg += fmt.Sprintf(" and %d ind%s", len(indexNames), pluralIndex(len(indexNames)))
	}
	return core.MessageResult(msg), nil
}

// maintainInsert indexes a new handle in every index of the table,
// unwinding the indexes already touched when one fails.
func (e *Executor) maintainInsert(tableName string, indexNames []string, handle core.Handle) error {
	for i, indexName := range indexNames {
		idx, err := e.cat.GetIndex(tableName, indexName)
		if err == nil {
			err = idx.Insert(handle)
		}
		if err != nil {
			for _, done := range indexNames[:i] {
				if idx, undoErr := e.cat.GetIndex(tableName, done); undoErr == nil {
					_ = idx.Delete(handle)
				}
			}
			return err
		}
	}
	return nil
}

func (e *Executor) delete(stmt sql.Delete) (*core.QueryResult, error) {
	table, err := e.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	var plan Node = &TableScan{Table: table}
	if stmt.Where != nil {
		where, err := normalizeWhere(table.Schema(), stmt.Where)
		if err != nil {
			return nil, err
		}
		plan = &Select{Where: where, Child: plan}
	}
	plan, err = Optimize(plan, e.cat)
	if err != nil {
		return nil, err
	}
	_, handles, err := plan.Pipeline()
	if err != nil {
		return nil, err
	}

	indexNames, err := e.cat.IndexNames(stmt.Table)
	if err != nil {
		return nil, err
	}
	deleted := 0
	for _, handle := range handles {
		for _, indexName := range indexNames {
			idx, err := e.cat.GetIndex(stmt.Table, indexName)
			if err != nil {
				return nil, err
			}
			if err := idx.Delete(handle); err != nil {
				return nil, err
			}
		}
		if err := table.Delete(handle); err != nil {
			return nil, err
		}
		deleted++
	}

	msg := fmt.Sprintf("successfully deleted %d row%s from %s", deleted, plural(deleted), stmt.Table)
	if len(indexNames) > 0 {
		msg += fmt.Sprintf(" and %d ind%s", len(indexNames), pluralIndex(len(indexNames)))
	}
	return core.MessageResult(msg), nil
}

func (e *Executor) selectRows(stmt sql.Select) (*core.QueryResult, error) {
	table, err := e.cat.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	schema := table.Schema()

	columns := make([]string, 0, len(schema))
	if stmt.Star {
		columns = append(columns, schema.Names()...)
	}
	columns = append(columns, stmt.Columns...)
	projected, err := schema.Project(columns)
	if err != nil {
		return nil, err
	}

	var plan Node = &TableScan{Table: table}
	if stmt.Where != nil {
		where, err := normalizeWhere(schema, stmt.Where)
		if err != nil {
			return nil, err
		}
		plan = &Select{Where: where, Child: plan}
	}
	plan = &Project{Columns: columns, Child: plan}

	plan, err = Optimize(plan, e.cat)
	if err != nil {
		return nil, err
	}
	rows, err := plan.Evaluate()
	if err != nil {
		return nil, err
	}

	types := make([]core.DataType, len(projected))
	for i, col := range projected {
		types[i] = col.Type
	}
	return &core.QueryResult{
		Columns: columns,
		Types:   types,
		Rows:    rows,
		Message: fmt.Sprintf("successfully returned %d rows", len(rows)),
	}, nil
}

// normalizeWhere checks the conjunction's columns against the schema and
// coerces literals to the column types, so BOOLEAN comparisons written as
// 0/1/TRUE/FALSE match stored values.
func normalizeWhere(schema core.Schema, where core.Row) (core.Row, error) {
	out := make(core.Row, len(where))
	for col, v := range where {
		dt, err := schema.TypeOf(col)
		if err != nil {
			return nil, err
		}
		coerced := coerce(v, dt)
		if coerced.Type != dt {
			return nil, fmt.Errorf("where clause: column %q wants %s, got %s: %w",
				col, dt, v.Type, core.ErrRowShape)
		}
		out[col] = coerced
	}
	return out, nil
}

// coerce adapts a literal to a column type where the SQL layer is lossy:
// the parser delivers TRUE and FALSE as integers.
func coerce(v core.Value, dt core.DataType) core.Value {
	if dt == core.TypeBoolean && v.Type == core.TypeInt && (v.Int == 0 || v.Int == 1) {
		return core.BoolValue(v.Int == 1)
	}
	return v
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func pluralIndex(n int) string {
	if n == 1 {
		return "ex"
	}
	return "ices"
}
