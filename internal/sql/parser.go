package sql

import (
	"fmt"
	"math"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	driver "github.com/pingcap/tidb/pkg/parser/test_driver"

	"ocelot/internal/core"
)

// Parser translates SQL text into engine statements via the TiDB parser.
type Parser struct {
	p *parser.Parser
}

// NewParser returns a ready parser.
func NewParser() *Parser {
	return &Parser{p: parser.New()}
}

// Parse parses input and translates each statement. Statements the engine
// does not execute fail the whole input.
func (p *Parser) Parse(input string) ([]Stmt, error) {
	nodes, _, err := p.p.Parse(input, "", "")
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	stmts := make([]Stmt, 0, len(nodes))
	for _, node := range nodes {
		stmt, err := p.translate(node)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) translate(node ast.StmtNode) (Stmt, error) {
	switch stmt := node.(type) {
	case *ast.CreateTableStmt:
		return p.translateCreateTable(stmt)
	case *ast.CreateIndexStmt:
		return p.translateCreateIndex(stmt)
	case *ast.DropTableStmt:
		return p.translateDropTable(stmt)
	case *ast.DropIndexStmt:
		return DropIndex{Table: stmt.Table.Name.O, Index: stmt.IndexName}, nil
	case *ast.ShowStmt:
		return p.translateShow(stmt)
	case *ast.InsertStmt:
		return p.translateInsert(stmt)
	case *ast.DeleteStmt:
		return p.translateDelete(stmt)
	case *ast.SelectStmt:
		return p.translateSelect(stmt)
	default:
		return nil, fmt.Errorf("statement not supported: %T", node)
	}
}

func (p *Parser) translateCreateTable(stmt *ast.CreateTableStmt) (Stmt, error) {
	out := CreateTable{
		Table:       stmt.Table.Name.O,
		IfNotExists: stmt.IfNotExists,
	}
	for _, colDef := range stmt.Cols {
		dt, err := normalizeColumnType(colDef.Tp.String())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", colDef.Name.Name.O, err)
		}
		out.Columns = append(out.Columns, core.Column{Name: colDef.Name.Name.O, Type: dt})
	}
	if len(out.Columns) == 0 {
		return nil, fmt.Errorf("create table %q: no columns", out.Table)
	}
	return out, nil
}

// normalizeColumnType maps the parser's type strings onto the engine's
// three types. MySQL renders BOOLEAN as tinyint(1).
func normalizeColumnType(raw string) (core.DataType, error) {
	base := strings.ToLower(raw)
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}
	switch strings.TrimSpace(base) {
	case "int", "integer":
		return core.TypeInt, nil
	case "text", "varchar", "char":
		return core.TypeText, nil
	case "tinyint", "bool", "boolean":
		return core.TypeBoolean, nil
	default:
		return "", fmt.Errorf("unrecognized data type %q", raw)
	}
}

func (p *Parser) translateCreateIndex(stmt *ast.CreateIndexStmt) (Stmt, error) {
	out := CreateIndex{
		Table: stmt.Table.Name.O,
		Index: stmt.IndexName,
		Type:  "BTREE",
	}
	if stmt.IndexOption != nil && stmt.IndexOption.Tp.String() != "" {
		out.Type = strings.ToUpper(stmt.IndexOption.Tp.String())
	}
	for _, part := range stmt.IndexPartSpecifications {
		if part.Column == nil {
			return nil, fmt.Errorf("create index %q: expression keys not supported", out.Index)
		}
		out.Columns = append(out.Columns, part.Column.Name.O)
	}
	if len(out.Columns) == 0 {
		return nil, fmt.Errorf("create index %q: no columns", out.Index)
	}
	return out, nil
}

func (p *Parser) translateDropTable(stmt *ast.DropTableStmt) (Stmt, error) {
	if len(stmt.Tables) != 1 {
		return nil, fmt.Errorf("drop table: exactly one table expected")
	}
	return DropTable{Table: stmt.Tables[0].Name.O, IfExists: stmt.IfExists}, nil
}

func (p *Parser) translateShow(stmt *ast.ShowStmt) (Stmt, error) {
	switch stmt.Tp {
	case ast.ShowTables:
		return ShowTables{}, nil
	case ast.ShowColumns:
		return ShowColumns{Table: stmt.Table.Name.O}, nil
	case ast.ShowIndex:
		return ShowIndex{Table: stmt.Table.Name.O}, nil
	default:
		return nil, fmt.Errorf("show statement not supported")
	}
}

func (p *Parser) translateInsert(stmt *ast.InsertStmt) (Stmt, error) {
	table, err := tableNameOf(stmt.Table)
	if err != nil {
		return nil, err
	}
	out := Insert{Table: table}
	for _, col := range stmt.Columns {
		out.Columns = append(out.Columns, col.Name.O)
	}
	for _, list := range stmt.Lists {
		values := make([]core.Value, 0, len(list))
		for _, expr := range list {
			v, err := literalValue(expr)
			if err != nil {
				return nil, fmt.Errorf("insert into %q: %w", table, err)
			}
			values = append(values, v)
		}
		out.Rows = append(out.Rows, values)
	}
	if len(out.Rows) == 0 {
		return nil, fmt.Errorf("insert into %q: no values", table)
	}
	return out, nil
}

func (p *Parser) translateDelete(stmt *ast.DeleteStmt) (Stmt, error) {
	table, err := tableNameOf(stmt.TableRefs)
	if err != nil {
		return nil, err
	}
	out := Delete{Table: table}
	if stmt.Where != nil {
		where, err := whereConjunction(stmt.Where)
		if err != nil {
			return nil, err
		}
		out.Where = where
	}
	return out, nil
}

func (p *Parser) translateSelect(stmt *ast.SelectStmt) (Stmt, error) {
	if stmt.From == nil {
		return nil, fmt.Errorf("select: missing FROM clause")
	}
	table, err := tableNameOf(stmt.From)
	if err != nil {
		return nil, err
	}
	out := Select{Table: table}
	for _, field := range stmt.Fields.Fields {
		if field.WildCard != nil {
			out.Star = true
			continue
		}
		colExpr, ok := field.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, fmt.Errorf("select from %q: only column references are supported", table)
		}
		out.Columns = append(out.Columns, colExpr.Name.Name.O)
	}
	if stmt.Where != nil {
		where, err := whereConjunction(stmt.Where)
		if err != nil {
			return nil, err
		}
		out.Where = where
	}
	return out, nil
}

// whereConjunction flattens a WHERE clause into an equality map. Anything
// but a conjunction of column = literal comparisons is rejected.
func whereConjunction(expr ast.ExprNode) (core.Row, error) {
	switch e := expr.(type) {
	case *ast.ParenthesesExpr:
		return whereConjunction(e.Expr)
	case *ast.BinaryOperationExpr:
		switch e.Op {
		case opcode.LogicAnd:
			left, err := whereConjunction(e.L)
			if err != nil {
				return nil, err
			}
			right, err := whereConjunction(e.R)
			if err != nil {
				return nil, err
			}
			for name, v := range right {
				left[name] = v
			}
			return left, nil
		case opcode.EQ:
			col, ok := e.L.(*ast.ColumnNameExpr)
			if !ok {
				return nil, fmt.Errorf("where clause: %w", core.ErrUnsupportedPredicate)
			}
			v, err := literalValue(e.R)
			if err != nil {
				return nil, fmt.Errorf("where clause: %w", core.ErrUnsupportedPredicate)
			}
			return core.Row{col.Name.Name.O: v}, nil
		default:
			return nil, fmt.Errorf("where clause: operator %s: %w", e.Op, core.ErrUnsupportedPredicate)
		}
	default:
		return nil, fmt.Errorf("where clause: %w", core.ErrUnsupportedPredicate)
	}
}

// literalValue converts a literal expression into an engine value. Integer
// literals become INT, string literals TEXT; TRUE and FALSE arrive from
// the parser as integers and are coerced against the schema later.
func literalValue(expr ast.ExprNode) (core.Value, error) {
	value, ok := expr.(*driver.ValueExpr)
	if !ok {
		return core.Value{}, fmt.Errorf("literal expected, got %T", expr)
	}
	switch v := value.GetValue().(type) {
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return core.Value{}, fmt.Errorf("integer literal %d out of range", v)
		}
		return core.IntValue(int32(v)), nil
	case uint64:
		if v > math.MaxInt32 {
			return core.Value{}, fmt.Errorf("integer literal %d out of range", v)
		}
		return core.IntValue(int32(v)), nil
	case string:
		return core.TextValue(v), nil
	default:
		return core.Value{}, fmt.Errorf("unsupported literal %T", v)
	}
}

// tableNameOf digs the single table name out of a FROM or INTO clause.
// Joins and subqueries are not supported.
func tableNameOf(refs *ast.TableRefsClause) (string, error) {
	if refs == nil || refs.TableRefs == nil {
		return "", fmt.Errorf("missing table reference")
	}
	join := refs.TableRefs
	if join.Right != nil {
		return "", fmt.Errorf("joins are not supported")
	}
	source, ok := join.Left.(*ast.TableSource)
	if !ok {
		return "", fmt.Errorf("unsupported table reference %T", join.Left)
	}
	name, ok := source.Source.(*ast.TableName)
	if !ok {
		return "", fmt.Errorf("subqueries are not supported")
	}
	return name.Name.O, nil
}
