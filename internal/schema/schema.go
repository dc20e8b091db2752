// Package schema compiles CUE table definitions into the statements the
// execution service runs when it is initialized.
//
// A schema file declares tables with ordered columns and optional seed rows:
//
//	tables: users: {
//		columns: [{name: "id", type: "UUID", primary_key: true}, {name: "name"}]
//		seed: [{id: "1a5e...", name: "Louie"}]
//	}
//
// Tables are provisioned in declaration order with CREATE TABLE IF NOT EXISTS,
// and seed rows are inserted with INSERT OR IGNORE so provisioning is idempotent.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed prelude.cue
var prelude string

//go:embed default.cue
var defaultSchema string

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema is an ordered set of tables.
type Schema struct {
	Tables []Table
}

// Table describes one table and the rows it is seeded with.
type Table struct {
	Name    string
	Columns []Column
	Seed    []map[string]any
}

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	Unique     bool
}

// Statement is one provisioning statement with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Default returns the built-in schema (users and orders with seed rows).
func Default() (*Schema, error) {
	return Parse("default.cue", []byte(defaultSchema))
}

// MustDefault is like Default but panics if the built-in schema does not compile.
func MustDefault() *Schema {
	sc, err := Default()
	if err != nil {
		panic(err)
	}
	return sc
}

// LoadFile reads and compiles a schema file.
func LoadFile(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(path, src)
}

// Parse compiles CUE source into a Schema.
func Parse(filename string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(prelude+"\n"+string(src), cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Compile converts a CUE value holding a top-level tables struct into a Schema.
func Compile(v cue.Value) (*Schema, error) {
	s := &Schema{}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return s, nil
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		if !identRe.MatchString(name) {
			return nil, &CompileError{
				Field:   "tables",
				Message: fmt.Sprintf("invalid table name %q", name),
				Pos:     iter.Value().Pos(),
			}
		}

		table, err := parseTable(name, iter.Value())
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, table)
	}

	return s, nil
}

func parseTable(name string, v cue.Value) (Table, error) {
	table := Table{Name: name}

	colIter, err := v.LookupPath(cue.ParsePath("columns")).List()
	if err != nil {
		return table, formatCUEError(err)
	}

	for colIter.Next() {
		col, err := parseColumn(colIter.Value())
		if err != nil {
			return table, err
		}
		table.Columns = append(table.Columns, col)
	}

	if len(table.Columns) == 0 {
		return table, &CompileError{
			Field:   fmt.Sprintf("tables.%s.columns", name),
			Message: "at least one column is required",
			Pos:     v.Pos(),
		}
	}

	seedVal := v.LookupPath(cue.ParsePath("seed"))
	if !seedVal.Exists() {
		return table, nil
	}
	seedVal, _ = seedVal.Default()

	seedIter, err := seedVal.List()
	if err != nil {
		return table, formatCUEError(err)
	}
	for seedIter.Next() {
		row, err := parseRow(seedIter.Value())
		if err != nil {
			return table, err
		}
		table.Seed = append(table.Seed, row)
	}

	return table, nil
}

func parseColumn(v cue.Value) (Column, error) {
	var col Column
	var err error

	if col.Name, err = stringField(v, "name"); err != nil {
		return col, err
	}
	if !identRe.MatchString(col.Name) {
		return col, &CompileError{
			Field:   "columns.name",
			Message: fmt.Sprintf("invalid column name %q", col.Name),
			Pos:     v.Pos(),
		}
	}
	if col.Type, err = stringField(v, "type"); err != nil {
		return col, err
	}
	if col.PrimaryKey, err = boolField(v, "primary_key"); err != nil {
		return col, err
	}
	if col.Unique, err = boolField(v, "unique"); err != nil {
		return col, err
	}
	return col, nil
}

func parseRow(v cue.Value) (map[string]any, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	row := make(map[string]any)
	for iter.Next() {
		val, err := scalar(iter.Value())
		if err != nil {
			return nil, err
		}
		row[iter.Label()] = val
	}
	return row, nil
}

// scalar converts a concrete CUE value into a SQL parameter.
func scalar(v cue.Value) (any, error) {
	v, _ = v.Default()
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.FloatKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	default:
		return nil, &CompileError{
			Field:   "seed",
			Message: fmt.Sprintf("unsupported seed value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func stringField(v cue.Value, name string) (string, error) {
	f, _ := v.LookupPath(cue.ParsePath(name)).Default()
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, name string) (bool, error) {
	f, _ := v.LookupPath(cue.ParsePath(name)).Default()
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// Statements returns the DDL and seed statements for the schema, in order.
func (s *Schema) Statements() []Statement {
	var stmts []Statement
	for _, t := range s.Tables {
		stmts = append(stmts, Statement{SQL: t.createSQL()})
		for _, row := range t.Seed {
			stmts = append(stmts, t.seedStatement(row))
		}
	}
	return stmts
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

func (t Table) createSQL() string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		def := c.Name + " " + c.Type
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", "))
}

// seedStatement inserts the row's values for the table's declared columns,
// in column order. Keys not declared as columns are ignored.
func (t Table) seedStatement(row map[string]any) Statement {
	var cols, marks []string
	var args []any
	for _, c := range t.Columns {
		v, ok := row[c.Name]
		if !ok {
			continue
		}
		cols = append(cols, c.Name)
		marks = append(marks, "?")
		args = append(args, v)
	}
	return Statement{
		SQL:  fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), strings.Join(marks, ", ")),
		Args: args,
	}
}

// CompileError is a schema error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
