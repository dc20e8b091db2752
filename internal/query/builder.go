// Package query provides a fluent builder that turns chained calls into SQL
// and runs it on an execution service.
//
// A chain starts with From (read) or To (write), accumulates conditions, and
// ends with one terminal operation: Get, Find, Create, Update, Delete or
// Paginate.
//
//	conn, _ := shared.Get(ctx)
//	page, err := query.New(conn).From("users").Where("age", ">=", 34).Paginate(ctx, 20, 1)
//
// Reads inline their values as quoted literals unless WithBoundReads is set.
// Inlined values are not escaped. Writes are always parameterized.
//
// A Builder is not safe for concurrent use, and a chain must reach its
// terminal operation before the same Builder starts another chain.
package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/bridge"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/ident"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/queryir"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/querysql"
)

// Executor runs one SQL statement. *bridge.Conn implements it.
type Executor interface {
	Execute(ctx context.Context, sql string, params ...any) (*protocol.Response, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithDebug logs every statement a terminal operation sends, with its
// parameters interpolated, along with any hazards found in the chain.
func WithDebug(debug bool) Option {
	return func(b *Builder) {
		b.debug = debug
	}
}

// WithBoundReads makes reads send ? placeholders and bound parameters
// instead of inlined literals. Subqueries are still inlined.
func WithBoundReads() Option {
	return func(b *Builder) {
		b.bound = true
	}
}

// WithIDGenerator makes Create fill a missing "id" key from g.
func WithIDGenerator(g ident.Generator) Option {
	return func(b *Builder) {
		b.ids = g
	}
}

// Builder accumulates one query's intent.
//
// The Builder borrows its Executor and never closes it.
type Builder struct {
	exec  Executor
	state queryir.State
	write bool

	// err is the first precondition failure recorded while chaining. Every
	// terminal operation returns it until From starts a new chain.
	err error

	debug bool
	bound bool
	ids   ident.Generator
}

// New creates a Builder that runs statements on exec.
func New(exec Executor, opts ...Option) *Builder {
	b := &Builder{exec: exec}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open returns a Builder on the shared execution context, launching and
// initializing it on first use. Debug follows the connection's configuration.
func Open(ctx context.Context, shared *bridge.Shared, opts ...Option) (*Builder, error) {
	conn, err := shared.Get(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithDebug(conn.Debug())}, opts...)
	return New(conn, opts...), nil
}

// From starts a read chain on table. Conditions, grouping and having are
// cleared.
func (b *Builder) From(table string) *Builder {
	b.state.Reset(table)
	b.write = false
	b.err = nil
	return b
}

// To targets table for writes. Existing conditions are kept.
func (b *Builder) To(table string) *Builder {
	b.state.Table = table
	b.write = true
	return b
}

// Where adds a condition joined to the previous one with AND.
func (b *Builder) Where(column, operator string, value any) *Builder {
	b.state.Append(queryir.Condition{Column: column, Operator: operator, Value: value})
	return b
}

// OrWhere adds a condition joined to the previous one with OR.
//
// Without a prior condition the call records a *UsageError that terminal
// operations return until the next From.
func (b *Builder) OrWhere(column, operator string, value any) *Builder {
	if !b.state.Filtered() {
		b.fail(usage("OrWhere", ErrDanglingOr))
		return b
	}
	b.state.Append(queryir.Or, queryir.Condition{Column: column, Operator: operator, Value: value})
	return b
}

// WhereRaw adds a SQL fragment verbatim, joined with AND.
func (b *Builder) WhereRaw(fragment string) *Builder {
	b.state.Append(queryir.Raw{SQL: fragment})
	return b
}

// WhereSub adds "<column> <operator> (<subquery>)". fn populates a nested
// builder that shares this builder's executor but cannot run anything.
func (b *Builder) WhereSub(column, operator string, fn func(Subquery)) *Builder {
	sql, err := b.subquery(fn)
	if err != nil {
		b.fail(err)
		return b
	}
	b.state.Append(queryir.Raw{SQL: fmt.Sprintf("%s %s (%s)", column, operator, sql)})
	return b
}

// WhereExists adds "EXISTS (<subquery>)".
func (b *Builder) WhereExists(fn func(Subquery)) *Builder {
	sql, err := b.subquery(fn)
	if err != nil {
		b.fail(err)
		return b
	}
	b.state.Append(queryir.Raw{SQL: fmt.Sprintf("EXISTS (%s)", sql)})
	return b
}

// GroupBy sets the GROUP BY column.
func (b *Builder) GroupBy(column string) *Builder {
	b.state.GroupBy = column
	return b
}

// Having sets the HAVING condition.
func (b *Builder) Having(column, operator string, value any) *Builder {
	b.state.Having = &queryir.Condition{Column: column, Operator: operator, Value: value}
	return b
}

// ToSQL renders the current chain with inlined literals.
func (b *Builder) ToSQL() string {
	return querysql.Compile(b.state)
}

// Build renders the statement Get would send and its parameters.
func (b *Builder) Build() (string, []any) {
	if b.bound {
		return querysql.CompileBound(b.state)
	}
	return querysql.Compile(b.state), nil
}

// State returns a copy of the accumulated intent.
func (b *Builder) State() queryir.State {
	return b.state.Clone()
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// check returns the recorded chain error or a missing-table error. The
// recorded error stays in place; only From clears it.
func (b *Builder) check(op string, needTarget bool) error {
	if b.err != nil {
		return b.err
	}
	if b.state.Table == "" {
		return usage(op, ErrNoTable)
	}
	if needTarget && !b.write {
		return usage(op, ErrNoTarget)
	}
	return nil
}

func (b *Builder) subquery(fn func(Subquery)) (string, error) {
	nested := &subquery{b: &Builder{exec: b.exec, bound: false}}
	fn(nested)
	if err := nested.b.err; err != nil {
		return "", err
	}
	if nested.b.state.Table == "" {
		return "", usage("subquery", ErrNoTable)
	}
	return nested.ToSQL(), nil
}

// send runs one statement, logging it first in debug mode.
func (b *Builder) send(ctx context.Context, sql string, params []any) (*protocol.Response, error) {
	if b.debug {
		slog.Debug("query", "table", b.state.Table, "sql", querysql.Interpolate(sql, params))
	}
	return b.exec.Execute(ctx, sql, params...)
}

// warn logs hazards in the read chain in debug mode.
func (b *Builder) warn(op string) {
	if !b.debug || b.bound {
		return
	}
	for _, w := range queryir.Validate(b.state).Warnings {
		slog.Warn("query hazard", "op", op, "warning", w)
	}
}
