// Package harness runs YAML scenarios that drive query builder chains
// against a live in-memory execution context.
//
// Each scenario gets a fresh execution service seeded with its schema. Steps
// share one builder, as sequential chains do in application code. Every
// statement a step sends is recorded in the trace, which golden files pin.
package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/bridge"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/ident"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/query"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/querysql"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/schema"
)

// recorder appends every statement it forwards to the trace.
type recorder struct {
	exec   query.Executor
	result *Result
}

func (r *recorder) Execute(ctx context.Context, sql string, params ...any) (*protocol.Response, error) {
	resp, err := r.exec.Execute(ctx, sql, params...)
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Seq:     len(r.result.Trace) + 1,
		SQL:     querysql.Interpolate(sql, params),
		Success: err == nil && resp.Success,
	})
	return resp, err
}

// scriptedIDs hands out a scenario's ids in order, then falls back to
// generated ones.
type scriptedIDs struct {
	ids      []string
	fallback ident.Generator
}

func (g *scriptedIDs) Generate() string {
	if len(g.ids) == 0 {
		return g.fallback.Generate()
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id
}

// outcome is what one step produced.
type outcome struct {
	err    error
	result bool
	rows   []protocol.Row
}

// Run executes a scenario.
//
// Expectation and assertion failures are recorded in the Result. An error is
// returned only when the scenario cannot run at all: the schema does not
// load, the service does not initialize, or the channel fails.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cfg := bridge.Config{Name: ":memory:", Driver: scenario.Driver}
	if scenario.Schema != "" {
		sc, err := schema.LoadFile(scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		cfg.Schema = sc
	}

	conn := bridge.Launch(cfg)
	defer conn.Close()
	if _, err := conn.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	result := NewResult()
	rec := &recorder{exec: conn, result: result}

	opts := []query.Option{query.WithIDGenerator(&scriptedIDs{ids: scenario.IDs, fallback: ident.NewTimeSeededV4()})}
	if scenario.BoundReads {
		opts = append(opts, query.WithBoundReads())
	}
	b := query.New(rec, opts...)

	for i, step := range scenario.Steps {
		out, err := runStep(ctx, b, rec, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		for _, msg := range checkExpect(step.Expect, out) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Op, msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, conn, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep builds and runs one chain. Usage errors are part of the outcome;
// any other error aborts the scenario.
func runStep(ctx context.Context, b *query.Builder, rec *recorder, step Step) (outcome, error) {
	var out outcome

	switch step.Op {
	case OpExec:
		resp, err := rec.Execute(ctx, step.SQL, step.Params...)
		if err != nil {
			return out, err
		}
		return fromResponse(resp)

	case OpCreate, OpUpdate, OpDelete:
		if step.Table != "" {
			b.To(step.Table)
		}
	default:
		if step.Table != "" {
			b.From(step.Table)
		}
	}
	applyChain(b, step)

	var err error
	switch step.Op {
	case OpGet:
		var resp *protocol.Response
		resp, err = b.Get(ctx)
		if err == nil {
			return fromResponse(resp)
		}
	case OpFind:
		out, err = fromResult(b.Find(ctx, step.ID))
	case OpCreate:
		out, err = fromResult(b.Create(ctx, step.Data))
	case OpUpdate:
		out, err = fromResult(b.Update(ctx, step.ID, step.Data))
	case OpDelete:
		out, err = fromResult(b.Delete(ctx, step.ID))
	case OpPaginate:
		var page query.Page
		page, err = b.Paginate(ctx, step.PerPage, step.Page)
		out = outcome{result: page.Result, rows: page.Data}
	}

	if query.IsUsageError(err) {
		return outcome{err: err}, nil
	}
	return out, err
}

func applyChain(b *query.Builder, step Step) {
	for _, w := range step.Where {
		if w.Or {
			b.OrWhere(w.Column, w.Operator, w.Value)
		} else {
			b.Where(w.Column, w.Operator, w.Value)
		}
	}
	for _, raw := range step.Raw {
		b.WhereRaw(raw)
	}
	if step.GroupBy != "" {
		b.GroupBy(step.GroupBy)
	}
	if step.Having != nil {
		b.Having(step.Having.Column, step.Having.Operator, step.Having.Value)
	}
}

func fromResponse(resp *protocol.Response) (outcome, error) {
	out := outcome{result: resp.Success}
	if !resp.Success {
		return out, nil
	}
	rows, err := resp.Rows()
	if err != nil {
		return out, err
	}
	out.rows = rows
	return out, nil
}

func fromResult(res query.Result, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	out := outcome{result: res.Result}
	if res.Data != nil {
		out.rows = []protocol.Row{res.Data}
	}
	return out, nil
}

// checkExpect compares an outcome with a step's expectation.
func checkExpect(expect *Expect, out outcome) []string {
	var errs []string

	if expect != nil && expect.Error == "usage" {
		if out.err == nil {
			errs = append(errs, "expected a usage error, got none")
		}
		return errs
	}
	if out.err != nil {
		return append(errs, fmt.Sprintf("unexpected error: %v", out.err))
	}

	wantResult := true
	if expect != nil && expect.Result != nil {
		wantResult = *expect.Result
	}
	if out.result != wantResult {
		errs = append(errs, fmt.Sprintf("expected result %v, got %v", wantResult, out.result))
	}
	if expect == nil {
		return errs
	}

	if expect.Rows != nil && len(out.rows) != *expect.Rows {
		errs = append(errs, fmt.Sprintf("expected %d rows, got %d", *expect.Rows, len(out.rows)))
	}
	if expect.Data != nil {
		switch {
		case len(expect.Data) == 0 && len(out.rows) > 0:
			errs = append(errs, fmt.Sprintf("expected no row, got %v", out.rows[0]))
		case len(expect.Data) > 0 && len(out.rows) == 0:
			errs = append(errs, "expected a row, got none")
		case len(expect.Data) > 0:
			if msg := matchSubset(expect.Data, out.rows[0]); msg != "" {
				errs = append(errs, msg)
			}
		}
	}
	return errs
}

// matchSubset reports the first field of want that row does not match.
// Values compare by their printed form, so YAML 34 matches a stored int64 34.
func matchSubset(want map[string]any, row protocol.Row) string {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := row[k]
		if !ok {
			return fmt.Sprintf("field %q: missing", k)
		}
		if fmt.Sprint(want[k]) != fmt.Sprint(got) {
			return fmt.Sprintf("field %q: expected %v, got %v", k, want[k], got)
		}
	}
	return ""
}
