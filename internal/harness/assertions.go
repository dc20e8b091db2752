package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/query"
)

// AssertionError describes one failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nStatements:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.SQL)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. final_state assertions query through exec with bound parameters
// and are not added to the trace.
func EvaluateAssertions(ctx context.Context, exec query.Executor, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStatementCount:
			err = assertStatementCount(result.Trace, a)
		case AssertStatementContains:
			err = assertStatementContains(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(ctx, exec, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func assertStatementCount(trace []TraceEvent, a Assertion) error {
	if len(trace) != *a.Count {
		return &AssertionError{
			Type:     AssertStatementCount,
			Expected: fmt.Sprintf("%d statements", *a.Count),
			Actual:   fmt.Sprintf("%d statements", len(trace)),
			Trace:    trace,
		}
	}
	return nil
}

func assertStatementContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if strings.Contains(event.SQL, a.SQL) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertStatementContains,
		Expected: fmt.Sprintf("a statement containing %q", a.SQL),
		Actual:   "not found",
		Trace:    trace,
	}
}

// assertFinalState selects rows where every Where column equals its value,
// then checks the row count and the first row.
func assertFinalState(ctx context.Context, exec query.Executor, a Assertion) error {
	b := query.New(exec, query.WithBoundReads()).From(a.Table)

	cols := make([]string, 0, len(a.Where))
	for col := range a.Where {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		b.Where(col, "=", a.Where[col])
	}

	resp, err := b.Get(ctx)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %s", resp.Error),
		}
	}
	rows, err := resp.Rows()
	if err != nil {
		return err
	}

	if a.Count != nil && len(rows) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d rows in %s where %v", *a.Count, a.Table, a.Where),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}
	if len(a.Expect) == 0 {
		return nil
	}
	if len(rows) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %v", a.Table, a.Where),
			Actual:   "row not found",
		}
	}
	if msg := matchSubset(a.Expect, rows[0]); msg != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   msg,
		}
	}
	return nil
}
