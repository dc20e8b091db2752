package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioPaths(t *testing.T) []string {
	t.Helper()
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	return paths
}

func TestScenarios_Golden(t *testing.T) {
	for _, path := range scenarioPaths(t) {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_RecordsFailedExpectations(t *testing.T) {
	rows := 99
	no := false
	scenario := &Scenario{
		Name:        "wrong-expectations",
		Description: "every expectation here is wrong",
		Steps: []Step{
			{Op: OpGet, Table: "users", Expect: &Expect{Rows: &rows}},
			{Op: OpFind, Table: "users", ID: "1a5ec39c-f1fd-495b-9346-e1a47ea7d682", Expect: &Expect{Result: &no}},
			{Op: OpPaginate, Table: "users", PerPage: 1, Page: 1, Expect: &Expect{Error: "usage"}},
			{Op: OpGet, Table: "users", Where: []Where{{Column: "a", Operator: "=", Value: 1, Or: true}}},
		},
	}

	result, err := Run(context.Background(), scenario)

	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected 99 rows, got 6")
	assert.Contains(t, result.Errors[1], "expected result false")
	assert.Contains(t, result.Errors[2], "expected a usage error")
	assert.Contains(t, result.Errors[3], "unexpected error")
	assert.Len(t, result.Trace, 3)
}

func TestRun_FinalStateFailures(t *testing.T) {
	one := 1
	scenario := &Scenario{
		Name:        "final-state",
		Description: "final_state assertions that fail",
		Steps:       []Step{{Op: OpGet, Table: "orders"}},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "orders", Where: map[string]any{"type": "SALES_ORDER"}, Count: &one},
			{Type: AssertFinalState, Table: "orders", Where: map[string]any{"order_number": "SO-9"}, Expect: map[string]any{"type": "x"}},
			{Type: AssertFinalState, Table: "orders", Where: map[string]any{"order_number": "SO-1"}, Expect: map[string]any{"type": "PURCHASE_ORDER"}},
			{Type: AssertFinalState, Table: "missing"},
		},
	}

	result, err := Run(context.Background(), scenario)

	require.NoError(t, err)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "5 rows")
	assert.Contains(t, result.Errors[1], "row not found")
	assert.Contains(t, result.Errors[2], `field "type"`)
	assert.Contains(t, result.Errors[3], "query error")
	assert.Len(t, result.Trace, 1, "assertion queries are not traced")
}

func TestRun_BadSchema(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "schema file does not exist",
		Schema:      filepath.Join(t.TempDir(), "missing.cue"),
		Steps:       []Step{{Op: OpGet, Table: "users"}},
	}

	_, err := Run(context.Background(), scenario)

	assert.ErrorContains(t, err, "failed to load schema")
}

func TestLoadScenario_ResolvesSchema(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/custom-schema.yaml")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "notes.cue"), scenario.Schema)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: x\ndescription: y\nstep: []\n", "failed to parse YAML"},
		{"no name", "description: y\nsteps: [{op: get}]\n", "name is required"},
		{"no description", "name: x\nsteps: [{op: get}]\n", "description is required"},
		{"no steps", "name: x\ndescription: y\n", "steps list is required"},
		{"unknown op", "name: x\ndescription: y\nsteps: [{op: truncate}]\n", `unknown op "truncate"`},
		{"exec without sql", "name: x\ndescription: y\nsteps: [{op: exec}]\n", "exec requires sql"},
		{"bad error kind", "name: x\ndescription: y\nsteps: [{op: get, expect: {error: channel}}]\n", "unknown expected error"},
		{"count without count", "name: x\ndescription: y\nsteps: [{op: get}]\nassertions: [{type: statement_count}]\n", "requires count"},
		{"unknown assertion", "name: x\ndescription: y\nsteps: [{op: get}]\nassertions: [{type: trace_order}]\n", "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := LoadScenario(path)

			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertStatementCount,
		Expected: "2 statements",
		Actual:   "1 statements",
		Trace:    []TraceEvent{{Seq: 1, SQL: "SELECT 1"}},
	}

	msg := err.Error()

	assert.Contains(t, msg, "Assertion failed: statement_count")
	assert.Contains(t, msg, "[1] SELECT 1")
}
