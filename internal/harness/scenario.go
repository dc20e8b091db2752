package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of builder chains run against a fresh in-memory
// execution context, followed by assertions on the statements sent and the
// final table contents.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a CUE schema file. Relative paths resolve against the
	// scenario file. Empty selects the built-in schema.
	Schema string `yaml:"schema,omitempty"`

	// Driver selects the SQLite driver; empty selects the default.
	Driver string `yaml:"driver,omitempty"`

	// BoundReads sends read values as bound parameters.
	BoundReads bool `yaml:"bound_reads,omitempty"`

	// IDs are handed out in order to Create steps whose data has no id.
	IDs []string `yaml:"ids,omitempty"`

	// Steps run in order on one builder.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one builder chain ending in a terminal operation.
type Step struct {
	// Op is the terminal operation: get, find, create, update, delete,
	// paginate or exec.
	Op string `yaml:"op"`

	// Table starts the chain: From for reads, To for writes.
	Table string `yaml:"table,omitempty"`

	// Where adds conditions in order.
	Where []Where `yaml:"where,omitempty"`

	// Raw adds SQL fragments verbatim after Where.
	Raw []string `yaml:"raw,omitempty"`

	GroupBy string `yaml:"group_by,omitempty"`
	Having  *Where `yaml:"having,omitempty"`

	// ID is the row id for find, update and delete.
	ID any `yaml:"id,omitempty"`

	// Data is the row for create and update.
	Data map[string]any `yaml:"data,omitempty"`

	PerPage int `yaml:"per_page,omitempty"`
	Page    int `yaml:"page,omitempty"`

	// SQL and Params are sent unchanged by exec.
	SQL    string `yaml:"sql,omitempty"`
	Params []any  `yaml:"params,omitempty"`

	// Expect validates the step's outcome. Nil means success is expected.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Where is one condition. Or joins it to the previous one with OR.
type Where struct {
	Column   string `yaml:"column"`
	Operator string `yaml:"op"`
	Value    any    `yaml:"value"`
	Or       bool   `yaml:"or,omitempty"`
}

// Expect describes a step outcome.
type Expect struct {
	// Error is "usage" when the step must fail a builder precondition.
	Error string `yaml:"error,omitempty"`

	// Result is the expected service success flag. Nil means true.
	Result *bool `yaml:"result,omitempty"`

	// Rows is the expected number of rows returned.
	Rows *int `yaml:"rows,omitempty"`

	// Data is a subset match on the first returned row. An empty map
	// expects no row.
	Data map[string]any `yaml:"data,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is statement_count, statement_contains or final_state.
	Type string `yaml:"type"`

	// Count is the expected number of statements (statement_count) or rows
	// (final_state).
	Count *int `yaml:"count,omitempty"`

	// SQL is a substring one statement must contain (statement_contains).
	SQL string `yaml:"sql,omitempty"`

	// Table and Where select rows for final_state; Expect is a subset match
	// on the first of them.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertStatementCount    = "statement_count"
	AssertStatementContains = "statement_contains"
	AssertFinalState        = "final_state"
)

// Step operations.
const (
	OpGet      = "get"
	OpFind     = "find"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpPaginate = "paginate"
	OpExec     = "exec"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected. A relative Schema path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpGet, OpFind, OpCreate, OpUpdate, OpDelete, OpPaginate:
		case OpExec:
			if step.SQL == "" {
				return fmt.Errorf("step %d: exec requires sql", i)
			}
		default:
			return fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Error != "usage" {
			return fmt.Errorf("step %d: unknown expected error %q (want usage)", i, step.Expect.Error)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertStatementCount:
			if a.Count == nil {
				return fmt.Errorf("assertion %d: statement_count requires count", i)
			}
		case AssertStatementContains:
			if a.SQL == "" {
				return fmt.Errorf("assertion %d: statement_contains requires sql", i)
			}
		case AssertFinalState:
			if a.Table == "" {
				return fmt.Errorf("assertion %d: final_state requires table", i)
			}
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
