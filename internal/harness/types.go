package harness

import "github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"

// TraceEvent is one statement sent to the execution service.
type TraceEvent struct {
	Seq int `json:"seq"`
	// SQL has its parameters interpolated for readability.
	SQL     string `json:"sql"`
	Success bool   `json:"success"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the statements sent, in order. Assertion queries are not
	// included.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// MarshalTrace renders a scenario's trace as the canonical JSON pinned by
// golden files.
func MarshalTrace(name string, trace []TraceEvent) ([]byte, error) {
	return protocol.MarshalCanonical(traceToCanonical(name, trace))
}

func traceToCanonical(name string, trace []TraceEvent) map[string]any {
	events := make([]any, len(trace))
	for i, e := range trace {
		events[i] = map[string]any{
			"seq":     e.Seq,
			"sql":     e.SQL,
			"success": e.Success,
		}
	}
	return map[string]any{
		"scenario": name,
		"trace":    events,
	}
}
