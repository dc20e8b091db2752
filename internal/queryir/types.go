package queryir

import "fmt"

// Entry is one element of a where-clause.
//
// This is a sealed interface; only Condition, Raw and Connective implement it.
type Entry interface {
	entryNode()
}

// Condition compares a column to a value.
//
// Operator is passed through unchanged, so callers must supply a legal SQL
// operator ("=", ">=", "LIKE", ...).
type Condition struct {
	Column   string
	Operator string
	Value    any
}

func (Condition) entryNode() {}

// Raw is a pre-compiled SQL fragment embedded verbatim.
type Raw struct {
	SQL string
}

func (Raw) entryNode() {}

// Connective changes the join between the surrounding entries.
type Connective string

// Or joins the previous and next entries with OR instead of AND.
const Or Connective = "OR"

func (Connective) entryNode() {}

// State is the query intent of one builder chain.
type State struct {
	Table      string
	Conditions []Entry
	GroupBy    string
	Having     *Condition
}

// Reset clears everything and targets table.
func (s *State) Reset(table string) {
	*s = State{Table: table}
}

// Append adds entries in order.
func (s *State) Append(entries ...Entry) {
	s.Conditions = append(s.Conditions, entries...)
}

// Filtered reports whether the state holds at least one condition or raw
// fragment.
func (s *State) Filtered() bool {
	for _, e := range s.Conditions {
		if _, ok := e.(Connective); !ok {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	out := s
	out.Conditions = append([]Entry(nil), s.Conditions...)
	if s.Having != nil {
		h := *s.Having
		out.Having = &h
	}
	return out
}

// Text renders a value the way it appears between quotes in an inlined
// literal. Nil renders as "null".
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
