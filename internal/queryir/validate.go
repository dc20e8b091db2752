package queryir

import (
	"fmt"
	"strings"
)

// knownOperators are the comparison operators SQLite accepts between a column
// and a single value.
var knownOperators = map[string]bool{
	"=": true, "==": true, "!=": true, "<>": true,
	">": true, "<": true, ">=": true, "<=": true,
	"LIKE": true, "NOT LIKE": true, "GLOB": true,
	"IS": true, "IS NOT": true, "IN": true, "NOT IN": true,
}

// ValidationResult lists constructs in a State that compile but are likely to
// be rejected by the database or to change the meaning of the statement.
type ValidationResult struct {
	// OK is true when Warnings is empty.
	OK bool

	// Warnings describes each hazard found, in clause order.
	Warnings []string
}

// Validate inspects a state for hazards of the inlined rendering:
//  1. No table set
//  2. Operators outside the usual SQLite comparison set
//  3. Values containing a single quote (they terminate the literal early)
//  4. Connectives with nothing before or after them, or two in a row
//
// Validate is a pure function; it never modifies the state and the compiler
// does not depend on it.
func Validate(s State) ValidationResult {
	v := &validator{warnings: []string{}}

	if s.Table == "" {
		v.addWarning("no table set")
	}

	prevConnective := true
	for i, e := range s.Conditions {
		switch entry := e.(type) {
		case Condition:
			v.validateCondition("where", entry)
			prevConnective = false
		case Raw:
			if strings.TrimSpace(entry.SQL) == "" {
				v.addWarning("empty raw fragment at position %d", i)
			}
			prevConnective = false
		case Connective:
			if prevConnective {
				v.addWarning("%s at position %d has no condition before it", entry, i)
			}
			prevConnective = true
		default:
			v.addWarning("unknown entry type %T at position %d", e, i)
		}
	}
	if len(s.Conditions) > 0 && prevConnective {
		v.addWarning("trailing %s has no condition after it", Or)
	}

	if s.Having != nil {
		v.validateCondition("having", *s.Having)
	}

	return ValidationResult{
		OK:       len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateCondition(clause string, c Condition) {
	if c.Column == "" {
		v.addWarning("%s condition has no column", clause)
	}
	if !knownOperators[strings.ToUpper(strings.TrimSpace(c.Operator))] {
		v.addWarning("%s condition on %q uses unrecognized operator %q", clause, c.Column, c.Operator)
	}
	if strings.Contains(Text(c.Value), "'") {
		v.addWarning("%s condition on %q has a value containing a quote; inlined it breaks the literal", clause, c.Column)
	}
}
