package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/query"
)

// condition is one --where or --or-where flag.
type condition struct {
	column   string
	operator string
	value    string
	or       bool
}

func parseCondition(s string) (condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return condition{}, fmt.Errorf("want column:operator:value, got %q", s)
	}
	return condition{column: parts[0], operator: parts[1], value: parts[2]}, nil
}

// conditionValue is a repeatable pflag.Value. --where and --or-where share
// one list so the conditions keep their command-line order.
type conditionValue struct {
	list *[]condition
	or   bool
}

func (v *conditionValue) String() string {
	if v.list == nil {
		return ""
	}
	parts := make([]string, 0, len(*v.list))
	for _, c := range *v.list {
		if c.or == v.or {
			parts = append(parts, c.column+":"+c.operator+":"+c.value)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (v *conditionValue) Set(s string) error {
	c, err := parseCondition(s)
	if err != nil {
		return err
	}
	c.or = v.or
	*v.list = append(*v.list, c)
	return nil
}

func (v *conditionValue) Type() string {
	return "column:op:value"
}

// chainFlags are the filter flags shared by read commands.
type chainFlags struct {
	conditions []condition
	raw        []string
	groupBy    string
	having     string
}

func (f *chainFlags) register(cmd *cobra.Command) {
	cmd.Flags().Var(&conditionValue{list: &f.conditions}, "where", "AND condition column:op:value (repeatable)")
	cmd.Flags().Var(&conditionValue{list: &f.conditions, or: true}, "or-where", "OR condition column:op:value (repeatable)")
	cmd.Flags().StringArrayVar(&f.raw, "raw", nil, "raw SQL condition fragment (repeatable)")
	cmd.Flags().StringVar(&f.groupBy, "group-by", "", "GROUP BY column")
	cmd.Flags().StringVar(&f.having, "having", "", "HAVING condition column:op:value")
}

// apply adds the flags to a chain, in order: conditions, raw fragments,
// grouping.
func (f *chainFlags) apply(b *query.Builder) error {
	for _, c := range f.conditions {
		if c.or {
			b.OrWhere(c.column, c.operator, c.value)
		} else {
			b.Where(c.column, c.operator, c.value)
		}
	}
	for _, r := range f.raw {
		b.WhereRaw(r)
	}
	if f.groupBy != "" {
		b.GroupBy(f.groupBy)
	}
	if f.having != "" {
		h, err := parseCondition(f.having)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --having: %v", err))
		}
		b.Having(h.column, h.operator, h.value)
	}
	return nil
}

// parseData decodes a --data JSON object.
func parseData(s string) (map[string]any, error) {
	if s == "" {
		return nil, NewExitError(ExitCommandError, "--data is required")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --data JSON", err)
	}
	if len(data) == 0 {
		return nil, NewExitError(ExitCommandError, "--data must be a non-empty JSON object")
	}
	return data, nil
}
