// Package querysql renders query intent into SQLite statements.
//
// Two strategies are provided for reads:
//   - Compile inlines every value as a quoted literal. Values are not escaped,
//     so a value containing a quote breaks or rewrites the statement.
//   - CompileBound emits ? placeholders and returns the values separately.
//
// Writes (Insert, Update, Delete) are always parameterized.
//
// None of the functions here fail: malformed input produces malformed SQL,
// which the database rejects when the statement runs.
package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/queryir"
)

// Compile renders a SELECT with every value inlined as '<value>'.
func Compile(s queryir.State) string {
	var sb strings.Builder
	render(&sb, s, inline)
	return sb.String()
}

// CompileBound renders a SELECT with ? placeholders in place of values.
// Raw fragments are emitted verbatim and contribute no parameters.
func CompileBound(s queryir.State) (string, []any) {
	var sb strings.Builder
	params := render(&sb, s, bound)
	return sb.String(), params
}

// Paginate appends a LIMIT/OFFSET clause for the given page of a compiled
// SELECT. page is 1-based; callers check that perPage and page are positive.
func Paginate(sql string, perPage, page int) string {
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, perPage, (page-1)*perPage)
}

// Insert renders an INSERT that returns the inserted row.
// Columns are emitted in sorted order and params follow the same order.
func Insert(table string, data map[string]any) (string, []any) {
	keys := sortedKeys(data)
	params := make([]any, len(keys))
	marks := make([]string, len(keys))
	for i, k := range keys {
		params[i] = data[k]
		marks[i] = "?"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table,
		strings.Join(keys, ", "),
		strings.Join(marks, ", "))
	return sql, params
}

// Update renders an UPDATE of one row by id that returns the updated row.
// The id is the last parameter.
func Update(table string, id any, data map[string]any) (string, []any) {
	keys := sortedKeys(data)
	params := make([]any, 0, len(keys)+1)
	sets := make([]string, len(keys))
	for i, k := range keys {
		sets[i] = k + " = ?"
		params = append(params, data[k])
	}
	params = append(params, id)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? RETURNING *",
		table,
		strings.Join(sets, ", "))
	return sql, params
}

// Delete renders a DELETE of one row by id.
func Delete(table string, id any) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), []any{id}
}

// Interpolate substitutes params into the ? placeholders of sql, left to
// right, as quoted literals. The result is for display only; it is never
// sent to the database. A ? inside a single-quoted string literal is not a
// placeholder and is copied unchanged. Surplus placeholders are left as they
// are.
func Interpolate(sql string, params []any) string {
	if len(params) == 0 {
		return sql
	}

	var sb strings.Builder
	next := 0
	quoted := false
	for _, r := range sql {
		if r == '\'' {
			// '' inside a literal toggles twice and stays quoted.
			quoted = !quoted
		}
		if r == '?' && !quoted && next < len(params) {
			sb.WriteString(literal(params[next]))
			next++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// valueFunc renders one condition value and may collect a parameter.
type valueFunc func(v any, params *[]any) string

func inline(v any, _ *[]any) string {
	return literal(v)
}

func bound(v any, params *[]any) string {
	*params = append(*params, v)
	return "?"
}

func literal(v any) string {
	return "'" + queryir.Text(v) + "'"
}

// render writes the SELECT for s and returns any collected parameters.
func render(sb *strings.Builder, s queryir.State, value valueFunc) []any {
	var params []any

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(s.Table)

	if len(s.Conditions) > 0 {
		sb.WriteString(" WHERE ")
		// The first entry has no joiner; a Connective replaces the default AND.
		joiner := ""
		for _, e := range s.Conditions {
			switch entry := e.(type) {
			case queryir.Connective:
				joiner = " " + string(entry) + " "
				continue
			case queryir.Condition:
				sb.WriteString(joiner)
				writeCondition(sb, entry, value, &params)
			case queryir.Raw:
				sb.WriteString(joiner)
				sb.WriteString(entry.SQL)
			}
			joiner = " AND "
		}
	}

	if s.GroupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(s.GroupBy)
	}

	if s.Having != nil {
		sb.WriteString(" HAVING ")
		writeCondition(sb, *s.Having, value, &params)
	}

	return params
}

func writeCondition(sb *strings.Builder, c queryir.Condition, value valueFunc, params *[]any) {
	sb.WriteString(c.Column)
	sb.WriteByte(' ')
	sb.WriteString(c.Operator)
	sb.WriteByte(' ')
	sb.WriteString(value(c.Value, params))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
