// Package queryir holds the intent accumulated by a query builder chain.
//
// A State names a table and an ordered list of where-clause entries, plus an
// optional GROUP BY column and HAVING condition. Entries are a sealed set:
//
//   - Condition: column, operator and value rendered as "<col> <op> <value>"
//   - Raw: opaque SQL text emitted verbatim (used for subqueries)
//   - Connective: an explicit OR placed between two entries
//
// Adjacent entries without a Connective between them are joined with AND.
// Insertion order is significant; it determines clause order in the SQL.
//
// Operators are not checked against a whitelist and values are not escaped
// by this package. Validate reports the constructs that are likely to make
// the compiled statement fail or change meaning, without rejecting them.
//
// The SQL rendering lives in package querysql.
package queryir
