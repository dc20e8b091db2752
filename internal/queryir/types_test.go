package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Reset(t *testing.T) {
	s := State{
		Table:      "users",
		Conditions: []Entry{Condition{Column: "age", Operator: ">", Value: 30}},
		GroupBy:    "name",
		Having:     &Condition{Column: "age", Operator: ">", Value: 1},
	}

	s.Reset("orders")

	assert.Equal(t, State{Table: "orders"}, s)
}

func TestState_Filtered(t *testing.T) {
	var s State
	assert.False(t, s.Filtered())

	s.Append(Or)
	assert.False(t, s.Filtered(), "a lone connective is not a filter")

	s.Append(Raw{SQL: "EXISTS (SELECT 1)"})
	assert.True(t, s.Filtered())
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := State{Table: "users", Having: &Condition{Column: "age", Operator: ">", Value: 1}}
	s.Append(Condition{Column: "name", Operator: "=", Value: "Louie"})

	c := s.Clone()
	c.Append(Or)
	c.Having.Value = 99

	assert.Len(t, s.Conditions, 1)
	assert.Equal(t, 1, s.Having.Value)
}

type stringer struct{}

func (stringer) String() string { return "stringer" }

func TestText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"Louie", "Louie"},
		{[]byte("raw"), "raw"},
		{34, "34"},
		{int64(-2), "-2"},
		{1.5, "1.5"},
		{true, "true"},
		{stringer{}, "stringer"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Text(tt.in))
	}
}
