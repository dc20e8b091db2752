package query

// Subquery is the compile-only view of a nested builder. It has no terminal
// operations, so a subquery can never run before it is embedded.
type Subquery interface {
	From(table string) Subquery
	Where(column, operator string, value any) Subquery
	OrWhere(column, operator string, value any) Subquery
	WhereRaw(fragment string) Subquery
	WhereSub(column, operator string, fn func(Subquery)) Subquery
	WhereExists(fn func(Subquery)) Subquery
	GroupBy(column string) Subquery
	Having(column, operator string, value any) Subquery
	ToSQL() string
}

type subquery struct {
	b *Builder
}

func (s *subquery) From(table string) Subquery {
	s.b.From(table)
	return s
}

func (s *subquery) Where(column, operator string, value any) Subquery {
	s.b.Where(column, operator, value)
	return s
}

func (s *subquery) OrWhere(column, operator string, value any) Subquery {
	s.b.OrWhere(column, operator, value)
	return s
}

func (s *subquery) WhereRaw(fragment string) Subquery {
	s.b.WhereRaw(fragment)
	return s
}

func (s *subquery) WhereSub(column, operator string, fn func(Subquery)) Subquery {
	s.b.WhereSub(column, operator, fn)
	return s
}

func (s *subquery) WhereExists(fn func(Subquery)) Subquery {
	s.b.WhereExists(fn)
	return s
}

func (s *subquery) GroupBy(column string) Subquery {
	s.b.GroupBy(column)
	return s
}

func (s *subquery) Having(column, operator string, value any) Subquery {
	s.b.Having(column, operator, value)
	return s
}

func (s *subquery) ToSQL() string {
	return s.b.ToSQL()
}
