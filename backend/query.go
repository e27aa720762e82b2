package backend

import (
	"fmt"
	"strings"
)

// Op is a filter comparison.
type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpIn       Op = "in"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains" // substring match, callers lower-case both sides
)

// Filter is one column predicate. For OpIn, Value must be a slice.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, v any) Filter       { return Filter{Column: column, Op: OpEq, Value: v} }
func Neq(column string, v any) Filter      { return Filter{Column: column, Op: OpNeq, Value: v} }
func Gt(column string, v any) Filter       { return Filter{Column: column, Op: OpGt, Value: v} }
func Gte(column string, v any) Filter      { return Filter{Column: column, Op: OpGte, Value: v} }
func Lt(column string, v any) Filter       { return Filter{Column: column, Op: OpLt, Value: v} }
func Lte(column string, v any) Filter      { return Filter{Column: column, Op: OpLte, Value: v} }
func Contains(column, s string) Filter     { return Filter{Column: column, Op: OpContains, Value: strings.ToLower(s)} }
func In(column string, vs []string) Filter { return Filter{Column: column, Op: OpIn, Value: vs} }

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Column, f.Op, f.Value)
}

// Order sorts results by one column.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows of one table. Filters are ANDed.
type Query struct {
	Table   string
	Filters []Filter
	Order   *Order
	Limit   int
}

// From starts a query on table.
func From(table string) *Query {
	return &Query{Table: table}
}

func (q *Query) Where(filters ...Filter) *Query {
	q.Filters = append(q.Filters, filters...)
	return q
}

func (q *Query) OrderBy(column string, desc bool) *Query {
	q.Order = &Order{Column: column, Desc: desc}
	return q
}

func (q *Query) Take(n int) *Query {
	q.Limit = n
	return q
}

// EqValue returns the value of the first equality filter on column.
func (q *Query) EqValue(column string) (any, bool) {
	for _, f := range q.Filters {
		if f.Op == OpEq && f.Column == column {
			return f.Value, true
		}
	}
	return nil, false
}

// Values maps columns to new values in an update.
type Values map[string]any
