package store

import (
	"fmt"
	"strings"
)

// Operator is a comparison applied by a Condition.
type Operator string

const (
	OpEqual     Operator = "="
	OpNotEqual  Operator = "<>"
	OpIn        Operator = "IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Condition is one column predicate.  Conditions in a Filter are ANDed.
type Condition struct {
	Column   string
	Operator Operator
	Value    any // single value for =/<>, []any for IN, unused for NULL checks
}

// Filter is a conjunction of conditions.  An empty Filter matches every row.
type Filter []Condition

// Where builds a Filter from conditions.
func Where(conds ...Condition) Filter { return Filter(conds) }

// And returns a copy of f with more conditions appended.
func (f Filter) And(conds ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, c := range f {
		switch c.Operator {
		case OpIsNull, OpIsNotNull:
			parts = append(parts, c.Column+" "+string(c.Operator))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %v", c.Column, c.Operator, c.Value))
		}
	}
	return strings.Join(parts, " AND ")
}

// Eq matches column = v.  A nil v (or nil pointer) matches NULL.
func Eq(column string, v any) Condition {
	if isNil(v) {
		return IsNull(column)
	}
	return Condition{Column: column, Operator: OpEqual, Value: v}
}

// Ne matches column <> v.  A nil v matches NOT NULL.
func Ne(column string, v any) Condition {
	if isNil(v) {
		return NotNull(column)
	}
	return Condition{Column: column, Operator: OpNotEqual, Value: v}
}

// In matches column IN (vs...).  An empty list matches nothing.
func In[T any](column string, vs ...T) Condition {
	vals := make([]any, len(vs))
	for i, v := range vs {
		vals[i] = v
	}
	return Condition{Column: column, Operator: OpIn, Value: vals}
}

func IsNull(column string) Condition  { return Condition{Column: column, Operator: OpIsNull} }
func NotNull(column string) Condition { return Condition{Column: column, Operator: OpIsNotNull} }

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// FindOptions shape a Find.  Zero Limit means unlimited.
type FindOptions struct {
	OrderBy []Order
	Limit   int
	Offset  int
}

// OrderBy is shorthand for FindOptions{OrderBy: ...}.
func OrderBy(orders ...Order) FindOptions { return FindOptions{OrderBy: orders} }

// Asc and Desc build Order terms.
func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }
