package store

import (
	"fmt"
	"strings"
)

// buildWhere renders a normalized filter as a MySQL WHERE clause with ?
// placeholders.  An empty filter renders as "".
func buildWhere(f Filter) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(f))
	var args []any
	for _, c := range f {
		col := quoteIdent(c.Column)
		switch c.Operator {
		case OpEqual, OpNotEqual:
			parts = append(parts, fmt.Sprintf("%s %s ?", col, c.Operator))
			args = append(args, c.Value)
		case OpIn:
			vals, _ := c.Value.([]any)
			if len(vals) == 0 {
				// IN () is a syntax error in MySQL; an empty set matches nothing.
				parts = append(parts, "1 = 0")
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, marks))
			args = append(args, vals...)
		case OpIsNull, OpIsNotNull:
			parts = append(parts, fmt.Sprintf("%s %s", col, c.Operator))
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Operator)
		}
	}
	return "WHERE " + strings.Join(parts, " AND "), args, nil
}

// buildOrder renders ORDER BY / LIMIT / OFFSET.  id is always the final
// tiebreaker so results are deterministic.
func buildOrder(opts FindOptions) (string, []any) {
	terms := make([]string, 0, len(opts.OrderBy)+1)
	hasID := false
	for _, o := range opts.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		if o.Column == "id" {
			hasID = true
		}
		terms = append(terms, quoteIdent(o.Column)+" "+dir)
	}
	if !hasID {
		terms = append(terms, "`id` ASC")
	}
	sql := "ORDER BY " + strings.Join(terms, ", ")
	var args []any
	switch {
	case opts.Limit > 0:
		sql += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			sql += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	case opts.Offset > 0:
		// MySQL has no OFFSET without LIMIT; use the documented max.
		sql += " LIMIT 18446744073709551615 OFFSET ?"
		args = append(args, opts.Offset)
	}
	return sql, args
}

// quoteIdent backtick-quotes a column or table name.  Names come from the
// Schema, never from request input.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
