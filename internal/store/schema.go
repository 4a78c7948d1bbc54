package store

import (
	"fmt"
	"sort"
)

// Kind is the storage type of a column.  It decides how values are
// normalized on the way in and scanned on the way out.
type Kind int

const (
	KindInt     Kind = iota + 1 // int64; ids and counters
	KindString                  // string
	KindBool                    // bool
	KindDecimal                 // decimal.Decimal
	KindTime                    // time.Time (UTC)
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	Unique   bool
	// Created and Updated columns are filled by the database (DEFAULT
	// CURRENT_TIMESTAMP / ON UPDATE) and never written by callers.
	Created bool
	Updated bool
}

// Table is a named set of columns.  Every table has an auto-increment "id".
type Table struct {
	Name    string
	Columns []Column
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists the columns in declaration order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Schema is the registry of tables a store serves.
type Schema struct {
	tables map[string]Table
}

// NewSchema registers tables.  An "id" column is added when absent.
func NewSchema(tables ...Table) Schema {
	s := Schema{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		if _, ok := t.Column("id"); !ok {
			t.Columns = append([]Column{{Name: "id", Kind: KindInt}}, t.Columns...)
		}
		s.tables[t.Name] = t
	}
	return s
}

// Table returns the named table or an error for unknown names.
func (s Schema) Table(name string) (Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Names lists registered tables alphabetically.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s.tables))
	for n := range s.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// normalizeRow checks every column of r against t and converts values to
// their canonical Go type.  Caller-supplied ids and database-managed
// timestamps are rejected when writable is set.
func normalizeRow(t Table, r Row, writable bool) (Row, error) {
	out := make(Row, len(r))
	for name, v := range r {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %s.%s", t.Name, name)
		}
		if writable && (name == "id" || col.Created || col.Updated) {
			return nil, fmt.Errorf("column %s.%s is not writable", t.Name, name)
		}
		nv, err := normalizeValue(col, v)
		if err != nil {
			return nil, err
		}
		if nv == nil && !col.Nullable {
			return nil, fmt.Errorf("column %s.%s cannot be null", t.Name, name)
		}
		out[name] = nv
	}
	return out, nil
}

// normalizeFilter converts condition values to column kinds.
func normalizeFilter(t Table, f Filter) (Filter, error) {
	out := make(Filter, len(f))
	for i, c := range f {
		col, ok := t.Column(c.Column)
		if !ok {
			return nil, fmt.Errorf("unknown column %s.%s", t.Name, c.Column)
		}
		switch c.Operator {
		case OpIsNull, OpIsNotNull:
			out[i] = Condition{Column: c.Column, Operator: c.Operator}
		case OpIn:
			raw, _ := c.Value.([]any)
			vals := make([]any, 0, len(raw))
			for _, v := range raw {
				nv, err := normalizeValue(col, v)
				if err != nil {
					return nil, err
				}
				vals = append(vals, nv)
			}
			out[i] = Condition{Column: c.Column, Operator: OpIn, Value: vals}
		case OpEqual, OpNotEqual:
			nv, err := normalizeValue(col, c.Value)
			if err != nil {
				return nil, err
			}
			out[i] = Condition{Column: c.Column, Operator: c.Operator, Value: nv}
		default:
			return nil, fmt.Errorf("unsupported operator %q", c.Operator)
		}
	}
	return out, nil
}

func checkOrder(t Table, opts FindOptions) error {
	for _, o := range opts.OrderBy {
		if _, ok := t.Column(o.Column); !ok {
			return fmt.Errorf("unknown order column %s.%s", t.Name, o.Column)
		}
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return fmt.Errorf("negative limit or offset")
	}
	return nil
}
