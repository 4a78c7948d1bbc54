package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one record keyed by column name.  Values read back from a store are
// always canonical: int64, string, bool, decimal.Decimal, time.Time or nil.
type Row map[string]any

// Clone returns a shallow copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the row's primary key.
func (r Row) ID() uint64 { return r.Uint64("id") }

// Uint64 reads an integer column; NULL reads as 0.
func (r Row) Uint64(col string) uint64 {
	if v, ok := r[col].(int64); ok && v > 0 {
		return uint64(v)
	}
	return 0
}

// NullUint64 reads a nullable integer column.
func (r Row) NullUint64(col string) *uint64 {
	v, ok := r[col].(int64)
	if !ok {
		return nil
	}
	u := uint64(v)
	return &u
}

// Int reads an integer column as int.
func (r Row) Int(col string) int {
	v, _ := r[col].(int64)
	return int(v)
}

// String reads a text column; NULL reads as "".
func (r Row) String(col string) string {
	v, _ := r[col].(string)
	return v
}

// Bool reads a boolean column; NULL reads as false.
func (r Row) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

// Decimal reads a decimal column; NULL reads as zero.
func (r Row) Decimal(col string) decimal.Decimal {
	v, _ := r[col].(decimal.Decimal)
	return v
}

// Time reads a timestamp column; NULL reads as the zero time.
func (r Row) Time(col string) time.Time {
	v, _ := r[col].(time.Time)
	return v
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// normalizeValue converts v to the canonical type of col.
func normalizeValue(col Column, v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		v = rv.Elem().Interface()
	}
	bad := func() (any, error) {
		return nil, fmt.Errorf("column %s: cannot store %T", col.Name, v)
	}
	switch col.Kind {
	case KindInt:
		switch t := v.(type) {
		case int:
			return int64(t), nil
		case int32:
			return int64(t), nil
		case int64:
			return t, nil
		case uint:
			return int64(t), nil
		case uint32:
			return int64(t), nil
		case uint64:
			return int64(t), nil
		case string:
			n, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return bad()
			}
			return n, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindDecimal:
		switch t := v.(type) {
		case decimal.Decimal:
			return t, nil
		case string:
			d, err := decimal.NewFromString(t)
			if err != nil {
				return bad()
			}
			return d, nil
		case int:
			return decimal.NewFromInt(int64(t)), nil
		case int64:
			return decimal.NewFromInt(t), nil
		case float64:
			return decimal.NewFromFloat(t), nil
		}
	case KindTime:
		if tm, ok := v.(time.Time); ok {
			return tm.UTC(), nil
		}
	}
	return bad()
}

// compareValues orders two canonical values of the same column.  NULL sorts
// first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		y, _ := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case decimal.Decimal:
		return x.Cmp(b.(decimal.Decimal))
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return compareValues(a, b) == 0
}
