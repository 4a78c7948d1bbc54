package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memState is the whole in-memory database.  It is cloned for transactions
// and swapped back in on commit.
type memState struct {
	rows map[string]map[int64]Row
	next map[string]int64
}

func (s memState) clone() memState {
	out := memState{
		rows: make(map[string]map[int64]Row, len(s.rows)),
		next: make(map[string]int64, len(s.next)),
	}
	for t, rows := range s.rows {
		cp := make(map[int64]Row, len(rows))
		for id, r := range rows {
			cp[id] = r.Clone()
		}
		out.rows[t] = cp
	}
	for t, n := range s.next {
		out.next[t] = n
	}
	return out
}

// MemStore is an in-process Store.  It backs the test suites and the
// STORE_DRIVER=memory development mode.  Transactions snapshot the state and
// restore it when fn fails.
type MemStore struct {
	mu     sync.Mutex
	schema Schema
	state  memState
	now    func() time.Time
}

// NewMemStore returns an empty store for schema.
func NewMemStore(schema Schema) *MemStore {
	st := memState{rows: map[string]map[int64]Row{}, next: map[string]int64{}}
	for _, n := range schema.Names() {
		st.rows[n] = map[int64]Row{}
	}
	return &MemStore{schema: schema, state: st, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the timestamp source used for created/updated columns.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemStore) view() *memView {
	return &memView{schema: m.schema, state: &m.state, now: m.now}
}

func (m *MemStore) Find(ctx context.Context, table string, filter Filter, opts FindOptions) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Find(ctx, table, filter, opts)
}

func (m *MemStore) FindOne(ctx context.Context, table string, filter Filter) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().FindOne(ctx, table, filter)
}

func (m *MemStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Insert(ctx, table, row)
}

func (m *MemStore) InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().InsertMany(ctx, table, rows)
}

func (m *MemStore) Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Update(ctx, table, filter, patch)
}

func (m *MemStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Delete(ctx, table, filter)
}

func (m *MemStore) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Count(ctx, table, filter)
}

// Ping always succeeds.
func (m *MemStore) Ping(context.Context) error { return nil }

// WithinTx holds the store lock for the whole of fn, so transactions are
// serialized against each other and against single statements.
func (m *MemStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	tx := &memView{schema: m.schema, state: &snapshot, now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

// memView executes statements against a state without locking.
type memView struct {
	schema Schema
	state  *memState
	now    func() time.Time
}

// WithinTx on a view is already inside a transaction.
func (v *memView) WithinTx(_ context.Context, fn func(tx Store) error) error { return fn(v) }

func (v *memView) prepare(table string, filter Filter) (Table, Filter, error) {
	t, err := v.schema.Table(table)
	if err != nil {
		return Table{}, nil, err
	}
	f, err := normalizeFilter(t, filter)
	if err != nil {
		return Table{}, nil, err
	}
	return t, f, nil
}

func (v *memView) Find(ctx context.Context, table string, filter Filter, opts FindOptions) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("find", table, err)
	}
	t, f, err := v.prepare(table, filter)
	if err != nil {
		return nil, wrapErr("find", table, err)
	}
	if err := checkOrder(t, opts); err != nil {
		return nil, wrapErr("find", table, err)
	}
	matched := v.match(t.Name, f)
	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range opts.OrderBy {
			c := compareValues(matched[i][o.Column], matched[j][o.Column])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i]["id"].(int64) < matched[j]["id"].(int64)
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Offset:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	out := make([]Row, len(matched))
	for i, r := range matched {
		out[i] = r.Clone()
	}
	return out, nil
}

func (v *memView) FindOne(ctx context.Context, table string, filter Filter) (Row, error) {
	rows, err := v.Find(ctx, table, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Table: table, Filter: filter}
	}
	return rows[0], nil
}

func (v *memView) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("insert", table, err)
	}
	t, err := v.schema.Table(table)
	if err != nil {
		return nil, wrapErr("insert", table, err)
	}
	r, err := normalizeRow(t, row, true)
	if err != nil {
		return nil, wrapErr("insert", table, err)
	}
	full := make(Row, len(t.Columns))
	now := v.now()
	for _, c := range t.Columns {
		val, ok := r[c.Name]
		switch {
		case ok:
			full[c.Name] = val
		case c.Created || c.Updated:
			full[c.Name] = now
		case c.Kind == KindBool && !c.Nullable:
			full[c.Name] = false
		default:
			full[c.Name] = nil
		}
		if full[c.Name] == nil && !c.Nullable && c.Name != "id" {
			return nil, wrapErr("insert", table, fmt.Errorf("column %s.%s cannot be null", t.Name, c.Name))
		}
	}
	if err := v.checkUnique(t, full, 0); err != nil {
		return nil, wrapErr("insert", table, err)
	}
	v.state.next[t.Name]++
	id := v.state.next[t.Name]
	full["id"] = id
	v.state.rows[t.Name][id] = full
	return full.Clone(), nil
}

func (v *memView) InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		ins, err := v.Insert(ctx, table, r)
		if err != nil {
			return out, err
		}
		out = append(out, ins)
	}
	return out, nil
}

func (v *memView) Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("update", table, err)
	}
	t, f, err := v.prepare(table, filter)
	if err != nil {
		return nil, wrapErr("update", table, err)
	}
	if len(f) == 0 {
		return nil, wrapErr("update", table, errors.New("refusing unfiltered update"))
	}
	p, err := normalizeRow(t, patch, true)
	if err != nil {
		return nil, wrapErr("update", table, err)
	}
	matched := v.match(t.Name, f)
	if len(matched) == 0 {
		return nil, &NotFoundError{Table: table, Filter: filter}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i]["id"].(int64) < matched[j]["id"].(int64) })
	updated := make([]Row, len(matched))
	for i, r := range matched {
		next := r.Clone()
		for k, val := range p {
			next[k] = val
		}
		for _, c := range t.Columns {
			if c.Updated && len(p) > 0 {
				next[c.Name] = v.now()
			}
		}
		if err := v.checkUnique(t, next, next["id"].(int64)); err != nil {
			return nil, wrapErr("update", table, err)
		}
		updated[i] = next
	}
	for _, r := range updated {
		v.state.rows[t.Name][r["id"].(int64)] = r
	}
	return updated[0].Clone(), nil
}

func (v *memView) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrapErr("delete", table, err)
	}
	t, f, err := v.prepare(table, filter)
	if err != nil {
		return 0, wrapErr("delete", table, err)
	}
	if len(f) == 0 {
		return 0, wrapErr("delete", table, errors.New("refusing unfiltered delete"))
	}
	matched := v.match(t.Name, f)
	for _, r := range matched {
		delete(v.state.rows[t.Name], r["id"].(int64))
	}
	return int64(len(matched)), nil
}

func (v *memView) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, wrapErr("count", table, err)
	}
	t, f, err := v.prepare(table, filter)
	if err != nil {
		return 0, wrapErr("count", table, err)
	}
	return int64(len(v.match(t.Name, f))), nil
}

func (v *memView) match(table string, f Filter) []Row {
	var out []Row
	for _, r := range v.state.rows[table] {
		if rowMatches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatches(r Row, f Filter) bool {
	for _, c := range f {
		val := r[c.Column]
		switch c.Operator {
		case OpEqual:
			if !valuesEqual(val, c.Value) {
				return false
			}
		case OpNotEqual:
			// SQL semantics: NULL <> x is unknown, never true.
			if val == nil || valuesEqual(val, c.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, want := range c.Value.([]any) {
				if valuesEqual(val, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpIsNull:
			if val != nil {
				return false
			}
		case OpIsNotNull:
			if val == nil {
				return false
			}
		}
	}
	return true
}

func (v *memView) checkUnique(t Table, r Row, selfID int64) error {
	for _, c := range t.Columns {
		if !c.Unique || r[c.Name] == nil {
			continue
		}
		for id, other := range v.state.rows[t.Name] {
			if id == selfID {
				continue
			}
			if valuesEqual(other[c.Name], r[c.Name]) {
				return fmt.Errorf("%w: %v for key '%s.%s'", ErrDuplicate, r[c.Name], t.Name, c.Name)
			}
		}
	}
	return nil
}
