package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLStore implements Store on MySQL through database/sql.
type SQLStore struct {
	db     *sql.DB
	q      querier
	schema Schema
}

// NewSQLStore wraps an open connection pool.
func NewSQLStore(db *sql.DB, schema Schema) *SQLStore {
	return &SQLStore{db: db, q: db, schema: schema}
}

// Ping verifies the server is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// WithinTx runs fn inside a single database transaction.  The transaction
// commits only if fn returns nil; errors and panics roll it back.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Store) error) (err error) {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "tx", Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = &StoreError{Op: "tx", Err: cerr}
		}
	}()
	return fn(&SQLStore{db: s.db, q: tx, schema: s.schema})
}

func (s *SQLStore) Find(ctx context.Context, table string, filter Filter, opts FindOptions) ([]Row, error) {
	t, f, err := s.prepare(table, filter)
	if err != nil {
		return nil, wrapErr("find", table, err)
	}
	if err := checkOrder(t, opts); err != nil {
		return nil, wrapErr("find", table, err)
	}
	rows, err := s.selectRows(ctx, t, f, opts)
	return rows, wrapErr("find", table, err)
}

func (s *SQLStore) FindOne(ctx context.Context, table string, filter Filter) (Row, error) {
	rows, err := s.Find(ctx, table, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Table: table, Filter: filter}
	}
	return rows[0], nil
}

func (s *SQLStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	t, err := s.schema.Table(table)
	if err != nil {
		return nil, wrapErr("insert", table, err)
	}
	r, err := normalizeRow(t, row, true)
	if err != nil {
		return nil, wrapErr("insert", table, err)
	}
	cols := sortedKeys(r)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		args[i] = sqlArg(r[c])
	}
	var q string
	if len(cols) == 0 {
		q = fmt.Sprintf("INSERT INTO %s () VALUES ()", quoteIdent(t.Name))
	} else {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(t.Name), strings.Join(quoted, ", "), marks)
	}
	res, err := s.q.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, wrapErr("insert", table, translateDriverErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapErr("insert", table, err)
	}
	// Follow-up SELECT so callers see defaults and timestamps.
	rows, err := s.selectRows(ctx, t, Filter{Eq("id", id)}, FindOptions{Limit: 1})
	if err != nil {
		return nil, wrapErr("insert", table, err)
	}
	if len(rows) == 0 {
		return nil, wrapErr("insert", table, fmt.Errorf("inserted row %d vanished", id))
	}
	return rows[0], nil
}

// InsertMany issues one INSERT per row on the same connection or
// transaction.  A multi-row VALUES list would not report every generated id.
func (s *SQLStore) InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		ins, err := s.Insert(ctx, table, r)
		if err != nil {
			return out, err
		}
		out = append(out, ins)
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error) {
	t, f, err := s.prepare(table, filter)
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
	// Resolve ids first: the patch may change the columns the filter matched.
	ids, err := s.matchingIDs(ctx, t, f)
	if err != nil {
		return nil, wrapErr("update", table, err)
	}
	if len(ids) == 0 {
		return nil, &NotFoundError{Table: table, Filter: filter}
	}
	byID := Filter{In("id", ids...)}
	if len(p) > 0 {
		cols := sortedKeys(p)
		sets := make([]string, len(cols))
		args := make([]any, 0, len(cols)+len(ids))
		for i, c := range cols {
			sets[i] = quoteIdent(c) + " = ?"
			args = append(args, sqlArg(p[c]))
		}
		where, wargs, err := buildWhere(byID)
		if err != nil {
			return nil, wrapErr("update", table, err)
		}
		args = append(args, wargs...)
		q := fmt.Sprintf("UPDATE %s SET %s %s", quoteIdent(t.Name), strings.Join(sets, ", "), where)
		if _, err := s.q.ExecContext(ctx, q, args...); err != nil {
			return nil, wrapErr("update", table, translateDriverErr(err))
		}
	}
	rows, err := s.selectRows(ctx, t, byID, FindOptions{Limit: 1})
	if err != nil {
		return nil, wrapErr("update", table, err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Table: table, Filter: filter}
	}
	return rows[0], nil
}

func (s *SQLStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	t, f, err := s.prepare(table, filter)
	if err != nil {
		return 0, wrapErr("delete", table, err)
	}
	if len(f) == 0 {
		return 0, wrapErr("delete", table, errors.New("refusing unfiltered delete"))
	}
	where, args, err := buildWhere(f)
	if err != nil {
		return 0, wrapErr("delete", table, err)
	}
	res, err := s.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s %s", quoteIdent(t.Name), where), sqlArgs(args)...)
	if err != nil {
		return 0, wrapErr("delete", table, translateDriverErr(err))
	}
	n, err := res.RowsAffected()
	return n, wrapErr("delete", table, err)
}

func (s *SQLStore) Count(ctx context.Context, table string, filter Filter) (int64, error) {
	t, f, err := s.prepare(table, filter)
	if err != nil {
		return 0, wrapErr("count", table, err)
	}
	where, args, err := buildWhere(f)
	if err != nil {
		return 0, wrapErr("count", table, err)
	}
	rows, err := s.q.QueryContext(ctx, strings.TrimSpace(fmt.Sprintf("SELECT COUNT(*) FROM %s %s", quoteIdent(t.Name), where)), sqlArgs(args)...)
	if err != nil {
		return 0, wrapErr("count", table, err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, wrapErr("count", table, err)
		}
	}
	return n, wrapErr("count", table, rows.Err())
}

func (s *SQLStore) prepare(table string, filter Filter) (Table, Filter, error) {
	t, err := s.schema.Table(table)
	if err != nil {
		return Table{}, nil, err
	}
	f, err := normalizeFilter(t, filter)
	if err != nil {
		return Table{}, nil, err
	}
	return t, f, nil
}

func (s *SQLStore) matchingIDs(ctx context.Context, t Table, f Filter) ([]int64, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT `id` FROM %s %s ORDER BY `id`", quoteIdent(t.Name), where)
	rows, err := s.q.QueryContext(ctx, q, sqlArgs(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) selectRows(ctx context.Context, t Table, f Filter, opts FindOptions) ([]Row, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}
	order, oargs := buildOrder(opts)
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s %s %s", strings.Join(cols, ", "), quoteIdent(t.Name), where, order)
	rows, err := s.q.QueryContext(ctx, q, append(sqlArgs(args), oargs...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		dest := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			dest[i] = scanTarget(c.Kind)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		r := make(Row, len(t.Columns))
		for i, c := range t.Columns {
			r[c.Name] = scannedValue(dest[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanTarget(k Kind) any {
	switch k {
	case KindInt:
		return new(sql.NullInt64)
	case KindBool:
		return new(sql.NullBool)
	case KindDecimal:
		return new(decimal.NullDecimal)
	case KindTime:
		return new(sql.NullTime)
	}
	return new(sql.NullString)
}

func scannedValue(v any) any {
	switch t := v.(type) {
	case *sql.NullInt64:
		if t.Valid {
			return t.Int64
		}
	case *sql.NullBool:
		if t.Valid {
			return t.Bool
		}
	case *decimal.NullDecimal:
		if t.Valid {
			return t.Decimal
		}
	case *sql.NullTime:
		if t.Valid {
			return t.Time.UTC()
		}
	case *sql.NullString:
		if t.Valid {
			return t.String
		}
	}
	return nil
}

// sqlArg passes decimals as strings so MySQL keeps every fractional digit.
func sqlArg(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return v
}

func sqlArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = sqlArg(a)
	}
	return out
}

func translateDriverErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
	}
	return err
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
