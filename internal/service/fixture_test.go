package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/repository"
	"github.com/iliyamo/mall-admin/internal/store"
)

// countingStore counts mutating calls and can fail the nth one.
type countingStore struct {
	store.Store
	writes int
	failAt int // 1-based; 0 never fails
}

var errInjected = errors.New("connection reset by peer")

func (c *countingStore) hit(op, table string) error {
	c.writes++
	if c.failAt > 0 && c.writes == c.failAt {
		return &store.StoreError{Op: op, Table: table, Err: errInjected}
	}
	return nil
}

func (c *countingStore) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	if err := c.hit("insert", table); err != nil {
		return nil, err
	}
	return c.Store.Insert(ctx, table, row)
}

func (c *countingStore) InsertMany(ctx context.Context, table string, rows []store.Row) ([]store.Row, error) {
	if err := c.hit("insert", table); err != nil {
		return nil, err
	}
	return c.Store.InsertMany(ctx, table, rows)
}

func (c *countingStore) Update(ctx context.Context, table string, f store.Filter, patch store.Row) (store.Row, error) {
	if err := c.hit("update", table); err != nil {
		return nil, err
	}
	return c.Store.Update(ctx, table, f, patch)
}

func (c *countingStore) Delete(ctx context.Context, table string, f store.Filter) (int64, error) {
	if err := c.hit("delete", table); err != nil {
		return 0, err
	}
	return c.Store.Delete(ctx, table, f)
}

// txCountingStore is a countingStore whose transactions go through the
// wrapped MemStore, so injected failures roll back.
type txCountingStore struct {
	*countingStore
	mem *store.MemStore
}

func (t *txCountingStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return t.mem.WithinTx(ctx, func(tx store.Store) error {
		inner := t.countingStore.Store
		t.countingStore.Store = tx
		defer func() { t.countingStore.Store = inner }()
		return fn(t.countingStore)
	})
}

// racingStore answers currency code lookups with not-found, as if a
// concurrent insert landed between the check and the write.
type racingStore struct {
	store.Store
}

func (r racingStore) FindOne(ctx context.Context, table string, f store.Filter) (store.Row, error) {
	if table == repository.TableCurrencies && len(f) == 1 && (f[0].Column == "code" || f[0].Column == "numeric_code") {
		return nil, &store.NotFoundError{Table: table, Filter: f}
	}
	return r.Store.FindOne(ctx, table, f)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []queue.AuditEvent
}

func (r *recordingAuditor) Record(_ context.Context, ev queue.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingAuditor) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type recordingInvalidator struct {
	namespaces []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ns string) error {
	r.namespaces = append(r.namespaces, ns)
	return nil
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	mem   *store.MemStore
	audit *recordingAuditor
	inval *recordingInvalidator
	logs  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		ctx:   WithActor(context.Background(), "admin-1"),
		mem:   store.NewMemStore(repository.Schema()),
		audit: &recordingAuditor{},
		inval: &recordingInvalidator{},
		logs:  &bytes.Buffer{},
	}
}

func (h *harness) opts(atomic bool) Options {
	l := log.New("test")
	l.SetOutput(h.logs)
	l.SetLevel(log.DEBUG)
	return Options{Atomic: atomic, Logger: l, Auditor: h.audit, Invalidator: h.inval}
}

func (h *harness) insert(table string, row store.Row) uint64 {
	h.t.Helper()
	out, err := h.mem.Insert(context.Background(), table, row)
	require.NoError(h.t, err)
	return out.ID()
}

func (h *harness) currency(code, numeric string, pivot bool, rate string) model.Currency {
	h.t.Helper()
	id := h.insert(repository.TableCurrencies, store.Row{
		"name": code, "code": code, "numeric_code": numeric, "precision_digits": 2,
		"payment_enabled": true, "is_pivot": pivot, "rate": dec(rate),
	})
	c, err := repository.NewCurrencyRepo(h.mem).Get(context.Background(), id)
	require.NoError(h.t, err)
	return c
}

func (h *harness) pivots() []model.Currency {
	h.t.Helper()
	ps, err := repository.NewCurrencyRepo(h.mem).Pivots(context.Background())
	require.NoError(h.t, err)
	return ps
}

func (h *harness) detail(eventID, mallID uint64, boutique, designer, product *uint64) uint64 {
	return h.insert(repository.TableEventDetails, store.Row{
		"event_id": eventID, "mall_id": mallID, "boutique_id": boutique,
		"designer_id": designer, "product_id": product,
	})
}

func (h *harness) details(eventID uint64) []model.EventDetail {
	h.t.Helper()
	rows, err := repository.NewEventDetailRepo(h.mem).ForEvent(context.Background(), eventID)
	require.NoError(h.t, err)
	return rows
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v uint64) *uint64 { return model.IDPtr(v) }
