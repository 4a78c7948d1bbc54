package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/repository"
	"github.com/iliyamo/mall-admin/internal/store"
)

func TestSetPivotSwapsUSDForEUR(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	m := NewCurrencyPivotManager(h.mem, h.opts(true))

	out, err := m.SetPivot(h.ctx, eur.ID, map[uint64]decimal.Decimal{usd.ID: dec("1.087")})
	require.NoError(t, err)
	require.Len(t, out, 2)

	gotEUR, err := m.Get(h.ctx, eur.ID)
	require.NoError(t, err)
	assert.True(t, gotEUR.IsPivot)
	assert.True(t, gotEUR.Rate.Equal(decimal.NewFromInt(1)))

	gotUSD, err := m.Get(h.ctx, usd.ID)
	require.NoError(t, err)
	assert.False(t, gotUSD.IsPivot)
	assert.Equal(t, "1.087", gotUSD.Rate.String())

	pivots := h.pivots()
	require.Len(t, pivots, 1)
	assert.Equal(t, eur.ID, pivots[0].ID)

	assert.Equal(t, []string{queue.KindPivotChanged}, h.audit.kinds())
	assert.Equal(t, []string{NamespaceCurrencies}, h.inval.namespaces)
	assert.Equal(t, "admin-1", h.audit.events[0].Actor)
}

func TestSetPivotValidatesBeforeWriting(t *testing.T) {
	tests := []struct {
		name  string
		rates func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal
		field string
	}{
		{
			name: "missing rate",
			rates: func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal {
				return map[uint64]decimal.Decimal{usd.ID: dec("1.1")}
			},
			field: "rates",
		},
		{
			name: "unknown currency",
			rates: func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal {
				return map[uint64]decimal.Decimal{usd.ID: dec("1.1"), gbp.ID: dec("0.8"), 999: dec("2")}
			},
			field: "rates",
		},
		{
			name: "zero rate",
			rates: func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal {
				return map[uint64]decimal.Decimal{usd.ID: dec("0"), gbp.ID: dec("0.8")}
			},
			field: rateField(1),
		},
		{
			name: "negative rate",
			rates: func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal {
				return map[uint64]decimal.Decimal{usd.ID: dec("1.1"), gbp.ID: dec("-0.8")}
			},
			field: rateField(3),
		},
		{
			name: "eleven decimals",
			rates: func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal {
				return map[uint64]decimal.Decimal{usd.ID: dec("1.12345678901"), gbp.ID: dec("0.8")}
			},
			field: rateField(1),
		},
		{
			name: "rate for the new pivot",
			rates: func(usd, eur, gbp model.Currency) map[uint64]decimal.Decimal {
				return map[uint64]decimal.Decimal{usd.ID: dec("1.1"), gbp.ID: dec("0.8"), eur.ID: dec("1")}
			},
			field: rateField(2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			usd := h.currency("USD", "840", true, "1")
			eur := h.currency("EUR", "978", false, "0.92")
			gbp := h.currency("GBP", "826", false, "0.79")
			cs := &countingStore{Store: h.mem}
			m := NewCurrencyPivotManager(cs, h.opts(false))

			_, err := m.SetPivot(h.ctx, eur.ID, tt.rates(usd, eur, gbp))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, cs.writes)
			assert.Equal(t, usd.ID, h.pivots()[0].ID)
		})
	}
}

func TestSetPivotAcceptsTenDecimals(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	m := NewCurrencyPivotManager(h.mem, h.opts(true))

	_, err := m.SetPivot(h.ctx, eur.ID, map[uint64]decimal.Decimal{usd.ID: dec("1.0869565217")})
	require.NoError(t, err)
	got, err := m.Get(h.ctx, usd.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0869565217", got.Rate.String())
}

func TestSetPivotUnknownTarget(t *testing.T) {
	h := newHarness(t)
	h.currency("USD", "840", true, "1")
	m := NewCurrencyPivotManager(h.mem, h.opts(true))
	_, err := m.SetPivot(h.ctx, 42, nil)
	assert.True(t, store.IsNotFound(err))
}

func TestSetPivotWritesPivotFirstThenAscendingIDs(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	gbp := h.currency("GBP", "826", false, "0.79")
	cs := &countingStore{Store: h.mem, failAt: 3}
	m := NewCurrencyPivotManager(cs, h.opts(false))

	_, err := m.SetPivot(h.ctx, gbp.ID, map[uint64]decimal.Decimal{usd.ID: dec("1.27"), eur.ID: dec("1.16")})
	var serr *store.StoreError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, errInjected)

	// Non-atomic: the pivot write and the USD write stuck, EUR did not.
	got, _ := m.Get(h.ctx, usd.ID)
	assert.False(t, got.IsPivot)
	assert.Equal(t, "1.27", got.Rate.String())
	got, _ = m.Get(h.ctx, eur.ID)
	assert.Equal(t, "0.92", got.Rate.String())
	assert.Len(t, h.pivots(), 1)

	logs := h.logs.String()
	assert.Contains(t, logs, "partial write")
	assert.Contains(t, logs, "mark currency 3 as pivot")
	assert.Contains(t, logs, "set currency 1 rate 1.27")
	require.Equal(t, []string{queue.KindSequencePartialWrite}, h.audit.kinds())
	ev := h.audit.events[0]
	assert.Equal(t, []string{"mark currency 3 as pivot", "set currency 1 rate 1.27"}, ev.Applied)
	assert.Contains(t, ev.Error, "connection reset by peer")
	// the committed half must not hide behind cached reads
	assert.Equal(t, []string{NamespaceCurrencies}, h.inval.namespaces)
}

func TestSetPivotPartialFailureLeavesTwoPivots(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	cs := &countingStore{Store: h.mem, failAt: 2}
	m := NewCurrencyPivotManager(cs, h.opts(false))

	_, err := m.SetPivot(h.ctx, eur.ID, map[uint64]decimal.Decimal{usd.ID: dec("1.087")})
	require.Error(t, err)
	assert.Len(t, h.pivots(), 2)
	assert.Contains(t, h.inval.namespaces, NamespaceCurrencies)

	// CurrentPivot still answers and flags the condition.
	p, err := m.CurrentPivot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, usd.ID, p.ID)
	assert.Contains(t, h.logs.String(), "more than one pivot currency")
}

func TestSetPivotAtomicRollsBack(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	st := &txCountingStore{countingStore: &countingStore{Store: h.mem, failAt: 2}, mem: h.mem}
	m := NewCurrencyPivotManager(st, h.opts(true))

	_, err := m.SetPivot(h.ctx, eur.ID, map[uint64]decimal.Decimal{usd.ID: dec("1.087")})
	require.Error(t, err)

	pivots := h.pivots()
	require.Len(t, pivots, 1)
	assert.Equal(t, usd.ID, pivots[0].ID)
	got, _ := m.Get(h.ctx, eur.ID)
	assert.Equal(t, "0.92", got.Rate.String())
	assert.Contains(t, h.logs.String(), "operation rolled back")
	assert.Empty(t, h.audit.kinds())
	assert.Empty(t, h.inval.namespaces)
}

func TestSinglePivotAcrossMutations(t *testing.T) {
	for _, atomic := range []bool{true, false} {
		h := newHarness(t)
		m := NewCurrencyPivotManager(h.mem, h.opts(atomic))

		usd, err := m.CreateCurrency(h.ctx, model.Currency{Name: "Dollar", Code: "usd", NumericCode: "840", Precision: 2, IsPivot: true, Rate: dec("1")})
		require.NoError(t, err)
		assert.Equal(t, "USD", usd.Code)

		eur, err := m.CreateCurrency(h.ctx, model.Currency{Name: "Euro", Code: "EUR", NumericCode: "978", Precision: 2, Rate: dec("0.92")})
		require.NoError(t, err)

		gbp, err := m.CreateCurrency(h.ctx, model.Currency{Name: "Pound", Code: "GBP", NumericCode: "826", Precision: 2, IsPivot: true, Rate: dec("1")})
		require.NoError(t, err)
		assertSinglePivot(t, h, gbp.ID)

		yes := true
		_, err = m.UpdateCurrency(h.ctx, eur.ID, model.CurrencyPatch{IsPivot: &yes})
		require.NoError(t, err)
		assertSinglePivot(t, h, eur.ID)

		_, err = m.SetPivot(h.ctx, usd.ID, map[uint64]decimal.Decimal{eur.ID: dec("0.9"), gbp.ID: dec("0.8")})
		require.NoError(t, err)
		assertSinglePivot(t, h, usd.ID)

		all, err := m.List(h.ctx)
		require.NoError(t, err)
		for _, c := range all {
			assert.True(t, c.Rate.IsPositive(), c.Code)
		}
	}
}

func assertSinglePivot(t *testing.T, h *harness, want uint64) {
	t.Helper()
	pivots := h.pivots()
	require.Len(t, pivots, 1)
	assert.Equal(t, want, pivots[0].ID)
	assert.True(t, pivots[0].Rate.Equal(decimal.NewFromInt(1)))
}

func TestCreateCurrencyValidation(t *testing.T) {
	valid := func() model.Currency {
		return model.Currency{Name: "Euro", Code: "EUR", NumericCode: "978", Precision: 2, Rate: dec("0.92")}
	}
	tests := []struct {
		name   string
		mutate func(c *model.Currency)
		field  string
	}{
		{"empty name", func(c *model.Currency) { c.Name = "  " }, "name"},
		{"short code", func(c *model.Currency) { c.Code = "EU" }, "code"},
		{"digit code", func(c *model.Currency) { c.Code = "E1R" }, "code"},
		{"numeric letters", func(c *model.Currency) { c.NumericCode = "9A8" }, "numeric_code"},
		{"precision too high", func(c *model.Currency) { c.Precision = 5 }, "precision"},
		{"negative precision", func(c *model.Currency) { c.Precision = -1 }, "precision"},
		{"zero rate", func(c *model.Currency) { c.Rate = decimal.Zero }, "rate"},
		{"pivot with rate 2", func(c *model.Currency) { c.IsPivot = true; c.Rate = dec("2") }, "rate"},
		{"duplicate code", func(c *model.Currency) { c.Code = "usd" }, "code"},
		{"duplicate numeric", func(c *model.Currency) { c.NumericCode = "840" }, "numeric_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.currency("USD", "840", true, "1")
			m := NewCurrencyPivotManager(h.mem, h.opts(true))
			c := valid()
			tt.mutate(&c)
			_, err := m.CreateCurrency(h.ctx, c)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestFirstCurrencyMustBePivot(t *testing.T) {
	h := newHarness(t)
	m := NewCurrencyPivotManager(h.mem, h.opts(true))
	_, err := m.CreateCurrency(h.ctx, model.Currency{Name: "Euro", Code: "EUR", NumericCode: "978", Rate: dec("0.92")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is_pivot", verr.Field)
}

func TestUpdateCurrency(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	m := NewCurrencyPivotManager(h.mem, h.opts(true))

	name := "Euro (EU)"
	rate := dec("0.93")
	got, err := m.UpdateCurrency(h.ctx, eur.ID, model.CurrencyPatch{Name: &name, Rate: &rate, LocalizedNames: map[string]string{"fr": "euro"}})
	require.NoError(t, err)
	assert.Equal(t, "Euro (EU)", got.Name)
	assert.Equal(t, "0.93", got.Rate.String())
	assert.Equal(t, map[string]string{"fr": "euro"}, got.LocalizedNames)

	no := false
	_, err = m.UpdateCurrency(h.ctx, usd.ID, model.CurrencyPatch{IsPivot: &no})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is_pivot", verr.Field)

	two := dec("2")
	_, err = m.UpdateCurrency(h.ctx, usd.ID, model.CurrencyPatch{Rate: &two})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rate", verr.Field)

	code := "EUR"
	_, err = m.UpdateCurrency(h.ctx, usd.ID, model.CurrencyPatch{Code: &code})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "code", verr.Field)

	_, err = m.UpdateCurrency(h.ctx, 99, model.CurrencyPatch{Name: &name})
	assert.True(t, store.IsNotFound(err))
}

func TestUpdateCurrencyToPivotClearsOldPivotFirst(t *testing.T) {
	h := newHarness(t)
	h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	cs := &countingStore{Store: h.mem, failAt: 2}
	m := NewCurrencyPivotManager(cs, h.opts(false))

	yes := true
	_, err := m.UpdateCurrency(h.ctx, eur.ID, model.CurrencyPatch{IsPivot: &yes})
	require.Error(t, err)

	// The clear went through and the promotion did not: zero pivots until
	// an admin fixes it, and the log says which statement stuck.
	assert.Empty(t, h.pivots())
	assert.Contains(t, h.logs.String(), "clear pivot flag on currency 1")
}

func TestDeleteCurrency(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	m := NewCurrencyPivotManager(h.mem, h.opts(true))

	h.insert(repository.TableProductVariants, store.Row{"product_id": 1, "currency_id": usd.ID})
	variant := h.insert(repository.TableProductVariants, store.Row{"product_id": 1, "currency_id": eur.ID})

	var perr *PivotProtectedError
	require.ErrorAs(t, m.DeleteCurrency(h.ctx, usd.ID), &perr)
	assert.Equal(t, usd.ID, perr.CurrencyID)

	var inUse *InUseError
	require.ErrorAs(t, m.DeleteCurrency(h.ctx, eur.ID), &inUse)
	assert.EqualValues(t, 1, inUse.Count)

	_, err := h.mem.Delete(h.ctx, repository.TableProductVariants, store.Where(store.Eq("id", variant)))
	require.NoError(t, err)
	require.NoError(t, m.DeleteCurrency(h.ctx, eur.ID))

	_, err = m.Get(h.ctx, eur.ID)
	assert.True(t, store.IsNotFound(err))
	assert.True(t, store.IsNotFound(m.DeleteCurrency(h.ctx, eur.ID)))
}

func TestPivotDeleteProtectedWithoutVariants(t *testing.T) {
	h := newHarness(t)
	usd := h.currency("USD", "840", true, "1")
	m := NewCurrencyPivotManager(h.mem, h.opts(false))
	var perr *PivotProtectedError
	assert.ErrorAs(t, m.DeleteCurrency(h.ctx, usd.ID), &perr)
}

func TestCurrencyDuplicateAfterCheckIsFieldError(t *testing.T) {
	h := newHarness(t)
	h.currency("USD", "840", true, "1")
	eur := h.currency("EUR", "978", false, "0.92")
	m := NewCurrencyPivotManager(racingStore{Store: h.mem}, h.opts(false))
	numeric := "840"

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"create with taken code", func() error {
			_, err := m.CreateCurrency(h.ctx, model.Currency{Name: "Euro", Code: "EUR", NumericCode: "999", Precision: 2, Rate: dec("0.9")})
			return err
		}, "code"},
		{"create with taken numeric code", func() error {
			_, err := m.CreateCurrency(h.ctx, model.Currency{Name: "Pound", Code: "GBP", NumericCode: "978", Precision: 2, Rate: dec("0.8")})
			return err
		}, "numeric_code"},
		{"update to taken numeric code", func() error {
			_, err := m.UpdateCurrency(h.ctx, eur.ID, model.CurrencyPatch{NumericCode: &numeric})
			return err
		}, "numeric_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			require.ErrorAs(t, tt.call(), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
