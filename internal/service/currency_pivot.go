package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/store"
)

// CurrencyPivotManager owns the currencies table.  It keeps exactly one
// pivot at all times: the pivot's rate is 1 and every other rate is
// expressed against it.
type CurrencyPivotManager struct {
	core
}

// NewCurrencyPivotManager returns a manager over st.
func NewCurrencyPivotManager(st store.Store, opts Options) *CurrencyPivotManager {
	return &CurrencyPivotManager{core: newCore(st, opts, "currency", NamespaceCurrencies)}
}

// List returns every currency ordered by id.
func (m *CurrencyPivotManager) List(ctx context.Context) ([]model.Currency, error) {
	return m.repos().Currencies.List(ctx)
}

// Get returns one currency or a *store.NotFoundError.
func (m *CurrencyPivotManager) Get(ctx context.Context, id uint64) (model.Currency, error) {
	return m.repos().Currencies.Get(ctx, id)
}

// CurrentPivot returns the pivot currency.  More than one pivot only exists
// after a failed non-atomic write; the lowest id is returned and the
// condition is logged.
func (m *CurrencyPivotManager) CurrentPivot(ctx context.Context) (model.Currency, error) {
	pivots, err := m.repos().Currencies.Pivots(ctx)
	if err != nil {
		return model.Currency{}, err
	}
	if len(pivots) == 0 {
		return model.Currency{}, &store.NotFoundError{Table: "currencies", Filter: store.Where(store.Eq("is_pivot", true))}
	}
	if len(pivots) > 1 {
		ids := make([]uint64, len(pivots))
		for i, p := range pivots {
			ids[i] = p.ID
		}
		m.log.Errorj(log.JSON{"msg": "more than one pivot currency", "currency_ids": ids})
	}
	return pivots[0], nil
}

// CreateCurrency validates c and inserts it.  A currency created as pivot
// must have rate 1 and takes the flag away from the current pivot first.
// The first currency ever created must be the pivot.
func (m *CurrencyPivotManager) CreateCurrency(ctx context.Context, c model.Currency) (model.Currency, error) {
	if err := normalizeCurrency(&c); err != nil {
		return model.Currency{}, err
	}
	if c.IsPivot && !c.Rate.Equal(one) {
		return model.Currency{}, invalid("rate", "the pivot currency must have rate 1")
	}

	var created model.Currency
	seq, err := m.write(ctx, "create_currency", "currency:"+c.Code, func(s *sequence) error {
		if err := uniqueCodes(ctx, s, 0, &c.Code, &c.NumericCode); err != nil {
			return err
		}
		pivots, err := s.Currencies.Pivots(ctx)
		if err != nil {
			return err
		}
		if !c.IsPivot && len(pivots) == 0 {
			return invalid("is_pivot", "the first currency must be the pivot")
		}
		if c.IsPivot {
			for _, p := range pivots {
				if err := s.execf(func() error { return s.Currencies.ClearPivot(ctx, p.ID) },
					"clear pivot flag on currency %d", p.ID); err != nil {
					return err
				}
			}
		}
		return s.execf(func() error {
			var err error
			created, err = s.Currencies.Create(ctx, c)
			return err
		}, "insert currency %s", c.Code)
	})
	if err != nil {
		return model.Currency{}, duplicateCode(err, &c.Code, &c.NumericCode)
	}
	m.after(ctx, seq, queue.KindCurrencyCreated, subjectCurrency(created.ID),
		map[string]any{"code": created.Code, "is_pivot": created.IsPivot})
	return created, nil
}

// UpdateCurrency applies patch to currency id.  Setting IsPivot to true
// moves the pivot flag here (rate forced to 1) without touching other
// rates; use SetPivot to re-express rates.  Clearing the flag on the pivot
// is refused since it would leave no pivot.
func (m *CurrencyPivotManager) UpdateCurrency(ctx context.Context, id uint64, patch model.CurrencyPatch) (model.Currency, error) {
	if err := normalizePatch(&patch); err != nil {
		return model.Currency{}, err
	}

	var updated model.Currency
	seq, err := m.write(ctx, "update_currency", subjectCurrency(id), func(s *sequence) error {
		cur, err := s.Currencies.Get(ctx, id)
		if err != nil {
			return err
		}
		becomingPivot := patch.IsPivot != nil && *patch.IsPivot && !cur.IsPivot
		if patch.IsPivot != nil && !*patch.IsPivot && cur.IsPivot {
			return invalid("is_pivot", "cannot unset the pivot; choose another pivot instead")
		}
		if cur.IsPivot || becomingPivot {
			if patch.Rate != nil && !patch.Rate.Equal(one) {
				return invalid("rate", "the pivot currency must have rate 1")
			}
			if becomingPivot {
				r := one
				patch.Rate = &r
			}
		}
		if err := uniqueCodes(ctx, s, id, patch.Code, patch.NumericCode); err != nil {
			return err
		}

		if becomingPivot {
			pivots, err := s.Currencies.Pivots(ctx)
			if err != nil {
				return err
			}
			for _, p := range pivots {
				if err := s.execf(func() error { return s.Currencies.ClearPivot(ctx, p.ID) },
					"clear pivot flag on currency %d", p.ID); err != nil {
					return err
				}
			}
		}
		return s.execf(func() error {
			var err error
			updated, err = s.Currencies.Apply(ctx, id, patch)
			return err
		}, "update currency %d", id)
	})
	if err != nil {
		return model.Currency{}, duplicateCode(err, patch.Code, patch.NumericCode)
	}
	m.after(ctx, seq, queue.KindCurrencyUpdated, subjectCurrency(id),
		map[string]any{"is_pivot": updated.IsPivot, "rate": updated.Rate.String()})
	return updated, nil
}

// SetPivot makes newPivotID the pivot and rewrites every other currency's
// rate from rates, which must hold exactly one entry per non-pivot
// currency.  All input is validated before the first write.  The new pivot
// is written first, then the others in ascending id order.
func (m *CurrencyPivotManager) SetPivot(ctx context.Context, newPivotID uint64, rates map[uint64]decimal.Decimal) ([]model.Currency, error) {
	for id, r := range rates {
		if err := validateRate(rateField(id), r); err != nil {
			return nil, err
		}
	}

	var (
		out     []model.Currency
		oldIDs  []uint64
		changed int
	)
	seq, err := m.write(ctx, "set_pivot", subjectCurrency(newPivotID), func(s *sequence) error {
		all, err := s.Currencies.List(ctx)
		if err != nil {
			return err
		}
		var target *model.Currency
		known := make(idSet, len(all))
		for i := range all {
			known.add(all[i].ID)
			if all[i].ID == newPivotID {
				target = &all[i]
			}
			if all[i].IsPivot {
				oldIDs = append(oldIDs, all[i].ID)
			}
		}
		if target == nil {
			return &store.NotFoundError{Table: "currencies", Filter: store.Where(store.Eq("id", newPivotID))}
		}
		if _, ok := rates[newPivotID]; ok {
			return invalid(rateField(newPivotID), "the new pivot takes rate 1; do not supply it")
		}
		var unknown []uint64
		for id := range rates {
			if !known.has(id) {
				unknown = append(unknown, id)
			}
		}
		if len(unknown) > 0 {
			sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
			return invalid("rates", "unknown currency ids %v", unknown)
		}
		for _, c := range all {
			if c.ID == newPivotID {
				continue
			}
			if _, ok := rates[c.ID]; !ok {
				return invalid("rates", "missing rate for currency %s (%d)", c.Code, c.ID)
			}
		}

		pivot, err := m.markPivot(ctx, s, newPivotID)
		if err != nil {
			return err
		}
		out = append(out, pivot)
		for _, c := range all {
			if c.ID == newPivotID {
				continue
			}
			rate := rates[c.ID]
			var demoted model.Currency
			if err := s.execf(func() error {
				var err error
				demoted, err = s.Currencies.Demote(ctx, c.ID, rate)
				return err
			}, "set currency %d rate %s", c.ID, rate.String()); err != nil {
				return err
			}
			out = append(out, demoted)
		}
		changed = len(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	m.after(ctx, seq, queue.KindPivotChanged, subjectCurrency(newPivotID),
		map[string]any{"from": oldIDs, "to": newPivotID, "currencies": changed})
	return out, nil
}

func (m *CurrencyPivotManager) markPivot(ctx context.Context, s *sequence, id uint64) (model.Currency, error) {
	var c model.Currency
	err := s.execf(func() error {
		var err error
		c, err = s.Currencies.MarkPivot(ctx, id)
		return err
	}, "mark currency %d as pivot", id)
	return c, err
}

// DeleteCurrency removes currency id.  The pivot cannot be deleted and
// neither can a currency that product variants are priced in.
func (m *CurrencyPivotManager) DeleteCurrency(ctx context.Context, id uint64) error {
	seq, err := m.write(ctx, "delete_currency", subjectCurrency(id), func(s *sequence) error {
		cur, err := s.Currencies.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.IsPivot {
			return &PivotProtectedError{CurrencyID: id}
		}
		n, err := s.Currencies.VariantCount(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &InUseError{Entity: "currency", ID: id, Dependent: "product variants", Count: n}
		}
		return s.execf(func() error {
			_, err := s.Currencies.Delete(ctx, id)
			return err
		}, "delete currency %d", id)
	})
	if err != nil {
		return err
	}
	m.after(ctx, seq, queue.KindCurrencyDeleted, subjectCurrency(id), nil)
	return nil
}

// uniqueCodes refuses codes already used by a currency other than self.
func uniqueCodes(ctx context.Context, s *sequence, self uint64, code, numeric *string) error {
	if code != nil {
		c, err := s.Currencies.FindByCode(ctx, *code)
		switch {
		case err == nil && c.ID != self:
			return invalid("code", "code %s is already used", *code)
		case err != nil && !store.IsNotFound(err):
			return err
		}
	}
	if numeric != nil {
		c, err := s.Currencies.FindByNumericCode(ctx, *numeric)
		switch {
		case err == nil && c.ID != self:
			return invalid("numeric_code", "numeric code %s is already used", *numeric)
		case err != nil && !store.IsNotFound(err):
			return err
		}
	}
	return nil
}

// duplicateCode reports a unique-key violation that got past uniqueCodes
// (a concurrent insert) as the same field error.
func duplicateCode(err error, code, numeric *string) error {
	if !store.IsDuplicate(err) {
		return err
	}
	if numeric != nil && (code == nil || strings.Contains(err.Error(), "numeric_code")) {
		return invalid("numeric_code", "numeric code %s is already used", *numeric)
	}
	if code != nil {
		return invalid("code", "code %s is already used", *code)
	}
	return err
}

func subjectCurrency(id uint64) string { return fmt.Sprintf("currency:%d", id) }
