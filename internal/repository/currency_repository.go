package repository

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/store"
)

// CurrencyRepo reads and writes the currencies table.  It performs exactly
// one store call per method so callers control statement order.
type CurrencyRepo struct {
	st store.Store
}

// NewCurrencyRepo binds a CurrencyRepo to a store handle.
func NewCurrencyRepo(st store.Store) *CurrencyRepo { return &CurrencyRepo{st: st} }

// List returns every currency ordered by id.
func (r *CurrencyRepo) List(ctx context.Context) ([]model.Currency, error) {
	rows, err := r.st.Find(ctx, TableCurrencies, nil, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Currency, 0, len(rows))
	for _, row := range rows {
		out = append(out, currencyFromRow(row))
	}
	return out, nil
}

// Get returns one currency or a *store.NotFoundError.
func (r *CurrencyRepo) Get(ctx context.Context, id uint64) (model.Currency, error) {
	row, err := r.st.FindOne(ctx, TableCurrencies, store.Where(store.Eq("id", id)))
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(row), nil
}

// FindByCode looks a currency up by its alphabetic code.
func (r *CurrencyRepo) FindByCode(ctx context.Context, code string) (model.Currency, error) {
	row, err := r.st.FindOne(ctx, TableCurrencies, store.Where(store.Eq("code", code)))
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(row), nil
}

// FindByNumericCode looks a currency up by its numeric code.
func (r *CurrencyRepo) FindByNumericCode(ctx context.Context, code string) (model.Currency, error) {
	row, err := r.st.FindOne(ctx, TableCurrencies, store.Where(store.Eq("numeric_code", code)))
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(row), nil
}

// Pivots returns every currency flagged as pivot.  Outside a failed
// multi-statement write this is exactly one row.
func (r *CurrencyRepo) Pivots(ctx context.Context) ([]model.Currency, error) {
	rows, err := r.st.Find(ctx, TableCurrencies, store.Where(store.Eq("is_pivot", true)), store.FindOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Currency, 0, len(rows))
	for _, row := range rows {
		out = append(out, currencyFromRow(row))
	}
	return out, nil
}

// Create inserts c and returns the stored record.
func (r *CurrencyRepo) Create(ctx context.Context, c model.Currency) (model.Currency, error) {
	row := store.Row{
		"name":             c.Name,
		"name_i18n":        encodeNames(c.LocalizedNames),
		"code":             c.Code,
		"numeric_code":     c.NumericCode,
		"precision_digits": c.Precision,
		"payment_enabled":  c.PaymentEnabled,
		"is_pivot":         c.IsPivot,
		"rate":             c.Rate,
	}
	out, err := r.st.Insert(ctx, TableCurrencies, row)
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(out), nil
}

// Apply writes the non-nil fields of p to currency id.
func (r *CurrencyRepo) Apply(ctx context.Context, id uint64, p model.CurrencyPatch) (model.Currency, error) {
	row := store.Row{}
	if p.Name != nil {
		row["name"] = *p.Name
	}
	if p.LocalizedNames != nil {
		row["name_i18n"] = encodeNames(p.LocalizedNames)
	}
	if p.Code != nil {
		row["code"] = *p.Code
	}
	if p.NumericCode != nil {
		row["numeric_code"] = *p.NumericCode
	}
	if p.Precision != nil {
		row["precision_digits"] = *p.Precision
	}
	if p.PaymentEnabled != nil {
		row["payment_enabled"] = *p.PaymentEnabled
	}
	if p.IsPivot != nil {
		row["is_pivot"] = *p.IsPivot
	}
	if p.Rate != nil {
		row["rate"] = *p.Rate
	}
	out, err := r.st.Update(ctx, TableCurrencies, store.Where(store.Eq("id", id)), row)
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(out), nil
}

// MarkPivot makes id the pivot with rate 1.
func (r *CurrencyRepo) MarkPivot(ctx context.Context, id uint64) (model.Currency, error) {
	out, err := r.st.Update(ctx, TableCurrencies, store.Where(store.Eq("id", id)),
		store.Row{"is_pivot": true, "rate": decimal.NewFromInt(1)})
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(out), nil
}

// Demote clears the pivot flag on id and sets its rate.
func (r *CurrencyRepo) Demote(ctx context.Context, id uint64, rate decimal.Decimal) (model.Currency, error) {
	out, err := r.st.Update(ctx, TableCurrencies, store.Where(store.Eq("id", id)),
		store.Row{"is_pivot": false, "rate": rate})
	if err != nil {
		return model.Currency{}, err
	}
	return currencyFromRow(out), nil
}

// ClearPivot drops the pivot flag from id and leaves its rate alone.
func (r *CurrencyRepo) ClearPivot(ctx context.Context, id uint64) error {
	_, err := r.st.Update(ctx, TableCurrencies, store.Where(store.Eq("id", id)), store.Row{"is_pivot": false})
	return err
}

// Delete removes currency id.
func (r *CurrencyRepo) Delete(ctx context.Context, id uint64) (int64, error) {
	return r.st.Delete(ctx, TableCurrencies, store.Where(store.Eq("id", id)))
}

// VariantCount reports how many product variants are priced in id.
func (r *CurrencyRepo) VariantCount(ctx context.Context, id uint64) (int64, error) {
	return r.st.Count(ctx, TableProductVariants, store.Where(store.Eq("currency_id", id)))
}

func currencyFromRow(row store.Row) model.Currency {
	return model.Currency{
		ID:             row.ID(),
		Name:           row.String("name"),
		LocalizedNames: decodeNames(row.String("name_i18n")),
		Code:           row.String("code"),
		NumericCode:    row.String("numeric_code"),
		Precision:      row.Int("precision_digits"),
		PaymentEnabled: row.Bool("payment_enabled"),
		IsPivot:        row.Bool("is_pivot"),
		Rate:           row.Decimal("rate"),
		CreatedAt:      row.Time("created_at"),
		UpdatedAt:      row.Time("updated_at"),
	}
}

func encodeNames(m map[string]string) any {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(b)
}

func decodeNames(s string) map[string]string {
	out := map[string]string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}
