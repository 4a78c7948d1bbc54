package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a monetary unit an admin can enable for payments.  Exactly one
// currency is the pivot; every other currency's Rate states how many units of
// it buy one unit of the pivot.  This struct corresponds to a row in the
// `currencies` table.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – default display name.
//  LocalizedNames – display names keyed by language tag (e.g. "fr").
//  Code           – ISO-4217 alphabetic code, three letters, unique.
//  NumericCode    – ISO-4217 numeric code, three digits, unique.
//  Precision      – advisory number of minor-unit digits (0–4).
//  PaymentEnabled – whether checkout may charge in this currency.
//  IsPivot        – whether this is the reference currency.
//  Rate           – units of this currency per one pivot unit.
type Currency struct {
	ID             uint64            `json:"id"`              // currencies.id
	Name           string            `json:"name"`            // currencies.name
	LocalizedNames map[string]string `json:"localized_names"` // currencies.name_i18n (JSON)
	Code           string            `json:"code"`            // currencies.code
	NumericCode    string            `json:"numeric_code"`    // currencies.numeric_code
	Precision      int               `json:"precision"`       // currencies.precision_digits
	PaymentEnabled bool              `json:"payment_enabled"` // currencies.payment_enabled
	IsPivot        bool              `json:"is_pivot"`        // currencies.is_pivot
	Rate           decimal.Decimal   `json:"rate"`            // currencies.rate DECIMAL(20,10)
	CreatedAt      time.Time         `json:"created_at"`      // currencies.created_at
	UpdatedAt      time.Time         `json:"updated_at"`      // currencies.updated_at
}

// CurrencyPatch carries a partial update.  Nil fields are left untouched.
type CurrencyPatch struct {
	Name           *string           `json:"name"`
	LocalizedNames map[string]string `json:"localized_names"`
	Code           *string           `json:"code"`
	NumericCode    *string           `json:"numeric_code"`
	Precision      *int              `json:"precision"`
	PaymentEnabled *bool             `json:"payment_enabled"`
	IsPivot        *bool             `json:"is_pivot"`
	Rate           *decimal.Decimal  `json:"rate"`
}

// ProductVariant is the sellable unit of a product, priced in one currency.
// Only the currency reference matters to this service.
type ProductVariant struct {
	ID         uint64 `json:"id"`          // product_variants.id
	ProductID  uint64 `json:"product_id"`  // product_variants.product_id
	CurrencyID uint64 `json:"currency_id"` // product_variants.currency_id
}
