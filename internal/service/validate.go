package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/mall-admin/internal/model"
)

// MaxRateScale is the number of decimal places a stored rate may carry.
const MaxRateScale = 10

// MaxPrecision bounds the advisory minor-unit digits of a currency.
const MaxPrecision = 4

var (
	alphaCode   = regexp.MustCompile(`^[A-Z]{3}$`)
	numericCode = regexp.MustCompile(`^[0-9]{3}$`)
	one         = decimal.NewFromInt(1)
)

// validateRate checks that d is a usable exchange rate.
func validateRate(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return invalid(field, "rate must be greater than zero")
	}
	if !d.Equal(d.Truncate(MaxRateScale)) {
		return invalid(field, "rate must have at most %d decimal places", MaxRateScale)
	}
	return nil
}

// normalizeCurrency trims and uppercases codes in place and validates every
// field of a full currency record.
func normalizeCurrency(c *model.Currency) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.NumericCode = strings.TrimSpace(c.NumericCode)
	if c.Name == "" {
		return invalid("name", "name is required")
	}
	if !alphaCode.MatchString(c.Code) {
		return invalid("code", "code must be three letters")
	}
	if !numericCode.MatchString(c.NumericCode) {
		return invalid("numeric_code", "numeric code must be three digits")
	}
	if c.Precision < 0 || c.Precision > MaxPrecision {
		return invalid("precision", "precision must be between 0 and %d", MaxPrecision)
	}
	return validateRate("rate", c.Rate)
}

// normalizePatch applies the same rules to the fields a patch carries.
func normalizePatch(p *model.CurrencyPatch) error {
	if p.Name != nil {
		s := strings.TrimSpace(*p.Name)
		if s == "" {
			return invalid("name", "name is required")
		}
		p.Name = &s
	}
	if p.Code != nil {
		s := strings.ToUpper(strings.TrimSpace(*p.Code))
		if !alphaCode.MatchString(s) {
			return invalid("code", "code must be three letters")
		}
		p.Code = &s
	}
	if p.NumericCode != nil {
		s := strings.TrimSpace(*p.NumericCode)
		if !numericCode.MatchString(s) {
			return invalid("numeric_code", "numeric code must be three digits")
		}
		p.NumericCode = &s
	}
	if p.Precision != nil && (*p.Precision < 0 || *p.Precision > MaxPrecision) {
		return invalid("precision", "precision must be between 0 and %d", MaxPrecision)
	}
	if p.Rate != nil {
		return validateRate("rate", *p.Rate)
	}
	return nil
}

func rateField(id uint64) string { return fmt.Sprintf("rates[%d]", id) }
