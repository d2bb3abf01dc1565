// Package money formats and converts decree salaries using integer minor
// units and ISO-4217 currency codes.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CRC is the ISO-4217 code of the Costa Rican colón.
const CRC = "CRC"

// colonSigns are the glyphs printed in front of colón amounts. The decree
// PDFs use the cent sign; the proper colón sign appears in newer documents.
var colonSigns = []string{"¢", "₡"}

// StripSymbols removes every colón glyph from s.
func StripSymbols(s string) string {
	for _, sym := range colonSigns {
		s = strings.ReplaceAll(s, sym, "")
	}
	return s
}

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal amount, rounding half away from
// zero to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(CRC)
		currencyCode = CRC
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// Colones is NewFromDecimal in CRC.
func Colones(amount decimal.Decimal) *Money {
	return NewFromDecimal(amount, CRC)
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// Display returns a formatted string such as "₡1,234,567.89".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return money.New(0, CRC).Display()
	}
	return m.m.Display()
}
