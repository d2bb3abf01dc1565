package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStripSymbols(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cent sign", "¢450.000", "450.000"},
		{"colon sign", "₡450.000", "450.000"},
		{"both", "¢ ₡1", " 1"},
		{"none", "1.000,00", "1.000,00"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripSymbols(tt.in))
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
		wantCode string
	}{
		{"colones", "1234567.89", CRC, 123456789, CRC},
		{"whole", "450000", CRC, 45000000, CRC},
		{"rounds half up", "0.005", CRC, 1, CRC},
		{"unknown currency falls back", "1", "XXX1", 100, CRC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFromDecimal(decimal.RequireFromString(tt.amount), tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.wantCode, m.Currency())
		})
	}
}

func TestMoney_Display(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"millions", "1234567.89", "₡1,234,567.89"},
		{"thousands", "450000", "₡450,000.00"},
		{"zero", "0", "₡0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Colones(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.want, m.Display())
		})
	}

	var nilMoney *Money
	assert.Equal(t, "₡0.00", nilMoney.Display())
}

func TestFormatDecree(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"1234567.89", "¢1.234.567,89"},
		{"450000", "¢450.000"},
		{"999", "¢999"},
		{"1000.5", "¢1.000,50"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDecree(decimal.RequireFromString(tt.value)))
		})
	}
}

func TestTestDataGenerator_Salary(t *testing.T) {
	g := NewTestDataGeneratorWithSeed(42)
	for i := 0; i < 50; i++ {
		s := g.Salary()
		assert.Contains(t, s.Text, "¢")
		assert.True(t, s.Value.GreaterThanOrEqual(decimal.NewFromInt(300_000)), s.Text)
		assert.True(t, s.Value.LessThanOrEqual(decimal.NewFromInt(2_000_000)), s.Text)
	}
}
