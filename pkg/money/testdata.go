package money

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates decree-style salary data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// DecreeAmount is a salary as printed in the decree together with its value.
type DecreeAmount struct {
	Text  string
	Value decimal.Decimal
}

// Salary returns a monthly minimum wage between ₡300,000 and ₡2,000,000
// printed the way the decree does: "¢1.234.567,89".
func (g *TestDataGenerator) Salary() DecreeAmount {
	cents := int64(g.faker.IntRange(30_000_000, 200_000_000))
	if g.faker.Bool() {
		cents -= cents % 100
	}
	value := decimal.New(cents, -2)
	return DecreeAmount{Text: FormatDecree(value), Value: value}
}

// FormatDecree prints a value with '.' thousands and ',' decimals behind the
// cent sign. Whole amounts have no decimal part.
func FormatDecree(value decimal.Decimal) string {
	whole := value.Truncate(0)
	frac := value.Sub(whole)

	digits := whole.Abs().String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if !frac.IsZero() {
		b.WriteByte(',')
		b.WriteString(strings.TrimPrefix(frac.Abs().StringFixed(2), "0."))
	}
	return "¢" + b.String()
}
