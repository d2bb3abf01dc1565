// Package normalizer canonicalizes decoded salary records: job titles get
// their whitespace collapsed and salary text becomes an exact decimal.
package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/pkg/money"
)

// ErrUnparseableSalary is returned when no numeric value can be recovered
// from a salary cell.
var ErrUnparseableSalary = errors.New("unparseable salary")

// numberRun matches the first run of digits and dots once the decree's
// thousands and decimal separators have been swapped. A comma in the text
// ahead of the amount becomes a lone "." and the cell is rejected.
var numberRun = regexp.MustCompile(`[0-9.]+`)

// NormalizeTitle collapses every whitespace run, newlines included, into a
// single space and trims the ends.
func NormalizeTitle(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ParseSalary converts a decree amount such as "¢1.234.567,89" into
// 1234567.89. Dots are thousands separators and the comma is the decimal
// separator.
func ParseSalary(cell salary.Cell) (decimal.Decimal, error) {
	if !cell.Present {
		return decimal.Zero, fmt.Errorf("%w: missing cell", ErrUnparseableSalary)
	}

	s := strings.TrimSpace(cell.Text)
	s = money.StripSymbols(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	match := numberRun.FindString(s)
	if match == "" {
		return decimal.Zero, fmt.Errorf("%w: no digits in %q", ErrUnparseableSalary, cell.Text)
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrUnparseableSalary, cell.Text, err)
	}
	return d, nil
}

// Normalize turns a candidate into its canonical record. The code is already
// validated by the decoder and is passed through.
func Normalize(c salary.CandidateRecord) (salary.NormalizedRecord, error) {
	amount, err := ParseSalary(c.SalaryRaw)
	if err != nil {
		return salary.NormalizedRecord{}, err
	}
	return salary.NormalizedRecord{
		Title:  NormalizeTitle(c.TitleRaw),
		Code:   c.Code,
		Salary: amount,
	}, nil
}
