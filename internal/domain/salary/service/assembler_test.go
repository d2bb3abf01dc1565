package service

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

func candidate(title, code, pay string) salary.CandidateRecord {
	return salary.CandidateRecord{TitleRaw: title, Code: code, SalaryRaw: salary.TextCell(pay)}
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name         string
		candidates   []salary.CandidateRecord
		wantTitles   []string
		wantDropped  int
		wantSalaries []string
	}{
		{
			name:       "empty",
			candidates: nil,
		},
		{
			name: "all valid",
			candidates: []salary.CandidateRecord{
				candidate("Técnico", "TOE", "¢450.000"),
				candidate("Abogado", "Lic", "¢1.200.000,50"),
			},
			wantTitles:   []string{"Técnico", "Abogado"},
			wantSalaries: []string{"450000", "1200000.50"},
		},
		{
			name: "unparseable salaries dropped in place",
			candidates: []salary.CandidateRecord{
				candidate("Peón", "TONC", "¢350.000"),
				candidate("Chofer", "TOC", "N/A"),
				candidate("Guarda", "TOSC", "¢380.000"),
				{TitleRaw: "Conserje", Code: "TONC", SalaryRaw: salary.MissingCell()},
			},
			wantTitles:   []string{"Peón", "Guarda"},
			wantDropped:  2,
			wantSalaries: []string{"350000", "380000"},
		},
		{
			name: "all dropped",
			candidates: []salary.CandidateRecord{
				candidate("Chofer", "TOC", "s/n"),
				candidate("Peón", "TONC", ""),
			},
			wantDropped: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Assemble(tt.candidates)

			assert.Equal(t, len(tt.candidates), res.Found)
			assert.Equal(t, len(tt.wantTitles), res.Retained)
			assert.Equal(t, tt.wantDropped, res.Dropped)
			assert.Equal(t, res.Found, res.Retained+res.Dropped)
			assert.Len(t, res.Samples, tt.wantDropped)

			require.Len(t, res.Records, len(tt.wantTitles))
			for i, r := range res.Records {
				assert.Equal(t, tt.wantTitles[i], r.Title)
				assert.True(t, decimal.RequireFromString(tt.wantSalaries[i]).Equal(r.Salary))
			}
		})
	}
}

func TestAssemble_StableOrder(t *testing.T) {
	faker := gofakeit.New(5)
	var (
		candidates []salary.CandidateRecord
		kept       []string
	)
	for i := 0; i < 300; i++ {
		title := faker.JobTitle() + " " + faker.DigitN(4)
		if faker.Bool() {
			candidates = append(candidates, candidate(title, "TOE", "¢"+faker.DigitN(6)))
			kept = append(kept, title)
		} else {
			candidates = append(candidates, candidate(title, "TOE", "sin dato"))
		}
	}

	res := Assemble(candidates)

	titles := make([]string, len(res.Records))
	for i, r := range res.Records {
		titles[i] = r.Title
	}
	assert.Equal(t, kept, titles)
	assert.LessOrEqual(t, len(res.Samples), maxDropSamples)
}

func TestAssembleResult_Merge(t *testing.T) {
	a := Assemble([]salary.CandidateRecord{candidate("A", "TOE", "¢1"), candidate("B", "TOE", "x")})
	b := Assemble([]salary.CandidateRecord{candidate("C", "TOE", "¢3")})

	var total AssembleResult
	total.Merge(a)
	total.Merge(b)

	assert.Equal(t, 3, total.Found)
	assert.Equal(t, 2, total.Retained)
	assert.Equal(t, 1, total.Dropped)
	require.Len(t, total.Records, 2)
	assert.Equal(t, "A", total.Records[0].Title)
	assert.Equal(t, "C", total.Records[1].Title)
}
