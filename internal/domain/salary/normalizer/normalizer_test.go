package normalizer

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/pkg/money"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already clean", "Técnico", "Técnico"},
		{"inner runs", "Auxiliar   de  cocina", "Auxiliar de cocina"},
		{"newlines and tabs", "Operador de\nmaquinaria\tpesada", "Operador de maquinaria pesada"},
		{"surrounding space", "  Peón agrícola \r\n", "Peón agrícola"},
		{"whitespace only", " \n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.input))
		})
	}
}

func TestNormalizeTitle_Idempotent(t *testing.T) {
	faker := gofakeit.New(11)
	for i := 0; i < 100; i++ {
		raw := faker.JobTitle() + "\n " + faker.JobDescriptor() + "  "
		once := NormalizeTitle(raw)
		assert.Equal(t, once, NormalizeTitle(once))
		assert.NotContains(t, once, "  ")
		assert.NotContains(t, once, "\n")
	}
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		name    string
		cell    salary.Cell
		want    string
		wantErr bool
	}{
		{"decree format", salary.TextCell("¢1.234.567,89"), "1234567.89", false},
		{"whole amount", salary.TextCell("¢450.000"), "450000", false},
		{"colon sign", salary.TextCell("₡ 350.000,00"), "350000", false},
		{"surrounding noise", salary.TextCell("  ¢1.200.000,50 mensuales"), "1200000.5", false},
		{"first run wins", salary.TextCell("¢10.000 / ¢20.000"), "10000", false},
		{"no symbol", salary.TextCell("9.876,5"), "9876.5", false},
		{"digits after text", salary.TextCell("Salario: ¢ 12.000"), "12000", false},
		{"no digits", salary.TextCell("N/A"), "", true},
		{"empty", salary.TextCell(""), "", true},
		{"missing", salary.MissingCell(), "", true},
		{"two commas", salary.TextCell("¢1,200,50"), "", true},
		{"comma before amount", salary.TextCell("Salario, ¢450.000"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSalary(tt.cell)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnparseableSalary)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseSalary_GeneratedAmounts(t *testing.T) {
	g := money.NewTestDataGeneratorWithSeed(3)
	for i := 0; i < 200; i++ {
		amount := g.Salary()
		got, err := ParseSalary(salary.TextCell(amount.Text))
		require.NoError(t, err, amount.Text)
		assert.True(t, amount.Value.Equal(got), "%s parsed as %s", amount.Text, got)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("valid candidate", func(t *testing.T) {
		rec, err := Normalize(salary.CandidateRecord{
			TitleRaw:  "Técnico\n en  redes",
			Code:      "TOE",
			SalaryRaw: salary.TextCell("¢450.000"),
		})

		require.NoError(t, err)
		assert.Equal(t, "Técnico en redes", rec.Title)
		assert.Equal(t, "TOE", rec.Code)
		assert.True(t, decimal.NewFromInt(450000).Equal(rec.Salary))
	})

	t.Run("unparseable salary", func(t *testing.T) {
		_, err := Normalize(salary.CandidateRecord{
			TitleRaw:  "Chofer",
			Code:      "TOC",
			SalaryRaw: salary.TextCell("ver anexo"),
		})
		assert.ErrorIs(t, err, ErrUnparseableSalary)
	})
}
