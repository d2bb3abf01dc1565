// Package e2etest provides end-to-end tests from source document to HTTP.
package e2etest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/handler"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/parser"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/repository"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/retriever"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/service"
)

const testDataDir = "testdata"

type salaryRow struct {
	Puesto  string  `json:"Puesto"`
	Codigo  string  `json:"Codigo"`
	Salario float64 `json:"Salario"`
}

// gridExtractor stands in for the PDF parser with fixed grids.
type gridExtractor struct {
	grids []salary.RawGrid
}

func (e gridExtractor) ExtractTables(context.Context, string) ([]salary.RawGrid, parser.ExtractStats, error) {
	return e.grids, parser.ExtractStats{Pages: 2, Grids: len(e.grids)}, nil
}

func row(cells ...string) []salary.Cell {
	out := make([]salary.Cell, len(cells))
	for i, c := range cells {
		if c == "" {
			out[i] = salary.MissingCell()
			continue
		}
		out[i] = salary.TextCell(c)
	}
	return out
}

func listSalaries(t *testing.T, ds *repository.Dataset) (int, []salaryRow) {
	t.Helper()
	mux := http.NewServeMux()
	handler.NewSalaryHandler(ds, nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/salaries", nil))

	var rows []salaryRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	return rec.Code, rows
}

func TestPipelineToHTTP(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "lista.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 placeholder"), 0o600))
	out := filepath.Join(dir, "salarios_limpios.csv")

	grids := []salary.RawGrid{
		{Page: 1, Index: 0, Rows: [][]salary.Cell{
			row("Puesto", "Código", "Salario"),
			row("Peón\nagrícola", "TONC", "¢ 12.345,67"),
			row("Chofer de bus", "TOC", "₡ 410.000,00", "Técnico en refrigeración", "TOE", "450.000,00"),
		}},
		{Page: 2, Index: 0, Rows: [][]salary.Cell{
			row("Abogado", "Lic", "por definir"),
			row("Bachiller", "Bach", "", "Diplomado", "DES", "600.000,00"),
			row("Agente", "toe", "300.000,00"),
		}},
	}

	ds := repository.NewDataset(out, nil, nil)
	t.Cleanup(func() { _ = ds.Close() })

	status, _ := listSalaries(t, ds)
	assert.Equal(t, http.StatusNotFound, status)

	pipeline := service.NewPipelineService(retriever.NewLocalSource(pdfPath), gridExtractor{grids: grids}, out, nil).
		WithWorkers(2).
		WithReloader(ds)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Found)
	assert.Equal(t, 4, report.Retained)
	assert.Equal(t, 2, report.Dropped)

	csvData, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "Puesto,Codigo,Salario\n")

	status, rows := listSalaries(t, ds)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []salaryRow{
		{"Peón agrícola", "TONC", 12345.67},
		{"Chofer de bus", "TOC", 410000},
		{"Técnico en refrigeración", "TOE", 450000},
		{"Diplomado", "DES", 600000},
	}, rows)
}

func TestPublishedDecree(t *testing.T) {
	pdfPath := filepath.Join(testDataDir, "lista_salarios_2025.pdf")
	if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
		t.Skipf("Test data file not found: %s (add the published decree PDF to run this test)", pdfPath)
	}

	out := filepath.Join(t.TempDir(), "salarios_limpios_2025.csv")
	ds := repository.NewDataset(out, nil, nil)
	t.Cleanup(func() { _ = ds.Close() })

	pipeline := service.NewPipelineService(
		retriever.NewLocalSource(pdfPath),
		parser.NewPDFParser(parser.DefaultStreamConfig(), nil),
		out, nil,
	).WithReloader(ds)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, report.Retained, "expected records from the published decree")
	t.Logf("pages=%d grids=%d found=%d retained=%d dropped=%d",
		report.Pages, report.Grids, report.Found, report.Retained, report.Dropped)

	vocab := salary.DefaultVocabulary()
	for _, r := range ds.All() {
		assert.True(t, vocab.IsValid(r.Code), "unexpected code %q", r.Code)
		assert.NotContains(t, r.Title, "\n")
		assert.True(t, r.Salary.IsPositive(), "salary for %q", r.Title)
	}
}
