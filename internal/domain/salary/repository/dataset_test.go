package repository

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

var datasetRecords = []salary.NormalizedRecord{
	{Title: "Técnico en refrigeración", Code: "TOE", Salary: decimal.NewFromInt(450000)},
	{Title: "Peón agrícola", Code: "TONC", Salary: decimal.RequireFromString("350123.45")},
	{Title: "Abogado", Code: "Lic", Salary: decimal.RequireFromString("1200000.50")},
	{Title: "Chofer de bus", Code: "TOC", Salary: decimal.NewFromInt(410000)},
	{Title: "Técnico electricista", Code: "TOE", Salary: decimal.NewFromInt(455000)},
}

func writeDataset(t *testing.T, path string, records []salary.NormalizedRecord) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, salary.WriteCSV(&buf, records))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func loadedDataset(t *testing.T, records []salary.NormalizedRecord) *Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salarios.csv")
	writeDataset(t, path, records)

	d := NewDataset(path, nil, nil)
	require.NoError(t, d.Reload())
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func titles(records []salary.NormalizedRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestDataset_MissingFile(t *testing.T) {
	d := NewDataset(filepath.Join(t.TempDir(), "absent.csv"), nil, nil)

	err := d.Reload()
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.All())
	assert.True(t, d.LoadedAt().IsZero())

	hits, err := d.Search("tecnico", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDataset_HeaderOnlyFile(t *testing.T) {
	d := loadedDataset(t, nil)
	assert.Equal(t, 0, d.Len())
	assert.NotNil(t, d.All())
	assert.False(t, d.LoadedAt().IsZero())
}

func TestDataset_AllKeepsFileOrder(t *testing.T) {
	d := loadedDataset(t, datasetRecords)

	all := d.All()
	require.Len(t, all, len(datasetRecords))
	assert.Equal(t, titles(datasetRecords), titles(all))
	assert.True(t, datasetRecords[1].Salary.Equal(all[1].Salary))

	all[0].Title = "mutated"
	assert.Equal(t, "Técnico en refrigeración", d.All()[0].Title)
}

func TestDataset_Filter(t *testing.T) {
	d := loadedDataset(t, datasetRecords)

	tests := []struct {
		name string
		q    string
		code string
		want []string
	}{
		{"no filters", "", "", titles(datasetRecords)},
		{"accent insensitive", "tecnico", "", []string{"Técnico en refrigeración", "Técnico electricista"}},
		{"case insensitive", "PEON", "", []string{"Peón agrícola"}},
		{"every term must match", "tecnico electricista", "", []string{"Técnico electricista"}},
		{"code meaning", "licenciado", "", []string{"Abogado"}},
		{"salary digits", "410000", "", []string{"Chofer de bus"}},
		{"code term", "tonc", "", []string{"Peón agrícola"}},
		{"one typo tolerated", "tecnco", "", []string{"Técnico en refrigeración", "Técnico electricista"}},
		{"code filter", "", "TOE", []string{"Técnico en refrigeración", "Técnico electricista"}},
		{"code filter is exact", "", "toe", []string{}},
		{"code and query", "refrigeracion", "TOE", []string{"Técnico en refrigeración"}},
		{"no match", "astronauta", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(d.Filter(tt.q, tt.code)))
		})
	}
}

func TestDataset_Search(t *testing.T) {
	d := loadedDataset(t, datasetRecords)

	hits, err := d.Search("tecnico", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "TOE", h.Record.Code)
		assert.Greater(t, h.Score, 0.0)
	}

	hits, err = d.Search("Lic", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Abogado", hits[0].Record.Title)

	hits, err = d.Search("refrigeracion", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Técnico en refrigeración", hits[0].Record.Title)
}

func TestCheckIndexed(t *testing.T) {
	index, err := NewSearchIndex(datasetRecords, salary.DefaultVocabulary())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	closed, err := NewSearchIndex(datasetRecords[:1], salary.DefaultVocabulary())
	require.NoError(t, err)
	require.NoError(t, closed.Close())

	tests := []struct {
		name    string
		index   *SearchIndex
		want    int
		wantErr error
	}{
		{"every row indexed", index, len(datasetRecords), nil},
		{"rows missing", index, len(datasetRecords) + 1, ErrIndexIncomplete},
		{"closed index", closed, 1, ErrIndexClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkIndexed(tt.index, tt.want)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDataset_ReloadReplacesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salarios.csv")
	writeDataset(t, path, datasetRecords[:2])

	d := NewDataset(path, nil, nil)
	require.NoError(t, d.Load(path))
	t.Cleanup(func() { _ = d.Close() })
	assert.Equal(t, 2, d.Len())
	first := d.LoadedAt()

	writeDataset(t, path, datasetRecords)
	require.NoError(t, d.Reload())
	assert.Equal(t, len(datasetRecords), d.Len())
	assert.False(t, d.LoadedAt().Before(first))

	hits, err := d.Search("abogado", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDataset_FailedReloadKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salarios.csv")
	writeDataset(t, path, datasetRecords)

	d := NewDataset(path, nil, nil)
	require.NoError(t, d.Reload())
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, os.WriteFile(path, []byte("Puesto,Codigo,Salario\nX,TOE,not-a-number\n"), 0o644))
	err := d.Reload()
	assert.ErrorIs(t, err, ErrDatasetNotLoaded)
	assert.Equal(t, len(datasetRecords), d.Len())

	require.NoError(t, os.Remove(path))
	assert.ErrorIs(t, d.Reload(), ErrDatasetNotLoaded)
	assert.Equal(t, len(datasetRecords), d.Len())
}

func TestDataset_ConcurrentReadersDuringReload(t *testing.T) {
	faker := gofakeit.New(11)
	codes := salary.DefaultVocabulary().Codes()

	records := make([]salary.NormalizedRecord, 200)
	for i := range records {
		records[i] = salary.NormalizedRecord{
			Title:  faker.JobTitle(),
			Code:   codes[faker.Number(0, len(codes)-1)].Code,
			Salary: decimal.NewFromInt(int64(faker.Number(300000, 2000000))),
		}
	}
	d := loadedDataset(t, records)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n := len(d.All())
				assert.True(t, n == 200, "reader saw a partial dataset of %d", n)
				_ = d.Filter("a", "")
				_, err := d.Search("manager", 5)
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Reload())
	}
	wg.Wait()
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Peón agrícola", "peon agricola"},
		{"  TÉCNICO  ", "tecnico"},
		{"Ñandú", "nandu"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}
