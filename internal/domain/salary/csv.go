package salary

import (
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// Row is the persisted form of a NormalizedRecord. The column names are the
// contract with the serving layer.
type Row struct {
	Puesto  string          `csv:"Puesto"`
	Codigo  string          `csv:"Codigo"`
	Salario decimal.Decimal `csv:"Salario"`
}

// Header is the dataset header row.
var Header = []string{"Puesto", "Codigo", "Salario"}

// ToRows converts records to their persisted form, preserving order.
func ToRows(records []NormalizedRecord) []Row {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{Puesto: r.Title, Codigo: r.Code, Salario: r.Salary}
	}
	return rows
}

// WriteCSV writes the header and one row per record. Titles containing the
// delimiter or quotes are quoted.
func WriteCSV(w io.Writer, records []NormalizedRecord) error {
	if err := gocsv.Marshal(ToRows(records), w); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return nil
}

// ReadCSV loads a dataset written by WriteCSV. An input with no header at all
// yields an empty dataset.
func ReadCSV(r io.Reader) ([]NormalizedRecord, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	records := make([]NormalizedRecord, len(rows))
	for i, row := range rows {
		records[i] = NormalizedRecord{Title: row.Puesto, Code: row.Codigo, Salary: row.Salario}
	}
	return records, nil
}
