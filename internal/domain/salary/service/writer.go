package service

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

const sheetName = "Salarios"

// WriteCSVFile replaces the dataset at path. The content is written to a
// temporary file beside path and renamed over it, so readers never observe a
// partial dataset.
func WriteCSVFile(path string, records []salary.NormalizedRecord) error {
	return writeAtomic(path, func(w io.Writer) error {
		return salary.WriteCSV(w, records)
	})
}

// WriteXLSXFile writes the dataset as a spreadsheet.
func WriteXLSXFile(path string, records []salary.NormalizedRecord, vocab *salary.Vocabulary) error {
	f, err := BuildWorkbook(records, vocab)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	defer f.Close()

	return writeAtomic(path, func(w io.Writer) error {
		return f.Write(w)
	})
}

// BuildWorkbook lays out the dataset on a single sheet with the code meaning
// next to each code and salaries formatted as numbers.
func BuildWorkbook(records []salary.NormalizedRecord, vocab *salary.Vocabulary) (*excelize.File, error) {
	if vocab == nil {
		vocab = salary.DefaultVocabulary()
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	header := []interface{}{"Puesto", "Codigo", "Significado", "Salario"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{r.Title, r.Code, vocab.Describe(r.Code), r.Salary.InexactFloat64()}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if len(records) > 0 {
		money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
		if err != nil {
			f.Close()
			return nil, err
		}
		last := fmt.Sprintf("D%d", len(records)+1)
		if err := f.SetCellStyle(sheetName, "D2", last, money); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.AutoFilter(sheetName, "A1:"+last, nil); err != nil {
			f.Close()
			return nil, err
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 60)
	_ = f.SetColWidth(sheetName, "C", "C", 48)
	_ = f.SetColWidth(sheetName, "D", "D", 16)
	return f, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, path, err)
	}
	return nil
}
