package parser

import (
	"strings"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

// windowSize is the number of cells in a (title, code, salary) group.
const windowSize = 3

// DecodeStats tracks how many windows were inspected and kept.
type DecodeStats struct {
	Windows  int
	Accepted int
	Rejected int
}

// Add accumulates other into s.
func (s *DecodeStats) Add(other DecodeStats) {
	s.Windows += other.Windows
	s.Accepted += other.Accepted
	s.Rejected += other.Rejected
}

// Decoder recovers candidate records from raw grids. The source table packs
// several title/code/salary groups side by side on each physical row, so each
// row is read as consecutive fixed-width windows.
type Decoder struct {
	vocab *salary.Vocabulary
}

// NewDecoder creates a decoder validating codes against vocab.
// A nil vocab means the default decree vocabulary.
func NewDecoder(vocab *salary.Vocabulary) *Decoder {
	if vocab == nil {
		vocab = salary.DefaultVocabulary()
	}
	return &Decoder{vocab: vocab}
}

// Decode returns the candidate records of a grid in row then window order.
func (d *Decoder) Decode(grid salary.RawGrid) ([]salary.CandidateRecord, DecodeStats) {
	var (
		out   []salary.CandidateRecord
		stats DecodeStats
	)
	for rowIdx, row := range grid.Rows {
		records, rowStats := d.DecodeRow(row)
		for i := range records {
			records[i].Page = grid.Page
			records[i].Row = rowIdx
		}
		out = append(out, records...)
		stats.Add(rowStats)
	}
	return out, stats
}

// DecodeRow scans one row in windows starting at offset 0. A trailing window
// with fewer than three cells is discarded.
func (d *Decoder) DecodeRow(row []salary.Cell) ([]salary.CandidateRecord, DecodeStats) {
	var (
		out   []salary.CandidateRecord
		stats DecodeStats
	)
	for start := 0; start+windowSize <= len(row); start += windowSize {
		stats.Windows++

		title, code, pay := row[start], row[start+1], row[start+2]
		if code.Blank() || !d.vocab.IsValid(code.Text) || title.Blank() {
			stats.Rejected++
			continue
		}

		stats.Accepted++
		out = append(out, salary.CandidateRecord{
			TitleRaw:  title.Text,
			Code:      strings.TrimSpace(code.Text),
			SalaryRaw: pay,
			Window:    start / windowSize,
		})
	}
	return out, stats
}
