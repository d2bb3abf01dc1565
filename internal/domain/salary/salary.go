// Package salary holds the record types shared by the minimum-wage extraction
// pipeline and the serving layer.
package salary

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cell is a single text cell of a RawGrid. A cell that the layout did not
// populate is not Present.
type Cell struct {
	Text    string
	Present bool
}

// TextCell returns a present cell holding s.
func TextCell(s string) Cell {
	return Cell{Text: s, Present: true}
}

// MissingCell returns a cell with no value.
func MissingCell() Cell {
	return Cell{}
}

// Blank reports whether the cell is missing or holds only whitespace.
func (c Cell) Blank() bool {
	return !c.Present || strings.TrimSpace(c.Text) == ""
}

// RawGrid is a page-scoped table recovered from the PDF. Column indices are
// layout artifacts and carry no meaning across grids.
type RawGrid struct {
	Page  int // 1-based page number
	Index int // grid position within the page
	Rows  [][]Cell
}

// Width returns the widest row length of the grid.
func (g RawGrid) Width() int {
	w := 0
	for _, row := range g.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// CandidateRecord is a decoded (title, code, salary) window with its raw text
// carried through verbatim.
type CandidateRecord struct {
	TitleRaw  string
	Code      string
	SalaryRaw Cell
	Page      int
	Row       int
	Window    int
}

// NormalizedRecord is the canonical record written to the dataset.
type NormalizedRecord struct {
	Title  string
	Code   string
	Salary decimal.Decimal
}

// Edition identifies the dataset produced by one run from one document.
type Edition struct {
	RunID       uuid.UUID
	Label       string // decree year, e.g. "2025"
	SourceURL   string
	SHA256      string
	RetrievedAt time.Time
	ExtractedAt time.Time
}
