// Package service orchestrates a salary extraction run: retrieval, table
// extraction, block decoding, normalization and persistence of the dataset.
package service

import (
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/normalizer"
)

// maxDropSamples bounds how many dropped candidates a result keeps for logs.
const maxDropSamples = 20

// Drop describes a candidate excluded because its salary did not parse.
type Drop struct {
	Page      int    `json:"page"`
	Row       int    `json:"row"`
	Window    int    `json:"window"`
	Title     string `json:"title"`
	SalaryRaw string `json:"salary_raw"`
	Reason    string `json:"reason"`
}

// AssembleResult is the filtered dataset and its counts.
type AssembleResult struct {
	Records  []salary.NormalizedRecord
	Found    int
	Retained int
	Dropped  int
	Samples  []Drop // first dropped candidates, in extraction order
}

// Merge appends other after r. Merging per-grid results in grid order gives
// the same result as assembling all candidates at once.
func (r *AssembleResult) Merge(other AssembleResult) {
	r.Records = append(r.Records, other.Records...)
	r.Found += other.Found
	r.Retained += other.Retained
	r.Dropped += other.Dropped
	for _, d := range other.Samples {
		if len(r.Samples) >= maxDropSamples {
			break
		}
		r.Samples = append(r.Samples, d)
	}
}

// Assemble normalizes every candidate and keeps those whose salary parsed,
// in their original order.
func Assemble(candidates []salary.CandidateRecord) AssembleResult {
	res := AssembleResult{
		Records: make([]salary.NormalizedRecord, 0, len(candidates)),
		Found:   len(candidates),
	}
	for _, c := range candidates {
		rec, err := normalizer.Normalize(c)
		if err != nil {
			res.Dropped++
			if len(res.Samples) < maxDropSamples {
				res.Samples = append(res.Samples, Drop{
					Page:      c.Page,
					Row:       c.Row,
					Window:    c.Window,
					Title:     normalizer.NormalizeTitle(c.TitleRaw),
					SalaryRaw: c.SalaryRaw.Text,
					Reason:    err.Error(),
				})
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}
	res.Retained = len(res.Records)
	return res
}
