// Package parser turns the published salary PDF into raw grids and decodes
// those grids into candidate salary records.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

// ErrExtraction indicates the document could not be processed at all.
var ErrExtraction = errors.New("pdf table extraction failed")

// ExtractStats describes what the extractor saw in a document.
type ExtractStats struct {
	Pages             int
	PagesWithoutGrids int
	PageErrors        int
	Grids             int
}

// PDFParser extracts raw tables from PDF documents using stream mode:
// column boundaries come from whitespace gaps rather than ruled lines.
type PDFParser struct {
	config StreamConfig
	logger *slog.Logger
}

// NewPDFParser creates a PDF table extractor.
func NewPDFParser(config StreamConfig, logger *slog.Logger) *PDFParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFParser{config: config.withDefaults(), logger: logger}
}

// ExtractTables returns the raw grids of every page of the PDF at path, in
// page order. Pages that cannot be laid out contribute no grids.
func (p *PDFParser) ExtractTables(ctx context.Context, path string) ([]salary.RawGrid, ExtractStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ExtractStats{}, fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, ExtractStats{}, fmt.Errorf("%w: stat %s: %v", ErrExtraction, path, err)
	}

	grids, stats, err := p.ExtractTablesFromReader(ctx, f, info.Size())
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return grids, stats, nil
}

// ExtractTablesFromReader is ExtractTables over an in-memory or open document.
func (p *PDFParser) ExtractTablesFromReader(ctx context.Context, r io.ReaderAt, size int64) (grids []salary.RawGrid, stats ExtractStats, err error) {
	reader, err := openReader(r, size)
	if err != nil {
		return nil, stats, err
	}

	stats.Pages = reader.NumPage()
	if stats.Pages == 0 {
		return nil, stats, fmt.Errorf("%w: document has no pages", ErrExtraction)
	}

	for num := 1; num <= stats.Pages; num++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		frags, err := pageFragments(reader, num)
		if err != nil {
			stats.PageErrors++
			stats.PagesWithoutGrids++
			p.logger.Warn("failed to read page content",
				slog.Int("page", num),
				slog.Any("error", err),
			)
			continue
		}

		pageGrids := BuildGrids(num, frags, p.config)
		if len(pageGrids) == 0 {
			stats.PagesWithoutGrids++
		}
		for _, g := range pageGrids {
			if w := g.Width(); w > 1 && w%windowSize != 0 {
				p.logger.Warn("grid width is not a whole number of record windows",
					slog.Int("page", num),
					slog.Int("grid", g.Index),
					slog.Int("columns", w),
				)
			}
		}
		p.logger.Debug("page laid out",
			slog.Int("page", num),
			slog.Int("fragments", len(frags)),
			slog.Int("grids", len(pageGrids)),
		)
		grids = append(grids, pageGrids...)
	}

	stats.Grids = len(grids)
	return grids, stats, nil
}

func openReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: malformed document: %v", ErrExtraction, rec)
		}
	}()
	reader, err = pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return reader, nil
}

// pageFragments reads the positioned text of a page. The pdf library panics
// on some malformed content streams, which is reported as a page error.
func pageFragments(reader *pdf.Reader, num int) (frags []Fragment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", num, rec)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return nil, nil
	}

	content := page.Content()
	frags = make([]Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		frags = append(frags, Fragment{
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
			S:        t.S,
		})
	}
	return frags, nil
}
