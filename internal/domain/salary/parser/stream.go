package parser

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

// Fragment is a positioned piece of text on a page in PDF user space,
// where Y grows upwards.
type Fragment struct {
	X        float64
	Y        float64
	W        float64
	FontSize float64
	S        string
}

// StreamConfig tunes whitespace-driven column detection. Distances are
// expressed as fractions of the fragment font size.
type StreamConfig struct {
	LineTolerance  float64 // max vertical drift for fragments on the same line
	WordGap        float64 // gap above which a space is inserted inside a cell
	ColumnGap      float64 // gap above which a new cell starts
	TableGapFactor float64 // line pitch multiple that starts a new grid
}

// DefaultStreamConfig returns settings tuned for the decree tables.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		LineTolerance:  0.5,
		WordGap:        0.15,
		ColumnGap:      0.75,
		TableGapFactor: 3.0,
	}
}

func (c StreamConfig) withDefaults() StreamConfig {
	d := DefaultStreamConfig()
	if c.LineTolerance <= 0 {
		c.LineTolerance = d.LineTolerance
	}
	if c.WordGap <= 0 {
		c.WordGap = d.WordGap
	}
	if c.ColumnGap <= 0 {
		c.ColumnGap = d.ColumnGap
	}
	if c.TableGapFactor <= 0 {
		c.TableGapFactor = d.TableGapFactor
	}
	return c
}

// word is a run of glyphs without an inner gap wider than WordGap.
type word struct {
	x0, x1 float64
	text   string
}

// chunk is a run of words on one line bounded by column-sized gaps.
type chunk struct {
	x0, x1 float64
	words  []word
}

func newChunk(words []word) *chunk {
	c := &chunk{x0: words[0].x0, x1: words[0].x1, words: words}
	for _, w := range words[1:] {
		c.x1 = math.Max(c.x1, w.x1)
	}
	return c
}

func (c *chunk) center() float64 { return (c.x0 + c.x1) / 2 }

func (c *chunk) text() string {
	parts := make([]string, len(c.words))
	for i, w := range c.words {
		parts[i] = w.text
	}
	return strings.Join(parts, " ")
}

type line struct {
	y      float64
	chunks []*chunk
}

type interval struct{ x0, x1 float64 }

// BuildGrids lays out the fragments of one page into raw grids. Lines are
// formed from fragments sharing a baseline, cells from runs separated by wide
// gaps, and columns from the gaps most rows of the grid agree on.
func BuildGrids(page int, frags []Fragment, cfg StreamConfig) []salary.RawGrid {
	cfg = cfg.withDefaults()

	lines := groupLines(frags, cfg)
	if len(lines) == 0 {
		return nil
	}

	var grids []salary.RawGrid
	for i, block := range splitBlocks(lines, cfg.TableGapFactor) {
		cols := columnIntervals(block)
		if len(cols) == 0 {
			continue
		}
		grid := salary.RawGrid{Page: page, Index: i, Rows: make([][]salary.Cell, 0, len(block))}
		for _, ln := range block {
			grid.Rows = append(grid.Rows, assignCells(ln, cols))
		}
		grids = append(grids, grid)
	}
	return grids
}

func groupLines(frags []Fragment, cfg StreamConfig) []line {
	kept := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if strings.TrimSpace(f.S) == "" {
			continue
		}
		if f.FontSize <= 0 {
			f.FontSize = 1
		}
		if f.W <= 0 {
			f.W = float64(utf8.RuneCountInString(f.S)) * f.FontSize * 0.5
		}
		kept = append(kept, f)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Y != kept[j].Y {
			return kept[i].Y > kept[j].Y
		}
		return kept[i].X < kept[j].X
	})

	var (
		lines   []line
		current []Fragment
		anchor  float64
	)
	flush := func() {
		if len(current) > 0 {
			lines = append(lines, line{y: anchor, chunks: buildChunks(current, cfg)})
		}
		current = nil
	}
	for _, f := range kept {
		if len(current) > 0 && math.Abs(anchor-f.Y) > cfg.LineTolerance*f.FontSize {
			flush()
		}
		if len(current) == 0 {
			anchor = f.Y
		}
		current = append(current, f)
	}
	flush()
	return lines
}

func buildChunks(frags []Fragment, cfg StreamConfig) []*chunk {
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	var (
		chunks []*chunk
		cur    *chunk
	)
	for _, f := range frags {
		if cur != nil {
			gap := f.X - cur.x1
			switch {
			case gap > cfg.ColumnGap*f.FontSize:
				cur = nil
			case gap > cfg.WordGap*f.FontSize:
				cur.words = append(cur.words, word{x0: f.X, x1: f.X})
			}
		}
		if cur == nil {
			cur = &chunk{x0: f.X, x1: f.X, words: []word{{x0: f.X, x1: f.X}}}
			chunks = append(chunks, cur)
		}
		end := f.X + f.W
		w := &cur.words[len(cur.words)-1]
		w.text += f.S
		w.x1 = math.Max(w.x1, end)
		cur.x1 = math.Max(cur.x1, end)
	}
	return chunks
}

// splitBlocks breaks the page into separate tables wherever the vertical
// distance between lines is much larger than the typical line pitch.
func splitBlocks(lines []line, factor float64) [][]line {
	if len(lines) < 3 {
		return [][]line{lines}
	}
	pitches := make([]float64, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		pitches = append(pitches, lines[i-1].y-lines[i].y)
	}
	sorted := append([]float64(nil), pitches...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return [][]line{lines}
	}

	var (
		blocks [][]line
		start  int
	)
	for i, p := range pitches {
		if p > factor*median {
			blocks = append(blocks, lines[start:i+1])
			start = i + 1
		}
	}
	return append(blocks, lines[start:])
}

// columnIntervals derives the column bands of a block. Each stretch of x is
// a column separator when more rows leave a gap there than put text across
// it, so a single row whose cells run together cannot fuse two columns for
// the whole grid. Lines holding a single cell (titles, footers) only vote
// when no line of the block has more than one cell.
func columnIntervals(block []line) []interval {
	rows := make([]line, 0, len(block))
	for _, ln := range block {
		if len(ln.chunks) > 1 {
			rows = append(rows, ln)
		}
	}
	if len(rows) == 0 {
		rows = block
	}

	var edges []float64
	for _, ln := range rows {
		for _, c := range ln.chunks {
			edges = append(edges, c.x0, c.x1)
		}
	}
	if len(edges) == 0 {
		return nil
	}
	sort.Float64s(edges)

	var (
		bands []interval
		open  bool
	)
	for i := 1; i < len(edges); i++ {
		a, b := edges[i-1], edges[i]
		if b <= a {
			continue
		}
		if isSeparator(rows, (a+b)/2) {
			open = false
			continue
		}
		if open {
			bands[len(bands)-1].x1 = b
			continue
		}
		bands = append(bands, interval{a, b})
		open = true
	}
	if len(bands) == 0 {
		return []interval{{edges[0], edges[len(edges)-1]}}
	}
	return bands
}

// isSeparator weighs the rows with text across x against the rows with a
// gap between two of their cells at x.
func isSeparator(rows []line, x float64) bool {
	var across, gaps int
	for _, ln := range rows {
		for i, c := range ln.chunks {
			if x > c.x0 && x < c.x1 {
				across++
				break
			}
			if i > 0 && x > ln.chunks[i-1].x1 && x < c.x0 {
				gaps++
				break
			}
		}
	}
	return across == 0 || gaps > across
}

// assignCells places the chunks of a line into the column bands. In lines
// with several cells, a chunk spanning more than one band is first split at
// its word boundaries.
func assignCells(ln line, cols []interval) []salary.Cell {
	row := make([]salary.Cell, len(cols))
	for _, c := range ln.chunks {
		parts := []*chunk{c}
		if len(ln.chunks) > 1 {
			parts = splitAcross(c, cols)
		}
		for _, p := range parts {
			idx := columnFor(p.center(), cols)
			text := p.text()
			if row[idx].Present {
				row[idx].Text += " " + text
				continue
			}
			row[idx] = salary.TextCell(text)
		}
	}
	return row
}

// splitAcross cuts a chunk overlapping several bands before the word that
// starts nearest to each crossed band's left edge.
func splitAcross(c *chunk, cols []interval) []*chunk {
	if len(c.words) < 2 {
		return []*chunk{c}
	}
	var crossed []interval
	for _, col := range cols {
		if c.x0 < col.x1 && c.x1 > col.x0 {
			crossed = append(crossed, col)
		}
	}
	if len(crossed) < 2 {
		return []*chunk{c}
	}

	cut := make([]bool, len(c.words))
	for _, col := range crossed[1:] {
		best, bestDist := 0, math.MaxFloat64
		for i := 1; i < len(c.words); i++ {
			if cut[i] {
				continue
			}
			if d := math.Abs(c.words[i].x0 - col.x0); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best > 0 {
			cut[best] = true
		}
	}

	var (
		parts []*chunk
		from  int
	)
	for i := 1; i <= len(c.words); i++ {
		if i == len(c.words) || cut[i] {
			words := append([]word(nil), c.words[from:i]...)
			parts = append(parts, newChunk(words))
			from = i
		}
	}
	return parts
}

func columnFor(x float64, cols []interval) int {
	best, bestDist := 0, math.MaxFloat64
	for i, c := range cols {
		if x >= c.x0 && x <= c.x1 {
			return i
		}
		d := math.Min(math.Abs(x-c.x0), math.Abs(x-c.x1))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
