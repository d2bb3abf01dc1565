// Package repository owns the loaded salary dataset, its search index and the
// optional Postgres mirror of extracted editions.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

// ErrDatasetNotLoaded is returned when the dataset file cannot be read.
var ErrDatasetNotLoaded = errors.New("dataset not loaded")

// ErrIndexIncomplete is returned when the rebuilt search index is missing rows.
var ErrIndexIncomplete = errors.New("search index incomplete")

// Dataset is the read-mostly, in-memory view of the pipeline output. Readers
// never observe a partially loaded dataset: Reload builds a complete snapshot
// and swaps it in under the write lock.
type Dataset struct {
	reloadMu sync.Mutex // single writer

	mu       sync.RWMutex
	path     string
	records  []salary.NormalizedRecord
	keys     []string
	index    *SearchIndex
	loadedAt time.Time

	vocab  *salary.Vocabulary
	logger *slog.Logger
}

// NewDataset creates an empty dataset bound to path. Call Reload to read it.
func NewDataset(path string, vocab *salary.Vocabulary, logger *slog.Logger) *Dataset {
	if vocab == nil {
		vocab = salary.DefaultVocabulary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dataset{path: path, vocab: vocab, logger: logger}
}

// Load points the dataset at path and reads it.
func (d *Dataset) Load(path string) error {
	d.mu.Lock()
	d.path = path
	d.mu.Unlock()
	return d.Reload()
}

// Reload re-reads the dataset file and rebuilds the search index. On failure
// the previously loaded snapshot stays in place.
func (d *Dataset) Reload() error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	d.mu.RLock()
	path := d.path
	d.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDatasetNotLoaded, path, err)
	}
	records, err := salary.ReadCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDatasetNotLoaded, path, err)
	}

	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = d.searchKey(r)
	}

	index, err := NewSearchIndex(records, d.vocab)
	if err != nil {
		return fmt.Errorf("failed to build search index: %w", err)
	}
	if err := checkIndexed(index, len(records)); err != nil {
		_ = index.Close()
		return err
	}

	d.mu.Lock()
	old := d.index
	d.records = records
	d.keys = keys
	d.index = index
	d.loadedAt = time.Now()
	d.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.Warn("failed to close previous search index", slog.Any("error", err))
		}
	}

	d.logger.Info("dataset loaded",
		slog.String("path", path),
		slog.Int("records", len(records)),
	)
	return nil
}

// checkIndexed fails when the index does not hold exactly want rows.
func checkIndexed(index *SearchIndex, want int) error {
	n, err := index.DocumentCount()
	if err != nil {
		return fmt.Errorf("failed to count indexed rows: %w", err)
	}
	if n != uint64(want) {
		return fmt.Errorf("%w: indexed %d of %d rows", ErrIndexIncomplete, n, want)
	}
	return nil
}

func (d *Dataset) searchKey(r salary.NormalizedRecord) string {
	return Fold(strings.Join([]string{r.Title, r.Code, d.vocab.Describe(r.Code), salaryDigits(r)}, " "))
}

// All returns a copy of every record in file order.
func (d *Dataset) All() []salary.NormalizedRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]salary.NormalizedRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Filter returns the records whose code equals code (when non-empty) and
// whose title, code, code meaning or salary digits match every term of q.
// Matching is accent- and case-insensitive and tolerates one typo per term.
func (d *Dataset) Filter(q, code string) []salary.NormalizedRecord {
	terms := strings.Fields(Fold(q))
	code = strings.TrimSpace(code)

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]salary.NormalizedRecord, 0)
	for i, r := range d.records {
		if code != "" && r.Code != code {
			continue
		}
		if len(terms) > 0 && !matchTerms(d.keys[i], terms) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Search runs a ranked full-text query over the current snapshot.
func (d *Dataset) Search(q string, limit int) ([]SearchHit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.index == nil {
		return []SearchHit{}, nil
	}
	return d.index.Search(q, limit)
}

// Len returns the number of loaded records.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// LoadedAt returns when the current snapshot was loaded, zero if never.
func (d *Dataset) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

// Vocabulary returns the code vocabulary used to describe records.
func (d *Dataset) Vocabulary() *salary.Vocabulary {
	return d.vocab
}

// Close releases the search index.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.index == nil {
		return nil
	}
	err := d.index.Close()
	d.index = nil
	return err
}
