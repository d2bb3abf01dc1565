package repository

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
)

const defaultSearchLimit = 10

// ErrIndexClosed is returned when searching an index that was replaced by a reload.
var ErrIndexClosed = errors.New("search index closed")

// SearchDocument is the indexed form of one dataset row.
type SearchDocument struct {
	Position int    `json:"position"`
	Puesto   string `json:"puesto"`  // folded title, full text
	Codigo   string `json:"codigo"`  // exact code
	Meaning  string `json:"meaning"` // folded code meaning, full text
	Salario  string `json:"salario"` // digits only
}

// SearchHit is a ranked search result pointing back into the dataset.
type SearchHit struct {
	Record salary.NormalizedRecord
	Score  float64
}

// SearchIndex is an in-memory bleve index over one dataset snapshot.
type SearchIndex struct {
	index   bleve.Index
	indexMu sync.RWMutex
	records []salary.NormalizedRecord
}

// NewSearchIndex builds an index over records. Titles and meanings are
// accent-folded before indexing so that "tecnico" finds "Técnico".
func NewSearchIndex(records []salary.NormalizedRecord, vocab *salary.Vocabulary) (*SearchIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for i, r := range records {
		doc := SearchDocument{
			Position: i,
			Puesto:   Fold(r.Title),
			Codigo:   r.Code,
			Meaning:  Fold(vocab.Describe(r.Code)),
			Salario:  salaryDigits(r),
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index record %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to execute batch index: %w", err)
	}

	return &SearchIndex{index: index, records: records}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	positionMapping := bleve.NewNumericFieldMapping()
	positionMapping.Index = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("puesto", textFieldMapping)
	docMapping.AddFieldMappingsAt("meaning", textFieldMapping)
	docMapping.AddFieldMappingsAt("codigo", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("salario", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("position", positionMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name

	return indexMapping
}

// Search runs a fuzzy match query across title and meaning plus an exact
// match on the code, ranked by bleve's relevance score.
func (si *SearchIndex) Search(query string, limit int) ([]SearchHit, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if si.index == nil {
		return nil, ErrIndexClosed
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	folded := Fold(query)

	title := bleve.NewMatchQuery(folded)
	title.SetField("puesto")
	title.SetFuzziness(1)

	meaning := bleve.NewMatchQuery(folded)
	meaning.SetField("meaning")
	meaning.SetFuzziness(1)

	code := bleve.NewTermQuery(query)
	code.SetField("codigo")
	code.SetBoost(2)

	salario := bleve.NewTermQuery(query)
	salario.SetField("salario")

	searchRequest := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(title, meaning, code, salario))
	searchRequest.Size = limit
	searchRequest.Fields = []string{"position"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(si.records) {
			continue
		}
		hits = append(hits, SearchHit{Record: si.records[pos], Score: hit.Score})
	}
	return hits, nil
}

// DocumentCount returns the number of indexed rows.
func (si *SearchIndex) DocumentCount() (uint64, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if si.index == nil {
		return 0, ErrIndexClosed
	}
	return si.index.DocCount()
}

// Close releases the index.
func (si *SearchIndex) Close() error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	if si.index != nil {
		err := si.index.Close()
		si.index = nil
		return err
	}
	return nil
}

func salaryDigits(r salary.NormalizedRecord) string {
	return r.Salary.Truncate(0).String()
}
