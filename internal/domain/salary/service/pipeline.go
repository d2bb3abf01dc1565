package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/parser"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/retriever"
	"github.com/FACorreiaa/salarios-minimos/pkg/money"
)

var tracer = otel.Tracer("github.com/FACorreiaa/salarios-minimos/internal/domain/salary/service")

// DocumentSource provides the local PDF for a run.
type DocumentSource interface {
	Fetch(ctx context.Context) (retriever.Document, error)
}

// TableExtractor turns a PDF into raw grids.
type TableExtractor interface {
	ExtractTables(ctx context.Context, path string) ([]salary.RawGrid, parser.ExtractStats, error)
}

// Mirror stores a copy of each extracted edition outside the CSV file.
type Mirror interface {
	SaveEdition(ctx context.Context, edition salary.Edition, records []salary.NormalizedRecord) error
}

// Reloader is told to pick up the freshly written dataset.
type Reloader interface {
	Reload() error
}

// RunReport summarizes one extraction run.
type RunReport struct {
	RunID             uuid.UUID          `json:"run_id"`
	StartedAt         time.Time          `json:"started_at"`
	Document          retriever.Document `json:"document"`
	Pages             int                `json:"pages"`
	PagesWithoutGrids int                `json:"pages_without_grids"`
	PageErrors        int                `json:"page_errors"`
	Grids             int                `json:"grids"`
	Windows           int                `json:"windows"`
	Found             int                `json:"found"`
	Retained          int                `json:"retained"`
	Dropped           int                `json:"dropped"`
	Drops             []Drop             `json:"drops,omitempty"`
	MinSalary         decimal.Decimal    `json:"min_salary"`
	MaxSalary         decimal.Decimal    `json:"max_salary"`
	OutputPath        string             `json:"output_path"`
	XLSXPath          string             `json:"xlsx_path,omitempty"`
	Mirrored          bool               `json:"mirrored"`
	MirrorError       string             `json:"mirror_error,omitempty"`
	Duration          time.Duration      `json:"duration_ns"`
}

// PipelineService runs the extraction pipeline end to end. Runs are
// serialized: a second Run while one is active fails with ErrRunInProgress.
type PipelineService struct {
	source     DocumentSource
	extractor  TableExtractor
	decoder    *parser.Decoder
	vocab      *salary.Vocabulary
	outputPath string
	xlsxPath   string
	edition    string
	workers    int
	mirror     Mirror
	reloader   Reloader
	metrics    *Metrics
	logger     *slog.Logger

	runMu  sync.Mutex
	lastMu sync.RWMutex
	last   *RunReport
}

// NewPipelineService creates a pipeline writing the dataset to outputPath.
func NewPipelineService(source DocumentSource, extractor TableExtractor, outputPath string, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	vocab := salary.DefaultVocabulary()
	return &PipelineService{
		source:     source,
		extractor:  extractor,
		decoder:    parser.NewDecoder(vocab),
		vocab:      vocab,
		outputPath: outputPath,
		workers:    1,
		logger:     logger,
	}
}

// WithVocabulary replaces the code vocabulary used for decoding.
func (s *PipelineService) WithVocabulary(vocab *salary.Vocabulary) *PipelineService {
	if vocab != nil {
		s.vocab = vocab
		s.decoder = parser.NewDecoder(vocab)
	}
	return s
}

// WithWorkers decodes grids on up to n goroutines. Output order is unchanged.
func (s *PipelineService) WithWorkers(n int) *PipelineService {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithXLSX also writes the dataset as a spreadsheet at path.
func (s *PipelineService) WithXLSX(path string) *PipelineService {
	s.xlsxPath = path
	return s
}

// WithMirror copies every edition to m under the given label.
func (s *PipelineService) WithMirror(m Mirror, edition string) *PipelineService {
	s.mirror = m
	s.edition = edition
	return s
}

// WithReloader reloads r after the dataset is written.
func (s *PipelineService) WithReloader(r Reloader) *PipelineService {
	s.reloader = r
	return s
}

// WithMetrics records run metrics.
func (s *PipelineService) WithMetrics(m *Metrics) *PipelineService {
	s.metrics = m
	return s
}

// LastReport returns the report of the last successful run, if any.
func (s *PipelineService) LastReport() *RunReport {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// Run executes one extraction. Only document level failures abort the run;
// rejected windows and unparseable salaries are counted in the report.
func (s *PipelineService) Run(ctx context.Context) (*RunReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	start := time.Now()
	report := &RunReport{
		RunID:      uuid.New(),
		StartedAt:  start.UTC(),
		OutputPath: s.outputPath,
		XLSXPath:   s.xlsxPath,
	}

	ctx, span := tracer.Start(ctx, "salary.pipeline.run",
		trace.WithAttributes(attribute.String("run.id", report.RunID.String())))
	defer span.End()

	logger := s.logger.With(slog.String("run_id", report.RunID.String()))
	err := s.run(ctx, logger, report)
	report.Duration = time.Since(start)
	s.metrics.observeRun(report, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("extraction run failed",
			slog.Any("error", err),
			slog.Duration("elapsed", report.Duration),
		)
		return report, err
	}

	span.SetAttributes(
		attribute.Int("records.found", report.Found),
		attribute.Int("records.retained", report.Retained),
		attribute.Int("records.dropped", report.Dropped),
	)
	logger.Info("extraction run completed",
		slog.Int("found", report.Found),
		slog.Int("retained", report.Retained),
		slog.Int("dropped", report.Dropped),
		slog.String("min_salary", money.Colones(report.MinSalary).Display()),
		slog.String("max_salary", money.Colones(report.MaxSalary).Display()),
		slog.String("output", report.OutputPath),
		slog.Duration("elapsed", report.Duration),
	)

	s.lastMu.Lock()
	s.last = report
	s.lastMu.Unlock()
	return report, nil
}

func (s *PipelineService) run(ctx context.Context, logger *slog.Logger, report *RunReport) error {
	doc, err := s.retrieve(ctx)
	if err != nil {
		return &StageError{Stage: StageRetrieve, Err: err}
	}
	report.Document = doc
	logger.Info("source document ready",
		slog.String("path", doc.Path),
		slog.String("sha256", doc.SHA256),
		slog.Bool("from_cache", doc.FromCache),
	)

	grids, stats, err := s.extract(ctx, doc.Path)
	if err != nil {
		return &StageError{Stage: StageExtract, Path: doc.Path, Err: err}
	}
	report.Pages = stats.Pages
	report.PagesWithoutGrids = stats.PagesWithoutGrids
	report.PageErrors = stats.PageErrors
	report.Grids = stats.Grids
	logger.Info("tables extracted",
		slog.Int("pages", stats.Pages),
		slog.Int("grids", stats.Grids),
		slog.Int("pages_without_grids", stats.PagesWithoutGrids),
		slog.Int("page_errors", stats.PageErrors),
	)

	assembled, decoded, err := s.decode(ctx, grids)
	if err != nil {
		return &StageError{Stage: StageDecode, Path: doc.Path, Err: err}
	}
	s.metrics.observeDecode(decoded.Accepted, decoded.Rejected, stats.PageErrors)
	report.Windows = decoded.Windows
	report.Found = assembled.Found
	report.Retained = assembled.Retained
	report.Dropped = assembled.Dropped
	report.Drops = assembled.Samples
	report.MinSalary, report.MaxSalary = salaryRange(assembled.Records)

	logger.Info("candidates decoded",
		slog.Int("windows", decoded.Windows),
		slog.Int("found", assembled.Found),
	)
	for _, d := range assembled.Samples {
		logger.Debug("candidate dropped",
			slog.Int("page", d.Page),
			slog.Int("row", d.Row),
			slog.String("title", d.Title),
			slog.String("salary_raw", d.SalaryRaw),
			slog.String("reason", d.Reason),
		)
	}
	if assembled.Retained == 0 {
		logger.Warn("no records retained", slog.Int("found", assembled.Found))
	}

	if err := s.persist(ctx, assembled.Records); err != nil {
		return err
	}

	if s.mirror != nil {
		edition := salary.Edition{
			RunID:       report.RunID,
			Label:       s.edition,
			SourceURL:   doc.SourceURL,
			SHA256:      doc.SHA256,
			RetrievedAt: doc.RetrievedAt,
			ExtractedAt: time.Now().UTC(),
		}
		if err := s.mirror.SaveEdition(ctx, edition, assembled.Records); err != nil {
			report.MirrorError = err.Error()
			logger.Warn("failed to mirror edition", slog.Any("error", err))
		} else {
			report.Mirrored = true
		}
	}

	if s.reloader != nil {
		if err := s.reloader.Reload(); err != nil {
			return &StageError{Stage: StageReload, Path: s.outputPath, Err: err}
		}
	}
	return nil
}

func (s *PipelineService) retrieve(ctx context.Context) (retriever.Document, error) {
	ctx, span := tracer.Start(ctx, "salary.retrieve")
	defer span.End()

	doc, err := s.source.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return doc, err
	}
	span.SetAttributes(
		attribute.String("document.path", doc.Path),
		attribute.Bool("document.from_cache", doc.FromCache),
	)
	return doc, nil
}

func (s *PipelineService) extract(ctx context.Context, path string) ([]salary.RawGrid, parser.ExtractStats, error) {
	ctx, span := tracer.Start(ctx, "salary.extract")
	defer span.End()

	grids, stats, err := s.extractor.ExtractTables(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, stats, err
	}
	span.SetAttributes(attribute.Int("pdf.pages", stats.Pages), attribute.Int("pdf.grids", stats.Grids))
	return grids, stats, nil
}

type gridResult struct {
	assembled AssembleResult
	stats     parser.DecodeStats
}

// decode runs the decoder and assembler per grid, in parallel when workers
// allow, and merges the results in grid order.
func (s *PipelineService) decode(ctx context.Context, grids []salary.RawGrid) (AssembleResult, parser.DecodeStats, error) {
	_, span := tracer.Start(ctx, "salary.decode", trace.WithAttributes(attribute.Int("workers", s.workers)))
	defer span.End()

	results := make([]gridResult, len(grids))
	process := func(i int) {
		candidates, stats := s.decoder.Decode(grids[i])
		results[i] = gridResult{assembled: Assemble(candidates), stats: stats}
	}

	if s.workers <= 1 || len(grids) < 2 {
		for i := range grids {
			if err := ctx.Err(); err != nil {
				return AssembleResult{}, parser.DecodeStats{}, err
			}
			process(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i := range grids {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				process(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return AssembleResult{}, parser.DecodeStats{}, err
		}
	}

	var (
		total AssembleResult
		stats parser.DecodeStats
	)
	for _, r := range results {
		total.Merge(r.assembled)
		stats.Add(r.stats)
	}
	return total, stats, nil
}

func (s *PipelineService) persist(ctx context.Context, records []salary.NormalizedRecord) error {
	_, span := tracer.Start(ctx, "salary.persist")
	defer span.End()

	if err := WriteCSVFile(s.outputPath, records); err != nil {
		span.RecordError(err)
		return &StageError{Stage: StagePersist, Path: s.outputPath, Err: err}
	}
	if s.xlsxPath != "" {
		if err := WriteXLSXFile(s.xlsxPath, records, s.vocab); err != nil {
			span.RecordError(err)
			return &StageError{Stage: StagePersist, Path: s.xlsxPath, Err: err}
		}
	}
	return nil
}

func salaryRange(records []salary.NormalizedRecord) (lo, hi decimal.Decimal) {
	for i, r := range records {
		if i == 0 || r.Salary.LessThan(lo) {
			lo = r.Salary
		}
		if i == 0 || r.Salary.GreaterThan(hi) {
			hi = r.Salary
		}
	}
	return lo, hi
}
