// Package handler exposes the loaded salary dataset over JSON/HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/analysis"
	authservice "github.com/FACorreiaa/salarios-minimos/internal/domain/auth/service"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/repository"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/service"
)

const (
	maxBodyBytes          = 1 << 16
	maxSearchLimit        = 100
	defaultRefreshTimeout = 10 * time.Minute
)

// Dataset is the read side of the loaded dataset.
type Dataset interface {
	All() []salary.NormalizedRecord
	Filter(q, code string) []salary.NormalizedRecord
	Search(q string, limit int) ([]repository.SearchHit, error)
	Len() int
	LoadedAt() time.Time
	Vocabulary() *salary.Vocabulary
}

// Analyzer produces the job-title analysis.
type Analyzer interface {
	Available() bool
	AnalyzePosition(ctx context.Context, title string) (*analysis.Analysis, error)
}

// Refresher re-runs the extraction pipeline.
type Refresher interface {
	Run(ctx context.Context) (*service.RunReport, error)
}

// RunHistory exposes the last successful pipeline run.
type RunHistory interface {
	LastReport() *service.RunReport
}

// Authorizer checks the Authorization header for a role.
type Authorizer interface {
	Authorize(ctx context.Context, header, role string) (*authservice.Claims, error)
}

// EditionLister lists mirrored editions.
type EditionLister interface {
	ListEditions(ctx context.Context, limit int) ([]repository.EditionSummary, error)
}

// SalaryHandler serves the dataset, the analysis endpoint and admin refresh.
type SalaryHandler struct {
	dataset        Dataset
	analyzer       Analyzer
	refresher      Refresher
	authz          Authorizer
	refreshTimeout time.Duration
	history        RunHistory
	editions       EditionLister
	logger         *slog.Logger
}

// NewSalaryHandler creates a handler over dataset.
func NewSalaryHandler(dataset Dataset, logger *slog.Logger) *SalaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SalaryHandler{dataset: dataset, refreshTimeout: defaultRefreshTimeout, logger: logger}
}

// WithAnalyzer enables POST /analyze_position.
func (h *SalaryHandler) WithAnalyzer(a Analyzer) *SalaryHandler {
	h.analyzer = a
	return h
}

// WithRefresher enables POST /admin/refresh guarded by authz. Each run is
// bounded by timeout; zero keeps the default.
func (h *SalaryHandler) WithRefresher(r Refresher, authz Authorizer, timeout time.Duration) *SalaryHandler {
	h.refresher = r
	h.authz = authz
	if timeout > 0 {
		h.refreshTimeout = timeout
	}
	return h
}

// WithRunHistory adds the last successful run to GET /healthz.
func (h *SalaryHandler) WithRunHistory(rh RunHistory) *SalaryHandler {
	h.history = rh
	return h
}

// WithEditions enables GET /editions.
func (h *SalaryHandler) WithEditions(e EditionLister) *SalaryHandler {
	h.editions = e
	return h
}

// Register adds the routes to mux.
func (h *SalaryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /salaries", h.ListSalaries)
	mux.HandleFunc("GET /salaries/search", h.SearchSalaries)
	mux.HandleFunc("GET /salaries/export.xlsx", h.ExportXLSX)
	mux.HandleFunc("GET /codes", h.ListCodes)
	mux.HandleFunc("POST /analyze_position", h.AnalyzePosition)
	mux.HandleFunc("GET /healthz", h.Health)
	if h.refresher != nil && h.authz != nil {
		mux.HandleFunc("POST /admin/refresh", h.Refresh)
	}
	if h.editions != nil {
		mux.HandleFunc("GET /editions", h.ListEditions)
	}
}

type salaryDTO struct {
	Puesto  string      `json:"Puesto"`
	Codigo  string      `json:"Codigo"`
	Salario json.Number `json:"Salario"`
}

type searchHitDTO struct {
	salaryDTO
	Significado string  `json:"Significado"`
	Score       float64 `json:"score"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func toDTO(r salary.NormalizedRecord) salaryDTO {
	return salaryDTO{Puesto: r.Title, Codigo: r.Code, Salario: json.Number(r.Salary.String())}
}

func toDTOs(records []salary.NormalizedRecord) []salaryDTO {
	out := make([]salaryDTO, len(records))
	for i, r := range records {
		out[i] = toDTO(r)
	}
	return out
}

// ListSalaries returns the dataset, optionally filtered by q and codigo.
// An empty dataset answers 404 with an empty array.
func (h *SalaryHandler) ListSalaries(w http.ResponseWriter, r *http.Request) {
	if h.dataset.Len() == 0 {
		h.writeJSON(w, http.StatusNotFound, []salaryDTO{})
		return
	}

	q := r.URL.Query().Get("q")
	code := r.URL.Query().Get("codigo")
	if q == "" && code == "" {
		h.writeJSON(w, http.StatusOK, toDTOs(h.dataset.All()))
		return
	}
	h.writeJSON(w, http.StatusOK, toDTOs(h.dataset.Filter(q, code)))
}

// SearchSalaries returns ranked full-text hits.
func (h *SalaryHandler) SearchSalaries(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "q is required"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSearchLimit)
	}

	hits, err := h.dataset.Search(q, limit)
	if err != nil {
		h.logger.Error("search failed", slog.String("q", q), slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "search failed"})
		return
	}

	vocab := h.dataset.Vocabulary()
	out := make([]searchHitDTO, len(hits))
	for i, hit := range hits {
		out[i] = searchHitDTO{
			salaryDTO:   toDTO(hit.Record),
			Significado: vocab.Describe(hit.Record.Code),
			Score:       hit.Score,
		}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ExportXLSX streams the dataset as a workbook.
func (h *SalaryHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	if h.dataset.Len() == 0 {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no dataset loaded"})
		return
	}

	f, err := service.BuildWorkbook(h.dataset.All(), h.dataset.Vocabulary())
	if err != nil {
		h.logger.Error("failed to build workbook", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "export failed"})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="salarios.xlsx"`)
	if err := f.Write(w); err != nil {
		h.logger.Warn("failed to stream workbook", slog.Any("error", err))
	}
}

// ListCodes returns the code vocabulary with meanings.
func (h *SalaryHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dataset.Vocabulary().Codes())
}

type analyzeRequest struct {
	JobTitle string `json:"job_title"`
}

type analyzeResponse struct {
	Success      bool   `json:"success"`
	JobTitle     string `json:"job_title"`
	AnalysisText string `json:"analysis_text"`
}

// AnalyzePosition asks the language model about a job title.
func (h *SalaryHandler) AnalyzePosition(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil || !h.analyzer.Available() {
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "La API de Gemini no está configurada en el servidor."})
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Cuerpo de solicitud inválido.", Detail: err.Error()})
		return
	}

	res, err := h.analyzer.AnalyzePosition(r.Context(), req.JobTitle)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, analyzeResponse{Success: true, JobTitle: res.JobTitle, AnalysisText: res.Text})
	case errors.Is(err, analysis.ErrEmptyTitle):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No se proporcionó un título de puesto para analizar."})
	case errors.Is(err, analysis.ErrAnalysisUnavailable):
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "La API de Gemini no está configurada en el servidor."})
	default:
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error al obtener el análisis de la IA.", Detail: err.Error()})
	}
}

// Refresh re-runs the pipeline. Requires an admin bearer token.
func (h *SalaryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authz.Authorize(r.Context(), r.Header.Get("Authorization"), authservice.RoleAdmin)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, authservice.ErrForbidden) {
			status = http.StatusForbidden
		}
		h.writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.refreshTimeout)
	defer cancel()

	h.logger.Info("refresh requested", slog.String("subject", claims.Subject))
	report, err := h.refresher.Run(ctx)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		resp := errorResponse{Error: "refresh failed", Detail: err.Error()}
		var stageErr *service.StageError
		if errors.As(err, &stageErr) {
			resp.Error = stageErr.Stage + " failed"
		}
		h.writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ListEditions returns the mirrored editions, newest first.
func (h *SalaryHandler) ListEditions(w http.ResponseWriter, r *http.Request) {
	editions, err := h.editions.ListEditions(r.Context(), 0)
	if err != nil {
		h.logger.Error("failed to list editions", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list editions"})
		return
	}
	h.writeJSON(w, http.StatusOK, editions)
}

type lastRunDTO struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Retained  int       `json:"retained"`
	Dropped   int       `json:"dropped"`
}

type healthResponse struct {
	Status   string      `json:"status"`
	Records  int         `json:"records"`
	LoadedAt *time.Time  `json:"loaded_at,omitempty"`
	LastRun  *lastRunDTO `json:"last_run,omitempty"`
}

// Health reports liveness, the loaded record count and the last run.
func (h *SalaryHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Records: h.dataset.Len()}
	if at := h.dataset.LoadedAt(); !at.IsZero() {
		resp.LoadedAt = &at
	}
	if h.history != nil {
		if last := h.history.LastReport(); last != nil {
			resp.LastRun = &lastRunDTO{
				RunID:     last.RunID.String(),
				StartedAt: last.StartedAt,
				Retained:  last.Retained,
				Dropped:   last.Dropped,
			}
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *SalaryHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", slog.Any("error", err))
	}
}
