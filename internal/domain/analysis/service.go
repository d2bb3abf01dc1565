// Package analysis produces an LLM-written labour-market commentary for a job
// title.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	// ErrAnalysisUnavailable is returned when no model credential is configured.
	ErrAnalysisUnavailable = errors.New("analysis unavailable: model credential not configured")
	// ErrEmptyTitle is returned for a blank job title.
	ErrEmptyTitle = errors.New("job title is required")
	// ErrUpstream wraps failures of the model call itself.
	ErrUpstream = errors.New("analysis upstream failure")
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analysis is the model's answer for one job title.
type Analysis struct {
	JobTitle string
	Text     string
}

// Service builds the prompt and calls the generator.
type Service struct {
	gen     Generator
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewService creates the service. A nil generator leaves the service
// unavailable; every call then fails with ErrAnalysisUnavailable.
func NewService(gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gen:    gen,
		tracer: otel.Tracer("salarios/analysis"),
		logger: logger,
	}
}

// WithRateLimit caps upstream calls to r per second with the given burst.
func (s *Service) WithRateLimit(r rate.Limit, burst int) *Service {
	s.limiter = rate.NewLimiter(r, burst)
	return s
}

// Available reports whether a generator is configured.
func (s *Service) Available() bool {
	return s.gen != nil
}

// AnalyzePosition asks the model for skills and a recruiter's opinion on title
// in the Costa Rican labour market.
func (s *Service) AnalyzePosition(ctx context.Context, title string) (*Analysis, error) {
	if s.gen == nil {
		return nil, ErrAnalysisUnavailable
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	ctx, span := s.tracer.Start(ctx, "analysis.AnalyzePosition",
		trace.WithAttributes(attribute.String("job_title", title)))
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limited")
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	}

	s.logger.Info("requesting position analysis", slog.String("job_title", title))

	text, err := s.gen.Generate(ctx, BuildPrompt(title))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		s.logger.Error("position analysis failed",
			slog.String("job_title", title),
			slog.Any("error", err),
		)
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		return nil, err
	}

	return &Analysis{JobTitle: title, Text: text}, nil
}

// BuildPrompt returns the Spanish two-section prompt for title.
func BuildPrompt(title string) string {
	return fmt.Sprintf(`Analiza el puesto de trabajo "%s" dentro del contexto del mercado laboral en Costa Rica.

Proporciona la siguiente información:
1.  **Conocimientos y Habilidades Sugeridas:** Lista los conocimientos técnicos y las habilidades blandas comunes o recomendadas para este puesto o roles similares. Sugiere posibles áreas de estudio, cursos o certificaciones relevantes.
2.  **Opinión desde la Perspectiva de un Reclutador Profesional:** Imagina que eres un reclutador profesional especializado en el mercado de Costa Rica. Da una breve opinión sobre la relevancia del puesto, el nivel de demanda (si es posible inferirlo), y qué aspectos buscarías en un candidato para este rol, basándote en tu conocimiento general del mercado laboral y el puesto especificado.

Formatea tu respuesta claramente, separando las dos secciones con los títulos exactos indicados (usando negritas y numeración). Sé conciso y profesional.
`, title)
}
