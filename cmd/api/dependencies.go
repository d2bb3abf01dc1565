package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/analysis"
	authservice "github.com/FACorreiaa/salarios-minimos/internal/domain/auth/service"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/handler"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/parser"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/repository"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/retriever"
	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/service"
	"github.com/FACorreiaa/salarios-minimos/pkg/config"
	"github.com/FACorreiaa/salarios-minimos/pkg/cron"
	"github.com/FACorreiaa/salarios-minimos/pkg/db"
	"github.com/FACorreiaa/salarios-minimos/pkg/middleware"
	"github.com/FACorreiaa/salarios-minimos/pkg/notify"
	"github.com/FACorreiaa/salarios-minimos/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	Dataset *repository.Dataset
	Mirror  *repository.PostgresMirror

	// Services
	AuthService     *authservice.AuthService
	AnalysisService *analysis.Service
	Pipeline        *service.PipelineService
	Notifier        *notify.Notifier
	Scheduler       *cron.Scheduler

	// Handlers
	SalaryHandler *handler.SalaryHandler
	HTTPMetrics   *middleware.HTTPMetrics
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize database
	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase connects the optional Postgres mirror and runs migrations.
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if !d.Config.Database.Enabled {
		d.Logger.Info("postgres mirror disabled")
		return nil
	}

	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(ctx, repository.Migrations()); err != nil {
		d.DB.Close()
		d.DB = nil
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories loads the dataset. A missing CSV is not fatal: the API
// serves 404 until the first refresh writes it.
func (d *Dependencies) initRepositories() error {
	d.Dataset = repository.NewDataset(d.Config.Extraction.OutputPath, nil, d.Logger)
	if err := d.Dataset.Reload(); err != nil {
		d.Logger.Warn("dataset not loaded, serving empty until refreshed",
			slog.String("path", d.Config.Extraction.OutputPath),
			slog.Any("error", err),
		)
	}

	if d.DB != nil {
		d.Mirror = repository.NewPostgresMirror(d.DB.Pool, d.Logger)
	}

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	if d.Config.Auth.JWTSecret != "" {
		tokens, err := authservice.NewTokenManager([]byte(d.Config.Auth.JWTSecret), d.Config.Auth.TokenTTL)
		if err != nil {
			return err
		}
		d.AuthService = authservice.NewAuthService(tokens)
	} else {
		d.Logger.Warn("JWT_SECRET not set, admin refresh endpoint disabled")
	}

	var gen analysis.Generator
	if d.Config.Gemini.APIKey != "" {
		client, err := analysis.NewGeminiClient(ctx, d.Config.Gemini.APIKey, d.Config.Gemini.Model, d.Config.Gemini.BaseURL, d.Logger)
		if err != nil {
			return err
		}
		d.Logger.Info("position analysis enabled", slog.String("model", client.Model()))
		gen = client
	} else {
		d.Logger.Warn("GEMINI_API_KEY and GOOGLE_API_KEY not set, analysis endpoint will answer 500")
	}
	d.AnalysisService = analysis.NewService(gen, d.Logger)
	if rpm := d.Config.Gemini.RequestsPerMinute; rpm > 0 {
		d.AnalysisService.WithRateLimit(rate.Every(time.Minute/time.Duration(rpm)), max(1, rpm/10))
	}

	pipeline, err := newPipeline(d.Config, d.Logger)
	if err != nil {
		return err
	}
	pipeline.WithReloader(d.Dataset).WithMetrics(service.NewMetrics(d.Registry))
	if d.Mirror != nil {
		pipeline.WithMirror(d.Mirror, d.Config.Extraction.Edition)
	}
	d.Pipeline = pipeline

	d.Notifier = notify.NewNotifier(d.Config.Notify.ResendAPIKey, d.Config.Notify.From, d.Config.Notify.To, d.Logger)
	if d.Config.Refresh.Schedule != "" {
		d.Scheduler = cron.NewScheduler(d.Config.Refresh.Schedule, d.Pipeline, d.Logger).
			WithNotifier(d.Notifier, d.Config.Source.URL).
			WithTimeout(d.Config.Refresh.Timeout)
	}

	d.Logger.Info("services initialized")
	return nil
}

// newPipeline wires the retriever, extractor and writers from cfg.
func newPipeline(cfg *config.Config, logger *slog.Logger) (*service.PipelineService, error) {
	store, err := storage.NewLocalStorage(cfg.Source.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init document store: %w", err)
	}

	source := retriever.NewRetriever(store, cfg.Source.URL, logger).
		WithTimeout(cfg.Source.DownloadTimeout).
		WithOffline(cfg.Source.Offline)
	extractor := parser.NewPDFParser(parser.DefaultStreamConfig(), logger)

	return service.NewPipelineService(source, extractor, cfg.Extraction.OutputPath, logger).
		WithWorkers(cfg.Extraction.Workers).
		WithXLSX(cfg.Extraction.XLSXPath), nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.SalaryHandler = handler.NewSalaryHandler(d.Dataset, d.Logger).
		WithAnalyzer(d.AnalysisService).
		WithRunHistory(d.Pipeline)
	if d.AuthService != nil {
		d.SalaryHandler.WithRefresher(d.Pipeline, d.AuthService, d.Config.Refresh.Timeout)
	}
	if d.Mirror != nil {
		d.SalaryHandler.WithEditions(d.Mirror)
	}
	d.HTTPMetrics = middleware.NewHTTPMetrics(d.Registry)

	d.Logger.Info("handlers initialized")
}

// Router builds the HTTP handler with the middleware chain applied.
func (d *Dependencies) Router() http.Handler {
	mux := http.NewServeMux()
	d.SalaryHandler.Register(mux)
	if d.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	limiter := middleware.NewClientLimiter(
		float64(d.Config.Server.RateLimitPerSecond),
		d.Config.Server.RateLimitBurst,
	)
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recover(d.Logger),
		middleware.AccessLog(d.Logger),
		middleware.CORS(d.Config.Server.CORSOrigins),
		limiter.Middleware,
		d.HTTPMetrics.Middleware,
	)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Dataset != nil {
		_ = d.Dataset.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
