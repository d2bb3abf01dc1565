// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary/service"
	"github.com/FACorreiaa/salarios-minimos/pkg/notify"
)

const defaultRefreshTimeout = 10 * time.Minute

// Refresher runs one extraction.
type Refresher interface {
	Run(ctx context.Context) (*service.RunReport, error)
}

// FailureNotifier is told about refreshes that failed.
type FailureNotifier interface {
	RefreshFailed(ctx context.Context, f notify.Failure) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	source    string
	refresher Refresher
	notifier  FailureNotifier
	logger    *slog.Logger
}

// NewScheduler creates a scheduler running refresher on schedule (standard
// 5-field format). source is only used in failure reports.
func NewScheduler(schedule string, refresher Refresher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		schedule:  schedule,
		timeout:   defaultRefreshTimeout,
		refresher: refresher,
		logger:    logger,
	}
}

// WithNotifier reports failed refreshes to n.
func (s *Scheduler) WithNotifier(n FailureNotifier, source string) *Scheduler {
	s.notifier = n
	s.source = source
	return s
}

// WithTimeout bounds a single scheduled run.
func (s *Scheduler) WithTimeout(d time.Duration) *Scheduler {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.refresh); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once a running refresh has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a refresh outside the schedule. The returned channel is
// closed when it finishes.
func (s *Scheduler) RunNow() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.refresh()
	}()
	return done
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("starting scheduled dataset refresh")

	report, err := s.refresher.Run(ctx)
	if errors.Is(err, service.ErrRunInProgress) {
		s.logger.Info("refresh skipped, another run is active")
		return
	}
	if err != nil {
		s.logger.Error("scheduled refresh failed", slog.Any("error", err))
		s.notifyFailure(ctx, report, err)
		return
	}

	s.logger.Info("scheduled refresh completed",
		slog.String("run_id", report.RunID.String()),
		slog.Int("retained", report.Retained),
		slog.Int("dropped", report.Dropped),
	)
}

func (s *Scheduler) notifyFailure(ctx context.Context, report *service.RunReport, runErr error) {
	if s.notifier == nil {
		return
	}

	f := notify.Failure{Err: runErr, Source: s.source, Occurred: time.Now()}
	if report != nil {
		f.RunID = report.RunID.String()
	}
	var stageErr *service.StageError
	if errors.As(runErr, &stageErr) {
		f.Stage = stageErr.Stage
	}

	// The run context may already be spent by the failure.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.notifier.RefreshFailed(notifyCtx, f); err != nil {
		s.logger.Warn("failed to send refresh failure notification", slog.Any("error", err))
	}
}
