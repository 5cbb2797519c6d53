package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a tick every minute.
const DefaultSchedule = "@every 1m"

// Ticker runs one maintenance pass.
type Ticker interface {
	Tick(ctx context.Context) (*TickReport, error)
}

// Scheduler drives a Ticker from a cron spec. A tick that is still running
// when the next one fires causes that firing to be skipped.
type Scheduler struct {
	ticker Ticker
	c      *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for spec, a standard five-field cron
// expression or a descriptor such as "@every 1m".
func NewScheduler(ticker Ticker, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))

	if spec == "" {
		spec = DefaultSchedule
	}

	s := &Scheduler{
		ticker: ticker,
		logger: logger,
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
			cron.WithLogger(cronLogger{logger}),
		),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := s.c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid scanner schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	s.logger.Info("starting scanner schedule")
	s.c.Start()
}

// Stop prevents further ticks, cancels the running one and waits for it to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scanner schedule stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	if _, err := s.ticker.Tick(s.ctx); err != nil {
		s.logger.Error("scanner tick failed", slog.String("error", err.Error()))
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
