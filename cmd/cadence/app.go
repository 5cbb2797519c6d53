package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/config"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/platform/clock"
	"github.com/phrazzld/cadence/internal/platform/holiday"
	"github.com/phrazzld/cadence/internal/platform/memory"
	"github.com/phrazzld/cadence/internal/platform/postgres"
	"github.com/phrazzld/cadence/internal/scanner"
	"github.com/phrazzld/cadence/internal/service"
	"github.com/phrazzld/cadence/internal/store"
)

// shutdownTimeout bounds how long Run waits for an in-flight tick.
const shutdownTimeout = 30 * time.Second

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	transactor store.Transactor
	engine     recurrence.Service
	emitter    *events.InMemoryEventEmitter

	generator  *scanner.Generator
	scanner    *scanner.Scanner
	scheduler  *scanner.Scheduler
	recurrence service.RecurrenceService
}

// newApplication wires the engine, stores, scanner and service. db must be
// non-nil for the postgres driver and is ignored otherwise.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}
	clk := clock.System{}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres driver requires a database connection")
		}
		app.transactor = postgres.NewTransactor(db, logger)
	default:
		app.transactor = memory.NewStore(logger)
	}

	holidays, err := setupHolidays(cfg.Holidays, logger)
	if err != nil {
		return nil, err
	}
	app.engine = recurrence.NewService(recurrence.NewParams(recurrence.ParamsConfig{
		MaxSkipIterations: cfg.Recurrence.MaxSkipIterations,
		MaxPreview:        cfg.Recurrence.MaxPreview,
	}), holidays)

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(eventLogHandler(logger.With(slog.String("component", "event_log"))))

	app.generator, err = scanner.NewGenerator(app.transactor, app.engine, clk, app.emitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	app.scanner, err = scanner.New(app.transactor, app.generator, clk, scanner.Config{
		WorkerCount: cfg.Scanner.WorkerCount,
		BatchSize:   cfg.Scanner.BatchSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	if cfg.Scanner.Enabled {
		app.scheduler, err = scanner.NewScheduler(app.scanner, cfg.Scanner.Schedule, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create scheduler: %w", err)
		}
	}

	app.recurrence, err = service.NewRecurrenceService(
		app.transactor,
		app.engine,
		app.generator,
		clk,
		app.emitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recurrence service: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// setupHolidays builds the holiday calendar from configuration.
func setupHolidays(cfg config.HolidaysConfig, logger *slog.Logger) (recurrence.HolidayCalendar, error) {
	if len(cfg.Dates) == 0 && len(cfg.Annual) == 0 {
		return holiday.None{}, nil
	}
	cal, err := holiday.NewStatic(cfg.Dates, cfg.Annual)
	if err != nil {
		return nil, fmt.Errorf("failed to load holiday calendar: %w", err)
	}
	logger.Info("holiday calendar loaded", slog.Int("holidays", cal.Len()))
	return cal, nil
}

// eventLogHandler records every emitted event in the log.
func eventLogHandler(logger *slog.Logger) events.EventHandler {
	return events.HandlerFunc(func(ctx context.Context, ev *events.Event) error {
		logger.InfoContext(ctx, "event emitted",
			slog.String("event_id", ev.ID.String()),
			slog.String("event_type", ev.Type),
			slog.String("definition_id", ev.DefinitionID.String()))
		return nil
	})
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if app.scheduler == nil {
		app.logger.Warn("scanner disabled; waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	app.scheduler.Start()
	app.logger.Info("scanner scheduled", slog.String("schedule", app.config.Scanner.Schedule))

	<-ctx.Done()
	app.logger.Info("shutting down scanner")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.scheduler.Stop(stopCtx); err != nil {
		return fmt.Errorf("scanner shutdown failed: %w", err)
	}
	return nil
}

// runOnce performs a single scanner tick.
func (app *application) runOnce(ctx context.Context) (*scanner.TickReport, error) {
	report, err := app.scanner.Tick(ctx)
	if err != nil {
		return report, fmt.Errorf("scanner tick failed: %w", err)
	}
	return report, nil
}

// exportICal writes the given definitions to w as one calendar.
func (app *application) exportICal(ctx context.Context, w io.Writer, rawIDs []string) error {
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid definition id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return app.recurrence.ExportICal(ctx, w, ids...)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	app.logger.Info("application shutdown completed")
}
