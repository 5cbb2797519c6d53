package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/clock"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/redact"
	"github.com/phrazzld/cadence/internal/store"
)

// DefaultBatchSize caps how many due definitions one tick selects.
const DefaultBatchSize = 500

// Config holds scanner settings.
type Config struct {
	WorkerCount int
	BatchSize   int
}

// TickReport summarizes one scanner tick.
type TickReport struct {
	TickID   uuid.UUID
	Started  time.Time
	Duration time.Duration
	Due      int
	Outcomes map[Outcome]int
	Errors   int
}

// Count returns how many definitions ended with outcome o.
func (r *TickReport) Count(o Outcome) int {
	return r.Outcomes[o]
}

// Scanner selects due definitions and runs a generation cycle for each.
type Scanner struct {
	tx        store.Transactor
	generator *Generator
	pool      *WorkerPool
	clock     clock.Clock
	batchSize int
	logger    *slog.Logger
}

// New creates a Scanner.
func New(
	tx store.Transactor,
	generator *Generator,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) (*Scanner, error) {
	if tx == nil {
		return nil, errors.New("transactor cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scanner"))

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Scanner{
		tx:        tx,
		generator: generator,
		pool:      NewWorkerPool(WorkerPoolConfig{WorkerCount: cfg.WorkerCount}, logger),
		clock:     clk,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Tick runs one maintenance pass. A failing definition is logged, recorded
// and counted without stopping the others; only failure to select due
// definitions is returned as an error.
func (s *Scanner) Tick(ctx context.Context) (*TickReport, error) {
	start := time.Now()
	report := &TickReport{
		TickID:   uuid.New(),
		Started:  s.clock.Now(),
		Outcomes: make(map[Outcome]int),
	}
	log := s.logger.With(slog.String("tick_id", report.TickID.String()))
	ctx = logger.WithLogger(ctx, log)

	var due []*domain.RecurrenceDefinition
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		due, err = st.Definitions.FindDue(ctx, report.Started, s.batchSize)
		return err
	})
	if err != nil {
		log.Error("failed to select due definitions", slog.String("error", redact.Error(err)))
		return report, err
	}

	report.Due = len(due)
	ids := make([]uuid.UUID, len(due))
	for i, def := range due {
		ids[i] = def.ID
	}

	var mu sync.Mutex
	s.pool.Run(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		res, err := s.generator.Process(ctx, id, false)

		mu.Lock()
		report.Outcomes[res.Outcome]++
		if err != nil {
			report.Errors++
		}
		mu.Unlock()

		return err
	})

	report.Duration = time.Since(start)

	log.Info("scanner tick finished",
		slog.Int("due", report.Due),
		slog.Int("generated", report.Count(OutcomeGenerated)),
		slog.Int("not_due", report.Count(OutcomeNotDue)),
		slog.Int("locked", report.Count(OutcomeLocked)),
		slog.Int("errors", report.Errors),
		slog.Duration("duration", report.Duration))

	return report, nil
}
