package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/platform/clock"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/redact"
	"github.com/phrazzld/cadence/internal/store"
)

// Outcome is what one generation cycle did with a definition.
type Outcome string

// Possible outcomes
const (
	OutcomeGenerated Outcome = "generated"
	OutcomeNotDue    Outcome = "not_due"
	OutcomePaused    Outcome = "paused"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeExpired   Outcome = "expired"
	OutcomeLocked    Outcome = "locked"
	OutcomeFailed    Outcome = "failed"
)

// Result describes one generation cycle.
type Result struct {
	Outcome Outcome

	// Task is the task created or found for the occurrence, set only when
	// Outcome is OutcomeGenerated.
	Task *domain.GeneratedTask

	// Next is the cached next generation date after the cycle, if any.
	Next *time.Time
}

// Generator runs generation cycles for single definitions.
type Generator struct {
	tx      store.Transactor
	engine  recurrence.Service
	clock   clock.Clock
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewGenerator creates a Generator. A nil emitter drops events and a nil
// clock uses the system clock.
func NewGenerator(
	tx store.Transactor,
	engine recurrence.Service,
	clk clock.Clock,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Generator, error) {
	if tx == nil {
		return nil, errors.New("transactor cannot be nil")
	}
	if engine == nil {
		return nil, errors.New("recurrence service cannot be nil")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if emitter == nil {
		emitter = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		tx:      tx,
		engine:  engine,
		clock:   clk,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "generator")),
	}, nil
}

// Process runs one generation cycle for the definition with the given id.
// Unless force is set, an occurrence later than today only refreshes the
// cached next generation date.
//
// A definition held by another worker yields OutcomeLocked and no error.
// Any other failure rolls the cycle back, is recorded on the definition and
// is returned together with OutcomeFailed.
func (g *Generator) Process(ctx context.Context, id uuid.UUID, force bool) (*Result, error) {
	now := g.clock.Now()
	log := logger.FromContextOrDefault(ctx, g.logger).With(slog.String("definition_id", id.String()))
	ctx = logger.WithLogger(ctx, log)

	var (
		res     *Result
		pending []*events.Event
	)
	err := g.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		def, err := s.Definitions.ClaimForGeneration(ctx, id)
		if err != nil {
			return err
		}

		c := &cycle{g: g, s: s, def: def, now: now, today: domain.Day(now), force: force}
		if err := c.run(ctx); err != nil {
			return err
		}
		res, pending = c.result, c.events
		return nil
	})

	switch {
	case errors.Is(err, store.ErrLocked):
		log.Debug("definition held by another worker")
		return &Result{Outcome: OutcomeLocked}, nil
	case errors.Is(err, store.ErrDefinitionNotFound):
		return &Result{Outcome: OutcomeFailed}, err
	case err != nil:
		log.Error("generation failed", slog.String("error", redact.Error(err)))
		g.recordFailure(ctx, id, err, now)
		return &Result{Outcome: OutcomeFailed}, err
	}

	log.Debug("generation cycle finished", slog.String("outcome", string(res.Outcome)))
	g.emit(ctx, pending)
	return res, nil
}

// recordFailure stores err on the definition in its own transaction, since
// the failed one has already been rolled back.
func (g *Generator) recordFailure(ctx context.Context, id uuid.UUID, cause error, now time.Time) {
	log := logger.FromContextOrDefault(ctx, g.logger)
	msg := redact.Error(cause)

	err := g.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		return s.Definitions.RecordFailure(ctx, id, msg, now)
	})
	if err != nil {
		log.Warn("failed to record generation failure", slog.String("error", redact.Error(err)))
	}

	ev, err := events.New(events.TypeGenerationFailed, id, events.FailurePayload{Error: msg}, now)
	if err == nil {
		g.emit(ctx, []*events.Event{ev})
	}
}

func (g *Generator) emit(ctx context.Context, evs []*events.Event) {
	log := logger.FromContextOrDefault(ctx, g.logger)
	for _, ev := range evs {
		if err := g.emitter.EmitEvent(ctx, ev); err != nil {
			log.Warn("failed to emit event",
				slog.String("event_type", ev.Type),
				slog.String("error", err.Error()))
		}
	}
}

// cycle holds the state of one generation attempt inside its transaction.
type cycle struct {
	g     *Generator
	s     store.Stores
	def   *domain.RecurrenceDefinition
	now   time.Time
	today time.Time
	force bool

	result *Result
	events []*events.Event
}

func (c *cycle) run(ctx context.Context) error {
	def := c.def

	switch def.State {
	case domain.StatePaused:
		return c.finish(OutcomePaused, nil)
	case domain.StateExhausted:
		return c.finish(OutcomeExhausted, nil)
	case domain.StateExpired:
		return c.finish(OutcomeExpired, nil)
	case domain.StateActive:
	default:
		return fmt.Errorf("%w: definition is %s", domain.ErrInvalidTransition, def.State)
	}

	if def.LimitReached() {
		return c.transition(ctx, domain.StateExhausted, events.TypeDefinitionExhausted, OutcomeExhausted)
	}

	candidate, err := c.g.engine.NextOccurrence(def, def.ReferenceDate())
	if err != nil {
		return err
	}

	if def.PastEnd(candidate) {
		return c.transition(ctx, domain.StateExpired, events.TypeDefinitionExpired, OutcomeExpired)
	}

	if candidate.After(c.today) && !c.force {
		return c.cacheNext(ctx, candidate)
	}

	return c.generate(ctx, candidate)
}

func (c *cycle) generate(ctx context.Context, date time.Time) error {
	log := logger.FromContextOrDefault(ctx, c.g.logger)
	def := c.def

	task, err := c.g.engine.Materialize(def, date)
	if err != nil {
		return err
	}
	task.CreatedAt = c.now

	if err := c.s.Tasks.Create(ctx, task); err != nil {
		if !errors.Is(err, store.ErrTaskExists) {
			return err
		}
		log.Info("task for occurrence already exists",
			slog.String("idempotency_key", task.IdempotencyKey))
		if existing, getErr := c.s.Tasks.GetByIdempotencyKey(ctx, task.IdempotencyKey); getErr == nil {
			task = existing
		}
	}

	b := domain.Bookkeeping{
		OccurrencesGenerated: def.OccurrencesGenerated + 1,
		LastGeneratedDate:    &date,
	}

	advanced := def.Clone()
	advanced.ApplyBookkeeping(b, c.now)

	var extra []*events.Event
	if advanced.LimitReached() {
		b.Transition = domain.StatePtr(domain.StateExhausted)
		ev, err := events.New(events.TypeDefinitionExhausted, def.ID, nil, c.now)
		if err != nil {
			return err
		}
		extra = append(extra, ev)
	} else {
		next, err := c.g.engine.NextOccurrence(advanced, date)
		switch {
		case err != nil:
			// The next tick retries the computation and records the failure.
			log.Warn("could not precompute next occurrence", slog.String("error", err.Error()))
		case !advanced.PastEnd(next):
			b.NextGenerationDate = &next
		}
	}

	if err := c.s.Definitions.UpdateBookkeeping(ctx, def.ID, def.OccurrencesGenerated, b, c.now); err != nil {
		return err
	}

	ev, err := events.New(events.TypeOccurrenceGenerated, def.ID, events.OccurrencePayload{
		TaskID:           task.ID,
		OccurrenceNumber: task.OccurrenceNumber,
		DueDate:          domain.FormatDate(task.DueDate),
		Title:            task.Title,
	}, c.now)
	if err != nil {
		return err
	}
	c.events = append(c.events, ev)
	c.events = append(c.events, extra...)

	log.Info("generated occurrence",
		slog.String("due_date", domain.FormatDate(date)),
		slog.Int("occurrence", task.OccurrenceNumber),
		slog.String("task_id", task.ID.String()))

	c.result = &Result{Outcome: OutcomeGenerated, Task: task, Next: b.NextGenerationDate}
	return nil
}

// cacheNext stores a future candidate as the next generation date.
func (c *cycle) cacheNext(ctx context.Context, candidate time.Time) error {
	def := c.def
	if def.NextGenerationDate == nil || !def.NextGenerationDate.Equal(candidate) || def.LastError != "" {
		b := def.Bookkeeping()
		b.NextGenerationDate = &candidate
		if err := c.s.Definitions.UpdateBookkeeping(ctx, def.ID, def.OccurrencesGenerated, b, c.now); err != nil {
			return err
		}
	}
	return c.finish(OutcomeNotDue, &candidate)
}

// transition moves the definition to a terminal state and queues its event.
func (c *cycle) transition(ctx context.Context, to domain.LifecycleState, eventType string, outcome Outcome) error {
	def := c.def

	b := def.Bookkeeping()
	b.NextGenerationDate = nil
	b.Transition = domain.StatePtr(to)
	if err := c.s.Definitions.UpdateBookkeeping(ctx, def.ID, def.OccurrencesGenerated, b, c.now); err != nil {
		return err
	}

	ev, err := events.New(eventType, def.ID, nil, c.now)
	if err != nil {
		return err
	}
	c.events = append(c.events, ev)

	logger.FromContextOrDefault(ctx, c.g.logger).Info("definition left active state",
		slog.String("state", string(to)))
	return c.finish(outcome, nil)
}

func (c *cycle) finish(outcome Outcome, next *time.Time) error {
	c.result = &Result{Outcome: outcome, Next: next}
	return nil
}
