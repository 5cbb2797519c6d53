package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
	"github.com/phrazzld/cadence/internal/events"
	"github.com/phrazzld/cadence/internal/platform/clock"
	"github.com/phrazzld/cadence/internal/platform/icalendar"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/scanner"
	"github.com/phrazzld/cadence/internal/store"
)

// RecurrenceService provides the owner and admin operations on recurrence
// definitions.
type RecurrenceService interface {
	// Create validates and stores a new active definition and precomputes
	// its first generation date.
	Create(ctx context.Context, in CreateInput) (*domain.RecurrenceDefinition, error)

	// Get returns a definition by id.
	Get(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error)

	// UpdatePattern replaces the recurrence rule of a definition.
	UpdatePattern(ctx context.Context, id uuid.UUID, in PatternInput) (*domain.RecurrenceDefinition, error)

	// Pause stops generation until Resume is called.
	Pause(ctx context.Context, id uuid.UUID) error

	// Resume restarts generation, recomputing a stale next generation date
	// from today.
	Resume(ctx context.Context, id uuid.UUID) error

	// AddSkipDate excludes a YYYY-MM-DD date from generation. Adding a date
	// twice is not an error.
	AddSkipDate(ctx context.Context, id uuid.UUID, date string) error

	// RemoveSkipDate re-includes a YYYY-MM-DD date. Removing an absent date
	// is not an error.
	RemoveSkipDate(ctx context.Context, id uuid.UUID, date string) error

	// GenerateNow forces one generation cycle outside the schedule.
	GenerateNow(ctx context.Context, id uuid.UUID) (*domain.GeneratedTask, error)

	// Stats reports the definition's counters, dates and last failure.
	Stats(ctx context.Context, id uuid.UUID) (*Stats, error)

	// ResetOccurrences sets the occurrence counter back to zero.
	ResetOccurrences(ctx context.Context, id uuid.UUID) error

	// Delete removes the definition. Generated tasks are kept.
	Delete(ctx context.Context, id uuid.UUID) error

	// Preview lists the next n occurrence dates without changing anything.
	Preview(ctx context.Context, id uuid.UUID, n int) ([]string, error)

	// ExportICal writes the definitions as an iCalendar document.
	ExportICal(ctx context.Context, w io.Writer, ids ...uuid.UUID) error
}

// recurrenceServiceImpl implements the RecurrenceService interface
type recurrenceServiceImpl struct {
	tx        store.Transactor
	engine    recurrence.Service
	generator *scanner.Generator
	clock     clock.Clock
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewRecurrenceService creates a new RecurrenceService.
// It returns an error if any of the required dependencies are nil.
func NewRecurrenceService(
	tx store.Transactor,
	engine recurrence.Service,
	generator *scanner.Generator,
	clk clock.Clock,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (RecurrenceService, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: transactor cannot be nil", domain.ErrValidation)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: recurrence engine cannot be nil", domain.ErrValidation)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator cannot be nil", domain.ErrValidation)
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

	return &recurrenceServiceImpl{
		tx:        tx,
		engine:    engine,
		generator: generator,
		clock:     clk,
		emitter:   emitter,
		logger:    logger.With(slog.String("component", "recurrence_service")),
	}, nil
}

// Create implements RecurrenceService.Create
func (s *recurrenceServiceImpl) Create(
	ctx context.Context,
	in CreateInput,
) (*domain.RecurrenceDefinition, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateInput(in); err != nil {
		log.Debug("rejected definition input", slog.String("error", err.Error()))
		return nil, err
	}

	pattern, err := in.Pattern.toPattern()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	def, err := domain.NewRecurrenceDefinition(in.OwnerID, in.Title, pattern, in.Template.toTemplate(), now)
	if err != nil {
		return nil, err
	}
	def.TeamID = in.TeamID
	def.Description = in.Description
	for _, raw := range in.SkipDates {
		date, err := domain.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		def.AddSkipDate(date, now)
	}

	def.NextGenerationDate = s.nextFrom(ctx, def, def.ReferenceDate())

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		return st.Definitions.Create(ctx, def)
	})
	if err != nil {
		log.Error("failed to create definition", slog.String("error", err.Error()))
		return nil, NewRecurrenceServiceError("create", "failed to save definition", err)
	}

	log.Info("definition created",
		slog.String("definition_id", def.ID.String()),
		slog.String("frequency", string(def.Frequency)))
	return def, nil
}

// Get implements RecurrenceService.Get
func (s *recurrenceServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error) {
	var def *domain.RecurrenceDefinition
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		def, err = st.Definitions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return def, nil
}

// UpdatePattern implements RecurrenceService.UpdatePattern
func (s *recurrenceServiceImpl) UpdatePattern(
	ctx context.Context,
	id uuid.UUID,
	in PatternInput,
) (*domain.RecurrenceDefinition, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	pattern, err := in.toPattern()
	if err != nil {
		return nil, err
	}

	return s.edit(ctx, "update_pattern", id, func(def *domain.RecurrenceDefinition, now time.Time) error {
		if err := def.UpdatePattern(pattern, now); err != nil {
			return err
		}
		if def.IsActive() {
			def.NextGenerationDate = s.nextFrom(ctx, def, def.ReferenceDate())
		}
		return nil
	})
}

// Pause implements RecurrenceService.Pause
func (s *recurrenceServiceImpl) Pause(ctx context.Context, id uuid.UUID) error {
	_, err := s.edit(ctx, "pause", id, func(def *domain.RecurrenceDefinition, now time.Time) error {
		return def.Pause(now)
	})
	if err == nil {
		s.notify(ctx, events.TypeDefinitionPaused, id)
	}
	return err
}

// Resume implements RecurrenceService.Resume
// A missing or past next generation date is recomputed from yesterday so an
// occurrence falling today is still due.
func (s *recurrenceServiceImpl) Resume(ctx context.Context, id uuid.UUID) error {
	_, err := s.edit(ctx, "resume", id, func(def *domain.RecurrenceDefinition, now time.Time) error {
		var next *time.Time
		if def.NeedsNextRecompute(now) {
			from := domain.Day(now).AddDate(0, 0, -1)
			if ref := def.ReferenceDate(); ref.After(from) {
				from = ref
			}
			next = s.nextFrom(ctx, def, from)
			if next == nil {
				def.NextGenerationDate = nil
			}
		}
		return def.Resume(next, now)
	})
	if err == nil {
		s.notify(ctx, events.TypeDefinitionResumed, id)
	}
	return err
}

// AddSkipDate implements RecurrenceService.AddSkipDate
func (s *recurrenceServiceImpl) AddSkipDate(ctx context.Context, id uuid.UUID, date string) error {
	day, err := domain.ParseDate(date)
	if err != nil {
		return err
	}
	_, err = s.edit(ctx, "add_skip_date", id, func(def *domain.RecurrenceDefinition, now time.Time) error {
		if def.AddSkipDate(day, now) && def.IsActive() {
			def.NextGenerationDate = s.nextFrom(ctx, def, def.ReferenceDate())
		}
		return nil
	})
	return err
}

// RemoveSkipDate implements RecurrenceService.RemoveSkipDate
func (s *recurrenceServiceImpl) RemoveSkipDate(ctx context.Context, id uuid.UUID, date string) error {
	day, err := domain.ParseDate(date)
	if err != nil {
		return err
	}
	_, err = s.edit(ctx, "remove_skip_date", id, func(def *domain.RecurrenceDefinition, now time.Time) error {
		if def.RemoveSkipDate(day, now) && def.IsActive() {
			def.NextGenerationDate = s.nextFrom(ctx, def, def.ReferenceDate())
		}
		return nil
	})
	return err
}

// GenerateNow implements RecurrenceService.GenerateNow
func (s *recurrenceServiceImpl) GenerateNow(ctx context.Context, id uuid.UUID) (*domain.GeneratedTask, error) {
	res, err := s.generator.Process(ctx, id, true)
	if err != nil {
		return nil, NewRecurrenceServiceError("generate_now", "generation failed", err)
	}

	switch res.Outcome {
	case scanner.OutcomeGenerated:
		return res.Task, nil
	case scanner.OutcomeLocked:
		return nil, ErrDefinitionBusy
	default:
		return nil, fmt.Errorf("%w: definition is %s", ErrNothingGenerated, res.Outcome)
	}
}

// Stats implements RecurrenceService.Stats
func (s *recurrenceServiceImpl) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return statsOf(def), nil
}

// ResetOccurrences implements RecurrenceService.ResetOccurrences
func (s *recurrenceServiceImpl) ResetOccurrences(ctx context.Context, id uuid.UUID) error {
	_, err := s.edit(ctx, "reset_occurrences", id, func(def *domain.RecurrenceDefinition, now time.Time) error {
		if err := def.ResetOccurrences(now); err != nil {
			return err
		}
		if def.IsActive() && def.NextGenerationDate == nil {
			def.NextGenerationDate = s.nextFrom(ctx, def, def.ReferenceDate())
		}
		return nil
	})
	return err
}

// Delete implements RecurrenceService.Delete
func (s *recurrenceServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if _, err := st.Definitions.GetForUpdate(ctx, id); err != nil {
			return err
		}
		return st.Definitions.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	log.Info("definition deleted", slog.String("definition_id", id.String()))
	return nil
}

// Preview implements RecurrenceService.Preview
func (s *recurrenceServiceImpl) Preview(ctx context.Context, id uuid.UUID, n int) ([]string, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dates, err := s.engine.Preview(def, n)
	if err != nil && len(dates) == 0 {
		return nil, err
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = domain.FormatDate(d)
	}
	return out, nil
}

// ExportICal implements RecurrenceService.ExportICal
func (s *recurrenceServiceImpl) ExportICal(ctx context.Context, w io.Writer, ids ...uuid.UUID) error {
	defs := make([]*domain.RecurrenceDefinition, 0, len(ids))
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		for _, id := range ids {
			def, err := st.Definitions.GetByID(ctx, id)
			if err != nil {
				return err
			}
			defs = append(defs, def)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := icalendar.Export(w, defs, s.clock.Now()); err != nil {
		return NewRecurrenceServiceError("export_ical", "failed to encode calendar", err)
	}
	return nil
}

// edit loads a definition under lock, applies fn and saves the result in one
// transaction.
func (s *recurrenceServiceImpl) edit(
	ctx context.Context,
	operation string,
	id uuid.UUID,
	fn func(def *domain.RecurrenceDefinition, now time.Time) error,
) (*domain.RecurrenceDefinition, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("definition_id", id.String()),
		slog.String("operation", operation))
	ctx = logger.WithLogger(ctx, log)

	var out *domain.RecurrenceDefinition
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		def, err := st.Definitions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(def, s.clock.Now()); err != nil {
			return err
		}
		if err := st.Definitions.Update(ctx, def); err != nil {
			return err
		}
		out = def
		return nil
	})
	if err != nil {
		if !isCallerError(err) {
			log.Error("definition edit failed", slog.String("error", err.Error()))
		}
		return nil, err
	}

	log.Info("definition edited", slog.String("state", string(out.State)))
	return out, nil
}

// nextFrom computes the next resolved occurrence after ref, or nil when
// there is none within the end date or it cannot be resolved. An
// unresolvable date is left for the scanner to record as a failure.
func (s *recurrenceServiceImpl) nextFrom(
	ctx context.Context,
	def *domain.RecurrenceDefinition,
	ref time.Time,
) *time.Time {
	next, err := s.engine.NextOccurrence(def, ref)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("could not compute next occurrence",
			slog.String("definition_id", def.ID.String()),
			slog.String("error", err.Error()))
		return nil
	}
	if def.PastEnd(next) {
		return nil
	}
	return &next
}

func (s *recurrenceServiceImpl) notify(ctx context.Context, eventType string, id uuid.UUID) {
	ev, err := events.New(eventType, id, nil, s.clock.Now())
	if err != nil {
		return
	}
	if err := s.emitter.EmitEvent(ctx, ev); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}

func isCallerError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, store.ErrNotFound)
}
