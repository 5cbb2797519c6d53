package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
)

// DefinitionStore defines the interface for recurrence definition persistence.
type DefinitionStore interface {
	// Create saves a new definition. It handles domain validation internally.
	Create(ctx context.Context, def *domain.RecurrenceDefinition) error

	// GetByID retrieves a definition by its unique ID without locking.
	// Returns ErrDefinitionNotFound if the definition does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error)

	// GetForUpdate retrieves a definition and locks it until the surrounding
	// transaction ends, waiting for any other holder. Owner edits use it so
	// they serialize behind an in-flight generation.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error)

	// ClaimForGeneration locks a definition for one generation cycle without
	// waiting. Returns ErrLocked if another transaction holds the row and
	// ErrDefinitionNotFound if it does not exist.
	ClaimForGeneration(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error)

	// FindDue returns up to limit active definitions whose cached next
	// generation date is unset or on or before the calendar day of now,
	// oldest next date first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.RecurrenceDefinition, error)

	// Update persists owner edits: title, description, pattern, skip dates,
	// template, lifecycle state, occurrence counter and cached next date.
	// Returns ErrDefinitionNotFound if the definition does not exist.
	Update(ctx context.Context, def *domain.RecurrenceDefinition) error

	// UpdateBookkeeping atomically applies scanner bookkeeping, provided the
	// stored occurrence counter still equals expectedCount. It clears any
	// recorded failure. Returns ErrConflict when the counter moved and
	// ErrDefinitionNotFound when the row is gone.
	UpdateBookkeeping(
		ctx context.Context,
		id uuid.UUID,
		expectedCount int,
		b domain.Bookkeeping,
		now time.Time,
	) error

	// RecordFailure stores the last scanner failure for a definition.
	RecordFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error

	// Delete removes a definition. Generated tasks are not touched.
	// Returns ErrDefinitionNotFound if the definition does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
