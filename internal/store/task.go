package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
)

// GeneratedTaskStore defines the interface for generated task persistence.
type GeneratedTaskStore interface {
	// Create saves a materialized task. Returns ErrTaskExists when a task
	// with the same idempotency key already exists; the stored task is left
	// unchanged and the caller may treat the occurrence as created.
	Create(ctx context.Context, task *domain.GeneratedTask) error

	// GetByIdempotencyKey retrieves the task created for one occurrence.
	// Returns ErrTaskNotFound if none exists.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.GeneratedTask, error)

	// ListByDefinition returns the tasks generated from a definition,
	// ordered by occurrence number.
	ListByDefinition(ctx context.Context, definitionID uuid.UUID) ([]*domain.GeneratedTask, error)
}
