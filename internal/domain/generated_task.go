package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a generated task.
type TaskStatus string

// Possible task status values. The engine only ever creates pending tasks;
// the other states belong to the surrounding task tracker.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// generatedTaskNamespace seeds deterministic task IDs derived from
// idempotency keys.
var generatedTaskNamespace = uuid.MustParse("6f1c2a7e-3b9d-4d0e-9a51-0c2b7f8e4d13")

// Generated task validation errors
var (
	ErrEmptyTaskID         = fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	ErrEmptyTaskDefinition = fmt.Errorf("%w: task definition ID cannot be empty", ErrValidation)
	ErrEmptyTaskCreator    = fmt.Errorf("%w: task creator ID cannot be empty", ErrValidation)
	ErrEmptyTaskTitle      = fmt.Errorf("%w: task title cannot be empty", ErrValidation)
	ErrEmptyTaskDueDate    = fmt.Errorf("%w: task due date cannot be empty", ErrValidation)
	ErrInvalidOccurrence   = fmt.Errorf("%w: occurrence number must be at least 1", ErrValidation)
)

// GeneratedTask is an independent task materialized from a definition on one
// occurrence date. DefinitionID is an audit back-reference only; the task
// outlives the definition.
type GeneratedTask struct {
	ID               uuid.UUID  `json:"id"`
	DefinitionID     uuid.UUID  `json:"definition_id"`
	IdempotencyKey   string     `json:"idempotency_key"`
	OccurrenceNumber int        `json:"occurrence_number"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Priority         Priority   `json:"priority"`
	AssigneeID       *uuid.UUID `json:"assignee_id,omitempty"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	Time             string     `json:"time,omitempty"`
	DueDate          time.Time  `json:"due_date"`
	Status           TaskStatus `json:"status"`
	CreatorID        uuid.UUID  `json:"creator_id"`
	TeamID           *uuid.UUID `json:"team_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Validate checks if the GeneratedTask has valid data.
func (t *GeneratedTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.DefinitionID == uuid.Nil {
		return ErrEmptyTaskDefinition
	}
	if t.CreatorID == uuid.Nil {
		return ErrEmptyTaskCreator
	}
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if t.DueDate.IsZero() {
		return ErrEmptyTaskDueDate
	}
	if t.OccurrenceNumber < 1 {
		return ErrInvalidOccurrence
	}
	if !IsValidPriority(t.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// OccurrenceKey is the idempotency key of one occurrence of a definition.
// Retrying the same occurrence always yields the same key.
func OccurrenceKey(definitionID uuid.UUID, date time.Time) string {
	return definitionID.String() + ":" + FormatDate(date)
}

// TaskIDForKey derives the deterministic task ID for an idempotency key.
func TaskIDForKey(key string) uuid.UUID {
	return uuid.NewSHA1(generatedTaskNamespace, []byte(key))
}
