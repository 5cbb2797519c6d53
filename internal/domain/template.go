package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Priority is the urgency copied onto every generated task.
type Priority string

// Possible priority values
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Template validation errors
var (
	ErrEmptyTemplateTitle = fmt.Errorf("%w: template title cannot be empty", ErrValidation)
	ErrInvalidPriority    = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidEstimate    = fmt.Errorf("%w: estimated duration must be positive", ErrValidation)
	ErrEmptyTag           = fmt.Errorf("%w: tag cannot be empty", ErrValidation)
)

// TaskTemplate describes the task materialized on every occurrence.
// Title and Description may contain the {{date}} and {{count}} placeholders.
type TaskTemplate struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Priority         Priority   `json:"priority"`
	AssigneeID       *uuid.UUID `json:"assignee_id,omitempty"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	Tags             []string   `json:"tags,omitempty"`

	// Time is free text for display only ("09:30", "after standup").
	// It never takes part in recurrence arithmetic.
	Time string `json:"time,omitempty"`
}

// Validate checks if the TaskTemplate has valid data.
func (t *TaskTemplate) Validate() error {
	if t.Title == "" {
		return ErrEmptyTemplateTitle
	}

	if !IsValidPriority(t.Priority) {
		return ErrInvalidPriority
	}

	if t.EstimatedMinutes != nil && *t.EstimatedMinutes <= 0 {
		return ErrInvalidEstimate
	}

	for _, tag := range t.Tags {
		if tag == "" {
			return ErrEmptyTag
		}
	}

	return nil
}

// IsValidPriority reports whether p is one of the known priorities.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// clone returns a deep copy of the template.
func (t TaskTemplate) clone() TaskTemplate {
	out := t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		out.AssigneeID = &id
	}
	if t.EstimatedMinutes != nil {
		m := *t.EstimatedMinutes
		out.EstimatedMinutes = &m
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}
