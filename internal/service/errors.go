package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers use errors.Is to check for them; validation failures wrap
// domain.ErrValidation instead.
var (
	// ErrDefinitionBusy indicates another worker is generating for the
	// definition right now. The request may be retried.
	ErrDefinitionBusy = errors.New("definition is being generated by another worker")

	// ErrNothingGenerated indicates GenerateNow ran a cycle that did not
	// produce a task, for example because the definition is paused.
	ErrNothingGenerated = errors.New("no task generated")
)

// RecurrenceServiceError is a custom error type for recurrence service errors.
type RecurrenceServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for RecurrenceServiceError.
func (e *RecurrenceServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recurrence service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("recurrence service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RecurrenceServiceError) Unwrap() error {
	return e.Err
}

// NewRecurrenceServiceError creates a new RecurrenceServiceError.
func NewRecurrenceServiceError(operation, message string, err error) *RecurrenceServiceError {
	return &RecurrenceServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
