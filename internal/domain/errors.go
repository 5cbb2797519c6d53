// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// Specific validation errors below wrap it, so callers can match either.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidTransition is returned when a lifecycle operation is not
	// allowed from the definition's current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)
