package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/cadence/internal/domain"
)

// Common errors
var (
	ErrNilDefinition = errors.New("recurrence definition cannot be nil")
	ErrInvalidCount  = errors.New("preview count must be at least 1")
)

// Service defines the interface for recurrence engine operations
type Service interface {
	// NextOccurrence computes the next resolved occurrence after ref.
	NextOccurrence(def *domain.RecurrenceDefinition, ref time.Time) (time.Time, error)

	// Preview lists up to n upcoming occurrences after the definition's
	// reference date, stopping at the end date or the occurrence limit.
	Preview(def *domain.RecurrenceDefinition, n int) ([]time.Time, error)

	// Materialize renders the task for the occurrence of def on date.
	Materialize(def *domain.RecurrenceDefinition, date time.Time) (*domain.GeneratedTask, error)
}

type defaultService struct {
	params   *Params
	holidays HolidayCalendar
}

// NewDefaultService creates a recurrence service with default parameters
// and no holiday calendar.
func NewDefaultService() Service {
	return NewService(NewDefaultParams(), nil)
}

// NewService creates a recurrence service with custom parameters and an
// optional holiday calendar.
func NewService(params *Params, holidays HolidayCalendar) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	if holidays == nil {
		holidays = noHolidays{}
	}
	return &defaultService{
		params:   params,
		holidays: holidays,
	}
}

// NextOccurrence implements Service.
func (s *defaultService) NextOccurrence(
	def *domain.RecurrenceDefinition,
	ref time.Time,
) (time.Time, error) {
	if def == nil {
		return time.Time{}, ErrNilDefinition
	}

	candidate := NextCandidate(def.Pattern, ref)
	resolved, err := Resolve(def, candidate, s.holidays, s.params.MaxSkipIterations)
	if err != nil {
		return time.Time{}, fmt.Errorf("definition %s: %w", def.ID, err)
	}
	return resolved, nil
}

// Preview implements Service.
func (s *defaultService) Preview(def *domain.RecurrenceDefinition, n int) ([]time.Time, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if n < 1 {
		return nil, ErrInvalidCount
	}
	if n > s.params.MaxPreview {
		n = s.params.MaxPreview
	}

	remaining := n
	if def.MaxOccurrences != nil {
		left := *def.MaxOccurrences - def.OccurrencesGenerated
		if left < remaining {
			remaining = left
		}
	}

	dates := make([]time.Time, 0, max(remaining, 0))
	ref := def.ReferenceDate()
	for len(dates) < remaining {
		next, err := s.NextOccurrence(def, ref)
		if err != nil {
			return dates, err
		}
		if def.PastEnd(next) {
			break
		}
		dates = append(dates, next)
		ref = next
	}

	return dates, nil
}

// Materialize implements Service.
func (s *defaultService) Materialize(
	def *domain.RecurrenceDefinition,
	date time.Time,
) (*domain.GeneratedTask, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}

	task := Materialize(def, date)
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}
