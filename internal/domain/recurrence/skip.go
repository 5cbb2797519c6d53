package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/cadence/internal/domain"
)

// ErrSkipLimitExceeded is returned when skip resolution walks past the
// configured bound without finding an allowed date.
var ErrSkipLimitExceeded = errors.New("skip limit exceeded")

// HolidayCalendar answers whether a calendar date is a holiday.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// noHolidays is used when no calendar is supplied.
type noHolidays struct{}

func (noHolidays) IsHoliday(time.Time) bool { return false }

// ShouldSkip reports whether date must not carry an occurrence of def.
// A nil calendar never reports holidays.
func ShouldSkip(def *domain.RecurrenceDefinition, date time.Time, holidays HolidayCalendar) bool {
	date = domain.Day(date)

	if def.IsSkipDate(date) {
		return true
	}

	if def.SkipWeekends && domain.IsWeekend(date) {
		return true
	}

	if def.SkipHolidays && holidays != nil && holidays.IsHoliday(date) {
		return true
	}

	return false
}

// Resolve advances candidate one day at a time while ShouldSkip holds.
// It makes at most maxIterations advances and fails with
// ErrSkipLimitExceeded beyond that.
func Resolve(
	def *domain.RecurrenceDefinition,
	candidate time.Time,
	holidays HolidayCalendar,
	maxIterations int,
) (time.Time, error) {
	date := domain.Day(candidate)

	for i := 0; i <= maxIterations; i++ {
		if !ShouldSkip(def, date, holidays) {
			return date, nil
		}
		date = date.AddDate(0, 0, 1)
	}

	return time.Time{}, fmt.Errorf(
		"%w: no allowed date within %d days of %s",
		ErrSkipLimitExceeded,
		maxIterations,
		domain.FormatDate(candidate),
	)
}
