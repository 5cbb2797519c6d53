// Package holiday provides holiday calendars for the skipHolidays rule.
package holiday

import (
	"fmt"
	"time"

	"github.com/phrazzld/cadence/internal/domain"
)

// None never reports a holiday. It is the calendar used when no holidays
// are configured, which makes skipHolidays a no-op.
type None struct{}

// IsHoliday implements recurrence.HolidayCalendar.
func (None) IsHoliday(time.Time) bool { return false }

type monthDay struct {
	month time.Month
	day   int
}

// Static is a fixed holiday list: one-off dates plus dates repeating every
// year. It is read-only after construction.
type Static struct {
	dates  map[time.Time]struct{}
	annual map[monthDay]struct{}
}

// NewStatic builds a calendar from one-off YYYY-MM-DD dates and annual
// MM-DD dates.
func NewStatic(dates, annual []string) (*Static, error) {
	s := &Static{
		dates:  make(map[time.Time]struct{}, len(dates)),
		annual: make(map[monthDay]struct{}, len(annual)),
	}

	for _, raw := range dates {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("holiday date: %w", err)
		}
		s.dates[d] = struct{}{}
	}

	for _, raw := range annual {
		t, err := time.Parse("01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%w: annual holiday %q must be MM-DD", domain.ErrInvalidFormat, raw)
		}
		s.annual[monthDay{t.Month(), t.Day()}] = struct{}{}
	}

	return s, nil
}

// IsHoliday implements recurrence.HolidayCalendar.
func (s *Static) IsHoliday(date time.Time) bool {
	day := domain.Day(date)
	if _, ok := s.dates[day]; ok {
		return true
	}
	_, ok := s.annual[monthDay{day.Month(), day.Day()}]
	return ok
}

// Len returns the number of configured entries.
func (s *Static) Len() int {
	return len(s.dates) + len(s.annual)
}
