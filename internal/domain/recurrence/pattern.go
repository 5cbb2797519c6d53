package recurrence

import (
	"time"

	"github.com/phrazzld/cadence/internal/domain"
)

// NextCandidate returns the first date strictly after ref that the pattern
// proposes, before any skip rule is applied.
//
// The result is always a calendar date later than ref:
//   - daily: ref + interval days
//   - weekly: the next listed weekday in a week that is a multiple of
//     interval weeks after the start date's week
//   - monthly: the nominal month of ref plus interval months, on DayOfMonth
//     clamped to the month length (LastDayOfMonth picks the last day, 0 uses
//     the start date's day)
//   - yearly: the nominal year of ref plus interval, on the start date's
//     month and day, with Feb 29 clamped to Feb 28 in common years
//
// The nominal month or year is the period ref's occurrence belongs to. It
// differs from ref's own period only when a skip moved the occurrence past
// the end of its period, and it is never earlier than the start date's.
func NextCandidate(p domain.Pattern, ref time.Time) time.Time {
	ref = domain.Day(ref)
	interval := p.Interval
	if interval < 1 {
		interval = 1
	}

	switch p.Frequency {
	case domain.FrequencyWeekly:
		if len(p.DaysOfWeek) == 0 {
			return nextWeeklyAligned(p, ref, interval)
		}
		return nextWeekday(p, ref, interval)
	case domain.FrequencyMonthly:
		return nextMonthly(p, ref, interval)
	case domain.FrequencyYearly:
		return nextYearly(p, ref, interval)
	default:
		return ref.AddDate(0, 0, interval)
	}
}

func nextWeekday(p domain.Pattern, ref time.Time, interval int) time.Time {
	anchor := weekStart(domain.Day(p.StartDate))
	limit := interval*7 + 7

	for i := 1; i <= limit; i++ {
		d := ref.AddDate(0, 0, i)
		if !p.HasWeekday(d.Weekday()) {
			continue
		}
		weeks := daysBetween(anchor, weekStart(d)) / 7
		if mod(weeks, interval) == 0 {
			return d
		}
	}

	// Unreachable for a non-empty weekday set.
	return ref.AddDate(0, 0, interval*7)
}

// nextWeeklyAligned handles weekly rows that carry no weekday set: the
// occurrences are the start date plus whole multiples of interval weeks.
func nextWeeklyAligned(p domain.Pattern, ref time.Time, interval int) time.Time {
	start := domain.Day(p.StartDate)
	step := interval * 7

	diff := daysBetween(start, ref)
	if diff < 0 {
		return start
	}
	return start.AddDate(0, 0, (diff/step+1)*step)
}

func nextMonthly(p domain.Pattern, ref time.Time, interval int) time.Time {
	start := domain.Day(p.StartDate)

	// The nominal month of ref is the month whose occurrence ref stands for.
	// A skip can push an occurrence past the end of its own month, in which
	// case ref falls before that month's anchor day.
	period := monthIndex(ref)
	if ref.Day() < monthlyDay(p, ref.Year(), ref.Month()) {
		period--
	}
	if first := monthIndex(start); period < first {
		period = first
	}

	for {
		period += interval
		year, month := period/12, time.Month(period%12+1)
		next := domain.Date(year, month, monthlyDay(p, year, month))
		if next.After(ref) {
			return next
		}
	}
}

// monthlyDay is the occurrence day of the pattern in the given month.
func monthlyDay(p domain.Pattern, year int, month time.Month) int {
	last := domain.DaysIn(year, month)

	day := p.DayOfMonth
	switch {
	case day == domain.LastDayOfMonth:
		day = last
	case day == 0:
		day = domain.Day(p.StartDate).Day()
	}
	if day > last {
		day = last
	}
	return day
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func nextYearly(p domain.Pattern, ref time.Time, interval int) time.Time {
	start := domain.Day(p.StartDate)

	// As for months, a skip may carry an occurrence into the next year.
	year := ref.Year()
	if ref.Before(yearlyDate(start, year)) {
		year--
	}
	if year < start.Year() {
		year = start.Year()
	}

	for {
		year += interval
		if next := yearlyDate(start, year); next.After(ref) {
			return next
		}
	}
}

// yearlyDate is the start date's month and day in year, with Feb 29
// clamped to Feb 28 in common years.
func yearlyDate(start time.Time, year int) time.Time {
	month := start.Month()
	day := start.Day()
	if last := domain.DaysIn(year, month); day > last {
		day = last
	}
	return domain.Date(year, month, day)
}

// weekStart returns the Sunday that begins t's week.
func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Round(time.Hour).Hours()) / 24
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}
