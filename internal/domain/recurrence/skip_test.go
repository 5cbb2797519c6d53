package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holidaySet map[time.Time]bool

func (h holidaySet) IsHoliday(date time.Time) bool { return h[domain.Day(date)] }

func newDefinition(t *testing.T, p domain.Pattern) *domain.RecurrenceDefinition {
	t.Helper()
	def, err := domain.NewRecurrenceDefinition(
		uuid.New(),
		"Stand-up notes",
		p,
		domain.TaskTemplate{Title: "Notes {{date}}", Priority: domain.PriorityMedium},
		time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return def
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	def := newDefinition(t, domain.Pattern{
		Frequency:    domain.FrequencyDaily,
		Interval:     1,
		StartDate:    d(2024, 1, 1),
		SkipWeekends: true,
		SkipHolidays: true,
	})
	def.SkipDates = []time.Time{d(2024, 1, 3)}
	holidays := holidaySet{d(2024, 1, 4): true}

	assert.False(t, ShouldSkip(def, d(2024, 1, 2), holidays))
	assert.True(t, ShouldSkip(def, time.Date(2024, 1, 3, 17, 30, 0, 0, time.UTC), holidays), "skip dates compare by day")
	assert.True(t, ShouldSkip(def, d(2024, 1, 4), holidays), "holiday")
	assert.True(t, ShouldSkip(def, d(2024, 1, 6), holidays), "saturday")
	assert.True(t, ShouldSkip(def, d(2024, 1, 7), holidays), "sunday")
	assert.False(t, ShouldSkip(def, d(2024, 1, 4), nil), "no calendar means no holidays")

	def.SkipHolidays = false
	assert.False(t, ShouldSkip(def, d(2024, 1, 4), holidays), "holidays ignored when not requested")
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("returns allowed candidate unchanged", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})

		got, err := Resolve(def, d(2024, 1, 3), nil, DefaultMaxSkipIterations)
		require.NoError(t, err)
		assert.Equal(t, d(2024, 1, 3), got)
	})

	t.Run("reapplies policy to advanced date", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{
			Frequency:    domain.FrequencyDaily,
			Interval:     1,
			StartDate:    d(2024, 1, 1),
			SkipWeekends: true,
		})
		// Friday is skipped explicitly, the weekend by policy.
		def.SkipDates = []time.Time{d(2024, 1, 5)}

		got, err := Resolve(def, d(2024, 1, 5), nil, DefaultMaxSkipIterations)
		require.NoError(t, err)
		assert.Equal(t, d(2024, 1, 8), got)
	})

	t.Run("skip weekends never lands on weekend", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{
			Frequency:    domain.FrequencyDaily,
			Interval:     1,
			StartDate:    d(2024, 1, 1),
			SkipWeekends: true,
		})

		for c := d(2024, 1, 1); c.Before(d(2024, 3, 1)); c = c.AddDate(0, 0, 1) {
			got, err := Resolve(def, c, nil, DefaultMaxSkipIterations)
			require.NoError(t, err)
			assert.False(t, domain.IsWeekend(got), "resolved %s", domain.FormatDate(got))
			assert.False(t, got.Before(c))
		}
	})

	t.Run("fails beyond the bound", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{
			Frequency:    domain.FrequencyDaily,
			Interval:     1,
			StartDate:    d(2024, 1, 1),
			SkipWeekends: true,
		})
		for i := 0; i < 150; i++ {
			def.SkipDates = append(def.SkipDates, d(2024, 1, 2).AddDate(0, 0, i))
		}

		_, err := Resolve(def, d(2024, 1, 2), nil, DefaultMaxSkipIterations)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSkipLimitExceeded))
	})

	t.Run("bound counts advances", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})
		def.SkipDates = []time.Time{d(2024, 1, 2), d(2024, 1, 3)}

		got, err := Resolve(def, d(2024, 1, 2), nil, 2)
		require.NoError(t, err)
		assert.Equal(t, d(2024, 1, 4), got)

		_, err = Resolve(def, d(2024, 1, 2), nil, 1)
		assert.ErrorIs(t, err, ErrSkipLimitExceeded)
	})
}
