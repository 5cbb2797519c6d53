package recurrence

import (
	"testing"
	"time"

	"github.com/phrazzld/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	t.Parallel()

	service := NewDefaultService()
	require.NotNil(t, service)

	impl, ok := service.(*defaultService)
	require.True(t, ok, "Expected *defaultService type")
	assert.Equal(t, DefaultMaxSkipIterations, impl.params.MaxSkipIterations)
	assert.NotNil(t, impl.holidays)

	custom := NewService(NewParams(ParamsConfig{MaxSkipIterations: 7}), nil).(*defaultService)
	assert.Equal(t, 7, custom.params.MaxSkipIterations)
	assert.Equal(t, DefaultMaxPreview, custom.params.MaxPreview)
}

func TestNextOccurrenceScenarios(t *testing.T) {
	t.Parallel()
	service := NewDefaultService()
	limit := 3

	t.Run("daily interval 2 with limit", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{
			Frequency:      domain.FrequencyDaily,
			Interval:       2,
			StartDate:      d(2024, 1, 1),
			MaxOccurrences: &limit,
		})

		var got []time.Time
		for !def.LimitReached() {
			next, err := service.NextOccurrence(def, def.ReferenceDate())
			require.NoError(t, err)
			got = append(got, next)
			def.OccurrencesGenerated++
			def.LastGeneratedDate = &next
		}

		assert.Equal(t, []time.Time{d(2024, 1, 3), d(2024, 1, 5), d(2024, 1, 7)}, got)
	})

	t.Run("skip date resolves forward", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{
			Frequency:      domain.FrequencyDaily,
			Interval:       2,
			StartDate:      d(2024, 1, 1),
			MaxOccurrences: &limit,
		})
		def.SkipDates = []time.Time{d(2024, 1, 3)}

		next, err := service.NextOccurrence(def, def.ReferenceDate())
		require.NoError(t, err)
		assert.Equal(t, d(2024, 1, 4), next)
	})

	t.Run("skip limit exceeded", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{
			Frequency:    domain.FrequencyDaily,
			Interval:     1,
			StartDate:    d(2024, 1, 1),
			SkipWeekends: true,
		})
		for i := 0; i < 150; i++ {
			def.AddSkipDate(d(2024, 1, 2).AddDate(0, 0, i), time.Now())
		}

		_, err := service.NextOccurrence(def, def.ReferenceDate())
		assert.ErrorIs(t, err, ErrSkipLimitExceeded)
		assert.Contains(t, err.Error(), def.ID.String())
	})

	t.Run("holidays come from the injected calendar", func(t *testing.T) {
		t.Parallel()
		withHolidays := NewService(nil, holidaySet{d(2024, 12, 25): true})
		def := newDefinition(t, domain.Pattern{
			Frequency:    domain.FrequencyYearly,
			Interval:     1,
			StartDate:    d(2023, 12, 25),
			SkipHolidays: true,
		})

		next, err := withHolidays.NextOccurrence(def, def.ReferenceDate())
		require.NoError(t, err)
		assert.Equal(t, d(2024, 12, 26), next)
	})

	t.Run("nil definition", func(t *testing.T) {
		t.Parallel()
		_, err := service.NextOccurrence(nil, d(2024, 1, 1))
		assert.ErrorIs(t, err, ErrNilDefinition)
	})
}

func TestPreview(t *testing.T) {
	t.Parallel()
	service := NewDefaultService()

	t.Run("stops at end date", func(t *testing.T) {
		t.Parallel()
		end := d(2024, 1, 20)
		def := newDefinition(t, domain.Pattern{
			Frequency:  domain.FrequencyWeekly,
			Interval:   1,
			DaysOfWeek: []time.Weekday{time.Monday},
			StartDate:  d(2024, 1, 1),
			EndDate:    &end,
		})

		dates, err := service.Preview(def, 10)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{d(2024, 1, 8), d(2024, 1, 15)}, dates)
	})

	t.Run("stops at remaining occurrences", func(t *testing.T) {
		t.Parallel()
		limit := 5
		def := newDefinition(t, domain.Pattern{
			Frequency:      domain.FrequencyDaily,
			Interval:       1,
			StartDate:      d(2024, 1, 1),
			MaxOccurrences: &limit,
		})
		last := d(2024, 1, 4)
		def.OccurrencesGenerated = 3
		def.LastGeneratedDate = &last

		dates, err := service.Preview(def, 10)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{d(2024, 1, 5), d(2024, 1, 6)}, dates)
	})

	t.Run("does not mutate definition", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})
		before := def.Clone()

		_, err := service.Preview(def, 3)
		require.NoError(t, err)
		assert.Equal(t, before, def)
	})

	t.Run("rejects non-positive count", func(t *testing.T) {
		t.Parallel()
		def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})

		_, err := service.Preview(def, 0)
		assert.ErrorIs(t, err, ErrInvalidCount)
	})
}

func TestServiceMaterializeValidates(t *testing.T) {
	t.Parallel()
	service := NewDefaultService()

	def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})
	task, err := service.Materialize(def, d(2024, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, "Notes 2024-01-02", task.Title)

	def.Template.Priority = "whenever"
	_, err = service.Materialize(def, d(2024, 1, 2))
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}
