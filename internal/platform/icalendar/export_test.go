package icalendar

import (
	"bytes"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

func newDefinition(t *testing.T, p domain.Pattern) *domain.RecurrenceDefinition {
	t.Helper()
	def, err := domain.NewRecurrenceDefinition(
		uuid.New(),
		"Pay rent",
		p,
		domain.TaskTemplate{Title: "Rent {{date}}", Priority: domain.PriorityHigh, Tags: []string{"home", "money"}},
		now,
	)
	require.NoError(t, err)
	return def
}

// TestRuleMatchesEngine checks that the exported RRULE expands to the same
// dates the engine produces when no skip rules are involved.
func TestRuleMatchesEngine(t *testing.T) {
	t.Parallel()
	count := 8

	patterns := map[string]domain.Pattern{
		"daily every other day": {
			Frequency: domain.FrequencyDaily, Interval: 2, StartDate: domain.Date(2024, 1, 1), MaxOccurrences: &count,
		},
		"weekly mon wed fri": {
			Frequency:      domain.FrequencyWeekly,
			Interval:       1,
			DaysOfWeek:     []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			StartDate:      domain.Date(2024, 1, 1),
			MaxOccurrences: &count,
		},
		"fortnightly tuesday thursday": {
			Frequency:      domain.FrequencyWeekly,
			Interval:       2,
			DaysOfWeek:     []time.Weekday{time.Tuesday, time.Thursday},
			StartDate:      domain.Date(2024, 1, 3),
			MaxOccurrences: &count,
		},
		"monthly on the 31st": {
			Frequency: domain.FrequencyMonthly, Interval: 1, DayOfMonth: 31, StartDate: domain.Date(2024, 1, 31), MaxOccurrences: &count,
		},
		"monthly last day": {
			Frequency:      domain.FrequencyMonthly,
			Interval:       2,
			DayOfMonth:     domain.LastDayOfMonth,
			StartDate:      domain.Date(2024, 1, 15),
			MaxOccurrences: &count,
		},
		"yearly leap day": {
			Frequency: domain.FrequencyYearly, Interval: 1, StartDate: domain.Date(2024, 2, 29), MaxOccurrences: &count,
		},
	}

	service := recurrence.NewDefaultService()
	for name, p := range patterns {
		name, p := name, p
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			def := newDefinition(t, p)

			want, err := service.Preview(def, count)
			require.NoError(t, err)

			rule, err := Rule(def)
			require.NoError(t, err)
			got := rule.All()

			require.Len(t, got, count)
			for i := range want {
				assert.Equal(t, domain.FormatDate(want[i]), domain.FormatDate(got[i]), "occurrence %d", i+1)
			}
		})
	}
}

func TestRuleEndDateWinsOverCount(t *testing.T) {
	t.Parallel()
	end := domain.Date(2024, 1, 6)
	count := 10

	def := newDefinition(t, domain.Pattern{
		Frequency:      domain.FrequencyDaily,
		Interval:       1,
		StartDate:      domain.Date(2024, 1, 1),
		EndDate:        &end,
		MaxOccurrences: &count,
	})

	rule, err := Rule(def)
	require.NoError(t, err)
	assert.Len(t, rule.All(), 5)
	assert.NotContains(t, rule.OrigOptions.RRuleString(), "COUNT")
}

func TestExport(t *testing.T) {
	t.Parallel()
	count := 3

	def := newDefinition(t, domain.Pattern{
		Frequency:      domain.FrequencyDaily,
		Interval:       2,
		StartDate:      domain.Date(2024, 1, 1),
		MaxOccurrences: &count,
	})
	def.Description = "Transfer before noon"
	def.AddSkipDate(domain.Date(2024, 1, 5), now)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, []*domain.RecurrenceDefinition{def}, now))

	cal, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)

	prodID, err := cal.Props.Text(ical.PropProductID)
	require.NoError(t, err)
	assert.Equal(t, ProductID, prodID)

	require.Len(t, cal.Children, 1)
	todo := cal.Children[0]
	assert.Equal(t, ical.CompToDo, todo.Name)

	uid, err := todo.Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, def.ID.String(), uid)

	summary, err := todo.Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Pay rent", summary)

	dtstart := todo.Props.Get(ical.PropDateTimeStart)
	require.NotNil(t, dtstart)
	assert.Equal(t, "20240103", dtstart.Value)

	rrule := todo.Props.Get(ical.PropRecurrenceRule)
	require.NotNil(t, rrule)
	for _, part := range []string{"FREQ=DAILY", "INTERVAL=2", "COUNT=3"} {
		assert.Contains(t, rrule.Value, part)
	}

	exdate := todo.Props.Get(ical.PropExceptionDates)
	require.NotNil(t, exdate)
	assert.Equal(t, "20240105", exdate.Value)

	status := todo.Props.Get(ical.PropStatus)
	require.NotNil(t, status)
	assert.Equal(t, "NEEDS-ACTION", status.Value)

	priority := todo.Props.Get(ical.PropPriority)
	require.NotNil(t, priority)
	assert.Equal(t, "3", priority.Value)

}

func TestClampedDay(t *testing.T) {
	t.Parallel()

	days, pos := clampedDay(15)
	assert.Equal(t, []int{15}, days)
	assert.Nil(t, pos)

	days, pos = clampedDay(30)
	assert.Equal(t, []int{28, 29, 30}, days)
	assert.Equal(t, []int{-1}, pos)

	days, pos = clampedDay(domain.LastDayOfMonth)
	assert.Equal(t, []int{-1}, days)
	assert.Nil(t, pos)
}
