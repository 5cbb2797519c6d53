package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validPattern() Pattern {
	return Pattern{
		Frequency: FrequencyDaily,
		Interval:  1,
		StartDate: Date(2024, time.January, 1),
	}
}

func validTemplate() TaskTemplate {
	return TaskTemplate{Title: "Water plants {{date}}", Priority: PriorityMedium}
}

func TestNewRecurrenceDefinition(t *testing.T) {
	t.Parallel()
	ownerID := uuid.New()
	now := time.Date(2024, time.January, 1, 15, 4, 5, 0, time.UTC)

	pattern := validPattern()
	pattern.StartDate = time.Date(2024, time.January, 1, 18, 30, 0, 0, time.UTC)

	def, err := NewRecurrenceDefinition(ownerID, "Plants", pattern, validTemplate(), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if def.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}
	if def.State != StateActive {
		t.Errorf("Expected state %s, got %s", StateActive, def.State)
	}
	if !def.StartDate.Equal(Date(2024, time.January, 1)) {
		t.Errorf("Expected start date normalized to midnight, got %v", def.StartDate)
	}
	if def.OccurrencesGenerated != 0 {
		t.Errorf("Expected zero occurrences, got %d", def.OccurrencesGenerated)
	}

	_, err = NewRecurrenceDefinition(uuid.Nil, "Plants", validPattern(), validTemplate(), now)
	if !errors.Is(err, ErrEmptyOwnerID) {
		t.Errorf("Expected error %v, got %v", ErrEmptyOwnerID, err)
	}
}

func TestPatternValidate(t *testing.T) {
	t.Parallel()

	end := Date(2023, time.December, 31)
	zero := 0

	testCases := []struct {
		name    string
		mutate  func(p *Pattern)
		wantErr error
	}{
		{name: "valid daily", mutate: func(p *Pattern) {}},
		{name: "interval zero", mutate: func(p *Pattern) { p.Interval = 0 }, wantErr: ErrInvalidInterval},
		{name: "unknown frequency", mutate: func(p *Pattern) { p.Frequency = "hourly" }, wantErr: ErrInvalidFrequency},
		{
			name:    "weekly without weekdays",
			mutate:  func(p *Pattern) { p.Frequency = FrequencyWeekly },
			wantErr: ErrEmptyDaysOfWeek,
		},
		{
			name: "weekday out of range",
			mutate: func(p *Pattern) {
				p.Frequency = FrequencyWeekly
				p.DaysOfWeek = []time.Weekday{7}
			},
			wantErr: ErrInvalidWeekday,
		},
		{name: "day of month too small", mutate: func(p *Pattern) { p.DayOfMonth = -2 }, wantErr: ErrInvalidDayOfMonth},
		{name: "day of month too large", mutate: func(p *Pattern) { p.DayOfMonth = 32 }, wantErr: ErrInvalidDayOfMonth},
		{name: "last day sentinel", mutate: func(p *Pattern) { p.Frequency = FrequencyMonthly; p.DayOfMonth = -1 }},
		{name: "missing start", mutate: func(p *Pattern) { p.StartDate = time.Time{} }, wantErr: ErrEmptyStartDate},
		{name: "end before start", mutate: func(p *Pattern) { p.EndDate = &end }, wantErr: ErrEndBeforeStart},
		{name: "zero max occurrences", mutate: func(p *Pattern) { p.MaxOccurrences = &zero }, wantErr: ErrInvalidMaxOccurrences},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPattern()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected error %v, got %v", tc.wantErr, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected error to wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()
	now := time.Now()

	def, err := NewRecurrenceDefinition(uuid.New(), "Plants", validPattern(), validTemplate(), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := def.Resume(nil, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected resume of active definition to fail, got %v", err)
	}

	stale := Date(2024, time.January, 3)
	def.NextGenerationDate = &stale
	if err := def.Pause(now); err != nil {
		t.Fatalf("Expected pause to succeed, got %v", err)
	}
	if !def.Paused() {
		t.Error("Expected definition to be paused")
	}
	if def.NextGenerationDate == nil || !def.NextGenerationDate.Equal(stale) {
		t.Error("Expected pause to leave the cached next date untouched")
	}
	if err := def.Pause(now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected double pause to fail, got %v", err)
	}

	next := Date(2024, time.February, 1)
	if err := def.Resume(&next, now); err != nil {
		t.Fatalf("Expected resume to succeed, got %v", err)
	}
	if def.State != StateActive || !def.NextGenerationDate.Equal(next) {
		t.Errorf("Expected active with next %v, got %s with %v", next, def.State, def.NextGenerationDate)
	}
}

func TestResetAndUpdatePattern(t *testing.T) {
	t.Parallel()
	now := time.Now()
	limit := 2

	pattern := validPattern()
	pattern.MaxOccurrences = &limit
	def, err := NewRecurrenceDefinition(uuid.New(), "Plants", pattern, validTemplate(), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	def.OccurrencesGenerated = 2
	def.State = StateExhausted

	if err := def.ResetOccurrences(now); err != nil {
		t.Fatalf("Expected reset to succeed, got %v", err)
	}
	if def.State != StateActive || def.OccurrencesGenerated != 0 {
		t.Errorf("Expected active with zero count, got %s with %d", def.State, def.OccurrencesGenerated)
	}

	def.State = StateExpired
	end := Date(2025, time.January, 1)
	edited := validPattern()
	edited.EndDate = &end
	if err := def.UpdatePattern(edited, now); err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}
	if def.State != StateActive {
		t.Errorf("Expected edit to reactivate expired definition, got %s", def.State)
	}
	if def.NextGenerationDate != nil {
		t.Error("Expected edit to clear cached next date")
	}

	bad := validPattern()
	bad.Interval = 0
	if err := def.UpdatePattern(bad, now); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestSkipDates(t *testing.T) {
	t.Parallel()
	now := time.Now()

	def, err := NewRecurrenceDefinition(uuid.New(), "Plants", validPattern(), validTemplate(), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	evening := time.Date(2024, time.January, 3, 21, 0, 0, 0, time.UTC)
	if !def.AddSkipDate(evening, now) {
		t.Error("Expected skip date to be added")
	}
	if def.AddSkipDate(Date(2024, time.January, 3), now) {
		t.Error("Expected duplicate skip date to be ignored")
	}
	if !def.IsSkipDate(time.Date(2024, time.January, 3, 8, 0, 0, 0, time.UTC)) {
		t.Error("Expected skip check to ignore time of day")
	}
	if !def.RemoveSkipDate(Date(2024, time.January, 3), now) {
		t.Error("Expected skip date to be removed")
	}
	if def.RemoveSkipDate(Date(2024, time.January, 3), now) {
		t.Error("Expected second removal to report absence")
	}
}

func TestPatternHasWeekday(t *testing.T) {
	t.Parallel()

	p := validPattern()
	p.Frequency = FrequencyWeekly
	p.DaysOfWeek = []time.Weekday{time.Monday, time.Friday}

	if !p.HasWeekday(time.Friday) {
		t.Error("Expected Friday to be in the weekly day set")
	}
	if p.HasWeekday(time.Sunday) {
		t.Error("Expected Sunday to be absent from the weekly day set")
	}

	p.DaysOfWeek = nil
	if p.HasWeekday(time.Monday) {
		t.Error("Expected an empty day set to match nothing")
	}
}

func TestDaysIn(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}

	for _, tc := range testCases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Errorf("DaysIn(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestOccurrenceKeyDeterministic(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	day := Date(2024, time.January, 3)

	key := OccurrenceKey(id, day.Add(13*time.Hour))
	if key != id.String()+":2024-01-03" {
		t.Errorf("Unexpected occurrence key %q", key)
	}
	if TaskIDForKey(key) != TaskIDForKey(OccurrenceKey(id, day)) {
		t.Error("Expected the same occurrence to derive the same task ID")
	}
	if TaskIDForKey(key) == TaskIDForKey(OccurrenceKey(id, day.AddDate(0, 0, 1))) {
		t.Error("Expected different occurrences to derive different task IDs")
	}
}
