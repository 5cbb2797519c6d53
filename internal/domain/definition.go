package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Frequency is the unit a recurrence interval counts in.
type Frequency string

// Possible frequency values
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// LastDayOfMonth is the DayOfMonth sentinel for "the last day of the month".
const LastDayOfMonth = -1

// LifecycleState is the explicit state of a recurrence definition.
type LifecycleState string

// Possible lifecycle states
const (
	StateActive    LifecycleState = "active"
	StatePaused    LifecycleState = "paused"
	StateExhausted LifecycleState = "exhausted"
	StateExpired   LifecycleState = "expired"
	StateDeleted   LifecycleState = "deleted"
)

// Definition validation errors. All of them wrap ErrValidation.
var (
	ErrEmptyDefinitionID       = fmt.Errorf("%w: definition ID cannot be empty", ErrValidation)
	ErrEmptyOwnerID            = fmt.Errorf("%w: owner ID cannot be empty", ErrValidation)
	ErrEmptyTitle              = fmt.Errorf("%w: title cannot be empty", ErrValidation)
	ErrInvalidFrequency        = fmt.Errorf("%w: invalid frequency", ErrValidation)
	ErrInvalidInterval         = fmt.Errorf("%w: interval must be at least 1", ErrValidation)
	ErrEmptyDaysOfWeek         = fmt.Errorf("%w: weekly recurrence needs at least one weekday", ErrValidation)
	ErrInvalidWeekday          = fmt.Errorf("%w: weekday must be between 0 and 6", ErrValidation)
	ErrInvalidDayOfMonth       = fmt.Errorf("%w: day of month must be between -1 and 31", ErrValidation)
	ErrEmptyStartDate          = fmt.Errorf("%w: start date is required", ErrValidation)
	ErrEndBeforeStart          = fmt.Errorf("%w: end date must not be before start date", ErrValidation)
	ErrInvalidMaxOccurrences   = fmt.Errorf("%w: max occurrences must be at least 1", ErrValidation)
	ErrOccurrencesOverLimit    = fmt.Errorf("%w: occurrences generated exceed max occurrences", ErrValidation)
	ErrInvalidState            = fmt.Errorf("%w: invalid lifecycle state", ErrValidation)
	ErrNextNotAfterLast        = fmt.Errorf("%w: next generation date must be after last generated date", ErrValidation)
	ErrNegativeOccurrenceCount = fmt.Errorf("%w: occurrences generated cannot be negative", ErrValidation)
)

// Pattern is the part of a definition that decides which dates occur.
// It is the unit owners edit through UpdatePattern.
type Pattern struct {
	Frequency      Frequency      `json:"frequency"`
	Interval       int            `json:"interval"`
	DaysOfWeek     []time.Weekday `json:"days_of_week,omitempty"`
	DayOfMonth     int            `json:"day_of_month,omitempty"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        *time.Time     `json:"end_date,omitempty"`
	MaxOccurrences *int           `json:"max_occurrences,omitempty"`
	SkipWeekends   bool           `json:"skip_weekends"`
	SkipHolidays   bool           `json:"skip_holidays"`
}

// Bookkeeping holds the fields the scanner advances after each generation.
// Transition, when set, moves the definition to a new lifecycle state in the
// same atomic update.
type Bookkeeping struct {
	OccurrencesGenerated int
	LastGeneratedDate    *time.Time
	NextGenerationDate   *time.Time
	Transition           *LifecycleState
}

// RecurrenceDefinition is a user-owned rule describing how and when task
// instances are spawned.
type RecurrenceDefinition struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	TeamID      *uuid.UUID `json:"team_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`

	Pattern

	SkipDates []time.Time  `json:"skip_dates,omitempty"`
	Template  TaskTemplate `json:"task_template"`

	OccurrencesGenerated int            `json:"occurrences_generated"`
	LastGeneratedDate    *time.Time     `json:"last_generated_date,omitempty"`
	NextGenerationDate   *time.Time     `json:"next_generation_date,omitempty"`
	State                LifecycleState `json:"state"`

	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecurrenceDefinition creates a new active definition with a fresh ID.
// Dates in the pattern are normalized to calendar days.
// Returns an error if validation fails.
func NewRecurrenceDefinition(
	ownerID uuid.UUID,
	title string,
	pattern Pattern,
	template TaskTemplate,
	now time.Time,
) (*RecurrenceDefinition, error) {
	def := &RecurrenceDefinition{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		Pattern:   normalizePattern(pattern),
		Template:  template,
		State:     StateActive,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return def, nil
}

// Validate checks if the RecurrenceDefinition has valid data.
// Returns an error wrapping ErrValidation if any field fails validation.
func (d *RecurrenceDefinition) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDefinitionID
	}

	if d.OwnerID == uuid.Nil {
		return ErrEmptyOwnerID
	}

	if d.Title == "" {
		return ErrEmptyTitle
	}

	if err := d.Pattern.Validate(); err != nil {
		return err
	}

	if err := d.Template.Validate(); err != nil {
		return err
	}

	if !IsValidState(d.State) {
		return ErrInvalidState
	}

	if d.OccurrencesGenerated < 0 {
		return ErrNegativeOccurrenceCount
	}

	if d.MaxOccurrences != nil && d.OccurrencesGenerated > *d.MaxOccurrences {
		return ErrOccurrencesOverLimit
	}

	if d.LastGeneratedDate != nil && d.NextGenerationDate != nil &&
		!d.NextGenerationDate.After(*d.LastGeneratedDate) {
		return ErrNextNotAfterLast
	}

	return nil
}

// Validate checks the recurrence rule itself.
func (p *Pattern) Validate() error {
	switch p.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return ErrInvalidFrequency
	}

	if p.Interval < 1 {
		return ErrInvalidInterval
	}

	if p.Frequency == FrequencyWeekly && len(p.DaysOfWeek) == 0 {
		return ErrEmptyDaysOfWeek
	}

	for _, wd := range p.DaysOfWeek {
		if wd < time.Sunday || wd > time.Saturday {
			return ErrInvalidWeekday
		}
	}

	if p.DayOfMonth < LastDayOfMonth || p.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}

	if p.StartDate.IsZero() {
		return ErrEmptyStartDate
	}

	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return ErrEndBeforeStart
	}

	if p.MaxOccurrences != nil && *p.MaxOccurrences < 1 {
		return ErrInvalidMaxOccurrences
	}

	return nil
}

// IsValidState reports whether s is one of the known lifecycle states.
func IsValidState(s LifecycleState) bool {
	switch s {
	case StateActive, StatePaused, StateExhausted, StateExpired, StateDeleted:
		return true
	default:
		return false
	}
}

// Paused reports whether the definition is paused.
func (d *RecurrenceDefinition) Paused() bool {
	return d.State == StatePaused
}

// IsActive reports whether the definition participates in scans.
func (d *RecurrenceDefinition) IsActive() bool {
	return d.State == StateActive
}

// LimitReached reports whether the occurrence limit, if any, has been hit.
func (d *RecurrenceDefinition) LimitReached() bool {
	return d.MaxOccurrences != nil && d.OccurrencesGenerated >= *d.MaxOccurrences
}

// PastEnd reports whether date falls after the definition's end date.
func (d *RecurrenceDefinition) PastEnd(date time.Time) bool {
	return d.EndDate != nil && Day(date).After(Day(*d.EndDate))
}

// ReferenceDate is the date the next candidate is computed from: the last
// generated occurrence if any, otherwise the start date.
func (d *RecurrenceDefinition) ReferenceDate() time.Time {
	if d.LastGeneratedDate != nil {
		return Day(*d.LastGeneratedDate)
	}
	return Day(d.StartDate)
}

// Pause moves an active definition to paused. The cached next generation
// date is left untouched and recomputed on resume.
func (d *RecurrenceDefinition) Pause(now time.Time) error {
	if d.State != StateActive {
		return fmt.Errorf("%w: cannot pause a %s definition", ErrInvalidTransition, d.State)
	}
	d.State = StatePaused
	d.UpdatedAt = now.UTC()
	return nil
}

// Resume moves a paused definition back to active. next is the freshly
// computed next generation date, or nil to keep the cached one.
func (d *RecurrenceDefinition) Resume(next *time.Time, now time.Time) error {
	if d.State != StatePaused {
		return fmt.Errorf("%w: cannot resume a %s definition", ErrInvalidTransition, d.State)
	}
	d.State = StateActive
	if next != nil {
		d.NextGenerationDate = datePtr(*next)
	}
	d.UpdatedAt = now.UTC()
	return nil
}

// NeedsNextRecompute reports whether the cached next generation date is
// missing or earlier than today.
func (d *RecurrenceDefinition) NeedsNextRecompute(now time.Time) bool {
	return d.NextGenerationDate == nil || Day(*d.NextGenerationDate).Before(Day(now))
}

// ResetOccurrences clears the occurrence counter. An exhausted definition
// becomes active again.
func (d *RecurrenceDefinition) ResetOccurrences(now time.Time) error {
	if d.State == StateDeleted {
		return fmt.Errorf("%w: cannot reset a deleted definition", ErrInvalidTransition)
	}
	d.OccurrencesGenerated = 0
	if d.State == StateExhausted {
		d.State = StateActive
	}
	d.UpdatedAt = now.UTC()
	return nil
}

// UpdatePattern replaces the recurrence rule. An expired definition is
// reactivated because the edit may have moved its end date. The cached next
// generation date is cleared for the caller to recompute.
func (d *RecurrenceDefinition) UpdatePattern(p Pattern, now time.Time) error {
	if d.State == StateDeleted {
		return fmt.Errorf("%w: cannot edit a deleted definition", ErrInvalidTransition)
	}

	p = normalizePattern(p)
	if err := p.Validate(); err != nil {
		return err
	}
	if p.MaxOccurrences != nil && d.OccurrencesGenerated > *p.MaxOccurrences {
		return ErrOccurrencesOverLimit
	}

	d.Pattern = p
	d.NextGenerationDate = nil
	switch {
	case d.State == StateExpired:
		d.State = StateActive
	case d.State == StateExhausted && !d.LimitReached():
		d.State = StateActive
	case d.State == StateActive && d.LimitReached():
		d.State = StateExhausted
	}
	d.UpdatedAt = now.UTC()
	return nil
}

// AddSkipDate adds date to the skip set. It reports false when the date was
// already present.
func (d *RecurrenceDefinition) AddSkipDate(date time.Time, now time.Time) bool {
	day := Day(date)
	if d.IsSkipDate(day) {
		return false
	}
	d.SkipDates = append(d.SkipDates, day)
	sort.Slice(d.SkipDates, func(i, j int) bool { return d.SkipDates[i].Before(d.SkipDates[j]) })
	d.UpdatedAt = now.UTC()
	return true
}

// RemoveSkipDate removes date from the skip set. It reports false when the
// date was not present.
func (d *RecurrenceDefinition) RemoveSkipDate(date time.Time, now time.Time) bool {
	day := Day(date)
	for i, sd := range d.SkipDates {
		if Day(sd).Equal(day) {
			d.SkipDates = append(d.SkipDates[:i], d.SkipDates[i+1:]...)
			d.UpdatedAt = now.UTC()
			return true
		}
	}
	return false
}

// IsSkipDate reports whether date is in the skip set, by calendar day.
func (d *RecurrenceDefinition) IsSkipDate(date time.Time) bool {
	day := Day(date)
	for _, sd := range d.SkipDates {
		if Day(sd).Equal(day) {
			return true
		}
	}
	return false
}

// HasWeekday reports whether wd is in the weekly day set.
func (p *Pattern) HasWeekday(wd time.Weekday) bool {
	for _, w := range p.DaysOfWeek {
		if w == wd {
			return true
		}
	}
	return false
}

// ApplyBookkeeping copies scanner bookkeeping onto the definition.
func (d *RecurrenceDefinition) ApplyBookkeeping(b Bookkeeping, now time.Time) {
	d.OccurrencesGenerated = b.OccurrencesGenerated
	d.LastGeneratedDate = b.LastGeneratedDate
	d.NextGenerationDate = b.NextGenerationDate
	if b.Transition != nil {
		d.State = *b.Transition
	}
	d.UpdatedAt = now.UTC()
}

// Bookkeeping returns the definition's current bookkeeping fields.
func (d *RecurrenceDefinition) Bookkeeping() Bookkeeping {
	return Bookkeeping{
		OccurrencesGenerated: d.OccurrencesGenerated,
		LastGeneratedDate:    d.LastGeneratedDate,
		NextGenerationDate:   d.NextGenerationDate,
	}
}

// Clone returns a deep copy of the definition.
func (d *RecurrenceDefinition) Clone() *RecurrenceDefinition {
	out := *d
	out.Pattern = clonePattern(d.Pattern)
	out.Template = d.Template.clone()
	if d.TeamID != nil {
		id := *d.TeamID
		out.TeamID = &id
	}
	if d.SkipDates != nil {
		out.SkipDates = append([]time.Time(nil), d.SkipDates...)
	}
	out.LastGeneratedDate = copyTime(d.LastGeneratedDate)
	out.NextGenerationDate = copyTime(d.NextGenerationDate)
	out.LastErrorAt = copyTime(d.LastErrorAt)
	return &out
}

// StatePtr returns a pointer to s, for use in Bookkeeping.Transition.
func StatePtr(s LifecycleState) *LifecycleState {
	return &s
}

func normalizePattern(p Pattern) Pattern {
	p = clonePattern(p)
	if !p.StartDate.IsZero() {
		p.StartDate = Day(p.StartDate)
	}
	if p.EndDate != nil {
		p.EndDate = datePtr(*p.EndDate)
	}
	return p
}

func clonePattern(p Pattern) Pattern {
	out := p
	if p.DaysOfWeek != nil {
		out.DaysOfWeek = append([]time.Weekday(nil), p.DaysOfWeek...)
	}
	out.EndDate = copyTime(p.EndDate)
	if p.MaxOccurrences != nil {
		m := *p.MaxOccurrences
		out.MaxOccurrences = &m
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
