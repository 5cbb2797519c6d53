package service

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateInput describes a new recurrence definition.
type CreateInput struct {
	OwnerID     uuid.UUID     `json:"owner_id"    validate:"required"`
	TeamID      *uuid.UUID    `json:"team_id"`
	Title       string        `json:"title"       validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Pattern     PatternInput  `json:"pattern"`
	Template    TemplateInput `json:"task_template"`
	SkipDates   []string      `json:"skip_dates"  validate:"omitempty,dive,datetime=2006-01-02"`
}

// PatternInput describes a recurrence rule.
type PatternInput struct {
	Frequency      string `json:"frequency"       validate:"required,oneof=daily weekly monthly yearly"`
	Interval       int    `json:"interval"        validate:"required,min=1"`
	DaysOfWeek     []int  `json:"days_of_week"    validate:"omitempty,dive,min=0,max=6"`
	DayOfMonth     int    `json:"day_of_month"    validate:"min=-1,max=31"`
	StartDate      string `json:"start_date"      validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date"        validate:"omitempty,datetime=2006-01-02"`
	MaxOccurrences *int   `json:"max_occurrences" validate:"omitempty,min=1"`
	SkipWeekends   bool   `json:"skip_weekends"`
	SkipHolidays   bool   `json:"skip_holidays"`
}

// TemplateInput describes the task created on every occurrence.
// Priority defaults to medium.
type TemplateInput struct {
	Title            string     `json:"title"             validate:"required,max=200"`
	Description      string     `json:"description"       validate:"max=2000"`
	Priority         string     `json:"priority"          validate:"omitempty,oneof=low medium high urgent"`
	AssigneeID       *uuid.UUID `json:"assignee_id"`
	EstimatedMinutes *int       `json:"estimated_minutes" validate:"omitempty,min=1"`
	Tags             []string   `json:"tags"              validate:"omitempty,dive,required"`
	Time             string     `json:"time"              validate:"max=50"`
}

func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// toPattern converts validated input into a domain pattern.
func (in PatternInput) toPattern() (domain.Pattern, error) {
	start, err := domain.ParseDate(in.StartDate)
	if err != nil {
		return domain.Pattern{}, err
	}

	p := domain.Pattern{
		Frequency:      domain.Frequency(in.Frequency),
		Interval:       in.Interval,
		DayOfMonth:     in.DayOfMonth,
		StartDate:      start,
		MaxOccurrences: in.MaxOccurrences,
		SkipWeekends:   in.SkipWeekends,
		SkipHolidays:   in.SkipHolidays,
	}
	for _, d := range in.DaysOfWeek {
		p.DaysOfWeek = append(p.DaysOfWeek, time.Weekday(d))
	}
	if in.EndDate != "" {
		end, err := domain.ParseDate(in.EndDate)
		if err != nil {
			return domain.Pattern{}, err
		}
		p.EndDate = &end
	}
	return p, nil
}

func (in TemplateInput) toTemplate() domain.TaskTemplate {
	priority := domain.Priority(in.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}
	return domain.TaskTemplate{
		Title:            in.Title,
		Description:      in.Description,
		Priority:         priority,
		AssigneeID:       in.AssigneeID,
		EstimatedMinutes: in.EstimatedMinutes,
		Tags:             in.Tags,
		Time:             in.Time,
	}
}

// Stats is the observable state of a definition.
type Stats struct {
	OccurrencesGenerated int                   `json:"occurrences_generated"`
	NextGenerationDate   string                `json:"next_generation_date,omitempty"`
	LastGeneratedDate    string                `json:"last_generated_date,omitempty"`
	Paused               bool                  `json:"paused"`
	State                domain.LifecycleState `json:"state"`
	LastError            string                `json:"last_error,omitempty"`
	LastErrorAt          *time.Time            `json:"last_error_at,omitempty"`
}

func statsOf(def *domain.RecurrenceDefinition) *Stats {
	st := &Stats{
		OccurrencesGenerated: def.OccurrencesGenerated,
		Paused:               def.Paused(),
		State:                def.State,
		LastError:            def.LastError,
		LastErrorAt:          def.LastErrorAt,
	}
	if def.NextGenerationDate != nil {
		st.NextGenerationDate = domain.FormatDate(*def.NextGenerationDate)
	}
	if def.LastGeneratedDate != nil {
		st.LastGeneratedDate = domain.FormatDate(*def.LastGeneratedDate)
	}
	return st
}
