package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/cadence/internal/domain"
)

// Template placeholders
const (
	PlaceholderDate  = "{{date}}"
	PlaceholderCount = "{{count}}"
)

// Render substitutes the date and count placeholders in s.
func Render(s string, date time.Time, count int) string {
	if s == "" {
		return s
	}
	return strings.NewReplacer(
		PlaceholderDate, domain.FormatDate(date),
		PlaceholderCount, strconv.Itoa(count),
	).Replace(s)
}

// Materialize renders the task for the occurrence of def on date. The
// occurrence number is def.OccurrencesGenerated + 1. CreatedAt is left for
// the caller to stamp.
func Materialize(def *domain.RecurrenceDefinition, date time.Time) *domain.GeneratedTask {
	date = domain.Day(date)
	count := def.OccurrencesGenerated + 1
	key := domain.OccurrenceKey(def.ID, date)
	tmpl := def.Template

	task := &domain.GeneratedTask{
		ID:               domain.TaskIDForKey(key),
		DefinitionID:     def.ID,
		IdempotencyKey:   key,
		OccurrenceNumber: count,
		Title:            Render(tmpl.Title, date, count),
		Description:      Render(tmpl.Description, date, count),
		Priority:         tmpl.Priority,
		Time:             tmpl.Time,
		DueDate:          date,
		Status:           domain.TaskStatusPending,
		CreatorID:        def.OwnerID,
	}

	if tmpl.AssigneeID != nil {
		id := *tmpl.AssigneeID
		task.AssigneeID = &id
	}
	if tmpl.EstimatedMinutes != nil {
		m := *tmpl.EstimatedMinutes
		task.EstimatedMinutes = &m
	}
	if tmpl.Tags != nil {
		task.Tags = append([]string(nil), tmpl.Tags...)
	}
	if def.TeamID != nil {
		id := *def.TeamID
		task.TeamID = &id
	}

	return task
}
