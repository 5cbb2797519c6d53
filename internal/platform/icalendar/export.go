// Package icalendar exports recurrence definitions as iCalendar VTODO
// components carrying an RRULE, so that calendar clients can display the
// upcoming occurrences.
//
// The export describes the pattern only. Skip dates become EXDATE entries;
// weekend and holiday skipping shift occurrences forward in the engine and
// have no RRULE equivalent, so they are not represented.
package icalendar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
	"github.com/teambition/rrule-go"
)

// ProductID identifies the exporter in the PRODID property.
const ProductID = "-//cadence//recurrence export//EN"

const icalDateLayout = "20060102"

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

var priorities = map[domain.Priority]int{
	domain.PriorityUrgent: 1,
	domain.PriorityHigh:   3,
	domain.PriorityMedium: 5,
	domain.PriorityLow:    9,
}

// Rule converts the definition's pattern to an RRULE. DTSTART is the first
// occurrence the pattern proposes after the start date.
func Rule(def *domain.RecurrenceDefinition) (*rrule.RRule, error) {
	first := recurrence.NextCandidate(def.Pattern, def.StartDate)

	opt := rrule.ROption{
		Dtstart:  first,
		Interval: def.Interval,
		Wkst:     rrule.SU,
	}

	switch def.Frequency {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		for _, wd := range def.DaysOfWeek {
			opt.Byweekday = append(opt.Byweekday, weekdays[wd])
		}
	case domain.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		day := def.DayOfMonth
		if day == 0 {
			day = def.StartDate.Day()
		}
		opt.Bymonthday, opt.Bysetpos = clampedDay(day)
	case domain.FrequencyYearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(def.StartDate.Month())}
		opt.Bymonthday, opt.Bysetpos = clampedDay(def.StartDate.Day())
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, def.Frequency)
	}

	// RFC 5545 forbids COUNT together with UNTIL; the end date wins.
	switch {
	case def.EndDate != nil:
		opt.Until = domain.Day(*def.EndDate)
	case def.MaxOccurrences != nil:
		opt.Count = *def.MaxOccurrences
	}

	return rrule.NewRRule(opt)
}

// clampedDay expresses "day d, or the last day of shorter months". Days up
// to 28 exist in every month; later days pick the last existing candidate.
func clampedDay(d int) (bymonthday, bysetpos []int) {
	if d == domain.LastDayOfMonth {
		return []int{-1}, nil
	}
	if d <= 28 {
		return []int{d}, nil
	}
	for day := 28; day <= d; day++ {
		bymonthday = append(bymonthday, day)
	}
	return bymonthday, []int{-1}
}

// Component renders one definition as a VTODO.
func Component(def *domain.RecurrenceDefinition, now time.Time) (*ical.Component, error) {
	rule, err := Rule(def)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", def.ID, err)
	}

	todo := ical.NewComponent(ical.CompToDo)
	todo.Props.SetText(ical.PropUID, def.ID.String())
	todo.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	todo.Props.SetText(ical.PropSummary, def.Title)
	if def.Description != "" {
		todo.Props.SetText(ical.PropDescription, def.Description)
	}
	todo.Props.Set(dateProp(ical.PropDateTimeStart, rule.OrigOptions.Dtstart))
	todo.Props.Set(textValueProp(ical.PropRecurrenceRule, ical.ValueRecurrence, rule.OrigOptions.RRuleString()))

	if len(def.SkipDates) > 0 {
		exdates := make([]string, 0, len(def.SkipDates))
		for _, sd := range def.SkipDates {
			exdates = append(exdates, domain.Day(sd).Format(icalDateLayout))
		}
		todo.Props.Set(textValueProp(ical.PropExceptionDates, ical.ValueDate, strings.Join(exdates, ",")))
	}

	todo.Props.SetText(ical.PropStatus, statusOf(def.State))
	if p, ok := priorities[def.Template.Priority]; ok {
		todo.Props.SetText(ical.PropPriority, strconv.Itoa(p))
	}
	if len(def.Template.Tags) > 0 {
		todo.Props.Set(textValueProp(ical.PropCategories, ical.ValueText, strings.Join(def.Template.Tags, ",")))
	}

	return todo, nil
}

// Export writes a VCALENDAR holding one VTODO per definition.
func Export(w io.Writer, defs []*domain.RecurrenceDefinition, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, def := range defs {
		todo, err := Component(def, now)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, todo)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

func dateProp(name string, t time.Time) *ical.Prop {
	return textValueProp(name, ical.ValueDate, domain.Day(t).Format(icalDateLayout))
}

func textValueProp(name string, vt ical.ValueType, value string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.SetValueType(vt)
	prop.Value = value
	return prop
}

func statusOf(state domain.LifecycleState) string {
	switch state {
	case domain.StateActive, domain.StatePaused:
		return "NEEDS-ACTION"
	case domain.StateExhausted:
		return "COMPLETED"
	default:
		return "CANCELLED"
	}
}
