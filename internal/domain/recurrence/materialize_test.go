package recurrence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		in    string
		count int
		want  string
	}{
		{name: "no placeholders", in: "Water plants", count: 1, want: "Water plants"},
		{name: "date", in: "Report {{date}}", count: 1, want: "Report 2024-01-03"},
		{name: "count", in: "Session #{{count}}", count: 12, want: "Session #12"},
		{name: "both repeated", in: "{{count}}: {{date}} / {{date}}", count: 2, want: "2: 2024-01-03 / 2024-01-03"},
		{name: "empty", in: "", count: 3, want: ""},
		{name: "unknown placeholder kept", in: "{{owner}} {{date}}", count: 1, want: "{{owner}} 2024-01-03"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Render(tc.in, d(2024, 1, 3), tc.count))
		})
	}
}

func TestMaterialize(t *testing.T) {
	t.Parallel()

	assignee := uuid.New()
	team := uuid.New()
	estimate := 30

	def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})
	def.TeamID = &team
	def.OccurrencesGenerated = 4
	def.Template = domain.TaskTemplate{
		Title:            "Review #{{count}}",
		Description:      "Due {{date}}",
		Priority:         domain.PriorityHigh,
		AssigneeID:       &assignee,
		EstimatedMinutes: &estimate,
		Tags:             []string{"ops", "weekly"},
		Time:             "09:30",
	}

	date := time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC)
	task := Materialize(def, date)

	require.NoError(t, task.Validate())
	assert.Equal(t, "Review #5", task.Title)
	assert.Equal(t, "Due 2024-01-08", task.Description)
	assert.Equal(t, 5, task.OccurrenceNumber)
	assert.Equal(t, d(2024, 1, 8), task.DueDate)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, def.OwnerID, task.CreatorID)
	assert.Equal(t, def.ID, task.DefinitionID)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.Equal(t, "09:30", task.Time)
	assert.Equal(t, []string{"ops", "weekly"}, task.Tags)
	assert.Equal(t, estimate, *task.EstimatedMinutes)
	assert.Equal(t, assignee, *task.AssigneeID)
	assert.Equal(t, team, *task.TeamID)
	assert.Equal(t, domain.OccurrenceKey(def.ID, date), task.IdempotencyKey)
	assert.Equal(t, domain.TaskIDForKey(task.IdempotencyKey), task.ID)

	// The task must not share memory with the template.
	task.Tags[0] = "changed"
	*task.EstimatedMinutes = 99
	assert.Equal(t, "ops", def.Template.Tags[0])
	assert.Equal(t, 30, *def.Template.EstimatedMinutes)
}

func TestMaterializeIdempotent(t *testing.T) {
	t.Parallel()

	def := newDefinition(t, domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: d(2024, 1, 1)})
	def.Template.Description = "Count {{count}} on {{date}}"

	first := Materialize(def, d(2024, 2, 1))
	second := Materialize(def, d(2024, 2, 1))

	assert.Equal(t, first, second)
}
