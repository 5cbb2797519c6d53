package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/store"
)

type taskStore struct {
	s    *Store
	inTx bool
}

var _ store.GeneratedTaskStore = (*taskStore)(nil)

func (t *taskStore) Create(ctx context.Context, task *domain.GeneratedTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return t.s.view(t.inTx, func(st *state) error {
		if _, ok := st.tasks[task.IdempotencyKey]; ok {
			return store.ErrTaskExists
		}
		st.tasks[task.IdempotencyKey] = cloneTask(task)
		return nil
	})
}

func (t *taskStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.GeneratedTask, error) {
	var out *domain.GeneratedTask
	err := t.s.view(t.inTx, func(st *state) error {
		task, ok := st.tasks[key]
		if !ok {
			return store.ErrTaskNotFound
		}
		out = cloneTask(task)
		return nil
	})
	return out, err
}

func (t *taskStore) ListByDefinition(ctx context.Context, definitionID uuid.UUID) ([]*domain.GeneratedTask, error) {
	var out []*domain.GeneratedTask
	err := t.s.view(t.inTx, func(st *state) error {
		for _, task := range st.tasks {
			if task.DefinitionID == definitionID {
				out = append(out, cloneTask(task))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OccurrenceNumber < out[j].OccurrenceNumber })
	return out, err
}

func cloneTask(task *domain.GeneratedTask) *domain.GeneratedTask {
	out := *task
	if task.AssigneeID != nil {
		id := *task.AssigneeID
		out.AssigneeID = &id
	}
	if task.EstimatedMinutes != nil {
		m := *task.EstimatedMinutes
		out.EstimatedMinutes = &m
	}
	if task.TeamID != nil {
		id := *task.TeamID
		out.TeamID = &id
	}
	if task.Tags != nil {
		out.Tags = append([]string(nil), task.Tags...)
	}
	return &out
}
