package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/memory"
	"github.com/phrazzld/cadence/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

func newDefinition(t *testing.T, next *time.Time) *domain.RecurrenceDefinition {
	t.Helper()
	def, err := domain.NewRecurrenceDefinition(
		uuid.New(),
		"Inbox zero",
		domain.Pattern{Frequency: domain.FrequencyDaily, Interval: 1, StartDate: domain.Date(2024, 1, 1)},
		domain.TaskTemplate{Title: "Inbox {{date}}", Priority: domain.PriorityLow},
		now,
	)
	require.NoError(t, err)
	def.NextGenerationDate = next
	return def
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := domain.Date(y, m, d)
	return &t
}

func TestDefinitionCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewStore(nil).Stores().Definitions

	def := newDefinition(t, nil)
	require.NoError(t, s.Create(ctx, def))
	assert.ErrorIs(t, s.Create(ctx, def), store.ErrDuplicate)

	got, err := s.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	// Returned values are copies.
	got.Title = "changed"
	again, err := s.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, "Inbox zero", again.Title)

	require.NoError(t, got.Pause(now))
	require.NoError(t, s.Update(ctx, got))
	again, err = s.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaused, again.State)

	require.NoError(t, s.Delete(ctx, def.ID))
	_, err = s.GetByID(ctx, def.ID)
	assert.ErrorIs(t, err, store.ErrDefinitionNotFound)
	assert.ErrorIs(t, s.Delete(ctx, def.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, def), store.ErrNotFound)
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	t.Parallel()
	s := memory.NewStore(nil).Stores().Definitions

	def := newDefinition(t, nil)
	def.Interval = 0
	assert.ErrorIs(t, s.Create(context.Background(), def), domain.ErrValidation)
}

func TestFindDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewStore(nil).Stores().Definitions

	unset := newDefinition(t, nil)
	early := newDefinition(t, datePtr(2024, 1, 5))
	today := newDefinition(t, datePtr(2024, 1, 10))
	future := newDefinition(t, datePtr(2024, 1, 11))
	paused := newDefinition(t, datePtr(2024, 1, 1))
	paused.State = domain.StatePaused
	exhausted := newDefinition(t, datePtr(2024, 1, 1))
	exhausted.State = domain.StateExhausted

	for _, def := range []*domain.RecurrenceDefinition{future, today, paused, early, exhausted, unset} {
		require.NoError(t, s.Create(ctx, def))
	}

	due, err := s.FindDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, unset.ID, due[0].ID)
	assert.Equal(t, early.ID, due[1].ID)
	assert.Equal(t, today.ID, due[2].ID)

	limited, err := s.FindDue(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateBookkeeping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewStore(nil).Stores().Definitions

	def := newDefinition(t, nil)
	require.NoError(t, s.Create(ctx, def))
	require.NoError(t, s.RecordFailure(ctx, def.ID, "skip limit exceeded", now))

	b := domain.Bookkeeping{
		OccurrencesGenerated: 1,
		LastGeneratedDate:    datePtr(2024, 1, 2),
		NextGenerationDate:   datePtr(2024, 1, 3),
	}
	require.NoError(t, s.UpdateBookkeeping(ctx, def.ID, 0, b, now))

	got, err := s.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OccurrencesGenerated)
	assert.Equal(t, domain.Date(2024, 1, 2), *got.LastGeneratedDate)
	assert.Equal(t, domain.Date(2024, 1, 3), *got.NextGenerationDate)
	assert.Empty(t, got.LastError, "successful bookkeeping clears the failure")
	assert.Nil(t, got.LastErrorAt)

	// A stale expectation is a conflict.
	assert.ErrorIs(t, s.UpdateBookkeeping(ctx, def.ID, 0, b, now), store.ErrConflict)

	// Bookkeeping that breaks the next-after-last invariant is refused.
	bad := domain.Bookkeeping{
		OccurrencesGenerated: 2,
		LastGeneratedDate:    datePtr(2024, 1, 3),
		NextGenerationDate:   datePtr(2024, 1, 3),
	}
	assert.ErrorIs(t, s.UpdateBookkeeping(ctx, def.ID, 1, bad, now), domain.ErrValidation)

	exhausted := domain.Bookkeeping{
		OccurrencesGenerated: 2,
		LastGeneratedDate:    datePtr(2024, 1, 3),
		Transition:           domain.StatePtr(domain.StateExhausted),
	}
	require.NoError(t, s.UpdateBookkeeping(ctx, def.ID, 1, exhausted, now))
	got, err = s.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExhausted, got.State)

	assert.ErrorIs(t, s.UpdateBookkeeping(ctx, uuid.New(), 0, b, now), store.ErrDefinitionNotFound)
}

func TestWithinTxRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := memory.NewStore(nil)

	def := newDefinition(t, nil)
	require.NoError(t, m.Stores().Definitions.Create(ctx, def))

	boom := errors.New("boom")
	err := m.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		task := &domain.GeneratedTask{
			ID:               uuid.New(),
			DefinitionID:     def.ID,
			IdempotencyKey:   domain.OccurrenceKey(def.ID, domain.Date(2024, 1, 2)),
			OccurrenceNumber: 1,
			Title:            "Inbox",
			Priority:         domain.PriorityLow,
			DueDate:          domain.Date(2024, 1, 2),
			Status:           domain.TaskStatusPending,
			CreatorID:        def.OwnerID,
		}
		require.NoError(t, s.Tasks.Create(ctx, task))
		require.NoError(t, s.Definitions.Delete(ctx, def.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.Stores().Definitions.GetByID(ctx, def.ID)
	assert.NoError(t, err, "delete was rolled back")

	tasks, err := m.Stores().Tasks.ListByDefinition(ctx, def.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "task insert was rolled back")
}

func TestWithinTxPanicRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := memory.NewStore(nil)

	def := newDefinition(t, nil)
	require.NoError(t, m.Stores().Definitions.Create(ctx, def))

	assert.Panics(t, func() {
		_ = m.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
			_ = s.Definitions.Delete(ctx, def.ID)
			panic("worker crashed")
		})
	})

	_, err := m.Stores().Definitions.GetByID(ctx, def.ID)
	assert.NoError(t, err)
}

func TestClaimForGeneration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := memory.NewStore(nil)

	def := newDefinition(t, nil)
	require.NoError(t, m.Stores().Definitions.Create(ctx, def))

	release := m.Hold(def.ID)
	err := m.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		_, err := s.Definitions.ClaimForGeneration(ctx, def.ID)
		return err
	})
	assert.ErrorIs(t, err, store.ErrLocked)

	release()
	release()
	err = m.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		claimed, err := s.Definitions.ClaimForGeneration(ctx, def.ID)
		if err == nil {
			assert.Equal(t, def.ID, claimed.ID)
		}
		return err
	})
	assert.NoError(t, err)

	_, err = m.Stores().Definitions.ClaimForGeneration(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrDefinitionNotFound)
}

func TestTaskStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memory.NewStore(nil).Stores().Tasks
	defID := uuid.New()

	mk := func(n int, day int) *domain.GeneratedTask {
		key := domain.OccurrenceKey(defID, domain.Date(2024, 1, day))
		return &domain.GeneratedTask{
			ID:               domain.TaskIDForKey(key),
			DefinitionID:     defID,
			IdempotencyKey:   key,
			OccurrenceNumber: n,
			Title:            "Task",
			Priority:         domain.PriorityMedium,
			Tags:             []string{"a"},
			DueDate:          domain.Date(2024, 1, day),
			Status:           domain.TaskStatusPending,
			CreatorID:        uuid.New(),
		}
	}

	second := mk(2, 4)
	first := mk(1, 2)
	require.NoError(t, s.Create(ctx, second))
	require.NoError(t, s.Create(ctx, first))
	assert.ErrorIs(t, s.Create(ctx, mk(3, 2)), store.ErrTaskExists)

	tasks, err := s.ListByDefinition(ctx, defID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, 1, tasks[0].OccurrenceNumber)
	assert.Equal(t, 2, tasks[1].OccurrenceNumber)

	got, err := s.GetByIdempotencyKey(ctx, first.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got.Tags[0] = "mutated"
	again, _ := s.GetByIdempotencyKey(ctx, first.IdempotencyKey)
	assert.Equal(t, "a", again.Tags[0])

	_, err = s.GetByIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	invalid := mk(0, 9)
	assert.ErrorIs(t, s.Create(ctx, invalid), domain.ErrValidation)
}
