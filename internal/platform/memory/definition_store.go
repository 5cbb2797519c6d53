package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/store"
)

type definitionStore struct {
	s    *Store
	inTx bool
}

var _ store.DefinitionStore = (*definitionStore)(nil)

func (d *definitionStore) Create(ctx context.Context, def *domain.RecurrenceDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return d.s.view(d.inTx, func(st *state) error {
		if _, ok := st.definitions[def.ID]; ok {
			return store.ErrDuplicate
		}
		st.definitions[def.ID] = def.Clone()
		return nil
	})
}

func (d *definitionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error) {
	var out *domain.RecurrenceDefinition
	err := d.s.view(d.inTx, func(st *state) error {
		def, ok := st.definitions[id]
		if !ok {
			return store.ErrDefinitionNotFound
		}
		out = def.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (d *definitionStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error) {
	return d.GetByID(ctx, id)
}

func (d *definitionStore) ClaimForGeneration(
	ctx context.Context,
	id uuid.UUID,
) (*domain.RecurrenceDefinition, error) {
	if d.s.isHeld(id) {
		return nil, store.ErrLocked
	}
	return d.GetByID(ctx, id)
}

func (d *definitionStore) FindDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.RecurrenceDefinition, error) {
	var due []*domain.RecurrenceDefinition
	err := d.s.view(d.inTx, func(st *state) error {
		for _, def := range st.definitions {
			if isDue(def, now) {
				due = append(due, def.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortDue(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (d *definitionStore) Update(ctx context.Context, def *domain.RecurrenceDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return d.s.view(d.inTx, func(st *state) error {
		if _, ok := st.definitions[def.ID]; !ok {
			return store.ErrDefinitionNotFound
		}
		st.definitions[def.ID] = def.Clone()
		return nil
	})
}

func (d *definitionStore) UpdateBookkeeping(
	ctx context.Context,
	id uuid.UUID,
	expectedCount int,
	b domain.Bookkeeping,
	now time.Time,
) error {
	return d.s.view(d.inTx, func(st *state) error {
		def, ok := st.definitions[id]
		if !ok {
			return store.ErrDefinitionNotFound
		}
		if def.OccurrencesGenerated != expectedCount {
			return store.ErrConflict
		}

		updated := def.Clone()
		updated.ApplyBookkeeping(b, now)
		updated.LastError = ""
		updated.LastErrorAt = nil
		if err := updated.Validate(); err != nil {
			return err
		}
		st.definitions[id] = updated
		return nil
	})
}

func (d *definitionStore) RecordFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	return d.s.view(d.inTx, func(st *state) error {
		def, ok := st.definitions[id]
		if !ok {
			return store.ErrDefinitionNotFound
		}
		at = at.UTC()
		def.LastError = message
		def.LastErrorAt = &at
		return nil
	})
}

func (d *definitionStore) Delete(ctx context.Context, id uuid.UUID) error {
	return d.s.view(d.inTx, func(st *state) error {
		if _, ok := st.definitions[id]; !ok {
			return store.ErrDefinitionNotFound
		}
		delete(st.definitions, id)
		return nil
	})
}
