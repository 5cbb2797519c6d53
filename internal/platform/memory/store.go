package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/store"
)

type state struct {
	definitions map[uuid.UUID]*domain.RecurrenceDefinition
	tasks       map[string]*domain.GeneratedTask
}

func newState() *state {
	return &state{
		definitions: make(map[uuid.UUID]*domain.RecurrenceDefinition),
		tasks:       make(map[string]*domain.GeneratedTask),
	}
}

func (st *state) clone() *state {
	out := newState()
	for id, def := range st.definitions {
		out.definitions[id] = def.Clone()
	}
	for key, task := range st.tasks {
		out.tasks[key] = cloneTask(task)
	}
	return out
}

// Store is an in-memory backend implementing store.Transactor and the
// definition and task stores.
type Store struct {
	mu     sync.Mutex
	state  *state
	logger *slog.Logger

	heldMu sync.Mutex
	held   map[uuid.UUID]int
}

// NewStore creates an empty in-memory store. If logger is nil, a default
// logger will be used.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:  newState(),
		logger: logger.With(slog.String("component", "memory_store")),
		held:   make(map[uuid.UUID]int),
	}
}

var _ store.Transactor = (*Store)(nil)

// Stores returns stores that run every call as its own transaction.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Definitions: &definitionStore{s: s},
		Tasks:       &taskStore{s: s},
	}
}

// WithinTx implements store.Transactor. Transactions run one at a time; a
// failing fn leaves the store exactly as it was before the call.
func (s *Store) WithinTx(ctx context.Context, fn store.StoresFn) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	bound := store.Stores{
		Definitions: &definitionStore{s: s, inTx: true},
		Tasks:       &taskStore{s: s, inTx: true},
	}
	if err := fn(ctx, bound); err != nil {
		s.state = snapshot
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}

	return nil
}

// Hold marks a definition as locked by an outside holder until the returned
// release function is called. ClaimForGeneration reports store.ErrLocked
// for held rows, which lets callers exercise contention without a database.
func (s *Store) Hold(id uuid.UUID) (release func()) {
	s.heldMu.Lock()
	s.held[id]++
	s.heldMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.heldMu.Lock()
			defer s.heldMu.Unlock()
			if s.held[id]--; s.held[id] <= 0 {
				delete(s.held, id)
			}
		})
	}
}

func (s *Store) isHeld(id uuid.UUID) bool {
	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	return s.held[id] > 0
}

// view runs fn against the state, taking the mutex unless the caller is
// already inside a transaction.
func (s *Store) view(inTx bool, fn func(st *state) error) error {
	if !inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

// sortDue orders definitions by cached next date, unset first, then by
// creation time.
func sortDue(defs []*domain.RecurrenceDefinition) {
	sort.SliceStable(defs, func(i, j int) bool {
		a, b := defs[i].NextGenerationDate, defs[j].NextGenerationDate
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return defs[i].CreatedAt.Before(defs[j].CreatedAt)
	})
}

func isDue(def *domain.RecurrenceDefinition, now time.Time) bool {
	if !def.IsActive() {
		return false
	}
	return def.NextGenerationDate == nil || !domain.Day(*def.NextGenerationDate).After(domain.Day(now))
}
