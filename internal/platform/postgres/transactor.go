package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/cadence/internal/store"
)

// Transactor implements store.Transactor over a *sql.DB.
type Transactor struct {
	db          *sql.DB
	definitions *PostgresDefinitionStore
	tasks       *PostgresGeneratedTaskStore
}

// Ensure Transactor implements store.Transactor interface
var _ store.Transactor = (*Transactor)(nil)

// NewTransactor creates a Transactor. If logger is nil, a default logger
// will be used.
func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}
	return &Transactor{
		db:          db,
		definitions: NewPostgresDefinitionStore(db, logger),
		tasks:       NewPostgresGeneratedTaskStore(db, logger),
	}
}

// WithinTx implements store.Transactor.
func (t *Transactor) WithinTx(ctx context.Context, fn store.StoresFn) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Definitions: t.definitions.WithTx(tx),
			Tasks:       t.tasks.WithTx(tx),
		})
	})
}
