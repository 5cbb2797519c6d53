package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/store"
)

const generatedTaskColumns = `
	id, definition_id, idempotency_key, occurrence_number, title, description,
	priority, assignee_id, estimated_minutes, tags, time_label, due_date,
	status, creator_id, team_id, created_at`

// PostgresGeneratedTaskStore implements the store.GeneratedTaskStore
// interface using a PostgreSQL database as the storage backend.
type PostgresGeneratedTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGeneratedTaskStore creates a new PostgreSQL implementation of
// the GeneratedTaskStore interface. If logger is nil, a default logger will
// be used.
func NewPostgresGeneratedTaskStore(db store.DBTX, logger *slog.Logger) *PostgresGeneratedTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGeneratedTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "generated_task_store")),
	}
}

// Ensure PostgresGeneratedTaskStore implements store.GeneratedTaskStore interface
var _ store.GeneratedTaskStore = (*PostgresGeneratedTaskStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresGeneratedTaskStore) WithTx(tx *sql.Tx) *PostgresGeneratedTaskStore {
	return &PostgresGeneratedTaskStore{db: tx, logger: s.logger}
}

// Create implements store.GeneratedTaskStore.Create
// A conflicting idempotency key inserts nothing instead of raising a unique
// violation, which would abort the surrounding transaction.
func (s *PostgresGeneratedTaskStore) Create(ctx context.Context, task *domain.GeneratedTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("generated task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	tags, err := json.Marshal(nonNilTags(task.Tags))
	if err != nil {
		return store.NewStoreError("generated task", "create", "encoding failed", err)
	}

	query := `
		INSERT INTO generated_tasks (` + generatedTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.DefinitionID,
		task.IdempotencyKey,
		task.OccurrenceNumber,
		task.Title,
		task.Description,
		string(task.Priority),
		nullUUID(task.AssigneeID),
		task.EstimatedMinutes,
		string(tags),
		task.Time,
		task.DueDate,
		string(task.Status),
		task.CreatorID,
		nullUUID(task.TeamID),
		task.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create generated task",
			slog.String("error", err.Error()),
			slog.String("idempotency_key", task.IdempotencyKey))
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, "", "", store.ErrTaskExists)
		}
		return store.NewStoreError("generated task", "create", "insert failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskExists); err != nil {
		if errors.Is(err, store.ErrTaskExists) {
			log.Debug("generated task already exists",
				slog.String("idempotency_key", task.IdempotencyKey))
		}
		return err
	}

	log.Debug("generated task created",
		slog.String("task_id", task.ID.String()),
		slog.String("definition_id", task.DefinitionID.String()))
	return nil
}

// GetByIdempotencyKey implements store.GeneratedTaskStore.GetByIdempotencyKey
func (s *PostgresGeneratedTaskStore) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*domain.GeneratedTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx,
		"SELECT "+generatedTaskColumns+" FROM generated_tasks WHERE idempotency_key = $1", key)
	task, err := scanGeneratedTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get generated task",
			slog.String("error", err.Error()),
			slog.String("idempotency_key", key))
		return nil, store.NewStoreError("generated task", "get", "query failed", MapError(err))
	}
	return task, nil
}

// ListByDefinition implements store.GeneratedTaskStore.ListByDefinition
func (s *PostgresGeneratedTaskStore) ListByDefinition(
	ctx context.Context,
	definitionID uuid.UUID,
) ([]*domain.GeneratedTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+generatedTaskColumns+` FROM generated_tasks
		WHERE definition_id = $1
		ORDER BY occurrence_number, due_date`, definitionID)
	if err != nil {
		log.Error("failed to list generated tasks",
			slog.String("error", err.Error()),
			slog.String("definition_id", definitionID.String()))
		return nil, store.NewStoreError("generated task", "list", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.GeneratedTask{}
	for rows.Next() {
		task, err := scanGeneratedTask(rows)
		if err != nil {
			return nil, store.NewStoreError("generated task", "list", "scan failed", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("generated task", "list", "iteration failed", err)
	}
	return tasks, nil
}

func scanGeneratedTask(row rowScanner) (*domain.GeneratedTask, error) {
	var (
		task               domain.GeneratedTask
		priority, status   string
		assigneeID, teamID uuid.NullUUID
		estimate           sql.NullInt64
		tagsJSON           []byte
	)

	err := row.Scan(
		&task.ID,
		&task.DefinitionID,
		&task.IdempotencyKey,
		&task.OccurrenceNumber,
		&task.Title,
		&task.Description,
		&priority,
		&assigneeID,
		&estimate,
		&tagsJSON,
		&task.Time,
		&task.DueDate,
		&status,
		&task.CreatorID,
		&teamID,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Priority = domain.Priority(priority)
	task.Status = domain.TaskStatus(status)
	task.DueDate = domain.Day(task.DueDate)
	if assigneeID.Valid {
		id := assigneeID.UUID
		task.AssigneeID = &id
	}
	if teamID.Valid {
		id := teamID.UUID
		task.TeamID = &id
	}
	if estimate.Valid {
		m := int(estimate.Int64)
		task.EstimatedMinutes = &m
	}
	if err := json.Unmarshal(tagsJSON, &task.Tags); err != nil {
		return nil, err
	}
	if len(task.Tags) == 0 {
		task.Tags = nil
	}

	return &task, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
