package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/platform/logger"
	"github.com/phrazzld/cadence/internal/store"
)

const definitionColumns = `
	id, owner_id, team_id, title, description,
	frequency, interval_count, days_of_week, day_of_month,
	start_date, end_date, max_occurrences, skip_weekends, skip_holidays,
	skip_dates, task_template,
	occurrences_generated, last_generated_date, next_generation_date, state,
	last_error, last_error_at, created_at, updated_at`

// PostgresDefinitionStore implements the store.DefinitionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDefinitionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDefinitionStore creates a new PostgreSQL implementation of the DefinitionStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresDefinitionStore(db store.DBTX, logger *slog.Logger) *PostgresDefinitionStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDefinitionStore{
		db:     db,
		logger: logger.With(slog.String("component", "definition_store")),
	}
}

// Ensure PostgresDefinitionStore implements store.DefinitionStore interface
var _ store.DefinitionStore = (*PostgresDefinitionStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresDefinitionStore) WithTx(tx *sql.Tx) *PostgresDefinitionStore {
	return &PostgresDefinitionStore{db: tx, logger: s.logger}
}

// Create implements store.DefinitionStore.Create
func (s *PostgresDefinitionStore) Create(ctx context.Context, def *domain.RecurrenceDefinition) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := def.Validate(); err != nil {
		log.Warn("definition validation failed during create",
			slog.String("error", err.Error()),
			slog.String("definition_id", def.ID.String()))
		return err
	}

	enc, err := encodeDefinition(def)
	if err != nil {
		return store.NewStoreError("definition", "create", "encoding failed", err)
	}

	query := `
		INSERT INTO recurrence_definitions (` + definitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		def.ID,
		def.OwnerID,
		nullUUID(def.TeamID),
		def.Title,
		def.Description,
		string(def.Frequency),
		def.Interval,
		enc.daysOfWeek,
		def.DayOfMonth,
		def.StartDate,
		def.EndDate,
		def.MaxOccurrences,
		def.SkipWeekends,
		def.SkipHolidays,
		enc.skipDates,
		enc.template,
		def.OccurrencesGenerated,
		def.LastGeneratedDate,
		def.NextGenerationDate,
		string(def.State),
		def.LastError,
		def.LastErrorAt,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create definition",
			slog.String("error", err.Error()),
			slog.String("definition_id", def.ID.String()))
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, "definition", "", nil)
		}
		return store.NewStoreError("definition", "create", "insert failed", MapError(err))
	}

	log.Info("definition created",
		slog.String("definition_id", def.ID.String()),
		slog.String("owner_id", def.OwnerID.String()))
	return nil
}

// GetByID implements store.DefinitionStore.GetByID
func (s *PostgresDefinitionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceDefinition, error) {
	return s.getOne(ctx, id, "SELECT "+definitionColumns+" FROM recurrence_definitions WHERE id = $1")
}

// GetForUpdate implements store.DefinitionStore.GetForUpdate
func (s *PostgresDefinitionStore) GetForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*domain.RecurrenceDefinition, error) {
	return s.getOne(ctx, id, "SELECT "+definitionColumns+" FROM recurrence_definitions WHERE id = $1 FOR UPDATE")
}

// ClaimForGeneration implements store.DefinitionStore.ClaimForGeneration
// A skipped row is told apart from a missing one with an unlocked
// existence check.
func (s *PostgresDefinitionStore) ClaimForGeneration(
	ctx context.Context,
	id uuid.UUID,
) (*domain.RecurrenceDefinition, error) {
	def, err := s.getOne(ctx, id,
		"SELECT "+definitionColumns+" FROM recurrence_definitions WHERE id = $1 FOR UPDATE SKIP LOCKED")
	if !errors.Is(err, store.ErrDefinitionNotFound) {
		return def, err
	}

	exists, existsErr := s.exists(ctx, id)
	if existsErr != nil {
		return nil, existsErr
	}
	if exists {
		logger.FromContextOrDefault(ctx, s.logger).Debug("definition locked by another transaction",
			slog.String("definition_id", id.String()))
		return nil, store.ErrLocked
	}
	return nil, store.ErrDefinitionNotFound
}

// FindDue implements store.DefinitionStore.FindDue
func (s *PostgresDefinitionStore) FindDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.RecurrenceDefinition, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + definitionColumns + `
		FROM recurrence_definitions
		WHERE state = 'active'
			AND (next_generation_date IS NULL OR next_generation_date <= $1)
		ORDER BY next_generation_date NULLS FIRST, created_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, domain.Day(now), limit)
	if err != nil {
		log.Error("failed to query due definitions", slog.String("error", err.Error()))
		return nil, store.NewStoreError("definition", "find due", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	defs := []*domain.RecurrenceDefinition{}
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			log.Error("failed to scan definition row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("definition", "find due", "scan failed", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("definition", "find due", "iteration failed", err)
	}

	log.Debug("found due definitions", slog.Int("count", len(defs)))
	return defs, nil
}

// Update implements store.DefinitionStore.Update
func (s *PostgresDefinitionStore) Update(ctx context.Context, def *domain.RecurrenceDefinition) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := def.Validate(); err != nil {
		log.Warn("definition validation failed during update",
			slog.String("error", err.Error()),
			slog.String("definition_id", def.ID.String()))
		return err
	}

	enc, err := encodeDefinition(def)
	if err != nil {
		return store.NewStoreError("definition", "update", "encoding failed", err)
	}

	query := `
		UPDATE recurrence_definitions
		SET team_id = $2, title = $3, description = $4,
			frequency = $5, interval_count = $6, days_of_week = $7, day_of_month = $8,
			start_date = $9, end_date = $10, max_occurrences = $11,
			skip_weekends = $12, skip_holidays = $13, skip_dates = $14, task_template = $15,
			occurrences_generated = $16, next_generation_date = $17, state = $18, updated_at = $19
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		def.ID,
		nullUUID(def.TeamID),
		def.Title,
		def.Description,
		string(def.Frequency),
		def.Interval,
		enc.daysOfWeek,
		def.DayOfMonth,
		def.StartDate,
		def.EndDate,
		def.MaxOccurrences,
		def.SkipWeekends,
		def.SkipHolidays,
		enc.skipDates,
		enc.template,
		def.OccurrencesGenerated,
		def.NextGenerationDate,
		string(def.State),
		def.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update definition",
			slog.String("error", err.Error()),
			slog.String("definition_id", def.ID.String()))
		return store.NewStoreError("definition", "update", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrDefinitionNotFound); err != nil {
		return err
	}

	log.Info("definition updated",
		slog.String("definition_id", def.ID.String()),
		slog.String("state", string(def.State)))
	return nil
}

// UpdateBookkeeping implements store.DefinitionStore.UpdateBookkeeping
func (s *PostgresDefinitionStore) UpdateBookkeeping(
	ctx context.Context,
	id uuid.UUID,
	expectedCount int,
	b domain.Bookkeeping,
	now time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var transition sql.NullString
	if b.Transition != nil {
		transition = sql.NullString{String: string(*b.Transition), Valid: true}
	}

	query := `
		UPDATE recurrence_definitions
		SET occurrences_generated = $2,
			last_generated_date = $3,
			next_generation_date = $4,
			state = COALESCE($5, state),
			last_error = '',
			last_error_at = NULL,
			updated_at = $6
		WHERE id = $1 AND occurrences_generated = $7
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		id,
		b.OccurrencesGenerated,
		b.LastGeneratedDate,
		b.NextGenerationDate,
		transition,
		now.UTC(),
		expectedCount,
	)
	if err != nil {
		log.Error("failed to update bookkeeping",
			slog.String("error", err.Error()),
			slog.String("definition_id", id.String()))
		return store.NewStoreError("definition", "update bookkeeping", "update failed", MapError(err))
	}

	err = CheckRowsAffected(result, store.ErrConflict)
	if !errors.Is(err, store.ErrConflict) {
		return err
	}

	exists, existsErr := s.exists(ctx, id)
	if existsErr != nil {
		return existsErr
	}
	if !exists {
		return store.ErrDefinitionNotFound
	}

	log.Warn("occurrence counter moved during generation",
		slog.String("definition_id", id.String()),
		slog.Int("expected_count", expectedCount))
	return fmt.Errorf("%w: occurrence counter is no longer %d", store.ErrConflict, expectedCount)
}

// RecordFailure implements store.DefinitionStore.RecordFailure
func (s *PostgresDefinitionStore) RecordFailure(
	ctx context.Context,
	id uuid.UUID,
	message string,
	at time.Time,
) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE recurrence_definitions SET last_error = $2, last_error_at = $3 WHERE id = $1`,
		id, message, at.UTC())
	if err != nil {
		return store.NewStoreError("definition", "record failure", "update failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrDefinitionNotFound)
}

// Delete implements store.DefinitionStore.Delete
func (s *PostgresDefinitionStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM recurrence_definitions WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete definition",
			slog.String("error", err.Error()),
			slog.String("definition_id", id.String()))
		return store.NewStoreError("definition", "delete", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrDefinitionNotFound); err != nil {
		return err
	}

	log.Info("definition deleted", slog.String("definition_id", id.String()))
	return nil
}

func (s *PostgresDefinitionStore) getOne(
	ctx context.Context,
	id uuid.UUID,
	query string,
) (*domain.RecurrenceDefinition, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	def, err := scanDefinition(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("definition not found", slog.String("definition_id", id.String()))
			return nil, store.ErrDefinitionNotFound
		}
		log.Error("failed to get definition",
			slog.String("error", err.Error()),
			slog.String("definition_id", id.String()))
		return nil, store.NewStoreError("definition", "get", "query failed", MapError(err))
	}
	return def, nil
}

func (s *PostgresDefinitionStore) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recurrence_definitions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, store.NewStoreError("definition", "exists", "query failed", MapError(err))
	}
	return exists, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type encodedDefinition struct {
	daysOfWeek string
	skipDates  string
	template   string
}

func encodeDefinition(def *domain.RecurrenceDefinition) (encodedDefinition, error) {
	days := make([]int, len(def.DaysOfWeek))
	for i, wd := range def.DaysOfWeek {
		days[i] = int(wd)
	}
	skips := make([]string, len(def.SkipDates))
	for i, d := range def.SkipDates {
		skips[i] = domain.FormatDate(d)
	}

	daysJSON, err := json.Marshal(days)
	if err != nil {
		return encodedDefinition{}, err
	}
	skipsJSON, err := json.Marshal(skips)
	if err != nil {
		return encodedDefinition{}, err
	}
	templateJSON, err := json.Marshal(def.Template)
	if err != nil {
		return encodedDefinition{}, err
	}

	return encodedDefinition{
		daysOfWeek: string(daysJSON),
		skipDates:  string(skipsJSON),
		template:   string(templateJSON),
	}, nil
}

func scanDefinition(row rowScanner) (*domain.RecurrenceDefinition, error) {
	var (
		def                     domain.RecurrenceDefinition
		teamID                  uuid.NullUUID
		frequency, state        string
		daysJSON, skipsJSON     []byte
		templateJSON            []byte
		endDate, lastGenerated  sql.NullTime
		nextGeneration, errorAt sql.NullTime
		maxOccurrences          sql.NullInt64
	)

	err := row.Scan(
		&def.ID,
		&def.OwnerID,
		&teamID,
		&def.Title,
		&def.Description,
		&frequency,
		&def.Interval,
		&daysJSON,
		&def.DayOfMonth,
		&def.StartDate,
		&endDate,
		&maxOccurrences,
		&def.SkipWeekends,
		&def.SkipHolidays,
		&skipsJSON,
		&templateJSON,
		&def.OccurrencesGenerated,
		&lastGenerated,
		&nextGeneration,
		&state,
		&def.LastError,
		&errorAt,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Frequency = domain.Frequency(frequency)
	def.State = domain.LifecycleState(state)
	def.StartDate = domain.Day(def.StartDate)
	if teamID.Valid {
		id := teamID.UUID
		def.TeamID = &id
	}
	if maxOccurrences.Valid {
		m := int(maxOccurrences.Int64)
		def.MaxOccurrences = &m
	}
	def.EndDate = dateOrNil(endDate)
	def.LastGeneratedDate = dateOrNil(lastGenerated)
	def.NextGenerationDate = dateOrNil(nextGeneration)
	if errorAt.Valid {
		t := errorAt.Time.UTC()
		def.LastErrorAt = &t
	}

	var days []int
	if err := json.Unmarshal(daysJSON, &days); err != nil {
		return nil, fmt.Errorf("decoding days_of_week: %w", err)
	}
	for _, d := range days {
		def.DaysOfWeek = append(def.DaysOfWeek, time.Weekday(d))
	}

	var skips []string
	if err := json.Unmarshal(skipsJSON, &skips); err != nil {
		return nil, fmt.Errorf("decoding skip_dates: %w", err)
	}
	for _, s := range skips {
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		def.SkipDates = append(def.SkipDates, d)
	}

	if err := json.Unmarshal(templateJSON, &def.Template); err != nil {
		return nil, fmt.Errorf("decoding task_template: %w", err)
	}

	return &def, nil
}

func dateOrNil(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	d := domain.Day(t.Time)
	return &d
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
