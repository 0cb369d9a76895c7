// Package postgres implements the store interfaces on PostgreSQL. All stores
// operate through the store.DBTX abstraction so they run identically on a
// *sql.DB and inside a *sql.Tx, and all database errors are translated into
// the store error taxonomy before they leave this package.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/platform/logger"
	"github.com/athenus/review-api/internal/store"
)

// taskColumns is the scan order shared by every task query.
const taskColumns = `id, owner_id, session_id, task_type, status,
	progress_percentage, current_step, steps_completed, total_steps,
	input, output, error_message, created_at, updated_at, completed_at`

// TaskStore implements store.TaskStore using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore over the given database handle.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// WithTx implements store.TaskStore.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{db: tx}
}

// Create implements store.TaskStore.
func (s *TaskStore) Create(ctx context.Context, record *domain.TaskRecord) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.SessionID,
		record.TaskType,
		record.Status,
		record.ProgressPercentage,
		record.CurrentStep,
		record.StepsCompleted,
		record.TotalSteps,
		[]byte(record.Input),
		nullBytes(record.Output),
		record.ErrorMessage,
		record.CreatedAt,
		record.UpdatedAt,
		record.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create task record",
			"task_id", record.ID,
			"task_type", record.TaskType,
			"error", err)
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrTaskExists, err)
		}
		return MapError(err)
	}

	return nil
}

// GetByID implements store.TaskStore.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	record, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return nil, MapError(err)
	}
	return record, nil
}

// GetForOwner implements store.TaskStore. A missing row and an ownership
// mismatch produce the same error.
func (s *TaskStore) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`
	record, err := scanTask(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return nil, MapError(err)
	}
	return record, nil
}

// Update implements store.TaskStore. The patch is applied as a single UPDATE
// with only the set fields in the SET clause; UpdatedAt is always stamped and
// CompletedAt is stamped when the patch moves the task into a terminal status.
func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, patch store.TaskPatch) (*domain.TaskRecord, error) {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	sets := []string{"updated_at = $1"}
	args := []interface{}{now}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
		if patch.Status.Terminal() {
			add("completed_at", now)
		}
	}
	if patch.ProgressPercentage != nil {
		add("progress_percentage", *patch.ProgressPercentage)
	}
	if patch.CurrentStep != nil {
		add("current_step", *patch.CurrentStep)
	}
	if patch.StepsCompleted != nil {
		add("steps_completed", *patch.StepsCompleted)
	}
	if patch.TotalSteps != nil {
		add("total_steps", *patch.TotalSteps)
	}
	if patch.Output != nil {
		add("output", []byte(patch.Output))
	}
	if patch.ErrorMessage != nil {
		add("error_message", *patch.ErrorMessage)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d RETURNING `+taskColumns,
		strings.Join(sets, ", "), len(args),
	)

	record, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		log.Error("failed to update task record", "task_id", id, "error", err)
		return nil, mapped
	}

	return record, nil
}

// ListForOwner implements store.TaskStore.
func (s *TaskStore) ListForOwner(ctx context.Context, ownerID uuid.UUID, filter store.ListFilter) ([]*domain.TaskRecord, error) {
	log := logger.FromContext(ctx)

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	conds := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.TaskType != nil {
		args = append(args, *filter.TaskType)
		conds = append(conds, fmt.Sprintf("task_type = $%d", len(args)))
	}

	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(
		`SELECT `+taskColumns+` FROM tasks
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		strings.Join(conds, " AND "), len(args)-1, len(args),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list task records", "owner_id", ownerID, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return records, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.TaskRecord, error) {
	var (
		record       domain.TaskRecord
		sessionID    uuid.NullUUID
		currentStep  sql.NullString
		input        []byte
		output       []byte
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&sessionID,
		&record.TaskType,
		&record.Status,
		&record.ProgressPercentage,
		&currentStep,
		&record.StepsCompleted,
		&record.TotalSteps,
		&input,
		&output,
		&errorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if sessionID.Valid {
		record.SessionID = &sessionID.UUID
	}
	record.CurrentStep = currentStep.String
	record.Input = input
	if output != nil {
		record.Output = output
	}
	record.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}

	return &record, nil
}

// nullBytes maps empty JSON payloads to NULL so the column stays NULLable
// instead of storing empty blobs.
func nullBytes(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
