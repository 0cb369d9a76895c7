package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/platform/logger"
	"github.com/athenus/review-api/internal/store"
)

const stepColumns = `step_id, task_id, agent_name, action, input, output,
	status, error_message, started_at, completed_at`

// StepStore implements store.StepStore using PostgreSQL.
type StepStore struct {
	db store.DBTX
}

// NewStepStore creates a StepStore over the given database handle.
func NewStepStore(db store.DBTX) *StepStore {
	return &StepStore{db: db}
}

// WithTx implements store.StepStore.
func (s *StepStore) WithTx(tx *sql.Tx) store.StepStore {
	return &StepStore{db: tx}
}

// Create implements store.StepStore.
func (s *StepStore) Create(ctx context.Context, step *domain.AgentStep) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO agent_steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		step.StepID,
		step.TaskID,
		step.AgentName,
		step.Action,
		nullBytes(step.Input),
		nullBytes(step.Output),
		step.Status,
		step.ErrorMessage,
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		log.Error("failed to create agent step",
			"step_id", step.StepID,
			"task_id", step.TaskID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// Update implements store.StepStore.
func (s *StepStore) Update(ctx context.Context, step *domain.AgentStep) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE agent_steps
		SET output = $1, status = $2, error_message = $3, completed_at = $4
		WHERE step_id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		nullBytes(step.Output),
		step.Status,
		step.ErrorMessage,
		step.CompletedAt,
		step.StepID,
	)
	if err != nil {
		log.Error("failed to update agent step", "step_id", step.StepID, "error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrStepNotFound, step.StepID)
	}

	return nil
}

// ListByTask implements store.StepStore.
func (s *StepStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AgentStep, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + stepColumns + `
		FROM agent_steps
		WHERE task_id = $1
		ORDER BY started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list agent steps", "task_id", taskID, "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*domain.AgentStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, MapError(err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return steps, nil
}

func scanStep(row rowScanner) (*domain.AgentStep, error) {
	var (
		step         domain.AgentStep
		input        []byte
		output       []byte
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&step.StepID,
		&step.TaskID,
		&step.AgentName,
		&step.Action,
		&input,
		&output,
		&step.Status,
		&errorMessage,
		&step.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if input != nil {
		step.Input = input
	}
	if output != nil {
		step.Output = output
	}
	step.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		step.CompletedAt = &t
	}

	return &step, nil
}
