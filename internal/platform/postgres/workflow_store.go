package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/platform/logger"
	"github.com/athenus/review-api/internal/store"
)

const workflowColumns = `id, workflow_type, title, description, current_stage,
	overall_progress, steps, input_parameters, final_results, quality_metrics,
	created_at, updated_at`

// WorkflowStore implements store.WorkflowStore using PostgreSQL. The ordered
// step list is stored as a JSONB document; steps are only ever read and
// written as part of their card, so they need no table of their own.
type WorkflowStore struct {
	db store.DBTX
}

// NewWorkflowStore creates a WorkflowStore over the given database handle.
func NewWorkflowStore(db store.DBTX) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// WithTx implements store.WorkflowStore.
func (s *WorkflowStore) WithTx(tx *sql.Tx) store.WorkflowStore {
	return &WorkflowStore{db: tx}
}

// Create implements store.WorkflowStore.
func (s *WorkflowStore) Create(ctx context.Context, card *domain.WorkflowCard) error {
	log := logger.FromContext(ctx)

	steps, err := json.Marshal(card.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode workflow steps: %w", err)
	}

	query := `
		INSERT INTO workflow_cards (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.ExecContext(ctx, query,
		card.ID,
		card.WorkflowType,
		card.Title,
		card.Description,
		card.CurrentStage,
		card.OverallProgress,
		steps,
		nullBytes(card.InputParameters),
		nullBytes(card.FinalResults),
		nullBytes(card.QualityMetrics),
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create workflow card",
			"workflow_id", card.ID,
			"workflow_type", card.WorkflowType,
			"error", err)
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrWorkflowExists, err)
		}
		return MapError(err)
	}

	return nil
}

// GetByID implements store.WorkflowStore.
func (s *WorkflowStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowCard, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_cards WHERE id = $1`

	card, err := scanWorkflow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, fmt.Errorf("%w: %s", store.ErrWorkflowNotFound, id)
		}
		return nil, MapError(err)
	}
	return card, nil
}

// Update implements store.WorkflowStore. The whole card is replaced; the
// workflow service is the single writer, so a full overwrite is safe.
func (s *WorkflowStore) Update(ctx context.Context, card *domain.WorkflowCard) error {
	log := logger.FromContext(ctx)

	steps, err := json.Marshal(card.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode workflow steps: %w", err)
	}

	query := `
		UPDATE workflow_cards
		SET current_stage = $1, overall_progress = $2, steps = $3,
			final_results = $4, quality_metrics = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		card.CurrentStage,
		card.OverallProgress,
		steps,
		nullBytes(card.FinalResults),
		nullBytes(card.QualityMetrics),
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		log.Error("failed to update workflow card", "workflow_id", card.ID, "error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrWorkflowNotFound, card.ID)
	}

	return nil
}

func scanWorkflow(row rowScanner) (*domain.WorkflowCard, error) {
	var (
		card            domain.WorkflowCard
		steps           []byte
		inputParameters []byte
		finalResults    []byte
		qualityMetrics  []byte
	)

	err := row.Scan(
		&card.ID,
		&card.WorkflowType,
		&card.Title,
		&card.Description,
		&card.CurrentStage,
		&card.OverallProgress,
		&steps,
		&inputParameters,
		&finalResults,
		&qualityMetrics,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(steps, &card.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode workflow steps for %s: %w", card.ID, err)
	}
	if inputParameters != nil {
		card.InputParameters = inputParameters
	}
	if finalResults != nil {
		card.FinalResults = finalResults
	}
	if qualityMetrics != nil {
		card.QualityMetrics = qualityMetrics
	}

	return &card, nil
}
