package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/store"
)

// Service owns the lifecycle of workflow cards. All mutation goes through
// it so progress aggregation and stage derivation stay consistent.
type Service struct {
	workflows store.WorkflowStore
	logger    *slog.Logger
}

// NewService creates a workflow Service backed by the given store.
func NewService(workflows store.WorkflowStore, logger *slog.Logger) *Service {
	return &Service{
		workflows: workflows,
		logger:    logger.With("component", "workflow_service"),
	}
}

// CreateCard instantiates the fixed template for the workflow type with
// every step pending and persists the card.
func (s *Service) CreateCard(
	ctx context.Context,
	workflowType domain.WorkflowType,
	title, description string,
	inputParameters json.RawMessage,
) (*domain.WorkflowCard, error) {
	template, err := Template(workflowType)
	if err != nil {
		return nil, err
	}

	steps := make([]domain.WorkflowStep, len(template))
	for i, t := range template {
		steps[i] = domain.WorkflowStep{
			Name:        t.Name,
			Description: t.Description,
			Status:      domain.WorkflowStepPending,
		}
	}

	now := time.Now().UTC()
	card := &domain.WorkflowCard{
		ID:              uuid.New(),
		WorkflowType:    workflowType,
		Title:           title,
		Description:     description,
		CurrentStage:    domain.StageInitializing,
		Steps:           steps,
		InputParameters: inputParameters,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.workflows.Create(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("created workflow card",
		"workflow_id", card.ID,
		"workflow_type", workflowType,
		"total_steps", len(steps))
	return card, nil
}

// UpdateProgress updates one step of the card by name and recomputes the
// aggregate view: overall progress and current stage. Completed steps count
// 100 each, running steps count their own progress, pending steps count 0.
// Overall progress is clamped to [0,100] and never regresses.
func (s *Service) UpdateProgress(
	ctx context.Context,
	id uuid.UUID,
	stepName string,
	progress float64,
	status domain.WorkflowStepStatus,
	result json.RawMessage,
) (*domain.WorkflowCard, error) {
	card, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	step := card.FindStep(stepName)
	if step == nil {
		return nil, fmt.Errorf("%w: %q in workflow %s", domain.ErrUnknownStep, stepName, id)
	}

	now := time.Now().UTC()
	if status == domain.WorkflowStepRunning && step.StartedAt == nil {
		step.StartedAt = &now
	}
	if (status == domain.WorkflowStepCompleted || status == domain.WorkflowStepFailed) &&
		step.CompletedAt == nil {
		step.CompletedAt = &now
	}

	step.Status = status
	step.Progress = clamp(progress)
	if status == domain.WorkflowStepCompleted {
		step.Progress = 100
	}
	if result != nil {
		step.Result = result
	}

	recomputeOverall(card)
	deriveStage(card)
	card.UpdatedAt = now

	if err := s.workflows.Update(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Debug("updated workflow progress",
		"workflow_id", id,
		"step", stepName,
		"step_status", status,
		"overall_progress", card.OverallProgress)
	return card, nil
}

// Complete force-finishes the workflow: stage COMPLETED, overall progress
// 100, and any still-running step marked completed.
func (s *Service) Complete(
	ctx context.Context,
	id uuid.UUID,
	finalResults, qualityMetrics json.RawMessage,
) (*domain.WorkflowCard, error) {
	card, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range card.Steps {
		if card.Steps[i].Status == domain.WorkflowStepRunning {
			card.Steps[i].Status = domain.WorkflowStepCompleted
			card.Steps[i].Progress = 100
			card.Steps[i].CompletedAt = &now
		}
	}

	card.CurrentStage = domain.StageCompleted
	card.OverallProgress = 100
	card.FinalResults = finalResults
	card.QualityMetrics = qualityMetrics
	card.UpdatedAt = now

	if err := s.workflows.Update(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("completed workflow", "workflow_id", id)
	return card, nil
}

// Fail marks the workflow failed at the named step. Already-completed steps
// are never rolled back.
func (s *Service) Fail(
	ctx context.Context,
	id uuid.UUID,
	stepName, cause string,
) (*domain.WorkflowCard, error) {
	card, err := s.workflows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if step := card.FindStep(stepName); step != nil {
		step.Status = domain.WorkflowStepFailed
		step.ErrorMessage = cause
		if step.CompletedAt == nil {
			step.CompletedAt = &now
		}
	}

	card.CurrentStage = domain.StageFailed
	card.UpdatedAt = now

	if err := s.workflows.Update(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Warn("failed workflow", "workflow_id", id, "step", stepName, "cause", cause)
	return card, nil
}

// Get returns the full workflow card.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowCard, error) {
	return s.workflows.GetByID(ctx, id)
}

// recomputeOverall recalculates the card's overall progress:
// (completed_count * 100 + sum of running step progress) / total_steps.
// Pending steps contribute 0. The formula assumes at most one running step
// for a linear pipeline but sums correctly if several run concurrently.
// Overall progress never regresses while steps only move forward.
func recomputeOverall(card *domain.WorkflowCard) {
	if len(card.Steps) == 0 {
		return
	}

	var sum float64
	for _, step := range card.Steps {
		switch step.Status {
		case domain.WorkflowStepCompleted:
			sum += 100
		case domain.WorkflowStepRunning:
			sum += step.Progress
		}
	}

	overall := clamp(sum / float64(len(card.Steps)))
	if overall > card.OverallProgress {
		card.OverallProgress = overall
	}
}

// deriveStage maps the currently running step to its stage. When no step is
// running the stage is left unchanged; the brief staleness between one stage
// completing and the next starting is acceptable.
func deriveStage(card *domain.WorkflowCard) {
	running := card.RunningStep()
	if running == nil {
		return
	}
	if stage, ok := StageForStep(card.WorkflowType, running.Name); ok {
		card.CurrentStage = stage
	}
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
