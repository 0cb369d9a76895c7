package task

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

// DefaultStreamInterval is the poll cadence for progress streams when the
// caller does not specify one.
const DefaultStreamInterval = time.Second

// Service is the task ledger. Every task record mutation flows through it:
// it stamps timestamps, clamps progress so it never regresses, guards
// terminal statuses, and routes cancel requests to the live execution.
type Service struct {
	tasks          store.TaskStore
	steps          store.StepStore
	registry       *handleRegistry
	streamInterval time.Duration
	logger         *slog.Logger
}

// NewService creates a task ledger Service over the given stores.
func NewService(
	tasks store.TaskStore,
	steps store.StepStore,
	streamInterval time.Duration,
	logger *slog.Logger,
) *Service {
	if streamInterval <= 0 {
		streamInterval = DefaultStreamInterval
	}
	return &Service{
		tasks:          tasks,
		steps:          steps,
		registry:       newHandleRegistry(),
		streamInterval: streamInterval,
		logger:         logger.With("component", "task_service"),
	}
}

// Create persists a new pending task record for the owner.
func (s *Service) Create(
	ctx context.Context,
	ownerID uuid.UUID,
	sessionID *uuid.UUID,
	taskType domain.TaskType,
	input json.RawMessage,
) (*domain.TaskRecord, error) {
	return s.CreateWithID(ctx, uuid.New(), ownerID, sessionID, taskType, input)
}

// CreateWithID persists a new pending task record under a caller-allocated
// ID. The submission path uses the request event's ID so the API can return
// the task ID before the record exists.
func (s *Service) CreateWithID(
	ctx context.Context,
	id uuid.UUID,
	ownerID uuid.UUID,
	sessionID *uuid.UUID,
	taskType domain.TaskType,
	input json.RawMessage,
) (*domain.TaskRecord, error) {
	record, err := domain.NewTaskRecordWithID(id, ownerID, sessionID, taskType, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.tasks.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create task record: %w", err)
	}

	s.logger.Info("created task",
		"task_id", record.ID,
		"task_type", taskType,
		"owner_id", ownerID)
	return record, nil
}

// Get returns the record iff the owner matches; missing records and
// ownership mismatches both surface as store.ErrTaskNotFound.
func (s *Service) Get(ctx context.Context, id, ownerID uuid.UUID) (*domain.TaskRecord, error) {
	return s.tasks.GetForOwner(ctx, id, ownerID)
}

// List returns the owner's records, newest first.
func (s *Service) List(
	ctx context.Context,
	ownerID uuid.UUID,
	filter store.ListFilter,
) ([]*domain.TaskRecord, error) {
	return s.tasks.ListForOwner(ctx, ownerID, filter)
}

// Update applies a progress patch from the executing agent. Terminal
// records are never modified again (the patch is dropped with a warning),
// and progress is clamped so it can only move forward.
func (s *Service) Update(
	ctx context.Context,
	id uuid.UUID,
	patch store.TaskPatch,
) (*domain.TaskRecord, error) {
	current, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Terminal() {
		if patch.Status == nil || *patch.Status != current.Status {
			s.logger.Warn("dropping update to terminal task",
				"task_id", id,
				"status", current.Status)
			return current, nil
		}
	}

	if patch.ProgressPercentage != nil {
		clamped := clampProgress(*patch.ProgressPercentage)
		if clamped < current.ProgressPercentage {
			clamped = current.ProgressPercentage
		}
		patch.ProgressPercentage = &clamped
	}

	return s.tasks.Update(ctx, id, patch)
}

// Cancel is best-effort: it signals the live execution if one exists and
// unconditionally forces the stored status to cancelled. Cancelling an
// already-terminal task is an idempotent success.
func (s *Service) Cancel(ctx context.Context, id, ownerID uuid.UUID) error {
	record, err := s.tasks.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if record.Terminal() {
		s.logger.Debug("cancel on terminal task is a no-op",
			"task_id", id,
			"status", record.Status)
		return nil
	}

	interrupted := s.registry.signalCancel(id, ErrCancelRequested)

	cancelled := domain.TaskStatusCancelled
	if _, err := s.tasks.Update(ctx, id, store.TaskPatch{Status: &cancelled}); err != nil {
		return fmt.Errorf("failed to mark task cancelled: %w", err)
	}

	s.logger.Info("cancelled task",
		"task_id", id,
		"interrupted_running_execution", interrupted)
	return nil
}

// Stream returns a channel of task record snapshots polled at the service's
// stream interval. The channel emits a first snapshot immediately, may emit
// duplicate snapshots, and closes after the first terminal one. Consumers
// can reconnect at any time and get a fresh stream.
func (s *Service) Stream(ctx context.Context, id, ownerID uuid.UUID) (<-chan domain.TaskRecord, error) {
	first, err := s.tasks.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.TaskRecord, 1)
	out <- *first

	if first.Terminal() {
		close(out)
		return out, nil
	}

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.streamInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				record, err := s.tasks.GetForOwner(ctx, id, ownerID)
				if err != nil {
					s.logger.Error("stream poll failed", "task_id", id, "error", err)
					return
				}

				select {
				case out <- *record:
				case <-ctx.Done():
					return
				}

				if record.Terminal() {
					return
				}
			}
		}
	}()

	return out, nil
}

// RecordStep persists the start of one discrete unit of agent work.
func (s *Service) RecordStep(
	ctx context.Context,
	taskID uuid.UUID,
	agentName, action string,
	input json.RawMessage,
) (*domain.AgentStep, error) {
	step, err := domain.NewAgentStep(taskID, agentName, action, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.steps.Create(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to record step: %w", err)
	}
	return step, nil
}

// CompleteStep marks a previously recorded step completed.
func (s *Service) CompleteStep(ctx context.Context, step *domain.AgentStep, output json.RawMessage) error {
	step.Complete(output)
	return s.steps.Update(ctx, step)
}

// FailStep marks a previously recorded step failed.
func (s *Service) FailStep(ctx context.Context, step *domain.AgentStep, cause string) error {
	step.Fail(cause)
	return s.steps.Update(ctx, step)
}

// StepsForTask returns the steps recorded for a task, oldest first, after
// an ownership check on the task itself.
func (s *Service) StepsForTask(ctx context.Context, taskID, ownerID uuid.UUID) ([]*domain.AgentStep, error) {
	if _, err := s.tasks.GetForOwner(ctx, taskID, ownerID); err != nil {
		return nil, err
	}
	return s.steps.ListByTask(ctx, taskID)
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
