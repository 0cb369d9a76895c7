// Package memory provides in-memory implementations of the store
// interfaces. They back unit tests and local development; the Postgres
// implementations under internal/platform/postgres are the production path.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/store"
)

// TaskStore is an in-memory store.TaskStore.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.TaskRecord
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[uuid.UUID]*domain.TaskRecord)}
}

// Create saves a new task record.
func (s *TaskStore) Create(_ context.Context, record *domain.TaskRecord) error {
	if err := record.Validate(); err != nil {
		return store.NewStoreError("task", "create", "validation failed", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[record.ID]; exists {
		return store.ErrTaskExists
	}

	clone := *record
	s.tasks[record.ID] = &clone
	return nil
}

// GetByID retrieves a task record without an ownership check.
func (s *TaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *record
	return &clone, nil
}

// GetForOwner retrieves a task record iff the owner matches. Missing records
// and ownership mismatches are indistinguishable to the caller.
func (s *TaskStore) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.TaskRecord, error) {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	return record, nil
}

// Update applies the patch and returns the updated record.
func (s *TaskStore) Update(_ context.Context, id uuid.UUID, patch store.TaskPatch) (*domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	applyPatch(record, patch)

	clone := *record
	return &clone, nil
}

// ListForOwner returns the owner's records, newest first.
func (s *TaskStore) ListForOwner(
	_ context.Context,
	ownerID uuid.UUID,
	filter store.ListFilter,
) ([]*domain.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.TaskRecord
	for _, record := range s.tasks {
		if record.OwnerID != ownerID {
			continue
		}
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		if filter.TaskType != nil && record.TaskType != *filter.TaskType {
			continue
		}
		clone := *record
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	if filter.Offset >= len(matched) {
		return []*domain.TaskRecord{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// WithTx returns the store itself; the memory backend has no transactions.
func (s *TaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return s
}

// applyPatch merges the patch into the record, stamping UpdatedAt and
// CompletedAt per the ledger contract.
func applyPatch(record *domain.TaskRecord, patch store.TaskPatch) {
	now := time.Now().UTC()

	if patch.Status != nil {
		record.Status = *patch.Status
		if patch.Status.Terminal() && record.CompletedAt == nil {
			record.CompletedAt = &now
		}
	}
	if patch.ProgressPercentage != nil {
		record.ProgressPercentage = *patch.ProgressPercentage
	}
	if patch.CurrentStep != nil {
		record.CurrentStep = *patch.CurrentStep
	}
	if patch.StepsCompleted != nil {
		record.StepsCompleted = *patch.StepsCompleted
	}
	if patch.TotalSteps != nil {
		record.TotalSteps = *patch.TotalSteps
	}
	if patch.Output != nil {
		record.Output = patch.Output
	}
	if patch.ErrorMessage != nil {
		record.ErrorMessage = *patch.ErrorMessage
	}

	record.UpdatedAt = now
}

// StepStore is an in-memory store.StepStore.
type StepStore struct {
	mu    sync.RWMutex
	steps map[uuid.UUID]*domain.AgentStep
}

// NewStepStore creates an empty in-memory step store.
func NewStepStore() *StepStore {
	return &StepStore{steps: make(map[uuid.UUID]*domain.AgentStep)}
}

// Create saves a new agent step.
func (s *StepStore) Create(_ context.Context, step *domain.AgentStep) error {
	if err := step.Validate(); err != nil {
		return store.NewStoreError("agent step", "create", "validation failed", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *step
	s.steps[step.StepID] = &clone
	return nil
}

// Update saves changes to an existing step.
func (s *StepStore) Update(_ context.Context, step *domain.AgentStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[step.StepID]; !ok {
		return store.ErrStepNotFound
	}
	clone := *step
	s.steps[step.StepID] = &clone
	return nil
}

// ListByTask returns the task's steps ordered by start time.
func (s *StepStore) ListByTask(_ context.Context, taskID uuid.UUID) ([]*domain.AgentStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.AgentStep
	for _, step := range s.steps {
		if step.TaskID == taskID {
			clone := *step
			matched = append(matched, &clone)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.Before(matched[j].StartedAt)
	})
	return matched, nil
}

// WithTx returns the store itself; the memory backend has no transactions.
func (s *StepStore) WithTx(_ *sql.Tx) store.StepStore {
	return s
}

// WorkflowStore is an in-memory store.WorkflowStore.
type WorkflowStore struct {
	mu    sync.RWMutex
	cards map[uuid.UUID]*domain.WorkflowCard
}

// NewWorkflowStore creates an empty in-memory workflow store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{cards: make(map[uuid.UUID]*domain.WorkflowCard)}
}

// Create saves a new workflow card.
func (s *WorkflowStore) Create(_ context.Context, card *domain.WorkflowCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cards[card.ID]; exists {
		return store.ErrWorkflowExists
	}
	s.cards[card.ID] = cloneCard(card)
	return nil
}

// GetByID retrieves a workflow card.
func (s *WorkflowStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[id]
	if !ok {
		return nil, store.ErrWorkflowNotFound
	}
	return cloneCard(card), nil
}

// Update replaces the stored card.
func (s *WorkflowStore) Update(_ context.Context, card *domain.WorkflowCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[card.ID]; !ok {
		return store.ErrWorkflowNotFound
	}
	s.cards[card.ID] = cloneCard(card)
	return nil
}

// WithTx returns the store itself; the memory backend has no transactions.
func (s *WorkflowStore) WithTx(_ *sql.Tx) store.WorkflowStore {
	return s
}

// cloneCard deep-copies a card so callers never alias stored state.
func cloneCard(card *domain.WorkflowCard) *domain.WorkflowCard {
	clone := *card
	clone.Steps = make([]domain.WorkflowStep, len(card.Steps))
	copy(clone.Steps, card.Steps)
	return &clone
}
