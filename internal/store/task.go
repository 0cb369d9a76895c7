package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
)

// TaskPatch describes a partial update to a task record. Nil fields are left
// untouched; the store always stamps UpdatedAt and sets CompletedAt when the
// patch moves the task into a terminal status.
type TaskPatch struct {
	Status             *domain.TaskStatus
	ProgressPercentage *float64
	CurrentStep        *string
	StepsCompleted     *int
	TotalSteps         *int
	Output             json.RawMessage
	ErrorMessage       *string
}

// DefaultListLimit caps unpaged listings.
const DefaultListLimit = 50

// ListFilter narrows and pages a task listing. Zero Limit means the store's
// default page size.
type ListFilter struct {
	Status   *domain.TaskStatus
	TaskType *domain.TaskType
	Limit    int
	Offset   int
}

// TaskStore defines the interface for task record persistence.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task record to the store.
	// Returns ErrTaskExists if a record with the same ID already exists.
	Create(ctx context.Context, record *domain.TaskRecord) error

	// GetByID retrieves a task record by its unique ID without an ownership
	// check. Intended for internal callers (dispatcher, progress reporting).
	// Returns ErrTaskNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskRecord, error)

	// GetForOwner retrieves a task record iff the owner matches.
	// Returns ErrTaskNotFound both for missing records and for ownership
	// mismatches, never revealing existence to non-owners.
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.TaskRecord, error)

	// Update applies the patch to the record and returns the updated record.
	// Returns ErrTaskNotFound if the record does not exist.
	Update(ctx context.Context, id uuid.UUID, patch TaskPatch) (*domain.TaskRecord, error)

	// ListForOwner returns the owner's task records ordered by created_at
	// descending, narrowed by the filter.
	ListForOwner(ctx context.Context, ownerID uuid.UUID, filter ListFilter) ([]*domain.TaskRecord, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}

// StepStore defines the interface for agent step persistence.
// Version: 1.0
type StepStore interface {
	// Create saves a new agent step to the store.
	Create(ctx context.Context, step *domain.AgentStep) error

	// Update saves changes to an existing agent step (status, output,
	// error message, completion time).
	// Returns ErrStepNotFound if the step does not exist.
	Update(ctx context.Context, step *domain.AgentStep) error

	// ListByTask returns all steps recorded for a task, ordered by started_at
	// ascending. Returns an empty slice when the task has no steps.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AgentStep, error)

	// WithTx returns a new StepStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) StepStore
}

// WorkflowStore defines the interface for workflow card persistence.
// Version: 1.0
type WorkflowStore interface {
	// Create saves a new workflow card to the store.
	// Returns ErrWorkflowExists if a card with the same ID already exists.
	Create(ctx context.Context, card *domain.WorkflowCard) error

	// GetByID retrieves a workflow card by its unique ID.
	// Returns ErrWorkflowNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowCard, error)

	// Update replaces the stored card with the given one.
	// Returns ErrWorkflowNotFound if the card does not exist.
	Update(ctx context.Context, card *domain.WorkflowCard) error

	// WithTx returns a new WorkflowStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) WorkflowStore
}
