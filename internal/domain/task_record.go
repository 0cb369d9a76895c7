package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskType identifies which agent pipeline a task runs
type TaskType string

// Known task types
const (
	// TaskTypeReviewGeneration runs the literature-review generation pipeline
	TaskTypeReviewGeneration TaskType = "review_generation"
)

// Common validation errors for TaskRecord
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwnerID = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskInput   = errors.New("task input cannot be empty")
)

// TaskRecord is the durable record of one unit of background work. It is
// created when a task is submitted and mutated only by progress callbacks
// from the executing agent. Records are owned exclusively by the submitting
// user and are never deleted as part of normal execution.
type TaskRecord struct {
	ID                 uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	SessionID          *uuid.UUID      `json:"session_id,omitempty"`
	TaskType           TaskType        `json:"task_type"`
	Status             TaskStatus      `json:"status"`
	ProgressPercentage float64         `json:"progress_percentage"`
	CurrentStep        string          `json:"current_step"`
	StepsCompleted     int             `json:"steps_completed"`
	TotalSteps         int             `json:"total_steps"`
	Input              json.RawMessage `json:"input"`
	Output             json.RawMessage `json:"output,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// NewTaskRecord creates a pending TaskRecord for the given owner. It
// generates a new UUID, sets status to pending, and stamps the timestamps.
// Returns an error if validation fails.
func NewTaskRecord(
	ownerID uuid.UUID,
	sessionID *uuid.UUID,
	taskType TaskType,
	input json.RawMessage,
) (*TaskRecord, error) {
	return NewTaskRecordWithID(uuid.New(), ownerID, sessionID, taskType, input)
}

// NewTaskRecordWithID is NewTaskRecord with a caller-chosen ID, for when the
// ID was allocated upstream.
func NewTaskRecordWithID(
	id uuid.UUID,
	ownerID uuid.UUID,
	sessionID *uuid.UUID,
	taskType TaskType,
	input json.RawMessage,
) (*TaskRecord, error) {
	now := time.Now().UTC()
	record := &TaskRecord{
		ID:        id,
		OwnerID:   ownerID,
		SessionID: sessionID,
		TaskType:  taskType,
		Status:    TaskStatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the TaskRecord has valid data.
// Returns an error if any field fails validation.
func (t *TaskRecord) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyTaskOwnerID
	}

	if !isValidTaskType(t.TaskType) {
		return ErrInvalidTaskType
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if len(t.Input) == 0 {
		return ErrEmptyTaskInput
	}

	if t.ProgressPercentage < 0 || t.ProgressPercentage > 100 {
		return ErrValidation
	}

	return nil
}

// Terminal reports whether the task has reached a final status.
// Terminal tasks should never transition again; this is a should-hold
// invariant enforced by the ledger, not by the type system.
func (t *TaskRecord) Terminal() bool {
	return t.Status.Terminal()
}

// Terminal reports whether the status is one of the final states.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from the current status to next is a
// legal lifecycle transition: pending -> running -> {completed|failed|cancelled}.
// Cancellation is additionally allowed straight from pending.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s == next {
		return true
	}

	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusCancelled || next == TaskStatusFailed
	case TaskStatusRunning:
		return next.Terminal()
	default:
		// Terminal states never transition
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTaskType checks if the given type is a known TaskType.
func isValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeReviewGeneration:
		return true
	default:
		return false
	}
}
