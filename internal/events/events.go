package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
)

// TaskRequestEvent represents a request to create and run a background task.
// It carries everything the task layer needs without the API handlers
// depending on the task package directly.
type TaskRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskType indicates which agent pipeline should run
	TaskType domain.TaskType `json:"task_type"`

	// OwnerID is the submitting user; the created task record is owned by them
	OwnerID uuid.UUID `json:"owner_id"`

	// SessionID optionally associates the task with a chat session
	SessionID *uuid.UUID `json:"session_id,omitempty"`

	// Input contains the task-specific input serialized as JSON
	Input json.RawMessage `json:"input"`

	// Config contains optional per-run agent configuration
	Config json.RawMessage `json:"config,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskRequestEvent creates a TaskRequestEvent for the given owner and input.
func NewTaskRequestEvent(
	taskType domain.TaskType,
	ownerID uuid.UUID,
	sessionID *uuid.UUID,
	input, config json.RawMessage,
) *TaskRequestEvent {
	return &TaskRequestEvent{
		ID:        uuid.New(),
		TaskType:  taskType,
		OwnerID:   ownerID,
		SessionID: sessionID,
		Input:     input,
		Config:    config,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the API layer to publish task requests without direct
// knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
