package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// StepStatus represents the state of one discrete unit of agent work
type StepStatus string

// Possible agent step status values
const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Common validation errors for AgentStep
var (
	ErrEmptyStepID        = errors.New("step ID cannot be empty")
	ErrEmptyStepTaskID    = errors.New("step task ID cannot be empty")
	ErrEmptyStepAgentName = errors.New("step agent name cannot be empty")
	ErrEmptyStepAction    = errors.New("step action cannot be empty")
)

// AgentStep records one discrete unit of agent work performed while
// executing a task. TaskID is a weak reference: steps survive their task and
// carry no cascade-delete guarantee.
type AgentStep struct {
	StepID       uuid.UUID       `json:"step_id"`
	TaskID       uuid.UUID       `json:"task_id"`
	AgentName    string          `json:"agent_name"`
	Action       string          `json:"action"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	Status       StepStatus      `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewAgentStep creates a running AgentStep for the given task and action.
// Returns an error if validation fails.
func NewAgentStep(
	taskID uuid.UUID,
	agentName, action string,
	input json.RawMessage,
) (*AgentStep, error) {
	step := &AgentStep{
		StepID:    uuid.New(),
		TaskID:    taskID,
		AgentName: agentName,
		Action:    action,
		Input:     input,
		Status:    StepStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	if err := step.Validate(); err != nil {
		return nil, err
	}

	return step, nil
}

// Validate checks if the AgentStep has valid data.
func (s *AgentStep) Validate() error {
	if s.StepID == uuid.Nil {
		return ErrEmptyStepID
	}

	if s.TaskID == uuid.Nil {
		return ErrEmptyStepTaskID
	}

	if s.AgentName == "" {
		return ErrEmptyStepAgentName
	}

	if s.Action == "" {
		return ErrEmptyStepAction
	}

	if !isValidStepStatus(s.Status) {
		return ErrInvalidStepStatus
	}

	return nil
}

// Complete marks the step completed with the given output and stamps
// CompletedAt.
func (s *AgentStep) Complete(output json.RawMessage) {
	now := time.Now().UTC()
	s.Status = StepStatusCompleted
	s.Output = output
	s.CompletedAt = &now
}

// Fail marks the step failed with the given error message and stamps
// CompletedAt.
func (s *AgentStep) Fail(errMsg string) {
	now := time.Now().UTC()
	s.Status = StepStatusFailed
	s.ErrorMessage = errMsg
	s.CompletedAt = &now
}

// isValidStepStatus checks if the given status is a valid StepStatus.
func isValidStepStatus(status StepStatus) bool {
	switch status {
	case StepStatusRunning, StepStatusCompleted, StepStatusFailed:
		return true
	default:
		return false
	}
}
