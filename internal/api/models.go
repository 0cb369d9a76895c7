// Package api implements the HTTP surface: task submission and lifecycle
// endpoints, workflow card projections, and the SSE progress stream. Handlers
// translate between the wire shapes defined here and the domain services;
// they contain no orchestration logic of their own.
package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
)

// SubmitTaskRequest is the request body for POST /api/tasks.
type SubmitTaskRequest struct {
	TaskType  string          `json:"task_type"  validate:"required"`
	SessionID *uuid.UUID      `json:"session_id,omitempty"`
	InputData json.RawMessage `json:"input_data" validate:"required"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// SubmitTaskResponse is the 202 body returned for an accepted submission.
// TaskID is the handle for all subsequent polling.
type SubmitTaskResponse struct {
	TaskID  uuid.UUID `json:"task_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// TaskResponse is the wire representation of a task record.
type TaskResponse struct {
	ID                 uuid.UUID       `json:"id"`
	SessionID          *uuid.UUID      `json:"session_id,omitempty"`
	TaskType           string          `json:"task_type"`
	Status             string          `json:"status"`
	ProgressPercentage float64         `json:"progress_percentage"`
	CurrentStep        string          `json:"current_step,omitempty"`
	StepsCompleted     int             `json:"steps_completed"`
	TotalSteps         int             `json:"total_steps"`
	Output             json.RawMessage `json:"output,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// NewTaskResponse converts a domain record to its wire shape. OwnerID is
// deliberately omitted; the authenticated caller is the owner.
func NewTaskResponse(record *domain.TaskRecord) TaskResponse {
	return TaskResponse{
		ID:                 record.ID,
		SessionID:          record.SessionID,
		TaskType:           string(record.TaskType),
		Status:             string(record.Status),
		ProgressPercentage: record.ProgressPercentage,
		CurrentStep:        record.CurrentStep,
		StepsCompleted:     record.StepsCompleted,
		TotalSteps:         record.TotalSteps,
		Output:             record.Output,
		ErrorMessage:       record.ErrorMessage,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
		CompletedAt:        record.CompletedAt,
	}
}

// TaskListResponse is the body for GET /api/tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// StepResponse is the wire representation of one agent step.
type StepResponse struct {
	StepID       uuid.UUID       `json:"step_id"`
	AgentName    string          `json:"agent_name"`
	Action       string          `json:"action"`
	Status       string          `json:"status"`
	Output       json.RawMessage `json:"output,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewStepResponse converts a domain step to its wire shape.
func NewStepResponse(step *domain.AgentStep) StepResponse {
	return StepResponse{
		StepID:       step.StepID,
		AgentName:    step.AgentName,
		Action:       step.Action,
		Status:       string(step.Status),
		Output:       step.Output,
		ErrorMessage: step.ErrorMessage,
		StartedAt:    step.StartedAt,
		CompletedAt:  step.CompletedAt,
	}
}

// CreateWorkflowRequest is the request body for POST /api/workflows.
type CreateWorkflowRequest struct {
	WorkflowType    string          `json:"workflow_type" validate:"required"`
	Title           string          `json:"title"         validate:"required"`
	Description     string          `json:"description"`
	InputParameters json.RawMessage `json:"input_parameters,omitempty"`
}

// WorkflowStatusResponse is the compact projection for the status endpoint.
type WorkflowStatusResponse struct {
	WorkflowID      uuid.UUID `json:"workflow_id"`
	CurrentStage    string    `json:"current_stage"`
	OverallProgress float64   `json:"overall_progress"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WorkflowStepsResponse is the projection for the steps endpoint.
type WorkflowStepsResponse struct {
	WorkflowID uuid.UUID             `json:"workflow_id"`
	Steps      []domain.WorkflowStep `json:"steps"`
}
