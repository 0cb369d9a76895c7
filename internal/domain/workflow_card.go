package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// WorkflowStage is the coarse, UI-facing phase of a workflow, derived from
// the fine-grained step names.
type WorkflowStage string

// Possible workflow stages
const (
	StageInitializing      WorkflowStage = "INITIALIZING"
	StagePaperCollection   WorkflowStage = "PAPER_COLLECTION"
	StageQualityValidation WorkflowStage = "QUALITY_VALIDATION"
	StageAnalysis          WorkflowStage = "ANALYSIS"
	StageStructureDesign   WorkflowStage = "STRUCTURE_DESIGN"
	StageContentWriting    WorkflowStage = "CONTENT_WRITING"
	StageQualityReview     WorkflowStage = "QUALITY_REVIEW"
	StageFinalization      WorkflowStage = "FINALIZATION"
	StageCompleted         WorkflowStage = "COMPLETED"
	StageFailed            WorkflowStage = "FAILED"
)

// WorkflowStepStatus is the state of one step within a workflow card
type WorkflowStepStatus string

// Possible workflow step status values
const (
	WorkflowStepPending   WorkflowStepStatus = "pending"
	WorkflowStepRunning   WorkflowStepStatus = "running"
	WorkflowStepCompleted WorkflowStepStatus = "completed"
	WorkflowStepFailed    WorkflowStepStatus = "failed"
)

// WorkflowType identifies which fixed step template a workflow instantiates
type WorkflowType string

// Known workflow types
const (
	WorkflowTypeReviewGeneration WorkflowType = "review_generation"
)

// Common validation errors for WorkflowCard
var (
	ErrEmptyWorkflowID    = errors.New("workflow ID cannot be empty")
	ErrEmptyWorkflowTitle = errors.New("workflow title cannot be empty")
	ErrNoWorkflowSteps    = errors.New("workflow must have at least one step")
)

// WorkflowStep is one entry in a workflow card's fixed, ordered step list.
type WorkflowStep struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Status       WorkflowStepStatus `json:"status"`
	Progress     float64            `json:"progress"`
	Result       json.RawMessage    `json:"result,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// WorkflowCard aggregates the stage-by-stage progress of one workflow run
// for display. It is instantiated from a fixed per-type template when the
// workflow starts and mutated on every stage transition.
type WorkflowCard struct {
	ID              uuid.UUID       `json:"id"`
	WorkflowType    WorkflowType    `json:"workflow_type"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	CurrentStage    WorkflowStage   `json:"current_stage"`
	OverallProgress float64         `json:"overall_progress"`
	Steps           []WorkflowStep  `json:"steps"`
	InputParameters json.RawMessage `json:"input_parameters,omitempty"`
	FinalResults    json.RawMessage `json:"final_results,omitempty"`
	QualityMetrics  json.RawMessage `json:"quality_metrics,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate checks if the WorkflowCard has valid data.
func (c *WorkflowCard) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyWorkflowID
	}

	if c.Title == "" {
		return ErrEmptyWorkflowTitle
	}

	if len(c.Steps) == 0 {
		return ErrNoWorkflowSteps
	}

	if !isValidStage(c.CurrentStage) {
		return ErrInvalidStage
	}

	return nil
}

// FindStep returns a pointer to the step with the given name, or nil when
// the name is not part of this card's template.
func (c *WorkflowCard) FindStep(name string) *WorkflowStep {
	for i := range c.Steps {
		if c.Steps[i].Name == name {
			return &c.Steps[i]
		}
	}
	return nil
}

// RunningStep returns the first step currently in the running state, or nil.
// A linear pipeline has at most one.
func (c *WorkflowCard) RunningStep() *WorkflowStep {
	for i := range c.Steps {
		if c.Steps[i].Status == WorkflowStepRunning {
			return &c.Steps[i]
		}
	}
	return nil
}

// isValidStage checks if the given stage is a valid WorkflowStage.
func isValidStage(stage WorkflowStage) bool {
	switch stage {
	case StageInitializing, StagePaperCollection, StageQualityValidation,
		StageAnalysis, StageStructureDesign, StageContentWriting,
		StageQualityReview, StageFinalization, StageCompleted, StageFailed:
		return true
	default:
		return false
	}
}
