package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewAgentStep(t *testing.T) {
	t.Parallel()
	taskID := uuid.New()

	step, err := NewAgentStep(taskID, "review_generation", "paper_collection", json.RawMessage(`{"query":"x"}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if step.StepID == uuid.Nil {
		t.Error("Expected non-nil step ID")
	}

	if step.Status != StepStatusRunning {
		t.Errorf("Expected status %s, got %s", StepStatusRunning, step.Status)
	}

	if step.StartedAt.IsZero() {
		t.Error("Expected non-zero StartedAt")
	}

	_, err = NewAgentStep(uuid.Nil, "review_generation", "paper_collection", nil)
	if err != ErrEmptyStepTaskID {
		t.Errorf("Expected %v, got %v", ErrEmptyStepTaskID, err)
	}

	_, err = NewAgentStep(taskID, "", "paper_collection", nil)
	if err != ErrEmptyStepAgentName {
		t.Errorf("Expected %v, got %v", ErrEmptyStepAgentName, err)
	}

	_, err = NewAgentStep(taskID, "review_generation", "", nil)
	if err != ErrEmptyStepAction {
		t.Errorf("Expected %v, got %v", ErrEmptyStepAction, err)
	}
}

func TestAgentStepCompleteAndFail(t *testing.T) {
	t.Parallel()
	step, err := NewAgentStep(uuid.New(), "review_generation", "paper_analysis", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	step.Complete(json.RawMessage(`{"papers":12}`))
	if step.Status != StepStatusCompleted {
		t.Errorf("Expected status %s, got %s", StepStatusCompleted, step.Status)
	}
	if step.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}

	failed, _ := NewAgentStep(uuid.New(), "review_generation", "paper_analysis", nil)
	failed.Fail("search backend unavailable")
	if failed.Status != StepStatusFailed {
		t.Errorf("Expected status %s, got %s", StepStatusFailed, failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Error("Expected error message to be recorded")
	}
}
