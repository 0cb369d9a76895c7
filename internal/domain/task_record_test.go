package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewTaskRecord(t *testing.T) {
	t.Parallel() // Enable parallel execution
	ownerID := uuid.New()
	input := json.RawMessage(`{"topic":"transformer architectures"}`)

	record, err := NewTaskRecord(ownerID, nil, TaskTypeReviewGeneration, input)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if record.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if record.OwnerID != ownerID {
		t.Errorf("Expected owner ID %s, got %s", ownerID, record.OwnerID)
	}

	if record.Status != TaskStatusPending {
		t.Errorf("Expected status %s, got %s", TaskStatusPending, record.Status)
	}

	if record.ProgressPercentage != 0 {
		t.Errorf("Expected progress 0, got %f", record.ProgressPercentage)
	}

	if record.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	if record.CompletedAt != nil {
		t.Error("Expected nil CompletedAt for a new record")
	}

	// Test invalid owner
	_, err = NewTaskRecord(uuid.Nil, nil, TaskTypeReviewGeneration, input)
	if err != ErrEmptyTaskOwnerID {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskOwnerID, err)
	}

	// Test unknown task type
	_, err = NewTaskRecord(ownerID, nil, TaskType("unknown"), input)
	if err != ErrInvalidTaskType {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskType, err)
	}

	// Test empty input
	_, err = NewTaskRecord(ownerID, nil, TaskTypeReviewGeneration, nil)
	if err != ErrEmptyTaskInput {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskInput, err)
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	t.Parallel()
	terminal := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("Expected %s to be terminal", status)
		}
	}

	nonTerminal := []TaskStatus{TaskStatusPending, TaskStatusRunning}
	for _, status := range nonTerminal {
		if status.Terminal() {
			t.Errorf("Expected %s to be non-terminal", status)
		}
	}
}

func TestTaskStatusCanTransitionTo(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{"pending to running", TaskStatusPending, TaskStatusRunning, true},
		{"pending to cancelled", TaskStatusPending, TaskStatusCancelled, true},
		{"pending to completed", TaskStatusPending, TaskStatusCompleted, false},
		{"running to completed", TaskStatusRunning, TaskStatusCompleted, true},
		{"running to failed", TaskStatusRunning, TaskStatusFailed, true},
		{"running to cancelled", TaskStatusRunning, TaskStatusCancelled, true},
		{"running to pending", TaskStatusRunning, TaskStatusPending, false},
		{"completed is final", TaskStatusCompleted, TaskStatusRunning, false},
		{"cancelled is final", TaskStatusCancelled, TaskStatusRunning, false},
		{"failed is final", TaskStatusFailed, TaskStatusCompleted, false},
		{"self transition is a no-op", TaskStatusRunning, TaskStatusRunning, true},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s: CanTransitionTo(%s -> %s) = %v, want %v",
				tc.name, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTaskRecordValidateProgressBounds(t *testing.T) {
	t.Parallel()
	record, err := NewTaskRecord(
		uuid.New(),
		nil,
		TaskTypeReviewGeneration,
		json.RawMessage(`{}`),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	record.ProgressPercentage = 101
	if err := record.Validate(); err != ErrValidation {
		t.Errorf("Expected %v for progress > 100, got %v", ErrValidation, err)
	}

	record.ProgressPercentage = -1
	if err := record.Validate(); err != ErrValidation {
		t.Errorf("Expected %v for negative progress, got %v", ErrValidation, err)
	}
}
