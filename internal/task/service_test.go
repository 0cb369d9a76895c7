package task

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/store"
	"github.com/athenus/review-api/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() *Service {
	return NewService(memory.NewTaskStore(), memory.NewStepStore(), 10*time.Millisecond, testLogger())
}

func createTask(t *testing.T, svc *Service, ownerID uuid.UUID) *domain.TaskRecord {
	t.Helper()
	record, err := svc.Create(
		context.Background(),
		ownerID,
		nil,
		domain.TaskTypeReviewGeneration,
		json.RawMessage(`{"topic":"test-time adaptation"}`),
	)
	require.NoError(t, err)
	return record
}

func TestCreateTask(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()

	record := createTask(t, svc, ownerID)

	assert.Equal(t, domain.TaskStatusPending, record.Status)
	assert.Equal(t, ownerID, record.OwnerID)
	assert.Equal(t, float64(0), record.ProgressPercentage)
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()
	record := createTask(t, svc, ownerID)
	ctx := context.Background()

	got, err := svc.Get(ctx, record.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	// A different user must get the same "not found" as for a missing ID.
	_, errForeign := svc.Get(ctx, record.ID, uuid.New())
	assert.ErrorIs(t, errForeign, store.ErrTaskNotFound)

	_, errMissing := svc.Get(ctx, uuid.New(), ownerID)
	assert.ErrorIs(t, errMissing, store.ErrTaskNotFound)
	assert.Equal(t, errMissing.Error(), errForeign.Error(),
		"ownership mismatch and missing record must be indistinguishable")
}

func TestListOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()
	ctx := context.Background()

	first := createTask(t, svc, ownerID)
	time.Sleep(2 * time.Millisecond)
	second := createTask(t, svc, ownerID)
	createTask(t, svc, uuid.New()) // other owner, must not appear

	records, err := svc.List(ctx, ownerID, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
}

func TestUpdateStampsAndClamps(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	record := createTask(t, svc, uuid.New())
	ctx := context.Background()

	progress := 40.0
	step := "paper_analysis"
	updated, err := svc.Update(ctx, record.ID, store.TaskPatch{
		ProgressPercentage: &progress,
		CurrentStep:        &step,
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, updated.ProgressPercentage)
	assert.Equal(t, "paper_analysis", updated.CurrentStep)
	assert.True(t, updated.UpdatedAt.After(record.UpdatedAt) || updated.UpdatedAt.Equal(record.UpdatedAt))

	// Progress never regresses.
	regress := 10.0
	updated, err = svc.Update(ctx, record.ID, store.TaskPatch{ProgressPercentage: &regress})
	require.NoError(t, err)
	assert.Equal(t, 40.0, updated.ProgressPercentage)

	// And never leaves [0,100].
	over := 180.0
	updated, err = svc.Update(ctx, record.ID, store.TaskPatch{ProgressPercentage: &over})
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.ProgressPercentage)
}

func TestUpdateSetsCompletedAtOnTerminal(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	record := createTask(t, svc, uuid.New())
	ctx := context.Background()

	completed := domain.TaskStatusCompleted
	updated, err := svc.Update(ctx, record.ID, store.TaskPatch{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
}

func TestUpdateDropsPatchesOnTerminalTask(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	record := createTask(t, svc, uuid.New())
	ctx := context.Background()

	cancelled := domain.TaskStatusCancelled
	_, err := svc.Update(ctx, record.ID, store.TaskPatch{Status: &cancelled})
	require.NoError(t, err)

	// A late "completed" from the agent must not resurrect the task.
	completed := domain.TaskStatusCompleted
	after, err := svc.Update(ctx, record.ID, store.TaskPatch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, after.Status)
}

func TestCancelRoundTrip(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()
	record := createTask(t, svc, ownerID)
	ctx := context.Background()

	got, err := svc.Get(ctx, record.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)

	require.NoError(t, svc.Cancel(ctx, record.ID, ownerID))

	got, err = svc.Get(ctx, record.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// Cancelling again is an idempotent success, and the status sticks.
	require.NoError(t, svc.Cancel(ctx, record.ID, ownerID))
	got, err = svc.Get(ctx, record.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, got.Status)
}

func TestCancelEnforcesOwnership(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	record := createTask(t, svc, uuid.New())

	err := svc.Cancel(context.Background(), record.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestStreamTerminatesOnTerminalStatus(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()
	record := createTask(t, svc, ownerID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshots, err := svc.Stream(ctx, record.ID, ownerID)
	require.NoError(t, err)

	// First snapshot arrives immediately.
	first := <-snapshots
	assert.Equal(t, domain.TaskStatusPending, first.Status)

	// Complete the task while the stream is polling.
	completed := domain.TaskStatusCompleted
	_, err = svc.Update(ctx, record.ID, store.TaskPatch{Status: &completed})
	require.NoError(t, err)

	var last domain.TaskRecord
	for snapshot := range snapshots {
		last = snapshot
	}
	assert.Equal(t, domain.TaskStatusCompleted, last.Status,
		"stream must end with the terminal snapshot")
}

func TestStreamOnTerminalTaskEmitsOnceAndCloses(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()
	record := createTask(t, svc, ownerID)
	ctx := context.Background()

	require.NoError(t, svc.Cancel(ctx, record.ID, ownerID))

	snapshots, err := svc.Stream(ctx, record.ID, ownerID)
	require.NoError(t, err)

	var collected []domain.TaskRecord
	for snapshot := range snapshots {
		collected = append(collected, snapshot)
	}
	require.Len(t, collected, 1)
	assert.Equal(t, domain.TaskStatusCancelled, collected[0].Status)
}

func TestStreamUnknownTask(t *testing.T) {
	t.Parallel()
	svc := newTestService()

	_, err := svc.Stream(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestStepRecording(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	ownerID := uuid.New()
	record := createTask(t, svc, ownerID)
	ctx := context.Background()

	step, err := svc.RecordStep(ctx, record.ID, "review_generation", "paper_collection",
		json.RawMessage(`{"query":"test-time adaptation"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusRunning, step.Status)

	require.NoError(t, svc.CompleteStep(ctx, step, json.RawMessage(`{"papers":7}`)))

	steps, err := svc.StepsForTask(ctx, record.ID, ownerID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, domain.StepStatusCompleted, steps[0].Status)

	// Step listing goes through the same ownership gate as Get.
	_, err = svc.StepsForTask(ctx, record.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}
