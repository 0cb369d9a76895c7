package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/events"
	"github.com/athenus/review-api/internal/store"
	"github.com/athenus/review-api/internal/store/memory"
	"github.com/athenus/review-api/internal/workflow"
)

func newHandlerFixture(t *testing.T, fn func(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error)) (*TaskRequestHandler, *Service, *Dispatcher) {
	t.Helper()
	svc := NewService(memory.NewTaskStore(), memory.NewStepStore(), 10*time.Millisecond, testLogger())
	workflows := workflow.NewService(memory.NewWorkflowStore(), testLogger())
	dispatcher := NewDispatcher(svc, &stubExecutor{fn: fn}, testLogger())
	handler := NewTaskRequestHandler(svc, dispatcher, workflows, testLogger())
	return handler, svc, dispatcher
}

func TestHandleEventCreatesAndDispatches(t *testing.T) {
	t.Parallel()

	executed := make(chan uuid.UUID, 1)
	handler, svc, dispatcher := newHandlerFixture(t,
		func(_ context.Context, taskID uuid.UUID) (json.RawMessage, error) {
			executed <- taskID
			return json.RawMessage(`{}`), nil
		})

	ownerID := uuid.New()
	event := events.NewTaskRequestEvent(
		domain.TaskTypeReviewGeneration,
		ownerID,
		nil,
		json.RawMessage(`{"topic":"sparse attention"}`),
		nil,
	)

	require.NoError(t, handler.HandleEvent(context.Background(), event))

	var taskID uuid.UUID
	select {
	case taskID = <-executed:
	case <-time.After(5 * time.Second):
		t.Fatal("agent was never executed")
	}

	require.NoError(t, dispatcher.Shutdown(context.Background()))

	record, err := svc.Get(context.Background(), taskID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, record.Status)
}

func TestHandleEventRejectsUnknownTaskType(t *testing.T) {
	t.Parallel()
	handler, svc, _ := newHandlerFixture(t,
		func(_ context.Context, _ uuid.UUID) (json.RawMessage, error) {
			return nil, nil
		})

	ownerID := uuid.New()
	event := events.NewTaskRequestEvent(
		domain.TaskType("alchemy"),
		ownerID,
		nil,
		json.RawMessage(`{}`),
		nil,
	)

	err := handler.HandleEvent(context.Background(), event)
	assert.ErrorIs(t, err, agent.ErrUnknownAgent)

	// No ledger record must exist for the rejected request.
	records, listErr := svc.List(context.Background(), ownerID, store.ListFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, records)
}
