package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/api/shared"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/events"
	"github.com/athenus/review-api/internal/store/memory"
	"github.com/athenus/review-api/internal/task"
	"github.com/athenus/review-api/internal/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubExecutor satisfies the dispatcher's executor contract with a canned
// function.
type stubExecutor struct {
	fn func(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error)
}

func (s *stubExecutor) ExecuteTask(
	ctx context.Context,
	taskID uuid.UUID,
	_ agent.ID,
	_ json.RawMessage,
	_ agent.Config,
) (json.RawMessage, error) {
	return s.fn(ctx, taskID)
}

type apiFixture struct {
	router     chi.Router
	tasks      *task.Service
	workflows  *workflow.Service
	dispatcher *task.Dispatcher
}

// withTestUser injects the owner ID the way the auth middleware would.
func withTestUser(ownerID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shared.UserIDContextKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newAPIFixture(t *testing.T, ownerID uuid.UUID, executorFn func(ctx context.Context, taskID uuid.UUID) (json.RawMessage, error)) *apiFixture {
	t.Helper()

	if executorFn == nil {
		executorFn = func(_ context.Context, _ uuid.UUID) (json.RawMessage, error) {
			return json.RawMessage(`{"document":"done"}`), nil
		}
	}

	tasks := task.NewService(memory.NewTaskStore(), memory.NewStepStore(), 10*time.Millisecond, testLogger())
	workflows := workflow.NewService(memory.NewWorkflowStore(), testLogger())
	dispatcher := task.NewDispatcher(tasks, &stubExecutor{fn: executorFn}, testLogger())
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })

	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(task.NewTaskRequestHandler(tasks, dispatcher, workflows, testLogger()))

	taskHandler := NewTaskHandler(tasks, emitter, testLogger())
	workflowHandler := NewWorkflowHandler(workflows, testLogger())

	router := chi.NewRouter()
	router.Use(withTestUser(ownerID))
	router.Route("/api", func(r chi.Router) {
		r.Post("/tasks", taskHandler.Submit)
		r.Get("/tasks", taskHandler.List)
		r.Get("/tasks/{id}", taskHandler.Get)
		r.Delete("/tasks/{id}", taskHandler.Cancel)
		r.Get("/tasks/{id}/steps", taskHandler.Steps)
		r.Get("/tasks/{id}/stream", taskHandler.Stream)
		r.Post("/workflows", workflowHandler.Create)
		r.Get("/workflows/{id}", workflowHandler.Get)
		r.Get("/workflows/{id}/status", workflowHandler.Status)
		r.Get("/workflows/{id}/steps", workflowHandler.Steps)
		r.Get("/workflows/{id}/results", workflowHandler.Results)
	})

	return &apiFixture{router: router, tasks: tasks, workflows: workflows, dispatcher: dispatcher}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitTaskAccepted(t *testing.T) {
	t.Parallel()
	ownerID := uuid.New()
	f := newAPIFixture(t, ownerID, nil)

	rec := f.do(http.MethodPost, "/api/tasks", SubmitTaskRequest{
		TaskType:  "review_generation",
		InputData: json.RawMessage(`{"topic":"sparse attention"}`),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.TaskID)
	assert.Equal(t, "pending", resp.Status)

	// Drain the execution, then the record must be fetchable and completed.
	require.NoError(t, f.dispatcher.Shutdown(context.Background()))

	getRec := f.do(http.MethodGet, "/api/tasks/"+resp.TaskID.String(), nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	var record TaskResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &record))
	assert.Equal(t, resp.TaskID, record.ID)
	assert.Equal(t, string(domain.TaskStatusCompleted), record.Status)
}

func TestSubmitRejectsUnknownTaskType(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, uuid.New(), nil)

	rec := f.do(http.MethodPost, "/api/tasks", SubmitTaskRequest{
		TaskType:  "alchemy",
		InputData: json.RawMessage(`{}`),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, uuid.New(), nil)

	rec := f.do(http.MethodPost, "/api/tasks", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReturnsUniformNotFound(t *testing.T) {
	t.Parallel()
	ownerID := uuid.New()
	f := newAPIFixture(t, ownerID, nil)

	// A task owned by someone else.
	foreign, err := f.tasks.Create(context.Background(), uuid.New(), nil,
		domain.TaskTypeReviewGeneration, json.RawMessage(`{"topic":"x"}`))
	require.NoError(t, err)

	foreignRec := f.do(http.MethodGet, "/api/tasks/"+foreign.ID.String(), nil)
	missingRec := f.do(http.MethodGet, "/api/tasks/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, foreignRec.Code)
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
	// The two bodies must be indistinguishable apart from the trace ID.
	assert.Equal(t, foreignRec.Body.String(), missingRec.Body.String())
}

func TestListReturnsOwnTasksOnly(t *testing.T) {
	t.Parallel()
	ownerID := uuid.New()
	f := newAPIFixture(t, ownerID, nil)

	_, err := f.tasks.Create(context.Background(), ownerID, nil,
		domain.TaskTypeReviewGeneration, json.RawMessage(`{"topic":"mine"}`))
	require.NoError(t, err)
	_, err = f.tasks.Create(context.Background(), uuid.New(), nil,
		domain.TaskTypeReviewGeneration, json.RawMessage(`{"topic":"theirs"}`))
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestCancelTask(t *testing.T) {
	t.Parallel()
	ownerID := uuid.New()
	f := newAPIFixture(t, ownerID, nil)

	record, err := f.tasks.Create(context.Background(), ownerID, nil,
		domain.TaskTypeReviewGeneration, json.RawMessage(`{"topic":"x"}`))
	require.NoError(t, err)

	rec := f.do(http.MethodDelete, "/api/tasks/"+record.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Cancelling again is an idempotent success.
	again := f.do(http.MethodDelete, "/api/tasks/"+record.ID.String(), nil)
	assert.Equal(t, http.StatusOK, again.Code)

	// Unknown ID gets the uniform not-found message.
	missing := f.do(http.MethodDelete, "/api/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Contains(t, missing.Body.String(), "not found or not cancellable")
}

func TestStreamEmitsSnapshotsUntilTerminal(t *testing.T) {
	t.Parallel()
	ownerID := uuid.New()
	f := newAPIFixture(t, ownerID, nil)

	record, err := f.tasks.Create(context.Background(), ownerID, nil,
		domain.TaskTypeReviewGeneration, json.RawMessage(`{"topic":"x"}`))
	require.NoError(t, err)
	require.NoError(t, f.tasks.Cancel(context.Background(), record.ID, ownerID))

	rec := f.do(http.MethodGet, "/api/tasks/"+record.ID.String()+"/stream", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	// The terminal snapshot arrives as an SSE data frame and the stream ends.
	body := rec.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, string(domain.TaskStatusCancelled))
}

func TestWorkflowEndpoints(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, uuid.New(), nil)

	createRec := f.do(http.MethodPost, "/api/workflows", CreateWorkflowRequest{
		WorkflowType: "review_generation",
		Title:        "Literature review: sparse attention",
	})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var card domain.WorkflowCard
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &card))
	require.Len(t, card.Steps, 8)

	statusRec := f.do(http.MethodGet, "/api/workflows/"+card.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, statusRec.Code)
	var status WorkflowStatusResponse
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
	assert.Equal(t, string(domain.StageInitializing), status.CurrentStage)
	assert.Zero(t, status.OverallProgress)

	stepsRec := f.do(http.MethodGet, "/api/workflows/"+card.ID.String()+"/steps", nil)
	require.Equal(t, http.StatusOK, stepsRec.Code)

	// Results before completion return the status stub.
	resultsRec := f.do(http.MethodGet, "/api/workflows/"+card.ID.String()+"/results", nil)
	require.Equal(t, http.StatusOK, resultsRec.Code)
	assert.Contains(t, resultsRec.Body.String(), "not completed")

	missingRec := f.do(http.MethodGet, "/api/workflows/"+uuid.NewString()+"/status", nil)
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestWorkflowCreateRejectsUnknownType(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t, uuid.New(), nil)

	rec := f.do(http.MethodPost, "/api/workflows", CreateWorkflowRequest{
		WorkflowType: "alchemy",
		Title:        "nope",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
