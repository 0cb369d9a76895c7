package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/api/middleware"
	"github.com/athenus/review-api/internal/api/shared"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/events"
	"github.com/athenus/review-api/internal/store"
	"github.com/athenus/review-api/internal/task"
)

// TaskHandler serves the task lifecycle endpoints. Submission goes through
// the event emitter; everything else reads and mutates the ledger directly.
type TaskHandler struct {
	service *task.Service
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewTaskHandler creates a TaskHandler wired to the ledger and emitter.
func NewTaskHandler(service *task.Service, emitter events.EventEmitter, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		emitter: emitter,
		logger:  logger.With("component", "task_handler"),
	}
}

// Submit handles POST /api/tasks. The task is accepted, not executed
// synchronously: the response carries the task ID to poll and arrives before
// the pipeline starts.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}

	taskType := domain.TaskType(req.TaskType)
	event := events.NewTaskRequestEvent(taskType, ownerID, req.SessionID, req.InputData, req.Config)

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		TaskID:  event.ID,
		Status:  string(domain.TaskStatusPending),
		Message: fmt.Sprintf("Task accepted; poll /api/tasks/%s for progress", event.ID),
	})
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), taskID, ownerID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(record))
}

// List handles GET /api/tasks with optional status, task_type, limit, and
// offset query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter := store.ListFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("task_type"); raw != "" {
		taskType := domain.TaskType(raw)
		filter.TaskType = &taskType
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	records, err := h.service.List(r.Context(), ownerID, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	tasks := make([]TaskResponse, 0, len(records))
	for _, record := range records {
		tasks = append(tasks, NewTaskResponse(record))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// Cancel handles DELETE /api/tasks/{id}. Cancelling an already-terminal task
// succeeds without changing it.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), taskID, ownerID); err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found or not cancellable")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{
		"task_id": taskID.String(),
		"status":  string(domain.TaskStatusCancelled),
	})
}

// Steps handles GET /api/tasks/{id}/steps.
func (h *TaskHandler) Steps(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	steps, err := h.service.StepsForTask(r.Context(), taskID, ownerID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]StepResponse, 0, len(steps))
	for _, step := range steps {
		responses = append(responses, NewStepResponse(step))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"task_id": taskID,
		"steps":   responses,
	})
}

// Stream handles GET /api/tasks/{id}/stream: a server-sent-events stream of
// record snapshots, one per poll interval, closing after the first terminal
// snapshot or when the client disconnects.
func (h *TaskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	snapshots, err := h.service.Stream(r.Context(), taskID, ownerID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snapshot := range snapshots {
		payload, err := json.Marshal(NewTaskResponse(&snapshot))
		if err != nil {
			h.logger.Error("failed to encode stream snapshot", "task_id", taskID, "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the service goroutine stops via r.Context().
			return
		}
		flusher.Flush()
	}
}

// requestIdentity extracts the authenticated owner and the path task ID,
// writing the error response itself when either is missing.
func (h *TaskHandler) requestIdentity(w http.ResponseWriter, r *http.Request) (ownerID, taskID uuid.UUID, ok bool) {
	ownerID, found := middleware.GetUserID(r)
	if !found {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, uuid.Nil, false
	}

	return ownerID, taskID, true
}
