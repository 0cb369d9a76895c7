package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/events"
	"github.com/athenus/review-api/internal/workflow"
)

// TaskRequestHandler turns submitted TaskRequestEvents into running tasks:
// it creates the ledger record, instantiates the workflow card for the task
// type, and hands the pair to the dispatcher.
type TaskRequestHandler struct {
	service    *Service
	dispatcher *Dispatcher
	workflows  *workflow.Service
	logger     *slog.Logger
}

// NewTaskRequestHandler creates a handler wired to the given services.
func NewTaskRequestHandler(
	service *Service,
	dispatcher *Dispatcher,
	workflows *workflow.Service,
	logger *slog.Logger,
) *TaskRequestHandler {
	return &TaskRequestHandler{
		service:    service,
		dispatcher: dispatcher,
		workflows:  workflows,
		logger:     logger.With("component", "task_request_handler"),
	}
}

// HandleEvent implements events.EventHandler.
func (h *TaskRequestHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	agentID, err := agent.ParseID(string(event.TaskType))
	if err != nil {
		return err
	}

	// The event ID becomes the task ID; the API already returned it to the
	// submitter as the handle to poll.
	record, err := h.service.CreateWithID(ctx, event.ID, event.OwnerID, event.SessionID, event.TaskType, event.Input)
	if err != nil {
		return fmt.Errorf("failed to create task for event %s: %w", event.ID, err)
	}

	card, err := h.workflows.CreateCard(
		ctx,
		domain.WorkflowType(event.TaskType),
		workflowTitle(event.Input),
		fmt.Sprintf("Task %s", record.ID),
		event.Input,
	)
	if err != nil {
		// The task record exists and will run; losing the UI card is
		// survivable and logged, not fatal.
		h.logger.Error("failed to create workflow card",
			"task_id", record.ID,
			"error", err)
	}

	cfg := agent.Config{Raw: event.Config}
	if card != nil {
		cfg.WorkflowID = card.ID
	}

	if err := h.dispatcher.Dispatch(record.ID, agentID, event.Input, cfg); err != nil {
		return fmt.Errorf("failed to dispatch task %s: %w", record.ID, err)
	}

	h.logger.Info("accepted task request",
		"event_id", event.ID,
		"task_id", record.ID,
		"task_type", event.TaskType)
	return nil
}

// workflowTitle derives a human-readable card title from the task input.
func workflowTitle(input json.RawMessage) string {
	var parsed struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(input, &parsed); err == nil && parsed.Topic != "" {
		return "Literature review: " + parsed.Topic
	}
	return "Literature review"
}
