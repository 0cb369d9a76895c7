package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/store"
)

// Executor runs a resolved agent for a task. It is satisfied by
// *agent.Orchestrator; the indirection keeps the dispatcher testable.
type Executor interface {
	ExecuteTask(
		ctx context.Context,
		taskID uuid.UUID,
		id agent.ID,
		input json.RawMessage,
		cfg agent.Config,
	) (json.RawMessage, error)
}

// Dispatcher starts agent executions in background goroutines and finalizes
// the ledger when they end. Every running task has a registered cancellation
// handle, so Shutdown and owner cancel requests reach the live pipeline.
type Dispatcher struct {
	service  *Service
	executor Executor
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher that runs agents via the executor and
// reports into the given ledger service.
func NewDispatcher(service *Service, executor Executor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:  service,
		executor: executor,
		logger:   logger.With("component", "task_dispatcher"),
	}
}

// Dispatch marks the task running and launches the agent in a tracked
// goroutine. It returns immediately; task completion is observable through
// the ledger.
func (d *Dispatcher) Dispatch(
	taskID uuid.UUID,
	agentID agent.ID,
	input json.RawMessage,
	cfg agent.Config,
) error {
	running := domain.TaskStatusRunning
	if _, err := d.service.Update(context.Background(), taskID, store.TaskPatch{Status: &running}); err != nil {
		return fmt.Errorf("failed to mark task running: %w", err)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}
	d.service.registry.register(taskID, h)

	d.wg.Add(1)
	go d.run(ctx, h, taskID, agentID, input, cfg)

	return nil
}

// run executes the agent and finalizes the task record.
func (d *Dispatcher) run(
	ctx context.Context,
	h *handle,
	taskID uuid.UUID,
	agentID agent.ID,
	input json.RawMessage,
	cfg agent.Config,
) {
	defer d.wg.Done()
	defer close(h.done)
	defer d.service.registry.release(taskID)

	log := d.logger.With("task_id", taskID, "agent_id", agentID)
	log.Info("task execution starting")

	output, err := d.executor.ExecuteTask(ctx, taskID, agentID, input, cfg)

	switch {
	case err == nil:
		full := 100.0
		completed := domain.TaskStatusCompleted
		if _, updateErr := d.service.Update(context.Background(), taskID, store.TaskPatch{
			Status:             &completed,
			ProgressPercentage: &full,
			Output:             output,
		}); updateErr != nil {
			log.Error("failed to mark task completed", "error", updateErr)
			return
		}
		log.Info("task completed")

	case errors.Is(context.Cause(ctx), ErrCancelRequested):
		// The ledger was already forced to cancelled by Service.Cancel;
		// nothing to overwrite.
		log.Info("task interrupted by owner cancellation")

	default:
		msg := err.Error()
		failed := domain.TaskStatusFailed
		if _, updateErr := d.service.Update(context.Background(), taskID, store.TaskPatch{
			Status:       &failed,
			ErrorMessage: &msg,
		}); updateErr != nil {
			log.Error("failed to mark task failed", "error", updateErr)
			return
		}
		log.Error("task failed", "error", err)
	}
}

// Shutdown cancels all running tasks and waits for their goroutines to
// finish, up to the context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	for taskID, h := range d.service.registry.snapshot() {
		h.cancel(errors.New("dispatcher shutting down"))
		d.logger.Info("signalled shutdown to running task", "task_id", taskID)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out waiting for running tasks: %w", ctx.Err())
	}
}

// WaitForTask blocks until the task's goroutine has finished or the timeout
// elapses. It reports false when the task is not currently running.
// Used by tests and graceful drains.
func (d *Dispatcher) WaitForTask(taskID uuid.UUID, timeout time.Duration) bool {
	d.service.registry.mu.Lock()
	h, ok := d.service.registry.handles[taskID]
	d.service.registry.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
