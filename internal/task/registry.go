package task

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrCancelRequested is the cancellation cause recorded when an owner
// cancels a task. The dispatcher uses it to distinguish owner cancellation
// from failures and timeouts.
var ErrCancelRequested = errors.New("cancellation requested by owner")

// handle tracks one running task: the function that cancels its context and
// a channel closed when the task goroutine finishes.
type handle struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// handleRegistry maps running task IDs to their cancellation handles. It is
// populated by the dispatcher when a task starts and drained when it ends,
// so a cancel request can always reach the live execution.
type handleRegistry struct {
	mu      sync.Mutex
	handles map[uuid.UUID]*handle
}

func newHandleRegistry() *handleRegistry {
	return &handleRegistry{handles: make(map[uuid.UUID]*handle)}
}

// register stores the handle for a starting task.
func (r *handleRegistry) register(taskID uuid.UUID, h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[taskID] = h
}

// release removes the handle once the task goroutine has finished.
func (r *handleRegistry) release(taskID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, taskID)
}

// signalCancel cancels the running task's context with the given cause.
// Returns false when the task is not currently running.
func (r *handleRegistry) signalCancel(taskID uuid.UUID, cause error) bool {
	r.mu.Lock()
	h, ok := r.handles[taskID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel(cause)
	return true
}

// snapshot returns the handles of all currently running tasks.
func (r *handleRegistry) snapshot() map[uuid.UUID]*handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID]*handle, len(r.handles))
	for id, h := range r.handles {
		out[id] = h
	}
	return out
}
