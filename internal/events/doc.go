// Package events decouples task submission from task execution. The API
// layer emits TaskRequestEvents; the task layer registers a handler that
// creates ledger records and dispatches agents.
package events
