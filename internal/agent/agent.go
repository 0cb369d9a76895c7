// Package agent defines the contract between the orchestration core and the
// concrete AI pipelines, plus the registry that dispatches tasks to them.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
)

// Common errors returned by this package
var (
	// ErrUnknownAgent is returned when an agent ID has no registered agent.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrAgentAlreadyRegistered is returned when registering a duplicate ID.
	ErrAgentAlreadyRegistered = errors.New("agent already registered")
)

// ID identifies a registered agent. Agent IDs line up with task types so a
// task record's type resolves directly to the agent that runs it.
type ID string

// Known agent IDs
const (
	// ReviewGeneration runs the literature-review generation pipeline.
	ReviewGeneration ID = ID(domain.TaskTypeReviewGeneration)
)

// ParseID validates a raw agent ID string. An unknown key is a typed error,
// not a silent lookup miss.
func ParseID(raw string) (ID, error) {
	switch ID(raw) {
	case ReviewGeneration:
		return ID(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, raw)
	}
}

// Config carries optional per-run settings passed through to the agent.
// The core does not interpret it beyond the fields below.
type Config struct {
	// Raw is the caller-supplied configuration blob, passed through opaque.
	Raw json.RawMessage

	// WorkflowID identifies the workflow card the agent reports stage
	// progress into. Nil UUID means no card is attached to this run.
	WorkflowID uuid.UUID

	// SectionConcurrency caps parallel section writing; zero means the
	// agent's default.
	SectionConcurrency int
}

// Metadata describes a registered agent for discovery endpoints.
type Metadata struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Agent is the single capability the orchestrator dispatches on. Execute may
// run arbitrarily long; it reports progress into the task ledger and the
// workflow card as side effects and returns the final structured output.
// Implementations must honor ctx cancellation between units of work.
type Agent interface {
	// Execute runs the agent's pipeline for the given task.
	Execute(ctx context.Context, taskID uuid.UUID, input json.RawMessage, cfg Config) (json.RawMessage, error)

	// Describe exposes static metadata about the agent.
	Describe() Metadata
}
