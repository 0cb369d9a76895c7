package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Orchestrator is a registry of agents keyed by ID. Agents are registered
// once at startup; ExecuteTask resolves the agent and runs it under a
// bounded context so a stalled pipeline cannot hold a task open forever.
type Orchestrator struct {
	mu          sync.RWMutex
	agents      map[ID]Agent
	maxDuration time.Duration
	logger      *slog.Logger
}

// NewOrchestrator creates an empty orchestrator. maxDuration bounds every
// agent execution; zero disables the bound.
func NewOrchestrator(maxDuration time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		agents:      make(map[ID]Agent),
		maxDuration: maxDuration,
		logger:      logger.With("component", "orchestrator"),
	}
}

// Register adds an agent under the given ID.
// Returns ErrAgentAlreadyRegistered if the ID is taken.
func (o *Orchestrator) Register(id ID, agent Agent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.agents[id]; exists {
		return fmt.Errorf("%w: %q", ErrAgentAlreadyRegistered, id)
	}

	o.agents[id] = agent
	o.logger.Info("registered agent", "agent_id", id, "name", agent.Describe().Name)
	return nil
}

// Resolve returns the agent registered under the given ID.
// Returns ErrUnknownAgent if no agent is registered.
func (o *Orchestrator) Resolve(id ID) (Agent, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	agent, ok := o.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}
	return agent, nil
}

// Describe returns metadata for every registered agent, keyed by ID.
func (o *Orchestrator) Describe() map[ID]Metadata {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[ID]Metadata, len(o.agents))
	for id, agent := range o.agents {
		out[id] = agent.Describe()
	}
	return out
}

// ExecuteTask resolves the agent for the given ID and runs it. Errors from
// the agent are logged and returned to the caller unchanged; the
// orchestrator performs no retry.
func (o *Orchestrator) ExecuteTask(
	ctx context.Context,
	taskID uuid.UUID,
	id ID,
	input json.RawMessage,
	cfg Config,
) (json.RawMessage, error) {
	agent, err := o.Resolve(id)
	if err != nil {
		return nil, err
	}

	if o.maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.maxDuration)
		defer cancel()
	}

	log := o.logger.With("task_id", taskID, "agent_id", id)
	log.Info("executing agent")

	output, err := agent.Execute(ctx, taskID, input, cfg)
	if err != nil {
		log.Error("agent execution failed", "error", err)
		return nil, err
	}

	log.Info("agent execution completed")
	return output, nil
}
