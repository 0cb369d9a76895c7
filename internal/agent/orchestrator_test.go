package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent implements Agent with a configurable execute function.
type stubAgent struct {
	name   string
	execFn func(ctx context.Context, taskID uuid.UUID, input json.RawMessage, cfg Config) (json.RawMessage, error)
}

func (s *stubAgent) Execute(
	ctx context.Context,
	taskID uuid.UUID,
	input json.RawMessage,
	cfg Config,
) (json.RawMessage, error) {
	if s.execFn != nil {
		return s.execFn(ctx, taskID, input, cfg)
	}
	return json.RawMessage(`{}`), nil
}

func (s *stubAgent) Describe() Metadata {
	return Metadata{Name: s.name, Description: "stub agent for tests"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id, err := ParseID("review_generation")
	require.NoError(t, err)
	assert.Equal(t, ReviewGeneration, id)

	_, err = ParseID("world_domination")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(0, testLogger())

	require.NoError(t, o.Register(ReviewGeneration, &stubAgent{name: "first"}))
	err := o.Register(ReviewGeneration, &stubAgent{name: "second"})
	assert.ErrorIs(t, err, ErrAgentAlreadyRegistered)
}

func TestExecuteTaskUnknownAgent(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(0, testLogger())

	_, err := o.ExecuteTask(context.Background(), uuid.New(), ReviewGeneration, nil, Config{})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestExecuteTaskPassesThroughOutputAndError(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(0, testLogger())

	want := json.RawMessage(`{"document":"done"}`)
	require.NoError(t, o.Register(ReviewGeneration, &stubAgent{
		name: "review",
		execFn: func(_ context.Context, _ uuid.UUID, _ json.RawMessage, _ Config) (json.RawMessage, error) {
			return want, nil
		},
	}))

	got, err := o.ExecuteTask(context.Background(), uuid.New(), ReviewGeneration, nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	failing := NewOrchestrator(0, testLogger())
	boom := errors.New("pipeline exploded")
	require.NoError(t, failing.Register(ReviewGeneration, &stubAgent{
		name: "review",
		execFn: func(_ context.Context, _ uuid.UUID, _ json.RawMessage, _ Config) (json.RawMessage, error) {
			return nil, boom
		},
	}))

	_, err = failing.ExecuteTask(context.Background(), uuid.New(), ReviewGeneration, nil, Config{})
	assert.ErrorIs(t, err, boom, "orchestrator re-returns agent errors unchanged")
}

func TestExecuteTaskBoundsDuration(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(20*time.Millisecond, testLogger())

	require.NoError(t, o.Register(ReviewGeneration, &stubAgent{
		name: "stalled",
		execFn: func(ctx context.Context, _ uuid.UUID, _ json.RawMessage, _ Config) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	start := time.Now()
	_, err := o.ExecuteTask(context.Background(), uuid.New(), ReviewGeneration, nil, Config{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "stalled agent must be cut off by the bound")
}

func TestDescribeListsRegisteredAgents(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(0, testLogger())
	require.NoError(t, o.Register(ReviewGeneration, &stubAgent{name: "review"}))

	all := o.Describe()
	require.Len(t, all, 1)
	assert.Equal(t, "review", all[ReviewGeneration].Name)
}
