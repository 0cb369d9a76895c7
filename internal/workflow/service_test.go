package workflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/store/memory"
)

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(memory.NewWorkflowStore(), logger)
}

func createTestCard(t *testing.T, svc *Service) *domain.WorkflowCard {
	t.Helper()
	card, err := svc.CreateCard(
		context.Background(),
		domain.WorkflowTypeReviewGeneration,
		"Review of retrieval-augmented generation",
		"Literature review over RAG systems",
		json.RawMessage(`{"topic":"retrieval-augmented generation"}`),
	)
	require.NoError(t, err)
	return card
}

func TestCreateCardInstantiatesTemplate(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)

	require.Len(t, card.Steps, 8)
	assert.Equal(t, domain.StageInitializing, card.CurrentStage)
	assert.Equal(t, float64(0), card.OverallProgress)
	for _, step := range card.Steps {
		assert.Equal(t, domain.WorkflowStepPending, step.Status, "step %s", step.Name)
	}
	assert.Equal(t, "search_strategy", card.Steps[0].Name)
	assert.Equal(t, "finalization", card.Steps[7].Name)
}

func TestCreateCardUnknownType(t *testing.T) {
	t.Parallel()
	svc := newTestService()

	_, err := svc.CreateCard(context.Background(), domain.WorkflowType("origami"), "t", "d", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidWorkflowType)
}

func TestUpdateProgressAggregation(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	// Steps 1-6 completed, step 7 (content_writing) running at 50, step 8 pending.
	for _, name := range []string{
		"search_strategy", "paper_collection", "quality_validation",
		"paper_analysis", "structure_design", "quality_review",
	} {
		_, err := svc.UpdateProgress(ctx, card.ID, name, 100, domain.WorkflowStepCompleted, nil)
		require.NoError(t, err)
	}

	updated, err := svc.UpdateProgress(ctx, card.ID, "content_writing", 50, domain.WorkflowStepRunning, nil)
	require.NoError(t, err)

	// (6*100 + 50) / 8 == 81.25
	assert.InDelta(t, 81.25, updated.OverallProgress, 1e-9)
	assert.Equal(t, domain.StageContentWriting, updated.CurrentStage)
}

func TestUpdateProgressUnknownStep(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)

	_, err := svc.UpdateProgress(
		context.Background(), card.ID, "coffee_break", 10, domain.WorkflowStepRunning, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownStep)
}

func TestOverallProgressIsMonotonic(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	updated, err := svc.UpdateProgress(ctx, card.ID, "search_strategy", 80, domain.WorkflowStepRunning, nil)
	require.NoError(t, err)
	before := updated.OverallProgress
	assert.Greater(t, before, float64(0))

	// A would-be regression of a running step's progress must not lower the
	// aggregate.
	updated, err = svc.UpdateProgress(ctx, card.ID, "search_strategy", 10, domain.WorkflowStepRunning, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, updated.OverallProgress, before)

	// Progress stays within [0,100] under arbitrary step inputs.
	updated, err = svc.UpdateProgress(ctx, card.ID, "search_strategy", 250, domain.WorkflowStepRunning, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, updated.OverallProgress, float64(100))
	assert.GreaterOrEqual(t, updated.OverallProgress, float64(0))
}

func TestAllStepsCompletedMeansHundred(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	for _, step := range card.Steps {
		_, err := svc.UpdateProgress(ctx, card.ID, step.Name, 100, domain.WorkflowStepCompleted, nil)
		require.NoError(t, err)
	}

	final, err := svc.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), final.OverallProgress)
}

func TestStageUnchangedWhenNothingRuns(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	_, err := svc.UpdateProgress(ctx, card.ID, "paper_collection", 30, domain.WorkflowStepRunning, nil)
	require.NoError(t, err)

	// Completing the step leaves no running step; the stage goes stale on
	// purpose until the next stage starts.
	updated, err := svc.UpdateProgress(ctx, card.ID, "paper_collection", 100, domain.WorkflowStepCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StagePaperCollection, updated.CurrentStage)
}

func TestCompleteForcesTerminalState(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	_, err := svc.UpdateProgress(ctx, card.ID, "quality_review", 60, domain.WorkflowStepRunning, nil)
	require.NoError(t, err)

	final, err := svc.Complete(ctx, card.ID,
		json.RawMessage(`{"document":"..."}`),
		json.RawMessage(`{"coverage":0.9}`))
	require.NoError(t, err)

	assert.Equal(t, domain.StageCompleted, final.CurrentStage)
	assert.Equal(t, float64(100), final.OverallProgress)
	review := final.FindStep("quality_review")
	require.NotNil(t, review)
	assert.Equal(t, domain.WorkflowStepCompleted, review.Status)
}

func TestFailMarksStepWithoutRollingBack(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	_, err := svc.UpdateProgress(ctx, card.ID, "search_strategy", 100, domain.WorkflowStepCompleted, nil)
	require.NoError(t, err)

	final, err := svc.Fail(ctx, card.ID, "paper_collection", "search backend unreachable")
	require.NoError(t, err)

	assert.Equal(t, domain.StageFailed, final.CurrentStage)

	failed := final.FindStep("paper_collection")
	require.NotNil(t, failed)
	assert.Equal(t, domain.WorkflowStepFailed, failed.Status)
	assert.Equal(t, "search backend unreachable", failed.ErrorMessage)

	completed := final.FindStep("search_strategy")
	require.NotNil(t, completed)
	assert.Equal(t, domain.WorkflowStepCompleted, completed.Status, "completed steps are never rolled back")
}

func TestFormatResults(t *testing.T) {
	t.Parallel()
	svc := newTestService()
	card := createTestCard(t, svc)
	ctx := context.Background()

	// Before completion: a status stub.
	partial, err := FormatResults(card)
	require.NoError(t, err)
	assert.Equal(t, "workflow has not completed yet", partial["message"])

	final, err := svc.Complete(ctx, card.ID,
		json.RawMessage(`{"document":"full text","references":3}`), nil)
	require.NoError(t, err)

	results, err := FormatResults(final)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StageCompleted), results["status"])
	inner, ok := results["results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "full text", inner["document"])
}
