package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/store"
)

// reporter carries one stage's progress accounting: its reserved slice
// [base, base+span) of the task's overall progress and the workflow card
// step it maps to. Reporting failures are logged and swallowed; progress
// bookkeeping must never take a pipeline down.
type reporter struct {
	pipeline    *ReviewPipeline
	taskID      uuid.UUID
	workflowID  uuid.UUID
	stageName   string
	base        float64
	span        float64
	concurrency int
}

// stageStarted marks the ledger's current step and flips the workflow card
// step to running.
func (r *reporter) stageStarted(ctx context.Context, _ *State) {
	step := r.stageName
	if _, err := r.pipeline.ledger.Update(ctx, r.taskID, store.TaskPatch{
		CurrentStep: &step,
	}); err != nil {
		r.pipeline.logger.Warn("failed to report stage start to ledger",
			"task_id", r.taskID, "stage", r.stageName, "error", err)
	}

	if r.workflowID == uuid.Nil {
		return
	}
	if _, err := r.pipeline.workflows.UpdateProgress(
		ctx, r.workflowID, r.stageName, 0, domain.WorkflowStepRunning, nil,
	); err != nil {
		r.pipeline.logger.Warn("failed to report stage start to workflow",
			"workflow_id", r.workflowID, "stage", r.stageName, "error", err)
	}
}

// stageCompleted reports the stage's terminal progress to both sinks. A
// degraded stage still completes its card step, carrying the outcome in the
// step result so the card shows what fell back.
func (r *reporter) stageCompleted(ctx context.Context, state *State, index int) {
	progress := r.base + r.span
	completed := index + 1
	if _, err := r.pipeline.ledger.Update(ctx, r.taskID, store.TaskPatch{
		ProgressPercentage: &progress,
		StepsCompleted:     &completed,
	}); err != nil {
		r.pipeline.logger.Warn("failed to report stage completion to ledger",
			"task_id", r.taskID, "stage", r.stageName, "error", err)
	}

	if r.workflowID == uuid.Nil {
		return
	}

	var result json.RawMessage
	if outcome, ok := state.Outcomes[r.stageName]; ok {
		if encoded, err := json.Marshal(outcome); err == nil {
			result = encoded
		}
	}

	if _, err := r.pipeline.workflows.UpdateProgress(
		ctx, r.workflowID, r.stageName, 100, domain.WorkflowStepCompleted, result,
	); err != nil {
		r.pipeline.logger.Warn("failed to report stage completion to workflow",
			"workflow_id", r.workflowID, "stage", r.stageName, "error", err)
	}
}

// sectionProgress reports progress inside a stage that partitions its
// reserved span across an internal loop: after section i of n, overall task
// progress is base + (i/n)*span and the card step sits at (i/n)*100.
func (r *reporter) sectionProgress(ctx context.Context, done, total int) {
	if total <= 0 {
		return
	}

	fraction := float64(done) / float64(total)
	progress := r.base + fraction*r.span
	step := fmt.Sprintf("%s (%d/%d)", r.stageName, done, total)
	if _, err := r.pipeline.ledger.Update(ctx, r.taskID, store.TaskPatch{
		ProgressPercentage: &progress,
		CurrentStep:        &step,
	}); err != nil {
		r.pipeline.logger.Warn("failed to report section progress to ledger",
			"task_id", r.taskID, "stage", r.stageName, "error", err)
	}

	if r.workflowID == uuid.Nil {
		return
	}
	if _, err := r.pipeline.workflows.UpdateProgress(
		ctx, r.workflowID, r.stageName, fraction*100, domain.WorkflowStepRunning, nil,
	); err != nil {
		r.pipeline.logger.Warn("failed to report section progress to workflow",
			"workflow_id", r.workflowID, "stage", r.stageName, "error", err)
	}
}
