package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/generation"
	"github.com/athenus/review-api/internal/search"
	"github.com/athenus/review-api/internal/store"
)

// AgentName identifies this pipeline in agent step records.
const AgentName = "review_generation"

// defaultSectionConcurrency caps parallel section writing when neither the
// run config nor the constructor specifies a limit.
const defaultSectionConcurrency = 3

// Ledger is the slice of the task service the pipeline reports into.
// Satisfied by *task.Service.
type Ledger interface {
	Update(ctx context.Context, id uuid.UUID, patch store.TaskPatch) (*domain.TaskRecord, error)
	RecordStep(ctx context.Context, taskID uuid.UUID, agentName, action string, input json.RawMessage) (*domain.AgentStep, error)
	CompleteStep(ctx context.Context, step *domain.AgentStep, output json.RawMessage) error
	FailStep(ctx context.Context, step *domain.AgentStep, cause string) error
}

// Workflows is the slice of the workflow service the pipeline reports into.
// Satisfied by *workflow.Service.
type Workflows interface {
	UpdateProgress(ctx context.Context, id uuid.UUID, stepName string, progress float64, status domain.WorkflowStepStatus, result json.RawMessage) (*domain.WorkflowCard, error)
	Complete(ctx context.Context, id uuid.UUID, finalResults, qualityMetrics json.RawMessage) (*domain.WorkflowCard, error)
}

// Input is the parsed task input for a review-generation run.
type Input struct {
	Topic     string `json:"topic"`
	MaxPapers int    `json:"max_papers,omitempty"`
}

// Output is the final structured result returned to the orchestrator and
// stored on the task record. Outcomes lets callers detect degraded stages:
// a completed task can still carry fallback content, and inspecting the
// overall status alone will not reveal that.
type Output struct {
	Title      string             `json:"title"`
	Document   string             `json:"document"`
	PaperCount int                `json:"paper_count"`
	Sections   int                `json:"sections"`
	Outcomes   map[string]Outcome `json:"outcomes"`
}

// stage is one entry of the fixed execution sequence. fallback installs the
// stage's degraded value when run fails; the driver then continues with the
// next stage.
type stage struct {
	name     string
	run      func(ctx context.Context, st *State, rep *reporter) error
	fallback func(st *State)
}

// ReviewPipeline generates a literature review through a fixed sequence of
// LLM and search calls. It implements agent.Agent.
type ReviewPipeline struct {
	generator          generation.Generator
	searcher           search.Searcher
	ledger             Ledger
	workflows          Workflows
	sectionConcurrency int
	logger             *slog.Logger
}

// New creates a ReviewPipeline with the given collaborators.
func New(
	generator generation.Generator,
	searcher search.Searcher,
	ledger Ledger,
	workflows Workflows,
	sectionConcurrency int,
	logger *slog.Logger,
) *ReviewPipeline {
	if sectionConcurrency <= 0 {
		sectionConcurrency = defaultSectionConcurrency
	}
	return &ReviewPipeline{
		generator:          generator,
		searcher:           searcher,
		ledger:             ledger,
		workflows:          workflows,
		sectionConcurrency: sectionConcurrency,
		logger:             logger.With("component", "review_pipeline"),
	}
}

// Describe implements agent.Agent.
func (p *ReviewPipeline) Describe() agent.Metadata {
	return agent.Metadata{
		Name:        AgentName,
		Description: "Generates a literature review from a research topic",
		Capabilities: []string{
			"academic_search",
			"paper_analysis",
			"long_form_writing",
		},
	}
}

// stages returns the fixed execution sequence. Stage names line up with the
// review-generation workflow template so progress reporting addresses the
// right card steps.
func (p *ReviewPipeline) stages() []stage {
	return []stage{
		{"search_strategy", p.strategize, func(st *State) {
			st.Strategy = &Strategy{Queries: []string{st.Topic}}
		}},
		{"paper_collection", p.collect, func(st *State) {
			st.Papers = []search.Paper{}
		}},
		{"quality_validation", p.validate, func(st *State) {
			st.ValidatedPapers = st.Papers
		}},
		{"paper_analysis", p.analyze, func(st *State) {
			st.Analysis = ""
		}},
		{"structure_design", p.outline, func(st *State) {
			st.Outline = defaultOutline(st.Topic)
		}},
		{"content_writing", p.write, func(st *State) {
			st.Sections = placeholderSections(st.Outline)
		}},
		{"quality_review", p.review, func(st *State) {
			st.Review = ""
		}},
		{"finalization", p.finalize, func(st *State) {
			st.Document = assembleDocument(st)
		}},
	}
}

// Execute implements agent.Agent. It runs every stage in order over one
// shared State. A stage failure degrades that stage and execution continues;
// only context cancellation (owner cancel, shutdown, or the orchestrator's
// execution bound) aborts the sequence.
func (p *ReviewPipeline) Execute(
	ctx context.Context,
	taskID uuid.UUID,
	input json.RawMessage,
	cfg agent.Config,
) (json.RawMessage, error) {
	var parsed Input
	if err := json.Unmarshal(input, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed input: %v", domain.ErrValidation, err)
	}
	if parsed.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", domain.ErrValidation)
	}

	state := NewState(parsed.Topic, parsed.MaxPapers)
	stages := p.stages()

	total := len(stages)
	if _, err := p.ledger.Update(ctx, taskID, store.TaskPatch{TotalSteps: &total}); err != nil {
		p.logger.Warn("failed to record total steps", "task_id", taskID, "error", err)
	}

	concurrency := p.sectionConcurrency
	if cfg.SectionConcurrency > 0 {
		concurrency = cfg.SectionConcurrency
	}

	span := 100.0 / float64(total)
	for i, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rep := &reporter{
			pipeline:    p,
			taskID:      taskID,
			workflowID:  cfg.WorkflowID,
			stageName:   s.name,
			base:        float64(i) * span,
			span:        span,
			concurrency: concurrency,
		}

		p.runStage(ctx, state, s, rep, i)
	}

	output := Output{
		Title:      documentTitle(state),
		Document:   state.Document,
		PaperCount: len(state.ValidatedPapers),
		Sections:   len(state.Sections),
		Outcomes:   state.Outcomes,
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pipeline output: %w", err)
	}

	p.completeWorkflow(ctx, cfg.WorkflowID, state, encoded)

	return encoded, nil
}

// runStage executes one stage inside its local failure boundary: the stage
// either succeeds cleanly or is degraded with its fallback installed, and
// execution proceeds either way. Cancellation is the one exception and is
// re-checked at the top of the driver loop.
func (p *ReviewPipeline) runStage(ctx context.Context, state *State, s stage, rep *reporter, index int) {
	log := p.logger.With("stage", s.name)

	rep.stageStarted(ctx, state)

	step, stepErr := p.ledger.RecordStep(ctx, rep.taskID, AgentName, s.name, nil)
	if stepErr != nil {
		log.Warn("failed to record agent step", "error", stepErr)
	}

	err := s.run(ctx, state, rep)
	if err == nil {
		state.Outcomes[s.name] = OK()
		rep.stageCompleted(ctx, state, index)
		if step != nil {
			if completeErr := p.ledger.CompleteStep(ctx, step, nil); completeErr != nil {
				log.Warn("failed to complete agent step", "error", completeErr)
			}
		}
		return
	}

	if ctx.Err() != nil {
		// Cancellation is not a degraded outcome; the driver loop aborts on
		// the next iteration and leaves the stage unmarked.
		if step != nil {
			_ = p.ledger.FailStep(context.WithoutCancel(ctx), step, ctx.Err().Error())
		}
		return
	}

	log.Warn("stage degraded, continuing with fallback", "error", err)
	if s.fallback != nil {
		s.fallback(state)
	}
	state.Outcomes[s.name] = Degraded(err)

	rep.stageCompleted(ctx, state, index)
	if step != nil {
		if failErr := p.ledger.FailStep(ctx, step, err.Error()); failErr != nil {
			log.Warn("failed to fail agent step", "error", failErr)
		}
	}
}

// completeWorkflow closes out the workflow card with the final results.
func (p *ReviewPipeline) completeWorkflow(ctx context.Context, workflowID uuid.UUID, state *State, results json.RawMessage) {
	if workflowID == uuid.Nil {
		return
	}

	metrics, err := json.Marshal(map[string]any{
		"papers_analyzed": len(state.ValidatedPapers),
		"degraded_stages": state.DegradedStages(),
	})
	if err != nil {
		metrics = nil
	}

	if _, err := p.workflows.Complete(ctx, workflowID, results, metrics); err != nil {
		p.logger.Warn("failed to complete workflow card",
			"workflow_id", workflowID,
			"error", err)
	}
}
