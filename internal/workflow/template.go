// Package workflow implements the UI-facing workflow state machine: fixed
// per-type step templates, stage derivation, and progress aggregation over
// workflow cards.
package workflow

import (
	"fmt"

	"github.com/athenus/review-api/internal/domain"
)

// StepTemplate is one entry of a workflow type's fixed step list, tagged
// with the coarse stage it belongs to.
type StepTemplate struct {
	Name        string
	Description string
	Stage       domain.WorkflowStage
}

// reviewGenerationSteps is the fixed, ordered template for the
// review-generation workflow. Step order is execution order.
var reviewGenerationSteps = []StepTemplate{
	{"search_strategy", "Derive search queries and inclusion criteria from the topic", domain.StageInitializing},
	{"paper_collection", "Query academic databases and collect candidate papers", domain.StagePaperCollection},
	{"quality_validation", "Filter collected papers for metadata completeness and relevance", domain.StageQualityValidation},
	{"paper_analysis", "Summarize themes, methods, and findings across the corpus", domain.StageAnalysis},
	{"structure_design", "Design the section outline of the review", domain.StageStructureDesign},
	{"content_writing", "Write each section of the review", domain.StageContentWriting},
	{"quality_review", "Critique the draft for coverage and coherence", domain.StageQualityReview},
	{"finalization", "Assemble the final document with references", domain.StageFinalization},
}

// templates maps each workflow type to its step template.
var templates = map[domain.WorkflowType][]StepTemplate{
	domain.WorkflowTypeReviewGeneration: reviewGenerationSteps,
}

// Template returns the step template for a workflow type.
// Returns domain.ErrInvalidWorkflowType for unknown types.
func Template(workflowType domain.WorkflowType) ([]StepTemplate, error) {
	steps, ok := templates[workflowType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWorkflowType, workflowType)
	}
	return steps, nil
}

// StageForStep maps a step name to its coarse stage within a workflow type.
// The bool result is false when the step name is not part of the template.
func StageForStep(workflowType domain.WorkflowType, stepName string) (domain.WorkflowStage, bool) {
	steps, ok := templates[workflowType]
	if !ok {
		return "", false
	}
	for _, step := range steps {
		if step.Name == stepName {
			return step.Stage, true
		}
	}
	return "", false
}
