package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/athenus/review-api/internal/domain"
)

// resultFormatters maps workflow types to their presentation shape. Results
// formatting is display plumbing, not core logic; new workflow types add an
// entry here.
var resultFormatters = map[domain.WorkflowType]func(*domain.WorkflowCard) map[string]any{
	domain.WorkflowTypeReviewGeneration: formatReviewResults,
}

// FormatResults projects a card's final results into the per-type response
// shape. Incomplete workflows get a status stub instead of results.
func FormatResults(card *domain.WorkflowCard) (map[string]any, error) {
	if card.CurrentStage != domain.StageCompleted {
		return map[string]any{
			"workflow_id": card.ID,
			"status":      string(card.CurrentStage),
			"message":     "workflow has not completed yet",
		}, nil
	}

	formatter, ok := resultFormatters[card.WorkflowType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidWorkflowType, card.WorkflowType)
	}
	return formatter(card), nil
}

func formatReviewResults(card *domain.WorkflowCard) map[string]any {
	out := map[string]any{
		"workflow_id": card.ID,
		"title":       card.Title,
		"status":      string(domain.StageCompleted),
	}

	if card.FinalResults != nil {
		var results map[string]any
		if err := json.Unmarshal(card.FinalResults, &results); err == nil {
			out["results"] = results
		} else {
			out["results"] = json.RawMessage(card.FinalResults)
		}
	}
	if card.QualityMetrics != nil {
		out["quality_metrics"] = json.RawMessage(card.QualityMetrics)
	}
	return out
}
