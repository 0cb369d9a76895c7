package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/athenus/review-api/internal/api/middleware"
	"github.com/athenus/review-api/internal/api/shared"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/workflow"
)

// WorkflowHandler serves the workflow card projections. Cards are read-mostly
// from the API's point of view; all mutation happens inside the pipeline.
type WorkflowHandler struct {
	service *workflow.Service
	logger  *slog.Logger
}

// NewWorkflowHandler creates a WorkflowHandler over the workflow service.
func NewWorkflowHandler(service *workflow.Service, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		service: service,
		logger:  logger.With("component", "workflow_handler"),
	}
}

// Create handles POST /api/workflows: instantiate a card from its type's
// template without attaching it to a task.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserID(r); !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateWorkflowRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}

	card, err := h.service.CreateCard(
		r.Context(),
		domain.WorkflowType(req.WorkflowType),
		req.Title,
		req.Description,
		req.InputParameters,
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, card)
}

// Get handles GET /api/workflows/{id}: the full card.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	card, ok := h.lookup(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// Status handles GET /api/workflows/{id}/status: the compact projection for
// progress polling.
func (h *WorkflowHandler) Status(w http.ResponseWriter, r *http.Request) {
	card, ok := h.lookup(w, r)
	if !ok {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, WorkflowStatusResponse{
		WorkflowID:      card.ID,
		CurrentStage:    string(card.CurrentStage),
		OverallProgress: card.OverallProgress,
		UpdatedAt:       card.UpdatedAt,
	})
}

// Steps handles GET /api/workflows/{id}/steps: the ordered step list.
func (h *WorkflowHandler) Steps(w http.ResponseWriter, r *http.Request) {
	card, ok := h.lookup(w, r)
	if !ok {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, WorkflowStepsResponse{
		WorkflowID: card.ID,
		Steps:      card.Steps,
	})
}

// Results handles GET /api/workflows/{id}/results: the per-type results
// projection, or a status stub while the workflow is still running.
func (h *WorkflowHandler) Results(w http.ResponseWriter, r *http.Request) {
	card, ok := h.lookup(w, r)
	if !ok {
		return
	}

	results, err := workflow.FormatResults(card)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, results)
}

// lookup authenticates the request, parses the path ID, and fetches the
// card, writing the error response itself on any failure.
func (h *WorkflowHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.WorkflowCard, bool) {
	if _, ok := middleware.GetUserID(r); !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid workflow ID")
		return nil, false
	}

	card, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return nil, false
	}

	return card, true
}
