package api

import (
	"errors"
	"net/http"

	"github.com/athenus/review-api/internal/agent"
	"github.com/athenus/review-api/internal/domain"
	"github.com/athenus/review-api/internal/service/auth"
	"github.com/athenus/review-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so handlers
// never leak internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return http.StatusUnauthorized

	// Not found errors. Ownership mismatches surface as the same not-found
	// errors, so non-owners get an indistinguishable 404.
	case store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case store.IsDuplicateError(err):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidWorkflowType),
		errors.Is(err, domain.ErrUnknownStep),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, agent.ErrUnknownAgent):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the error.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrWorkflowNotFound):
		return "Workflow not found"

	case store.IsNotFoundError(err):
		return "Not found"

	case store.IsDuplicateError(err):
		return "Already exists"

	case errors.Is(err, agent.ErrUnknownAgent),
		errors.Is(err, domain.ErrInvalidTaskType):
		return "Unknown task type"

	case errors.Is(err, domain.ErrInvalidWorkflowType):
		return "Unknown workflow type"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
