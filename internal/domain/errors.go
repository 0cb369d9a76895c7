// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTaskType is returned when a task type is not recognized.
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrInvalidTransition is returned when a status change would leave a
	// terminal state or skip an intermediate one.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStepStatus is returned when an agent step status is not valid.
	ErrInvalidStepStatus = errors.New("invalid step status")

	// ErrInvalidStage is returned when a workflow stage is not valid.
	ErrInvalidStage = errors.New("invalid workflow stage")

	// ErrInvalidWorkflowType is returned when a workflow type has no template.
	ErrInvalidWorkflowType = errors.New("invalid workflow type")

	// ErrUnknownStep is returned when a step name does not exist in a
	// workflow card's template.
	ErrUnknownStep = errors.New("unknown workflow step")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
