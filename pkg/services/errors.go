// Package services provides the business logic for workflow, submission,
// escalation, and finding operations.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidDecision = errors.New("invalid review decision")

	// Authorization errors (403 Forbidden).
	ErrRoleNotPermitted = errors.New("role not permitted for this step")
	ErrCompanyScope     = errors.New("entity is outside the caller's company scope")

	// Conflict errors (409 Conflict).
	ErrWorkflowTerminal    = errors.New("document workflow is in a terminal state")
	ErrSubmissionTerminal  = errors.New("submission is in a terminal state")
	ErrRequirementClosed   = errors.New("requirement is closed")
	ErrSubmissionNotReady  = errors.New("submission is not awaiting this operation")

	// Precondition errors (412 Precondition Failed).
	ErrOpenActionItems = errors.New("finding has incomplete action items")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewServiceError creates a service error with context.
func NewServiceError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidDecision)
}

// IsAuthorizationError checks if an error should map to HTTP 403.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrRoleNotPermitted) ||
		errors.Is(err, ErrCompanyScope)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowTerminal) ||
		errors.Is(err, ErrSubmissionTerminal) ||
		errors.Is(err, ErrRequirementClosed) ||
		errors.Is(err, ErrSubmissionNotReady)
}

// IsPreconditionError checks if an error should map to HTTP 412.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrOpenActionItems)
}
