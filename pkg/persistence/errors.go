// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow template was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDocumentWorkflowNotFound indicates a running instance was not found.
	ErrDocumentWorkflowNotFound = errors.New("document workflow not found")

	// ErrRequirementNotFound indicates a document requirement was not found.
	ErrRequirementNotFound = errors.New("requirement not found")

	// ErrSubmissionNotFound indicates a document submission was not found.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrFindingNotFound indicates an audit finding was not found.
	ErrFindingNotFound = errors.New("finding not found")

	// ErrActionItemNotFound indicates a remediation action item was not found.
	ErrActionItemNotFound = errors.New("action item not found")

	// ErrDocumentNotFound indicates a referenced document does not exist or is
	// outside the caller's company scope.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStaleState indicates an optimistic status-guarded update lost a race:
	// the row no longer held the expected status. Callers must re-fetch.
	ErrStaleState = errors.New("stale state: entity changed concurrently")
)

// EntityError wraps persistence errors with operation context.
type EntityError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Transition")
	Entity   string // Entity kind (e.g., "document_workflow")
	EntityID string // Entity ID if applicable
	Err      error  // Underlying error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new entity error with context.
func NewEntityError(op, entity, entityID string, err error) *EntityError {
	return &EntityError{
		Op:       op,
		Entity:   entity,
		EntityID: entityID,
		Err:      err,
	}
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrDocumentWorkflowNotFound) ||
		errors.Is(err, ErrRequirementNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrFindingNotFound) ||
		errors.Is(err, ErrActionItemNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsStaleState checks if an error indicates an optimistic concurrency loss.
func IsStaleState(err error) bool {
	return errors.Is(err, ErrStaleState)
}
