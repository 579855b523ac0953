// Package models defines the core domain models for document approval and
// audit submission workflows.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DefaultStepTimeout applies when a workflow step has no explicit timeout.
const DefaultStepTimeout = 24 * time.Hour

var (
	// ErrNoSteps indicates a workflow template without any steps.
	ErrNoSteps = errors.New("workflow must have at least one step")

	// ErrStepsNotContiguous indicates step numbers that are not 1..N without gaps.
	ErrStepsNotContiguous = errors.New("workflow step numbers must be contiguous starting at 1")
)

// Workflow is a named, ordered template of approval steps scoped to a company.
// Templates are immutable once a running instance references them: instances
// snapshot the step list at start, so later edits never affect them.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	CompanyID   string         `json:"company_id"  validate:"required"`
	Steps       []WorkflowStep `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is one step of a workflow template, owned by its Workflow.
type WorkflowStep struct {
	StepNumber   int    `json:"step_number"   validate:"min=1"`
	Action       string `json:"action"        validate:"required"`
	RoleRequired Role   `json:"role_required" validate:"required"`
	TimeoutHours int    `json:"timeout_hours" validate:"min=0"`
	IsParallel   bool   `json:"is_parallel"`
}

// Timeout returns the step's timeout duration, falling back to the default
// when no explicit duration is configured.
func (s WorkflowStep) Timeout() time.Duration {
	if s.TimeoutHours <= 0 {
		return DefaultStepTimeout
	}

	return time.Duration(s.TimeoutHours) * time.Hour
}

// Validate checks the template invariant: step numbers are unique and
// contiguous, starting at 1.
func (w *Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return ErrNoSteps
	}

	seen := make(map[int]bool, len(w.Steps))

	for _, step := range w.Steps {
		if step.StepNumber < 1 || step.StepNumber > len(w.Steps) || seen[step.StepNumber] {
			return ErrStepsNotContiguous
		}

		if !step.RoleRequired.Valid() {
			return fmt.Errorf("step %d: invalid role %q", step.StepNumber, step.RoleRequired)
		}

		seen[step.StepNumber] = true
	}

	return nil
}

// Step returns the step with the given number, or false when out of range.
func (w *Workflow) Step(number int) (WorkflowStep, bool) {
	for _, step := range w.Steps {
		if step.StepNumber == number {
			return step, true
		}
	}

	return WorkflowStep{}, false
}
