package models

import "time"

// InstanceStatus is the lifecycle state of a running DocumentWorkflow.
type InstanceStatus string

const (
	InstanceInProgress InstanceStatus = "in_progress"
	InstanceCompleted  InstanceStatus = "completed"
	InstanceRejected   InstanceStatus = "rejected"
	InstanceTimedOut   InstanceStatus = "timed_out"
)

// Terminal reports whether the status is absorbing. Terminal instances never
// transition again; operations on them are no-ops or stale-state errors.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceRejected || s == InstanceTimedOut
}

// CanTransitionTo enumerates the legal edges of the instance state machine.
// in_progress may loop (step advance) or move to any terminal state.
func (s InstanceStatus) CanTransitionTo(next InstanceStatus) bool {
	if s != InstanceInProgress {
		return false
	}

	switch next {
	case InstanceInProgress, InstanceCompleted, InstanceRejected, InstanceTimedOut:
		return true
	}

	return false
}

// DocumentWorkflow is a running instance of a workflow bound to exactly one
// document. The template's step list is snapshotted into the instance at start
// so template edits never version-skew a running approval. Instances are a
// historical record and are never deleted.
type DocumentWorkflow struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"document_id"`
	WorkflowID  string         `json:"workflow_id"`
	CompanyID   string         `json:"company_id"`
	Steps       []WorkflowStep `json:"steps"`
	CurrentStep int            `json:"current_step"`
	Status      InstanceStatus `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RejectedBy  string         `json:"rejected_by,omitempty"`
	RejectedAt  *time.Time     `json:"rejected_at,omitempty"`
	TimeoutAt   *time.Time     `json:"timeout_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewDocumentWorkflow starts an instance at step 1 with the step list copied
// out of the template and the first deadline computed from the step timeout.
func NewDocumentWorkflow(id string, workflow *Workflow, documentID string, now time.Time) *DocumentWorkflow {
	steps := make([]WorkflowStep, len(workflow.Steps))
	copy(steps, workflow.Steps)

	instance := &DocumentWorkflow{
		ID:          id,
		DocumentID:  documentID,
		WorkflowID:  workflow.ID,
		CompanyID:   workflow.CompanyID,
		Steps:       steps,
		CurrentStep: 1,
		Status:      InstanceInProgress,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	if step, ok := instance.Step(1); ok {
		deadline := now.Add(step.Timeout())
		instance.TimeoutAt = &deadline
	}

	return instance
}

// Step returns the snapshotted step with the given number.
func (dw *DocumentWorkflow) Step(number int) (WorkflowStep, bool) {
	for _, step := range dw.Steps {
		if step.StepNumber == number {
			return step, true
		}
	}

	return WorkflowStep{}, false
}

// ActiveStep returns the step the instance is currently waiting on.
func (dw *DocumentWorkflow) ActiveStep() (WorkflowStep, bool) {
	return dw.Step(dw.CurrentStep)
}

// OnLastStep reports whether advancing would complete the workflow.
func (dw *DocumentWorkflow) OnLastStep() bool {
	return dw.CurrentStep >= len(dw.Steps)
}

// Expired reports whether the current step deadline has passed.
func (dw *DocumentWorkflow) Expired(now time.Time) bool {
	return dw.Status == InstanceInProgress && dw.TimeoutAt != nil && !dw.TimeoutAt.After(now)
}
