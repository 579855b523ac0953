package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepWorkflow() *Workflow {
	return &Workflow{
		ID:        "wf-1",
		Name:      "invoice approval",
		CompanyID: "company-1",
		Steps: []WorkflowStep{
			{StepNumber: 1, Action: "review", RoleRequired: RoleManager, TimeoutHours: 1},
			{StepNumber: 2, Action: "sign-off", RoleRequired: RoleAdmin, TimeoutHours: 1},
		},
	}
}

func TestWorkflow_Validate_Valid(t *testing.T) {
	workflow := twoStepWorkflow()

	assert.NoError(t, workflow.Validate())
}

func TestWorkflow_Validate_NoSteps(t *testing.T) {
	workflow := &Workflow{ID: "wf-1", Name: "empty", CompanyID: "company-1"}

	assert.ErrorIs(t, workflow.Validate(), ErrNoSteps)
}

func TestWorkflow_Validate_GapInStepNumbers(t *testing.T) {
	workflow := twoStepWorkflow()
	workflow.Steps[1].StepNumber = 3

	assert.ErrorIs(t, workflow.Validate(), ErrStepsNotContiguous)
}

func TestWorkflow_Validate_DuplicateStepNumbers(t *testing.T) {
	workflow := twoStepWorkflow()
	workflow.Steps[1].StepNumber = 1

	assert.ErrorIs(t, workflow.Validate(), ErrStepsNotContiguous)
}

func TestWorkflow_Validate_NotStartingAtOne(t *testing.T) {
	workflow := twoStepWorkflow()
	workflow.Steps[0].StepNumber = 2
	workflow.Steps[1].StepNumber = 3

	assert.ErrorIs(t, workflow.Validate(), ErrStepsNotContiguous)
}

func TestWorkflow_Validate_InvalidRole(t *testing.T) {
	workflow := twoStepWorkflow()
	workflow.Steps[0].RoleRequired = Role("intern")

	assert.Error(t, workflow.Validate())
}

func TestWorkflowStep_Timeout_DefaultsTo24Hours(t *testing.T) {
	step := WorkflowStep{StepNumber: 1, Action: "review", RoleRequired: RoleManager}

	assert.Equal(t, DefaultStepTimeout, step.Timeout())
	assert.Equal(t, 24*time.Hour, step.Timeout())
}

func TestWorkflowStep_Timeout_ExplicitHours(t *testing.T) {
	step := WorkflowStep{StepNumber: 1, Action: "review", RoleRequired: RoleManager, TimeoutHours: 48}

	assert.Equal(t, 48*time.Hour, step.Timeout())
}

func TestNewDocumentWorkflow_SnapshotsSteps(t *testing.T) {
	workflow := twoStepWorkflow()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	instance := NewDocumentWorkflow("dw-1", workflow, "doc-1", now)

	require.Len(t, instance.Steps, 2)
	assert.Equal(t, 1, instance.CurrentStep)
	assert.Equal(t, InstanceInProgress, instance.Status)

	require.NotNil(t, instance.TimeoutAt)
	assert.Equal(t, now.Add(time.Hour), *instance.TimeoutAt)

	// Mutating the template after start must not affect the instance.
	workflow.Steps[0].Action = "changed"
	assert.Equal(t, "review", instance.Steps[0].Action)
}

func TestDocumentWorkflow_ActiveStepAndLastStep(t *testing.T) {
	instance := NewDocumentWorkflow("dw-1", twoStepWorkflow(), "doc-1", time.Now().UTC())

	step, ok := instance.ActiveStep()
	require.True(t, ok)
	assert.Equal(t, 1, step.StepNumber)
	assert.False(t, instance.OnLastStep())

	instance.CurrentStep = 2
	assert.True(t, instance.OnLastStep())
}

func TestDocumentWorkflow_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	instance := NewDocumentWorkflow("dw-1", twoStepWorkflow(), "doc-1", now)

	assert.False(t, instance.Expired(now))
	assert.False(t, instance.Expired(now.Add(59*time.Minute)))
	assert.True(t, instance.Expired(now.Add(time.Hour)))

	instance.Status = InstanceCompleted
	assert.False(t, instance.Expired(now.Add(2*time.Hour)))
}

func TestInstanceStatus_Transitions(t *testing.T) {
	assert.True(t, InstanceInProgress.CanTransitionTo(InstanceCompleted))
	assert.True(t, InstanceInProgress.CanTransitionTo(InstanceRejected))
	assert.True(t, InstanceInProgress.CanTransitionTo(InstanceTimedOut))
	assert.True(t, InstanceInProgress.CanTransitionTo(InstanceInProgress))

	for _, terminal := range []InstanceStatus{InstanceCompleted, InstanceRejected, InstanceTimedOut} {
		assert.True(t, terminal.Terminal())
		assert.False(t, terminal.CanTransitionTo(InstanceInProgress))
		assert.False(t, terminal.CanTransitionTo(InstanceCompleted))
	}
}
