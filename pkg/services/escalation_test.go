package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/auditflow/auditflow/pkg/models"
)

func TestEscalationPolicy_StepTimeout_Ladder(t *testing.T) {
	policy := NewEscalationPolicy()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	step := models.WorkflowStep{StepNumber: 1, Action: "review", RoleRequired: models.RoleEmployee}

	first := policy.DecideStepTimeout(step, 0, now)
	assert.Equal(t, 1, first.Level)
	assert.Equal(t, models.EscalationNotify, first.Type)
	assert.Equal(t, models.RoleEmployee, first.TargetRole)

	second := policy.DecideStepTimeout(step, 1, now)
	assert.Equal(t, 2, second.Level)
	assert.Equal(t, models.EscalationReassign, second.Type)
	assert.Equal(t, models.RoleManager, second.TargetRole)

	third := policy.DecideStepTimeout(step, 2, now)
	assert.Equal(t, 3, third.Level)
	assert.Equal(t, models.EscalationFreeze, third.Type)
}

func TestEscalationPolicy_RequirementOverdue(t *testing.T) {
	policy := NewEscalationPolicy()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := now.Add(-24 * time.Hour)

	requirement := &models.DocumentRequirement{
		ID:           "req-1",
		DocumentType: "invoice",
		Deadline:     &deadline,
		RiskLevel:    models.RiskMedium,
	}

	first := policy.DecideRequirementOverdue(requirement, now)
	assert.Equal(t, 1, first.Level)
	assert.Equal(t, models.EscalationNotify, first.Type)
	assert.Equal(t, models.RoleManager, first.TargetRole)

	requirement.EscalationLevel = 1

	second := policy.DecideRequirementOverdue(requirement, now)
	assert.Equal(t, 2, second.Level)
	assert.Equal(t, models.EscalationReassign, second.Type)
	assert.Equal(t, models.RoleAdmin, second.TargetRole)

	requirement.EscalationLevel = 2

	third := policy.DecideRequirementOverdue(requirement, now)
	assert.Equal(t, models.EscalationFreeze, third.Type)
}

func TestEscalationPolicy_CriticalRequirementSkipsNotify(t *testing.T) {
	policy := NewEscalationPolicy()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := now.Add(-time.Hour)

	requirement := &models.DocumentRequirement{
		ID:           "req-1",
		DocumentType: "soc2 report",
		Deadline:     &deadline,
		RiskLevel:    models.RiskCritical,
	}

	decision := policy.DecideRequirementOverdue(requirement, now)
	assert.Equal(t, 1, decision.Level)
	assert.Equal(t, models.EscalationReassign, decision.Type)
	assert.Equal(t, models.RoleAdmin, decision.TargetRole)
}

func TestEscalationPolicy_ActionItemNeverFreezes(t *testing.T) {
	policy := NewEscalationPolicy()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)

	item := &models.ActionItem{ID: "ai-1", FindingID: "finding-1", DueDate: &due, Priority: models.PriorityMedium}

	first := policy.DecideActionItemOverdue(item, 0, now)
	assert.Equal(t, models.EscalationNotify, first.Type)

	for priorEscalations := 1; priorEscalations < 10; priorEscalations++ {
		decision := policy.DecideActionItemOverdue(item, priorEscalations, now)
		assert.Equal(t, models.EscalationReassign, decision.Type)
		assert.Equal(t, models.RoleManager, decision.TargetRole)
	}
}

func TestEscalationPolicy_HighPriorityActionItemReassignsImmediately(t *testing.T) {
	policy := NewEscalationPolicy()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)

	item := &models.ActionItem{ID: "ai-1", FindingID: "finding-1", DueDate: &due, Priority: models.PriorityHigh}

	decision := policy.DecideActionItemOverdue(item, 0, now)
	assert.Equal(t, models.EscalationReassign, decision.Type)
}
