package services

import (
	"fmt"
	"time"

	"github.com/auditflow/auditflow/pkg/models"
)

// EscalationDecision is the policy's verdict for one overdue entity.
type EscalationDecision struct {
	Level      int
	Type       models.EscalationType
	TargetRole models.Role
	Reason     string
}

// EscalationPolicy decides what happens when a step, requirement, or action
// item misses its deadline. The policy is pure with respect to the clock:
// given the same entity state and now, the decision is deterministic.
type EscalationPolicy struct {
	// FreezeLevel is the escalation level at which work is frozen instead
	// of reassigned.
	FreezeLevel int
}

// NewEscalationPolicy creates a policy with the default freeze level.
func NewEscalationPolicy() *EscalationPolicy {
	return &EscalationPolicy{FreezeLevel: 3}
}

// DecideStepTimeout handles a timed-out workflow step. The first timeout
// notifies the owning role, repeats reassign to the superior role, and from
// FreezeLevel on the workflow is frozen for manual intervention.
func (p *EscalationPolicy) DecideStepTimeout(step models.WorkflowStep, priorTimeouts int, now time.Time) EscalationDecision {
	level := priorTimeouts + 1

	decision := EscalationDecision{
		Level:      level,
		TargetRole: step.RoleRequired,
		Reason:     fmt.Sprintf("step %d (%s) missed its deadline at %s", step.StepNumber, step.Action, now.Format(time.RFC3339)),
	}

	switch {
	case level >= p.FreezeLevel:
		decision.Type = models.EscalationFreeze
	case level > 1:
		decision.Type = models.EscalationReassign
		decision.TargetRole = step.RoleRequired.Superior()
	default:
		decision.Type = models.EscalationNotify
	}

	return decision
}

// DecideRequirementOverdue handles an overdue requirement. The escalation
// level increments by one each sweep that finds the requirement still open.
func (p *EscalationPolicy) DecideRequirementOverdue(requirement *models.DocumentRequirement, now time.Time) EscalationDecision {
	level := requirement.EscalationLevel + 1

	decision := EscalationDecision{
		Level:      level,
		TargetRole: models.RoleManager,
		Reason:     fmt.Sprintf("requirement %q overdue since %s", requirement.DocumentType, requirement.Deadline.Format(time.RFC3339)),
	}

	switch {
	case level >= p.FreezeLevel:
		decision.Type = models.EscalationFreeze
	case level > 1 || requirement.RiskLevel == models.RiskCritical:
		decision.Type = models.EscalationReassign
		decision.TargetRole = models.RoleAdmin
	default:
		decision.Type = models.EscalationNotify
	}

	return decision
}

// DecideActionItemOverdue handles an overdue remediation task. Action items
// are never frozen; repeated misses go to the assignee's superior.
func (p *EscalationPolicy) DecideActionItemOverdue(item *models.ActionItem, priorEscalations int, now time.Time) EscalationDecision {
	level := priorEscalations + 1

	decision := EscalationDecision{
		Level:      level,
		TargetRole: models.RoleEmployee,
		Reason:     fmt.Sprintf("action item for finding %s overdue since %s", item.FindingID, item.DueDate.Format(time.RFC3339)),
	}

	if level > 1 || item.Priority == models.PriorityHigh {
		decision.Type = models.EscalationReassign
		decision.TargetRole = models.RoleManager
	} else {
		decision.Type = models.EscalationNotify
	}

	return decision
}
