package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerificationStatus_Transitions(t *testing.T) {
	assert.True(t, VerificationPending.CanTransitionTo(VerificationApproved))
	assert.True(t, VerificationPending.CanTransitionTo(VerificationNeedsRevision))
	assert.True(t, VerificationPending.CanTransitionTo(VerificationRejected))

	// The only back-edge: a new revision round re-enters pending.
	assert.True(t, VerificationNeedsRevision.CanTransitionTo(VerificationPending))
	assert.False(t, VerificationNeedsRevision.CanTransitionTo(VerificationApproved))

	assert.False(t, VerificationApproved.CanTransitionTo(VerificationPending))
	assert.False(t, VerificationRejected.CanTransitionTo(VerificationPending))
}

func TestVerificationStatus_Terminal(t *testing.T) {
	assert.False(t, VerificationPending.Terminal())
	assert.False(t, VerificationNeedsRevision.Terminal())
	assert.True(t, VerificationApproved.Terminal())
	assert.True(t, VerificationRejected.Terminal())
}

func TestReviewDecision_Valid(t *testing.T) {
	assert.True(t, DecisionApprove.Valid())
	assert.True(t, DecisionRequestRevision.Valid())
	assert.True(t, DecisionReject.Valid())
	assert.False(t, ReviewDecision("escalate").Valid())
	assert.False(t, ReviewDecision("").Valid())
}

func TestDocumentRequirement_OpenAndOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := now.Add(-time.Hour)

	requirement := &DocumentRequirement{ID: "req-1", Deadline: &deadline}
	assert.True(t, requirement.Open())
	assert.True(t, requirement.Overdue(now))

	closed := now
	requirement.ClosedAt = &closed
	assert.False(t, requirement.Open())
	assert.False(t, requirement.Overdue(now))

	noDeadline := &DocumentRequirement{ID: "req-2"}
	assert.False(t, noDeadline.Overdue(now))
}

func TestActionItem_Overdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	item := &ActionItem{ID: "ai-1", Status: ActionPending, DueDate: &due}
	assert.True(t, item.Overdue(now))

	item.Status = ActionCompleted
	assert.False(t, item.Overdue(now))

	assert.False(t, (&ActionItem{ID: "ai-2", Status: ActionPending}).Overdue(now))
}

func TestRole_ValidAndReview(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleManager, RoleEmployee, RoleAuditor} {
		assert.True(t, role.Valid())
	}

	assert.False(t, Role("intern").Valid())

	assert.True(t, RoleAuditor.CanReview())
	assert.True(t, RoleManager.CanReview())
	assert.True(t, RoleAdmin.CanReview())
	assert.False(t, RoleEmployee.CanReview())
}

func TestRole_Superior(t *testing.T) {
	assert.Equal(t, RoleManager, RoleEmployee.Superior())
	assert.Equal(t, RoleAdmin, RoleManager.Superior())
	assert.Equal(t, RoleAdmin, RoleAuditor.Superior())
	assert.Equal(t, RoleAdmin, RoleAdmin.Superior())
}
