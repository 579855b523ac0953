package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/persistence/memory"
)

func newTestRequirements(store *memory.Persistence, now time.Time) *Requirements {
	requirements := NewRequirements(store, NewEscalationPolicy(), notifier.NewLogNotifier(testLogger()), testLogger())

	return requirements.WithClock(func() time.Time { return now })
}

func TestRequirements_Create_Defaults(t *testing.T) {
	store := memory.NewPersistence()
	requirements := newTestRequirements(store, time.Now().UTC())

	created, err := requirements.Create(context.Background(), testPrincipal(models.RoleAuditor), &models.DocumentRequirement{
		AuditID:      "audit-1",
		DocumentType: "invoice",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "company-1", created.CompanyID)
	assert.Equal(t, "user-1", created.CreatedBy)
	assert.Equal(t, models.RiskMedium, created.RiskLevel)
	assert.True(t, created.Open())
}

func TestRequirements_Create_RequiresDocumentType(t *testing.T) {
	store := memory.NewPersistence()
	requirements := newTestRequirements(store, time.Now().UTC())

	_, err := requirements.Create(context.Background(), testPrincipal(models.RoleAuditor), &models.DocumentRequirement{AuditID: "audit-1"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestRequirements_Close_Idempotent(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	requirements := newTestRequirements(store, now)
	ctx := context.Background()
	principal := testPrincipal(models.RoleAuditor)

	created, err := requirements.Create(ctx, principal, &models.DocumentRequirement{AuditID: "audit-1", DocumentType: "invoice"})
	require.NoError(t, err)

	closed, err := requirements.Close(ctx, principal, created.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, now, *closed.ClosedAt)

	// Closing again keeps the original timestamp.
	again, err := requirements.Close(ctx, principal, created.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ClosedAt)
	assert.Equal(t, now, *again.ClosedAt)
}

func TestRequirements_Escalate_BumpsLevel(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	requirements := newTestRequirements(store, now)
	ctx := context.Background()

	deadline := now.Add(-24 * time.Hour)
	requirement := &models.DocumentRequirement{
		ID:           "req-1",
		CompanyID:    "company-1",
		DocumentType: "invoice",
		Deadline:     &deadline,
		AutoEscalate: true,
		RiskLevel:    models.RiskMedium,
	}
	require.NoError(t, store.RequirementRepository().Save(ctx, requirement))

	first, err := requirements.Escalate(ctx, requirement, now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Level)
	assert.Equal(t, models.EscalationNotify, first.EscalationType)

	second, err := requirements.Escalate(ctx, requirement, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Level)
	assert.Equal(t, models.EscalationReassign, second.EscalationType)

	reloaded, err := store.RequirementRepository().GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.EscalationLevel)

	escalations, err := store.RequirementRepository().Escalations(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, escalations, 2)
}
