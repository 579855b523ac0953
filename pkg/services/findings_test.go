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

func newTestFindings(store *memory.Persistence, now time.Time) *Findings {
	findings := NewFindings(store, notifier.NewLogNotifier(testLogger()), testLogger())

	return findings.WithClock(func() time.Time { return now })
}

func TestFindings_CreateFinding_Defaults(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())

	finding, err := findings.CreateFinding(context.Background(), testPrincipal(models.RoleAuditor), &models.AuditFinding{
		AuditID: "audit-1",
		Title:   "missing access reviews",
	})
	require.NoError(t, err)

	assert.Equal(t, models.FindingOpen, finding.Status)
	assert.Equal(t, models.RemediationPending, finding.RemediationStatus)
	assert.Equal(t, models.SeverityMedium, finding.Severity)
	assert.Equal(t, "company-1", finding.CompanyID)
	assert.Equal(t, "user-1", finding.CreatedBy)
}

func TestFindings_CreateFinding_RequiresTitle(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())

	_, err := findings.CreateFinding(context.Background(), testPrincipal(models.RoleAuditor), &models.AuditFinding{AuditID: "audit-1"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFindings_CreateActionItem_MovesRemediationInProgress(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())
	ctx := context.Background()
	principal := testPrincipal(models.RoleAuditor)

	finding, err := findings.CreateFinding(ctx, principal, &models.AuditFinding{AuditID: "audit-1", Title: "stale backups"})
	require.NoError(t, err)

	item, err := findings.CreateActionItem(ctx, principal, &models.ActionItem{
		FindingID:   finding.ID,
		AssignedTo:  "user-2",
		Description: "restore and verify latest backup",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionPending, item.Status)
	assert.Equal(t, models.PriorityMedium, item.Priority)

	reloaded, err := findings.GetFinding(ctx, principal, finding.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RemediationInProgress, reloaded.RemediationStatus)
}

func TestFindings_ResolveFinding_BlockedByOpenActionItems(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())
	ctx := context.Background()
	principal := testPrincipal(models.RoleAuditor)

	finding, err := findings.CreateFinding(ctx, principal, &models.AuditFinding{AuditID: "audit-1", Title: "stale backups"})
	require.NoError(t, err)

	_, err = findings.CreateActionItem(ctx, principal, &models.ActionItem{
		FindingID:   finding.ID,
		AssignedTo:  "user-2",
		Description: "restore and verify latest backup",
	})
	require.NoError(t, err)

	_, err = findings.ResolveFinding(ctx, principal, finding.ID, false)
	require.Error(t, err)
	assert.True(t, IsPreconditionError(err))
}

func TestFindings_ResolveFinding_AfterCompletion(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	findings := newTestFindings(store, now)
	ctx := context.Background()
	principal := testPrincipal(models.RoleAuditor)

	finding, err := findings.CreateFinding(ctx, principal, &models.AuditFinding{AuditID: "audit-1", Title: "stale backups"})
	require.NoError(t, err)

	item, err := findings.CreateActionItem(ctx, principal, &models.ActionItem{
		FindingID:   finding.ID,
		AssignedTo:  "user-2",
		Description: "restore and verify latest backup",
	})
	require.NoError(t, err)

	completed, err := findings.CompleteActionItem(ctx, principal, item.ID, "verified restore on staging")
	require.NoError(t, err)
	assert.Equal(t, models.ActionCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	resolved, err := findings.ResolveFinding(ctx, principal, finding.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.FindingResolved, resolved.Status)
	assert.Equal(t, models.RemediationResolved, resolved.RemediationStatus)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, now, *resolved.ResolvedAt)
}

func TestFindings_ResolveFinding_CascadeCompletesOpenItems(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())
	ctx := context.Background()
	principal := testPrincipal(models.RoleAuditor)

	finding, err := findings.CreateFinding(ctx, principal, &models.AuditFinding{AuditID: "audit-1", Title: "stale backups"})
	require.NoError(t, err)

	item, err := findings.CreateActionItem(ctx, principal, &models.ActionItem{
		FindingID:   finding.ID,
		AssignedTo:  "user-2",
		Description: "restore and verify latest backup",
	})
	require.NoError(t, err)

	resolved, err := findings.ResolveFinding(ctx, principal, finding.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.FindingResolved, resolved.Status)

	items, err := store.FindingRepository().ActionItems(ctx, finding.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, models.ActionCompleted, items[0].Status)
	assert.Equal(t, "completed by finding resolution", items[0].ProgressNotes)
}

func TestFindings_FindingFromScore(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())

	submission := &models.DocumentSubmission{ID: "sub-1", DocumentID: "doc-1", AIValidationScore: 3.0}

	finding, err := findings.FindingFromScore(context.Background(), testPrincipal(models.RoleAuditor), "audit-1", submission)
	require.NoError(t, err)

	assert.True(t, finding.AIDetected)
	assert.InDelta(t, 0.3, finding.AIConfidence, 0.001)
	assert.Equal(t, "audit-1", finding.AuditID)
}

func TestFindings_GetFinding_CrossCompany(t *testing.T) {
	store := memory.NewPersistence()
	findings := newTestFindings(store, time.Now().UTC())
	ctx := context.Background()

	finding, err := findings.CreateFinding(ctx, testPrincipal(models.RoleAuditor), &models.AuditFinding{AuditID: "audit-1", Title: "stale backups"})
	require.NoError(t, err)

	other := models.Principal{UserID: "user-9", Role: models.RoleAdmin, CompanyID: "company-2"}

	_, err = findings.GetFinding(ctx, other, finding.ID)
	require.Error(t, err)
	assert.True(t, IsAuthorizationError(err))
}
