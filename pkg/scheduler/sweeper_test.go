package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditflow/auditflow/pkg/eventbus"
	"github.com/auditflow/auditflow/pkg/events"
	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence/memory"
	"github.com/auditflow/auditflow/pkg/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures every published event for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, key string, event eventbus.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, event)
}

func (n *recordingNotifier) ofType(eventType events.EventType) []eventbus.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	matched := make([]eventbus.Event, 0)

	for _, event := range n.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

func newTestSweeper(t *testing.T, store *memory.Persistence, n *recordingNotifier, now time.Time) *Sweeper {
	t.Helper()

	logger := testLogger()
	policy := services.NewEscalationPolicy()
	clock := func() time.Time { return now }

	engine := services.NewEngine(store, policy, n, logger).WithClock(clock)
	requirements := services.NewRequirements(store, policy, n, logger).WithClock(clock)

	sweeper, err := NewSweeper(engine, requirements, store, NewLocalClaimer(), n, logger, Config{})
	require.NoError(t, err)

	return sweeper
}

func TestNewSweeper_RejectsBadCron(t *testing.T) {
	store := memory.NewPersistence()
	logger := testLogger()
	policy := services.NewEscalationPolicy()
	n := &recordingNotifier{}

	engine := services.NewEngine(store, policy, n, logger)
	requirements := services.NewRequirements(store, policy, n, logger)

	_, err := NewSweeper(engine, requirements, store, NewLocalClaimer(), n, logger, Config{CronExpression: "not a cron"})
	require.Error(t, err)
}

func TestSweeper_RunOnce_TimesOutExpiredWorkflow(t *testing.T) {
	store := memory.NewPersistence()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := &recordingNotifier{}
	sweeper := newTestSweeper(t, store, n, started)
	ctx := context.Background()

	workflow := &models.Workflow{
		ID:        "wf-1",
		Name:      "invoice approval",
		CompanyID: "company-1",
		Steps: []models.WorkflowStep{
			{StepNumber: 1, Action: "review", RoleRequired: models.RoleManager, TimeoutHours: 1},
		},
	}
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	instance := models.NewDocumentWorkflow("dw-1", workflow, "doc-1", started)
	require.NoError(t, store.DocumentWorkflowRepository().Create(ctx, instance))

	sweeper.RunOnce(ctx, started.Add(2*time.Hour))

	reloaded, err := store.DocumentWorkflowRepository().GetByID(ctx, "dw-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceTimedOut, reloaded.Status)
	assert.Len(t, n.ofType(events.WorkflowTimedOutEvent), 1)

	// Re-running the same sweep changes nothing.
	sweeper.RunOnce(ctx, started.Add(2*time.Hour))
	assert.Len(t, n.ofType(events.WorkflowTimedOutEvent), 1)
}

func TestSweeper_RunOnce_EscalatesOverdueRequirementOnce(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := &recordingNotifier{}
	sweeper := newTestSweeper(t, store, n, now)
	ctx := context.Background()

	deadline := now.Add(-24 * time.Hour)
	requirement := &models.DocumentRequirement{
		ID:           "req-1",
		AuditID:      "audit-1",
		CompanyID:    "company-1",
		DocumentType: "invoice",
		Deadline:     &deadline,
		AutoEscalate: true,
		RiskLevel:    models.RiskMedium,
	}
	require.NoError(t, store.RequirementRepository().Save(ctx, requirement))

	sweeper.RunOnce(ctx, now)

	escalations, err := store.RequirementRepository().Escalations(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, escalations, 1)
	assert.Equal(t, 1, escalations[0].Level)
	assert.Equal(t, models.EscalationNotify, escalations[0].EscalationType)

	reloaded, err := store.RequirementRepository().GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.EscalationLevel)

	// The claim lease holds within its TTL, so a second sweep is a no-op.
	sweeper.RunOnce(ctx, now.Add(time.Minute))

	escalations, err = store.RequirementRepository().Escalations(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, escalations, 1)
	assert.Len(t, n.ofType(events.RequirementEscalatedEvent), 1)
}

func TestSweeper_RunOnce_SkipsNonEscalatingRequirements(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := &recordingNotifier{}
	sweeper := newTestSweeper(t, store, n, now)
	ctx := context.Background()

	deadline := now.Add(-24 * time.Hour)
	requirement := &models.DocumentRequirement{
		ID:           "req-1",
		CompanyID:    "company-1",
		DocumentType: "invoice",
		Deadline:     &deadline,
		AutoEscalate: false,
	}
	require.NoError(t, store.RequirementRepository().Save(ctx, requirement))

	sweeper.RunOnce(ctx, now)

	escalations, err := store.RequirementRepository().Escalations(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, escalations)
}

func TestSweeper_RunOnce_NotifiesOverdueActionItems(t *testing.T) {
	store := memory.NewPersistence()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := &recordingNotifier{}
	sweeper := newTestSweeper(t, store, n, now)
	ctx := context.Background()

	finding := &models.AuditFinding{ID: "finding-1", AuditID: "audit-1", CompanyID: "company-1", Title: "stale backups"}
	require.NoError(t, store.FindingRepository().SaveFinding(ctx, finding))

	due := now.Add(-time.Hour)
	item := &models.ActionItem{
		ID:          "ai-1",
		FindingID:   "finding-1",
		AssignedTo:  "user-2",
		Description: "restore and verify latest backup",
		DueDate:     &due,
		Status:      models.ActionPending,
	}
	require.NoError(t, store.FindingRepository().SaveActionItem(ctx, item))

	sweeper.RunOnce(ctx, now)
	require.Len(t, n.ofType(events.ActionItemOverdueEvent), 1)

	overdue, ok := n.ofType(events.ActionItemOverdueEvent)[0].(events.ActionItemOverdue)
	require.True(t, ok)
	assert.Equal(t, "ai-1", overdue.ActionItemID)
	assert.Equal(t, "user-2", overdue.AssignedTo)

	// Claimed, so a repeat sweep stays quiet.
	sweeper.RunOnce(ctx, now.Add(time.Minute))
	assert.Len(t, n.ofType(events.ActionItemOverdueEvent), 1)
}

func TestSweeper_StartStop(t *testing.T) {
	store := memory.NewPersistence()
	n := &recordingNotifier{}
	sweeper := newTestSweeper(t, store, n, time.Now().UTC())
	ctx := context.Background()

	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Start(ctx)) // idempotent
	require.NoError(t, sweeper.Stop(ctx))
	require.NoError(t, sweeper.Stop(ctx))
}
