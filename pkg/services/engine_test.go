package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/persistence"
	"github.com/auditflow/auditflow/pkg/persistence/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPrincipal(role models.Role) models.Principal {
	return models.Principal{UserID: "user-1", Role: role, CompanyID: "company-1"}
}

// seedWorkflow stores a two-step template (manager then admin, one hour each)
// and the document it will run against.
func seedWorkflow(t *testing.T, store *memory.Persistence) *models.Workflow {
	t.Helper()

	ctx := context.Background()

	workflow := &models.Workflow{
		ID:        "wf-1",
		Name:      "invoice approval",
		CompanyID: "company-1",
		Steps: []models.WorkflowStep{
			{StepNumber: 1, Action: "review", RoleRequired: models.RoleManager, TimeoutHours: 1},
			{StepNumber: 2, Action: "sign-off", RoleRequired: models.RoleAdmin, TimeoutHours: 1},
		},
	}
	require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

	doc := &models.DocumentRef{ID: "doc-1", Title: "Q1 invoice", FileType: "pdf", FileSize: 1024, CompanyID: "company-1"}
	require.NoError(t, store.DocumentRepository().SaveDocument(ctx, doc))

	return workflow
}

func newTestEngine(store *memory.Persistence, now time.Time) *Engine {
	engine := NewEngine(store, NewEscalationPolicy(), notifier.NewLogNotifier(testLogger()), testLogger())

	return engine.WithClock(func() time.Time { return now })
}

func TestEngine_Start_SnapshotsTemplate(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	engine := newTestEngine(store, now)

	instance, err := engine.Start(context.Background(), testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceInProgress, instance.Status)
	assert.Equal(t, 1, instance.CurrentStep)
	assert.Len(t, instance.Steps, 2)

	require.NotNil(t, instance.TimeoutAt)
	assert.Equal(t, now.Add(time.Hour), *instance.TimeoutAt)

	// Template edits after start must not leak into the running instance.
	workflow.Steps = workflow.Steps[:1]
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), workflow))

	reloaded, err := engine.Get(context.Background(), testPrincipal(models.RoleManager), instance.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Steps, 2)
}

func TestEngine_Start_RejectsCrossCompany(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	engine := newTestEngine(store, time.Now().UTC())

	other := models.Principal{UserID: "user-9", Role: models.RoleAdmin, CompanyID: "company-2"}

	_, err := engine.Start(context.Background(), other, workflow.ID, "doc-1")
	require.Error(t, err)
	assert.True(t, IsAuthorizationError(err))
}

func TestEngine_Advance_ThroughCompletion(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	engine := newTestEngine(store, now)
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	instance, err = engine.Advance(ctx, testPrincipal(models.RoleManager), instance.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, 2, instance.CurrentStep)
	assert.Equal(t, models.InstanceInProgress, instance.Status)

	require.NotNil(t, instance.TimeoutAt)
	assert.Equal(t, now.Add(time.Hour), *instance.TimeoutAt)

	instance, err = engine.Advance(ctx, testPrincipal(models.RoleAdmin), instance.ID, "signed")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceCompleted, instance.Status)
	assert.Nil(t, instance.TimeoutAt)
	require.NotNil(t, instance.CompletedAt)

	history, err := engine.History(ctx, testPrincipal(models.RoleAdmin), instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].Sequence)
	assert.Equal(t, int64(2), history[1].Sequence)
	assert.Equal(t, models.HistoryCompleted, history[0].Status)
	assert.Equal(t, "looks good", history[0].Notes)
}

func TestEngine_Advance_RoleNotPermitted(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	engine := newTestEngine(store, time.Now().UTC())
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	_, err = engine.Advance(ctx, testPrincipal(models.RoleEmployee), instance.ID, "")
	require.Error(t, err)
	assert.True(t, IsAuthorizationError(err))
}

func TestEngine_Advance_AdminActsForAnyRole(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	engine := newTestEngine(store, time.Now().UTC())
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleAdmin), workflow.ID, "doc-1")
	require.NoError(t, err)

	instance, err = engine.Advance(ctx, testPrincipal(models.RoleAdmin), instance.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, instance.CurrentStep)
}

func TestEngine_Advance_TerminalInstance(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	engine := newTestEngine(store, time.Now().UTC())
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	_, err = engine.Reject(ctx, testPrincipal(models.RoleManager), instance.ID, "incomplete")
	require.NoError(t, err)

	_, err = engine.Advance(ctx, testPrincipal(models.RoleAdmin), instance.ID, "")
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestEngine_Reject_IsTerminal(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	engine := newTestEngine(store, now)
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	rejected, err := engine.Reject(ctx, testPrincipal(models.RoleManager), instance.ID, "missing attachments")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceRejected, rejected.Status)
	assert.Equal(t, "user-1", rejected.RejectedBy)
	assert.Nil(t, rejected.TimeoutAt)

	history, err := engine.History(ctx, testPrincipal(models.RoleManager), instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryRejected, history[0].Status)
	assert.Equal(t, "missing attachments", history[0].Notes)
}

func TestEngine_SweepTimeouts_MarksExpired(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	engine := newTestEngine(store, started)
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	sweepAt := started.Add(2 * time.Hour)

	results, err := engine.SweepTimeouts(ctx, sweepAt, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.InstanceTimedOut, results[0].Instance.Status)

	// The first timeout starts the ladder at level 1 with a notification.
	assert.Equal(t, 1, results[0].Escalation.Level)
	assert.Equal(t, models.EscalationNotify, results[0].Escalation.Type)

	history, err := engine.History(ctx, testPrincipal(models.RoleManager), instance.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryTimedOut, history[0].Status)
	assert.Equal(t, "scheduler", history[0].PerformedBy)
}

func TestEngine_SweepTimeouts_Rerunnable(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	engine := newTestEngine(store, started)
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	sweepAt := started.Add(2 * time.Hour)

	results, err := engine.SweepTimeouts(ctx, sweepAt, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// A second sweep over the same dataset finds nothing to do.
	results, err = engine.SweepTimeouts(ctx, sweepAt, 100)
	require.NoError(t, err)
	assert.Empty(t, results)

	history, err := engine.History(ctx, testPrincipal(models.RoleManager), instance.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestEngine_ConcurrentAdvance_OneWinner(t *testing.T) {
	store := memory.NewPersistence()
	workflow := seedWorkflow(t, store)
	engine := newTestEngine(store, time.Now().UTC())
	ctx := context.Background()

	instance, err := engine.Start(ctx, testPrincipal(models.RoleManager), workflow.ID, "doc-1")
	require.NoError(t, err)

	const attempts = 8

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses []error
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := engine.Advance(ctx, testPrincipal(models.RoleManager), instance.ID, "")

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				wins++
			} else {
				losses = append(losses, err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one racer may complete step 1")
	require.Len(t, losses, attempts-1)

	// Losers either hit the stale-state guard or read the post-advance state,
	// where step 2 demands a role the racers lack.
	for _, err := range losses {
		assert.True(t, persistence.IsStaleState(err) || IsAuthorizationError(err), "unexpected error: %v", err)
	}

	history, err := engine.History(ctx, testPrincipal(models.RoleManager), instance.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
