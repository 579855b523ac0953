//go:build integration
// +build integration

package postgresql

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/persistence"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = testcontainers.TerminateContainer(postgresContainer)
	}

	os.Exit(code)
}

// setupTestDB starts (or reuses) a PostgreSQL container, runs migrations, and
// truncates all tables.
func setupTestDB(t *testing.T) (*Persistence, context.Context) {
	ctx := context.Background()

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error
		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("auditflow_test"),
			postgres.WithUsername("auditflow"),
			postgres.WithPassword("auditflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	cleanupDB(t, databaseURL)

	return p, ctx
}

func cleanupDB(t *testing.T, databaseURL string) {
	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	_, err = db.ExecContext(context.Background(),
		`TRUNCATE TABLE workflow_execution_history, document_workflows, workflow_steps, workflows,
			requirement_escalations, document_submissions, document_requirements,
			action_items, audit_findings, documents`)
	require.NoError(t, err)
}

func seedTemplate(t *testing.T, p *Persistence, ctx context.Context) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:        "wf-1",
		Name:      "invoice approval",
		CompanyID: "company-1",
		Steps: []models.WorkflowStep{
			{StepNumber: 1, Action: "review", RoleRequired: models.RoleManager, TimeoutHours: 1},
			{StepNumber: 2, Action: "sign-off", RoleRequired: models.RoleAdmin, TimeoutHours: 1},
		},
	}
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	return workflow
}

func TestPostgres_WorkflowRoundTrip(t *testing.T) {
	p, ctx := setupTestDB(t)
	workflow := seedTemplate(t, p, ctx)

	loaded, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoice approval", loaded.Name)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, models.RoleManager, loaded.Steps[0].RoleRequired)

	// Replacing the step list on save.
	workflow.Steps = workflow.Steps[:1]
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	loaded, err = p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 1)
}

func TestPostgres_WorkflowNotFound(t *testing.T) {
	p, ctx := setupTestDB(t)

	_, err := p.WorkflowRepository().GetByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))
}

func TestPostgres_TransitionGuard(t *testing.T) {
	p, ctx := setupTestDB(t)
	workflow := seedTemplate(t, p, ctx)

	now := time.Now().UTC().Truncate(time.Microsecond)
	instance := models.NewDocumentWorkflow("dw-1", workflow, "doc-1", now)
	require.NoError(t, p.DocumentWorkflowRepository().Create(ctx, instance))

	advanced := *instance
	advanced.CurrentStep = 2

	entry := &models.ExecutionHistoryEntry{
		StepNumber:  1,
		Action:      "review",
		PerformedBy: "user-1",
		PerformedAt: now,
		Status:      models.HistoryCompleted,
	}

	require.NoError(t, p.DocumentWorkflowRepository().Transition(ctx, &advanced, models.InstanceInProgress, entry))

	// Replaying the same transition loses the guard: the stored row is now on
	// step 2.
	stale := *instance
	stale.CurrentStep = 2

	staleEntry := &models.ExecutionHistoryEntry{
		StepNumber:  1,
		Action:      "review",
		PerformedBy: "user-2",
		PerformedAt: now,
		Status:      models.HistoryCompleted,
	}

	err := p.DocumentWorkflowRepository().Transition(ctx, &stale, models.InstanceInProgress, staleEntry)
	require.Error(t, err)
	assert.True(t, persistence.IsStaleState(err))

	history, err := p.DocumentWorkflowRepository().History(ctx, "dw-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].Sequence)
}

func TestPostgres_ListTimedOut(t *testing.T) {
	p, ctx := setupTestDB(t)
	workflow := seedTemplate(t, p, ctx)

	started := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Microsecond)
	instance := models.NewDocumentWorkflow("dw-1", workflow, "doc-1", started)
	require.NoError(t, p.DocumentWorkflowRepository().Create(ctx, instance))

	expired, err := p.DocumentWorkflowRepository().ListTimedOut(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "dw-1", expired[0].ID)
}

func TestPostgres_SubmissionGuardAndLineage(t *testing.T) {
	p, ctx := setupTestDB(t)

	requirement := &models.DocumentRequirement{
		ID:           "req-1",
		AuditID:      "audit-1",
		CompanyID:    "company-1",
		DocumentType: "invoice",
		RiskLevel:    models.RiskMedium,
	}
	require.NoError(t, p.RequirementRepository().Save(ctx, requirement))

	now := time.Now().UTC().Truncate(time.Microsecond)
	submission := &models.DocumentSubmission{
		ID:                "sub-1",
		RequirementID:     "req-1",
		DocumentID:        "doc-1",
		CompanyID:         "company-1",
		SubmittedBy:       "user-1",
		SubmittedAt:       now,
		VerificationState: models.VerificationPending,
		Stage:             models.StageSubmitted,
		RevisionRound:     1,
		Priority:          models.PriorityMedium,
		UpdatedAt:         now,
	}
	require.NoError(t, p.SubmissionRepository().Create(ctx, submission))

	round, err := p.SubmissionRepository().MaxRevisionRound(ctx, "req-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, round)

	approved := *submission
	approved.VerificationState = models.VerificationApproved
	approved.Stage = models.StageCompleted

	require.NoError(t, p.SubmissionRepository().UpdateGuarded(ctx, &approved, models.VerificationPending))

	// A second guarded update from pending must observe the state change.
	rejected := *submission
	rejected.VerificationState = models.VerificationRejected

	err = p.SubmissionRepository().UpdateGuarded(ctx, &rejected, models.VerificationPending)
	require.Error(t, err)
	assert.True(t, persistence.IsStaleState(err))
}

func TestPostgres_HealthCheck(t *testing.T) {
	p, ctx := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}
