package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/auditflow/auditflow/pkg/events"
	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/otelhelper"
	"github.com/auditflow/auditflow/pkg/persistence"
)

// Engine drives DocumentWorkflow instances through their step sequence. All
// state changes commit together with their history row; concurrent actors on
// the same instance are serialized by the status-guarded update, the loser
// observes ErrStaleState and must re-fetch.
type Engine struct {
	persistence persistence.Persistence
	escalation  *EscalationPolicy
	notifier    notifier.Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewEngine creates a workflow engine.
func NewEngine(p persistence.Persistence, escalation *EscalationPolicy, n notifier.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		escalation:  escalation,
		notifier:    n,
		logger:      logger.With("module", "engine"),
		tracer:      otel.Tracer("auditflow.engine"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine clock. Tests use this to pin time.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now

	return e
}

// Start creates a DocumentWorkflow instance for a document, snapshotting the
// template's step list so later template edits cannot affect it.
func (e *Engine) Start(ctx context.Context, principal models.Principal, workflowID, documentID string) (*models.DocumentWorkflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.DocumentIDKey, documentID),
		attribute.String(otelhelper.CompanyIDKey, principal.CompanyID),
	)
	defer span.End()

	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if workflow.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Start", "company_scope", "workflow belongs to another company", ErrCompanyScope)
	}

	err = workflow.Validate()
	if err != nil {
		return nil, NewServiceError("Start", "invalid_workflow", err.Error(), ErrInvalidRequest)
	}

	doc, err := e.persistence.DocumentRepository().DocumentByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Start", "company_scope", "document belongs to another company", ErrCompanyScope)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate instance ID: %w", err)
	}

	instance := models.NewDocumentWorkflow(id.String(), workflow, documentID, e.now())

	err = e.persistence.DocumentWorkflowRepository().Create(ctx, instance)
	if err != nil {
		return nil, err
	}

	e.notifier.Notify(ctx, instance.ID, events.WorkflowStarted{
		BaseEvent:          e.baseEvent(events.WorkflowStartedEvent, instance.CompanyID),
		DocumentWorkflowID: instance.ID,
		WorkflowID:         instance.WorkflowID,
		DocumentID:         instance.DocumentID,
		TotalSteps:         len(instance.Steps),
	})

	e.logger.InfoContext(ctx, "document workflow started",
		"document_workflow_id", instance.ID, "document_id", documentID, "steps", len(instance.Steps))

	return instance, nil
}

// Get returns a workflow instance scoped to the caller's company.
func (e *Engine) Get(ctx context.Context, principal models.Principal, instanceID string) (*models.DocumentWorkflow, error) {
	instance, err := e.persistence.DocumentWorkflowRepository().GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Get", "company_scope", "instance belongs to another company", ErrCompanyScope)
	}

	return instance, nil
}

// History returns the execution history of an instance in replay order.
func (e *Engine) History(ctx context.Context, principal models.Principal, instanceID string) ([]*models.ExecutionHistoryEntry, error) {
	_, err := e.Get(ctx, principal, instanceID)
	if err != nil {
		return nil, err
	}

	return e.persistence.DocumentWorkflowRepository().History(ctx, instanceID)
}

// Advance completes the current step on behalf of the performer. On the last
// step the instance transitions to completed; otherwise the current step
// increments and the deadline is recomputed from the next step's timeout.
func (e *Engine) Advance(ctx context.Context, principal models.Principal, instanceID, notes string) (*models.DocumentWorkflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
		attribute.String(otelhelper.DocumentWorkflowIDKey, instanceID),
	)
	defer span.End()

	instance, err := e.Get(ctx, principal, instanceID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int(otelhelper.StepNumberKey, instance.CurrentStep))

	if instance.Status.Terminal() {
		return nil, NewServiceError("Advance", "terminal", "instance already "+string(instance.Status), ErrWorkflowTerminal)
	}

	step, ok := instance.ActiveStep()
	if !ok {
		return nil, NewServiceError("Advance", "invalid_step", "current step missing from snapshot", ErrInvalidRequest)
	}

	if !e.permitted(principal.Role, step.RoleRequired) {
		return nil, NewServiceError("Advance", "role", "performer lacks role "+string(step.RoleRequired), ErrRoleNotPermitted)
	}

	now := e.now()
	completedStep := instance.CurrentStep

	entry := &models.ExecutionHistoryEntry{
		StepNumber:  completedStep,
		Action:      step.Action,
		PerformedBy: principal.UserID,
		PerformedAt: now,
		Notes:       notes,
		Status:      models.HistoryCompleted,
	}

	if instance.OnLastStep() {
		instance.Status = models.InstanceCompleted
		instance.CompletedAt = &now
		instance.TimeoutAt = nil
	} else {
		instance.CurrentStep++

		next, ok := instance.ActiveStep()
		if !ok {
			return nil, NewServiceError("Advance", "invalid_step", "next step missing from snapshot", ErrInvalidRequest)
		}

		deadline := now.Add(next.Timeout())
		instance.TimeoutAt = &deadline
	}

	err = e.persistence.DocumentWorkflowRepository().Transition(ctx, instance, models.InstanceInProgress, entry)
	if err != nil {
		return nil, err
	}

	if instance.Status == models.InstanceCompleted {
		e.notifier.Notify(ctx, instance.ID, events.WorkflowCompleted{
			BaseEvent:          e.baseEvent(events.WorkflowCompletedEvent, instance.CompanyID),
			DocumentWorkflowID: instance.ID,
			DocumentID:         instance.DocumentID,
			PerformedBy:        principal.UserID,
			Duration:           now.Sub(instance.StartedAt),
		})
	} else {
		e.notifier.Notify(ctx, instance.ID, events.StepAdvanced{
			BaseEvent:          e.baseEvent(events.StepAdvancedEvent, instance.CompanyID),
			DocumentWorkflowID: instance.ID,
			CompletedStep:      completedStep,
			NextStep:           instance.CurrentStep,
			PerformedBy:        principal.UserID,
		})
	}

	e.logger.InfoContext(ctx, "workflow step advanced",
		"document_workflow_id", instance.ID, "completed_step", completedStep, "status", instance.Status)

	return instance, nil
}

// Reject terminates the instance. Terminal and irreversible.
func (e *Engine) Reject(ctx context.Context, principal models.Principal, instanceID, notes string) (*models.DocumentWorkflow, error) {
	instance, err := e.Get(ctx, principal, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.Status.Terminal() {
		return nil, NewServiceError("Reject", "terminal", "instance already "+string(instance.Status), ErrWorkflowTerminal)
	}

	step, ok := instance.ActiveStep()
	if !ok {
		return nil, NewServiceError("Reject", "invalid_step", "current step missing from snapshot", ErrInvalidRequest)
	}

	if !e.permitted(principal.Role, step.RoleRequired) {
		return nil, NewServiceError("Reject", "role", "performer lacks role "+string(step.RoleRequired), ErrRoleNotPermitted)
	}

	now := e.now()

	entry := &models.ExecutionHistoryEntry{
		StepNumber:  instance.CurrentStep,
		Action:      step.Action,
		PerformedBy: principal.UserID,
		PerformedAt: now,
		Notes:       notes,
		Status:      models.HistoryRejected,
	}

	instance.Status = models.InstanceRejected
	instance.RejectedBy = principal.UserID
	instance.RejectedAt = &now
	instance.TimeoutAt = nil

	err = e.persistence.DocumentWorkflowRepository().Transition(ctx, instance, models.InstanceInProgress, entry)
	if err != nil {
		return nil, err
	}

	e.notifier.Notify(ctx, instance.ID, events.WorkflowRejected{
		BaseEvent:          e.baseEvent(events.WorkflowRejectedEvent, instance.CompanyID),
		DocumentWorkflowID: instance.ID,
		DocumentID:         instance.DocumentID,
		RejectedBy:         principal.UserID,
		StepNumber:         entry.StepNumber,
		Reason:             notes,
	})

	e.logger.InfoContext(ctx, "workflow rejected",
		"document_workflow_id", instance.ID, "rejected_by", principal.UserID)

	return instance, nil
}

// SweepResult reports one instance handled by a timeout sweep.
type SweepResult struct {
	Instance   *models.DocumentWorkflow
	Escalation EscalationDecision
}

// SweepTimeouts transitions every in-progress instance whose deadline passed
// to timed_out, capped at limit. Instances that lost their guard to a racing
// advance are skipped, so a re-run over the same dataset is a no-op.
func (e *Engine) SweepTimeouts(ctx context.Context, now time.Time, limit int) ([]SweepResult, error) {
	expired, err := e.persistence.DocumentWorkflowRepository().ListTimedOut(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(expired))

	for _, instance := range expired {
		step, ok := instance.ActiveStep()
		if !ok {
			e.logger.WarnContext(ctx, "skipping instance with invalid step snapshot",
				"document_workflow_id", instance.ID, "current_step", instance.CurrentStep)

			continue
		}

		deadline := now
		if instance.TimeoutAt != nil {
			deadline = *instance.TimeoutAt
		}

		entry := &models.ExecutionHistoryEntry{
			StepNumber:  instance.CurrentStep,
			Action:      step.Action,
			PerformedBy: "scheduler",
			PerformedAt: now,
			Notes:       "step deadline expired",
			Status:      models.HistoryTimedOut,
		}

		instance.Status = models.InstanceTimedOut
		instance.TimeoutAt = nil

		// Count prior timeouts before the transition appends this one, so
		// the first timeout escalates at level 1.
		priorTimeouts := e.timeoutCount(ctx, instance.ID)

		err := e.persistence.DocumentWorkflowRepository().Transition(ctx, instance, models.InstanceInProgress, entry)
		if err != nil {
			if errors.Is(err, persistence.ErrStaleState) {
				// A concurrent advance or another sweep won the race.
				continue
			}

			return results, err
		}

		decision := e.escalation.DecideStepTimeout(step, priorTimeouts, now)

		e.notifier.Notify(ctx, instance.ID, events.WorkflowTimedOut{
			BaseEvent:          e.baseEvent(events.WorkflowTimedOutEvent, instance.CompanyID),
			DocumentWorkflowID: instance.ID,
			DocumentID:         instance.DocumentID,
			StepNumber:         entry.StepNumber,
			Deadline:           deadline,
		})

		e.logger.InfoContext(ctx, "workflow timed out",
			"document_workflow_id", instance.ID, "step", entry.StepNumber, "escalation", decision.Type)

		results = append(results, SweepResult{Instance: instance, Escalation: decision})
	}

	return results, nil
}

// timeoutCount returns how many timeout rows the instance already carries,
// feeding the escalation level.
func (e *Engine) timeoutCount(ctx context.Context, instanceID string) int {
	history, err := e.persistence.DocumentWorkflowRepository().History(ctx, instanceID)
	if err != nil {
		return 0
	}

	count := 0

	for _, entry := range history {
		if entry.Status == models.HistoryTimedOut {
			count++
		}
	}

	return count
}

func (e *Engine) permitted(actual, required models.Role) bool {
	return actual == required || actual == models.RoleAdmin
}

func (e *Engine) baseEvent(eventType events.EventType, companyID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: e.now(),
		CompanyID: companyID,
	}
}
