package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auditflow/auditflow/pkg/events"
	"github.com/auditflow/auditflow/pkg/models"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/persistence"
)

// Requirements manages audit document requirements and their escalations.
type Requirements struct {
	persistence persistence.Persistence
	escalation  *EscalationPolicy
	notifier    notifier.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewRequirements creates a requirement service.
func NewRequirements(p persistence.Persistence, escalation *EscalationPolicy, n notifier.Notifier, logger *slog.Logger) *Requirements {
	return &Requirements{
		persistence: p,
		escalation:  escalation,
		notifier:    n,
		logger:      logger.With("module", "requirements"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests use this to pin time.
func (r *Requirements) WithClock(now func() time.Time) *Requirements {
	r.now = now

	return r
}

// Create registers a requirement at audit setup.
func (r *Requirements) Create(ctx context.Context, principal models.Principal, requirement *models.DocumentRequirement) (*models.DocumentRequirement, error) {
	if requirement.DocumentType == "" {
		return nil, NewServiceError("Create", "invalid", "document type is required", ErrInvalidRequest)
	}

	requirement.CompanyID = principal.CompanyID
	requirement.CreatedBy = principal.UserID

	if requirement.RiskLevel == "" {
		requirement.RiskLevel = models.RiskMedium
	}

	err := r.persistence.RequirementRepository().Save(ctx, requirement)
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "requirement created",
		"requirement_id", requirement.ID, "audit_id", requirement.AuditID, "document_type", requirement.DocumentType)

	return requirement, nil
}

// Get returns a requirement scoped to the caller's company.
func (r *Requirements) Get(ctx context.Context, principal models.Principal, requirementID string) (*models.DocumentRequirement, error) {
	requirement, err := r.persistence.RequirementRepository().GetByID(ctx, requirementID)
	if err != nil {
		return nil, err
	}

	if requirement.CompanyID != principal.CompanyID {
		return nil, NewServiceError("Get", "company_scope", "requirement belongs to another company", ErrCompanyScope)
	}

	return requirement, nil
}

// Close stops a requirement from accepting further submissions.
func (r *Requirements) Close(ctx context.Context, principal models.Principal, requirementID string) (*models.DocumentRequirement, error) {
	requirement, err := r.Get(ctx, principal, requirementID)
	if err != nil {
		return nil, err
	}

	if !requirement.Open() {
		return requirement, nil
	}

	now := r.now()
	requirement.ClosedAt = &now

	err = r.persistence.RequirementRepository().Save(ctx, requirement)
	if err != nil {
		return nil, err
	}

	return requirement, nil
}

// Escalate applies the escalation policy to one overdue requirement,
// recording the escalation and bumping the requirement's level.
func (r *Requirements) Escalate(ctx context.Context, requirement *models.DocumentRequirement, now time.Time) (*models.RequirementEscalation, error) {
	decision := r.escalation.DecideRequirementOverdue(requirement, now)

	escalation := &models.RequirementEscalation{
		RequirementID:  requirement.ID,
		Level:          decision.Level,
		EscalationType: decision.Type,
		Reason:         decision.Reason,
		EscalatedAt:    now,
	}

	err := r.persistence.RequirementRepository().SaveEscalation(ctx, escalation)
	if err != nil {
		return nil, err
	}

	requirement.EscalationLevel = decision.Level

	err = r.persistence.RequirementRepository().Save(ctx, requirement)
	if err != nil {
		return nil, err
	}

	r.notifier.Notify(ctx, requirement.ID, events.RequirementEscalated{
		BaseEvent: events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      events.RequirementEscalatedEvent,
			Timestamp: now,
			CompanyID: requirement.CompanyID,
		},
		RequirementID:  requirement.ID,
		EscalationID:   escalation.ID,
		Level:          escalation.Level,
		EscalationType: string(escalation.EscalationType),
		Reason:         escalation.Reason,
	})

	r.logger.InfoContext(ctx, "requirement escalated",
		"requirement_id", requirement.ID, "level", escalation.Level, "type", escalation.EscalationType)

	return escalation, nil
}
