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

// Findings manages audit findings and their remediation action items.
type Findings struct {
	persistence persistence.Persistence
	notifier    notifier.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewFindings creates a finding tracker.
func NewFindings(p persistence.Persistence, n notifier.Notifier, logger *slog.Logger) *Findings {
	return &Findings{
		persistence: p,
		notifier:    n,
		logger:      logger.With("module", "findings"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the tracker clock. Tests use this to pin time.
func (f *Findings) WithClock(now func() time.Time) *Findings {
	f.now = now

	return f
}

// CreateFinding raises a finding against an audit, either by a human or
// derived from oracle validation results.
func (f *Findings) CreateFinding(ctx context.Context, principal models.Principal, finding *models.AuditFinding) (*models.AuditFinding, error) {
	if finding.Title == "" {
		return nil, NewServiceError("CreateFinding", "invalid", "finding title is required", ErrInvalidRequest)
	}

	finding.CompanyID = principal.CompanyID
	finding.CreatedBy = principal.UserID

	if finding.Status == "" {
		finding.Status = models.FindingOpen
	}

	if finding.RemediationStatus == "" {
		finding.RemediationStatus = models.RemediationPending
	}

	if finding.Severity == "" {
		finding.Severity = models.SeverityMedium
	}

	err := f.persistence.FindingRepository().SaveFinding(ctx, finding)
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "finding created",
		"finding_id", finding.ID, "audit_id", finding.AuditID, "severity", finding.Severity)

	return finding, nil
}

// FindingFromScore raises an AI-detected finding out of a failed submission
// validation.
func (f *Findings) FindingFromScore(ctx context.Context, principal models.Principal, auditID string, submission *models.DocumentSubmission) (*models.AuditFinding, error) {
	finding := &models.AuditFinding{
		AuditID:      auditID,
		Title:        "submission failed automated validation",
		Description:  "document " + submission.DocumentID + " scored below the compliance bar",
		Severity:     models.SeverityMedium,
		FindingType:  "validation",
		AIDetected:   true,
		AIConfidence: submission.AIValidationScore / 10,
	}

	return f.CreateFinding(ctx, principal, finding)
}

// GetFinding returns a finding scoped to the caller's company.
func (f *Findings) GetFinding(ctx context.Context, principal models.Principal, findingID string) (*models.AuditFinding, error) {
	finding, err := f.persistence.FindingRepository().FindingByID(ctx, findingID)
	if err != nil {
		return nil, err
	}

	if finding.CompanyID != principal.CompanyID {
		return nil, NewServiceError("GetFinding", "company_scope", "finding belongs to another company", ErrCompanyScope)
	}

	return finding, nil
}

// CreateActionItem attaches a remediation task to a finding.
func (f *Findings) CreateActionItem(ctx context.Context, principal models.Principal, item *models.ActionItem) (*models.ActionItem, error) {
	if item.Description == "" {
		return nil, NewServiceError("CreateActionItem", "invalid", "action item description is required", ErrInvalidRequest)
	}

	finding, err := f.GetFinding(ctx, principal, item.FindingID)
	if err != nil {
		return nil, err
	}

	if item.Status == "" {
		item.Status = models.ActionPending
	}

	if item.Priority == "" {
		item.Priority = models.PriorityMedium
	}

	err = f.persistence.FindingRepository().SaveActionItem(ctx, item)
	if err != nil {
		return nil, err
	}

	if finding.RemediationStatus == models.RemediationPending {
		finding.RemediationStatus = models.RemediationInProgress

		err = f.persistence.FindingRepository().SaveFinding(ctx, finding)
		if err != nil {
			return nil, err
		}
	}

	f.logger.InfoContext(ctx, "action item created",
		"action_item_id", item.ID, "finding_id", item.FindingID, "assigned_to", item.AssignedTo)

	return item, nil
}

// CompleteActionItem marks a remediation task as done.
func (f *Findings) CompleteActionItem(ctx context.Context, principal models.Principal, actionItemID, progressNotes string) (*models.ActionItem, error) {
	item, err := f.persistence.FindingRepository().ActionItemByID(ctx, actionItemID)
	if err != nil {
		return nil, err
	}

	_, err = f.GetFinding(ctx, principal, item.FindingID)
	if err != nil {
		return nil, err
	}

	now := f.now()
	item.Status = models.ActionCompleted
	item.CompletedAt = &now

	if progressNotes != "" {
		item.ProgressNotes = progressNotes
	}

	err = f.persistence.FindingRepository().SaveActionItem(ctx, item)
	if err != nil {
		return nil, err
	}

	return item, nil
}

// ResolveFinding marks a finding's remediation as resolved. While incomplete
// action items remain it refuses, unless cascade is set, in which case the
// open items are explicitly completed first.
func (f *Findings) ResolveFinding(ctx context.Context, principal models.Principal, findingID string, cascade bool) (*models.AuditFinding, error) {
	finding, err := f.GetFinding(ctx, principal, findingID)
	if err != nil {
		return nil, err
	}

	items, err := f.persistence.FindingRepository().ActionItems(ctx, findingID)
	if err != nil {
		return nil, err
	}

	now := f.now()

	for _, item := range items {
		if item.Status == models.ActionCompleted {
			continue
		}

		if !cascade {
			return nil, NewServiceError("ResolveFinding", "open_action_items", "complete or cascade open action items first", ErrOpenActionItems)
		}

		item.Status = models.ActionCompleted
		item.CompletedAt = &now
		item.ProgressNotes = "completed by finding resolution"

		err = f.persistence.FindingRepository().SaveActionItem(ctx, item)
		if err != nil {
			return nil, err
		}
	}

	finding.Status = models.FindingResolved
	finding.RemediationStatus = models.RemediationResolved
	finding.ResolvedAt = &now

	err = f.persistence.FindingRepository().SaveFinding(ctx, finding)
	if err != nil {
		return nil, err
	}

	f.notifier.Notify(ctx, finding.ID, events.FindingResolved{
		BaseEvent: events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      events.FindingResolvedEvent,
			Timestamp: now,
			CompanyID: finding.CompanyID,
		},
		FindingID:  finding.ID,
		ResolvedBy: principal.UserID,
	})

	f.logger.InfoContext(ctx, "finding resolved", "finding_id", finding.ID, "cascade", cascade)

	return finding, nil
}
