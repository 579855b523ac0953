// Package persistence provides the data storage abstraction layer for
// workflows, submissions, requirements, and findings.
package persistence

import (
	"context"
	"time"

	"github.com/auditflow/auditflow/pkg/models"
)

// WorkflowFilter narrows workflow template listings.
type WorkflowFilter struct {
	CompanyID string
}

// InstanceFilter narrows document workflow listings.
type InstanceFilter struct {
	CompanyID  string
	DocumentID string
	Status     models.InstanceStatus
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	CompanyID     string
	RequirementID string
	Status        models.VerificationStatus
	SubmittedFrom *time.Time
	SubmittedTo   *time.Time
}

// RequirementFilter narrows requirement listings.
type RequirementFilter struct {
	CompanyID string
	AuditID   string
	OnlyOpen  bool
}

// FindingFilter narrows finding listings.
type FindingFilter struct {
	CompanyID string
	AuditID   string
	Status    models.FindingStatus
	Severity  models.Severity
}

// WorkflowRepository stores workflow templates.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, filter WorkflowFilter) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// DocumentWorkflowRepository stores running workflow instances and their
// execution history.
type DocumentWorkflowRepository interface {
	Create(ctx context.Context, instance *models.DocumentWorkflow) error
	GetByID(ctx context.Context, id string) (*models.DocumentWorkflow, error)
	List(ctx context.Context, filter InstanceFilter) ([]*models.DocumentWorkflow, error)

	// Transition commits a state change and its history entry in one
	// transaction, guarded on the instance still holding fromStatus. It
	// returns ErrStaleState when the guard fails.
	Transition(ctx context.Context, instance *models.DocumentWorkflow, fromStatus models.InstanceStatus, entry *models.ExecutionHistoryEntry) error

	// ListTimedOut returns at most limit in-progress instances whose
	// deadline is at or before now, ordered by deadline.
	ListTimedOut(ctx context.Context, now time.Time, limit int) ([]*models.DocumentWorkflow, error)

	History(ctx context.Context, documentWorkflowID string) ([]*models.ExecutionHistoryEntry, error)
}

// RequirementRepository stores document requirements and their escalations.
type RequirementRepository interface {
	Save(ctx context.Context, requirement *models.DocumentRequirement) error
	GetByID(ctx context.Context, id string) (*models.DocumentRequirement, error)
	List(ctx context.Context, filter RequirementFilter) ([]*models.DocumentRequirement, error)

	// ListOverdue returns at most limit open requirements with auto_escalate
	// set whose deadline is at or before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.DocumentRequirement, error)

	SaveEscalation(ctx context.Context, escalation *models.RequirementEscalation) error
	Escalations(ctx context.Context, requirementID string) ([]*models.RequirementEscalation, error)
}

// SubmissionRepository stores document submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.DocumentSubmission) error
	GetByID(ctx context.Context, id string) (*models.DocumentSubmission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]*models.DocumentSubmission, error)

	// UpdateGuarded persists the submission only while the stored row still
	// holds fromStatus, returning ErrStaleState otherwise.
	UpdateGuarded(ctx context.Context, submission *models.DocumentSubmission, fromStatus models.VerificationStatus) error

	// MaxRevisionRound returns the highest revision round recorded for the
	// requirement+document lineage, zero when none exists.
	MaxRevisionRound(ctx context.Context, requirementID, documentID string) (int, error)
}

// FindingRepository stores audit findings and their action items.
type FindingRepository interface {
	SaveFinding(ctx context.Context, finding *models.AuditFinding) error
	FindingByID(ctx context.Context, id string) (*models.AuditFinding, error)
	ListFindings(ctx context.Context, filter FindingFilter) ([]*models.AuditFinding, error)

	SaveActionItem(ctx context.Context, item *models.ActionItem) error
	ActionItemByID(ctx context.Context, id string) (*models.ActionItem, error)
	ActionItems(ctx context.Context, findingID string) ([]*models.ActionItem, error)

	// ListOverdueActionItems returns at most limit incomplete action items
	// whose due date is at or before now.
	ListOverdueActionItems(ctx context.Context, now time.Time, limit int) ([]*models.ActionItem, error)
}

// DocumentRepository resolves document references for scope checks.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc *models.DocumentRef) error
	DocumentByID(ctx context.Context, id string) (*models.DocumentRef, error)
}

// Persistence aggregates the repositories behind one connection lifecycle.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	DocumentWorkflowRepository() DocumentWorkflowRepository
	RequirementRepository() RequirementRepository
	SubmissionRepository() SubmissionRepository
	FindingRepository() FindingRepository
	DocumentRepository() DocumentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
