package models

import "time"

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FindingStatus is the review lifecycle of a finding.
type FindingStatus string

const (
	FindingOpen     FindingStatus = "open"
	FindingInReview FindingStatus = "in_review"
	FindingResolved FindingStatus = "resolved"
	FindingClosed   FindingStatus = "closed"
)

// RemediationStatus tracks progress on fixing a finding. It cannot reach
// resolved while an incomplete action item exists.
type RemediationStatus string

const (
	RemediationPending    RemediationStatus = "pending"
	RemediationInProgress RemediationStatus = "in_progress"
	RemediationResolved   RemediationStatus = "resolved"
)

// AuditFinding is an identified issue within an audit, raised by a human or
// derived from oracle validation results.
type AuditFinding struct {
	ID                string            `json:"id"`
	AuditID           string            `json:"audit_id"`
	CompanyID         string            `json:"company_id"`
	Title             string            `json:"title" validate:"required"`
	Description       string            `json:"description"`
	Severity          Severity          `json:"severity"`
	Status            FindingStatus     `json:"status"`
	FindingType       string            `json:"finding_type"`
	AIDetected        bool              `json:"ai_detected"`
	AIConfidence      float64           `json:"ai_confidence"`
	RemediationStatus RemediationStatus `json:"remediation_status"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
}

// ActionStatus is the lifecycle of a remediation task.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
)

// ActionItem is a remediation task tied to a finding. Its lifecycle ends at
// completion or when the owning finding is closed.
type ActionItem struct {
	ID            string        `json:"id"`
	FindingID     string        `json:"finding_id"`
	AssignedTo    string        `json:"assigned_to"`
	Description   string        `json:"description" validate:"required"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	Status        ActionStatus  `json:"status"`
	Priority      PriorityLevel `json:"priority"`
	ProgressNotes string        `json:"progress_notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// Overdue reports whether the action item missed its due date.
func (a *ActionItem) Overdue(now time.Time) bool {
	return a.Status != ActionCompleted && a.DueDate != nil && !a.DueDate.After(now)
}
