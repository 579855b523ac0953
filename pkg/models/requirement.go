package models

import "time"

// RiskLevel grades how much audit risk a requirement carries.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// DocumentRequirement is an audit's demand for a specific document type with
// a deadline. Requirements are created at audit setup (or by template
// expansion), mutated by escalation, and never auto-deleted while the audit
// is open.
type DocumentRequirement struct {
	ID                  string         `json:"id"`
	AuditID             string         `json:"audit_id"`
	CompanyID           string         `json:"company_id"`
	DocumentType        string         `json:"document_type" validate:"required"`
	Description         string         `json:"description"`
	IsMandatory         bool           `json:"is_mandatory"`
	Deadline            *time.Time     `json:"deadline,omitempty"`
	AutoEscalate        bool           `json:"auto_escalate"`
	EscalationLevel     int            `json:"escalation_level"`
	ValidationRules     map[string]any `json:"validation_rules"`
	PriorityScore       float64        `json:"priority_score"`
	RiskLevel           RiskLevel      `json:"risk_level"`
	ComplianceFramework string         `json:"compliance_framework"`
	CreatedBy           string         `json:"created_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	ClosedAt            *time.Time     `json:"closed_at,omitempty"`
}

// Open reports whether the requirement still accepts submissions.
func (r *DocumentRequirement) Open() bool {
	return r.ClosedAt == nil
}

// Overdue reports whether the deadline has passed without closure.
func (r *DocumentRequirement) Overdue(now time.Time) bool {
	return r.Open() && r.Deadline != nil && !r.Deadline.After(now)
}

// EscalationType labels what the escalation policy decided to do.
type EscalationType string

const (
	EscalationNotify   EscalationType = "notify"
	EscalationReassign EscalationType = "reassign"
	EscalationFreeze   EscalationType = "freeze"
)

// RequirementEscalation records that a requirement breached its deadline and
// the action taken. Resolved escalations are kept for reporting.
type RequirementEscalation struct {
	ID             string         `json:"id"`
	RequirementID  string         `json:"requirement_id"`
	Level          int            `json:"level"`
	EscalationType EscalationType `json:"escalation_type"`
	Reason         string         `json:"reason"`
	EscalatedAt    time.Time      `json:"escalated_at"`
	Resolved       bool           `json:"resolved"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}
