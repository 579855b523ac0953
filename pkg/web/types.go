// Package web provides HTTP request and response types for the workflow API.
package web

import "time"

// StepRequest is one step in a workflow template request.
type StepRequest struct {
	StepNumber   int    `json:"step_number"   validate:"required,min=1"`
	Action       string `json:"action"        validate:"required"`
	RoleRequired string `json:"role_required" validate:"required,oneof=admin manager employee auditor"`
	TimeoutHours int    `json:"timeout_hours" validate:"min=0"`
	IsParallel   bool   `json:"is_parallel"`
}

// CreateWorkflowRequest represents the request body for creating a workflow
// template.
type CreateWorkflowRequest struct {
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	Steps       []StepRequest `json:"steps"       validate:"required,min=1,dive"`
}

// StartWorkflowRequest binds a workflow template to a document.
type StartWorkflowRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
	DocumentID string `json:"document_id" validate:"required"`
}

// StepActionRequest carries the notes for an advance or reject call.
type StepActionRequest struct {
	Notes string `json:"notes"`
}

// CreateRequirementRequest represents the request body for creating a
// document requirement.
type CreateRequirementRequest struct {
	AuditID             string         `json:"audit_id"             validate:"required"`
	DocumentType        string         `json:"document_type"        validate:"required"`
	Description         string         `json:"description"`
	IsMandatory         bool           `json:"is_mandatory"`
	Deadline            *time.Time     `json:"deadline,omitempty"`
	AutoEscalate        bool           `json:"auto_escalate"`
	ValidationRules     map[string]any `json:"validation_rules,omitempty"`
	PriorityScore       float64        `json:"priority_score"`
	RiskLevel           string         `json:"risk_level"           validate:"omitempty,oneof=low medium high critical"`
	ComplianceFramework string         `json:"compliance_framework"`
}

// CreateSubmissionRequest represents the request body for submitting a
// document against a requirement.
type CreateSubmissionRequest struct {
	RequirementID string `json:"requirement_id" validate:"required"`
	DocumentID    string `json:"document_id"    validate:"required"`
}

// DecideSubmissionRequest carries a reviewer's verdict.
type DecideSubmissionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve request_revision reject"`
	Notes    string `json:"notes"`
}

// CreateFindingRequest represents the request body for raising a finding.
type CreateFindingRequest struct {
	AuditID     string     `json:"audit_id"    validate:"required"`
	Title       string     `json:"title"       validate:"required"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"    validate:"omitempty,oneof=low medium high critical"`
	FindingType string     `json:"finding_type"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// ResolveFindingRequest controls whether open action items are cascaded.
type ResolveFindingRequest struct {
	Cascade bool `json:"cascade"`
}

// CreateActionItemRequest represents the request body for attaching a
// remediation task to a finding.
type CreateActionItemRequest struct {
	AssignedTo  string     `json:"assigned_to" validate:"required"`
	Description string     `json:"description" validate:"required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=low medium high"`
}

// CompleteActionItemRequest carries closing notes for a remediation task.
type CompleteActionItemRequest struct {
	ProgressNotes string `json:"progress_notes"`
}

// RegisterDocumentRequest registers a document reference with the engine.
type RegisterDocumentRequest struct {
	ID       string         `json:"id"        validate:"required"`
	Title    string         `json:"title"     validate:"required"`
	FileType string         `json:"file_type"`
	FileSize float64        `json:"file_size" validate:"min=0"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
