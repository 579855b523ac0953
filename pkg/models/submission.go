package models

import "time"

// VerificationStatus is the outcome state of a DocumentSubmission.
type VerificationStatus string

const (
	VerificationPending       VerificationStatus = "pending"
	VerificationNeedsRevision VerificationStatus = "needs_revision"
	VerificationApproved      VerificationStatus = "approved"
	VerificationRejected      VerificationStatus = "rejected"
)

// Terminal reports whether the submission can still change state. A rejected
// submission is final for that submission, but the requirement stays open for
// new submissions unless it is itself closed.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationApproved || s == VerificationRejected
}

// CanTransitionTo enumerates the legal verification transitions. The only
// back-edge is needs_revision -> pending, taken when a new revision round is
// submitted.
func (s VerificationStatus) CanTransitionTo(next VerificationStatus) bool {
	switch s {
	case VerificationPending:
		return next == VerificationApproved || next == VerificationNeedsRevision || next == VerificationRejected
	case VerificationNeedsRevision:
		return next == VerificationPending
	}

	return false
}

// WorkflowStage tracks where in the verification pipeline a submission sits.
type WorkflowStage string

const (
	StageSubmitted    WorkflowStage = "submitted"
	StageAIValidation WorkflowStage = "ai_validation"
	StageUnderReview  WorkflowStage = "under_review"
	StageCompleted    WorkflowStage = "completed"
)

// PriorityLevel orders review queues.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

// DocumentSubmission is one attempt to satisfy a requirement with a specific
// document. RevisionRound starts at 1 and increases by one per resubmission
// of the same requirement+document lineage.
type DocumentSubmission struct {
	ID                string             `json:"id"`
	RequirementID     string             `json:"requirement_id"`
	DocumentID        string             `json:"document_id"`
	CompanyID         string             `json:"company_id"`
	SubmittedBy       string             `json:"submitted_by"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	VerificationState VerificationStatus `json:"verification_status"`
	Stage             WorkflowStage      `json:"workflow_stage"`
	RevisionRound     int                `json:"revision_round"`
	AutoVerified      bool               `json:"auto_verified"`
	AIValidationScore float64            `json:"ai_validation_score"`
	ComplianceScore   float64            `json:"compliance_score"`
	Issues            []string           `json:"issues"`
	Priority          PriorityLevel      `json:"priority_level"`
	ReviewedBy        string             `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time         `json:"reviewed_at,omitempty"`
	ReviewNotes       string             `json:"review_notes,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ReviewDecision is a human reviewer's verdict on a submission.
type ReviewDecision string

const (
	DecisionApprove         ReviewDecision = "approve"
	DecisionRequestRevision ReviewDecision = "request_revision"
	DecisionReject          ReviewDecision = "reject"
)

// Valid reports whether the decision is one a reviewer may issue.
func (d ReviewDecision) Valid() bool {
	return d == DecisionApprove || d == DecisionRequestRevision || d == DecisionReject
}
