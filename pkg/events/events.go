// Package events defines event types for workflow and submission lifecycle
// notifications.
package events

import (
	"time"
)

type EventType string

// Kafka topic for all lifecycle events.
const Topic = "auditflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow instance lifecycle events.
	WorkflowStartedEvent   EventType = "workflow.started"
	StepAdvancedEvent      EventType = "workflow.step.advanced"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowRejectedEvent  EventType = "workflow.rejected"
	WorkflowTimedOutEvent  EventType = "workflow.timed_out"

	// Submission verification events.
	SubmissionReceivedEvent EventType = "submission.received"
	SubmissionScoredEvent   EventType = "submission.scored"
	SubmissionDecidedEvent  EventType = "submission.decided"

	// Requirement escalation events.
	RequirementEscalatedEvent EventType = "requirement.escalated"

	// Remediation events.
	ActionItemOverdueEvent EventType = "action_item.overdue"
	FindingResolvedEvent   EventType = "finding.resolved"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	CompanyID string         `json:"company_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type WorkflowStarted struct {
	BaseEvent

	DocumentWorkflowID string `json:"document_workflow_id"`
	WorkflowID         string `json:"workflow_id"`
	DocumentID         string `json:"document_id"`
	TotalSteps         int    `json:"total_steps"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type StepAdvanced struct {
	BaseEvent

	DocumentWorkflowID string `json:"document_workflow_id"`
	CompletedStep      int    `json:"completed_step"`
	NextStep           int    `json:"next_step"`
	PerformedBy        string `json:"performed_by"`
}

func (e StepAdvanced) GetType() EventType {
	return StepAdvancedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	DocumentWorkflowID string        `json:"document_workflow_id"`
	DocumentID         string        `json:"document_id"`
	PerformedBy        string        `json:"performed_by"`
	Duration           time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowRejected struct {
	BaseEvent

	DocumentWorkflowID string `json:"document_workflow_id"`
	DocumentID         string `json:"document_id"`
	RejectedBy         string `json:"rejected_by"`
	StepNumber         int    `json:"step_number"`
	Reason             string `json:"reason,omitempty"`
}

func (e WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

type WorkflowTimedOut struct {
	BaseEvent

	DocumentWorkflowID string    `json:"document_workflow_id"`
	DocumentID         string    `json:"document_id"`
	StepNumber         int       `json:"step_number"`
	Deadline           time.Time `json:"deadline"`
}

func (e WorkflowTimedOut) GetType() EventType {
	return WorkflowTimedOutEvent
}

type SubmissionReceived struct {
	BaseEvent

	SubmissionID  string `json:"submission_id"`
	RequirementID string `json:"requirement_id"`
	DocumentID    string `json:"document_id"`
	SubmittedBy   string `json:"submitted_by"`
	RevisionRound int    `json:"revision_round"`
}

func (e SubmissionReceived) GetType() EventType {
	return SubmissionReceivedEvent
}

type SubmissionScored struct {
	BaseEvent

	SubmissionID      string   `json:"submission_id"`
	AIValidationScore float64  `json:"ai_validation_score"`
	ComplianceScore   float64  `json:"compliance_score"`
	AutoVerified      bool     `json:"auto_verified"`
	Degraded          bool     `json:"degraded"`
	Issues            []string `json:"issues,omitempty"`
}

func (e SubmissionScored) GetType() EventType {
	return SubmissionScoredEvent
}

type SubmissionDecided struct {
	BaseEvent

	SubmissionID string `json:"submission_id"`
	Decision     string `json:"decision"`
	ReviewedBy   string `json:"reviewed_by"`
	Notes        string `json:"notes,omitempty"`
}

func (e SubmissionDecided) GetType() EventType {
	return SubmissionDecidedEvent
}

type RequirementEscalated struct {
	BaseEvent

	RequirementID  string `json:"requirement_id"`
	EscalationID   string `json:"escalation_id"`
	Level          int    `json:"level"`
	EscalationType string `json:"escalation_type"`
	Reason         string `json:"reason"`
}

func (e RequirementEscalated) GetType() EventType {
	return RequirementEscalatedEvent
}

type ActionItemOverdue struct {
	BaseEvent

	ActionItemID string    `json:"action_item_id"`
	FindingID    string    `json:"finding_id"`
	AssignedTo   string    `json:"assigned_to"`
	DueDate      time.Time `json:"due_date"`
}

func (e ActionItemOverdue) GetType() EventType {
	return ActionItemOverdueEvent
}

type FindingResolved struct {
	BaseEvent

	FindingID  string `json:"finding_id"`
	ResolvedBy string `json:"resolved_by"`
}

func (e FindingResolved) GetType() EventType {
	return FindingResolvedEvent
}
