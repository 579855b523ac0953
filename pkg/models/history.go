package models

import "time"

// HistoryStatus records how a step concluded.
type HistoryStatus string

const (
	HistoryCompleted HistoryStatus = "completed"
	HistoryRejected  HistoryStatus = "rejected"
	HistoryTimedOut  HistoryStatus = "timed_out"
)

// ExecutionHistoryEntry is one append-only row in a DocumentWorkflow's
// execution log. Rows are write-once; ordering by sequence defines the
// canonical replay order of the instance.
type ExecutionHistoryEntry struct {
	ID                 string        `json:"id"`
	DocumentWorkflowID string        `json:"document_workflow_id"`
	Sequence           int64         `json:"sequence"`
	StepNumber         int           `json:"step_number"`
	Action             string        `json:"action"`
	PerformedBy        string        `json:"performed_by"`
	PerformedAt        time.Time     `json:"performed_at"`
	Notes              string        `json:"notes,omitempty"`
	Status             HistoryStatus `json:"status"`
}
