package models

import "time"

// WorkflowKind names a mutating workflow type. It doubles as the resource
// type on outbox rows and the prefix of status cache keys.
type WorkflowKind string

const (
	KindTransfer          WorkflowKind = "transfers"
	KindCreditApplication WorkflowKind = "credits"
	KindMarketOrder       WorkflowKind = "market_orders"
)

const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// WorkflowStep is one ordered, append-only unit of a workflow. Sequence is
// unique per workflow and starts at 1.
type WorkflowStep struct {
	StepID       string       `json:"step_id" gorm:"primaryKey;size:36"`
	WorkflowID   string       `json:"workflow_id" gorm:"size:64;not null;uniqueIndex:idx_workflow_steps_workflow_sequence,priority:1"`
	WorkflowKind WorkflowKind `json:"workflow_kind" gorm:"size:32;not null"`
	Sequence     int          `json:"sequence" gorm:"not null;uniqueIndex:idx_workflow_steps_workflow_sequence,priority:2"`
	Name         string       `json:"name" gorm:"size:64;not null"`
	Status       string       `json:"status" gorm:"size:32;not null"`
	OccurredAt   time.Time    `json:"occurred_at" gorm:"not null"`
}

// StepView is the client facing shape of a step.
type StepView struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// StatusView is what the status endpoints return and what the cache holds.
type StatusView struct {
	WorkflowID string       `json:"workflowId"`
	Kind       WorkflowKind `json:"kind"`
	Status     string       `json:"status"`
	Steps      []StepView   `json:"steps"`
}

// NewStatusView assembles a view from a workflow status and its steps, which
// must already be ordered by sequence.
func NewStatusView(kind WorkflowKind, workflowID, status string, steps []WorkflowStep) StatusView {
	views := make([]StepView, 0, len(steps))
	for _, s := range steps {
		views = append(views, StepView{Name: s.Name, Status: s.Status, OccurredAt: s.OccurredAt.UTC()})
	}
	return StatusView{WorkflowID: workflowID, Kind: kind, Status: status, Steps: views}
}
