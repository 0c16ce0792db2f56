package models

import "time"

// ExecutionStatus represents the state machine of one execution. Transitions
// are monotonic: pending -> running -> one terminal state, never back.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Transition labels for execution log entries.
const (
	TransitionStarted   = "started"
	TransitionCompleted = "completed"
	TransitionFailed    = "failed"
	TransitionSkipped   = "skipped"
)

// LogEntry is one immutable record in the append-only execution log. Data is
// truncated before being written.
type LogEntry struct {
	NodeID     string         `json:"node_id"`
	Transition string         `json:"transition"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

// ExecutionError identifies the node that failed an execution.
type ExecutionError struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

// Execution is one run instance of a workflow. WorkflowID is a weak
// reference used for lookup only. Context is the flat key-value map
// accumulated from node outputs, last writer wins.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`
	Context     map[string]any  `json:"context,omitempty"`
	CurrentNode string          `json:"current_node,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       *ExecutionError `json:"error,omitempty"`
	Log         []*LogEntry     `json:"log,omitempty"`
}

// ExecutionContext is the read view handed to handlers during invocation.
type ExecutionContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}
