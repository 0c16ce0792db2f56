package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Validated, executable
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Editable, not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, immutable
)

// Settings holds workflow-level execution defaults. Per-node retry policies
// override these.
type Settings struct {
	MaxRetries            int `json:"max_retries"             validate:"min=0"`
	DefaultTimeoutSeconds int `json:"default_timeout_seconds" validate:"min=0"`
}

// DefaultTimeout returns the configured node deadline, falling back to 30s.
func (s Settings) DefaultTimeout() time.Duration {
	if s.DefaultTimeoutSeconds <= 0 {
		return 30 * time.Second
	}

	return time.Duration(s.DefaultTimeoutSeconds) * time.Second
}

// Stats carries workflow-level run counters. Updated under the engine's
// per-workflow lock; LastScheduledAt is maintained by the scheduler.
type Stats struct {
	ExecutionCount  int64      `json:"execution_count"`
	SuccessCount    int64      `json:"success_count"`
	LastScheduledAt *time.Time `json:"last_scheduled_at,omitempty"`
}

// SuccessRate returns the fraction of executions that completed, in [0, 1].
func (s Stats) SuccessRate() float64 {
	if s.ExecutionCount == 0 {
		return 0
	}

	return float64(s.SuccessCount) / float64(s.ExecutionCount)
}

// Workflow is a validated graph of typed nodes. Structure is mutated only
// while draft or paused; once active it is read-only for executions.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"   validate:"required,min=3"`
	Version   int            `json:"version"`
	Status    WorkflowStatus `json:"status" validate:"required"`
	Nodes     []*Node        `json:"nodes"`
	Edges     []*Edge        `json:"edges"`
	Triggers  []*Trigger     `json:"triggers,omitempty"`
	Settings  Settings       `json:"settings"`
	Stats     Stats          `json:"stats"`
	Owner     string         `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NodeByID returns the node with the given id, if present.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// StartNode returns the workflow's start node. Activation validation
// guarantees exactly one exists on active workflows.
func (w *Workflow) StartNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeStart {
			return node, true
		}
	}

	return nil, false
}

// EdgesFrom returns the outgoing edges of a node in declared order.
func (w *Workflow) EdgesFrom(nodeID string) []*Edge {
	var edges []*Edge

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// Editable reports whether the workflow structure may be mutated.
func (w *Workflow) Editable() bool {
	return w.Status == WorkflowStatusDraft || w.Status == WorkflowStatusPaused
}
