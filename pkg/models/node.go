// Package models defines the core domain models for the workflow engine.
package models

// NodeType is the tagged variant discriminating node behavior. Structural
// types (start, end, condition, loop) are interpreted by the executor itself;
// every other type is dispatched to a registered handler.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeEnd          NodeType = "end"
	NodeTypeAction       NodeType = "action"
	NodeTypeCondition    NodeType = "condition"
	NodeTypeLoop         NodeType = "loop"
	NodeTypeDelay        NodeType = "delay"
	NodeTypeAPICall      NodeType = "api_call"
	NodeTypeDatabase     NodeType = "database"
	NodeTypeNotification NodeType = "notification"
	NodeTypeApproval     NodeType = "approval"
)

// Structural reports whether the executor handles this node type without a
// handler invocation.
func (t NodeType) Structural() bool {
	switch t {
	case NodeTypeStart, NodeTypeEnd, NodeTypeCondition, NodeTypeLoop:
		return true
	default:
		return false
	}
}

// RetryPolicy overrides the workflow-level settings for one node.
type RetryPolicy struct {
	MaxRetries     int `json:"max_retries"     validate:"min=0"`
	TimeoutSeconds int `json:"timeout_seconds" validate:"min=0"`
}

// LoopSpec configures a loop node. The body subgraph starts at Body; the
// executor re-enters it until Exit is satisfied against the execution
// context, failing the execution once MaxIterations is exceeded.
type LoopSpec struct {
	Exit          Condition `json:"exit"`
	Body          string    `json:"body"           validate:"required"`
	MaxIterations int       `json:"max_iterations" validate:"min=1"`
}

// Node is one typed unit of work or control inside a workflow. Config is an
// opaque key-value map interpreted by the registered handler for the type.
type Node struct {
	ID           string         `json:"id"   validate:"required"`
	Type         NodeType       `json:"type" validate:"required"`
	Name         string         `json:"name"`
	Config       map[string]any `json:"config,omitempty"`
	Precondition *Condition     `json:"precondition,omitempty"`
	Retry        *RetryPolicy   `json:"retry,omitempty"`
	Loop         *LoopSpec      `json:"loop,omitempty"`
	// Disabled nodes are skipped like a failed precondition: no handler
	// invocation, edge selection proceeds.
	Disabled bool `json:"disabled,omitempty"`
}

// Edge is a directed connection between two nodes, optionally guarded by a
// predicate. Edges from one source are ordered; the first satisfied (or
// predicate-less) edge wins.
type Edge struct {
	Source    string     `json:"source" validate:"required"`
	Target    string     `json:"target" validate:"required"`
	Predicate *Condition `json:"predicate,omitempty"`
}
