// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/ferrant/orchid/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
// The graph may be supplied up front or built through later updates; it is
// only validated at activation.
type CreateWorkflowRequest struct {
	Name     string            `json:"name"     validate:"required,min=3"`
	Owner    string            `json:"owner"    validate:"required"`
	Nodes    []*models.Node    `json:"nodes"`
	Edges    []*models.Edge    `json:"edges"`
	Triggers []*models.Trigger `json:"triggers,omitempty"`
	Settings models.Settings   `json:"settings"`
}

// UpdateWorkflowRequest represents the request body for replacing a
// workflow's structure. Allowed only while the workflow is draft or paused.
type UpdateWorkflowRequest struct {
	Name     string            `json:"name"     validate:"required,min=3"`
	Nodes    []*models.Node    `json:"nodes"`
	Edges    []*models.Edge    `json:"edges"`
	Triggers []*models.Trigger `json:"triggers,omitempty"`
	Settings models.Settings   `json:"settings"`
}

// ExecuteWorkflowRequest carries optional trigger data for a manual run.
type ExecuteWorkflowRequest struct {
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// ExecuteWorkflowResponse acknowledges an accepted execution request.
type ExecuteWorkflowResponse struct {
	ExecutionID string `json:"execution_id"`
}

// EventRequest represents an external event posted for dispatch.
type EventRequest struct {
	EventType string         `json:"event_type" validate:"required"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventResponse reports how many workflows an event reached.
type EventResponse struct {
	EventType  string `json:"event_type"`
	Dispatched int    `json:"dispatched"`
}

func (r CreateWorkflowRequest) toWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:     r.Name,
		Owner:    r.Owner,
		Nodes:    r.Nodes,
		Edges:    r.Edges,
		Triggers: r.Triggers,
		Settings: r.Settings,
	}
}

func (r UpdateWorkflowRequest) toWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:     r.Name,
		Nodes:    r.Nodes,
		Edges:    r.Edges,
		Triggers: r.Triggers,
		Settings: r.Settings,
	}
}
