package models

// TriggerType classifies how a workflow execution gets spawned.
type TriggerType string

const (
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeWebhook  TriggerType = "webhook"
)

// Trigger is the condition that spawns a new execution. EventType and Filter
// apply to event/webhook triggers; Schedule holds the interval spec for
// schedule triggers.
type Trigger struct {
	ID        string                `json:"id"   validate:"required"`
	Type      TriggerType           `json:"type" validate:"required"`
	EventType string                `json:"event_type,omitempty"`
	Filter    map[string]FilterRule `json:"filter,omitempty"`
	Schedule  string                `json:"schedule,omitempty"`
}
