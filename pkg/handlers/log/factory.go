package log

import (
	"log/slog"

	"github.com/ferrant/orchid/pkg/protocol"
)

// HandlerFactory is the factory for creating log handler instances.
type HandlerFactory struct {
	logger *slog.Logger
}

// NewHandlerFactory creates a new instance of HandlerFactory.
func NewHandlerFactory(logger *slog.Logger) *HandlerFactory {
	return &HandlerFactory{logger: logger}
}

// ID returns the node type this factory serves.
func (*HandlerFactory) ID() string {
	return "notification"
}

// Name returns the name of the handler factory.
func (*HandlerFactory) Name() string {
	return "Log Notification"
}

// Description returns a brief description of the handler.
func (*HandlerFactory) Description() string {
	return "Writes a message to the service log at a configurable level."
}

// Create builds the handler instance.
func (f *HandlerFactory) Create() (protocol.Handler, error) {
	return NewHandler(f.logger), nil
}

// Schema returns the JSON schema for the node configuration.
func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to log.",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "warning", "error"},
			},
		},
	}
}
