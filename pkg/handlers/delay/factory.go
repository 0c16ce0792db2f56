package delay

import (
	"log/slog"

	"github.com/ferrant/orchid/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

// HandlerFactory is the factory for creating delay handler instances.
type HandlerFactory struct {
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewHandlerFactory creates a new instance of HandlerFactory.
func NewHandlerFactory(logger *slog.Logger) *HandlerFactory {
	return &HandlerFactory{logger: logger, clock: clockwork.NewRealClock()}
}

// ID returns the node type this factory serves.
func (*HandlerFactory) ID() string {
	return "delay"
}

// Name returns the name of the handler factory.
func (*HandlerFactory) Name() string {
	return "Delay"
}

// Description returns a brief description of the handler.
func (*HandlerFactory) Description() string {
	return "Pauses the execution path for a configured number of seconds."
}

// Create builds the handler instance.
func (f *HandlerFactory) Create() (protocol.Handler, error) {
	return NewHandler(f.logger, f.clock), nil
}

// Schema returns the JSON schema for the node configuration.
func (f *HandlerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"seconds": map[string]any{
				"type":             "number",
				"description":      "How long to wait, in seconds.",
				"exclusiveMinimum": 0,
			},
		},
		"required": []string{"seconds"},
	}
}
