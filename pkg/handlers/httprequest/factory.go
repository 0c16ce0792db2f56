package httprequest

import (
	"log/slog"

	"github.com/ferrant/orchid/pkg/protocol"
)

// HandlerFactory is the factory for creating HTTP request handler instances.
type HandlerFactory struct {
	logger *slog.Logger
}

// NewHandlerFactory creates a new instance of HandlerFactory.
func NewHandlerFactory(logger *slog.Logger) *HandlerFactory {
	return &HandlerFactory{logger: logger}
}

// ID returns the node type this factory serves.
func (*HandlerFactory) ID() string {
	return "api_call"
}

// Name returns the name of the handler factory.
func (*HandlerFactory) Name() string {
	return "HTTP Request"
}

// Description returns a brief description of the handler.
func (*HandlerFactory) Description() string {
	return "Performs an HTTP request and merges the response into the execution context."
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
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute URL to request.",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers as string key/value pairs.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Raw request body.",
			},
		},
		"required": []string{"url"},
	}
}
