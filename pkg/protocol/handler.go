// Package protocol defines the contracts between the engine core and
// externally registered capabilities.
package protocol

import (
	"context"

	"github.com/ferrant/orchid/pkg/models"
)

// Handler implements the behavior of one node type. The engine core ships no
// concrete handlers; integration modules register them at startup. Returned
// data is merged into the execution context, later keys overwriting earlier
// ones.
type Handler interface {
	Execute(ctx context.Context, config map[string]any, execCtx models.ExecutionContext) (map[string]any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, config map[string]any, execCtx models.ExecutionContext) (map[string]any, error)

func (f HandlerFunc) Execute(ctx context.Context, config map[string]any, execCtx models.ExecutionContext) (map[string]any, error) {
	return f(ctx, config, execCtx)
}

// HandlerFactory describes a registrable node capability: the handler plus
// metadata and the JSON schema its node configuration must satisfy.
type HandlerFactory interface {
	// ID returns the node type this factory serves.
	ID() string

	// Name returns the human-readable name for this capability.
	Name() string

	// Description returns a description of what this capability does.
	Description() string

	// Schema returns the JSON schema for node configurations of this type.
	Schema() map[string]any

	// Create builds the handler instance.
	Create() (Handler, error)
}
