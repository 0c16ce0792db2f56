// Package registry maps node types to registered capability handlers.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ferrant/orchid/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Registry is the type -> handler table behind the action invoker. It is
// populated once at startup and safe for concurrent reads during execution.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]protocol.Handler
	schemas  map[string]map[string]any
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		handlers: make(map[string]protocol.Handler),
		schemas:  make(map[string]map[string]any),
	}
}

// RegisterHandler binds a handler to a node type. Registering the same type
// twice replaces the previous handler.
func (r *Registry) RegisterHandler(nodeType string, handler protocol.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[nodeType] = handler
	r.logger.Debug("Registered handler", "node_type", nodeType)
}

// RegisterFactory registers a capability factory: its handler plus the
// configuration schema used at activation time.
func (r *Registry) RegisterFactory(factory protocol.HandlerFactory) error {
	handler, err := factory.Create()
	if err != nil {
		return fmt.Errorf("failed to create handler %q: %w", factory.ID(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[factory.ID()] = handler
	if schema := factory.Schema(); schema != nil {
		r.schemas[factory.ID()] = schema
	}

	r.logger.Debug("Registered handler factory", "node_type", factory.ID(), "name", factory.Name())

	return nil
}

// HandlerFor returns the handler registered for a node type.
func (r *Registry) HandlerFor(nodeType string) (protocol.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type %q not registered", nodeType)
	}

	return handler, nil
}

// Registered reports whether a handler exists for the node type.
func (r *Registry) Registered(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handlers[nodeType]

	return ok
}

// NodeTypes returns the registered node types.
func (r *Registry) NodeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for nodeType := range r.handlers {
		types = append(types, nodeType)
	}

	return types
}

// ValidateConfig checks a node configuration against the JSON schema the
// capability registered, if any. Handlers registered without a factory have
// no schema and pass unchecked.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[nodeType]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation for node type %q: %w", nodeType, err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid configuration for node type %q: %s", nodeType, errs[0].String())
		}

		return fmt.Errorf("invalid configuration for node type %q", nodeType)
	}

	return nil
}
