package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func echoHandler() protocol.Handler {
	return protocol.HandlerFunc(func(_ context.Context, config map[string]any, _ models.ExecutionContext) (map[string]any, error) {
		return map[string]any{"echo": config["message"]}, nil
	})
}

type stubFactory struct{}

func (stubFactory) ID() string          { return "stub" }
func (stubFactory) Name() string        { return "Stub" }
func (stubFactory) Description() string { return "stub capability for tests" }

func (stubFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func (stubFactory) Create() (protocol.Handler, error) {
	return echoHandler(), nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := newTestRegistry()

	reg.RegisterHandler("action", echoHandler())

	handler, err := reg.HandlerFor("action")
	require.NoError(t, err)

	data, err := handler.Execute(context.Background(), map[string]any{"message": "hi"}, models.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, "hi", data["echo"])

	assert.True(t, reg.Registered("action"))
	assert.False(t, reg.Registered("missing"))

	_, err = reg.HandlerFor("missing")
	assert.Error(t, err)
}

func TestRegistry_FactorySchemaValidation(t *testing.T) {
	reg := newTestRegistry()

	require.NoError(t, reg.RegisterFactory(stubFactory{}))
	assert.Contains(t, reg.NodeTypes(), "stub")

	assert.NoError(t, reg.ValidateConfig("stub", map[string]any{"message": "ok"}))

	err := reg.ValidateConfig("stub", map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stub")

	err = reg.ValidateConfig("stub", map[string]any{"message": 42})
	assert.Error(t, err)
}

func TestRegistry_ValidateConfigWithoutSchema(t *testing.T) {
	reg := newTestRegistry()

	reg.RegisterHandler("bare", echoHandler())

	// Handlers registered without a factory carry no schema.
	assert.NoError(t, reg.ValidateConfig("bare", map[string]any{"anything": true}))
	assert.NoError(t, reg.ValidateConfig("unknown", nil))
}
