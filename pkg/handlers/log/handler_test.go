package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteLogsConfiguredMessage(t *testing.T) {
	handler := NewHandler(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	result, err := handler.Execute(context.Background(),
		map[string]any{"message": "order received", "level": "warn"},
		models.ExecutionContext{ExecutionID: "exec-1", WorkflowID: "wf-1"})

	require.NoError(t, err)
	assert.Equal(t, true, result["logged"])
	assert.Equal(t, "order received", result["message"])
}

func TestExecuteDefaultsMessage(t *testing.T) {
	handler := NewHandler(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	result, err := handler.Execute(context.Background(), nil, models.ExecutionContext{})

	require.NoError(t, err)
	assert.Equal(t, "log node reached", result["message"])
}

func TestFactorySchemaAndCreate(t *testing.T) {
	factory := NewHandlerFactory(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	assert.Equal(t, "notification", factory.ID())
	assert.NotEmpty(t, factory.Schema())

	handler, err := factory.Create()
	require.NoError(t, err)
	assert.NotNil(t, handler)
}
