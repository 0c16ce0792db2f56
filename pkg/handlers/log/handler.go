// Package log provides a node handler that writes a message to the service
// log. Useful as a tracer bullet while assembling workflows.
package log

import (
	"context"
	"log/slog"

	"github.com/ferrant/orchid/pkg/models"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger.With("handler", "log")}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, execCtx models.ExecutionContext) (map[string]any, error) {
	message, _ := config["message"].(string)
	if message == "" {
		message = "log node reached"
	}

	level, _ := config["level"].(string)

	logger := h.logger.With(
		"workflow_id", execCtx.WorkflowID,
		"execution_id", execCtx.ExecutionID,
	)

	switch level {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn", "warning":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return map[string]any{"logged": true, "message": message}, nil
}
