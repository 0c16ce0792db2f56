// Package delay provides the delay node handler: it pauses the execution
// path for a configured duration.
package delay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/jonboulle/clockwork"
)

var ErrInvalidDuration = errors.New("missing or invalid 'seconds' in configuration")

// Handler waits for the configured number of seconds. The wait honors the
// invocation context, so a node timeout or a cancellation cuts it short.
type Handler struct {
	logger *slog.Logger
	clock  clockwork.Clock
}

func NewHandler(logger *slog.Logger, clock clockwork.Clock) *Handler {
	return &Handler{
		logger: logger.With("handler", "delay"),
		clock:  clock,
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, execCtx models.ExecutionContext) (map[string]any, error) {
	seconds, ok := toSeconds(config["seconds"])
	if !ok {
		return nil, ErrInvalidDuration
	}

	duration := time.Duration(seconds * float64(time.Second))

	h.logger.InfoContext(ctx, "Delaying execution",
		"execution_id", execCtx.ExecutionID,
		"duration", duration)

	timer := h.clock.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return map[string]any{"delayed_seconds": seconds}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// toSeconds accepts the numeric types JSON decoding can produce.
func toSeconds(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, v > 0
	case int:
		return float64(v), v > 0
	case int64:
		return float64(v), v > 0
	default:
		return 0, false
	}
}
