package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor() *Supervisor {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	return New(logger, Config{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
}

func TestSupervisor_SuccessPassthrough(t *testing.T) {
	sup := newTestSupervisor()

	data, err := sup.Invoke(context.Background(), "node-1", 3, time.Second, func(_ context.Context) (map[string]any, error) {
		return map[string]any{"sent": true}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sent": true}, data)
}

func TestSupervisor_RetriesExhausted(t *testing.T) {
	sup := newTestSupervisor()

	var attempts atomic.Int32

	_, err := sup.Invoke(context.Background(), "node-1", 2, time.Second, func(_ context.Context) (map[string]any, error) {
		attempts.Add(1)

		return nil, errors.New("smtp unavailable")
	})

	require.Error(t, err)

	// max_retries=N means exactly N+1 invocation attempts.
	assert.Equal(t, int32(3), attempts.Load())

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "node-1", nodeErr.NodeID)
	assert.Equal(t, 3, nodeErr.Attempts)
}

func TestSupervisor_RecoversAfterTransientFailure(t *testing.T) {
	sup := newTestSupervisor()

	var attempts atomic.Int32

	data, err := sup.Invoke(context.Background(), "node-1", 3, time.Second, func(_ context.Context) (map[string]any, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("transient")
		}

		return map[string]any{"ok": true}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, true, data["ok"])
}

func TestSupervisor_TimeoutIsRetriedAndSurfaced(t *testing.T) {
	sup := newTestSupervisor()

	var attempts atomic.Int32

	_, err := sup.Invoke(context.Background(), "slow-node", 1, 10*time.Millisecond, func(ctx context.Context) (map[string]any, error) {
		attempts.Add(1)
		<-ctx.Done()

		return nil, ctx.Err()
	})

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSupervisor_HungHandlerDoesNotStallPastDeadline(t *testing.T) {
	sup := newTestSupervisor()

	start := time.Now()

	_, err := sup.Invoke(context.Background(), "hung-node", 0, 20*time.Millisecond, func(_ context.Context) (map[string]any, error) {
		// Ignores its context entirely.
		time.Sleep(5 * time.Second)

		return nil, nil
	})

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSupervisor_CancellationStopsRetries(t *testing.T) {
	sup := newTestSupervisor()

	ctx, cancel := context.WithCancel(context.Background())

	var attempts atomic.Int32

	_, err := sup.Invoke(ctx, "node-1", 10, time.Second, func(_ context.Context) (map[string]any, error) {
		attempts.Add(1)
		cancel()

		return nil, errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}
