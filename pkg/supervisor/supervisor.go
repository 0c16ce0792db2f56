// Package supervisor wraps handler invocations with a per-node deadline and
// bounded retries using exponential backoff with jitter.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout marks an attempt that exceeded its node deadline. It is a
// NodeError subtype in the engine's taxonomy and is retried like any other
// handler failure.
var ErrTimeout = errors.New("node invocation deadline exceeded")

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// NodeError surfaces a handler failure after retries were exhausted,
// carrying the failing node id and the attempt count.
type NodeError struct {
	NodeID   string
	Attempts int
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed after %d attempts: %v", e.NodeID, e.Attempts, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the final attempt failed on its deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Config tunes the supervisor. Zero values fall back to defaults; tests
// shrink InitialBackoff to keep retries fast.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Invocation is one handler attempt. It must honor ctx cancellation; a hung
// attempt is abandoned once its deadline passes and counted as failed.
type Invocation func(ctx context.Context) (map[string]any, error)

type Supervisor struct {
	logger *slog.Logger
	config Config
}

func New(logger *slog.Logger, config Config) *Supervisor {
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 500 * time.Millisecond
	}

	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}

	return &Supervisor{
		logger: logger.With("module", "supervisor"),
		config: config,
	}
}

// Invoke runs fn with the given deadline, retrying up to maxRetries times
// (maxRetries+1 attempts total). Exhausting retries returns a NodeError;
// parent context cancellation stops further attempts.
func (s *Supervisor) Invoke(ctx context.Context, nodeID string, maxRetries int, timeout time.Duration, fn Invocation) (map[string]any, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	var (
		result   map[string]any
		attempts int
	)

	operation := func() error {
		attempts++

		data, err := s.attempt(ctx, timeout, fn)
		if err != nil {
			s.logger.Warn("Node invocation attempt failed",
				"node_id", nodeID,
				"attempt", attempts,
				"max_attempts", maxRetries+1,
				"error", err)

			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			return err
		}

		result = data

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.InitialBackoff
	policy.MaxInterval = s.config.MaxBackoff

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx))
	if err != nil {
		return nil, &NodeError{NodeID: nodeID, Attempts: attempts, Err: err}
	}

	return result, nil
}

// attempt runs one invocation with its own deadline. The handler runs in a
// separate goroutine so a handler that ignores its context cannot stall the
// execution past the deadline.
func (s *Supervisor) attempt(ctx context.Context, timeout time.Duration, fn Invocation) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data map[string]any
		err  error
	}

	done := make(chan outcome, 1)

	go func() {
		data, err := fn(attemptCtx)
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, out.err)
		}

		return out.data, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, ErrTimeout
	}
}
