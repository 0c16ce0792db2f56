package workflow

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ferrant/orchid/pkg/eventbus"
	"github.com/ferrant/orchid/pkg/events"
	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence/memory"
	"github.com/ferrant/orchid/pkg/protocol"
	"github.com/ferrant/orchid/pkg/registry"
	"github.com/ferrant/orchid/pkg/supervisor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := memory.NewPersistence()

	engine := NewEngine(logger, store, testRegistry(logger), WithSupervisorConfig(supervisor.Config{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}))

	return engine, store
}

func testRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterHandler("action", protocol.HandlerFunc(
		func(_ context.Context, _ map[string]any, _ models.ExecutionContext) (map[string]any, error) {
			return map[string]any{"done": true}, nil
		}))

	return reg
}

func activeWorkflow() *models.Workflow {
	wf := linearWorkflow()
	wf.Status = models.WorkflowStatusActive

	return wf
}

func TestExecuteRejectsInactiveWorkflow(t *testing.T) {
	engine, store := newTestEngine(t)

	wf := linearWorkflow() // draft
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))

	_, err := engine.Execute(context.Background(), wf.ID, nil)
	require.ErrorIs(t, err, ErrWorkflowNotActive)
}

func TestExecuteRunsToCompletionAndUpdatesCounters(t *testing.T) {
	engine, store := newTestEngine(t)

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	first, err := engine.Execute(context.Background(), "wf-1", map[string]any{"source": "test"})
	require.NoError(t, err)

	second, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "concurrent requests must get distinct execution ids")

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(drainCtx))

	wf, err := store.WorkflowByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, wf.Stats.ExecutionCount)
	assert.EqualValues(t, 2, wf.Stats.SuccessCount)
	assert.InDelta(t, 1.0, wf.Stats.SuccessRate(), 0.001)

	execution, err := store.ExecutionByID(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "test", execution.Context["source"], "trigger data seeds the context")
	assert.Equal(t, true, execution.Context["done"])
}

func TestExecuteAssignsFullUUIDExecutionIDs(t *testing.T) {
	engine, store := newTestEngine(t)

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	id, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(id, "exec-"))

	// A truncated id would make birthday collisions plausible at scale, and
	// a collision silently overwrites the prior execution in the store.
	_, err = uuid.Parse(strings.TrimPrefix(id, "exec-"))
	assert.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(drainCtx))
}

type recordingBus struct {
	mu        sync.Mutex
	published []busRecord
}

type busRecord struct {
	key   string
	event eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, key string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, busRecord{key: key, event: event})

	return nil
}

func (b *recordingBus) Handle(events.EventType, eventbus.EventHandler) error { return nil }
func (b *recordingBus) Subscribe(context.Context) error                      { return nil }
func (b *recordingBus) Close() error                                         { return nil }
func (b *recordingBus) GenerateID() string                                   { return "" }

func (b *recordingBus) records() []busRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]busRecord(nil), b.published...)
}

func TestLifecycleEventsAreKeyedByWorkflowID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := memory.NewPersistence()
	bus := &recordingBus{}

	engine := NewEngine(logger, store, testRegistry(logger), WithEventBus(bus))

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	_, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(drainCtx))

	records := bus.records()
	require.Len(t, records, 2)
	assert.Equal(t, events.ExecutionStartedEvent, records[0].event.GetType())
	assert.Equal(t, events.ExecutionCompletedEvent, records[1].event.GetType())

	for _, record := range records {
		assert.Equal(t, "wf-1", record.key, "bus messages partition by workflow id")
	}
}

func TestStatusReportsProgressAndLog(t *testing.T) {
	engine, store := newTestEngine(t)

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	id, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(drainCtx))

	report, err := engine.Status(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, report.Status)
	assert.InDelta(t, 100, report.ProgressPercent, 0.001)
	assert.Len(t, report.Log, 2)
	assert.Nil(t, report.Error)
}

func TestCancelStopsRunningExecution(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)

	started := make(chan struct{})

	reg.RegisterHandler("action", protocol.HandlerFunc(
		func(ctx context.Context, _ map[string]any, _ models.ExecutionContext) (map[string]any, error) {
			close(started)
			<-ctx.Done()

			return nil, ctx.Err()
		}))

	engine := NewEngine(logger, store, reg)

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	id, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never started")
	}

	require.NoError(t, engine.Cancel(context.Background(), id))

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(drainCtx))

	execution, err := store.ExecutionByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
}

func TestCancelTerminalExecutionFails(t *testing.T) {
	engine, store := newTestEngine(t)

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	id, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(drainCtx))

	err = engine.Cancel(context.Background(), id)
	require.ErrorIs(t, err, ErrExecutionTerminal)
}

func TestShutdownCancelsInFlightExecutions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)

	started := make(chan struct{})

	reg.RegisterHandler("action", protocol.HandlerFunc(
		func(ctx context.Context, _ map[string]any, _ models.ExecutionContext) (map[string]any, error) {
			close(started)
			<-ctx.Done()

			return nil, ctx.Err()
		}))

	engine := NewEngine(logger, store, reg)

	require.NoError(t, store.SaveWorkflow(context.Background(), activeWorkflow()))

	id, err := engine.Execute(context.Background(), "wf-1", nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Shutdown(shutdownCtx))

	execution, err := store.ExecutionByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
}
