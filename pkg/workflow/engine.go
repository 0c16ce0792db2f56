package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ferrant/orchid/pkg/condition"
	"github.com/ferrant/orchid/pkg/eventbus"
	"github.com/ferrant/orchid/pkg/events"
	"github.com/ferrant/orchid/pkg/ledger"
	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/ferrant/orchid/pkg/registry"
	"github.com/ferrant/orchid/pkg/supervisor"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxConcurrent = 64

// Engine owns the executions of a process: it spawns them, bounds their
// concurrency, updates workflow counters and answers status queries. All
// dependencies are injected; nothing global.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	executor    *Executor
	clock       clockwork.Clock
	bus         eventbus.EventBus

	sem chan struct{}
	wg  sync.WaitGroup

	mu            sync.Mutex
	workflowLocks map[string]*sync.Mutex
	running       map[string]context.CancelFunc
}

type Option func(*engineConfig)

type engineConfig struct {
	clock         clockwork.Clock
	bus           eventbus.EventBus
	tracer        trace.Tracer
	supervisorCfg supervisor.Config
	maxConcurrent int
}

// WithClock injects a clock; tests pass a fake.
func WithClock(clock clockwork.Clock) Option {
	return func(c *engineConfig) { c.clock = clock }
}

// WithEventBus makes the engine publish lifecycle events.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(c *engineConfig) { c.bus = bus }
}

// WithTracer sets the tracer used for execution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *engineConfig) { c.tracer = tracer }
}

// WithSupervisorConfig tunes retry backoff.
func WithSupervisorConfig(cfg supervisor.Config) Option {
	return func(c *engineConfig) { c.supervisorCfg = cfg }
}

// WithMaxConcurrent bounds how many executions run at once.
func WithMaxConcurrent(n int) Option {
	return func(c *engineConfig) { c.maxConcurrent = n }
}

func NewEngine(logger *slog.Logger, store persistence.Persistence, reg *registry.Registry, opts ...Option) *Engine {
	cfg := engineConfig{
		clock:         clockwork.NewRealClock(),
		maxConcurrent: defaultMaxConcurrent,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	engineLogger := logger.With("module", "workflow_engine")
	evaluator := condition.NewEvaluator(logger)
	sup := supervisor.New(logger, cfg.supervisorCfg)

	return &Engine{
		logger:        engineLogger,
		persistence:   store,
		registry:      reg,
		executor:      NewExecutor(logger, reg, sup, evaluator, cfg.clock, cfg.tracer),
		clock:         cfg.clock,
		bus:           cfg.bus,
		sem:           make(chan struct{}, cfg.maxConcurrent),
		workflowLocks: make(map[string]*sync.Mutex),
		running:       make(map[string]context.CancelFunc),
	}
}

// Registry exposes the handler registry for activation validation.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Execute creates a pending execution for an active workflow and starts it
// asynchronously, returning the execution id immediately. Creation runs in
// a per-workflow critical section so ids stay unique and counters stay
// consistent no matter which trigger source fired.
func (e *Engine) Execute(ctx context.Context, workflowID string, triggerData map[string]any) (string, error) {
	lock := e.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := e.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if workflow.Status != models.WorkflowStatusActive {
		return "", fmt.Errorf("%w: %s is %s", ErrWorkflowNotActive, workflowID, workflow.Status)
	}

	execution := &models.Execution{
		ID:          "exec-" + uuid.New().String(),
		WorkflowID:  workflowID,
		Status:      models.ExecutionStatusPending,
		TriggerData: triggerData,
		Context:     seedContext(triggerData),
	}

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return "", fmt.Errorf("failed to create execution: %w", err)
	}

	workflow.Stats.ExecutionCount++
	if err := e.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return "", fmt.Errorf("failed to update workflow counters: %w", err)
	}

	e.logger.Info("Execution created",
		"workflow_id", workflowID,
		"execution_id", execution.ID)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e.mu.Lock()
	e.running[execution.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)

	go e.run(runCtx, workflow, execution)

	return execution.ID, nil
}

func (e *Engine) run(ctx context.Context, workflow *models.Workflow, execution *models.Execution) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.running, execution.ID)
		e.mu.Unlock()
	}()

	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	started := e.clock.Now()

	e.publish(ctx, workflow.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID: execution.ID,
		TriggerData: execution.TriggerData,
	})

	checkpoint := func(ctx context.Context, execution *models.Execution) error {
		return e.persistence.SaveExecution(ctx, execution)
	}

	if err := e.executor.Run(ctx, workflow, execution, checkpoint); err != nil {
		e.logger.Error("Execution checkpointing failed",
			"execution_id", execution.ID,
			"error", err)
	}

	e.recordOutcome(context.WithoutCancel(ctx), workflow.ID, execution)
	e.publishOutcome(context.WithoutCancel(ctx), workflow.ID, execution, e.clock.Since(started))
}

// recordOutcome bumps the workflow success counter under the same lock that
// guards execution creation, so concurrent spawns never lose updates.
func (e *Engine) recordOutcome(ctx context.Context, workflowID string, execution *models.Execution) {
	if execution.Status != models.ExecutionStatusCompleted {
		return
	}

	lock := e.workflowLock(workflowID)
	lock.Lock()
	defer lock.Unlock()

	workflow, err := e.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		e.logger.Error("Failed to fetch workflow for counter update", "workflow_id", workflowID, "error", err)

		return
	}

	workflow.Stats.SuccessCount++

	if err := e.persistence.SaveWorkflow(ctx, workflow); err != nil {
		e.logger.Error("Failed to update workflow counters", "workflow_id", workflowID, "error", err)
	}
}

func (e *Engine) publishOutcome(ctx context.Context, workflowID string, execution *models.Execution, elapsed time.Duration) {
	durationMs := elapsed.Milliseconds()

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		e.publish(ctx, workflowID, events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, workflowID),
			ExecutionID: execution.ID,
			DurationMs:  durationMs,
			Result:      execution.Context,
		})
	case models.ExecutionStatusFailed:
		e.publish(ctx, workflowID, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, workflowID),
			ExecutionID: execution.ID,
			DurationMs:  durationMs,
			Error:       execution.Error,
		})
	case models.ExecutionStatusCancelled:
		e.publish(ctx, workflowID, events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, workflowID),
			ExecutionID: execution.ID,
			DurationMs:  durationMs,
		})
	}
}

// Cancel requests cooperative cancellation of an execution. An in-flight
// node invocation completes or times out before cancellation takes effect.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	e.mu.Lock()
	cancel, ok := e.running[executionID]
	e.mu.Unlock()

	if ok {
		cancel()

		return nil
	}

	// Not running here: flip a still-pending execution directly.
	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrExecutionTerminal, executionID, execution.Status)
	}

	execution.Status = models.ExecutionStatusCancelled
	completedAt := e.clock.Now().UTC()
	execution.CompletedAt = &completedAt

	return e.persistence.SaveExecution(ctx, execution)
}

// StatusReport answers a status query for one execution.
type StatusReport struct {
	ExecutionID     string                 `json:"execution_id"`
	WorkflowID      string                 `json:"workflow_id"`
	Status          models.ExecutionStatus `json:"status"`
	CurrentNode     string                 `json:"current_node,omitempty"`
	ProgressPercent float64                `json:"progress_percent"`
	Log             []*models.LogEntry     `json:"log"`
	Error           *models.ExecutionError `json:"error,omitempty"`
	Context         map[string]any         `json:"context,omitempty"`
}

// Status reports an execution's state, progress and log. Failed executions
// retain their partially accumulated context for diagnostics.
func (e *Engine) Status(ctx context.Context, executionID string) (*StatusReport, error) {
	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		ExecutionID:     execution.ID,
		WorkflowID:      execution.WorkflowID,
		Status:          execution.Status,
		CurrentNode:     execution.CurrentNode,
		ProgressPercent: ledger.Load(e.clock, execution.Log).Progress(),
		Log:             execution.Log,
		Error:           execution.Error,
		Context:         execution.Context,
	}, nil
}

// Drain waits for all in-flight executions to reach a terminal state, up to
// the context deadline.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every running execution and waits for them to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.running {
		cancel()
	}
	e.mu.Unlock()

	return e.Drain(ctx)
}

func (e *Engine) workflowLock(workflowID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.workflowLocks[workflowID]
	if !ok {
		lock = &sync.Mutex{}
		e.workflowLocks[workflowID] = lock
	}

	return lock
}

// publish keys bus messages by workflow id so lifecycle events of one
// workflow keep their partition ordering.
func (e *Engine) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, workflowID, event); err != nil {
		e.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func seedContext(triggerData map[string]any) map[string]any {
	seeded := make(map[string]any, len(triggerData))

	for key, value := range triggerData {
		seeded[key] = value
	}

	return seeded
}
