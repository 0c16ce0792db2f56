package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/ferrant/orchid/pkg/condition"
	"github.com/ferrant/orchid/pkg/ledger"
	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/registry"
	"github.com/ferrant/orchid/pkg/supervisor"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Context keys merged into the execution context when a node fails and an
// error-handling edge may take over. Error-handling edges are predicate
// edges matching these fields; a failed node never follows predicate-less
// edges.
const (
	ContextKeyError        = "_error"
	ContextKeyErrorNode    = "_error_node"
	ContextKeyErrorMessage = "_error_message"
)

// Checkpoint persists the execution after a state change. The executor
// calls it on every transition; a nil checkpoint is a no-op.
type Checkpoint func(ctx context.Context, execution *models.Execution) error

// Executor walks one execution through the workflow graph. Node steps on
// the active path are strictly sequential; concurrency lives one level up,
// in the engine, which runs many executions at once.
type Executor struct {
	logger     *slog.Logger
	registry   *registry.Registry
	supervisor *supervisor.Supervisor
	evaluator  *condition.Evaluator
	clock      clockwork.Clock
	tracer     trace.Tracer
}

func NewExecutor(
	logger *slog.Logger,
	reg *registry.Registry,
	sup *supervisor.Supervisor,
	evaluator *condition.Evaluator,
	clock clockwork.Clock,
	tracer trace.Tracer,
) *Executor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("workflow")
	}

	return &Executor{
		logger:     logger.With("module", "workflow_executor"),
		registry:   reg,
		supervisor: sup,
		evaluator:  evaluator,
		clock:      clock,
		tracer:     tracer,
	}
}

type loopFrame struct {
	node       *models.Node
	iterations int
}

// Run drives the execution from pending to a terminal state, mutating it in
// place. A non-nil return means the walk itself could not proceed (storage
// failure on checkpoint); domain failures terminate the execution as failed
// or cancelled and return nil.
func (x *Executor) Run(ctx context.Context, workflow *models.Workflow, execution *models.Execution, checkpoint Checkpoint) error {
	logger := x.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
	)

	ctx, span := x.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("workflow.id", workflow.ID),
		attribute.String("execution.id", execution.ID),
	))
	defer span.End()

	led := ledger.Load(x.clock, execution.Log)

	startedAt := x.clock.Now().UTC()
	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = &startedAt

	if execution.Context == nil {
		execution.Context = make(map[string]any)
	}

	if err := x.persist(ctx, execution, led, checkpoint); err != nil {
		return err
	}

	logger.Info("Execution started")

	current, _ := workflow.StartNode()

	var loops []loopFrame

	for current != nil {
		// Cancellation is cooperative: checked between steps, never
		// preemptively mid-invocation.
		if ctx.Err() != nil {
			x.terminate(execution, led, models.ExecutionStatusCancelled, nil)
			logger.Info("Execution cancelled", "node_id", current.ID)

			return x.persist(context.WithoutCancel(ctx), execution, led, checkpoint)
		}

		execution.CurrentNode = current.ID

		var (
			next   *models.Node
			failed bool
		)

		switch current.Type {
		case models.NodeTypeEnd:
			x.terminate(execution, led, models.ExecutionStatusCompleted, nil)
			logger.Info("Execution completed", "end_node", current.ID)

			return x.persist(ctx, execution, led, checkpoint)

		case models.NodeTypeStart, models.NodeTypeCondition:
			// Pure routing, no side effect.
			next = x.selectEdge(workflow, current, execution, false)

		case models.NodeTypeLoop:
			var err error

			next, loops, err = x.stepLoop(workflow, current, execution, loops)
			if err != nil {
				x.terminate(execution, led, models.ExecutionStatusFailed, &models.ExecutionError{
					NodeID:  current.ID,
					Message: err.Error(),
				})
				logger.Warn("Execution failed", "node_id", current.ID, "error", err)

				return x.persist(ctx, execution, led, checkpoint)
			}

		default:
			next, failed = x.stepHandler(ctx, logger, workflow, current, execution, led)
			if failed && next == nil {
				if ctx.Err() != nil {
					x.terminate(execution, led, models.ExecutionStatusCancelled, nil)

					return x.persist(context.WithoutCancel(ctx), execution, led, checkpoint)
				}

				logger.Warn("Execution failed",
					"node_id", current.ID,
					"error", execution.Error.Message)

				return x.persist(ctx, execution, led, checkpoint)
			}
		}

		if next == nil {
			// Exhausting edges with no end node is a validation defect that
			// activation should have caught.
			x.terminate(execution, led, models.ExecutionStatusFailed, &models.ExecutionError{
				NodeID:  current.ID,
				Message: "no outgoing edge matched and no end node reached",
			})

			return x.persist(ctx, execution, led, checkpoint)
		}

		if err := x.persist(ctx, execution, led, checkpoint); err != nil {
			return err
		}

		current = next
	}

	return nil
}

// stepLoop handles arrival at a loop node: first arrival pushes a frame,
// body returns re-check the exit predicate, and the iteration cap fails the
// execution once exceeded.
func (x *Executor) stepLoop(workflow *models.Workflow, node *models.Node, execution *models.Execution, loops []loopFrame) (*models.Node, []loopFrame, error) {
	top := len(loops) - 1

	if top < 0 || loops[top].node.ID != node.ID {
		loops = append(loops, loopFrame{node: node})
		top = len(loops) - 1
	}

	if x.evaluator.Evaluate(node.Loop.Exit, execution.Context) {
		loops = loops[:top]

		return x.selectEdge(workflow, node, execution, false), loops, nil
	}

	if loops[top].iterations >= node.Loop.MaxIterations {
		return nil, loops, ErrLoopLimitExceeded
	}

	loops[top].iterations++
	body, _ := workflow.NodeByID(node.Loop.Body)

	return body, loops, nil
}

// stepHandler invokes a handler-backed node through the supervisor. It
// returns the next node plus whether the node failed; a failed node with a
// nil next node terminates the execution as failed.
func (x *Executor) stepHandler(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, node *models.Node, execution *models.Execution, led *ledger.Ledger) (*models.Node, bool) {
	if node.Disabled {
		logger.Debug("Node disabled, skipping", "node_id", node.ID)
		led.Append(node.ID, models.TransitionSkipped, nil)

		return x.selectEdge(workflow, node, execution, false), false
	}

	if node.Precondition != nil && !x.evaluator.Evaluate(*node.Precondition, execution.Context) {
		logger.Debug("Node precondition not met, skipping", "node_id", node.ID)
		led.Append(node.ID, models.TransitionSkipped, nil)

		return x.selectEdge(workflow, node, execution, false), false
	}

	maxRetries := workflow.Settings.MaxRetries
	timeout := workflow.Settings.DefaultTimeout()

	if node.Retry != nil {
		maxRetries = node.Retry.MaxRetries
		if node.Retry.TimeoutSeconds > 0 {
			timeout = time.Duration(node.Retry.TimeoutSeconds) * time.Second
		}
	}

	handler, err := x.registry.HandlerFor(string(node.Type))
	if err != nil {
		led.Append(node.ID, models.TransitionFailed, nil)

		return x.failNode(workflow, node, execution, err.Error())
	}

	nodeCtx, span := x.tracer.Start(ctx, "node.invoke", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", string(node.Type)),
	))
	defer span.End()

	led.Append(node.ID, models.TransitionStarted, nil)

	execCtx := models.ExecutionContext{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		TriggerData: execution.TriggerData,
		Data:        execution.Context,
	}

	data, err := x.supervisor.Invoke(nodeCtx, node.ID, maxRetries, timeout, func(attemptCtx context.Context) (map[string]any, error) {
		return handler.Execute(attemptCtx, node.Config, execCtx)
	})
	if err != nil {
		span.RecordError(err)
		led.Append(node.ID, models.TransitionFailed, map[string]any{"error": err.Error()})

		if ctx.Err() != nil {
			// Engine cancellation surfaced through the invocation; the run
			// loop records the execution as cancelled, not failed.
			return nil, true
		}

		return x.failNode(workflow, node, execution, err.Error())
	}

	led.Append(node.ID, models.TransitionCompleted, data)

	// Later keys overwrite earlier ones: last writer wins, no conflict
	// detection.
	for key, value := range data {
		execution.Context[key] = value
	}

	return x.selectEdge(workflow, node, execution, false), false
}

// failNode records the failure in the context and offers it to explicitly
// guarded edges. Whether the execution fails immediately or follows an
// error-handling edge is the workflow's choice, not the engine's.
func (x *Executor) failNode(workflow *models.Workflow, node *models.Node, execution *models.Execution, message string) (*models.Node, bool) {
	execution.Context[ContextKeyError] = true
	execution.Context[ContextKeyErrorNode] = node.ID
	execution.Context[ContextKeyErrorMessage] = message

	if next := x.selectEdge(workflow, node, execution, true); next != nil {
		// Clear the failure before resuming so a later failure is
		// unambiguous.
		execution.Context[ContextKeyError] = false

		return next, true
	}

	execution.Error = &models.ExecutionError{NodeID: node.ID, Message: message}
	execution.Status = models.ExecutionStatusFailed
	completedAt := x.clock.Now().UTC()
	execution.CompletedAt = &completedAt

	return nil, true
}

// selectEdge picks the next node: outgoing edges in declared order, first
// predicate-less or satisfied edge wins, exactly one path active at a time.
// After a node failure only predicated edges are considered, so plain edges
// never swallow failures.
func (x *Executor) selectEdge(workflow *models.Workflow, node *models.Node, execution *models.Execution, afterFailure bool) *models.Node {
	for _, edge := range workflow.EdgesFrom(node.ID) {
		if edge.Predicate == nil {
			if afterFailure {
				continue
			}

			next, _ := workflow.NodeByID(edge.Target)

			return next
		}

		if x.evaluator.Evaluate(*edge.Predicate, execution.Context) {
			next, _ := workflow.NodeByID(edge.Target)

			return next
		}
	}

	return nil
}

func (x *Executor) terminate(execution *models.Execution, led *ledger.Ledger, status models.ExecutionStatus, execErr *models.ExecutionError) {
	if execution.Status.Terminal() {
		return
	}

	execution.Status = status
	execution.Error = execErr
	completedAt := x.clock.Now().UTC()
	execution.CompletedAt = &completedAt
	execution.Log = led.Entries()
}

func (x *Executor) persist(ctx context.Context, execution *models.Execution, led *ledger.Ledger, checkpoint Checkpoint) error {
	execution.Log = led.Entries()

	if checkpoint == nil {
		return nil
	}

	return checkpoint(ctx, execution)
}
