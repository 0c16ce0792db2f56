package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferrant/orchid/pkg/dispatcher"
	"github.com/ferrant/orchid/pkg/eventbus"
	"github.com/ferrant/orchid/pkg/events"
	"github.com/ferrant/orchid/pkg/otelhelper"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/ferrant/orchid/pkg/registry"
	"github.com/ferrant/orchid/pkg/scheduler"
	"github.com/ferrant/orchid/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const shutdownTimeout = 30 * time.Second

// Runner hosts the three trigger paths of the engine process: the scheduler
// for time-based triggers, the dispatcher for external events arriving over
// the bus, and direct workflow.triggered commands.
type Runner struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *workflow.Engine
	scheduler   *scheduler.Scheduler
	dispatcher  *dispatcher.Dispatcher
	tracer      trace.Tracer
}

func NewRunner(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	registry *registry.Registry,
	tracer trace.Tracer,
	tickInterval time.Duration,
) *Runner {
	logger = logger.With("module", "orchid-engine", "engine_id", id)

	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("orchid-engine")
	}

	engine := workflow.NewEngine(logger, store, registry,
		workflow.WithEventBus(eventBus),
		workflow.WithTracer(tracer),
	)

	return &Runner{
		id:          id,
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		engine:      engine,
		scheduler:   scheduler.New(logger, store, engine, scheduler.WithTickInterval(tickInterval)),
		dispatcher:  dispatcher.New(logger, engine),
		tracer:      tracer,
	}
}

func (r *Runner) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Starting engine runner", "engine_id", r.id)

	err := r.eventBus.Handle(events.WorkflowTriggeredEvent, r.handleWorkflowTriggered)
	if err != nil {
		return err
	}

	err = r.eventBus.Handle(events.EventReceivedEvent, r.handleEventReceived)
	if err != nil {
		return err
	}

	err = r.eventBus.Subscribe(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if err := r.dispatcher.Sync(ctx, r.persistence); err != nil {
		r.logger.ErrorContext(ctx, "Failed to register workflow triggers", "error", err)

		return err
	}

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()

	go func() {
		err := r.scheduler.Run(schedulerCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Scheduler stopped", "error", err)
		}
	}()

	r.logger.InfoContext(ctx, "Engine started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	r.logger.InfoContext(ctx, "Shutting down engine...")

	stopScheduler()
	r.dispatcher.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return r.engine.Shutdown(shutdownCtx)
}

func (r *Runner) handleWorkflowTriggered(ctx context.Context, event any) error {
	triggeredEvent, ok := event.(*events.WorkflowTriggered)
	if !ok {
		r.logger.ErrorContext(ctx, "Invalid event type for WorkflowTriggered")

		return nil
	}

	spanCtx, span := otelhelper.StartSpan(ctx, r.tracer, "engine.workflow_triggered",
		attribute.String(otelhelper.WorkflowIDKey, triggeredEvent.WorkflowID),
		attribute.String(otelhelper.TriggerIDKey, triggeredEvent.TriggerID),
		attribute.String(otelhelper.EventIDKey, triggeredEvent.ID),
	)
	defer span.End()

	logger := r.logger.With(
		"workflow_id", triggeredEvent.WorkflowID,
		"trigger_id", triggeredEvent.TriggerID,
		"event_id", triggeredEvent.ID,
	)
	logger.InfoContext(spanCtx, "Processing workflow triggered event")

	triggerData := make(map[string]any)
	if triggeredEvent.TriggerData != nil {
		triggerData = triggeredEvent.TriggerData
	}

	executionID, err := r.engine.Execute(spanCtx, triggeredEvent.WorkflowID, triggerData)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(spanCtx, "Failed to start execution", "error", err)

		// Inactive or missing workflows will not become startable on
		// redelivery; only transient failures are worth a retry.
		if errors.Is(err, workflow.ErrWorkflowNotActive) || persistence.IsWorkflowNotFound(err) {
			return nil
		}

		return err
	}

	logger.InfoContext(spanCtx, "Execution started", "execution_id", executionID)

	return nil
}

func (r *Runner) handleEventReceived(ctx context.Context, event any) error {
	receivedEvent, ok := event.(*events.EventReceived)
	if !ok {
		r.logger.ErrorContext(ctx, "Invalid event type for EventReceived")

		return nil
	}

	spanCtx, span := otelhelper.StartSpan(ctx, r.tracer, "engine.event_received",
		attribute.String(otelhelper.EventIDKey, receivedEvent.ID),
	)
	defer span.End()

	if err := r.dispatcher.Sync(spanCtx, r.persistence); err != nil {
		otelhelper.SetError(span, err)
		r.logger.ErrorContext(spanCtx, "Failed to refresh trigger registrations", "error", err)

		return err
	}

	fired := r.dispatcher.Dispatch(spanCtx, receivedEvent.Name, receivedEvent.Payload)
	r.logger.InfoContext(spanCtx, "Dispatched external event",
		"event_name", receivedEvent.Name,
		"executions_fired", fired,
	)

	return nil
}
