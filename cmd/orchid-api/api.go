// Package main provides the Orchid API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ferrant/orchid/pkg/dispatcher"
	"github.com/ferrant/orchid/pkg/eventbus"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/ferrant/orchid/pkg/registry"
	"github.com/ferrant/orchid/pkg/services"
	"github.com/ferrant/orchid/pkg/web"
	"github.com/ferrant/orchid/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	engine      *workflow.Engine
	dispatcher  *dispatcher.Dispatcher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	engine := workflow.NewEngine(logger, store, registry, workflow.WithEventBus(eventBus))

	return &API{
		logger:      logger,
		persistence: store,
		registry:    registry,
		engine:      engine,
		dispatcher:  dispatcher.New(logger, engine),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.registry)

	sink := &syncedEventSink{
		logger:     a.logger,
		store:      a.persistence,
		dispatcher: a.dispatcher,
	}

	handlers := web.NewAPIHandlers(workflowService, a.engine, sink, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Orchid API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/pause", handlers.PauseWorkflow)
	w.Post("/:id/archive", handlers.ArchiveWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	app.Post("/events", handlers.PostEvent)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

// Shutdown cancels in-flight executions and waits for them to settle.
func (a *API) Shutdown(ctx context.Context) error {
	a.dispatcher.Wait()

	return a.engine.Shutdown(ctx)
}

// syncedEventSink re-reads trigger registrations from storage before each
// dispatch, so workflows activated after the server booted still receive
// events.
type syncedEventSink struct {
	logger     *slog.Logger
	store      persistence.Persistence
	dispatcher *dispatcher.Dispatcher
}

func (s *syncedEventSink) Dispatch(ctx context.Context, eventType string, payload map[string]any) int {
	if err := s.dispatcher.Sync(ctx, s.store); err != nil {
		s.logger.ErrorContext(ctx, "Failed to refresh trigger registrations", "error", err)
	}

	return s.dispatcher.Dispatch(ctx, eventType, payload)
}
