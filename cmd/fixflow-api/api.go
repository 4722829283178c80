// Package main provides the Fixflow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/fixlify/fixflow/pkg/cmd"
	"github.com/fixlify/fixflow/pkg/eventbus"
	"github.com/fixlify/fixflow/pkg/persistence"
	"github.com/fixlify/fixflow/pkg/scheduler"
	"github.com/fixlify/fixflow/pkg/services"
	"github.com/fixlify/fixflow/pkg/suspend"
	"github.com/fixlify/fixflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	queue       suspend.Queue
	dispatch    cmd.DispatchConfig
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	queue suspend.Queue,
	dispatch cmd.DispatchConfig,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		queue:       queue,
		dispatch:    dispatch,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	engine := cmd.NewEngine(a.persistence, a.queue, a.eventBus, a.dispatch, a.logger)

	workflowService := services.NewWorkflow(engine.Repository, a.persistence.ExecutionLogRepository())
	automation := services.NewAutomation(engine.Repository, engine.Matcher, engine.Executor, a.logger)
	poller := scheduler.NewPoller(engine.Repository, a.persistence.EntityRepository(), engine.Matcher, engine.Executor, a.logger)

	handlers := web.NewAPIHandlers(workflowService, automation, poller, a.validate, a.eventBus)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Fixflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)

	app.Post("/events", handlers.HandleEvent)
	app.Post("/events/enqueue", handlers.EnqueueEvent)
	app.Post("/scheduler/run", handlers.RunScheduler)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
