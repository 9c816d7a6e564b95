// Package main provides the voxflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/notifier"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/queue"
	"github.com/voxflow/voxflow/pkg/registry"
	"github.com/voxflow/voxflow/pkg/watchdog"
	"github.com/voxflow/voxflow/pkg/web"
	"github.com/voxflow/voxflow/pkg/workflow"
)

type API struct {
	logger          *slog.Logger
	store           persistence.Persistence
	jobs            queue.Queue
	eventBus        eventbus.EventBus
	notificationBus eventbus.EventBus
	registry        *registry.Registry
	manager         *workflow.Manager
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	jobs queue.Queue,
	eventBus eventbus.EventBus,
	notificationBus eventbus.EventBus,
	reg *registry.Registry,
) *API {
	return &API{
		logger:          logger,
		store:           store,
		jobs:            jobs,
		eventBus:        eventBus,
		notificationBus: notificationBus,
		registry:        reg,
	}
}

func (a *API) App() *fiber.App {
	executor := workflow.NewExecutor(a.store.Executions(), a.registry, a.logger, nil)
	a.manager = workflow.NewManager(a.store.Workflows(), executor, a.eventBus, a.logger)
	feed := notifier.New(a.notificationBus, a.logger)
	effects := calls.NewTerminalEffects(feed, a.eventBus, a.logger)

	// The API process holds no armed timers of its own; its watchdog exists
	// so the reducer can cancel checks armed in the same process during
	// tests and single-binary deployments.
	wd := watchdog.New(a.store.Calls(), watchdog.DefaultGracePeriod, a.logger, effects.Fire)

	callService := calls.NewService(a.jobs, a.store.Calls(), a.eventBus, a.logger)
	reducer := calls.NewReducer(a.store.Calls(), a.store.Callbacks(), wd, effects, a.eventBus, a.logger)
	workflowService := workflow.NewService(a.store.Workflows(), a.store.Executions(), a.registry, a.logger)

	handlers := web.NewAPIHandlers(callService, reducer, workflowService, a.store)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("voxflow API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	// Terminal transitions reach the workflow engine over the lifecycle bus,
	// including the ones a dialer worker applied in another process.
	if err := a.manager.Start(ctx, a.eventBus); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Starting API server", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
