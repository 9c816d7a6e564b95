// Package main provides the voxflow dialer worker implementation.
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/voxflow/voxflow/pkg/calls"
	"github.com/voxflow/voxflow/pkg/dialer"
	"github.com/voxflow/voxflow/pkg/eventbus"
	"github.com/voxflow/voxflow/pkg/notifier"
	"github.com/voxflow/voxflow/pkg/otelhelper"
	"github.com/voxflow/voxflow/pkg/persistence"
	"github.com/voxflow/voxflow/pkg/queue"
	"github.com/voxflow/voxflow/pkg/telephony"
	"github.com/voxflow/voxflow/pkg/watchdog"
)

type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
}

type WorkerConfig struct {
	WorkerID    string
	CallbackURL string
	Concurrency int
	Provider    ProviderConfig
}

type Worker struct {
	config          WorkerConfig
	store           persistence.Persistence
	jobs            queue.Queue
	eventBus        eventbus.EventBus
	notificationBus eventbus.EventBus
	logger          *slog.Logger
}

func NewWorker(
	config WorkerConfig,
	store persistence.Persistence,
	jobs queue.Queue,
	eventBus eventbus.EventBus,
	notificationBus eventbus.EventBus,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		config:          config,
		store:           store,
		jobs:            jobs,
		eventBus:        eventBus,
		notificationBus: notificationBus,
		logger:          logger,
	}
}

// Run starts the dialer pool and blocks until the process is signalled.
func (w *Worker) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := otelhelper.NewTracer(ctx, "voxflow-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	provider := telephony.NewRESTProvider(
		w.config.Provider.Name,
		w.config.Provider.BaseURL,
		w.config.Provider.APIKey,
	)

	// A call that times out in this process notifies the feed and publishes
	// its terminal transition on the lifecycle bus; the API process consumes
	// the bus and fires the matching workflows.
	feed := notifier.New(w.notificationBus, w.logger)
	effects := calls.NewTerminalEffects(feed, w.eventBus, w.logger)

	wd := watchdog.New(w.store.Calls(), watchdog.DefaultGracePeriod, w.logger, effects.Fire)
	defer wd.Stop()

	d := dialer.NewDialer(dialer.Config{
		WorkerID:    w.config.WorkerID,
		CallbackURL: w.config.CallbackURL,
		Concurrency: w.config.Concurrency,
	}, w.jobs, w.store.Calls(), provider, wd, w.eventBus, w.logger, tracer)

	d.Start(ctx)

	<-ctx.Done()
	w.logger.Info("Shutting down, draining workers")
	d.Wait()

	return nil
}
