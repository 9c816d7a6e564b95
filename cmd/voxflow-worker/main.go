package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/voxflow/voxflow/pkg/cmd"
	"github.com/voxflow/voxflow/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "voxflow-worker",
		Usage:                 "Run the dialer workers that turn queued jobs into provider calls",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "queue-url",
				Usage:    "Connection URL for the call-job queue",
				Required: true,
				Sources:  cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "provider-url",
				Usage:    "Base URL of the voice provider",
				Required: true,
				Sources:  cli.EnvVars("PROVIDER_URL"),
			},
			&cli.StringFlag{
				Name:    "provider-api-key",
				Sources: cli.EnvVars("PROVIDER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "provider-name",
				Value:   "livekit",
				Sources: cli.EnvVars("PROVIDER_NAME"),
			},
			&cli.StringFlag{
				Name:    "callback-url",
				Usage:   "Public URL the provider posts lifecycle webhooks to",
				Sources: cli.EnvVars("CALLBACK_URL"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Number of dialer workers",
				Value:   0,
				Sources: cli.EnvVars("CONCURRENCY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing voxflow worker")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			jobs := cmd.NewQueue(ctx, logger, command.String("queue-url"))
			defer func() {
				if err := jobs.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close queue", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "worker", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			notificationBus := cmd.NewNotificationEventBus(command.String("event-bus"), "worker", logger)
			defer func() {
				if err := notificationBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close notification bus", "error", err)
				}
			}()

			worker := NewWorker(WorkerConfig{
				WorkerID:    workerID,
				CallbackURL: command.String("callback-url"),
				Concurrency: command.Int("concurrency"),
				Provider: ProviderConfig{
					Name:    command.String("provider-name"),
					BaseURL: command.String("provider-url"),
					APIKey:  command.String("provider-api-key"),
				},
			}, store, jobs, eventBus, notificationBus, logger)

			return worker.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
