package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/voxflow/voxflow/pkg/cmd"
	"github.com/voxflow/voxflow/pkg/log"
	"github.com/voxflow/voxflow/pkg/nodes/email"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "voxflow-api",
		Usage:                 "Serve the call, webhook, and workflow HTTP API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "analyzer-url",
				Usage:   "Base URL of the AI analysis service",
				Sources: cli.EnvVars("ANALYZER_URL"),
			},
			&cli.StringFlag{
				Name:    "analyzer-api-key",
				Sources: cli.EnvVars("ANALYZER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "crm-url",
				Usage:   "Base URL of the CRM bridge",
				Sources: cli.EnvVars("CRM_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-api-key",
				Sources: cli.EnvVars("CRM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "smtp-host",
				Sources: cli.EnvVars("SMTP_HOST"),
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Value:   587,
				Sources: cli.EnvVars("SMTP_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Sources: cli.EnvVars("SMTP_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Sources: cli.EnvVars("SMTP_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Sources: cli.EnvVars("SMTP_FROM"),
			},
			&cli.BoolFlag{
				Name:    "smtp-tls",
				Sources: cli.EnvVars("SMTP_TLS"),
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

			logger.InfoContext(ctx, "Initializing voxflow API")

			nodeConfig := cmd.NodeConfig{
				AnalyzerURL:    command.String("analyzer-url"),
				AnalyzerAPIKey: command.String("analyzer-api-key"),
				CRMURL:         command.String("crm-url"),
				CRMAPIKey:      command.String("crm-api-key"),
			}

			if host := command.String("smtp-host"); host != "" {
				nodeConfig.SMTP = &email.SMTPConfig{
					Host:     host,
					Port:     command.Int("smtp-port"),
					Username: command.String("smtp-username"),
					Password: command.String("smtp-password"),
					From:     command.String("smtp-from"),
					UseTLS:   command.Bool("smtp-tls"),
				}
			}

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

			eventBus := cmd.NewEventBus(command.String("event-bus"), "api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			notificationBus := cmd.NewNotificationEventBus(command.String("event-bus"), "api", logger)
			defer func() {
				if err := notificationBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close notification bus", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger, nodeConfig)

			api := NewAPI(logger, store, jobs, eventBus, notificationBus, registry)

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
