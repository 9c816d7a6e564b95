// Package main provides the callback scheduler binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/voxflow/voxflow/pkg/cmd"
	"github.com/voxflow/voxflow/pkg/log"
	"github.com/voxflow/voxflow/pkg/scheduler"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "voxflow-scheduler",
		Usage:                 "Promote due scheduled callbacks into call jobs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
				Name:    "billing-url",
				Usage:   "Base URL of the billing service; empty skips balance checks",
				Sources: cli.EnvVars("BILLING_URL"),
			},
			&cli.StringFlag{
				Name:    "billing-api-key",
				Sources: cli.EnvVars("BILLING_API_KEY"),
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

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing voxflow scheduler")

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

			var billing scheduler.Billing
			if billingURL := command.String("billing-url"); billingURL != "" {
				billing = scheduler.NewRESTBilling(billingURL, command.String("billing-api-key"))
			}

			s := scheduler.NewScheduler(store.Callbacks(), jobs, billing, logger)
			if err := s.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			s.Stop()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
