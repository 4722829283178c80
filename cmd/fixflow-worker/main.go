package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fixlify/fixflow/pkg/cmd"
	"github.com/fixlify/fixflow/pkg/log"
	"github.com/fixlify/fixflow/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "fixflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute automation workflows from trigger events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for delay continuations",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "resume-interval",
				Usage:   "How often to claim due delay continuations",
				Value:   15 * time.Second,
				Sources: cli.EnvVars("RESUME_INTERVAL"),
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

			tracerProvider, err := otelhelper.InitTracer(ctx, "fixflow-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					log.WithModule("fixflow-worker").ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("fixflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Fixflow Worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "fixflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			queue := cmd.NewSuspendQueue(command.String("redis-url"), logger)
			defer func() {
				err := queue.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close suspension queue", "error", err)
				}
			}()

			engine := cmd.NewEngine(persistence, queue, eventBus, dispatchConfigFromEnv(), logger)

			worker := NewWorkerManager(
				workerID,
				engine,
				eventBus,
				queue,
				command.Duration("resume-interval"),
				tracerProvider.Tracer("fixflow-worker"),
				logger,
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func dispatchConfigFromEnv() cmd.DispatchConfig {
	return cmd.DispatchConfig{
		TelnyxAPIKey:     os.Getenv("TELNYX_API_KEY"),
		TelnyxFromNumber: os.Getenv("TELNYX_FROM_NUMBER"),
		MailgunDomain:    os.Getenv("MAILGUN_DOMAIN"),
		MailgunAPIKey:    os.Getenv("MAILGUN_API_KEY"),
		MailgunFrom:      os.Getenv("MAILGUN_FROM"),
		PortalBaseURL:    os.Getenv("PORTAL_BASE_URL"),
	}
}
