package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fixlify/fixflow/pkg/cmd"
	"github.com/fixlify/fixflow/pkg/log"
	"github.com/fixlify/fixflow/pkg/scheduler"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "fixflow-scheduler",
		Usage:                 "Poll stored entities for due time-based triggers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for delay continuations",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the poll cadence",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("POLL_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single poll tick and exit",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("fixflow-scheduler")

	logger.InfoContext(ctx, "Initializing Fixflow Scheduler")

	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "fixflow-scheduler", logger)
	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
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
	poller := scheduler.NewPoller(
		engine.Repository,
		persistence.EntityRepository(),
		engine.Matcher,
		engine.Executor,
		logger,
	)

	tick := func() {
		result := poller.Run(ctx)

		logger.InfoContext(ctx, "Poll tick finished",
			"success", result.Success,
			"processed", result.ProcessedCount,
			"checked", result.TotalChecked,
			"errors", len(result.Errors),
		)

		for _, pollErr := range result.Errors {
			logger.WarnContext(ctx, "Poll kind reported an error", "error", pollErr)
		}
	}

	if command.Bool("once") {
		tick()

		return nil
	}

	schedule := cron.New()

	_, err := schedule.AddFunc(command.String("schedule"), tick)
	if err != nil {
		return err
	}

	schedule.Start()
	defer schedule.Stop()

	logger.InfoContext(ctx, "Scheduler started", "schedule", command.String("schedule"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.InfoContext(ctx, "Shutting down scheduler...")

	return nil
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
