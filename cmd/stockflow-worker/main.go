// Package main provides the stockflow worker: it executes flows on inventory events and sweeps stock levels.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/stockflow/pkg/actions/email"
	"github.com/dukex/stockflow/pkg/cmd"
	"github.com/dukex/stockflow/pkg/log"
	"github.com/dukex/stockflow/pkg/sweep"
)

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "stockflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute inventory flows on inventory events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://<dir> or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the sms and push queues; empty disables them",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "smtp-addr",
				Usage:   "SMTP server host:port; empty disables email actions",
				Sources: cli.EnvVars("SMTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "Sender address of flow emails",
				Value:   "flows@stockflow.local",
				Sources: cli.EnvVars("SMTP_FROM"),
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Usage:   "SMTP username; empty sends without authentication",
				Sources: cli.EnvVars("SMTP_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Usage:   "SMTP password",
				Sources: cli.EnvVars("SMTP_PASSWORD"),
			},
			&cli.DurationFlag{
				Name:    "action-timeout",
				Usage:   "Time limit of a single action dispatch",
				Sources: cli.EnvVars("ACTION_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "failure-policy",
				Usage:   "What a failed action does to a run (continue, fail_fast)",
				Value:   "continue",
				Sources: cli.EnvVars("FAILURE_POLICY"),
			},
			&cli.DurationFlag{
				Name:    "store-cache-ttl",
				Usage:   "How long store records are cached while building execution contexts",
				Sources: cli.EnvVars("STORE_CACHE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "start-checkpoint",
				Usage:   "Persist a RUNNING execution before walking the flow",
				Sources: cli.EnvVars("START_CHECKPOINT"),
			},
			&cli.BoolFlag{
				Name:    "sweep-enabled",
				Usage:   "Periodically emit stock band events for products outside their range",
				Value:   true,
				Sources: cli.EnvVars("SWEEP_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "sweep-schedule",
				Usage:   "Cron schedule of the stock sweep",
				Value:   sweep.DefaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "sweep-repeat-after",
				Usage:   "How long a product is not reported again for the same band",
				Value:   sweep.DefaultRepeatAfter,
				Sources: cli.EnvVars("SWEEP_REPEAT_AFTER"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			logger := log.WithModule("stockflow-worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing Stockflow Worker")

			tracer, shutdownTracer, err := cmd.NewTracer(ctx, command.Bool("otel-enabled"), "stockflow-worker")
			if err != nil {
				return err
			}

			defer func() {
				err := shutdownTracer(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "stockflow-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			redisClient, err := cmd.NewRedisClient(command.String("redis-url"))
			if err != nil {
				return err
			}

			if redisClient != nil {
				defer func() {
					err := redisClient.Close()
					if err != nil {
						logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
					}
				}()
			}

			registry := cmd.NewActionRegistry(cmd.ActionsConfig{
				SMTP: email.Config{
					Addr:     command.String("smtp-addr"),
					From:     command.String("smtp-from"),
					Username: command.String("smtp-username"),
					Password: command.String("smtp-password"),
				},
				Redis: redisClient,
			}, eventBus, logger)

			executor, err := cmd.NewExecutor(persistence, registry, eventBus, tracer, cmd.ExecutorConfig{
				ActionTimeout:   command.Duration("action-timeout"),
				FailurePolicy:   command.String("failure-policy"),
				StoreCacheTTL:   command.Duration("store-cache-ttl"),
				StartCheckpoint: command.Bool("start-checkpoint"),
			}, logger)
			if err != nil {
				return err
			}

			var sweeper *sweep.Sweeper

			if command.Bool("sweep-enabled") {
				sweeper, err = sweep.NewSweeper(
					persistence.Inventory(),
					eventBus,
					command.String("sweep-schedule"),
					command.Duration("sweep-repeat-after"),
					logger,
				)
				if err != nil {
					return err
				}
			}

			worker := NewWorker(workerID, persistence, eventBus, executor, sweeper, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
