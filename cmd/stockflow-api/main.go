package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/stockflow/pkg/actions/email"
	"github.com/dukex/stockflow/pkg/cmd"
	"github.com/dukex/stockflow/pkg/flow"
	"github.com/dukex/stockflow/pkg/log"
)

const defaultPort = 9091

func main() {
	_ = godotenv.Load()

	command := &cli.Command{
		Name:                  "stockflow-api",
		Usage:                 "Manage inventory flows and inspect their executions",
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
			logger := log.WithModule("stockflow-api")

			logger.InfoContext(ctx, "Initializing Stockflow API")

			tracer, shutdownTracer, err := cmd.NewTracer(ctx, command.Bool("otel-enabled"), "stockflow-api")
			if err != nil {
				return err
			}

			defer func() {
				err := shutdownTracer(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "stockflow-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
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
				ActionTimeout: command.Duration("action-timeout"),
				FailurePolicy: command.String("failure-policy"),
			}, logger)
			if err != nil {
				return err
			}

			if cmd.IsInProcessEventBus(command.String("event-bus")) {
				err = flow.NewDispatcher(persistence.Flows(), executor, logger).Register(eventBus)
				if err != nil {
					return err
				}

				err = eventBus.Subscribe(ctx)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "In-process event bus, flows run inside the API")
			}

			api := NewAPI(logger, persistence, registry, executor, eventBus)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
