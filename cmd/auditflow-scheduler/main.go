package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/auditflow/auditflow/pkg/cmd"
	"github.com/auditflow/auditflow/pkg/log"
	"github.com/auditflow/auditflow/pkg/notifier"
	"github.com/auditflow/auditflow/pkg/otelhelper"
	"github.com/auditflow/auditflow/pkg/scheduler"
	"github.com/auditflow/auditflow/pkg/services"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "auditflow-scheduler",
		Usage:                 "Sweep expired deadlines and apply escalation policies",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for sweep claim leases, empty uses in-process leases",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "sweep-cron",
				Usage:   "Cron expression for the sweep cadence",
				Value:   "* * * * *",
				Sources: cli.EnvVars("SWEEP_CRON"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum entities processed per sweep per category",
				Value:   100,
				Sources: cli.EnvVars("SWEEP_BATCH_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "claim-ttl",
				Usage:   "How long an escalation claim lease lasts",
				Value:   10 * time.Minute,
				Sources: cli.EnvVars("SWEEP_CLAIM_TTL"),
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

			logger.InfoContext(ctx, "Initializing AuditFlow scheduler")

			tracerProvider, err := otelhelper.InitTracer(ctx, "auditflow-scheduler")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var claimer scheduler.Claimer
			if redisURL := command.String("redis-url"); redisURL != "" {
				redisClaimer, err := scheduler.NewRedisClaimer(ctx, redisURL)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to connect to redis", "error", err)

					return err
				}

				defer func() {
					if err := redisClaimer.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close redis claimer", "error", err)
					}
				}()

				claimer = redisClaimer
			} else {
				logger.WarnContext(ctx, "No redis URL configured, claim leases are process-local")
				claimer = scheduler.NewLocalClaimer()
			}

			n := notifier.NewEventBusNotifier(eventBus, logger)
			escalation := services.NewEscalationPolicy()
			engine := services.NewEngine(persistence, escalation, n, logger)
			requirements := services.NewRequirements(persistence, escalation, n, logger)

			sweeper, err := scheduler.NewSweeper(engine, requirements, persistence, claimer, n, logger, scheduler.Config{
				CronExpression: command.String("sweep-cron"),
				BatchSize:      int(command.Int("batch-size")),
				ClaimTTL:       command.Duration("claim-ttl"),
			})
			if err != nil {
				return err
			}

			err = sweeper.Start(ctx)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Scheduler started successfully")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down scheduler...")

			return sweeper.Stop(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
