package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/auditflow/auditflow/pkg/cmd"
	"github.com/auditflow/auditflow/pkg/log"
	"github.com/auditflow/auditflow/pkg/oracle"
	"github.com/auditflow/auditflow/pkg/otelhelper"
	"github.com/auditflow/auditflow/pkg/services"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "auditflow-api",
		Usage:                 "Manage approval workflows, submissions, and findings",
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
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "oracle-url",
				Usage:   "Validation oracle endpoint, empty disables scoring",
				Sources: cli.EnvVars("ORACLE_URL"),
			},
			&cli.StringFlag{
				Name:    "oracle-api-key",
				Usage:   "API key for the validation oracle",
				Sources: cli.EnvVars("ORACLE_API_KEY"),
			},
			&cli.DurationFlag{
				Name:    "oracle-timeout",
				Usage:   "Timeout for a single oracle scoring call",
				Value:   10 * time.Second,
				Sources: cli.EnvVars("ORACLE_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:    "auto-approve",
				Usage:   "Skip human review for clean submissions above the threshold",
				Sources: cli.EnvVars("AUTO_APPROVE"),
			},
			&cli.FloatFlag{
				Name:    "auto-approve-threshold",
				Usage:   "Minimum validation score (0-10) for auto-approval",
				Value:   8.0,
				Sources: cli.EnvVars("AUTO_APPROVE_THRESHOLD"),
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

			logger.InfoContext(ctx, "Initializing AuditFlow API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "auditflow-api")
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

			var validationOracle oracle.ValidationOracle
			if oracleURL := command.String("oracle-url"); oracleURL != "" {
				validationOracle = oracle.NewHTTPOracle(logger, oracle.HTTPOracleConfig{
					Endpoint: oracleURL,
					APIKey:   command.String("oracle-api-key"),
					Timeout:  command.Duration("oracle-timeout"),
				})
			} else {
				logger.WarnContext(ctx, "No oracle endpoint configured, submissions go straight to manual review")
				validationOracle = &oracle.StaticOracle{Err: oracle.ErrUnavailable}
			}

			pipelineConfig := services.PipelineConfig{
				AutoApprove:          command.Bool("auto-approve"),
				AutoApproveThreshold: command.Float("auto-approve-threshold"),
				OracleTimeout:        command.Duration("oracle-timeout"),
			}

			api := NewAPI(logger, persistence, eventBus, validationOracle, pipelineConfig)

			err = api.Start(int(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
