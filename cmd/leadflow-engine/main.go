package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/leadflowhq/leadflow/pkg/cmd"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/log"
	"github.com/leadflowhq/leadflow/pkg/otelhelper"
)

func main() {
	cmd := &cli.Command{
		Name:                  "leadflow-engine",
		EnableShellCompletion: true,
		Usage:                 "Run the automation flow engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
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
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the engine YAML config file",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Enable OpenTelemetry tracing",
				Value:   false,
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("leadflow-engine").With("engine_id", engineID)

			logger.InfoContext(ctx, "Initializing LeadFlow Engine")

			engineConfig := config.LoadEngineConfigOrDefault(command.String("config"))
			if err := config.ValidateEngineConfig(engineConfig); err != nil {
				return err
			}

			var tracerShutdown func(context.Context) error

			if command.Bool("otel") {
				_, shutdown, err := otelhelper.NewTracer(ctx, "leadflow-engine")
				if err != nil {
					return err
				}

				tracerShutdown = shutdown
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
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

			engine := NewEngineManager(engineID, engineConfig, persistence, eventBus, logger)

			err := engine.Start(ctx)

			if tracerShutdown != nil {
				if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
					logger.ErrorContext(ctx, "Failed to shut down tracer", "error", shutdownErr)
				}
			}

			return err
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
