package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/acctcare/careops/pkg/cmd"
	"github.com/acctcare/careops/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "careops-api",
		Usage:                 "Hospital operations decision-support API",
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
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "ollama-url",
				Usage:   "Base URL of the Ollama inference server",
				Sources: cli.EnvVars("OLLAMA_URL"),
			},
			&cli.StringFlag{
				Name:    "ollama-model",
				Usage:   "Model used for plan and message generation",
				Sources: cli.EnvVars("OLLAMA_MODEL"),
			},
			&cli.IntFlag{
				Name:    "max-iterations",
				Usage:   "Maximum plan/validate attempts per workflow",
				Value:   3,
				Sources: cli.EnvVars("MAX_ITERATIONS"),
			},
			&cli.BoolFlag{
				Name:    "require-approval",
				Usage:   "Hold validated plans for human approval",
				Sources: cli.EnvVars("REQUIRE_APPROVAL"),
			},
			&cli.StringFlag{
				Name:    "target-role",
				Usage:   "Default notification audience (physician, nurse, admin, patient)",
				Value:   "nurse",
				Sources: cli.EnvVars("TARGET_ROLE"),
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

			logger.InfoContext(ctx, "Initializing CareOps API")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "careops-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			pipeline, err := cmd.NewPipeline(logger, store, eventBus, cmd.PipelineOptions{
				OllamaURL:       command.String("ollama-url"),
				OllamaModel:     command.String("ollama-model"),
				MaxIterations:   command.Int("max-iterations"),
				RequireApproval: command.Bool("require-approval"),
				TargetRole:      command.String("target-role"),
			})
			if err != nil {
				return err
			}

			api := NewAPI(logger, store, pipeline)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
