// Package main provides the CareOps monitor daemon: it runs the agent
// pipeline on a cron schedule and consumes manual runs from the Redis
// queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/acctcare/careops/pkg/cmd"
	"github.com/acctcare/careops/pkg/log"
	"github.com/acctcare/careops/pkg/models"
	"github.com/acctcare/careops/pkg/triggers"
	"github.com/acctcare/careops/pkg/triggers/queue"
	"github.com/acctcare/careops/pkg/triggers/schedule"
)

func main() {
	command := &cli.Command{
		Name:                  "careops-monitor",
		Usage:                 "Run monitoring cycles on a schedule and consume queued runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
				Name:    "cron",
				Usage:   "Cron expression for the monitoring cycle",
				Value:   schedule.DefaultCronExpr,
				Sources: cli.EnvVars("MONITOR_CRON"),
			},
			&cli.StringFlag{
				Name:    "timezone",
				Usage:   "Timezone for the cron schedule",
				Sources: cli.EnvVars("MONITOR_TIMEZONE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the run queue (empty disables the queue trigger)",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "run-queue",
				Usage:   "Redis list polled for manual run requests",
				Value:   queue.DefaultQueue,
				Sources: cli.EnvVars("RUN_QUEUE"),
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
				Usage:   "Default notification audience",
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
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("monitor")
	logger.InfoContext(ctx, "Initializing CareOps Monitor")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "careops-monitor", logger)
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

	callback := func(ctx context.Context, data map[string]any) error {
		trigger, _ := data["trigger_type"].(string)
		role, _ := data["target_role"].(string)

		state, err := pipeline.Orchestrator.RunWorkflow(ctx, trigger, models.Role(role))
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Workflow run finished",
			"workflow_id", state.WorkflowID,
			"status", state.Status,
			"trigger", trigger,
		)

		return nil
	}

	var active []triggers.Trigger

	scheduleTrigger, err := schedule.NewTrigger(command.String("cron"), command.String("timezone"), logger)
	if err != nil {
		return err
	}

	if err := scheduleTrigger.Start(ctx, callback); err != nil {
		return err
	}

	active = append(active, scheduleTrigger)

	if addr := command.String("redis-addr"); addr != "" {
		queueTrigger, err := queue.NewTrigger(addr, command.String("redis-password"), 0, command.String("run-queue"), logger)
		if err != nil {
			return err
		}

		if err := queueTrigger.Start(ctx, callback); err != nil {
			return err
		}

		active = append(active, queueTrigger)
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx := context.Background()
	for _, trigger := range active {
		if err := trigger.Stop(shutdownCtx); err != nil {
			logger.Error("Failed to stop trigger", "error", err)
		}
	}

	return nil
}
