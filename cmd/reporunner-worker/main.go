// Package main provides the Reporunner worker: it starts trigger sources for
// stored workflows and executes the runs they fire.
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/KlikkAI/reporunner-sub008/pkg/cmd"
	"github.com/KlikkAI/reporunner-sub008/pkg/engine"
	"github.com/KlikkAI/reporunner-sub008/pkg/log"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

func main() {
	command := &cli.Command{
		Name:                  "reporunner-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that triggers and executes workflows",
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
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing handler and trigger plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "triggers-config",
				Usage:   "Optional YAML file with extra trigger bindings",
				Sources: cli.EnvVars("TRIGGERS_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Maximum number of concurrently executing runs",
				Value:   engine.DefaultWorkers,
				Sources: cli.EnvVars("WORKERS"),
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

			logger := log.WithModule("reporunner-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Reporunner Worker")

			registry := cmd.NewRegistry(logger, command.String("plugins-path"))

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "reporunner-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			eng := engine.New(logger, registry, persist, eventBus, protocol.NoCredentials{}, engine.Config{
				Workers: command.Int("workers"),
			})

			worker := NewWorker(workerID, logger, persist, registry, eventBus, eng)

			return worker.Run(ctx, command.String("triggers-config"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
