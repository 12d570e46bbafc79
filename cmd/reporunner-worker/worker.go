package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/config"
	"github.com/KlikkAI/reporunner-sub008/pkg/engine"
	"github.com/KlikkAI/reporunner-sub008/pkg/eventbus"
	"github.com/KlikkAI/reporunner-sub008/pkg/events"
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/registry"
)

const shutdownTimeout = 30 * time.Second

// Worker binds stored workflows to their trigger sources. Each trigger node
// whose config names a source gets a running trigger; every fire submits one
// run to the embedded engine.
type Worker struct {
	id       string
	logger   *slog.Logger
	persist  persistence.Persistence
	registry *registry.Registry
	eventBus eventbus.EventBus
	engine   *engine.Engine

	triggers []protocol.Trigger
}

func NewWorker(id string, logger *slog.Logger, persist persistence.Persistence, reg *registry.Registry, bus eventbus.EventBus, eng *engine.Engine) *Worker {
	return &Worker{
		id:       id,
		logger:   logger,
		persist:  persist,
		registry: reg,
		eventBus: bus,
		engine:   eng,
	}
}

// Run starts triggers and blocks until SIGINT/SIGTERM.
func (w *Worker) Run(ctx context.Context, triggersConfig string) error {
	if err := w.subscribeLifecycleEvents(ctx); err != nil {
		return err
	}

	if err := w.startTriggers(ctx); err != nil {
		return err
	}

	if triggersConfig != "" {
		if err := w.startConfiguredTriggers(ctx, triggersConfig); err != nil {
			return err
		}
	}

	w.logger.InfoContext(ctx, "Worker started", "triggers", len(w.triggers))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		w.logger.Info("Shutting down worker", "signal", sig.String())
	case <-ctx.Done():
		w.logger.Info("Context cancelled, shutting down worker")
	}

	return w.shutdown()
}

func (w *Worker) startTriggers(ctx context.Context) error {
	workflows, err := w.persist.WorkflowRepository().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	for _, workflow := range workflows {
		for _, node := range workflow.Nodes {
			if node.Type != models.NodeTypeTrigger {
				continue
			}

			source, _ := node.Config["source"].(string)
			if source == "" {
				continue
			}

			trigger, err := w.buildTrigger(workflow, node, source)
			if err != nil {
				w.logger.ErrorContext(ctx, "Failed to build trigger, skipping",
					"workflow_id", workflow.ID,
					"node_id", node.ID,
					"source", source,
					"error", err,
				)

				continue
			}

			if err := trigger.Start(ctx, w.callbackFor(workflow.ID, source)); err != nil {
				w.logger.ErrorContext(ctx, "Failed to start trigger",
					"workflow_id", workflow.ID,
					"source", source,
					"error", err,
				)

				continue
			}

			w.triggers = append(w.triggers, trigger)
		}
	}

	return nil
}

// startConfiguredTriggers starts bindings declared in the worker's own
// triggers file, independent of trigger nodes stored on workflows.
func (w *Worker) startConfiguredTriggers(ctx context.Context, path string) error {
	bindings, err := config.LoadTriggers(path)
	if err != nil {
		return err
	}

	for _, binding := range bindings {
		cfg := make(map[string]any, len(binding.Configuration)+1)
		for key, value := range binding.Configuration {
			cfg[key] = value
		}

		cfg["workflow_id"] = binding.WorkflowID

		trigger, err := w.registry.CreateTrigger(binding.Type, cfg)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to build configured trigger, skipping",
				"name", binding.Name,
				"type", binding.Type,
				"error", err,
			)

			continue
		}

		if err := trigger.Start(ctx, w.callbackFor(binding.WorkflowID, binding.Type)); err != nil {
			w.logger.ErrorContext(ctx, "Failed to start configured trigger",
				"name", binding.Name,
				"type", binding.Type,
				"error", err,
			)

			continue
		}

		w.triggers = append(w.triggers, trigger)
	}

	return nil
}

func (w *Worker) buildTrigger(workflow *models.Workflow, node *models.Node, source string) (protocol.Trigger, error) {
	config := make(map[string]any, len(node.Config)+1)
	for key, value := range node.Config {
		config[key] = value
	}

	config["workflow_id"] = workflow.ID

	return w.registry.CreateTrigger(source, config)
}

// callbackFor submits a run each time the trigger fires. The workflow is
// re-read on every fire so runs always execute the latest definition.
func (w *Worker) callbackFor(workflowID, triggerType string) protocol.TriggerCallback {
	return func(ctx context.Context, data map[string]any) error {
		workflow, err := w.persist.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		run, err := w.engine.Submit(ctx, workflow, engine.SubmitOptions{
			TriggerType: triggerType,
			TriggerData: data,
		})
		if err != nil {
			return err
		}

		w.logger.InfoContext(ctx, "Run submitted from trigger",
			"workflow_id", workflowID,
			"execution_id", run.ID,
			"trigger_type", triggerType,
		)

		return nil
	}
}

func (w *Worker) subscribeLifecycleEvents(ctx context.Context) error {
	err := w.eventBus.Handle(events.ExecutionCompletedEvent, func(ctx context.Context, event any) error {
		if completed, ok := event.(*events.ExecutionCompleted); ok {
			w.logger.InfoContext(ctx, "Execution completed",
				"execution_id", completed.ExecutionID,
				"workflow_id", completed.WorkflowID,
				"duration_ms", completed.DurationMs,
			)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.ExecutionFailedEvent, func(ctx context.Context, event any) error {
		if failed, ok := event.(*events.ExecutionFailed); ok {
			w.logger.WarnContext(ctx, "Execution failed",
				"execution_id", failed.ExecutionID,
				"workflow_id", failed.WorkflowID,
				"status", failed.Status,
				"error", failed.Error,
			)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return w.eventBus.Subscribe(ctx)
}

func (w *Worker) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, trigger := range w.triggers {
		if err := trigger.Stop(ctx); err != nil {
			w.logger.Error("Failed to stop trigger", "error", err)
		}
	}

	return w.engine.Close(ctx)
}
