// Package schedule provides the cron trigger source.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

var (
	ErrCronExprRequired = errors.New("schedule trigger cron expression is required")
	ErrWorkflowRequired = errors.New("schedule trigger workflow_id is required")
)

// Trigger fires a workflow run on a cron schedule.
type Trigger struct {
	CronExpr   string
	WorkflowID string

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	cronExpr, _ := config["cron"].(string)
	workflowID, _ := config["workflow_id"].(string)

	trigger := &Trigger{
		CronExpr:   cronExpr,
		WorkflowID: workflowID,
		logger: logger.With(
			"module", "schedule_trigger",
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.CronExpr == "" {
		return ErrCronExprRequired
	}

	if t.WorkflowID == "" {
		return ErrWorkflowRequired
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting schedule trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := t.cron.AddFunc(t.CronExpr, t.fire)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) fire() {
	t.logger.Info("Cron schedule fired")

	triggerData := map[string]any{
		"workflow_id": t.WorkflowID,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		if err := t.callback(context.Background(), triggerData); err != nil {
			t.logger.Error("Failed to submit scheduled run", "error", err)
		}
	}()
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")

	if t.cron != nil {
		stopped := t.cron.Stop()

		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return fmt.Errorf("schedule trigger stop interrupted: %w", ctx.Err())
		}
	}

	return nil
}
