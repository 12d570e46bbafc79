package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KlikkAI/reporunner-sub008/pkg/eventbus"
	"github.com/KlikkAI/reporunner-sub008/pkg/events"
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
)

// Tracker owns the run record: it creates the execution with one eagerly
// pending node record per graph node, patches per-node lifecycle transitions
// and publishes the corresponding events. Event publish failures are logged
// and never fail the run; the persisted record is the source of truth.
type Tracker struct {
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
}

func NewTracker(executions persistence.ExecutionRepository, publisher eventbus.EventPublisher, logger *slog.Logger) *Tracker {
	return &Tracker{
		executions: executions,
		publisher:  publisher,
		logger:     logger.With("module", "tracker"),
	}
}

// CreateRun persists a pending execution with a pending node record for every
// node in the graph, so progress totals are stable from the first read.
func (t *Tracker) CreateRun(ctx context.Context, workflow *models.Workflow, triggerType string, triggerData map[string]any, userID string) (*models.Execution, error) {
	now := time.Now().UTC()

	nodeExecutions := make([]*models.NodeExecution, 0, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		nodeExecutions = append(nodeExecutions, &models.NodeExecution{
			NodeID:   node.ID,
			NodeName: node.Name,
			Status:   models.NodeStatusPending,
		})
	}

	run := &models.Execution{
		ID:             uuid.New().String(),
		WorkflowID:     workflow.ID,
		UserID:         userID,
		Status:         models.ExecutionStatusPending,
		TriggerType:    triggerType,
		TriggerData:    triggerData,
		TotalNodes:     len(workflow.Nodes),
		NodeExecutions: nodeExecutions,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := t.executions.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	return run, nil
}

// Start transitions the run to running and publishes ExecutionStarted.
func (t *Tracker) Start(ctx context.Context, run *models.Execution) error {
	now := time.Now().UTC()

	run.Status = models.ExecutionStatusRunning
	run.StartTime = &now
	run.UpdatedAt = now

	if err := t.executions.UpdateExecution(ctx, run); err != nil {
		return fmt.Errorf("failed to mark run as running: %w", err)
	}

	t.publish(ctx, run.ID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, run.ID, run.WorkflowID),
		TriggerType: run.TriggerType,
		TriggerData: run.TriggerData,
		TotalNodes:  run.TotalNodes,
	})

	return nil
}

// NodeStarted marks a node record running and records the input bag it was
// handed. The start time is set on the first attempt only, so retries extend
// the node duration instead of resetting it.
func (t *Tracker) NodeStarted(ctx context.Context, run *models.Execution, node *models.Node, attempt int, inputs map[string]any) {
	record := run.NodeExecutionByID(node.ID)
	if record == nil {
		t.logger.Error("No node record for started node", "execution_id", run.ID, "node_id", node.ID)

		return
	}

	now := time.Now().UTC()

	record.Status = models.NodeStatusRunning
	record.Input = inputs
	record.RetryAttempt = attempt

	if record.StartTime == nil {
		record.StartTime = &now
	}

	if err := t.executions.UpdateNodeExecution(ctx, run.ID, record); err != nil {
		t.logger.Error("Failed to persist node start", "execution_id", run.ID, "node_id", node.ID, "error", err)
	}

	t.publish(ctx, run.ID, events.NodeStarted{
		BaseEvent:    events.NewBaseEvent(events.NodeStartedEvent, run.ID, run.WorkflowID),
		NodeID:       node.ID,
		NodeName:     node.Name,
		RetryAttempt: attempt,
	})
}

// NodeFinished records a node's terminal outcome and publishes NodeCompleted
// or NodeFailed. Failed attempts that will be retried still pass through
// here, so subscribers observe every attempt.
func (t *Tracker) NodeFinished(ctx context.Context, run *models.Execution, node *models.Node, result *models.NodeResult, attempt int) {
	record := run.NodeExecutionByID(node.ID)
	if record == nil {
		t.logger.Error("No node record for finished node", "execution_id", run.ID, "node_id", node.ID)

		return
	}

	now := time.Now().UTC()

	record.EndTime = &now
	record.Output = result.Output
	record.Error = result.Error
	record.RetryAttempt = attempt
	record.RecomputeDuration()

	if result.Success {
		record.Status = models.NodeStatusSuccess
	} else {
		record.Status = models.NodeStatusError
	}

	run.RecomputeProgress()
	run.UpdatedAt = now

	if err := t.executions.UpdateNodeExecution(ctx, run.ID, record); err != nil {
		t.logger.Error("Failed to persist node result", "execution_id", run.ID, "node_id", node.ID, "error", err)
	}

	if result.Success {
		t.publish(ctx, run.ID, events.NodeCompleted{
			BaseEvent:       events.NewBaseEvent(events.NodeCompletedEvent, run.ID, run.WorkflowID),
			NodeID:          node.ID,
			Output:          result.Output,
			DurationMs:      result.Duration.Milliseconds(),
			ProgressPercent: progressPercent(run),
		})

		return
	}

	t.publish(ctx, run.ID, events.NodeFailed{
		BaseEvent:    events.NewBaseEvent(events.NodeFailedEvent, run.ID, run.WorkflowID),
		NodeID:       node.ID,
		Error:        result.Error,
		DurationMs:   result.Duration.Milliseconds(),
		RetryAttempt: attempt,
	})
}

// NodeSkipped marks a node that will never run in this execution. Skipped is
// terminal, so the node counts toward progress, but no node event is
// published for it.
func (t *Tracker) NodeSkipped(ctx context.Context, run *models.Execution, nodeID string) {
	record := run.NodeExecutionByID(nodeID)
	if record == nil {
		return
	}

	record.Status = models.NodeStatusSkipped
	run.RecomputeProgress()

	if err := t.executions.UpdateNodeExecution(ctx, run.ID, record); err != nil {
		t.logger.Error("Failed to persist skipped node", "execution_id", run.ID, "node_id", nodeID, "error", err)
	}
}

// Complete drives the run to a terminal status, derives the run duration and
// publishes the matching lifecycle event.
func (t *Tracker) Complete(ctx context.Context, run *models.Execution, status models.ExecutionStatus, errorMessage string) error {
	if !run.Status.CanTransitionTo(status) {
		return fmt.Errorf("invalid status transition %s -> %s for execution %s", run.Status, status, run.ID)
	}

	now := time.Now().UTC()

	run.Status = status
	run.EndTime = &now
	run.ErrorMessage = errorMessage
	run.UpdatedAt = now
	run.RecomputeProgress()

	if run.StartTime != nil {
		run.DurationMs = now.Sub(*run.StartTime).Milliseconds()
	}

	if err := t.executions.UpdateExecution(ctx, run); err != nil {
		return fmt.Errorf("failed to persist run completion: %w", err)
	}

	if status == models.ExecutionStatusSuccess {
		t.publish(ctx, run.ID, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, run.ID, run.WorkflowID),
			Status:        status,
			DurationMs:    run.DurationMs,
			NodesExecuted: run.CompletedNodes,
		})

		return nil
	}

	t.publish(ctx, run.ID, events.ExecutionFailed{
		BaseEvent:     events.NewBaseEvent(events.ExecutionFailedEvent, run.ID, run.WorkflowID),
		Status:        status,
		Error:         errorMessage,
		DurationMs:    run.DurationMs,
		NodesExecuted: run.CompletedNodes,
	})

	return nil
}

func (t *Tracker) publish(ctx context.Context, key string, event eventbus.Event) {
	if t.publisher == nil {
		return
	}

	if err := t.publisher.Publish(ctx, key, event); err != nil {
		t.logger.Warn("Failed to publish event", "event_type", event.GetType(), "execution_id", key, "error", err)
	}
}

func progressPercent(run *models.Execution) float64 {
	if run.TotalNodes == 0 {
		return 0
	}

	return float64(run.CompletedNodes) / float64(run.TotalNodes) * 100
}
