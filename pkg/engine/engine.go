// Package engine runs workflows: it validates submitted graphs, creates run
// records, executes the graph on a bounded worker pool and exposes
// cancellation and run lookup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/KlikkAI/reporunner-sub008/pkg/dispatcher"
	"github.com/KlikkAI/reporunner-sub008/pkg/eventbus"
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/otelhelper"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/registry"
)

// DefaultWorkers bounds how many runs execute concurrently when the
// deployment does not configure a pool size.
const DefaultWorkers = 5

var (
	// ErrConcurrentRunNotAllowed rejects a submission while another run of
	// the same workflow is active and the workflow forbids overlap.
	ErrConcurrentRunNotAllowed = errors.New("workflow does not allow concurrent runs")

	// ErrEngineClosed rejects submissions after shutdown began.
	ErrEngineClosed = errors.New("engine is shut down")

	errRunCancelled = errors.New("execution cancelled")
	errRunTimedOut  = errors.New("execution timed out")
)

type Config struct {
	Workers int
}

// SubmitOptions carries the trigger provenance of a run.
type SubmitOptions struct {
	TriggerType string
	TriggerData map[string]any
	UserID      string
}

// Engine is the single entry point for running workflows. Submissions are
// asynchronous: Submit returns the pending run record immediately and a
// worker picks the run up when a pool slot frees.
type Engine struct {
	scheduler   *Scheduler
	tracker     *Tracker
	registry    *registry.Registry
	executions  persistence.ExecutionRepository
	credentials protocol.CredentialResolver
	logger      *slog.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelCauseFunc
	active  map[string]int
	closed  bool
}

func New(logger *slog.Logger, reg *registry.Registry, persist persistence.Persistence, publisher eventbus.EventPublisher, credentials protocol.CredentialResolver, cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	if credentials == nil {
		credentials = protocol.NoCredentials{}
	}

	logger = logger.With("module", "engine")

	tracker := NewTracker(persist.ExecutionRepository(), publisher, logger)

	return &Engine{
		scheduler:   NewScheduler(dispatcher.NewDispatcher(reg, logger), tracker, logger),
		tracker:     tracker,
		registry:    reg,
		executions:  persist.ExecutionRepository(),
		credentials: credentials,
		logger:      logger,
		slots:       make(chan struct{}, workers),
		cancels:     make(map[string]context.CancelCauseFunc),
		active:      make(map[string]int),
	}
}

// Submit validates the workflow, creates a pending run and schedules it. The
// graph snapshot taken here is what the run executes; later edits to the
// workflow do not affect it.
func (e *Engine) Submit(ctx context.Context, workflow *models.Workflow, opts SubmitOptions) (*models.Execution, error) {
	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	// A config failing its handler schema rejects the submission the same
	// way a malformed graph does.
	for _, node := range workflow.Nodes {
		if err := e.registry.ValidateNodeConfig(node); err != nil {
			return nil, &models.ValidationError{Reason: err.Error()}
		}
	}

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()

		return nil, ErrEngineClosed
	}

	if !workflow.Settings.AllowConcurrentRuns && e.active[workflow.ID] > 0 {
		e.mu.Unlock()

		return nil, fmt.Errorf("%w: workflow %s has an active run", ErrConcurrentRunNotAllowed, workflow.ID)
	}

	e.active[workflow.ID]++
	e.mu.Unlock()

	run, err := e.tracker.CreateRun(ctx, workflow, opts.TriggerType, opts.TriggerData, opts.UserID)
	if err != nil {
		e.release(workflow.ID, "")

		return nil, err
	}

	// The run owns its own context: it must survive the submitting request
	// and stop on the workflow's own timeout or an explicit Cancel.
	timeoutCtx, timeoutCancel := context.WithTimeoutCause(context.Background(), workflow.Timeout(), errRunTimedOut)
	runCtx, cancel := context.WithCancelCause(timeoutCtx)

	e.mu.Lock()
	e.cancels[run.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer timeoutCancel()
		defer e.release(workflow.ID, run.ID)

		select {
		case e.slots <- struct{}{}:
		case <-runCtx.Done():
			e.closeUnstarted(runCtx, run)

			return
		}

		defer func() { <-e.slots }()

		e.run(runCtx, workflow, run, opts)
	}()

	return run, nil
}

// Cancel stops an in-flight run cooperatively: the currently executing node
// finishes, subsequent nodes are skipped and the run ends as cancelled.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[executionID]
	e.mu.Unlock()

	if ok {
		cancel(errRunCancelled)

		return nil
	}

	run, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if run.Status.Terminal() {
		return fmt.Errorf("execution %s already finished with status %s", executionID, run.Status)
	}

	// Pending run not scheduled on this engine instance. Close the record
	// directly so it cannot start later.
	return e.tracker.Complete(ctx, run, models.ExecutionStatusCancelled, errRunCancelled.Error())
}

// GetRun returns the persisted run record, including per-node state.
func (e *Engine) GetRun(ctx context.Context, executionID string) (*models.Execution, error) {
	return e.executions.GetByID(ctx, executionID)
}

// ListRuns returns runs newest first, optionally filtered by workflow.
func (e *Engine) ListRuns(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return e.executions.ListByWorkflow(ctx, workflowID)
}

// Close stops accepting submissions and waits for in-flight runs to finish,
// up to the context deadline.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown interrupted: %w", ctx.Err())
	}
}

func (e *Engine) run(ctx context.Context, workflow *models.Workflow, run *models.Execution, opts SubmitOptions) {
	logger := e.logger.With("execution_id", run.ID, "workflow_id", workflow.ID)

	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("reporunner.engine"), "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, run.ID),
		attribute.String(otelhelper.TriggerTypeKey, opts.TriggerType),
	)
	defer span.End()

	if err := e.tracker.Start(ctx, run); err != nil {
		logger.Error("Failed to mark run as running", "error", err)

		return
	}

	executionCtx := models.NewExecutionContext(workflow.ID, run.ID, opts.UserID, opts.TriggerData)

	creds, err := e.credentials.Load(ctx, opts.UserID)
	if err != nil {
		logger.Warn("Failed to load credentials, running without", "error", err)
	} else {
		executionCtx.Credentials = creds
	}

	logger.Info("Run started", "total_nodes", run.TotalNodes)

	if err := e.scheduler.Execute(ctx, workflow, run, executionCtx); err != nil {
		logger.Error("Run bookkeeping failed", "error", err)
		otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, run.ID))

		return
	}

	if run.Status != models.ExecutionStatusSuccess {
		otelhelper.SetError(span, errors.New(run.ErrorMessage),
			attribute.String(otelhelper.ExecutionIDKey, run.ID))
	}

	logger.Info("Run finished", "status", run.Status, "duration_ms", run.DurationMs)
}

// closeUnstarted finalizes a run cancelled or timed out before it acquired a
// worker slot.
func (e *Engine) closeUnstarted(ctx context.Context, run *models.Execution) {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = ctx.Err()
	}

	detached := context.WithoutCancel(ctx)

	if err := e.tracker.Complete(detached, run, statusForCause(cause), cause.Error()); err != nil {
		e.logger.Error("Failed to close unstarted run", "execution_id", run.ID, "error", err)
	}
}

func (e *Engine) release(workflowID, executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if executionID != "" {
		delete(e.cancels, executionID)
	}

	e.active[workflowID]--
	if e.active[workflowID] <= 0 {
		delete(e.active, workflowID)
	}
}
