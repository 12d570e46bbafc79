package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/dispatcher"
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

const (
	retryBackoffBase = 500 * time.Millisecond
	retryBackoffCap  = 30 * time.Second
)

// Scheduler walks one workflow graph per call. Nodes run sequentially in
// dependency order: a node executes only after every incoming edge's source
// reached a terminal state. Condition nodes activate only the edges matching
// their outcome; everything on an untaken branch ends the run as skipped.
type Scheduler struct {
	dispatcher *dispatcher.Dispatcher
	tracker    *Tracker
	logger     *slog.Logger
}

func NewScheduler(d *dispatcher.Dispatcher, tracker *Tracker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		dispatcher: d,
		tracker:    tracker,
		logger:     logger.With("module", "scheduler"),
	}
}

// runState is the in-memory view of one walk. finished holds the terminal
// status per node; order records execution order so input flattening can let
// the most recent upstream win.
type runState struct {
	outputs  map[string]map[string]any
	finished map[string]models.NodeStatus
	order    []string
}

// Execute drives the run to a terminal status, including the bookkeeping for
// aborted and unreached nodes. The returned error reports bookkeeping
// failures only; node failures surface through the run record.
func (s *Scheduler) Execute(ctx context.Context, workflow *models.Workflow, run *models.Execution, executionCtx *models.ExecutionContext) error {
	state := &runState{
		outputs:  make(map[string]map[string]any),
		finished: make(map[string]models.NodeStatus),
	}

	var firstFailure *models.NodeResult

	queue := make([]*models.Node, 0, len(workflow.Nodes))
	queued := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.StartNodes() {
		queue = append(queue, node)
		queued[node.ID] = true
	}

	stalled := 0

	for len(queue) > 0 {
		if cause := interrupted(ctx); cause != nil {
			return s.abort(ctx, workflow, run, state, statusForCause(cause), cause.Error())
		}

		node := queue[0]
		queue = queue[1:]
		delete(queued, node.ID)

		if state.finished[node.ID] != "" {
			continue
		}

		if !s.ready(workflow, state, node) {
			queue = append(queue, node)
			queued[node.ID] = true
			stalled++

			// A full pass without running anything means the remaining
			// queued nodes wait on dependencies no taken branch will ever
			// reach. Skip those dependencies to unblock the walk.
			if stalled > len(queue) {
				s.skipBlockedDependencies(ctx, workflow, run, state, queue, queued)
				stalled = 0
			}

			continue
		}

		stalled = 0

		result := s.runNode(ctx, workflow, node, run, executionCtx, state)

		state.order = append(state.order, node.ID)
		state.outputs[node.ID] = result.Output

		if result.Success {
			state.finished[node.ID] = models.NodeStatusSuccess
		} else {
			state.finished[node.ID] = models.NodeStatusError

			// A failure caused by the run context ending is a cancellation
			// or timeout, not a node error.
			if cause := interrupted(ctx); cause != nil {
				return s.abort(ctx, workflow, run, state, statusForCause(cause), cause.Error())
			}

			if firstFailure == nil {
				firstFailure = result
			}

			if workflow.Settings.ErrorHandling != models.ErrorHandlingContinue {
				return s.abort(ctx, workflow, run, state, models.ExecutionStatusError, result.Error.Message)
			}
		}

		for _, edge := range selectEdges(workflow, node, result) {
			target := workflow.NodeByID(edge.Target)
			if target == nil {
				continue
			}

			if state.finished[target.ID] != "" || queued[target.ID] {
				continue
			}

			queue = append(queue, target)
			queued[target.ID] = true
		}
	}

	s.skipUnreached(ctx, workflow, run, state)

	if firstFailure != nil {
		return s.tracker.Complete(ctx, run, models.ExecutionStatusError, firstFailure.Error.Message)
	}

	return s.tracker.Complete(ctx, run, models.ExecutionStatusSuccess, "")
}

// runNode executes one node with the workflow's retry budget. Each attempt is
// recorded individually; backoff between attempts doubles from 500ms up to
// 30s and aborts early when the run context ends.
func (s *Scheduler) runNode(ctx context.Context, workflow *models.Workflow, node *models.Node, run *models.Execution, executionCtx *models.ExecutionContext, state *runState) *models.NodeResult {
	upstream := s.upstream(workflow, state, node)
	inputs := dispatcher.BuildInputs(upstream)

	retries := workflow.Settings.RetryAttempts
	backoff := retryBackoffBase

	var result *models.NodeResult

	for attempt := 0; ; attempt++ {
		s.tracker.NodeStarted(ctx, run, node, attempt, inputs)

		result = s.dispatcher.Execute(ctx, node, executionCtx, upstream)

		s.tracker.NodeFinished(ctx, run, node, result, attempt)

		if result.Success || attempt >= retries {
			return result
		}

		s.logger.Warn("Node failed, retrying",
			"execution_id", run.ID,
			"node_id", node.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", result.Error.Message,
		)

		select {
		case <-ctx.Done():
			return result
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, retryBackoffCap)
	}
}

// ready reports whether every dependency of the node reached a terminal
// state. Skipped dependencies satisfy readiness but contribute no input.
func (s *Scheduler) ready(workflow *models.Workflow, state *runState, node *models.Node) bool {
	for _, edge := range workflow.IncomingEdges(node.ID) {
		if state.finished[edge.Source] == "" {
			return false
		}
	}

	return true
}

// upstream collects the outputs feeding a node, ordered by execution order so
// flattened convenience keys resolve to the most recently produced value.
func (s *Scheduler) upstream(workflow *models.Workflow, state *runState, node *models.Node) []dispatcher.UpstreamOutput {
	sources := make(map[string]bool)
	for _, edge := range workflow.IncomingEdges(node.ID) {
		sources[edge.Source] = true
	}

	upstream := make([]dispatcher.UpstreamOutput, 0, len(sources))

	for _, nodeID := range state.order {
		if !sources[nodeID] {
			continue
		}

		upstream = append(upstream, dispatcher.UpstreamOutput{
			NodeID: nodeID,
			Output: state.outputs[nodeID],
		})
	}

	return upstream
}

// skipBlockedDependencies marks as skipped the dependencies the stalled
// queue waits on that no queued node can still activate. A dependency that
// is a descendant of a queued node may yet run once its own inputs resolve,
// so it must survive the sweep. In an acyclic graph the topologically
// earliest blocked dependency is never queue-reachable, so each sweep skips
// at least one node and the walk always unblocks.
func (s *Scheduler) skipBlockedDependencies(ctx context.Context, workflow *models.Workflow, run *models.Execution, state *runState, queue []*models.Node, queued map[string]bool) {
	reachable := reachableFrom(workflow, queue)

	for _, node := range queue {
		for _, edge := range workflow.IncomingEdges(node.ID) {
			if state.finished[edge.Source] != "" || queued[edge.Source] || reachable[edge.Source] {
				continue
			}

			state.finished[edge.Source] = models.NodeStatusSkipped
			s.tracker.NodeSkipped(ctx, run, edge.Source)
		}
	}
}

// reachableFrom collects every strict descendant of the queued nodes,
// following all outgoing edges regardless of handle.
func reachableFrom(workflow *models.Workflow, queue []*models.Node) map[string]bool {
	reachable := make(map[string]bool)

	stack := make([]string, 0, len(queue))
	for _, node := range queue {
		stack = append(stack, node.ID)
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, edge := range workflow.OutgoingEdges(id) {
			if reachable[edge.Target] {
				continue
			}

			reachable[edge.Target] = true
			stack = append(stack, edge.Target)
		}
	}

	return reachable
}

// abort finalizes a run that stops early: every node without a terminal
// state is marked skipped before the run record closes. Bookkeeping runs on
// a detached context so a cancelled run still persists its final state.
func (s *Scheduler) abort(ctx context.Context, workflow *models.Workflow, run *models.Execution, state *runState, status models.ExecutionStatus, message string) error {
	ctx = context.WithoutCancel(ctx)

	s.skipUnreached(ctx, workflow, run, state)

	return s.tracker.Complete(ctx, run, status, message)
}

func (s *Scheduler) skipUnreached(ctx context.Context, workflow *models.Workflow, run *models.Execution, state *runState) {
	for _, node := range workflow.Nodes {
		if state.finished[node.ID] != "" {
			continue
		}

		state.finished[node.ID] = models.NodeStatusSkipped
		s.tracker.NodeSkipped(ctx, run, node.ID)
	}
}

// selectEdges picks which outgoing edges to follow. Non-condition nodes fan
// out unconditionally. Condition nodes route by handle: the outcome's output
// path first, the matched rule name second, and the default handle (named or
// unset) when neither selects anything. A failed condition routes like an
// unmatched one.
func selectEdges(workflow *models.Workflow, node *models.Node, result *models.NodeResult) []*models.Edge {
	outgoing := workflow.OutgoingEdges(node.ID)
	if !node.IsCondition() {
		return outgoing
	}

	outputPath := ""
	matchedRule := ""

	if result.Success {
		outputPath = result.OutputPath
		matchedRule = result.MatchedRule
	}

	for _, handle := range []string{outputPath, matchedRule} {
		if handle == "" {
			continue
		}

		if selected := edgesByHandle(outgoing, handle); len(selected) > 0 {
			return selected
		}
	}

	return defaultEdges(outgoing)
}

func edgesByHandle(edges []*models.Edge, handle string) []*models.Edge {
	selected := make([]*models.Edge, 0)

	for _, edge := range edges {
		if edge.SourceHandle == handle {
			selected = append(selected, edge)
		}
	}

	return selected
}

func defaultEdges(edges []*models.Edge) []*models.Edge {
	selected := make([]*models.Edge, 0)

	for _, edge := range edges {
		if edge.SourceHandle == "" || edge.SourceHandle == models.DefaultOutputHandle {
			selected = append(selected, edge)
		}
	}

	return selected
}

// interrupted returns the cancellation cause when the run context ended, or
// nil while the run may continue. Checked between nodes only; an in-flight
// handler observes cancellation through its own context.
func interrupted(ctx context.Context) error {
	select {
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if cause == nil {
			cause = ctx.Err()
		}

		return cause
	default:
		return nil
	}
}

func statusForCause(cause error) models.ExecutionStatus {
	if errors.Is(cause, errRunTimedOut) || errors.Is(cause, context.DeadlineExceeded) {
		return models.ExecutionStatusTimeout
	}

	return models.ExecutionStatusCancelled
}
