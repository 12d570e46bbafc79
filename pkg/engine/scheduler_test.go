package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlikkAI/reporunner-sub008/pkg/dispatcher"
	conditionhandler "github.com/KlikkAI/reporunner-sub008/pkg/handlers/condition"
	"github.com/KlikkAI/reporunner-sub008/pkg/mocks"
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/registry"
	"github.com/KlikkAI/reporunner-sub008/pkg/testutil"
)

type recordingHandler struct {
	fn    func(inputs map[string]any) (map[string]any, error)
	calls atomic.Int32
}

func (h *recordingHandler) Execute(_ context.Context, _ *models.Node, _ *models.ExecutionContext, inputs map[string]any) (map[string]any, error) {
	h.calls.Add(1)

	if h.fn != nil {
		return h.fn(inputs)
	}

	return map[string]any{"data": "ok"}, nil
}

type handlerFactory struct {
	id      string
	handler protocol.NodeHandler
	schema  map[string]any
}

func (f *handlerFactory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return f.handler, nil
}

func (f *handlerFactory) ID() string             { return f.id }
func (f *handlerFactory) Name() string           { return f.id }
func (f *handlerFactory) Description() string    { return "test handler" }
func (f *handlerFactory) Schema() map[string]any { return f.schema }

type schedulerFixture struct {
	scheduler *Scheduler
	tracker   *Tracker
	persist   *mocks.Persistence
	bus       *mocks.EventBus
	registry  *registry.Registry
}

func newSchedulerFixture(t *testing.T, handlers map[string]protocol.NodeHandler) *schedulerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewRegistry(logger)

	reg.RegisterHandler(conditionhandler.NewFactory(logger))

	for id, handler := range handlers {
		reg.RegisterHandler(&handlerFactory{id: id, handler: handler})
	}

	persist := mocks.NewPersistence()
	bus := mocks.NewEventBus()
	tracker := NewTracker(persist.ExecutionRepository(), bus, logger)

	return &schedulerFixture{
		scheduler: NewScheduler(dispatcher.NewDispatcher(reg, logger), tracker, logger),
		tracker:   tracker,
		persist:   persist,
		bus:       bus,
		registry:  reg,
	}
}

func (f *schedulerFixture) execute(t *testing.T, ctx context.Context, workflow *models.Workflow) *models.Execution {
	t.Helper()

	run, err := f.tracker.CreateRun(context.Background(), workflow, "manual", nil, "")
	require.NoError(t, err)
	require.NoError(t, f.tracker.Start(context.Background(), run))

	require.NoError(t, f.scheduler.Execute(ctx, workflow, run, models.NewExecutionContext(workflow.ID, run.ID, "", nil)))

	return run
}

func nodeStatus(run *models.Execution, nodeID string) models.NodeStatus {
	record := run.NodeExecutionByID(nodeID)
	if record == nil {
		return ""
	}

	return record.Status
}

func TestScheduler_LinearRun(t *testing.T) {
	handler := &recordingHandler{}
	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{"action": handler})

	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("a")),
			testutil.NewNode(testutil.WithID("b")),
			testutil.NewNode(testutil.WithID("c")),
		},
		[]*models.Edge{
			testutil.Edge("a", "b"),
			testutil.Edge("b", "c"),
		},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, int32(3), handler.calls.Load())
	assert.Equal(t, 3, run.CompletedNodes)

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, id), "node %s", id)
	}
}

func TestScheduler_FanOutJoin(t *testing.T) {
	handler := &recordingHandler{}
	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{"action": handler})

	// Diamond: a -> {b, c} -> d. The join runs once, after both branches.
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("a")),
			testutil.NewNode(testutil.WithID("b")),
			testutil.NewNode(testutil.WithID("c")),
			testutil.NewNode(testutil.WithID("d")),
		},
		[]*models.Edge{
			testutil.Edge("a", "b"),
			testutil.Edge("a", "c"),
			testutil.Edge("b", "d"),
			testutil.Edge("c", "d"),
		},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, int32(4), handler.calls.Load())
	assert.Equal(t, 4, run.CompletedNodes)
}

func TestScheduler_UpstreamInputsFlow(t *testing.T) {
	var gotInputs map[string]any

	producer := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return map[string]any{"data": "payload", "extra": 1}, nil
	}}
	consumer := &recordingHandler{fn: func(inputs map[string]any) (map[string]any, error) {
		gotInputs = inputs

		return map[string]any{}, nil
	}}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"producer": producer,
		"consumer": consumer,
	})

	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("p"), testutil.WithType("producer")),
			testutil.NewNode(testutil.WithID("c"), testutil.WithType("consumer")),
		},
		[]*models.Edge{testutil.Edge("p", "c")},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	require.NotNil(t, gotInputs)
	assert.Equal(t, "payload", gotInputs["data"])
	assert.Equal(t, map[string]any{"data": "payload", "extra": 1}, gotInputs["p"])
}

func TestScheduler_ConditionRoutesMatchedBranch(t *testing.T) {
	handler := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return map[string]any{"data": map[string]any{"total": 5000}}, nil
	}}
	branchHandler := &recordingHandler{}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"action": handler,
		"branch": branchHandler,
	})

	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("src")),
			testutil.NewNode(testutil.WithID("check"), testutil.WithRules(
				"small",
				testutil.NewRule("data.total", "greater", 1000, "large"),
			)),
			testutil.NewNode(testutil.WithID("on-large"), testutil.WithType("branch")),
			testutil.NewNode(testutil.WithID("on-small"), testutil.WithType("branch")),
		},
		[]*models.Edge{
			testutil.Edge("src", "check"),
			testutil.EdgeWithHandle("check", "on-large", "large"),
			testutil.EdgeWithHandle("check", "on-small", "small"),
		},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, "on-large"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "on-small"))
	assert.Equal(t, int32(1), branchHandler.calls.Load())
	assert.Equal(t, 4, run.CompletedNodes)
}

func TestScheduler_ConditionFallsBackToDefaultHandle(t *testing.T) {
	handler := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return map[string]any{"data": map[string]any{"total": 10}}, nil
	}}
	branchHandler := &recordingHandler{}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"action": handler,
		"branch": branchHandler,
	})

	// No edge carries the default output's name; the unlabeled edge is the
	// fallback route.
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("src")),
			testutil.NewNode(testutil.WithID("check"), testutil.WithRules(
				"small",
				testutil.NewRule("data.total", "greater", 1000, "large"),
			)),
			testutil.NewNode(testutil.WithID("on-large"), testutil.WithType("branch")),
			testutil.NewNode(testutil.WithID("fallback"), testutil.WithType("branch")),
		},
		[]*models.Edge{
			testutil.Edge("src", "check"),
			testutil.EdgeWithHandle("check", "on-large", "large"),
			testutil.Edge("check", "fallback"),
		},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, "fallback"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "on-large"))
}

func TestScheduler_SkippedBranchDescendantsSkipped(t *testing.T) {
	handler := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return map[string]any{"data": map[string]any{"ok": true}}, nil
	}}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{"action": handler})

	// The untaken branch has its own descendant, which must also end skipped.
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("src")),
			testutil.NewNode(testutil.WithID("check"), testutil.WithRules(
				"no",
				testutil.NewRule("data.ok", "is_true", nil, "yes"),
			)),
			testutil.NewNode(testutil.WithID("taken")),
			testutil.NewNode(testutil.WithID("untaken")),
			testutil.NewNode(testutil.WithID("untaken-child")),
		},
		[]*models.Edge{
			testutil.Edge("src", "check"),
			testutil.EdgeWithHandle("check", "taken", "yes"),
			testutil.EdgeWithHandle("check", "untaken", "no"),
			testutil.Edge("untaken", "untaken-child"),
		},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, "taken"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "untaken"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "untaken-child"))
	assert.Equal(t, run.TotalNodes, run.CompletedNodes)
}

func TestScheduler_JoinAfterSkippedBranchStillRuns(t *testing.T) {
	handler := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return map[string]any{"data": map[string]any{"ok": true}}, nil
	}}
	joinHandler := &recordingHandler{}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"action": handler,
		"join":   joinHandler,
	})

	// Both branches feed the join. The untaken branch is skipped; skipped
	// dependencies satisfy readiness, so the join still runs.
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("check"), testutil.WithRules(
				"no",
				testutil.NewRule("data.ok", "is_true", nil, "yes"),
			)),
			testutil.NewNode(testutil.WithID("yes-branch")),
			testutil.NewNode(testutil.WithID("no-branch")),
			testutil.NewNode(testutil.WithID("join"), testutil.WithType("join")),
		},
		[]*models.Edge{
			testutil.EdgeWithHandle("check", "yes-branch", "yes"),
			testutil.EdgeWithHandle("check", "no-branch", "no"),
			testutil.Edge("yes-branch", "join"),
			testutil.Edge("no-branch", "join"),
		},
	)

	// The condition node is a start node with no inputs; data.ok resolves to
	// nil so the rule does not match and "no" is taken.
	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "yes-branch"))
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, "no-branch"))
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, "join"))
	assert.Equal(t, int32(1), joinHandler.calls.Load())
}

func TestScheduler_StallSkipsOnlyUnreachableDependencies(t *testing.T) {
	var joinInputs map[string]any

	handler := &recordingHandler{}
	joinHandler := &recordingHandler{fn: func(inputs map[string]any) (map[string]any, error) {
		joinInputs = inputs

		return map[string]any{}, nil
	}}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"action": handler,
		"join":   joinHandler,
	})

	// The condition's only edge is on an untaken handle, so "gate" never
	// runs and both joins stall at once. "left-next" is still downstream of
	// the stalled "left-join", so the stall sweep must skip only "gate":
	// after that, left-join, left-next and right-join all execute.
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("check"), testutil.WithRules(
				"none",
				testutil.NewRule("data.ok", "is_true", nil, "open"),
			)),
			testutil.NewNode(testutil.WithID("gate")),
			testutil.NewNode(testutil.WithID("left-src")),
			testutil.NewNode(testutil.WithID("left-join")),
			testutil.NewNode(testutil.WithID("left-next")),
			testutil.NewNode(testutil.WithID("right-src")),
			testutil.NewNode(testutil.WithID("right-join"), testutil.WithType("join")),
		},
		[]*models.Edge{
			testutil.EdgeWithHandle("check", "gate", "open"),
			testutil.Edge("left-src", "left-join"),
			testutil.Edge("gate", "left-join"),
			testutil.Edge("left-join", "left-next"),
			testutil.Edge("left-next", "right-join"),
			testutil.Edge("right-src", "right-join"),
		},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "gate"))

	for _, id := range []string{"left-src", "left-join", "left-next", "right-src", "right-join"} {
		assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, id), "node %s", id)
	}

	assert.Equal(t, int32(1), joinHandler.calls.Load())
	require.NotNil(t, joinInputs)
	assert.Contains(t, joinInputs, "left-next")
}

func TestScheduler_StopOnError(t *testing.T) {
	failing := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return nil, errors.New("connector exploded")
	}}
	downstream := &recordingHandler{}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"failing": failing,
		"action":  downstream,
	})

	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("bad"), testutil.WithType("failing")),
			testutil.NewNode(testutil.WithID("after")),
		},
		[]*models.Edge{testutil.Edge("bad", "after")},
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusError, run.Status)
	assert.Equal(t, "connector exploded", run.ErrorMessage)
	assert.Equal(t, models.NodeStatusError, nodeStatus(run, "bad"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "after"))
	assert.Equal(t, int32(0), downstream.calls.Load())
}

func TestScheduler_ContinueOnError(t *testing.T) {
	failing := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return nil, errors.New("first failure")
	}}
	downstream := &recordingHandler{}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{
		"failing": failing,
		"action":  downstream,
	})

	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("bad"), testutil.WithType("failing")),
			testutil.NewNode(testutil.WithID("after")),
		},
		[]*models.Edge{testutil.Edge("bad", "after")},
		testutil.WithSettings(models.WorkflowSettings{
			ErrorHandling: models.ErrorHandlingContinue,
		}),
	)

	run := fixture.execute(t, context.Background(), workflow)

	// The walk continues past the failure, but the run still ends as error
	// carrying the first failure's message.
	assert.Equal(t, models.ExecutionStatusError, run.Status)
	assert.Equal(t, "first failure", run.ErrorMessage)
	assert.Equal(t, models.NodeStatusError, nodeStatus(run, "bad"))
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(run, "after"))
	assert.Equal(t, int32(1), downstream.calls.Load())
}

func TestScheduler_RetrySucceedsOnSecondAttempt(t *testing.T) {
	flaky := &recordingHandler{}
	flaky.fn = func(_ map[string]any) (map[string]any, error) {
		if flaky.calls.Load() == 1 {
			return nil, errors.New("transient")
		}

		return map[string]any{"data": "ok"}, nil
	}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{"flaky": flaky})

	workflow := testutil.NewWorkflow(
		[]*models.Node{testutil.NewNode(testutil.WithID("n"), testutil.WithType("flaky"))},
		nil,
		testutil.WithSettings(models.WorkflowSettings{RetryAttempts: 1}),
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusSuccess, run.Status)
	assert.Equal(t, int32(2), flaky.calls.Load())
	assert.Equal(t, 1, run.NodeExecutionByID("n").RetryAttempt)
}

func TestScheduler_RetryBudgetExhausted(t *testing.T) {
	failing := &recordingHandler{fn: func(_ map[string]any) (map[string]any, error) {
		return nil, errors.New("permanent")
	}}

	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{"failing": failing})

	workflow := testutil.NewWorkflow(
		[]*models.Node{testutil.NewNode(testutil.WithID("n"), testutil.WithType("failing"))},
		nil,
		testutil.WithSettings(models.WorkflowSettings{RetryAttempts: 1}),
	)

	run := fixture.execute(t, context.Background(), workflow)

	assert.Equal(t, models.ExecutionStatusError, run.Status)
	assert.Equal(t, int32(2), failing.calls.Load())
	assert.Equal(t, models.NodeStatusError, nodeStatus(run, "n"))
}

func TestScheduler_CancelledContextAbortsRun(t *testing.T) {
	handler := &recordingHandler{}
	fixture := newSchedulerFixture(t, map[string]protocol.NodeHandler{"action": handler})

	workflow := testutil.NewWorkflow(
		[]*models.Node{testutil.NewNode(testutil.WithID("a"))},
		nil,
	)

	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(errRunCancelled)

	run := fixture.execute(t, ctx, workflow)

	assert.Equal(t, models.ExecutionStatusCancelled, run.Status)
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(run, "a"))
	assert.Equal(t, int32(0), handler.calls.Load())
}

func TestStatusForCause(t *testing.T) {
	assert.Equal(t, models.ExecutionStatusTimeout, statusForCause(errRunTimedOut))
	assert.Equal(t, models.ExecutionStatusTimeout, statusForCause(context.DeadlineExceeded))
	assert.Equal(t, models.ExecutionStatusCancelled, statusForCause(errRunCancelled))
	assert.Equal(t, models.ExecutionStatusCancelled, statusForCause(context.Canceled))
}

func TestSelectEdges_NonConditionFansOut(t *testing.T) {
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("a")),
			testutil.NewNode(testutil.WithID("b")),
			testutil.NewNode(testutil.WithID("c")),
		},
		[]*models.Edge{
			testutil.EdgeWithHandle("a", "b", "whatever"),
			testutil.Edge("a", "c"),
		},
	)

	node := workflow.NodeByID("a")
	edges := selectEdges(workflow, node, &models.NodeResult{Success: true})

	assert.Len(t, edges, 2)
}

func TestSelectEdges_MatchedRuleNameAsHandle(t *testing.T) {
	// When no edge carries the output path, the matched rule id is tried as a
	// handle before falling back to default edges.
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("cond"), testutil.WithRules("fallback")),
			testutil.NewNode(testutil.WithID("b")),
		},
		[]*models.Edge{
			testutil.EdgeWithHandle("cond", "b", "rule-1"),
		},
	)

	node := workflow.NodeByID("cond")
	result := &models.NodeResult{Success: true, OutputPath: "unrouted", MatchedRule: "rule-1"}

	edges := selectEdges(workflow, node, result)

	require.Len(t, edges, 1)
	assert.Equal(t, "b", edges[0].Target)
}

func TestSelectEdges_FailedConditionRoutesDefault(t *testing.T) {
	workflow := testutil.NewWorkflow(
		[]*models.Node{
			testutil.NewNode(testutil.WithID("cond"), testutil.WithRules("yes")),
			testutil.NewNode(testutil.WithID("matched")),
			testutil.NewNode(testutil.WithID("fallback")),
		},
		[]*models.Edge{
			testutil.EdgeWithHandle("cond", "matched", "yes"),
			testutil.EdgeWithHandle("cond", "fallback", models.DefaultOutputHandle),
		},
	)

	node := workflow.NodeByID("cond")
	result := &models.NodeResult{Success: false, OutputPath: "yes"}

	edges := selectEdges(workflow, node, result)

	require.Len(t, edges, 1)
	assert.Equal(t, "fallback", edges[0].Target)
}
