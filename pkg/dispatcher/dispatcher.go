// Package dispatcher maps nodes to their handlers, assembles per-node input
// bags from upstream outputs and normalizes handler outcomes into a uniform
// result.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/registry"
)

// Convenience keys flattened from upstream outputs to the top of the input
// bag, so downstream nodes can address the most recent meaningful value
// without knowing which node produced it.
var flattenedKeys = []string{"output", "data", "result", "response"}

// UpstreamOutput pairs a source node with its recorded output. The slice
// order is the execution order, so later entries win when flattening.
type UpstreamOutput struct {
	NodeID string
	Output map[string]any
}

type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewDispatcher(reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With("module", "dispatcher"),
	}
}

// Execute runs a single node: builds its input bag, resolves the handler for
// the node's declared type, invokes it and wraps the outcome. Handler
// failures (returned errors and panics) become failed results, never Go
// errors; only programmer errors escape. Unknown node types degrade to a
// placeholder success so experimental nodes do not block the whole graph.
func (d *Dispatcher) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, upstream []UpstreamOutput) *models.NodeResult {
	started := time.Now()
	inputs := BuildInputs(upstream)

	logger := d.logger.With(
		"execution_id", executionCtx.ExecutionID,
		"node_id", node.ID,
		"node_type", node.Type,
	)

	handler, err := d.registry.CreateHandler(ctx, node)
	if err != nil {
		logger.Warn("No handler for node type, returning placeholder result", "error", err)

		return &models.NodeResult{
			NodeID:  node.ID,
			Success: true,
			Output: map[string]any{
				"message":   fmt.Sprintf("no handler registered for node type %q, node skipped", node.Type),
				"node_type": string(node.Type),
			},
			Duration: time.Since(started),
		}
	}

	output, err := d.invoke(ctx, handler, node, executionCtx, inputs)

	result := &models.NodeResult{
		NodeID:   node.ID,
		Duration: time.Since(started),
	}

	if err != nil {
		logger.Error("Node handler failed", "error", err)

		result.Success = false
		result.Error = &models.NodeError{Message: err.Error()}

		return result
	}

	result.Success = true
	result.Output = output

	liftConditionOutcome(result, output)

	return result
}

// invoke calls the handler with panic recovery: a panicking handler is a
// handler error, not an engine crash.
func (d *Dispatcher) invoke(ctx context.Context, handler protocol.NodeHandler, node *models.Node, executionCtx *models.ExecutionContext, inputs map[string]any) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()

	return handler.Execute(ctx, node, executionCtx, inputs)
}

// BuildInputs merges every upstream node's output into a bag keyed by source
// node id, additionally flattening well-known convenience keys to the top
// level. Later upstream entries overwrite earlier flattened values.
func BuildInputs(upstream []UpstreamOutput) map[string]any {
	inputs := make(map[string]any, len(upstream))

	for _, up := range upstream {
		if up.Output == nil {
			continue
		}

		inputs[up.NodeID] = up.Output

		for _, key := range flattenedKeys {
			if value, ok := up.Output[key]; ok {
				inputs[key] = value
			}
		}
	}

	return inputs
}

// liftConditionOutcome copies a condition handler's routing decision from the
// output bag onto the typed result fields the scheduler reads.
func liftConditionOutcome(result *models.NodeResult, output map[string]any) {
	if output == nil {
		return
	}

	if path, ok := output[models.OutputKeyPath].(string); ok {
		result.OutputPath = path
	}

	if rule, ok := output[models.OutputKeyMatchedRule].(string); ok {
		result.MatchedRule = rule
	}

	if met, ok := output[models.OutputKeyConditionMet].(bool); ok {
		result.ConditionMet = met
	}
}
