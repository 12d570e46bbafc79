// Package condition provides the condition node handler. The routing
// decision itself lives in pkg/condition; this handler wires it to the node's
// rules and renders expression-typed comparison values before evaluation.
package condition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KlikkAI/reporunner-sub008/pkg/condition"
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/template"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger.With("module", "condition_handler")}
}

func (h *Handler) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, inputs map[string]any) (map[string]any, error) {
	resolver := func(rule *models.ConditionRule) any {
		raw, ok := rule.Value.(string)
		if !ok {
			return rule.Value
		}

		rendered, err := template.RenderWithContext(raw, executionCtx, inputs)
		if err != nil {
			h.logger.WarnContext(ctx, "Failed to render rule value, comparing raw string",
				"execution_id", executionCtx.ExecutionID,
				"node_id", node.ID,
				"rule_id", rule.ID,
				"error", err,
			)

			return raw
		}

		return rendered
	}

	outcome := condition.EvaluateRules(node.Rules, node.DefaultOutput, inputs, resolver)

	h.logger.DebugContext(ctx, fmt.Sprintf("Condition routed to %q", outcome.OutputPath),
		"execution_id", executionCtx.ExecutionID,
		"node_id", node.ID,
		"matched_rule", outcome.MatchedRule,
		"condition_met", outcome.ConditionMet,
	)

	return map[string]any{
		models.OutputKeyPath:         outcome.OutputPath,
		models.OutputKeyMatchedRule:  outcome.MatchedRule,
		models.OutputKeyConditionMet: outcome.ConditionMet,
	}, nil
}

// Factory creates condition handlers.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{logger: logger}
}

func (f *Factory) Create(_ context.Context, _ *models.Node) (protocol.NodeHandler, error) {
	return NewHandler(f.logger), nil
}

func (f *Factory) ID() string {
	return string(models.NodeTypeCondition)
}

func (f *Factory) Name() string {
	return "Condition"
}

func (f *Factory) Description() string {
	return "Routes execution through the output path of the first matching rule."
}

func (f *Factory) Schema() map[string]any {
	// Rules live on the node itself, not in the config bag.
	return map[string]any{}
}
