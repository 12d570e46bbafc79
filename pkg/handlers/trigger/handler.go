// Package trigger provides the trigger node handler: the graph entry point
// that surfaces the trigger payload as node output for downstream nodes.
package trigger

import (
	"context"
	"log/slog"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger.With("module", "trigger_handler")}
}

func (h *Handler) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, _ map[string]any) (map[string]any, error) {
	h.logger.DebugContext(ctx, "Trigger node passing payload through",
		"execution_id", executionCtx.ExecutionID,
		"node_id", node.ID,
	)

	return map[string]any{
		"data": executionCtx.TriggerData,
	}, nil
}

// Factory creates trigger handlers.
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
	return string(models.NodeTypeTrigger)
}

func (f *Factory) Name() string {
	return "Trigger"
}

func (f *Factory) Description() string {
	return "Entry point node that exposes the trigger payload to the graph."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{}
}
