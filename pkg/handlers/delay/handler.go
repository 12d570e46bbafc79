// Package delay provides the delay node handler: it pauses the walk for a
// configured duration, ending early when the run is cancelled.
package delay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

const defaultDelay = time.Second

type Handler struct {
	Duration time.Duration

	logger *slog.Logger
}

func NewHandler(node *models.Node, logger *slog.Logger) *Handler {
	duration := defaultDelay

	if durationMs, ok := node.Config["duration_ms"].(float64); ok && durationMs > 0 {
		duration = time.Duration(durationMs) * time.Millisecond
	}

	return &Handler{
		Duration: duration,
		logger:   logger.With("module", "delay_handler"),
	}
}

func (h *Handler) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, _ map[string]any) (map[string]any, error) {
	h.logger.DebugContext(ctx, "Delaying",
		"execution_id", executionCtx.ExecutionID,
		"node_id", node.ID,
		"duration", h.Duration,
	)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("delay interrupted: %w", context.Cause(ctx))
	case <-time.After(h.Duration):
	}

	return map[string]any{
		"delayed_ms": h.Duration.Milliseconds(),
	}, nil
}

// Factory creates delay handlers.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{logger: logger}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewHandler(node, f.logger), nil
}

func (f *Factory) ID() string {
	return string(models.NodeTypeDelay)
}

func (f *Factory) Name() string {
	return "Delay"
}

func (f *Factory) Description() string {
	return "Pauses the workflow for a configured duration."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_ms": map[string]any{
				"type":        "integer",
				"description": "How long to pause, in milliseconds.",
				"default":     1000,
				"minimum":     1,
			},
		},
	}
}
