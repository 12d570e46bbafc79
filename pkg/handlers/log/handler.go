// Package log provides the log node handler: it writes a templated message to
// the structured log and passes its inputs through unchanged.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/template"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger.With("module", "log_handler")}
}

func (h *Handler) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, inputs map[string]any) (map[string]any, error) {
	message, _ := node.Config["message"].(string)
	level, _ := node.Config["level"].(string)

	if message != "" && template.NeedsTemplating(message) {
		rendered, err := template.RenderWithContext(message, executionCtx, inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to render message template: %w", err)
		}

		message = fmt.Sprintf("%v", rendered)
	}

	logger := h.logger.With("execution_id", executionCtx.ExecutionID, "node_id", node.ID)

	switch level {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return map[string]any{
		"message":   message,
		"logged_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Factory creates log handlers.
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
	return "log"
}

func (f *Factory) Name() string {
	return "Log"
}

func (f *Factory) Description() string {
	return "Writes a templated message to the execution log."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Supports templating.",
				"examples": []string{
					"Processing order {{.inputs.output.order_id}}",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message.",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
	}
}
