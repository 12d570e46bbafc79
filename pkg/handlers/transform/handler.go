// Package transform provides the transform node handler: it evaluates a
// template expression against the node's inputs and emits the result as the
// node output.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
	"github.com/KlikkAI/reporunner-sub008/pkg/template"
)

// ErrExpressionMissing is returned when the node config has no expression.
var ErrExpressionMissing = errors.New("missing or invalid 'expression' in configuration")

type Handler struct {
	Expression string

	logger *slog.Logger
}

func NewHandler(node *models.Node, logger *slog.Logger) (*Handler, error) {
	expression, _ := node.Config["expression"].(string)
	if expression == "" {
		return nil, fmt.Errorf("node %s: %w", node.ID, ErrExpressionMissing)
	}

	return &Handler{
		Expression: expression,
		logger:     logger.With("module", "transform_handler"),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, inputs map[string]any) (map[string]any, error) {
	result, err := template.RenderWithContext(h.Expression, executionCtx, inputs)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	h.logger.DebugContext(ctx, "Transform completed",
		"execution_id", executionCtx.ExecutionID,
		"node_id", node.ID,
	)

	// A map result becomes the output bag directly so downstream nodes can
	// address its keys; anything else is wrapped under "data".
	if mapped, ok := result.(map[string]any); ok {
		return mapped, nil
	}

	return map[string]any{"data": result}, nil
}

// Factory creates transform handlers.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{logger: logger}
}

func (f *Factory) Create(_ context.Context, node *models.Node) (protocol.NodeHandler, error) {
	return NewHandler(node, f.logger)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeTransform)
}

func (f *Factory) Name() string {
	return "Transform"
}

func (f *Factory) Description() string {
	return "Transforms input data using a template expression."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Template expression evaluated against the node inputs.",
				"examples": []string{
					"{{.inputs.output.name}}",
					`{"full_name": "{{.inputs.output.first}} {{.inputs.output.last}}"}`,
				},
			},
		},
		"required": []string{"expression"},
	}
}
