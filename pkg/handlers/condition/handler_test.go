package condition

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func conditionNode(defaultOutput string, rules ...*models.ConditionRule) *models.Node {
	return &models.Node{
		ID:            "check",
		Type:          models.NodeTypeCondition,
		Rules:         rules,
		DefaultOutput: defaultOutput,
	}
}

func TestHandler_Execute_MatchedRule(t *testing.T) {
	node := conditionNode("small", &models.ConditionRule{
		ID:         "r1",
		Field:      "data.total",
		Operator:   "greater",
		Value:      100,
		ValueType:  models.ValueTypeFixed,
		OutputName: "large",
		Enabled:    true,
	})

	handler := NewHandler(discardLogger())
	executionCtx := models.NewExecutionContext("wf-1", "exec-1", "", nil)
	inputs := map[string]any{"data": map[string]any{"total": 500}}

	output, err := handler.Execute(context.Background(), node, executionCtx, inputs)

	require.NoError(t, err)
	assert.Equal(t, "large", output[models.OutputKeyPath])
	assert.Equal(t, "r1", output[models.OutputKeyMatchedRule])
	assert.Equal(t, true, output[models.OutputKeyConditionMet])
}

func TestHandler_Execute_NoMatchUsesDefault(t *testing.T) {
	node := conditionNode("small", &models.ConditionRule{
		ID:         "r1",
		Field:      "data.total",
		Operator:   "greater",
		Value:      100,
		ValueType:  models.ValueTypeFixed,
		OutputName: "large",
		Enabled:    true,
	})

	handler := NewHandler(discardLogger())
	executionCtx := models.NewExecutionContext("wf-1", "exec-1", "", nil)
	inputs := map[string]any{"data": map[string]any{"total": 10}}

	output, err := handler.Execute(context.Background(), node, executionCtx, inputs)

	require.NoError(t, err)
	assert.Equal(t, "small", output[models.OutputKeyPath])
	assert.Equal(t, "", output[models.OutputKeyMatchedRule])
	assert.Equal(t, false, output[models.OutputKeyConditionMet])
}

func TestHandler_Execute_ExpressionValue(t *testing.T) {
	node := conditionNode("no", &models.ConditionRule{
		ID:         "r1",
		Field:      "data.total",
		Operator:   "greater",
		Value:      "{{.trigger_data.threshold}}",
		ValueType:  models.ValueTypeExpression,
		OutputName: "yes",
		Enabled:    true,
	})

	handler := NewHandler(discardLogger())
	executionCtx := models.NewExecutionContext("wf-1", "exec-1", "", map[string]any{"threshold": 100})
	inputs := map[string]any{"data": map[string]any{"total": 500}}

	output, err := handler.Execute(context.Background(), node, executionCtx, inputs)

	require.NoError(t, err)
	assert.Equal(t, "yes", output[models.OutputKeyPath])
}
