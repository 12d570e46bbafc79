package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

func TestRender_PlainString(t *testing.T) {
	result, err := Render("hello", nil)

	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestRender_Substitution(t *testing.T) {
	result, err := Render("order {{.id}}", map[string]any{"id": "o-1"})

	require.NoError(t, err)
	assert.Equal(t, "order o-1", result)
}

func TestRender_NumberCoercion(t *testing.T) {
	result, err := Render("{{.count}}", map[string]any{"count": 5})

	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestRender_BooleanCoercion(t *testing.T) {
	result, err := Render("{{.ok}}", map[string]any{"ok": true})

	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestRender_JSONCoercion(t *testing.T) {
	result, err := Render(`{"a": {{.n}}}`, map[string]any{"n": 1})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, result)
}

func TestRender_JSONFunc(t *testing.T) {
	result, err := Render("{{json .payload}}", map[string]any{
		"payload": map[string]any{"k": "v"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, result)
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{.unclosed", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}

func TestRenderWithContext_Scope(t *testing.T) {
	executionCtx := models.NewExecutionContext("wf-1", "exec-1", "user-1", map[string]any{
		"order_id": "o-42",
	})
	executionCtx.Variables["region"] = "eu"

	inputs := map[string]any{"data": map[string]any{"total": 10}}

	result, err := RenderWithContext(
		"{{.trigger_data.order_id}}/{{.vars.region}}/{{.execution.workflow_id}}",
		executionCtx,
		inputs,
	)

	require.NoError(t, err)
	assert.Equal(t, "o-42/eu/wf-1", result)

	total, err := RenderWithContext("{{.inputs.data.total}}", executionCtx, inputs)

	require.NoError(t, err)
	assert.Equal(t, 10.0, total)
}

func TestNeedsTemplating(t *testing.T) {
	assert.True(t, NeedsTemplating("{{.a}}"))
	assert.False(t, NeedsTemplating("plain"))
	assert.False(t, NeedsTemplating(""))
}
