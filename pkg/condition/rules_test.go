package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

func rule(id, field, operator string, value any, output string) *models.ConditionRule {
	return &models.ConditionRule{
		ID:         id,
		Field:      field,
		Operator:   operator,
		Value:      value,
		ValueType:  models.ValueTypeFixed,
		OutputName: output,
		Enabled:    true,
	}
}

func TestEvaluateRules_FirstMatchWins(t *testing.T) {
	rules := []*models.ConditionRule{
		rule("r1", "total", OperatorGreater, 1000, "large"),
		rule("r2", "total", OperatorGreater, 100, "medium"),
	}

	outcome := EvaluateRules(rules, "small", map[string]any{"total": 5000}, nil)

	assert.Equal(t, "large", outcome.OutputPath)
	assert.Equal(t, "r1", outcome.MatchedRule)
	assert.True(t, outcome.ConditionMet)
}

func TestEvaluateRules_LaterRuleMatches(t *testing.T) {
	rules := []*models.ConditionRule{
		rule("r1", "total", OperatorGreater, 1000, "large"),
		rule("r2", "total", OperatorGreater, 100, "medium"),
	}

	outcome := EvaluateRules(rules, "small", map[string]any{"total": 500}, nil)

	assert.Equal(t, "medium", outcome.OutputPath)
	assert.Equal(t, "r2", outcome.MatchedRule)
}

func TestEvaluateRules_NoMatchUsesDefault(t *testing.T) {
	rules := []*models.ConditionRule{
		rule("r1", "total", OperatorGreater, 1000, "large"),
	}

	outcome := EvaluateRules(rules, "small", map[string]any{"total": 10}, nil)

	assert.Equal(t, "small", outcome.OutputPath)
	assert.Empty(t, outcome.MatchedRule)
	assert.False(t, outcome.ConditionMet)
}

func TestEvaluateRules_DisabledRulesSkipped(t *testing.T) {
	disabled := rule("r1", "total", OperatorGreater, 0, "always")
	disabled.Enabled = false

	rules := []*models.ConditionRule{
		disabled,
		rule("r2", "total", OperatorGreater, 100, "medium"),
	}

	outcome := EvaluateRules(rules, "small", map[string]any{"total": 500}, nil)

	assert.Equal(t, "medium", outcome.OutputPath)
}

func TestEvaluateRules_NoRules(t *testing.T) {
	outcome := EvaluateRules(nil, "fallback", map[string]any{}, nil)

	assert.Equal(t, "fallback", outcome.OutputPath)
	assert.False(t, outcome.ConditionMet)
}

func TestEvaluateRules_ExpressionValueResolved(t *testing.T) {
	expressionRule := rule("r1", "total", OperatorGreater, "{{.threshold}}", "over")
	expressionRule.ValueType = models.ValueTypeExpression

	resolver := func(r *models.ConditionRule) any {
		assert.Equal(t, "r1", r.ID)

		return 100
	}

	outcome := EvaluateRules([]*models.ConditionRule{expressionRule}, "under", map[string]any{"total": 200}, resolver)

	assert.Equal(t, "over", outcome.OutputPath)
	assert.True(t, outcome.ConditionMet)
}

func TestEvaluateRules_FixedValueNotResolved(t *testing.T) {
	fixed := rule("r1", "status", OperatorEquals, "active", "yes")

	resolver := func(_ *models.ConditionRule) any {
		t.Fatal("resolver must not run for fixed values")

		return nil
	}

	outcome := EvaluateRules([]*models.ConditionRule{fixed}, "no", map[string]any{"status": "active"}, resolver)

	assert.Equal(t, "yes", outcome.OutputPath)
}
