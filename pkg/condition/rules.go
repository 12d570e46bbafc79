package condition

import (
	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

// Outcome is the routing decision produced by a condition node's rule chain.
type Outcome struct {
	OutputPath   string `json:"output_path"`
	MatchedRule  string `json:"matched_rule,omitempty"`
	ConditionMet bool   `json:"condition_met"`
}

// ValueResolver lets the caller materialize a rule's comparison value before
// evaluation, e.g. rendering expression-typed values against the execution
// context. A nil resolver uses the rule value as-is.
type ValueResolver func(rule *models.ConditionRule) any

// EvaluateRules evaluates a condition node's enabled rules in array order.
// The first rule whose predicate holds determines the output path and
// short-circuits the rest. When none match, the node's default output is
// chosen and ConditionMet is false.
func EvaluateRules(rules []*models.ConditionRule, defaultOutput string, inputs map[string]any, resolve ValueResolver) Outcome {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compareValue := rule.Value
		if resolve != nil && rule.ValueType == models.ValueTypeExpression {
			compareValue = resolve(rule)
		}

		fieldValue := Resolve(inputs, rule.Field)

		if Evaluate(fieldValue, rule.Operator, compareValue) {
			return Outcome{
				OutputPath:   rule.OutputName,
				MatchedRule:  rule.ID,
				ConditionMet: true,
			}
		}
	}

	return Outcome{
		OutputPath:   defaultOutput,
		ConditionMet: false,
	}
}
