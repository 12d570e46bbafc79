package models

// ValueType tells the evaluator how to interpret a rule's comparison value.
type ValueType string

const (
	ValueTypeFixed      ValueType = "fixed"      // Compare against the literal value
	ValueTypeExpression ValueType = "expression" // Render the value against the execution context first
)

// ConditionRule is a single predicate attached to a condition node. Rules are
// evaluated in array order and the first match determines the output path.
type ConditionRule struct {
	ID         string    `json:"id"`
	Field      string    `json:"field"    validate:"required"`
	Operator   string    `json:"operator" validate:"required"`
	Value      any       `json:"value,omitempty"`
	ValueType  ValueType `json:"value_type,omitempty"`
	OutputName string    `json:"output_name"`
	Enabled    bool      `json:"enabled"`
}

// Condition node output keys the dispatcher lifts into NodeResult.
const (
	OutputKeyPath         = "output_path"
	OutputKeyMatchedRule  = "matched_rule"
	OutputKeyConditionMet = "condition_met"
)

// DefaultOutputHandle is the edge handle followed when no rule matched and no
// explicit handle equals the chosen output path.
const DefaultOutputHandle = "default"
