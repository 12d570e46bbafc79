package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Equals(t *testing.T) {
	assert.True(t, Evaluate("active", OperatorEquals, "active"))
	assert.False(t, Evaluate("active", OperatorEquals, "inactive"))

	// Numeric coercion: "42" equals 42.0 equals 42.
	assert.True(t, Evaluate("42", OperatorEquals, 42))
	assert.True(t, Evaluate(42.0, OperatorEquals, "42"))
	assert.True(t, Evaluate(true, OperatorEquals, 1))
}

func TestEvaluate_NotEquals(t *testing.T) {
	assert.True(t, Evaluate("a", OperatorNotEquals, "b"))
	assert.False(t, Evaluate(10, OperatorNotEquals, "10"))
}

func TestEvaluate_Contains(t *testing.T) {
	assert.True(t, Evaluate("hello world", OperatorContains, "world"))
	assert.False(t, Evaluate("hello world", OperatorContains, "mars"))

	// Array membership.
	assert.True(t, Evaluate([]any{"a", "b", "c"}, OperatorContains, "b"))
	assert.True(t, Evaluate([]any{1.0, 2.0}, OperatorContains, 2))
	assert.False(t, Evaluate([]any{"a"}, OperatorContains, "z"))
}

func TestEvaluate_NotContains(t *testing.T) {
	assert.True(t, Evaluate("hello", OperatorNotContains, "x"))
	assert.False(t, Evaluate([]any{"a"}, OperatorNotContains, "a"))
}

func TestEvaluate_StartsEndsWith(t *testing.T) {
	assert.True(t, Evaluate("workflow-123", OperatorStartsWith, "workflow-"))
	assert.False(t, Evaluate("workflow-123", OperatorStartsWith, "123"))
	assert.True(t, Evaluate("report.csv", OperatorEndsWith, ".csv"))
	assert.False(t, Evaluate("report.csv", OperatorEndsWith, ".json"))
}

func TestEvaluate_NumericComparisons(t *testing.T) {
	assert.True(t, Evaluate(10, OperatorGreater, 5))
	assert.False(t, Evaluate(5, OperatorGreater, 5))
	assert.True(t, Evaluate(5, OperatorGreaterEqual, 5))
	assert.True(t, Evaluate(3, OperatorLess, 5))
	assert.True(t, Evaluate("3.5", OperatorLessEqual, 3.5))

	// Non-numeric operands never satisfy a numeric operator.
	assert.False(t, Evaluate("abc", OperatorGreater, 1))
	assert.False(t, Evaluate(1, OperatorLess, "abc"))
}

func TestEvaluate_Between(t *testing.T) {
	assert.True(t, Evaluate(5, OperatorBetween, "1,10"))
	assert.True(t, Evaluate(1, OperatorBetween, "1, 10"))
	assert.True(t, Evaluate(10, OperatorBetween, "1,10"))
	assert.False(t, Evaluate(11, OperatorBetween, "1,10"))
	assert.False(t, Evaluate(5, OperatorBetween, "bogus"))
	assert.False(t, Evaluate(5, OperatorBetween, "1"))
}

func TestEvaluate_Emptiness(t *testing.T) {
	assert.True(t, Evaluate("", OperatorIsEmpty, nil))
	assert.True(t, Evaluate(nil, OperatorIsEmpty, nil))
	assert.True(t, Evaluate([]any{}, OperatorIsEmpty, nil))
	assert.True(t, Evaluate(map[string]any{}, OperatorIsEmpty, nil))
	assert.False(t, Evaluate("x", OperatorIsEmpty, nil))

	assert.True(t, Evaluate("x", OperatorIsNotEmpty, nil))
	assert.False(t, Evaluate(nil, OperatorIsNotEmpty, nil))

	assert.True(t, Evaluate(nil, OperatorIsNull, nil))
	assert.False(t, Evaluate("", OperatorIsNull, nil))
}

func TestEvaluate_Length(t *testing.T) {
	assert.True(t, Evaluate("abc", OperatorLengthEquals, 3))
	assert.True(t, Evaluate([]any{1, 2, 3}, OperatorLengthEquals, "3"))
	assert.True(t, Evaluate(map[string]any{"a": 1}, OperatorLengthEquals, 1))
	assert.False(t, Evaluate("abc", OperatorLengthEquals, 2))

	assert.True(t, Evaluate("abcd", OperatorLengthGreater, 3))
	assert.False(t, Evaluate("ab", OperatorLengthGreater, 3))

	// Length is undefined for scalars.
	assert.False(t, Evaluate(42, OperatorLengthEquals, 2))
}

func TestEvaluate_Booleans(t *testing.T) {
	assert.True(t, Evaluate(true, OperatorIsTrue, nil))
	assert.True(t, Evaluate("true", OperatorIsTrue, nil))
	assert.True(t, Evaluate(1, OperatorIsTrue, nil))
	assert.False(t, Evaluate(0, OperatorIsTrue, nil))
	assert.False(t, Evaluate("nope", OperatorIsTrue, nil))

	assert.True(t, Evaluate(false, OperatorIsFalse, nil))
	assert.True(t, Evaluate(0, OperatorIsFalse, nil))
	assert.False(t, Evaluate(true, OperatorIsFalse, nil))
}

func TestEvaluate_Regex(t *testing.T) {
	assert.True(t, Evaluate("order-12345", OperatorRegex, `^order-\d+$`))
	assert.False(t, Evaluate("order-abc", OperatorRegex, `^order-\d+$`))

	// "/pattern/flags" syntax.
	assert.True(t, Evaluate("HELLO", OperatorRegex, "/hello/i"))
	assert.False(t, Evaluate("HELLO", OperatorRegex, "/hello/"))

	// Invalid patterns evaluate to false, never panic.
	assert.False(t, Evaluate("x", OperatorRegex, "("))
}

func TestEvaluate_NilValue(t *testing.T) {
	// Nil satisfies only the emptiness operators.
	assert.False(t, Evaluate(nil, OperatorEquals, nil))
	assert.False(t, Evaluate(nil, OperatorContains, "x"))
	assert.False(t, Evaluate(nil, OperatorGreater, 0))
	assert.False(t, Evaluate(nil, OperatorIsTrue, nil))
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	assert.False(t, Evaluate("x", "no_such_operator", "x"))
}
