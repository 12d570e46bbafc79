package condition

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Comparison operators. Symbol names are case-sensitive and exhaustive; an
// unknown operator evaluates to false and is logged, never an error.
const (
	OperatorEquals        = "equals"
	OperatorNotEquals     = "not_equals"
	OperatorContains      = "contains"
	OperatorNotContains   = "not_contains"
	OperatorStartsWith    = "starts_with"
	OperatorEndsWith      = "ends_with"
	OperatorGreater       = "greater"
	OperatorGreaterEqual  = "greater_equal"
	OperatorLess          = "less"
	OperatorLessEqual     = "less_equal"
	OperatorBetween       = "between"
	OperatorIsEmpty       = "is_empty"
	OperatorIsNotEmpty    = "is_not_empty"
	OperatorLengthEquals  = "length_equals"
	OperatorLengthGreater = "length_greater"
	OperatorIsTrue        = "is_true"
	OperatorIsFalse       = "is_false"
	OperatorIsNull        = "is_null"
	OperatorRegex         = "regex"
)

// Evaluate applies a typed comparison operator to a resolved field value.
// Nil field values satisfy only is_empty/is_null and are false for every
// other operator. Numeric operators coerce both sides; a failed coercion
// makes the comparison false, never an error.
func Evaluate(value any, operator string, compareValue any) bool {
	switch operator {
	case OperatorIsEmpty:
		return isEmpty(value)
	case OperatorIsNotEmpty:
		return !isEmpty(value)
	case OperatorIsNull:
		return value == nil
	}

	if value == nil {
		return false
	}

	switch operator {
	case OperatorEquals:
		return looseEquals(value, compareValue)
	case OperatorNotEquals:
		return !looseEquals(value, compareValue)
	case OperatorContains:
		return contains(value, compareValue)
	case OperatorNotContains:
		return !contains(value, compareValue)
	case OperatorStartsWith:
		return strings.HasPrefix(stringify(value), stringify(compareValue))
	case OperatorEndsWith:
		return strings.HasSuffix(stringify(value), stringify(compareValue))
	case OperatorGreater:
		return compareNumbers(value, compareValue, func(a, b float64) bool { return a > b })
	case OperatorGreaterEqual:
		return compareNumbers(value, compareValue, func(a, b float64) bool { return a >= b })
	case OperatorLess:
		return compareNumbers(value, compareValue, func(a, b float64) bool { return a < b })
	case OperatorLessEqual:
		return compareNumbers(value, compareValue, func(a, b float64) bool { return a <= b })
	case OperatorBetween:
		return between(value, compareValue)
	case OperatorLengthEquals:
		return compareLength(value, compareValue, func(a, b int) bool { return a == b })
	case OperatorLengthGreater:
		return compareLength(value, compareValue, func(a, b int) bool { return a > b })
	case OperatorIsTrue:
		return truthy(value)
	case OperatorIsFalse:
		return !truthy(value)
	case OperatorRegex:
		return matchRegex(value, compareValue)
	default:
		slog.Warn("Unknown condition operator", "operator", operator)

		return false
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return false
	default:
		if num, ok := toNumber(value); ok {
			return num != 0
		}

		return false
	}
}

// looseEquals compares numerically when both sides coerce to numbers,
// otherwise by string representation.
func looseEquals(a, b any) bool {
	numA, okA := toNumber(a)
	numB, okB := toNumber(b)

	if okA && okB {
		return numA == numB
	}

	return stringify(a) == stringify(b)
}

// contains is substring match for strings and membership for arrays.
func contains(value, compareValue any) bool {
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if looseEquals(item, compareValue) {
				return true
			}
		}

		return false
	}

	return strings.Contains(stringify(value), stringify(compareValue))
}

func compareNumbers(a, b any, cmp func(a, b float64) bool) bool {
	numA, okA := toNumber(a)
	numB, okB := toNumber(b)

	if !okA || !okB {
		return false
	}

	return cmp(numA, numB)
}

// between expects the compare value as a "min,max" string (inclusive bounds).
func between(value, compareValue any) bool {
	num, ok := toNumber(value)
	if !ok {
		return false
	}

	bounds := strings.SplitN(stringify(compareValue), ",", 2)
	if len(bounds) != 2 {
		return false
	}

	minBound, okMin := toNumber(strings.TrimSpace(bounds[0]))
	maxBound, okMax := toNumber(strings.TrimSpace(bounds[1]))

	if !okMin || !okMax {
		return false
	}

	return num >= minBound && num <= maxBound
}

func compareLength(value, compareValue any, cmp func(a, b int) bool) bool {
	var length int

	switch v := value.(type) {
	case string:
		length = len(v)
	case []any:
		length = len(v)
	case map[string]any:
		length = len(v)
	default:
		return false
	}

	expected, ok := toNumber(compareValue)
	if !ok {
		return false
	}

	return cmp(length, int(expected))
}

// matchRegex matches the stringified value, supporting "/pattern/flags"
// syntax with i, m and s flags. An invalid pattern evaluates to false.
func matchRegex(value, compareValue any) bool {
	pattern := stringify(compareValue)

	if strings.HasPrefix(pattern, "/") {
		if end := strings.LastIndex(pattern, "/"); end > 0 {
			flags := pattern[end+1:]
			pattern = pattern[1:end]

			if flags != "" {
				pattern = "(?" + flags + ")" + pattern
			}
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		slog.Warn("Invalid condition regex", "pattern", pattern, "error", err)

		return false
	}

	return re.MatchString(stringify(value))
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return num, true
	default:
		return 0, false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
