// Package condition implements the rule-based condition evaluator: field path
// resolution into semi-structured input bags and typed comparison operators.
package condition

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var indexedSegment = regexp.MustCompile(`^(.*)\[(\d+)\]$`)

// Resolve walks a dot-separated field path through a nested value bag. A
// segment may carry bracket-index notation ("items[2]") to index into an
// array-valued property. When a string value is reached mid-path and it
// parses as JSON (optionally wrapped in a fenced code block), resolution
// continues into the parsed structure with the remaining segments, so rules
// can reach into stringified payloads such as an upstream AI response.
// A path that cannot be followed resolves to nil, never an error.
func Resolve(inputs map[string]any, fieldPath string) any {
	if fieldPath == "" {
		return nil
	}

	segments := strings.Split(fieldPath, ".")

	var current any = inputs

	for _, segment := range segments {
		if current == nil {
			return nil
		}

		if str, ok := current.(string); ok {
			parsed, ok := parseEmbeddedJSON(str)
			if !ok {
				return nil
			}

			current = parsed
		}

		key := segment
		index := -1

		if match := indexedSegment.FindStringSubmatch(segment); match != nil {
			key = match[1]
			index, _ = strconv.Atoi(match[2])
		}

		if key != "" {
			bag, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			current, ok = bag[key]
			if !ok {
				return nil
			}
		}

		if index >= 0 {
			if str, ok := current.(string); ok {
				parsed, ok := parseEmbeddedJSON(str)
				if !ok {
					return nil
				}

				current = parsed
			}

			list, ok := current.([]any)
			if !ok || index >= len(list) {
				return nil
			}

			current = list[index]
		}
	}

	return current
}

// parseEmbeddedJSON parses a string as JSON, unwrapping a fenced code block
// first when present.
func parseEmbeddedJSON(value string) (any, bool) {
	trimmed := strings.TrimSpace(value)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, false
	}

	return parsed, true
}
