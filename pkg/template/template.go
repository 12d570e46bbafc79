// Package template renders dynamic expressions in node configs and condition
// rule values against the execution context.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"json": func(v any) string {
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	},
}

// RenderWithContext renders an expression with the run-scoped data bag:
// trigger data, run variables, the node's merged inputs and environment
// variables. Credentials are deliberately excluded from template scope.
func RenderWithContext(input string, executionCtx *models.ExecutionContext, inputs map[string]any) (any, error) {
	return Render(input, map[string]any{
		"trigger_data": executionCtx.TriggerData,
		"variables":    executionCtx.Variables,
		"vars":         executionCtx.Variables,
		"inputs":       inputs,
		"env":          envVars(),
		"execution": map[string]any{
			"id":          executionCtx.ExecutionID,
			"workflow_id": executionCtx.WorkflowID,
			"user_id":     executionCtx.UserID,
		},
	})
}

// Render executes a text/template expression and coerces the result back to
// a structured value: JSON when it parses, then number, then boolean, then
// the raw string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.New("expression").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return coerce(strings.TrimSpace(buf.String())), nil
}

// NeedsTemplating reports whether a string contains template syntax.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

func coerce(result string) any {
	if looksLikeJSON(result) {
		var structured any
		if err := json.Unmarshal([]byte(result), &structured); err == nil {
			return structured
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b
	}

	return result
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

func envVars() map[string]any {
	bag := make(map[string]any)

	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			bag[key] = value
		}
	}

	return bag
}
