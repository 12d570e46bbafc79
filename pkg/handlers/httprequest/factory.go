package httprequest

import (
	"context"
	"log/slog"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

// Factory creates HTTP request handlers.
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
	return "http_request"
}

func (f *Factory) Name() string {
	return "HTTP Request"
}

func (f *Factory) Description() string {
	return "Performs an HTTP request to a specified URL with optional headers and body."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to send the HTTP request to. Supports templating.",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/users/{{.inputs.output.user_id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use.",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers to include in the request. Values support templating.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Request body content. Supports templating for dynamic JSON or text content.",
				"examples": []string{
					`{"name": "John Doe", "email": "john@example.com"}`,
					`{"message": "Hello {{.trigger_data.name}}", "timestamp": "{{now}}"}`,
				},
			},
			"timeout_ms": map[string]any{
				"type":        "integer",
				"description": "Request timeout in milliseconds.",
				"default":     30000,
				"minimum":     1,
			},
		},
		"required": []string{"url"},
	}
}
