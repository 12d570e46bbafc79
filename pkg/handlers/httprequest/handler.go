// Package httprequest provides the HTTP request node handler.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/template"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrURLMissing is returned when the node config has no url.
	ErrURLMissing = errors.New("missing or invalid 'url' in configuration")
)

// Handler performs an HTTP request described by the node config. URL, headers
// and body support templating against the execution context and the node's
// merged inputs.
type Handler struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration

	logger *slog.Logger
	client *http.Client
}

func NewHandler(node *models.Node, logger *slog.Logger) (*Handler, error) {
	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("node %s: %w", node.ID, ErrURLMissing)
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for key, value := range headersConfig {
			if strVal, ok := value.(string); ok {
				headers[key] = strVal
			}
		}
	}

	timeout := defaultTimeout
	if timeoutMs, ok := config["timeout_ms"].(float64); ok && timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	return &Handler{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Body:    body,
		Timeout: timeout,
		logger:  logger.With("module", "httprequest_handler"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (h *Handler) Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, inputs map[string]any) (map[string]any, error) {
	logger := h.logger.With("execution_id", executionCtx.ExecutionID, "node_id", node.ID)

	req, err := h.buildRequest(ctx, executionCtx, inputs)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Sending HTTP request", "method", req.Method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	return h.processResponse(ctx, resp, logger)
}

func (h *Handler) buildRequest(ctx context.Context, executionCtx *models.ExecutionContext, inputs map[string]any) (*http.Request, error) {
	url, err := renderString(h.URL, executionCtx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to render url template: %w", err)
	}

	bodyReader, err := h.buildBody(executionCtx, inputs)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, h.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range h.Headers {
		rendered, err := renderString(value, executionCtx, inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}

		req.Header.Set(key, rendered)
	}

	return req, nil
}

func (h *Handler) buildBody(executionCtx *models.ExecutionContext, inputs map[string]any) (io.Reader, error) {
	if h.Body == "" {
		return strings.NewReader(""), nil
	}

	body, err := template.RenderWithContext(h.Body, executionCtx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to render body template: %w", err)
	}

	if str, ok := body.(string); ok {
		return strings.NewReader(str), nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}

	return strings.NewReader(string(encoded)), nil
}

func (h *Handler) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)
	}

	logger.InfoContext(ctx, "HTTP request completed", "status_code", resp.StatusCode, "body_length", len(bodyBytes))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http request returned status %d", resp.StatusCode)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"response":    body,
		"headers":     flattenHeaders(resp.Header),
	}, nil
}

func renderString(input string, executionCtx *models.ExecutionContext, inputs map[string]any) (string, error) {
	if !template.NeedsTemplating(input) {
		return input, nil
	}

	rendered, err := template.RenderWithContext(input, executionCtx, inputs)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%v", rendered), nil
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))

	for key := range header {
		flat[key] = header.Get(key)
	}

	return flat
}
