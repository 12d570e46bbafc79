package delay

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewHandler_DefaultDuration(t *testing.T) {
	handler := NewHandler(&models.Node{ID: "n1", Config: map[string]any{}}, discardLogger())

	assert.Equal(t, defaultDelay, handler.Duration)
}

func TestNewHandler_ConfiguredDuration(t *testing.T) {
	// JSON numbers decode as float64.
	handler := NewHandler(&models.Node{ID: "n1", Config: map[string]any{"duration_ms": 250.0}}, discardLogger())

	assert.Equal(t, 250*time.Millisecond, handler.Duration)
}

func TestHandler_Execute(t *testing.T) {
	node := &models.Node{ID: "n1", Config: map[string]any{"duration_ms": 10.0}}
	handler := NewHandler(node, discardLogger())

	executionCtx := models.NewExecutionContext("wf-1", "exec-1", "", nil)

	started := time.Now()
	output, err := handler.Execute(context.Background(), node, executionCtx, nil)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 10*time.Millisecond)
	assert.Equal(t, int64(10), output["delayed_ms"])
}

func TestHandler_Execute_CancelledContext(t *testing.T) {
	node := &models.Node{ID: "n1", Config: map[string]any{"duration_ms": 60000.0}}
	handler := NewHandler(node, discardLogger())

	executionCtx := models.NewExecutionContext("wf-1", "exec-1", "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Execute(ctx, node, executionCtx, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "delay interrupted")
}
