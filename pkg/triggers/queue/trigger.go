// Package queue provides the Redis list trigger source: each popped message
// fires one workflow run with the message as trigger payload.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KlikkAI/reporunner-sub008/pkg/protocol"
)

const (
	popTimeout     = time.Second
	connectTimeout = 5 * time.Second
)

var ErrQueueNameRequired = errors.New("queue trigger queue name is required")

// Trigger consumes a Redis list with BLPOP and submits one run per message.
type Trigger struct {
	Queue      string
	Addr       string
	Password   string
	DB         int
	WorkflowID string

	client   redis.UniversalClient
	callback protocol.TriggerCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	queue, _ := config["queue"].(string)
	workflowID, _ := config["workflow_id"].(string)

	addr := "localhost:6379"
	password := ""
	db := 0

	if connection, ok := config["connection"].(map[string]any); ok {
		if v, ok := connection["addr"].(string); ok && v != "" {
			addr = v
		}

		if v, ok := connection["password"].(string); ok {
			password = v
		}

		if v, ok := connection["db"].(float64); ok {
			db = int(v)
		}
	}

	trigger := &Trigger{
		Queue:      queue,
		Addr:       addr,
		Password:   password,
		DB:         db,
		WorkflowID: workflowID,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queue,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.Queue == "" {
		return ErrQueueNameRequired
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting queue trigger")
	t.callback = callback

	t.client = redis.NewClient(&redis.Options{
		Addr:     t.Addr,
		Password: t.Password,
		DB:       t.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := t.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	t.logger.InfoContext(ctx, "Connected to Redis", "addr", t.Addr, "db", t.DB)

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			t.logger.Info("Queue consumer stopped")

			return
		case <-ctx.Done():
			t.logger.Info("Context cancelled, stopping queue consumer")

			return
		default:
			if err := t.processMessage(ctx); err != nil {
				t.logger.ErrorContext(ctx, "Error processing queue message", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (t *Trigger) processMessage(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, popTimeout, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	triggerData := decodeMessage(result[1])

	if triggerData["timestamp"] == nil {
		triggerData["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	if t.WorkflowID != "" && triggerData["workflow_id"] == nil {
		triggerData["workflow_id"] = t.WorkflowID
	}

	go func() {
		if err := t.callback(ctx, triggerData); err != nil {
			t.logger.ErrorContext(ctx, "Failed to submit queued run", "error", err)
		}
	}()

	return nil
}

// decodeMessage turns a raw queue entry into a trigger payload. Anything
// that is not a JSON object, including JSON null, is wrapped under
// "message" so the payload is always a writable map.
func decodeMessage(message string) map[string]any {
	var triggerData map[string]any
	if err := json.Unmarshal([]byte(message), &triggerData); err != nil || triggerData == nil {
		return map[string]any{"message": message}
	}

	return triggerData
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping queue trigger")

	close(t.stopCh)
	t.wg.Wait()

	if t.client != nil {
		if err := t.client.Close(); err != nil {
			t.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
