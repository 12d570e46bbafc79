// Package events defines the lifecycle event types published for every run.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

type EventType string

// Topic carries all run lifecycle events, keyed by execution ID.
const Topic = "reporunner.executions"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution_started"
	NodeStartedEvent        EventType = "node_started"
	NodeCompletedEvent      EventType = "node_completed"
	NodeFailedEvent         EventType = "node_failed"
	ExecutionCompletedEvent EventType = "execution_completed"
	ExecutionFailedEvent    EventType = "execution_failed"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType, executionID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Timestamp:   time.Now().UTC(),
	}
}

type ExecutionStarted struct {
	BaseEvent

	TriggerType string         `json:"trigger_type,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	TotalNodes  int            `json:"total_nodes"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type NodeStarted struct {
	BaseEvent

	NodeID       string `json:"node_id"`
	NodeName     string `json:"node_name,omitempty"`
	RetryAttempt int    `json:"retry_attempt,omitempty"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID          string         `json:"node_id"`
	Output          map[string]any `json:"output,omitempty"`
	DurationMs      int64          `json:"duration_ms"`
	ProgressPercent float64        `json:"progress_percent"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID       string            `json:"node_id"`
	Error        *models.NodeError `json:"error,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
	RetryAttempt int               `json:"retry_attempt,omitempty"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Status        models.ExecutionStatus `json:"status"`
	DurationMs    int64                  `json:"duration_ms"`
	NodesExecuted int                    `json:"nodes_executed"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Status        models.ExecutionStatus `json:"status"`
	Error         string                 `json:"error"`
	DurationMs    int64                  `json:"duration_ms"`
	NodesExecuted int                    `json:"nodes_executed"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
