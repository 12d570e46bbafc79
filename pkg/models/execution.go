package models

import "time"

// ExecutionStatus represents the lifecycle state of a run. Transitions only
// move forward along pending -> running -> {success|error|cancelled|timeout}.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuccess   ExecutionStatus = "success"
	ExecutionStatusError     ExecutionStatus = "error"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
)

// Terminal reports whether the run reached a final state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusError, ExecutionStatusCancelled, ExecutionStatusTimeout:
		return true
	case ExecutionStatusPending, ExecutionStatusRunning:
		return false
	}

	return false
}

// CanTransitionTo enforces the forward-only status machine.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusPending:
		return next != ExecutionStatusPending
	case ExecutionStatusRunning:
		return next.Terminal()
	case ExecutionStatusSuccess, ExecutionStatusError, ExecutionStatusCancelled, ExecutionStatusTimeout:
		return false
	}

	return false
}

// Execution is one invocation of a workflow against a trigger payload.
type Execution struct {
	ID             string           `json:"id"`
	WorkflowID     string           `json:"workflow_id"`
	UserID         string           `json:"user_id,omitempty"`
	Status         ExecutionStatus  `json:"status"`
	StartTime      *time.Time       `json:"start_time,omitempty"`
	EndTime        *time.Time       `json:"end_time,omitempty"`
	DurationMs     int64            `json:"duration_ms,omitempty"`
	TriggerType    string           `json:"trigger_type,omitempty"`
	TriggerData    map[string]any   `json:"trigger_data,omitempty"`
	TotalNodes     int              `json:"total_nodes"`
	CompletedNodes int              `json:"completed_nodes"`
	NodeExecutions []*NodeExecution `json:"node_executions"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NodeExecutionByID returns the per-node record for the given node, or nil.
func (e *Execution) NodeExecutionByID(nodeID string) *NodeExecution {
	for _, ne := range e.NodeExecutions {
		if ne.NodeID == nodeID {
			return ne
		}
	}

	return nil
}

// RecomputeProgress recounts completed nodes from terminal node statuses.
// The completed count never exceeds the total.
func (e *Execution) RecomputeProgress() {
	completed := 0

	for _, ne := range e.NodeExecutions {
		if ne.Status.Terminal() {
			completed++
		}
	}

	e.CompletedNodes = completed
}

// NodeExecution is the per-node, per-run lifecycle record. One exists per
// node per run, created eagerly in pending state when the run is created.
type NodeExecution struct {
	NodeID       string         `json:"node_id"`
	NodeName     string         `json:"node_name,omitempty"`
	Status       NodeStatus     `json:"status"`
	StartTime    *time.Time     `json:"start_time,omitempty"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	DurationMs   int64          `json:"duration_ms,omitempty"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Error        *NodeError     `json:"error,omitempty"`
	RetryAttempt int            `json:"retry_attempt,omitempty"`
}

// RecomputeDuration derives duration from the timestamps when both are set.
// Duration is computed, never asserted independently.
func (ne *NodeExecution) RecomputeDuration() {
	if ne.StartTime != nil && ne.EndTime != nil {
		ne.DurationMs = ne.EndTime.Sub(*ne.StartTime).Milliseconds()
	}
}
