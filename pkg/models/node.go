package models

import "time"

// NodeType discriminates which handler executes a node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeTransform NodeType = "transform"
)

// Node represents a typed unit of work in a workflow graph. Config is an
// opaque, handler-specific bag. Rules and DefaultOutput are only meaningful
// for condition nodes.
type Node struct {
	ID            string           `json:"id"   validate:"required"`
	Type          NodeType         `json:"type" validate:"required"`
	Name          string           `json:"name"`
	Config        map[string]any   `json:"config,omitempty"`
	Rules         []*ConditionRule `json:"rules,omitempty"`
	DefaultOutput string           `json:"default_output,omitempty"`
}

// IsCondition reports whether the node routes execution through named output
// paths instead of unconditional fan-out.
func (n *Node) IsCondition() bool {
	return n.Type == NodeTypeCondition
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusSkipped NodeStatus = "skipped"
)

// Terminal reports whether the status counts toward run progress.
func (s NodeStatus) Terminal() bool {
	return s == NodeStatusSuccess || s == NodeStatusError || s == NodeStatusSkipped
}

// NodeResult is the uniform outcome the dispatcher produces for every node,
// success or failure. OutputPath, MatchedRule and ConditionMet are populated
// for condition nodes only.
type NodeResult struct {
	NodeID       string         `json:"node_id"`
	Success      bool           `json:"success"`
	Output       map[string]any `json:"output,omitempty"`
	Error        *NodeError     `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration"`
	OutputPath   string         `json:"output_path,omitempty"`
	MatchedRule  string         `json:"matched_rule,omitempty"`
	ConditionMet bool           `json:"condition_met,omitempty"`
}

// NodeError carries a handler failure without propagating it as a Go error.
type NodeError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func (e *NodeError) Error() string {
	return e.Message
}
