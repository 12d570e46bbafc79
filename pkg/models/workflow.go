// Package models defines the core domain models for node-based workflow automation.
package models

import "time"

// ErrorHandling controls how a run reacts to a failed node.
type ErrorHandling string

const (
	ErrorHandlingStop     ErrorHandling = "stop"     // Abort the run on the first failed node
	ErrorHandlingContinue ErrorHandling = "continue" // Keep walking successors with whatever output the node produced
)

// WorkflowSettings contains run-level execution settings.
type WorkflowSettings struct {
	ErrorHandling       ErrorHandling `json:"error_handling"`
	TimeoutMs           int64         `json:"timeout_ms,omitempty"`
	RetryAttempts       int           `json:"retry_attempts,omitempty"`
	AllowConcurrentRuns bool          `json:"allow_concurrent_runs"`
}

// Workflow represents a directed graph of typed nodes authored by a user.
// A workflow is immutable for the lifetime of a run.
type Workflow struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required,min=1"`
	Description string           `json:"description,omitempty"`
	Nodes       []*Node          `json:"nodes"`
	Edges       []*Edge          `json:"edges"`
	Settings    WorkflowSettings `json:"settings"`
	Version     int              `json:"version"`
	Owner       string           `json:"owner,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Edge is a directed dependency between two nodes. SourceHandle disambiguates
// which logical output of a branching node the edge follows.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// StartNodes returns all nodes with no incoming edge.
func (w *Workflow) StartNodes() []*Node {
	hasIncoming := make(map[string]bool, len(w.Nodes))
	for _, edge := range w.Edges {
		hasIncoming[edge.Target] = true
	}

	starts := make([]*Node, 0, len(w.Nodes))

	for _, node := range w.Nodes {
		if !hasIncoming[node.ID] {
			starts = append(starts, node)
		}
	}

	return starts
}

// IncomingEdges returns all edges targeting the given node.
func (w *Workflow) IncomingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge.Target == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// OutgoingEdges returns all edges originating from the given node.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// Timeout returns the run-level timeout, falling back to the default when the
// workflow does not configure one.
func (w *Workflow) Timeout() time.Duration {
	if w.Settings.TimeoutMs > 0 {
		return time.Duration(w.Settings.TimeoutMs) * time.Millisecond
	}

	return DefaultRunTimeout
}

// DefaultRunTimeout bounds a run when settings.timeout_ms is unset.
const DefaultRunTimeout = 5 * time.Minute
