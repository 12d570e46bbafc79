package models

import (
	"errors"
	"fmt"
)

// ValidationError marks a structurally invalid graph. Submissions failing
// validation are rejected before any run record is created and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "workflow validation failed: " + e.Reason
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError

	return errors.As(err, &ve)
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the workflow's structural invariants: non-empty node set,
// unique node IDs, edges referencing existing nodes, at least one start node
// and acyclicity. The scheduler's dependency-polling loop assumes a DAG, so
// cycles must be rejected here rather than detected at runtime.
func (w *Workflow) Validate() error {
	if len(w.Nodes) == 0 {
		return newValidationError("workflow %s has no nodes", w.ID)
	}

	nodeIDs := make(map[string]bool, len(w.Nodes))

	for _, node := range w.Nodes {
		if node.ID == "" {
			return newValidationError("workflow %s contains a node with an empty id", w.ID)
		}

		if nodeIDs[node.ID] {
			return newValidationError("duplicate node id %q", node.ID)
		}

		nodeIDs[node.ID] = true
	}

	for _, edge := range w.Edges {
		if !nodeIDs[edge.Source] {
			return newValidationError("edge %s references unknown source node %q", edge.ID, edge.Source)
		}

		if !nodeIDs[edge.Target] {
			return newValidationError("edge %s references unknown target node %q", edge.ID, edge.Target)
		}
	}

	if len(w.StartNodes()) == 0 {
		return newValidationError("workflow %s has no start node", w.ID)
	}

	if err := w.checkAcyclic(); err != nil {
		return err
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm and fails when not every node can be
// ordered, which means the remaining nodes form a cycle.
func (w *Workflow) checkAcyclic() error {
	inDegree := make(map[string]int, len(w.Nodes))
	for _, node := range w.Nodes {
		inDegree[node.ID] = 0
	}

	adjacency := make(map[string][]string, len(w.Nodes))

	for _, edge := range w.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	queue := make([]string, 0, len(w.Nodes))

	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	ordered := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered++

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if ordered != len(w.Nodes) {
		return newValidationError("workflow %s contains a cycle", w.ID)
	}

	return nil
}
