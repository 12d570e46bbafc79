// Package testutil provides test data builders shared across packages.
package testutil

import (
	"github.com/google/uuid"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

// NewNode creates a node with defaults that can be overridden.
func NewNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:     uuid.New().String(),
		Type:   models.NodeTypeAction,
		Name:   "Test Node",
		Config: map[string]any{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithConfig sets the node config bag.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithRules configures the node as a condition with the given rules.
func WithRules(defaultOutput string, rules ...*models.ConditionRule) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeCondition
		n.Rules = rules
		n.DefaultOutput = defaultOutput
	}
}

// NewRule creates an enabled condition rule.
func NewRule(field, operator string, value any, outputName string) *models.ConditionRule {
	return &models.ConditionRule{
		ID:         uuid.New().String(),
		Field:      field,
		Operator:   operator,
		Value:      value,
		ValueType:  models.ValueTypeFixed,
		OutputName: outputName,
		Enabled:    true,
	}
}

// NewWorkflow creates a workflow from the given nodes and edges.
func NewWorkflow(nodes []*models.Node, edges []*models.Edge, overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:    uuid.New().String(),
		Name:  "Test Workflow",
		Nodes: nodes,
		Edges: edges,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithSettings sets the workflow settings.
func WithSettings(settings models.WorkflowSettings) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Settings = settings
	}
}

// Edge creates an edge between two nodes.
func Edge(source, target string) *models.Edge {
	return &models.Edge{
		ID:     uuid.New().String(),
		Source: source,
		Target: target,
	}
}

// EdgeWithHandle creates an edge following a named output handle.
func EdgeWithHandle(source, target, handle string) *models.Edge {
	return &models.Edge{
		ID:           uuid.New().String(),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	}
}
