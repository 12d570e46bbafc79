package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearWorkflow() *Workflow {
	return &Workflow{
		ID:   "wf-1",
		Name: "Linear",
		Nodes: []*Node{
			{ID: "a", Type: NodeTypeTrigger},
			{ID: "b", Type: NodeTypeAction},
			{ID: "c", Type: NodeTypeAction},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}
}

func TestWorkflow_Validate_Valid(t *testing.T) {
	workflow := linearWorkflow()

	require.NoError(t, workflow.Validate())
}

func TestWorkflow_Validate_NoNodes(t *testing.T) {
	workflow := &Workflow{ID: "empty", Name: "Empty"}

	err := workflow.Validate()

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "no nodes")
}

func TestWorkflow_Validate_DuplicateNodeID(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes = append(workflow.Nodes, &Node{ID: "a", Type: NodeTypeAction})

	err := workflow.Validate()

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestWorkflow_Validate_EmptyNodeID(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes = append(workflow.Nodes, &Node{Type: NodeTypeAction})

	err := workflow.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty id")
}

func TestWorkflow_Validate_EdgeUnknownSource(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Edges = append(workflow.Edges, &Edge{ID: "e3", Source: "missing", Target: "c"})

	err := workflow.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source node")
}

func TestWorkflow_Validate_EdgeUnknownTarget(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Edges = append(workflow.Edges, &Edge{ID: "e3", Source: "a", Target: "missing"})

	err := workflow.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target node")
}

func TestWorkflow_Validate_Cycle(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Edges = append(workflow.Edges, &Edge{ID: "e3", Source: "c", Target: "a"})

	err := workflow.Validate()

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestWorkflow_Validate_SelfLoop(t *testing.T) {
	workflow := &Workflow{
		ID:   "self",
		Name: "Self Loop",
		Nodes: []*Node{
			{ID: "a", Type: NodeTypeTrigger},
			{ID: "b", Type: NodeTypeAction},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "b"},
		},
	}

	err := workflow.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestWorkflow_Validate_NoStartNode(t *testing.T) {
	// A two-node cycle has no node without incoming edges. The missing start
	// node is reported before the cycle is.
	workflow := &Workflow{
		ID:   "cyclic",
		Name: "Cyclic",
		Nodes: []*Node{
			{ID: "a", Type: NodeTypeAction},
			{ID: "b", Type: NodeTypeAction},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}

	err := workflow.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no start node")
}

func TestWorkflow_StartNodes(t *testing.T) {
	workflow := &Workflow{
		ID:   "multi-start",
		Name: "Multi Start",
		Nodes: []*Node{
			{ID: "a", Type: NodeTypeTrigger},
			{ID: "b", Type: NodeTypeTrigger},
			{ID: "c", Type: NodeTypeAction},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "a", Target: "c"},
			{ID: "e2", Source: "b", Target: "c"},
		},
	}

	starts := workflow.StartNodes()

	require.Len(t, starts, 2)
	assert.Equal(t, "a", starts[0].ID)
	assert.Equal(t, "b", starts[1].ID)
}

func TestWorkflow_EdgeLookups(t *testing.T) {
	workflow := linearWorkflow()

	incoming := workflow.IncomingEdges("b")
	require.Len(t, incoming, 1)
	assert.Equal(t, "a", incoming[0].Source)

	outgoing := workflow.OutgoingEdges("b")
	require.Len(t, outgoing, 1)
	assert.Equal(t, "c", outgoing[0].Target)

	assert.Empty(t, workflow.IncomingEdges("a"))
	assert.Empty(t, workflow.OutgoingEdges("c"))
}
