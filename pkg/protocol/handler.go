// Package protocol defines the interfaces and contracts between the execution
// engine and its external collaborators: node handlers, credential resolvers
// and trigger sources.
package protocol

import (
	"context"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

// NodeHandler executes one node type. Implementations may perform I/O; the
// engine never inspects what a handler does, only its returned output bag or
// error. Handlers must treat the execution context's credentials as
// read-only.
type NodeHandler interface {
	// Execute runs the node against the merged upstream input bag and
	// returns the node's output.
	Execute(ctx context.Context, node *models.Node, executionCtx *models.ExecutionContext, inputs map[string]any) (map[string]any, error)
}

// HandlerFactory creates handler instances and describes the node type it
// serves.
type HandlerFactory interface {
	// Create builds a handler for one node instance.
	Create(ctx context.Context, node *models.Node) (NodeHandler, error)

	// ID returns the node type this factory serves.
	ID() string

	// Name returns the human-readable handler name.
	Name() string

	// Description explains what the handler does.
	Description() string

	// Schema returns the JSON schema for the node's config bag.
	Schema() map[string]any
}
