// Package persistence provides the storage abstraction for workflow
// definitions and run records.
package persistence

import (
	"context"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores run records. UpdateNodeExecution patches a
// single per-node record; updates to different nodes of the same run must
// not overwrite each other.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	UpdateExecution(ctx context.Context, execution *models.Execution) error
	UpdateNodeExecution(ctx context.Context, executionID string, nodeExecution *models.NodeExecution) error
}

// Persistence aggregates the repositories one backend provides.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
