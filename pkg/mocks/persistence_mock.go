package mocks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
)

// Persistence is an in-memory persistence backend for tests.
type Persistence struct {
	workflows  *WorkflowRepository
	executions *ExecutionRepository
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows: &WorkflowRepository{
			workflows: make(map[string]*models.Workflow),
		},
		executions: &ExecutionRepository{
			executions: make(map[string]*models.Execution),
		},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// WorkflowRepository is a map-backed workflow store.
type WorkflowRepository struct {
	mu        sync.Mutex
	workflows map[string]*models.Workflow
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[workflow.ID] = workflow

	return nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflows := make([]*models.Workflow, 0, len(r.workflows))
	for _, workflow := range r.workflows {
		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].ID < workflows[j].ID
	})

	return workflows, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.workflows, id)

	return nil
}

// ExecutionRepository is a map-backed run store. Records are stored and
// returned as deep copies, like the real backends: the store never shares
// memory with the live run the tracker keeps mutating.
type ExecutionRepository struct {
	mu         sync.Mutex
	executions map[string]*models.Execution
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions[execution.ID] = copyExecution(execution)

	return nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, ok := r.executions[id]
	if !ok {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return copyExecution(execution), nil
}

func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	executions := make([]*models.Execution, 0)

	for _, execution := range r.executions {
		if workflowID == "" || execution.WorkflowID == workflowID {
			executions = append(executions, copyExecution(execution))
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	return executions, nil
}

func (r *ExecutionRepository) UpdateExecution(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[execution.ID]; !ok {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	r.executions[execution.ID] = copyExecution(execution)

	return nil
}

func (r *ExecutionRepository) UpdateNodeExecution(_ context.Context, executionID string, nodeExecution *models.NodeExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, ok := r.executions[executionID]
	if !ok {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, persistence.ErrExecutionNotFound)
	}

	for i, existing := range execution.NodeExecutions {
		if existing.NodeID == nodeExecution.NodeID {
			execution.NodeExecutions[i] = copyNodeExecution(nodeExecution)

			return nil
		}
	}

	return persistence.NewExecutionError("UpdateNodeExecution", executionID, persistence.ErrNodeExecutionNotFound)
}

func copyExecution(execution *models.Execution) *models.Execution {
	var clone models.Execution

	roundTrip(execution, &clone)

	return &clone
}

func copyNodeExecution(nodeExecution *models.NodeExecution) *models.NodeExecution {
	var clone models.NodeExecution

	roundTrip(nodeExecution, &clone)

	return &clone
}

func roundTrip(src, dst any) {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		panic(err)
	}
}
