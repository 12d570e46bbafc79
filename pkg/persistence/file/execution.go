package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
)

// ExecutionRepository stores run records as one JSON file per run under
// <root>/executions. A process-wide mutex serializes read-modify-write
// cycles so concurrent node updates of the same run are never lost.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return path.Join(er.root, "executions")
}

func (er *ExecutionRepository) filePath(id string) string {
	return path.Join(er.dir(), id+".json")
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.write(execution)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.read(id)
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := os.Stat(er.dir()); os.IsNotExist(err) {
		return []*models.Execution{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		execution, err := er.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if workflowID == "" || execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (er *ExecutionRepository) UpdateExecution(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.read(execution.ID)
	if err != nil {
		return err
	}

	// Run-level fields only; node records are patched through
	// UpdateNodeExecution and must not be clobbered here.
	stored.Status = execution.Status
	stored.StartTime = execution.StartTime
	stored.EndTime = execution.EndTime
	stored.DurationMs = execution.DurationMs
	stored.CompletedNodes = execution.CompletedNodes
	stored.ErrorMessage = execution.ErrorMessage
	stored.UpdatedAt = execution.UpdatedAt

	return er.write(stored)
}

func (er *ExecutionRepository) UpdateNodeExecution(_ context.Context, executionID string, nodeExecution *models.NodeExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.read(executionID)
	if err != nil {
		return err
	}

	replaced := false

	for i, ne := range stored.NodeExecutions {
		if ne.NodeID == nodeExecution.NodeID {
			stored.NodeExecutions[i] = nodeExecution
			replaced = true

			break
		}
	}

	if !replaced {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, persistence.ErrNodeExecutionNotFound)
	}

	stored.RecomputeProgress()

	return er.write(stored)
}

func (er *ExecutionRepository) read(id string) (*models.Execution, error) {
	data, err := os.ReadFile(er.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, fmt.Errorf("failed to unmarshal execution: %w", err))
	}

	return &execution, nil
}

func (er *ExecutionRepository) write(execution *models.Execution) error {
	if err := os.MkdirAll(er.dir(), 0o755); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, fmt.Errorf("failed to marshal execution: %w", err))
	}

	if err := os.WriteFile(er.filePath(execution.ID), data, 0o644); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}
