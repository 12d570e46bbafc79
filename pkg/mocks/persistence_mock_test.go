package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
)

func pendingExecution() *models.Execution {
	return &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusPending,
		NodeExecutions: []*models.NodeExecution{
			{NodeID: "n1", Status: models.NodeStatusPending},
		},
	}
}

func TestExecutionRepository_StoresSnapshots(t *testing.T) {
	repo := NewPersistence().ExecutionRepository()
	ctx := context.Background()

	live := pendingExecution()
	require.NoError(t, repo.Create(ctx, live))

	// Mutating the caller's record after Create does not bleed into the
	// store until it is persisted again.
	live.Status = models.ExecutionStatusRunning
	live.NodeExecutions[0].Status = models.NodeStatusRunning

	stored, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)
	assert.Equal(t, models.NodeStatusPending, stored.NodeExecutions[0].Status)

	require.NoError(t, repo.UpdateExecution(ctx, live))

	stored, err = repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
}

func TestExecutionRepository_GetByIDReturnsCopy(t *testing.T) {
	repo := NewPersistence().ExecutionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingExecution()))

	fetched, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)

	// Mutating a fetched record never leaks back into the store.
	fetched.Status = models.ExecutionStatusError
	fetched.NodeExecutions[0].Status = models.NodeStatusError

	again, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, again.Status)
	assert.Equal(t, models.NodeStatusPending, again.NodeExecutions[0].Status)
}

func TestExecutionRepository_ListByWorkflowReturnsCopies(t *testing.T) {
	repo := NewPersistence().ExecutionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingExecution()))

	listed, err := repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	listed[0].Status = models.ExecutionStatusCancelled

	again, err := repo.GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, again.Status)
}
