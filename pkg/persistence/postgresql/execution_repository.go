package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KlikkAI/reporunner-sub008/pkg/models"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
)

// ExecutionRepository handles run-record database operations. Run-level
// fields live in the executions table; per-node records are rows in
// node_executions, patched independently.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (er *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("failed to marshal trigger data: %w", err))
	}

	transaction, err := er.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, user_id, status, start_time, end_time, duration_ms,
			trigger_type, trigger_data, total_nodes, completed_nodes,
			error_message, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = transaction.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.UserID,
		execution.Status,
		execution.StartTime,
		execution.EndTime,
		execution.DurationMs,
		execution.TriggerType,
		triggerDataJSON,
		execution.TotalNodes,
		execution.CompletedNodes,
		execution.ErrorMessage,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		_ = transaction.Rollback()

		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	for _, nodeExecution := range execution.NodeExecutions {
		err = er.insertNodeExecution(ctx, transaction, execution.ID, nodeExecution)
		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewExecutionError("Create", execution.ID, err)
		}
	}

	if err := transaction.Commit(); err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) insertNodeExecution(ctx context.Context, tx *sql.Tx, executionID string, ne *models.NodeExecution) error {
	inputJSON, outputJSON, errorJSON, err := marshalNodeExecutionFields(ne)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO node_executions (
			execution_id, node_id, node_name, status, start_time, end_time,
			duration_ms, input, output, error, retry_attempt
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.ExecContext(ctx, query,
		executionID,
		ne.NodeID,
		ne.NodeName,
		ne.Status,
		ne.StartTime,
		ne.EndTime,
		ne.DurationMs,
		inputJSON,
		outputJSON,
		errorJSON,
		ne.RetryAttempt,
	)

	return err
}

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT id, workflow_id, user_id, status, start_time, end_time, duration_ms,
		       trigger_type, trigger_data, total_nodes, completed_nodes,
		       error_message, created_at, updated_at
		FROM executions
		WHERE id = $1
	`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	nodeExecutions, err := er.nodeExecutions(ctx, id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	execution.NodeExecutions = nodeExecutions

	return execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `
		SELECT id, workflow_id, user_id, status, start_time, end_time, duration_ms,
		       trigger_type, trigger_data, total_nodes, completed_nodes,
		       error_message, created_at, updated_at
		FROM executions
		WHERE ($1 = '' OR workflow_id = $1)
		ORDER BY created_at DESC
	`

	rows, err := er.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func (er *ExecutionRepository) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	query := `
		UPDATE executions SET
			status = $2,
			start_time = $3,
			end_time = $4,
			duration_ms = $5,
			completed_nodes = $6,
			error_message = $7,
			updated_at = $8
		WHERE id = $1
	`

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.StartTime,
		execution.EndTime,
		execution.DurationMs,
		execution.CompletedNodes,
		execution.ErrorMessage,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("UpdateExecution", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (er *ExecutionRepository) UpdateNodeExecution(ctx context.Context, executionID string, ne *models.NodeExecution) error {
	inputJSON, outputJSON, errorJSON, err := marshalNodeExecutionFields(ne)
	if err != nil {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, err)
	}

	query := `
		UPDATE node_executions SET
			node_name = $3,
			status = $4,
			start_time = $5,
			end_time = $6,
			duration_ms = $7,
			input = $8,
			output = $9,
			error = $10,
			retry_attempt = $11
		WHERE execution_id = $1 AND node_id = $2
	`

	result, err := er.db.ExecContext(ctx, query,
		executionID,
		ne.NodeID,
		ne.NodeName,
		ne.Status,
		ne.StartTime,
		ne.EndTime,
		ne.DurationMs,
		inputJSON,
		outputJSON,
		errorJSON,
		ne.RetryAttempt,
	)
	if err != nil {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, persistence.ErrNodeExecutionNotFound)
	}

	// Progress is derived from terminal node statuses.
	recompute := `
		UPDATE executions SET completed_nodes = (
			SELECT COUNT(*) FROM node_executions
			WHERE execution_id = $1 AND status IN ('success', 'error', 'skipped')
		)
		WHERE id = $1
	`

	_, err = er.db.ExecContext(ctx, recompute, executionID)
	if err != nil {
		return persistence.NewExecutionError("UpdateNodeExecution", executionID, err)
	}

	return nil
}

func (er *ExecutionRepository) nodeExecutions(ctx context.Context, executionID string) ([]*models.NodeExecution, error) {
	query := `
		SELECT node_id, node_name, status, start_time, end_time, duration_ms,
		       input, output, error, retry_attempt
		FROM node_executions
		WHERE execution_id = $1
		ORDER BY node_id
	`

	rows, err := er.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node executions: %w", err)
	}
	defer rows.Close()

	nodeExecutions := make([]*models.NodeExecution, 0)

	for rows.Next() {
		var (
			ne        models.NodeExecution
			nodeName  sql.NullString
			inputJSON []byte
			outJSON   []byte
			errJSON   []byte
		)

		err := rows.Scan(
			&ne.NodeID,
			&nodeName,
			&ne.Status,
			&ne.StartTime,
			&ne.EndTime,
			&ne.DurationMs,
			&inputJSON,
			&outJSON,
			&errJSON,
			&ne.RetryAttempt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}

		ne.NodeName = nodeName.String

		if len(inputJSON) > 0 {
			if err := json.Unmarshal(inputJSON, &ne.Input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node input: %w", err)
			}
		}

		if len(outJSON) > 0 {
			if err := json.Unmarshal(outJSON, &ne.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node output: %w", err)
			}
		}

		if len(errJSON) > 0 {
			if err := json.Unmarshal(errJSON, &ne.Error); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node error: %w", err)
			}
		}

		nodeExecutions = append(nodeExecutions, &ne)
	}

	return nodeExecutions, rows.Err()
}

func (er *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution       models.Execution
		userID          sql.NullString
		triggerType     sql.NullString
		triggerDataJSON []byte
		errorMessage    sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&userID,
		&execution.Status,
		&execution.StartTime,
		&execution.EndTime,
		&execution.DurationMs,
		&triggerType,
		&triggerDataJSON,
		&execution.TotalNodes,
		&execution.CompletedNodes,
		&errorMessage,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.UserID = userID.String
	execution.TriggerType = triggerType.String
	execution.ErrorMessage = errorMessage.String

	if len(triggerDataJSON) > 0 {
		if err := json.Unmarshal(triggerDataJSON, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	return &execution, nil
}

func marshalNodeExecutionFields(ne *models.NodeExecution) (inputJSON, outputJSON, errorJSON []byte, err error) {
	if ne.Input != nil {
		inputJSON, err = json.Marshal(ne.Input)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal node input: %w", err)
		}
	}

	if ne.Output != nil {
		outputJSON, err = json.Marshal(ne.Output)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal node output: %w", err)
		}
	}

	if ne.Error != nil {
		errorJSON, err = json.Marshal(ne.Error)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal node error: %w", err)
		}
	}

	return inputJSON, outputJSON, errorJSON, nil
}
