package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
)

type executionRepository struct {
	db *sql.DB
}

const executionColumns = `
	id, workflow_id, status, trigger_data, context, current_node, error, log,
	started_at, completed_at
`

func (r *executionRepository) getByID(ctx context.Context, id string) (*models.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE id = $1"

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("get execution", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("get execution", id, err)
	}

	return execution, nil
}

func (r *executionRepository) byWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE workflow_id = $1 ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewStoreError("list executions", workflowID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStoreError("scan execution", workflowID, err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("list executions", workflowID, err)
	}

	return executions, nil
}

func (r *executionRepository) save(ctx context.Context, execution *models.Execution) error {
	triggerData, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return persistence.NewStoreError("save execution", execution.ID, err)
	}

	execContext, err := json.Marshal(execution.Context)
	if err != nil {
		return persistence.NewStoreError("save execution", execution.ID, err)
	}

	log, err := json.Marshal(execution.Log)
	if err != nil {
		return persistence.NewStoreError("save execution", execution.ID, err)
	}

	var execError []byte

	if execution.Error != nil {
		execError, err = json.Marshal(execution.Error)
		if err != nil {
			return persistence.NewStoreError("save execution", execution.ID, err)
		}
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, trigger_data, context, current_node, error, log, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			trigger_data = EXCLUDED.trigger_data,
			context = EXCLUDED.context,
			current_node = EXCLUDED.current_node,
			error = EXCLUDED.error,
			log = EXCLUDED.log,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		triggerData,
		execContext,
		execution.CurrentNode,
		execError,
		log,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("save execution", execution.ID, err)
	}

	return nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		triggerData []byte
		execContext []byte
		execError   []byte
		log         []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&triggerData,
		&execContext,
		&execution.CurrentNode,
		&execError,
		&log,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerData) > 0 {
		if err := json.Unmarshal(triggerData, &execution.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to decode trigger data: %w", err)
		}
	}

	if len(execContext) > 0 {
		if err := json.Unmarshal(execContext, &execution.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context: %w", err)
		}
	}

	if len(execError) > 0 {
		if err := json.Unmarshal(execError, &execution.Error); err != nil {
			return nil, fmt.Errorf("failed to decode error: %w", err)
		}
	}

	if len(log) > 0 {
		if err := json.Unmarshal(log, &execution.Log); err != nil {
			return nil, fmt.Errorf("failed to decode log: %w", err)
		}
	}

	return &execution, nil
}
