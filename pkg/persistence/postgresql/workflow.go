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

type workflowRepository struct {
	db *sql.DB
}

const workflowColumns = `
	id, name, version, status, owner, nodes, edges, triggers, settings, stats,
	created_at, updated_at
`

func (r *workflowRepository) getAll(ctx context.Context) ([]*models.Workflow, error) {
	query := "SELECT " + workflowColumns + " FROM workflows WHERE deleted_at IS NULL ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStoreError("list workflows", "", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewStoreError("scan workflow", "", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("list workflows", "", err)
	}

	return workflows, nil
}

func (r *workflowRepository) getByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := "SELECT " + workflowColumns + " FROM workflows WHERE id = $1 AND deleted_at IS NULL"

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("get workflow", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("get workflow", id, err)
	}

	return workflow, nil
}

func (r *workflowRepository) save(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return persistence.NewStoreError("save workflow", workflow.ID, err)
	}

	edges, err := json.Marshal(workflow.Edges)
	if err != nil {
		return persistence.NewStoreError("save workflow", workflow.ID, err)
	}

	triggers, err := json.Marshal(workflow.Triggers)
	if err != nil {
		return persistence.NewStoreError("save workflow", workflow.ID, err)
	}

	settings, err := json.Marshal(workflow.Settings)
	if err != nil {
		return persistence.NewStoreError("save workflow", workflow.ID, err)
	}

	stats, err := json.Marshal(workflow.Stats)
	if err != nil {
		return persistence.NewStoreError("save workflow", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (id, name, version, status, owner, nodes, edges, triggers, settings, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			owner = EXCLUDED.owner,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			triggers = EXCLUDED.triggers,
			settings = EXCLUDED.settings,
			stats = EXCLUDED.stats,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Version,
		workflow.Status,
		workflow.Owner,
		nodes,
		edges,
		triggers,
		settings,
		stats,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("save workflow", workflow.ID, err)
	}

	return nil
}

func (r *workflowRepository) delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return persistence.NewStoreError("delete workflow", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("delete workflow", id, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("delete workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		nodes    []byte
		edges    []byte
		triggers []byte
		settings []byte
		stats    []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Version,
		&workflow.Status,
		&workflow.Owner,
		&nodes,
		&edges,
		&triggers,
		&settings,
		&stats,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	if err := json.Unmarshal(edges, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("failed to decode edges: %w", err)
	}

	if err := json.Unmarshal(triggers, &workflow.Triggers); err != nil {
		return nil, fmt.Errorf("failed to decode triggers: %w", err)
	}

	if err := json.Unmarshal(settings, &workflow.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := json.Unmarshal(stats, &workflow.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	return &workflow, nil
}
