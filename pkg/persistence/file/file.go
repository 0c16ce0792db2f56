// Package file provides file-based persistence for workflows and executions.
// Each record is one JSON document under the configured root directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
)

const (
	workflowsDir  = "workflows"
	executionsDir = "executions"
)

type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file store rooted at the given directory. The
// "file://" URL prefix used by the CLI is accepted and stripped.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	for _, dir := range []string{workflowsDir, executionsDir} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &Persistence{root: cleanRoot}, nil
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(p.root, workflowsDir, "*.json"))
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(paths))

	for _, path := range paths {
		workflow := &models.Workflow{}
		if err := readJSON(path, workflow); err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow := &models.Workflow{}

	err := readJSON(p.workflowPath(id), workflow)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return writeJSON(p.workflowPath(workflow.ID), workflow)
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(p.workflowPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return persistence.NewStoreError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return err
}

func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execution := &models.Execution{}

	err := readJSON(p.executionPath(id), execution)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, err
	}

	return execution, nil
}

func (p *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return writeJSON(p.executionPath(execution.ID), execution)
}

func (p *Persistence) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	paths, err := filepath.Glob(filepath.Join(p.root, executionsDir, "*.json"))
	if err != nil {
		return nil, err
	}

	var executions []*models.Execution

	for _, path := range paths {
		execution := &models.Execution{}
		if err := readJSON(path, execution); err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.root, workflowsDir, id+".json")
}

func (p *Persistence) executionPath(id string) string {
	return filepath.Join(p.root, executionsDir, id+".json")
}

func readJSON(path string, target any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}

func writeJSON(path string, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
