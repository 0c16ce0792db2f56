// Package memory provides an in-memory persistence implementation used for
// single-node deployments and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
)

// Persistence keeps workflows and executions in maps. Values are cloned on
// the way in and out so callers never share mutable state with the store.
type Persistence struct {
	mu         sync.RWMutex
	workflows  map[string]*models.Workflow
	executions map[string]*models.Execution
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  make(map[string]*models.Workflow),
		executions: make(map[string]*models.Execution),
	}
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*models.Workflow, 0, len(p.workflows))

	for _, workflow := range p.workflows {
		clone, err := clone(workflow)
		if err != nil {
			return nil, err
		}

		out = append(out, clone)
	}

	return out, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow, ok := p.workflows[id]
	if !ok {
		return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	return clone(workflow)
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	stored, err := clone(workflow)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.workflows[workflow.ID] = stored

	return nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.workflows[id]; !ok {
		return persistence.NewStoreError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	delete(p.workflows, id)

	return nil
}

func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execution, ok := p.executions[id]
	if !ok {
		return nil, persistence.NewStoreError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	return clone(execution)
}

func (p *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	stored, err := clone(execution)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.executions[execution.ID] = stored

	return nil
}

func (p *Persistence) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*models.Execution

	for _, execution := range p.executions {
		if execution.WorkflowID != workflowID {
			continue
		}

		cloned, err := clone(execution)
		if err != nil {
			return nil, err
		}

		out = append(out, cloned)
	}

	return out, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func clone[T any](value *T) (*T, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to clone value: %w", err)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to clone value: %w", err)
	}

	return out, nil
}
