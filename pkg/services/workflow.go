package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/ferrant/orchid/pkg/registry"
	"github.com/ferrant/orchid/pkg/workflow"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

const (
	defaultMaxRetries     = 3
	defaultTimeoutSeconds = 30
)

// Workflow manages the workflow lifecycle: creation, structural edits while
// draft or paused, and the validated transition to active.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

// NewWorkflow creates a new workflow service. The registry is used to check
// handler availability during activation; a nil registry limits activation
// to structural validation.
func NewWorkflow(persistence persistence.Persistence, reg *registry.Registry) *Workflow {
	return &Workflow{
		persistence: persistence,
		registry:    reg,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Owner  string
	Status *models.WorkflowStatus
}

// ListWorkflows retrieves workflows, optionally filtered by owner and status.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) ([]*models.Workflow, error) {
	if req.Status != nil && !knownStatus(*req.Status) {
		return nil, NewValidationError(
			"ListWorkflows",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status),
			ErrInvalidStatus,
		)
	}

	workflows, err := w.persistence.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	filtered := make([]*models.Workflow, 0, len(workflows))

	for _, wf := range workflows {
		if req.Owner != "" && wf.Owner != req.Owner {
			continue
		}

		if req.Status != nil && wf.Status != *req.Status {
			continue
		}

		filtered = append(filtered, wf)
	}

	return filtered, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Create adds a new workflow in draft status. Missing execution settings get
// the engine defaults.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	if wf.Name == "" {
		return nil, ErrWorkflowNameRequired
	}

	now := time.Now().UTC()
	wf.ID = "wf-" + uuid.New().String()[:8]
	wf.Status = models.WorkflowStatusDraft
	wf.Version = 1
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.Stats = models.Stats{}

	applySettingsDefaults(wf)

	if err := w.persistence.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return wf, nil
}

// Update replaces the structure of an existing workflow. Only draft and
// paused workflows are editable; active ones must be paused first and
// archived ones never change.
func (w *Workflow) Update(ctx context.Context, workflowID string, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.WorkflowStatusArchived {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflowID)
	}

	if !existing.Editable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotEditable, workflowID, existing.Status)
	}

	wf.ID = workflowID
	wf.Status = existing.Status
	wf.Version = existing.Version + 1
	wf.Stats = existing.Stats
	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now().UTC()

	applySettingsDefaults(wf)

	if err := w.persistence.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return wf, nil
}

// Activate validates the workflow's structure and handler configurations and
// transitions it to active. The returned error carries every problem found,
// not just the first.
func (w *Workflow) Activate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	switch wf.Status {
	case models.WorkflowStatusActive:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActive, workflowID)
	case models.WorkflowStatusArchived:
		return nil, fmt.Errorf("%w: %s", ErrWorkflowArchived, workflowID)
	}

	if len(wf.Nodes) == 0 {
		return nil, ErrNodesRequired
	}

	if err := workflow.Validate(wf, w.registry); err != nil {
		return nil, err
	}

	wf.Status = models.WorkflowStatusActive
	wf.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to activate workflow: %w", err)
	}

	return wf, nil
}

// Pause suspends an active workflow, making it editable again. Running
// executions are unaffected; new ones are refused.
func (w *Workflow) Pause(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: %s is %s, only active workflows pause", ErrInvalidStatus, workflowID, wf.Status)
	}

	wf.Status = models.WorkflowStatusPaused
	wf.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to pause workflow: %w", err)
	}

	return wf, nil
}

// Archive retires a workflow permanently. Archived workflows stay readable
// for their execution history but never run or change again.
func (w *Workflow) Archive(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status == models.WorkflowStatusArchived {
		return wf, nil
	}

	wf.Status = models.WorkflowStatusArchived
	wf.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to archive workflow: %w", err)
	}

	return wf, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	wf, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if wf.Status == models.WorkflowStatusActive {
		return fmt.Errorf("%w: %s must be paused before deletion", ErrWorkflowNotEditable, workflowID)
	}

	if err := w.persistence.DeleteWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func applySettingsDefaults(wf *models.Workflow) {
	if wf.Settings.MaxRetries <= 0 {
		wf.Settings.MaxRetries = defaultMaxRetries
	}

	if wf.Settings.DefaultTimeoutSeconds <= 0 {
		wf.Settings.DefaultTimeoutSeconds = defaultTimeoutSeconds
	}
}

func knownStatus(status models.WorkflowStatus) bool {
	return slices.Contains([]models.WorkflowStatus{
		models.WorkflowStatusDraft,
		models.WorkflowStatusActive,
		models.WorkflowStatusPaused,
		models.WorkflowStatusArchived,
	}, status)
}
