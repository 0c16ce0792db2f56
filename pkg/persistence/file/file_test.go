package file

import (
	"context"
	"testing"
	"time"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersistence_WorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()

	store, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Nightly report",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "report", Type: models.NodeTypeAction, Config: map[string]any{"template": "nightly"}},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "report"},
			{Source: "report", Target: "end"},
		},
		Triggers:  []*models.Trigger{{ID: "t-1", Type: models.TriggerTypeSchedule, Schedule: "daily"}},
		Settings:  models.Settings{MaxRetries: 3, DefaultTimeoutSeconds: 30},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	loaded, err := store.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, loaded.Name)
	require.Len(t, loaded.Nodes, 3)
	assert.Equal(t, "nightly", loaded.Nodes[1].Config["template"])
	require.Len(t, loaded.Triggers, 1)
	assert.Equal(t, "daily", loaded.Triggers[0].Schedule)

	all, err := store.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteWorkflow(ctx, "wf-1"))
	_, err = store.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestFilePersistence_ExecutionRoundTrip(t *testing.T) {
	ctx := context.Background()

	store, err := NewPersistence("file://" + t.TempDir())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	execution := &models.Execution{
		ID:          "exec-1",
		WorkflowID:  "wf-1",
		Status:      models.ExecutionStatusFailed,
		TriggerData: map[string]any{"user": "a"},
		Context:     map[string]any{"score": float64(80)},
		StartedAt:   &now,
		Error:       &models.ExecutionError{NodeID: "report", Message: "smtp unavailable"},
		Log: []*models.LogEntry{
			{NodeID: "report", Transition: models.TransitionStarted, Timestamp: now},
			{NodeID: "report", Transition: models.TransitionFailed, Timestamp: now},
		},
	}

	require.NoError(t, store.SaveExecution(ctx, execution))

	loaded, err := store.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	require.NotNil(t, loaded.Error)
	assert.Equal(t, "report", loaded.Error.NodeID)
	require.Len(t, loaded.Log, 2)

	byWorkflow, err := store.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	_, err = store.ExecutionByID(ctx, "exec-404")
	assert.True(t, persistence.IsExecutionNotFound(err))

	assert.NoError(t, store.HealthCheck(ctx))
	assert.NoError(t, store.Close(ctx))
}
