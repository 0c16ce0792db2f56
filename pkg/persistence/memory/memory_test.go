package memory

import (
	"context"
	"testing"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersistence_WorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "Order processing",
		Status: models.WorkflowStatusDraft,
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{{Source: "start", Target: "end"}},
	}

	require.NoError(t, store.SaveWorkflow(ctx, workflow))

	loaded, err := store.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Order processing", loaded.Name)
	require.Len(t, loaded.Nodes, 2)

	// Stored state is isolated from caller mutations.
	loaded.Name = "mutated"
	again, err := store.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Order processing", again.Name)

	all, err := store.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteWorkflow(ctx, "wf-1"))

	_, err = store.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, persistence.IsWorkflowNotFound(store.DeleteWorkflow(ctx, "wf-1")))
}

func TestMemoryPersistence_Executions(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	_, err := store.ExecutionByID(ctx, "exec-missing")
	assert.True(t, persistence.IsExecutionNotFound(err))

	execution := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusPending,
		Context:    map[string]any{"score": 80},
	}
	require.NoError(t, store.SaveExecution(ctx, execution))
	require.NoError(t, store.SaveExecution(ctx, &models.Execution{ID: "exec-2", WorkflowID: "wf-2"}))

	loaded, err := store.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, loaded.Status)

	byWorkflow, err := store.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, byWorkflow, 1)
	assert.Equal(t, "exec-1", byWorkflow[0].ID)
}
