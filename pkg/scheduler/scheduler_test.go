package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStarter struct {
	mu    sync.Mutex
	calls []map[string]any
	err   error
}

func (s *recordingStarter) Execute(_ context.Context, _ string, triggerData map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}

	s.calls = append(s.calls, triggerData)

	return "exec-test", nil
}

func (s *recordingStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

func scheduledWorkflow(schedule string) *models.Workflow {
	return &models.Workflow{
		ID:     "wf-sched",
		Name:   "nightly",
		Status: models.WorkflowStatusActive,
		Triggers: []*models.Trigger{
			{ID: "t1", Type: models.TriggerTypeSchedule, Schedule: schedule},
		},
	}
}

func newTestScheduler(t *testing.T, starter Starter) (*Scheduler, *memory.Persistence, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := memory.NewPersistence()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	return New(logger, store, starter, WithClock(clock)), store, clock
}

func TestTickSeedsBaselineWithoutFiring(t *testing.T) {
	starter := &recordingStarter{}
	s, store, _ := newTestScheduler(t, starter)

	require.NoError(t, store.SaveWorkflow(context.Background(), scheduledWorkflow("hourly")))

	s.Tick(context.Background())

	assert.Zero(t, starter.count(), "first sight starts the clock, it does not fire")

	wf, err := store.WorkflowByID(context.Background(), "wf-sched")
	require.NoError(t, err)
	require.NotNil(t, wf.Stats.LastScheduledAt)
}

func TestTickFiresWhenIntervalElapsed(t *testing.T) {
	starter := &recordingStarter{}
	s, store, clock := newTestScheduler(t, starter)

	require.NoError(t, store.SaveWorkflow(context.Background(), scheduledWorkflow("every_30_minutes")))

	s.Tick(context.Background()) // seed baseline

	clock.Advance(10 * time.Minute)
	s.Tick(context.Background())
	assert.Zero(t, starter.count(), "not yet due")

	clock.Advance(20 * time.Minute)
	s.Tick(context.Background())
	require.Equal(t, 1, starter.count())

	data := starter.calls[0]
	assert.Equal(t, true, data["scheduled"])
	assert.Equal(t, "t1", data["trigger_id"])
	assert.NotEmpty(t, data["time"])

	// Immediately after firing nothing is due.
	s.Tick(context.Background())
	assert.Equal(t, 1, starter.count())
}

func TestTickFiresAtMostOncePerTick(t *testing.T) {
	starter := &recordingStarter{}
	s, store, clock := newTestScheduler(t, starter)

	require.NoError(t, store.SaveWorkflow(context.Background(), scheduledWorkflow("hourly")))

	s.Tick(context.Background()) // seed baseline

	// Several intervals elapse while the scheduler is down.
	clock.Advance(5 * time.Hour)
	s.Tick(context.Background())

	assert.Equal(t, 1, starter.count(), "missed intervals collapse into one fire")
}

func TestTickIgnoresInactiveWorkflows(t *testing.T) {
	starter := &recordingStarter{}
	s, store, clock := newTestScheduler(t, starter)

	wf := scheduledWorkflow("hourly")
	wf.Status = models.WorkflowStatusPaused
	baseline := clock.Now().UTC()
	wf.Stats.LastScheduledAt = &baseline
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))

	clock.Advance(2 * time.Hour)
	s.Tick(context.Background())

	assert.Zero(t, starter.count())
}

func TestTickRetriesAfterStarterFailure(t *testing.T) {
	starter := &recordingStarter{err: assert.AnError}
	s, store, clock := newTestScheduler(t, starter)

	wf := scheduledWorkflow("hourly")
	baseline := clock.Now().UTC()
	wf.Stats.LastScheduledAt = &baseline
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))

	clock.Advance(time.Hour)
	s.Tick(context.Background())
	assert.Zero(t, starter.count())

	stored, err := store.WorkflowByID(context.Background(), "wf-sched")
	require.NoError(t, err)
	assert.True(t, stored.Stats.LastScheduledAt.Equal(baseline),
		"a failed spawn must not consume the interval")

	// The starter recovers; the same due interval fires on the next tick.
	starter.mu.Lock()
	starter.err = nil
	starter.mu.Unlock()

	s.Tick(context.Background())
	assert.Equal(t, 1, starter.count())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	starter := &recordingStarter{}
	s, _, _ := newTestScheduler(t, starter)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
