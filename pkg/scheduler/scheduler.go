// Package scheduler fires schedule-triggered workflows on a periodic tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval is how often the scheduler polls for due workflows.
const DefaultTickInterval = 60 * time.Second

// Starter spawns workflow executions. The engine satisfies it.
type Starter interface {
	Execute(ctx context.Context, workflowID string, triggerData map[string]any) (string, error)
}

// Scheduler walks all active workflows once per tick and starts those whose
// schedule interval has elapsed since their last scheduled run. Firing is
// tick-granular: a due workflow runs on the next tick, never in between, and
// at most once per tick no matter how many intervals were missed. Missed
// runs are logged, not backfilled.
type Scheduler struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	starter     Starter
	clock       clockwork.Clock
	tick        time.Duration
}

type Option func(*Scheduler)

// WithClock injects a clock; tests pass a fake.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithTickInterval overrides the polling period.
func WithTickInterval(tick time.Duration) Option {
	return func(s *Scheduler) { s.tick = tick }
}

func New(logger *slog.Logger, store persistence.Persistence, starter Starter, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:      logger.With("module", "scheduler"),
		persistence: store,
		starter:     starter,
		clock:       clockwork.NewRealClock(),
		tick:        DefaultTickInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started", "tick_interval", s.tick)

	ticker := s.clock.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")

			return ctx.Err()
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass. Exported so the engine binary can force an
// immediate pass on startup.
func (s *Scheduler) Tick(ctx context.Context) {
	workflows, err := s.persistence.Workflows(ctx)
	if err != nil {
		s.logger.Error("Failed to list workflows", "error", err)

		return
	}

	now := s.clock.Now().UTC()

	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusActive {
			continue
		}

		s.evaluate(ctx, workflow, now)
	}
}

// evaluate fires the workflow at most once, on its first due schedule
// trigger.
func (s *Scheduler) evaluate(ctx context.Context, workflow *models.Workflow, now time.Time) {
	for _, trigger := range workflow.Triggers {
		if trigger.Type != models.TriggerTypeSchedule {
			continue
		}

		interval, err := models.ParseInterval(trigger.Schedule)
		if err != nil {
			// Activation validates schedules; reaching this means the stored
			// workflow predates the current grammar.
			s.logger.Warn("Skipping workflow with unparseable schedule",
				"workflow_id", workflow.ID,
				"schedule", trigger.Schedule,
				"error", err)

			continue
		}

		// A workflow that has never been scheduled starts its clock now
		// rather than firing immediately on first sight.
		if workflow.Stats.LastScheduledAt == nil {
			workflow.Stats.LastScheduledAt = &now
			if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
				s.logger.Error("Failed to seed schedule baseline", "workflow_id", workflow.ID, "error", err)
			}

			return
		}

		lastRun := *workflow.Stats.LastScheduledAt

		if !interval.Due(lastRun, now) {
			continue
		}

		if missed := now.Sub(lastRun) / interval.Every; missed > 1 {
			s.logger.Warn("Schedule missed intervals, firing once",
				"workflow_id", workflow.ID,
				"schedule", trigger.Schedule,
				"intervals_missed", int64(missed))
		}

		triggerData := map[string]any{
			"scheduled":  true,
			"time":       now.Format(time.RFC3339),
			"trigger_id": trigger.ID,
		}

		executionID, err := s.starter.Execute(ctx, workflow.ID, triggerData)
		if err != nil {
			// Leave LastScheduledAt untouched so the next tick retries.
			s.logger.Error("Failed to start scheduled execution",
				"workflow_id", workflow.ID,
				"error", err)

			return
		}

		// Re-fetch before recording the run: Execute just bumped the
		// workflow's counters and this copy predates that.
		fresh, err := s.persistence.WorkflowByID(ctx, workflow.ID)
		if err != nil {
			s.logger.Error("Failed to record scheduled run", "workflow_id", workflow.ID, "error", err)

			return
		}

		fresh.Stats.LastScheduledAt = &now
		if err := s.persistence.SaveWorkflow(ctx, fresh); err != nil {
			s.logger.Error("Failed to record scheduled run", "workflow_id", workflow.ID, "error", err)
		}

		s.logger.Info("Scheduled execution started",
			"workflow_id", workflow.ID,
			"execution_id", executionID,
			"schedule", trigger.Schedule)

		return
	}
}
