// Package dispatcher routes external events to the workflows whose triggers
// subscribe to them.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ferrant/orchid/pkg/condition"
	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/persistence"
)

const dispatchRetries = 3

// Starter spawns workflow executions. The engine satisfies it.
type Starter interface {
	Execute(ctx context.Context, workflowID string, triggerData map[string]any) (string, error)
}

// Dispatcher matches incoming events against registered event and webhook
// triggers and starts the matching workflows. Dispatch never blocks on
// execution completion; each spawn happens at least once, retried briefly on
// transient starter errors.
type Dispatcher struct {
	logger    *slog.Logger
	starter   Starter
	evaluator *condition.Evaluator

	mu       sync.RWMutex
	triggers map[string][]*models.Trigger

	wg sync.WaitGroup
}

func New(logger *slog.Logger, starter Starter) *Dispatcher {
	return &Dispatcher{
		logger:    logger.With("module", "dispatcher"),
		starter:   starter,
		evaluator: condition.NewEvaluator(logger),
		triggers:  make(map[string][]*models.Trigger),
	}
}

// Register subscribes a workflow's trigger to future events. Schedule
// triggers belong to the scheduler and are ignored here.
func (d *Dispatcher) Register(workflowID string, trigger *models.Trigger) {
	if trigger.Type == models.TriggerTypeSchedule {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.triggers[workflowID] = append(d.triggers[workflowID], trigger)
}

// Sync replaces all registrations with the event triggers of the workflows
// currently active in storage. Callers re-sync before dispatching so
// workflows activated after boot still receive events.
func (d *Dispatcher) Sync(ctx context.Context, store persistence.Persistence) error {
	workflows, err := store.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	d.mu.Lock()
	d.triggers = make(map[string][]*models.Trigger)
	d.mu.Unlock()

	for _, wf := range workflows {
		if wf.Status != models.WorkflowStatusActive {
			continue
		}

		for _, trigger := range wf.Triggers {
			d.Register(wf.ID, trigger)
		}
	}

	return nil
}

// Deregister drops all of a workflow's trigger subscriptions.
func (d *Dispatcher) Deregister(workflowID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.triggers, workflowID)
}

// Dispatch fans an event out to every satisfied trigger and returns the
// number of executions it fired. Each matching trigger spawns its own
// execution, with no per-workflow deduplication. Filter matching is
// fail-closed: a filter on a field the payload lacks does not match.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload map[string]any) int {
	type match struct {
		workflowID string
		trigger    *models.Trigger
	}

	d.mu.RLock()

	var matched []match

	for workflowID, triggers := range d.triggers {
		for _, trigger := range triggers {
			if trigger.EventType != eventType {
				continue
			}

			if !d.evaluator.MatchFilter(trigger.Filter, payload) {
				continue
			}

			matched = append(matched, match{workflowID: workflowID, trigger: trigger})
		}
	}

	d.mu.RUnlock()

	for _, m := range matched {
		d.wg.Add(1)

		go d.fire(ctx, m.workflowID, m.trigger, payload)
	}

	if len(matched) > 0 {
		d.logger.Info("Event dispatched",
			"event_type", eventType,
			"executions", len(matched))
	}

	return len(matched)
}

// fire starts one execution, retrying briefly so a transient storage error
// does not lose the event.
func (d *Dispatcher) fire(ctx context.Context, workflowID string, trigger *models.Trigger, payload map[string]any) {
	defer d.wg.Done()

	triggerData := make(map[string]any, len(payload)+2)
	for key, value := range payload {
		triggerData[key] = value
	}

	triggerData["trigger_id"] = trigger.ID
	triggerData["event_type"] = trigger.EventType

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond

	operation := func() error {
		_, err := d.starter.Execute(ctx, workflowID, triggerData)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, dispatchRetries), ctx))
	if err != nil {
		d.logger.Error("Failed to start execution for event",
			"workflow_id", workflowID,
			"trigger_id", trigger.ID,
			"error", err)
	}
}

// Wait blocks until all in-flight dispatches have been handed to the
// starter. Shutdown helper.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
