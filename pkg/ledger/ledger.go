// Package ledger records the append-only progress log of one execution.
package ledger

import (
	"fmt"
	"sync"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/jonboulle/clockwork"
)

const (
	// maxDataKeys bounds how many output keys one entry retains.
	maxDataKeys = 16
	// maxValueLen bounds the rendered length of a retained value.
	maxValueLen = 256
)

// Ledger is the append-only event log of a single execution. Entries are
// immutable once written; Entries returns copies of the slice header so the
// log can never be rewritten through it.
type Ledger struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries []*models.LogEntry
}

func New(clock clockwork.Clock) *Ledger {
	return &Ledger{clock: clock}
}

// Load seeds the ledger from previously persisted entries.
func Load(clock clockwork.Clock, entries []*models.LogEntry) *Ledger {
	l := New(clock)
	l.entries = append(l.entries, entries...)

	return l
}

// Append records one transition for a node. Data is truncated before being
// stored; the original map is never retained.
func (l *Ledger) Append(nodeID, transition string, data map[string]any) *models.LogEntry {
	entry := &models.LogEntry{
		NodeID:     nodeID,
		Transition: transition,
		Timestamp:  l.clock.Now().UTC(),
		Data:       truncate(data),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)

	return entry
}

// Entries returns the recorded entries in append order.
func (l *Ledger) Entries() []*models.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.LogEntry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// Progress returns the completion percentage: distinct completed nodes over
// distinct nodes touched, in [0, 100].
func (l *Ledger) Progress() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	touched := make(map[string]struct{})
	completed := make(map[string]struct{})

	for _, entry := range l.entries {
		touched[entry.NodeID] = struct{}{}

		if entry.Transition == models.TransitionCompleted {
			completed[entry.NodeID] = struct{}{}
		}
	}

	if len(touched) == 0 {
		return 0
	}

	return float64(len(completed)) / float64(len(touched)) * 100
}

func truncate(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))

	for key, value := range data {
		if len(out) >= maxDataKeys {
			out["_truncated"] = true

			break
		}

		switch v := value.(type) {
		case string:
			if len(v) > maxValueLen {
				out[key] = v[:maxValueLen]
			} else {
				out[key] = v
			}
		case bool, int, int32, int64, float32, float64, nil:
			out[key] = v
		default:
			rendered := fmt.Sprintf("%v", v)
			if len(rendered) > maxValueLen {
				rendered = rendered[:maxValueLen]
			}

			out[key] = rendered
		}
	}

	return out
}
