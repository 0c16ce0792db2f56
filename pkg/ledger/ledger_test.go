package ledger

import (
	"strings"
	"testing"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AppendOrderAndImmutability(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(clock)

	l.Append("node-a", models.TransitionStarted, nil)
	clock.Advance(1)
	l.Append("node-a", models.TransitionCompleted, map[string]any{"sent": true})

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.TransitionStarted, entries[0].Transition)
	assert.Equal(t, models.TransitionCompleted, entries[1].Transition)
	assert.True(t, entries[1].Timestamp.After(entries[0].Timestamp))

	// Mutating the returned slice must not affect the ledger.
	entries[0] = nil
	assert.Equal(t, "node-a", l.Entries()[0].NodeID)
	assert.Equal(t, 2, l.Len())
}

func TestLedger_Progress(t *testing.T) {
	l := New(clockwork.NewFakeClock())

	assert.Equal(t, float64(0), l.Progress())

	l.Append("node-a", models.TransitionStarted, nil)
	l.Append("node-a", models.TransitionCompleted, nil)
	l.Append("node-b", models.TransitionStarted, nil)

	// One of two touched nodes completed.
	assert.InDelta(t, 50.0, l.Progress(), 0.01)

	l.Append("node-b", models.TransitionFailed, nil)
	assert.InDelta(t, 50.0, l.Progress(), 0.01)
}

func TestLedger_TruncatesData(t *testing.T) {
	l := New(clockwork.NewFakeClock())

	big := strings.Repeat("x", 1000)
	wide := map[string]any{"body": big}

	for i := 0; i < 40; i++ {
		wide[string(rune('a'+i))] = i
	}

	entry := l.Append("node-a", models.TransitionCompleted, wide)

	assert.LessOrEqual(t, len(entry.Data), maxDataKeys+1)

	if body, ok := entry.Data["body"].(string); ok {
		assert.Len(t, body, maxValueLen)
	}
}

func TestLedger_LoadSeedsExistingEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	seed := []*models.LogEntry{{NodeID: "node-a", Transition: models.TransitionCompleted}}

	l := Load(clock, seed)

	require.Equal(t, 1, l.Len())
	l.Append("node-b", models.TransitionStarted, nil)
	assert.Equal(t, 2, l.Len())
}
