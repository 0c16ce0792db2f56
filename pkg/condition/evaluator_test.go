package condition

import (
	"log/slog"
	"os"
	"testing"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/stretchr/testify/assert"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestEvaluator_Equals(t *testing.T) {
	evaluator := newTestEvaluator()

	tests := []struct {
		name     string
		value    any
		actual   any
		expected bool
	}{
		{"string match", "created", "created", true},
		{"string mismatch", "created", "deleted", false},
		{"numeric match across types", 42, float64(42), true},
		{"bool match", true, true, true},
		{"numeric mismatch", 42, 43.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluator.Evaluate(models.Condition{
				Field:    "status",
				Operator: models.OperatorEquals,
				Value:    tt.value,
			}, map[string]any{"status": tt.actual})

			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEvaluator_NumericComparison(t *testing.T) {
	evaluator := newTestEvaluator()

	cond := models.Condition{Field: "score", Operator: models.OperatorGreaterThan, Value: 50}

	assert.True(t, evaluator.Evaluate(cond, map[string]any{"score": 80}))
	assert.False(t, evaluator.Evaluate(cond, map[string]any{"score": 30}))
	assert.False(t, evaluator.Evaluate(cond, map[string]any{"score": 50}))

	less := models.Condition{Field: "score", Operator: models.OperatorLessThan, Value: 50}
	assert.True(t, evaluator.Evaluate(less, map[string]any{"score": 30}))
	assert.False(t, evaluator.Evaluate(less, map[string]any{"score": 80}))

	// json decoding yields float64, handlers may write int
	assert.True(t, evaluator.Evaluate(cond, map[string]any{"score": float64(80)}))
}

func TestEvaluator_Contains(t *testing.T) {
	evaluator := newTestEvaluator()

	cond := models.Condition{Field: "tags", Operator: models.OperatorContains, Value: "urgent"}

	assert.True(t, evaluator.Evaluate(cond, map[string]any{"tags": "urgent-review"}))
	assert.True(t, evaluator.Evaluate(cond, map[string]any{"tags": []any{"urgent", "low"}}))
	assert.True(t, evaluator.Evaluate(cond, map[string]any{"tags": []string{"urgent"}}))
	assert.False(t, evaluator.Evaluate(cond, map[string]any{"tags": "routine"}))
	assert.False(t, evaluator.Evaluate(cond, map[string]any{"tags": 12}))
}

func TestEvaluator_FailsClosed(t *testing.T) {
	evaluator := newTestEvaluator()

	// Missing field is false, not an error.
	missing := models.Condition{Field: "absent", Operator: models.OperatorEquals, Value: 1}
	assert.False(t, evaluator.Evaluate(missing, map[string]any{"present": 1}))

	// Unknown operator is false, not an error.
	unknown := models.Condition{Field: "present", Operator: "matches_regex", Value: ".*"}
	assert.False(t, evaluator.Evaluate(unknown, map[string]any{"present": "x"}))

	// Non-numeric operands for numeric comparison are false.
	notNumeric := models.Condition{Field: "present", Operator: models.OperatorGreaterThan, Value: 10}
	assert.False(t, evaluator.Evaluate(notNumeric, map[string]any{"present": "not-a-number"}))
}

func TestEvaluator_MatchFilter(t *testing.T) {
	evaluator := newTestEvaluator()

	filter := map[string]models.FilterRule{
		"status": {Operator: models.OperatorEquals, Value: "created"},
		"amount": {Operator: models.OperatorGreaterThan, Value: 10},
	}

	assert.True(t, evaluator.MatchFilter(filter, map[string]any{"status": "created", "amount": 25}))
	assert.False(t, evaluator.MatchFilter(filter, map[string]any{"status": "deleted", "amount": 25}))
	assert.False(t, evaluator.MatchFilter(filter, map[string]any{"status": "created"}))
	assert.True(t, evaluator.MatchFilter(nil, map[string]any{"anything": true}))
}
