// Package condition evaluates the closed predicate grammar over execution
// context data. Predicates are (field, operator, literal) triples; no
// externally supplied code is ever compiled or executed.
package condition

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ferrant/orchid/pkg/models"
)

type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With("module", "condition_evaluator"),
	}
}

// Evaluate resolves a single predicate against the given data. A missing
// field or unsupported operator evaluates to false and logs a warning: the
// grammar fails closed instead of erroring.
func (e *Evaluator) Evaluate(cond models.Condition, data map[string]any) bool {
	actual, exists := data[cond.Field]
	if !exists {
		e.logger.Warn("Condition field missing from context, failing closed",
			"field", cond.Field,
			"operator", cond.Operator)

		return false
	}

	switch cond.Operator {
	case models.OperatorEquals:
		return equals(actual, cond.Value)
	case models.OperatorGreaterThan:
		return compareNumeric(e, cond, actual, func(a, b float64) bool { return a > b })
	case models.OperatorLessThan:
		return compareNumeric(e, cond, actual, func(a, b float64) bool { return a < b })
	case models.OperatorContains:
		return contains(actual, cond.Value)
	default:
		e.logger.Warn("Unsupported condition operator, failing closed",
			"field", cond.Field,
			"operator", cond.Operator)

		return false
	}
}

// MatchFilter checks a trigger match filter against an event payload. Every
// rule must hold; any missing field or unknown operator makes the whole
// filter non-matching.
func (e *Evaluator) MatchFilter(filter map[string]models.FilterRule, payload map[string]any) bool {
	for field, rule := range filter {
		cond := models.Condition{Field: field, Operator: rule.Operator, Value: rule.Value}
		if !e.Evaluate(cond, payload) {
			return false
		}
	}

	return true
}

func compareNumeric(e *Evaluator, cond models.Condition, actual any, cmp func(a, b float64) bool) bool {
	left, leftOK := toFloat(actual)
	right, rightOK := toFloat(cond.Value)

	if !leftOK || !rightOK {
		e.logger.Warn("Condition operands are not numeric, failing closed",
			"field", cond.Field,
			"operator", cond.Operator)

		return false
	}

	return cmp(left, right)
}

func equals(actual, expected any) bool {
	if actual == expected {
		return true
	}

	// Numeric values may arrive as different concrete types depending on the
	// decoder (json yields float64, handlers may return int).
	if left, ok := toFloat(actual); ok {
		if right, ok := toFloat(expected); ok {
			return left == right
		}
	}

	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func contains(actual, expected any) bool {
	switch haystack := actual.(type) {
	case string:
		return strings.Contains(haystack, fmt.Sprintf("%v", expected))
	case []any:
		for _, item := range haystack {
			if equals(item, expected) {
				return true
			}
		}

		return false
	case []string:
		needle := fmt.Sprintf("%v", expected)
		for _, item := range haystack {
			if item == needle {
				return true
			}
		}

		return false
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}
