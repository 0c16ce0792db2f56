package models

// Operator is a comparison operator usable in edge predicates, node
// preconditions and trigger filters. The set is closed on purpose: predicates
// are data, never code.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
)

// KnownOperator reports whether op is part of the supported operator set.
func KnownOperator(op Operator) bool {
	switch op {
	case OperatorEquals, OperatorGreaterThan, OperatorLessThan, OperatorContains:
		return true
	default:
		return false
	}
}

// Condition is a single (field, operator, literal) predicate evaluated
// against the flat execution context.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// FilterRule is one field constraint inside a trigger match filter.
type FilterRule struct {
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}
