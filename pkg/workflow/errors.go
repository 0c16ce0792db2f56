package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWorkflowNotActive is returned when an execution is requested for a
	// workflow that is not in the active state.
	ErrWorkflowNotActive = errors.New("workflow is not active")

	// ErrExecutionTerminal is returned when an operation targets an
	// execution that already reached a terminal state.
	ErrExecutionTerminal = errors.New("execution is already in a terminal state")

	// ErrLoopLimitExceeded fails an execution whose loop ran past its
	// configured maximum iterations.
	ErrLoopLimitExceeded = errors.New("loop limit exceeded")
)

// ValidationError reports every structural defect found during activation.
// A workflow that activated without one is guaranteed structurally valid.
type ValidationError struct {
	WorkflowID string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s is invalid: %s", e.WorkflowID, strings.Join(e.Problems, "; "))
}

// IsValidationError checks whether err is an activation validation failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}
