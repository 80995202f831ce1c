// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow run was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrStoreUnavailable indicates the backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError wraps persistence errors with operation context.
type StoreError struct {
	Op         string // Operation being performed (e.g., "SaveWorkflow", "AppendMetric")
	WorkflowID string // Workflow ID if applicable
	Err        error
}

func (e *StoreError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, workflowID string, err error) *StoreError {
	return &StoreError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsStoreUnavailable checks if an error indicates the store is unreachable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
