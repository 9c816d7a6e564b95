// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrCallNotFound indicates a call record was not found by the given
	// identifier or provider correlation id.
	ErrCallNotFound = errors.New("call not found")

	// ErrCallAlreadyExists indicates a call record with the same identifier
	// already exists.
	ErrCallAlreadyExists = errors.New("call already exists")

	// ErrStatusConflict indicates a conditional status update found the
	// record in a state outside the expected set.
	ErrStatusConflict = errors.New("call status conflict")

	// ErrCallbackNotFound indicates a scheduled callback was not found.
	ErrCallbackNotFound = errors.New("scheduled callback not found")

	// ErrWorkflowNotFound indicates a workflow was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates a workflow execution was not found.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrStoreUnavailable indicates the backing store could not be reached;
	// callers defer to transport retry or skip the current tick.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// CallError wraps call-record errors with operation context.
type CallError struct {
	Op     string // Operation being performed (e.g. "Create", "UpdateStatus")
	CallID string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s operation failed for call %s: %v", e.Op, e.CallID, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func (e *CallError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCallError creates a new call error with context.
func NewCallError(op, callID string, err error) *CallError {
	return &CallError{Op: op, CallID: callID, Err: err}
}

// CallbackError wraps scheduled-callback errors with operation context.
type CallbackError struct {
	Op         string
	CallbackID string
	Err        error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s operation failed for callback %s: %v", e.Op, e.CallbackID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func (e *CallbackError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsCallNotFound checks if an error indicates a call was not found.
func IsCallNotFound(err error) bool {
	return errors.Is(err, ErrCallNotFound)
}

// IsStatusConflict checks if an error indicates a failed conditional status
// update.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}

// IsCallbackNotFound checks if an error indicates a callback was not found.
func IsCallbackNotFound(err error) bool {
	return errors.Is(err, ErrCallbackNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsStoreUnavailable checks if an error indicates the backing store is
// unreachable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
