// Package calls implements the call-facing service layer: job enqueue, the
// webhook state reducer, and terminal side-effect fan-out.
package calls

import (
	"errors"
	"fmt"
)

// ErrUnknownEventType indicates a webhook carried an event kind outside the
// accepted set. Rejected, not retried.
var ErrUnknownEventType = errors.New("unknown webhook event type")

// ValidationError marks definitive payload rejections; the transport layer
// answers 4xx and the sender must not retry.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// IsValidationError checks whether an error is a definitive payload
// rejection.
func IsValidationError(err error) bool {
	var target *ValidationError

	return errors.As(err, &target) || errors.Is(err, ErrUnknownEventType)
}
