package model

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports a malformed value rejected synchronously at
// submission. It never enters the engine's state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports an operation attempted while a request is locked for
// evaluation or no longer OPEN. The operation is rejected with no state
// change.
type ConflictError struct {
	RequestID string
	Reason    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s: %s", e.RequestID, e.Reason)
}

// ConfigurationError reports an invalid configuration value. Configuration
// loading fails fast; the engine never silently substitutes defaults for
// invalid values.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// TimeoutError reports an evaluation that exceeded its wall-clock budget.
// The attempt is aborted and the request marked for a single safe retry.
type TimeoutError struct {
	RequestID string
	Budget    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s: evaluation exceeded %s budget", e.RequestID, e.Budget)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
