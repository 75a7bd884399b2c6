package domain

import (
	"errors"
	"fmt"
)

// ErrWriteNotSupported is returned by the order executor for exchange
// write paths that are not implemented. It maps the owning decision to
// FAILED and is never retried.
var ErrWriteNotSupported = errors.New("exchange write path not supported")

// ErrCannotSize is returned by the position sizer when no stop-loss is
// given or the stop distance is zero.
var ErrCannotSize = errors.New("cannot size position without a stop distance")

// APIError wraps a transient exchange or agent failure. Callers catch it
// per symbol/per call, log it, and convert it into a rejected HOLD
// decision or a skipped monitoring pass.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error during %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError wraps err as a transient API failure for the given operation
func NewAPIError(op string, err error) *APIError {
	return &APIError{Op: op, Err: err}
}

// ConfigError reports missing credentials or an unsupported provider.
// Fatal for the component that raises it; never retried.
type ConfigError struct {
	Component string
	Detail    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Detail)
}
