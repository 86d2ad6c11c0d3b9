package pipeline

import "errors"

var (
	// ErrOperatorFailed wraps a panic or error raised by a user-supplied
	// condition, selector, transform, or middleware function.
	ErrOperatorFailed = errors.New("pipeline: operator execution failed")
)
