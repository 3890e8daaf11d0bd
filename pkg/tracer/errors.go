package tracer

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the tracer matches exactly one of
// these under errors.Is.
var (
	// ErrInvalidInput is returned for missing or empty volumes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidParameters is returned for out-of-bounds endpoints and
	// out-of-range configuration values.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrNoPathFound is returned when the endpoints are disconnected under
	// the cost metric or the search cap is exhausted.
	ErrNoPathFound = errors.New("no path found")

	// ErrInternal is returned for unexpected numerical failures such as NaN
	// propagation.
	ErrInternal = errors.New("internal error")

	// ErrCanceled is returned when the caller's context ends mid-trace.
	ErrCanceled = errors.New("trace canceled")
)

// Error describes a failed tracer operation.
type Error struct {
	// Kind is one of the Err* sentinels above
	Kind error

	// Op names the stage that failed, e.g. "cost map" or "path search"
	Op string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidParameter(format string, args ...any) *Error {
	return newError(ErrInvalidParameters, "validate", fmt.Errorf(format, args...))
}
