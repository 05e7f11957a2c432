package rbridge

import "errors"

// Domain errors for R session operations.
var (
	// ErrEval indicates the R interpreter reported a script evaluation error.
	ErrEval = errors.New("rbridge: R evaluation failed")

	// ErrSessionClosed indicates a call against a closed or dead session.
	ErrSessionClosed = errors.New("rbridge: session closed")

	// ErrBadPayload indicates a fetched result was not a valid raw vector.
	ErrBadPayload = errors.New("rbridge: result is not a raw vector")

	// ErrStartup indicates the R process could not be started.
	ErrStartup = errors.New("rbridge: failed to start R process")
)

// EvalError carries the R interpreter's own error message, unmodified.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return "rbridge: R error: " + e.Message
}

func (e *EvalError) Unwrap() error {
	return ErrEval
}
