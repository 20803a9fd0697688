package domain

import "fmt"

// ErrorKind is the discriminant tag every classified pipeline failure carries.
type ErrorKind string

const (
	ErrorKindFatal     ErrorKind = "fatal"
	ErrorKindContent   ErrorKind = "content"
	ErrorKindParse     ErrorKind = "parse"
	ErrorKindRetryable ErrorKind = "retryable"
)

// PipelineError is a classified domain failure. Kind drives the error router;
// Reason is a machine-readable code surfaced in logs.
type PipelineError struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewFatalError marks an unrecoverable failure (store unreachable, auth rejected).
func NewFatalError(reason, message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindFatal, Reason: reason, Message: message, Err: err}
}

// NewContentError marks fetched material as unusable.
func NewContentError(reason, message string) *PipelineError {
	return &PipelineError{Kind: ErrorKindContent, Reason: reason, Message: message}
}

// NewParseError marks a structured response that could not be decoded.
func NewParseError(reason, message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindParse, Reason: reason, Message: message, Err: err}
}

// NewRetryableError marks a transient failure reported after the caller's own
// retry budget is exhausted.
func NewRetryableError(reason, message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindRetryable, Reason: reason, Message: message, Err: err}
}
