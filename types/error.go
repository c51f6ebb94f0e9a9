package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies an error by kind rather than by Go type.
type ErrorCode string

const (
	// ErrNotFound marks a missing dependency id, task id or data key.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrInvalid marks a cycle, a malformed task/group or a config violation.
	ErrInvalid ErrorCode = "INVALID"
	// ErrConflict marks an unmet precondition such as a dirty working tree.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrFailed marks an external operation that did not complete.
	ErrFailed ErrorCode = "FAILED"
	// ErrUnexpected marks anything not otherwise classified.
	ErrUnexpected ErrorCode = "UNEXPECTED"
	// ErrInvalidOperation marks a call the target cannot honor, e.g. undo on a
	// task that has no undo function.
	ErrInvalidOperation ErrorCode = "INVALID_OPERATION"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	TaskID    string    `json:"task_id,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.TaskID != "" {
		prefix = fmt.Sprintf("[%s] task %s:", e.Code, e.TaskID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithTask records the id of the task the error belongs to.
func (e *Error) WithTask(taskID string) *Error {
	e.TaskID = taskID
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NotFound builds an ErrNotFound error.
func NotFound(format string, args ...any) *Error {
	return NewError(ErrNotFound, fmt.Sprintf(format, args...))
}

// Invalid builds an ErrInvalid error.
func Invalid(format string, args ...any) *Error {
	return NewError(ErrInvalid, fmt.Sprintf(format, args...))
}

// Conflict builds an ErrConflict error.
func Conflict(format string, args ...any) *Error {
	return NewError(ErrConflict, fmt.Sprintf(format, args...))
}

// Failed builds an ErrFailed error.
func Failed(format string, args ...any) *Error {
	return NewError(ErrFailed, fmt.Sprintf(format, args...))
}

// Unexpected builds an ErrUnexpected error.
func Unexpected(format string, args ...any) *Error {
	return NewError(ErrUnexpected, fmt.Sprintf(format, args...))
}

// InvalidOperation builds an ErrInvalidOperation error.
func InvalidOperation(format string, args ...any) *Error {
	return NewError(ErrInvalidOperation, fmt.Sprintf(format, args...))
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// Normalize folds any error into the taxonomy. Structured errors keep their
// code and gain the task id when they lack one; cancellation becomes
// ErrFailed; everything else is ErrUnexpected. Text added by fmt.Errorf
// wrappers around a structured error is kept in the message.
func Normalize(err error, taskID string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		wrapped := error(e) != err
		if !wrapped && (e.TaskID != "" || taskID == "") {
			return e
		}
		clone := *e
		if clone.TaskID == "" {
			clone.TaskID = taskID
		}
		if wrapped {
			clone.Message = wrappedMessage(err, e)
		}
		return &clone
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Failed("run interrupted").WithCause(err).WithTask(taskID)
	}

	return Unexpected("unclassified error").WithCause(err).WithTask(taskID)
}

// wrappedMessage replaces the rendering of inner within err's text by the
// inner message, so "write x: [FAILED] disk full" becomes "write x: disk full".
func wrappedMessage(err error, inner *Error) string {
	full, rendered := err.Error(), inner.Error()
	if !strings.Contains(full, rendered) {
		return full
	}
	return strings.Replace(full, rendered, inner.Message, 1)
}
