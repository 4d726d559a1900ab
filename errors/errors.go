package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// AppError is the unified runtime error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// --- Constructors ---

// ModuleNotFound creates an AppError for a module name with no registration.
func ModuleNotFound(name string) *AppError {
	return &AppError{
		Code: ErrCodeModuleNotFound, Message: fmt.Sprintf("module %q is undefined", name),
		Details: map[string]any{"module": name},
	}
}

// ScriptFailed creates an AppError for a script entry point that returned an error.
func ScriptFailed(module string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeScriptFailed, Message: fmt.Sprintf("script %q failed", module),
		Details: map[string]any{"module": module}, Cause: cause,
	}
}

// ScriptPanic creates an AppError for a script entry point that panicked.
func ScriptPanic(module string, value any, stack string) *AppError {
	return &AppError{
		Code: ErrCodeScriptPanic, Message: fmt.Sprintf("script %q panicked: %v", module, value),
		Details: map[string]any{"module": module, "stack": stack},
	}
}

// DrainInterrupted creates an AppError for a drain aborted before the ledger emptied.
func DrainInterrupted(pending int, elapsed time.Duration, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDrainInterrupted, Message: fmt.Sprintf("drain interrupted with %d operation(s) outstanding", pending),
		Retryable: true, Cause: cause,
		Details: map[string]any{"pending": pending, "elapsed_ms": elapsed.Milliseconds()},
	}
}

// SourceFailed creates an AppError for a sequence source whose poll failed.
func SourceFailed(index int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSourceFailed, Message: fmt.Sprintf("source %d failed", index),
		Retryable: true, Cause: cause,
		Details: map[string]any{"source_index": index},
	}
}

// WriteFailed creates an AppError for a failed host write.
func WriteFailed(stream string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeWriteFailed, Message: fmt.Sprintf("write to %s failed", stream),
		Retryable: true, Cause: cause,
		Details: map[string]any{"stream": stream},
	}
}

// InvalidConfig creates an AppError for configuration validation failures.
func InvalidConfig(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: message,
	}
}

// Internal creates an AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected internal error occurred",
		Cause: cause,
	}
}
