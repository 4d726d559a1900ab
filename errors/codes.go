package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Script loading and execution errors
const (
	// ErrCodeModuleNotFound indicates no module is registered under the requested name.
	ErrCodeModuleNotFound ErrorCode = "MODULE_NOT_FOUND"
	// ErrCodeScriptFailed indicates the script entry point returned an error.
	ErrCodeScriptFailed ErrorCode = "SCRIPT_FAILED"
	// ErrCodeScriptPanic indicates the script entry point panicked.
	ErrCodeScriptPanic ErrorCode = "SCRIPT_PANIC"
)

// Runtime errors
const (
	// ErrCodeDrainInterrupted indicates a ledger drain was aborted by its context.
	ErrCodeDrainInterrupted ErrorCode = "DRAIN_INTERRUPTED"
	// ErrCodeSourceFailed indicates a sequence source failed while being polled.
	ErrCodeSourceFailed ErrorCode = "SOURCE_FAILED"
	// ErrCodeWriteFailed indicates a host writer failed to write output.
	ErrCodeWriteFailed ErrorCode = "WRITE_FAILED"
)

// Configuration and internal errors
const (
	// ErrCodeInvalidConfig indicates the runtime configuration is invalid.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeDrainInterrupted: true,
	ErrCodeWriteFailed:      true,
	ErrCodeSourceFailed:     true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
