// Package errors provides the structured error type shared by the runtime.
// Errors carry a machine-readable code, a human-readable message, optional
// details and an underlying cause, and can be matched by code with Is.
package errors
