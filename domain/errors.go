package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of domain error
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates that the input provided is invalid
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeConfiguration indicates a missing or inconsistent configuration value
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeInvalidState indicates an invalid state transition
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeGitHubAPI indicates a GitHub API communication error
	ErrCodeGitHubAPI ErrorCode = "GITHUB_API_ERROR"

	// ErrCodeDecode indicates a response body that does not match the expected schema
	ErrCodeDecode ErrorCode = "DECODE_ERROR"

	// ErrCodeNoDataAvailable indicates a successful response without any usage record
	ErrCodeNoDataAvailable ErrorCode = "NO_DATA_AVAILABLE"

	// ErrCodeMetrics indicates a metric registry or remote write error
	ErrCodeMetrics ErrorCode = "METRICS_ERROR"

	// ErrCodeFileOperation indicates a file operation error
	ErrCodeFileOperation ErrorCode = "FILE_OPERATION_ERROR"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// NewDomainErrorWithCause creates a new domain error with an underlying cause
func NewDomainErrorWithCause(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// ErrInvalidInput creates an invalid input error
func ErrInvalidInput(field string, reason string) *DomainError {
	return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// ErrConfiguration creates a configuration error
func ErrConfiguration(field string, reason string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, fmt.Sprintf("configuration error in %s: %s", field, reason)).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// ErrInvalidState creates an invalid state error
func ErrInvalidState(entity string, currentState string, attemptedAction string) *DomainError {
	return NewDomainError(ErrCodeInvalidState,
		fmt.Sprintf("invalid state transition for %s: cannot %s in state %s", entity, attemptedAction, currentState)).
		WithDetails("entity", entity).
		WithDetails("currentState", currentState).
		WithDetails("attemptedAction", attemptedAction)
}

// IsErrorCode checks if an error, or any error it wraps, has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GitHub API errors

// ErrGitHubAPI creates an error for a non-success GitHub API response
func ErrGitHubAPI(operation string, statusCode int, response string) *DomainError {
	return NewDomainError(ErrCodeGitHubAPI, fmt.Sprintf("github API error in %s: status %d", operation, statusCode)).
		WithDetails("operation", operation).
		WithDetails("statusCode", statusCode).
		WithDetails("response", response)
}

// ErrGitHubAPIWithCause creates a GitHub API error for a transport-level failure
func ErrGitHubAPIWithCause(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGitHubAPI, fmt.Sprintf("github API error in %s", operation), err).
		WithDetails("operation", operation)
}

// ErrDecode creates an error for a body that could not be decoded
func ErrDecode(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeDecode, fmt.Sprintf("failed to decode %s", operation), err).
		WithDetails("operation", operation)
}

// ErrNoDataAvailable creates a no data available error
func ErrNoDataAvailable(source string, timeRange string) *DomainError {
	return NewDomainError(ErrCodeNoDataAvailable, fmt.Sprintf("no data available from %s for %s", source, timeRange)).
		WithDetails("source", source).
		WithDetails("timeRange", timeRange)
}

// Metrics errors

// ErrMetrics creates a metrics error
func ErrMetrics(operation string, reason string) *DomainError {
	return NewDomainError(ErrCodeMetrics, fmt.Sprintf("metrics error in %s: %s", operation, reason)).
		WithDetails("operation", operation).
		WithDetails("reason", reason)
}

// ErrMetricsWithCause creates a metrics error with cause
func ErrMetricsWithCause(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeMetrics, fmt.Sprintf("metrics error in %s", operation), err).
		WithDetails("operation", operation)
}

// File operation errors

// ErrFileOperationWithCause creates a file operation error with cause
func ErrFileOperationWithCause(operation string, path string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeFileOperation, fmt.Sprintf("file operation error in %s", operation), err).
		WithDetails("operation", operation).
		WithDetails("path", path)
}

// ErrFilePermission creates a file permission error
func ErrFilePermission(path string, requiredPermission string) *DomainError {
	return NewDomainError(ErrCodeFileOperation, fmt.Sprintf("insufficient permissions for file: %s", path)).
		WithDetails("path", path).
		WithDetails("requiredPermission", requiredPermission)
}
