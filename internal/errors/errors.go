// Package apperrors defines the structured error taxonomy shared by the
// query pipeline, the tool surface and the orchestrator.
package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCategory classifies the type of error
type ErrorCategory string

const (
	// ClientError indicates the error was caused by the caller (4xx)
	ClientError ErrorCategory = "CLIENT_ERROR"
	// ServerError indicates the error was caused by this service (5xx)
	ServerError ErrorCategory = "SERVER_ERROR"
	// ExternalError indicates the error was caused by an external dependency
	ExternalError ErrorCategory = "EXTERNAL_ERROR"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Client errors
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeMissingParameter  ErrorCode = "MISSING_PARAMETER"
	CodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Server errors
	CodeConfiguration   ErrorCode = "CONFIGURATION_ERROR"
	CodeStreamEncoding  ErrorCode = "STREAM_ENCODING_ERROR"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeTurnInterrupted ErrorCode = "TURN_INTERRUPTED"

	// External errors
	CodeQueryFailure ErrorCode = "QUERY_FAILURE"
	CodeAPIError     ErrorCode = "API_ERROR"
	CodeAuthFailed   ErrorCode = "AUTH_FAILED"
	CodeAgentFailure ErrorCode = "AGENT_FAILURE"
)

// StructuredError represents a detailed error with category, code, and recovery suggestion
type StructuredError struct {
	Code       ErrorCode     `json:"code"`
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Details    interface{}   `json:"details,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`

	cause error
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *StructuredError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a StructuredError with the same code.
// This lets callers match on sentinel values such as ErrNoSamples.
func (e *StructuredError) Is(target error) bool {
	var t *StructuredError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// ToJSON converts the error to JSON string
func (e *StructuredError) ToJSON() string {
	bytes, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"code":"%s","category":"%s","message":"%s"}`, e.Code, e.Category, e.Message)
	}
	return string(bytes)
}

// New creates a new structured error
func New(code ErrorCode, category ErrorCategory, message string) *StructuredError {
	return &StructuredError{
		Code:     code,
		Category: category,
		Message:  message,
	}
}

// WithDetails adds details to the error
func (e *StructuredError) WithDetails(details interface{}) *StructuredError {
	e.Details = details
	return e
}

// WithSuggestion adds a recovery suggestion to the error
func (e *StructuredError) WithSuggestion(suggestion string) *StructuredError {
	e.Suggestion = suggestion
	return e
}

// WithCause attaches the underlying error
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.cause = cause
	return e
}

// CodeOf returns the code of the first StructuredError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Common error constructors

// NewInvalidInput creates an invalid input error
func NewInvalidInput(message string) *StructuredError {
	return New(CodeInvalidInput, ClientError, message).
		WithSuggestion("Check the input parameters and try again")
}

// NewMissingParameter creates a missing parameter error
func NewMissingParameter(param string) *StructuredError {
	return New(CodeMissingParameter, ClientError, fmt.Sprintf("Required parameter '%s' is missing", param)).
		WithSuggestion(fmt.Sprintf("Provide the '%s' parameter", param))
}

// NewConfiguration creates an error for a missing or invalid setting.
func NewConfiguration(message string) *StructuredError {
	return New(CodeConfiguration, ServerError, message).
		WithSuggestion("Set the missing environment variable or pass the value explicitly")
}

// NewQueryFailure wraps a log store failure with the collection it concerned.
func NewQueryFailure(collection string, cause error) *StructuredError {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return New(CodeQueryFailure, ExternalError, fmt.Sprintf("failed to query collection %q: %s", collection, msg)).
		WithDetails(map[string]interface{}{"collection": collection}).
		WithSuggestion("Verify the collection exists and the store credentials are valid").
		WithCause(cause)
}

// NewStreamEncoding creates an error for an event that could not be serialized.
func NewStreamEncoding(cause error) *StructuredError {
	return New(CodeStreamEncoding, ServerError, fmt.Sprintf("failed to encode stream event: %v", cause)).
		WithCause(cause)
}

// NewAgentFailure wraps an error returned by the agent runtime.
func NewAgentFailure(cause error) *StructuredError {
	return New(CodeAgentFailure, ExternalError, fmt.Sprintf("agent run failed: %v", cause)).
		WithSuggestion("Check the LLM endpoint and credentials").
		WithCause(cause)
}

// NewUnauthorized creates an unauthorized error
func NewUnauthorized() *StructuredError {
	return New(CodeUnauthorized, ClientError, "Authentication required or credentials invalid").
		WithSuggestion("Check your API key and try again")
}

// NewRateLimitExceeded creates a rate limit exceeded error
func NewRateLimitExceeded() *StructuredError {
	return New(CodeRateLimitExceeded, ClientError, "Rate limit exceeded").
		WithSuggestion("Wait a moment and try again")
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *StructuredError {
	return New(CodeInternalError, ServerError, message).
		WithSuggestion("Try again later or contact support if the issue persists")
}

// NewTimeout creates a timeout error
func NewTimeout(operation string) *StructuredError {
	return New(CodeTimeout, ServerError, fmt.Sprintf("Operation '%s' timed out", operation)).
		WithSuggestion("Try again or adjust timeout settings")
}

// NewAPIError creates an external API error
func NewAPIError(service string, statusCode int, message string) *StructuredError {
	return New(CodeAPIError, ExternalError, fmt.Sprintf("%s API error (HTTP %d): %s", service, statusCode, message)).
		WithDetails(map[string]interface{}{
			"service":     service,
			"status_code": statusCode,
		}).
		WithSuggestion("Check the log store service status")
}

// NewAuthFailed creates an authentication failed error
func NewAuthFailed(message string) *StructuredError {
	return New(CodeAuthFailed, ExternalError, message).
		WithSuggestion("Check your store API key and permissions")
}

// FromHTTPStatus creates an appropriate error from HTTP status code
func FromHTTPStatus(statusCode int, responseBody string) *StructuredError {
	switch {
	case statusCode == 400:
		return NewInvalidInput(responseBody)
	case statusCode == 401:
		return NewUnauthorized()
	case statusCode == 403:
		return New(CodeForbidden, ClientError, "Access forbidden").
			WithSuggestion("Check your permissions for this collection")
	case statusCode == 404:
		return New(CodeResourceNotFound, ClientError, "Resource not found").
			WithSuggestion("List collections to see which ones exist")
	case statusCode == 429:
		return NewRateLimitExceeded()
	case statusCode >= 500 && statusCode < 600:
		return NewAPIError("Log store", statusCode, responseBody)
	default:
		return New(CodeInternalError, ServerError, fmt.Sprintf("Unexpected HTTP status %d: %s", statusCode, responseBody))
	}
}
