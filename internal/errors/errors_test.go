package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError(t *testing.T) {
	tests := []struct {
		name     string
		error    *StructuredError
		wantCode ErrorCode
		wantCat  ErrorCategory
	}{
		{
			name:     "invalid input error",
			error:    NewInvalidInput("test message"),
			wantCode: CodeInvalidInput,
			wantCat:  ClientError,
		},
		{
			name:     "missing parameter error",
			error:    NewMissingParameter("collectionName"),
			wantCode: CodeMissingParameter,
			wantCat:  ClientError,
		},
		{
			name:     "configuration error",
			error:    NewConfiguration("DEFAULT_COLLECTION is not set"),
			wantCode: CodeConfiguration,
			wantCat:  ServerError,
		},
		{
			name:     "query failure",
			error:    NewQueryFailure("app-logs", errors.New("connection reset")),
			wantCode: CodeQueryFailure,
			wantCat:  ExternalError,
		},
		{
			name:     "stream encoding error",
			error:    NewStreamEncoding(errors.New("unsupported value")),
			wantCode: CodeStreamEncoding,
			wantCat:  ServerError,
		},
		{
			name:     "agent failure",
			error:    NewAgentFailure(errors.New("503")),
			wantCode: CodeAgentFailure,
			wantCat:  ExternalError,
		},
		{
			name:     "timeout error",
			error:    NewTimeout("query"),
			wantCode: CodeTimeout,
			wantCat:  ServerError,
		},
		{
			name:     "API error",
			error:    NewAPIError("Log store", 500, "internal error"),
			wantCode: CodeAPIError,
			wantCat:  ExternalError,
		},
		{
			name:     "auth failed error",
			error:    NewAuthFailed("invalid credentials"),
			wantCode: CodeAuthFailed,
			wantCat:  ExternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.error.Code)
			assert.Equal(t, tt.wantCat, tt.error.Category)
			assert.NotEmpty(t, tt.error.Message)
		})
	}
}

func TestQueryFailureKeepsCause(t *testing.T) {
	cause := errors.New("AccessDenied: token expired")
	err := fmt.Errorf("fallback: %w", NewQueryFailure("payments", cause))

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsCode(err, CodeQueryFailure))
	assert.Contains(t, err.Error(), "AccessDenied: token expired")
	assert.Contains(t, err.Error(), `"payments"`)
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeInvalidInput, ClientError, "no samples provided")

	err := fmt.Errorf("inferStructure: %w", New(CodeInvalidInput, ClientError, "no samples provided"))
	assert.True(t, errors.Is(err, sentinel))

	other := New(CodeInvalidInput, ClientError, "pattern too long")
	assert.False(t, errors.Is(other, sentinel))

	assert.False(t, errors.Is(NewTimeout("x"), sentinel))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, CodeConfiguration, CodeOf(fmt.Errorf("wrap: %w", NewConfiguration("x"))))
}

func TestStructuredErrorWithDetails(t *testing.T) {
	err := NewInvalidInput("test").WithDetails(map[string]interface{}{
		"field": "pattern",
		"value": "",
	})

	details, ok := err.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pattern", details["field"])
}

func TestStructuredErrorToJSON(t *testing.T) {
	err := NewInvalidInput("test message")
	out := err.ToJSON()

	assert.Contains(t, out, string(CodeInvalidInput))
	assert.Contains(t, out, string(ClientError))
	assert.Contains(t, out, "test message")
	assert.NotContains(t, out, "cause")
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantCode   ErrorCode
		wantCat    ErrorCategory
	}{
		{"400 bad request", 400, CodeInvalidInput, ClientError},
		{"401 unauthorized", 401, CodeUnauthorized, ClientError},
		{"403 forbidden", 403, CodeForbidden, ClientError},
		{"404 not found", 404, CodeResourceNotFound, ClientError},
		{"429 rate limit", 429, CodeRateLimitExceeded, ClientError},
		{"500 internal error", 500, CodeAPIError, ExternalError},
		{"503 service unavailable", 503, CodeAPIError, ExternalError},
		{"302 unexpected", 302, CodeInternalError, ServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromHTTPStatus(tt.statusCode, "body")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantCat, err.Category)
			assert.NotEmpty(t, err.Message)
		})
	}
}
