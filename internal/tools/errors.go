package tools

import (
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
)

// Failure is the output of a tool that could not complete. It is returned
// to the agent as a result rather than an error so that the agent can react.
type Failure struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Code       apperrors.ErrorCode `json:"code,omitempty"`
	Suggestion string              `json:"suggestion,omitempty"`
}

// NewFailure builds the Failure output for err. Structured errors keep their
// code and suggestion; anything else is reported as an internal error.
func NewFailure(err error) *Failure {
	var se *apperrors.StructuredError
	if errors.As(err, &se) {
		return &Failure{Message: se.Message, Code: se.Code, Suggestion: se.Suggestion}
	}
	return &Failure{Message: err.Error(), Code: apperrors.CodeInternalError}
}

// invalidArguments wraps an argument decoding error as INVALID_INPUT.
func invalidArguments(tool string, err error) error {
	return apperrors.NewInvalidInput(fmt.Sprintf("%s: %v", tool, err)).WithCause(err)
}

// NewToolResultError creates a new tool result with an error message
func NewToolResultError(message string) *mcp.CallToolResult {
	if message == "" {
		message = "An unknown error occurred"
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: message,
			},
		},
		IsError: true,
	}
}

// NewToolResultErrorWithSuggestion creates a tool result with an error and recovery guidance
func NewToolResultErrorWithSuggestion(message, suggestion string) *mcp.CallToolResult {
	fullMessage := fmt.Sprintf("%s\n\n💡 **Suggestion:** %s", message, suggestion)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fullMessage,
			},
		},
		IsError: true,
	}
}

// FailureResult renders a Failure as an error tool result.
func FailureResult(f *Failure) *mcp.CallToolResult {
	if f.Suggestion == "" {
		return NewToolResultError(f.Message)
	}
	return NewToolResultErrorWithSuggestion(f.Message, f.Suggestion)
}
