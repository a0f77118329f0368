package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/query"
)

// BaseTool provides common functionality for all tools
type BaseTool struct {
	svc    *query.Service
	logger *zap.Logger
}

// NewBaseTool creates a new base tool
func NewBaseTool(svc *query.Service, logger *zap.Logger) *BaseTool {
	return &BaseTool{
		svc:    svc,
		logger: logger,
	}
}

// FormatResponse formats a tool output as indented JSON text content
func (t *BaseTool) FormatResponse(result interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format response: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
	}, nil
}

// DefaultTimeout returns 0 so the transport timeout applies.
func (t *BaseTool) DefaultTimeout() time.Duration { return 0 }

// execute runs a typed tool for an untyped caller. Tool failures become
// error results; only formatting problems are returned as errors.
func (t *BaseTool) execute(ctx context.Context, tool typedTool, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	_, out, err := tool.invoke(ctx, arguments)
	if err != nil {
		t.logger.Debug("Tool failed",
			zap.String("tool", tool.Name()),
			zap.Error(err),
		)
		return FailureResult(NewFailure(err)), nil
	}
	if f, ok := out.(*Failure); ok {
		return FailureResult(f), nil
	}
	return t.FormatResponse(out)
}
