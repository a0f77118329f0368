// Package tools provides the agent-callable operations over the log store:
// collection discovery, sampling, structure inference and search with
// aggregation.
package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool defines the interface that all tools must implement.
// This provides a standard contract for tool registration and execution.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// InputSchema returns the JSON Schema for the tool's input parameters
	InputSchema() interface{}

	// Execute runs the tool with the given arguments and returns the result
	Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error)

	// Annotations returns optional hints about tool behavior for LLMs.
	Annotations() *mcp.ToolAnnotations

	// DefaultTimeout returns the recommended timeout for this tool type.
	// Returns 0 to use the client/server default timeout.
	DefaultTimeout() time.Duration
}

// typedTool is implemented by every tool in this package. invoke decodes
// the arguments into the tool's input type and runs it, returning both the
// typed input and the typed output.
type typedTool interface {
	Tool
	invoke(ctx context.Context, arguments map[string]interface{}) (input interface{}, output Output, err error)
}

// Output is the result of one tool run. The concrete type identifies the
// tool that produced it: ListCollectionsOutput, SearchCollectionsOutput,
// FetchSamplesOutput, InferStructureOutput, SearchAndAggregateOutput, or
// Failure when the tool could not complete.
type Output interface {
	toolOutput()
}

func (*ListCollectionsOutput) toolOutput()    {}
func (*SearchCollectionsOutput) toolOutput()  {}
func (*FetchSamplesOutput) toolOutput()       {}
func (*InferStructureOutput) toolOutput()     {}
func (*SearchAndAggregateOutput) toolOutput() {}
func (*Failure) toolOutput()                  {}
