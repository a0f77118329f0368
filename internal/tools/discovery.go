package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/query"
)

// Tool names exposed to the agent.
const (
	ListCollectionsName    = "listCollections"
	SearchCollectionsName  = "searchCollections"
	FetchSamplesName       = "fetchSamples"
	InferStructureName     = "inferStructure"
	SearchAndAggregateName = "searchAndAggregate"
)

// ListCollectionsInput takes no arguments.
type ListCollectionsInput struct{}

// ListCollectionsOutput lists every collection the store reports.
type ListCollectionsOutput struct {
	Success     bool     `json:"success"`
	Collections []string `json:"collections"`
	Total       int      `json:"total"`
	Message     string   `json:"message"`
}

// ListCollectionsTool enumerates the collections in the log store.
type ListCollectionsTool struct {
	*BaseTool
}

// NewListCollectionsTool creates a new tool instance
func NewListCollectionsTool(svc *query.Service, logger *zap.Logger) *ListCollectionsTool {
	return &ListCollectionsTool{BaseTool: NewBaseTool(svc, logger)}
}

// Name returns the tool name
func (t *ListCollectionsTool) Name() string { return ListCollectionsName }

// Annotations returns tool hints for LLMs
func (t *ListCollectionsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("List Collections")
}

// Description returns the tool description
func (t *ListCollectionsTool) Description() string {
	return `List all available log collections. Use this when the user asks which logs exist or gives no hint about the source.

**Related tools:**
- searchCollections: narrow the list by a keyword
- fetchSamples: read events from a collection found here`
}

// InputSchema returns the input schema
func (t *ListCollectionsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute runs the tool
func (t *ListCollectionsTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	return t.execute(ctx, t, arguments)
}

func (t *ListCollectionsTool) invoke(ctx context.Context, _ map[string]interface{}) (interface{}, Output, error) {
	in := ListCollectionsInput{}
	out, err := t.Run(ctx, in)
	if err != nil {
		return in, nil, err
	}
	return in, out, nil
}

// Run lists the collections.
func (t *ListCollectionsTool) Run(ctx context.Context, _ ListCollectionsInput) (*ListCollectionsOutput, error) {
	names, err := t.svc.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	return &ListCollectionsOutput{
		Success:     true,
		Collections: names,
		Total:       len(names),
		Message:     fmt.Sprintf("Found %d total collections", len(names)),
	}, nil
}

// SearchCollectionsInput is the keyword to look for in collection names.
type SearchCollectionsInput struct {
	Pattern string `json:"pattern"`
}

// SearchCollectionsOutput lists the collections whose name matched.
type SearchCollectionsOutput struct {
	Success     bool     `json:"success"`
	Pattern     string   `json:"pattern"`
	Collections []string `json:"collections"`
	Total       int      `json:"total"`
	Message     string   `json:"message"`
}

// SearchCollectionsTool finds collections by case-insensitive substring.
type SearchCollectionsTool struct {
	*BaseTool
}

// NewSearchCollectionsTool creates a new tool instance
func NewSearchCollectionsTool(svc *query.Service, logger *zap.Logger) *SearchCollectionsTool {
	return &SearchCollectionsTool{BaseTool: NewBaseTool(svc, logger)}
}

// Name returns the tool name
func (t *SearchCollectionsTool) Name() string { return SearchCollectionsName }

// Annotations returns tool hints for LLMs
func (t *SearchCollectionsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Search Collections")
}

// Description returns the tool description
func (t *SearchCollectionsTool) Description() string {
	return `Search for log collections whose name contains a keyword (case-insensitive). Use this when the user mentions an application, service or environment, e.g. "api", "worker", "prod".

An empty pattern matches nothing; use listCollections to see everything.`
}

// InputSchema returns the input schema
func (t *SearchCollectionsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Keyword to search for in collection names",
				"examples":    []string{"api", "worker", "prod"},
			},
		},
		"required": []string{"pattern"},
	}
}

// Execute runs the tool
func (t *SearchCollectionsTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	return t.execute(ctx, t, arguments)
}

func (t *SearchCollectionsTool) invoke(ctx context.Context, arguments map[string]interface{}) (interface{}, Output, error) {
	pattern, err := GetStringParam(arguments, "pattern", true)
	if err != nil {
		return nil, nil, invalidArguments(t.Name(), err)
	}
	in := SearchCollectionsInput{Pattern: pattern}
	out, err := t.Run(ctx, in)
	if err != nil {
		return in, nil, err
	}
	return in, out, nil
}

// Run searches the collection names.
func (t *SearchCollectionsTool) Run(ctx context.Context, in SearchCollectionsInput) (*SearchCollectionsOutput, error) {
	names, err := t.svc.SearchCollections(ctx, in.Pattern)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Found %d collections matching %q", len(names), in.Pattern)
	if len(names) == 0 {
		msg = fmt.Sprintf("No collections found matching %q", in.Pattern)
	}
	return &SearchCollectionsOutput{
		Success:     true,
		Pattern:     in.Pattern,
		Collections: names,
		Total:       len(names),
		Message:     msg,
	}, nil
}
