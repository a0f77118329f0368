package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/schema"
)

// InferStructureInput carries the sample objects to analyze.
type InferStructureInput struct {
	Samples []interface{} `json:"samples"`
}

// InferStructureOutput lists every field path found in the samples.
type InferStructureOutput struct {
	Success     bool                     `json:"success"`
	Schema      []schema.FieldDescriptor `json:"schema"`
	TotalFields int                      `json:"totalFields"`
	Message     string                   `json:"message"`
}

// InferStructureTool derives a field schema from sample log entries.
type InferStructureTool struct {
	*BaseTool
}

// NewInferStructureTool creates a new tool instance
func NewInferStructureTool(svc *query.Service, logger *zap.Logger) *InferStructureTool {
	return &InferStructureTool{BaseTool: NewBaseTool(svc, logger)}
}

// Name returns the tool name
func (t *InferStructureTool) Name() string { return InferStructureName }

// Annotations returns tool hints for LLMs
func (t *InferStructureTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Infer Log Structure")
}

// Description returns the tool description
func (t *InferStructureTool) Description() string {
	return `Analyze sample log entries to discover their structure: every field path (e.g. "metadata.user.id", "items[0].sku"), the value types seen for it and an example value. Use this after fetchSamples to decide which fields to filter or aggregate on.`
}

// InputSchema returns the input schema
func (t *InferStructureTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"samples": map[string]interface{}{
				"type":        "array",
				"description": "Sample log entries to analyze, typically the samples returned by fetchSamples",
				"items":       map[string]interface{}{},
			},
		},
		"required": []string{"samples"},
	}
}

// Execute runs the tool
func (t *InferStructureTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	return t.execute(ctx, t, arguments)
}

func (t *InferStructureTool) invoke(ctx context.Context, arguments map[string]interface{}) (interface{}, Output, error) {
	// A missing samples argument is reported like an empty one.
	samples, err := GetArrayParam(arguments, "samples", false)
	if err != nil {
		return nil, nil, invalidArguments(t.Name(), err)
	}
	in := InferStructureInput{Samples: samples}
	out, err := t.Run(ctx, in)
	if err != nil {
		return in, nil, err
	}
	return in, out, nil
}

// Run infers the schema. It fails with schema.ErrNoSamples on empty input.
func (t *InferStructureTool) Run(_ context.Context, in InferStructureInput) (*InferStructureOutput, error) {
	fields, err := schema.Infer(in.Samples)
	if err != nil {
		return nil, err
	}
	return &InferStructureOutput{
		Success:     true,
		Schema:      fields,
		TotalFields: len(fields),
		Message:     fmt.Sprintf("Discovered %d fields in log structure", len(fields)),
	}, nil
}
