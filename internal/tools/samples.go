package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/record"
)

// Sampling bounds.
const (
	DefaultSampleLimit = 10
	MaxSampleLimit     = 50
	DefaultWindowHours = 24
	MaxWindowHours     = 24 * 365 * 10
)

// QueryTimeout bounds tools that paginate through the store.
const QueryTimeout = 60 * time.Second

// FetchSamplesInput selects the collection and window to sample.
type FetchSamplesInput struct {
	CollectionName string `json:"collectionName"`
	Limit          int    `json:"limit"`
	WindowHours    int    `json:"windowHours"`
}

// FetchSamplesOutput holds the first Limit records of the window.
type FetchSamplesOutput struct {
	Success        bool            `json:"success"`
	CollectionName string          `json:"collectionName"`
	Samples        []record.Sample `json:"samples"`
	SampleCount    int             `json:"sampleCount"`
	TotalFound     int             `json:"totalFound"`
	Message        string          `json:"message"`

	// Records are the full records behind Samples.
	Records []record.Record `json:"-"`
}

// FetchSamplesTool reads a handful of events to reveal a collection's shape.
type FetchSamplesTool struct {
	*BaseTool
}

// NewFetchSamplesTool creates a new tool instance
func NewFetchSamplesTool(svc *query.Service, logger *zap.Logger) *FetchSamplesTool {
	return &FetchSamplesTool{BaseTool: NewBaseTool(svc, logger)}
}

// Name returns the tool name
func (t *FetchSamplesTool) Name() string { return FetchSamplesName }

// Annotations returns tool hints for LLMs
func (t *FetchSamplesTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Fetch Sample Logs")
}

// DefaultTimeout returns the timeout for store queries
func (t *FetchSamplesTool) DefaultTimeout() time.Duration { return QueryTimeout }

// Description returns the tool description
func (t *FetchSamplesTool) Description() string {
	return `Fetch sample log entries from a collection to understand its structure and available fields. Always call this before searchAndAggregate to discover the schema.

**Related tools:**
- inferStructure: pass the returned samples to list every field and its types
- searchAndAggregate: query with filters once the fields are known`
}

// InputSchema returns the input schema
func (t *FetchSamplesTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"collectionName": map[string]interface{}{
				"type":        "string",
				"description": "Exact collection name to sample. Defaults to the configured default collection.",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Number of samples to return (default: 10, max: 50)",
				"minimum":     1,
				"maximum":     MaxSampleLimit,
				"default":     DefaultSampleLimit,
			},
			"windowHours": map[string]interface{}{
				"type":        "integer",
				"description": "How many hours back to search (default: 24)",
				"minimum":     1,
				"maximum":     MaxWindowHours,
				"default":     DefaultWindowHours,
			},
		},
	}
}

// Execute runs the tool
func (t *FetchSamplesTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	return t.execute(ctx, t, arguments)
}

func (t *FetchSamplesTool) invoke(ctx context.Context, arguments map[string]interface{}) (interface{}, Output, error) {
	in, err := decodeFetchSamples(arguments)
	if err != nil {
		return nil, nil, invalidArguments(t.Name(), err)
	}
	out, err := t.Run(ctx, in)
	if err != nil {
		return in, nil, err
	}
	return in, out, nil
}

func decodeFetchSamples(arguments map[string]interface{}) (FetchSamplesInput, error) {
	in := FetchSamplesInput{Limit: DefaultSampleLimit, WindowHours: DefaultWindowHours}

	var err error
	if in.CollectionName, err = GetStringParam(arguments, "collectionName", false); err != nil {
		return in, err
	}
	if limit, ok, err := GetIntParam(arguments, "limit", false); err != nil {
		return in, err
	} else if ok {
		if limit < 1 {
			return in, fmt.Errorf("limit must be at least 1, got %d", limit)
		}
		in.Limit = min(limit, MaxSampleLimit)
	}
	if in.WindowHours, err = windowHours(arguments); err != nil {
		return in, err
	}
	return in, nil
}

// windowHours reads the optional windowHours argument.
func windowHours(arguments map[string]interface{}) (int, error) {
	hours, ok, err := GetIntParam(arguments, "windowHours", false)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultWindowHours, nil
	}
	if hours < 1 {
		return 0, fmt.Errorf("windowHours must be at least 1, got %d", hours)
	}
	if hours > MaxWindowHours {
		return 0, fmt.Errorf("windowHours must be at most %d, got %d", MaxWindowHours, hours)
	}
	return hours, nil
}

// Run queries the window and keeps the first Limit records.
func (t *FetchSamplesTool) Run(ctx context.Context, in FetchSamplesInput) (*FetchSamplesOutput, error) {
	window := t.svc.Window(time.Duration(in.WindowHours) * time.Hour)
	records, err := t.svc.Query(ctx, query.Params{
		Collection: in.CollectionName,
		TimeRange:  &window,
	})
	if err != nil {
		return nil, err
	}

	kept := records[:min(in.Limit, len(records))]
	samples := make([]record.Sample, len(kept))
	for i, r := range kept {
		samples[i] = r.Sample()
	}

	collection := t.svc.ResolveCollection(in.CollectionName)
	return &FetchSamplesOutput{
		Success:        true,
		CollectionName: collection,
		Samples:        samples,
		SampleCount:    len(samples),
		TotalFound:     len(records),
		Message:        fmt.Sprintf("Fetched %d sample logs from %s", len(samples), collection),
		Records:        kept,
	}, nil
}
