package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/record"
)

// MaxReturnedLogs caps the records carried in a searchAndAggregate result.
const MaxReturnedLogs = 100

// SearchAndAggregateInput selects, filters and optionally groups records.
type SearchAndAggregateInput struct {
	CollectionName   string             `json:"collectionName"`
	FilterExpression string             `json:"filterExpression"`
	WindowHours      int                `json:"windowHours"`
	FieldFilters     query.FieldFilters `json:"fieldFilters"`
	AggregateByField string             `json:"aggregateByField"`
}

// TimeRange is the queried window in record timestamp format.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Aggregation is the count of records per value of Field.
type Aggregation struct {
	Field  string         `json:"field"`
	Counts map[string]int `json:"counts"`
}

// SearchAndAggregateOutput carries the first MaxReturnedLogs matches and the
// aggregates computed over all of them.
type SearchAndAggregateOutput struct {
	Success          bool            `json:"success"`
	CollectionName   string          `json:"collectionName"`
	TotalLogs        int             `json:"totalLogs"`
	TimeRange        TimeRange       `json:"timeRange"`
	Logs             []record.Record `json:"logs"`
	Aggregation      *Aggregation    `json:"aggregation,omitempty"`
	StatusCodeCounts map[int]int     `json:"statusCodeCounts,omitempty"`
	TopErrorPatterns []string        `json:"topErrorPatterns,omitempty"`
	Message          string          `json:"message"`
}

// SearchAndAggregateTool runs a filtered query with optional aggregation.
type SearchAndAggregateTool struct {
	*BaseTool
}

// NewSearchAndAggregateTool creates a new tool instance
func NewSearchAndAggregateTool(svc *query.Service, logger *zap.Logger) *SearchAndAggregateTool {
	return &SearchAndAggregateTool{BaseTool: NewBaseTool(svc, logger)}
}

// Name returns the tool name
func (t *SearchAndAggregateTool) Name() string { return SearchAndAggregateName }

// Annotations returns tool hints for LLMs
func (t *SearchAndAggregateTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Search and Aggregate Logs")
}

// DefaultTimeout returns the timeout for store queries
func (t *SearchAndAggregateTool) DefaultTimeout() time.Duration { return QueryTimeout }

// Description returns the tool description
func (t *SearchAndAggregateTool) Description() string {
	return `Search a log collection with an optional store filter expression and field filters, then aggregate. Use this after fetchSamples/inferStructure have revealed the fields.

Returns at most 100 logs, plus:
- aggregation: counts per value of aggregateByField (dot path, e.g. "statusCode", "metadata.route")
- statusCodeCounts: counts per HTTP status code
- topErrorPatterns: the most frequent ERROR message prefixes

**Filter expression examples:** "timeout", "{ $.statusCode = 404 }"`
}

// InputSchema returns the input schema
func (t *SearchAndAggregateTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"collectionName": map[string]interface{}{
				"type":        "string",
				"description": "Exact collection name to query. Defaults to the configured default collection.",
			},
			"filterExpression": map[string]interface{}{
				"type":        "string",
				"description": "Store-side filter expression. Empty string means no filtering.",
				"default":     "",
			},
			"windowHours": map[string]interface{}{
				"type":        "integer",
				"description": "How many hours back to search (default: 24)",
				"minimum":     1,
				"maximum":     MaxWindowHours,
				"default":     DefaultWindowHours,
			},
			"fieldFilters": map[string]interface{}{
				"type":        "object",
				"description": "Exact-match filters applied to normalized records",
				"properties": map[string]interface{}{
					"level": map[string]interface{}{
						"type": "string",
						"enum": []string{"INFO", "WARN", "ERROR", "DEBUG"},
					},
					"statusCode": map[string]interface{}{
						"type": "integer",
					},
				},
				"default": map[string]interface{}{},
			},
			"aggregateByField": map[string]interface{}{
				"type":        "string",
				"description": "Field to count records by. Empty string means no aggregation.",
				"default":     "",
				"examples":    []string{"statusCode", "level", "metadata.route"},
			},
		},
	}
}

// Execute runs the tool
func (t *SearchAndAggregateTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	return t.execute(ctx, t, arguments)
}

func (t *SearchAndAggregateTool) invoke(ctx context.Context, arguments map[string]interface{}) (interface{}, Output, error) {
	in, err := decodeSearchAndAggregate(arguments)
	if err != nil {
		return nil, nil, invalidArguments(t.Name(), err)
	}
	out, err := t.Run(ctx, in)
	if err != nil {
		return in, nil, err
	}
	return in, out, nil
}

func decodeSearchAndAggregate(arguments map[string]interface{}) (SearchAndAggregateInput, error) {
	in := SearchAndAggregateInput{WindowHours: DefaultWindowHours}

	var err error
	if in.CollectionName, err = GetStringParam(arguments, "collectionName", false); err != nil {
		return in, err
	}
	if in.FilterExpression, err = GetStringParam(arguments, "filterExpression", false); err != nil {
		return in, err
	}
	if in.AggregateByField, err = GetStringParam(arguments, "aggregateByField", false); err != nil {
		return in, err
	}
	if in.WindowHours, err = windowHours(arguments); err != nil {
		return in, err
	}

	filters, err := GetObjectParam(arguments, "fieldFilters", false)
	if err != nil {
		return in, err
	}
	level, err := GetStringParam(filters, "level", false)
	if err != nil {
		return in, err
	}
	if level != "" {
		l := record.Level(strings.ToUpper(level))
		if !l.Valid() {
			return in, fmt.Errorf("fieldFilters.level must be one of INFO, WARN, ERROR, DEBUG, got %q", level)
		}
		in.FieldFilters.Level = l
	}
	if code, ok, err := GetIntParam(filters, "statusCode", false); err != nil {
		return in, err
	} else if ok {
		in.FieldFilters.StatusCode = &code
	}
	return in, nil
}

// Run queries the window and builds the aggregates over every match.
func (t *SearchAndAggregateTool) Run(ctx context.Context, in SearchAndAggregateInput) (*SearchAndAggregateOutput, error) {
	window := t.svc.Window(time.Duration(in.WindowHours) * time.Hour)
	records, err := t.svc.Query(ctx, query.Params{
		Collection:       in.CollectionName,
		TimeRange:        &window,
		FilterExpression: in.FilterExpression,
		FieldFilters:     in.FieldFilters,
	})
	if err != nil {
		return nil, err
	}

	logs := records[:min(len(records), MaxReturnedLogs)]
	if logs == nil {
		logs = []record.Record{}
	}
	out := &SearchAndAggregateOutput{
		Success:        true,
		CollectionName: t.svc.ResolveCollection(in.CollectionName),
		TotalLogs:      len(records),
		TimeRange: TimeRange{
			Start: record.FormatTimestamp(window.Start),
			End:   record.FormatTimestamp(window.End),
		},
		Logs:    logs,
		Message: fmt.Sprintf("Found %d logs", len(records)),
	}
	if len(records) == 0 {
		return out, nil
	}

	if in.AggregateByField != "" {
		out.Aggregation = &Aggregation{
			Field:  in.AggregateByField,
			Counts: query.CountByField(records, in.AggregateByField),
		}
	}
	if codes := query.StatusCodeCounts(records); len(codes) > 0 {
		out.StatusCodeCounts = codes
	}
	for _, p := range query.TopErrorPatterns(records, query.DefaultTopPatterns) {
		out.TopErrorPatterns = append(out.TopErrorPatterns, p.String())
	}
	return out, nil
}
