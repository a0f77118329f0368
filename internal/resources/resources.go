// Package resources provides MCP resource handlers for loglens.
// Resources expose read-only data to MCP clients for context and status information.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/config"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/schema"
)

// SchemaURIPrefix prefixes the per-collection schema resources.
const SchemaURIPrefix = "schema://"

// schemaSampleLimit is the number of records a schema resource infers from.
const schemaSampleLimit = 20

// Registry holds all registered resources and their handlers
type Registry struct {
	config  *config.Config
	metrics *metrics.Metrics
	svc     *query.Service
	logger  *zap.Logger
	version string
	tools   []string
}

// NewRegistry creates a new resource registry. tools names the tools the
// server exposes, for the about resource.
func NewRegistry(cfg *config.Config, m *metrics.Metrics, svc *query.Service, logger *zap.Logger, version string, tools []string) *Registry {
	return &Registry{
		config:  cfg,
		metrics: m,
		svc:     svc,
		logger:  logger,
		version: version,
		tools:   tools,
	}
}

// RegisteredResource represents a resource with its definition and handler
type RegisteredResource struct {
	Resource *mcp.Resource
	Handler  mcp.ResourceHandler
}

// GetResources returns all registered resources with their handlers
func (r *Registry) GetResources() []RegisteredResource {
	return []RegisteredResource{
		r.aboutResource(),
		r.configResource(),
		r.metricsResource(),
	}
}

func (r *Registry) aboutResource() RegisteredResource {
	const uri = "about://service"
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         uri,
			Name:        uri,
			Title:       "About loglens",
			Description: "Service information, workflow and exposed tools",
			MIMEType:    "application/json",
		},
		Handler: func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return r.jsonResult(uri, map[string]interface{}{
				"service": map[string]interface{}{
					"name":        "loglens",
					"description": "Conversational log explorer: ask in plain language, get matching log records",
					"version":     r.version,
				},
				"workflow": []string{
					"searchCollections or listCollections to find the collection",
					"fetchSamples to read recent records",
					"searchAndAggregate to filter and count",
					"inferStructure to see the fields of JSON logs",
				},
				"tools":        r.tools,
				"capabilities": []string{"tools", "prompts", "resources"},
			})
		},
	}
}

// configResource returns the current configuration with credentials masked.
func (r *Registry) configResource() RegisteredResource {
	const uri = "config://current"
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         uri,
			Name:        uri,
			Title:       "Server Configuration",
			Description: "Current loglens configuration (sensitive values masked)",
			MIMEType:    "application/json",
		},
		Handler: func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			c := r.config.Redact()
			return r.jsonResult(uri, map[string]interface{}{
				"store_url":                c.StoreURL,
				"store_api_key":            c.StoreAPIKey,
				"store_region":             c.StoreRegion,
				"default_collection":       c.DefaultCollection,
				"max_results_per_query":    c.MaxResultsPerQuery,
				"default_time_range_hours": c.DefaultTimeRangeHours,
				"llm_base_url":             c.LLMBaseURL,
				"llm_api_key":              c.LLMAPIKey,
				"llm_model":                c.LLMModel,
				"llm_max_steps":            c.LLMMaxSteps,
				"turn_timeout":             c.TurnTimeout.String(),
				"timeout":                  c.Timeout.String(),
				"max_retries":              c.MaxRetries,
				"rate_limit":               c.RateLimit,
				"rate_limit_burst":         c.RateLimitBurst,
				"rate_limit_enabled":       c.EnableRateLimit,
				"tls_verify":               c.TLSVerify,
				"log_level":                c.LogLevel,
			})
		},
	}
}

func (r *Registry) metricsResource() RegisteredResource {
	const uri = "metrics://server"
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         uri,
			Name:        uri,
			Title:       "Server Metrics",
			Description: "Operational metrics including store requests, turns, fallbacks and tool usage",
			MIMEType:    "application/json",
		},
		Handler: func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			var stats metrics.Stats
			if r.metrics != nil {
				stats = r.metrics.GetStats()
			}
			return r.jsonResult(uri, map[string]interface{}{
				"requests": map[string]interface{}{
					"total":      stats.TotalRequests,
					"successful": stats.SuccessfulRequests,
					"failed":     stats.FailedRequests,
					"retried":    stats.RetriedRequests,
				},
				"rate_limiting": map[string]interface{}{
					"hits": stats.RateLimitHits,
				},
				"latency": map[string]interface{}{
					"average_ms": stats.AverageLatency.Milliseconds(),
					"max_ms":     stats.MaxLatency.Milliseconds(),
				},
				"store": map[string]interface{}{
					"pages":  stats.StorePages,
					"events": stats.StoreEvents,
				},
				"turns":            stats.Turns,
				"fallback_queries": stats.FallbackRuns,
				"errors_by_status": stats.ErrorsByStatus,
				"tools": map[string]interface{}{
					"usage":  stats.ToolUsage,
					"errors": stats.ToolErrors,
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		},
	}
}

// GetResourceTemplates returns the parameterized resources.
func (r *Registry) GetResourceTemplates() []*mcp.ResourceTemplate {
	return []*mcp.ResourceTemplate{
		{
			URITemplate: SchemaURIPrefix + "{+collection}",
			Name:        "collection-schema",
			Title:       "Collection Schema",
			Description: "Fields discovered in the most recent JSON records of a collection",
			MIMEType:    "application/json",
		},
	}
}

// GetTemplateHandler returns a handler for resource templates
func (r *Registry) GetTemplateHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		if !strings.HasPrefix(uri, SchemaURIPrefix) || len(uri) == len(SchemaURIPrefix) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		collection := strings.TrimPrefix(uri, SchemaURIPrefix)

		records, err := r.svc.Query(ctx, query.Params{Collection: collection})
		if err != nil {
			return nil, err
		}

		samples := make([]interface{}, 0, schemaSampleLimit)
		for _, rec := range records[:min(len(records), schemaSampleLimit)] {
			samples = append(samples, rec.Metadata)
		}

		fields, err := schema.Infer(samples)
		if err != nil {
			return nil, fmt.Errorf("no records in %s to infer a schema from: %w", collection, err)
		}

		return r.jsonResult(uri, map[string]interface{}{
			"collection":  collection,
			"sampleCount": len(samples),
			"fields":      fields,
		})
	}
}

func (r *Registry) jsonResult(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		r.logger.Error("Failed to marshal resource", zap.String("uri", uri), zap.Error(err))
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
