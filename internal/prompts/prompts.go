// Package prompts provides the agent's system instructions and the
// pre-built prompts exposed to MCP clients.
package prompts

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// System is the instruction sent with every chat turn. It makes the model
// fetch logs after discovering collections instead of stopping at the list.
const System = `You are a log analyst. Your job is to find and display actual log entries.

**MANDATORY: Always complete BOTH steps:**
1. Use searchCollections to find the collection (e.g., pattern: "api"). Use listCollections only when the user gives no hint.
2. IMMEDIATELY use fetchSamples with the FIRST collection found to get actual logs.

**DO NOT stop after finding collections. You MUST call fetchSamples!**

When the user asks for counts, errors or specific status codes:
- Call inferStructure with the samples to learn the available fields.
- Call searchAndAggregate with fieldFilters (level, statusCode) and aggregateByField.

Example for "show api logs":
Step 1: searchCollections with pattern "api" → finds "/app/prod/api"
Step 2: fetchSamples with collectionName "/app/prod/api" → returns log entries

Keep your text response brief. The logs will display in the grid.
Put each notable finding on its own line starting with "INSIGHT:".
If the request is too ambiguous to act on, ask on lines starting with "QUESTION:".`

// PromptDefinition represents a prompt with its metadata and handler
type PromptDefinition struct {
	// Prompt is the MCP prompt metadata
	Prompt *mcp.Prompt
	// Handler is the function that generates the prompt content
	Handler mcp.PromptHandler
}

// Registry holds all registered prompts
type Registry struct {
	logger  *zap.Logger
	prompts []*PromptDefinition
}

// NewRegistry creates a new prompt registry with all available prompts
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger,
	}
	r.registerPrompts()
	return r
}

// GetPrompts returns all registered prompt definitions
func (r *Registry) GetPrompts() []*PromptDefinition {
	return r.prompts
}

func (r *Registry) registerPrompts() {
	r.prompts = []*PromptDefinition{
		r.showLogsPrompt(),
		r.investigateErrorsPrompt(),
		r.exploreSchemaPrompt(),
	}
}

// Helper to create a prompt result with user role
func createPromptResult(description, content string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: content,
				},
			},
		},
	}
}

// getStringArg safely extracts a string argument with a default value
func getStringArg(args map[string]string, key, defaultVal string) string {
	if val, ok := args[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

// showLogsPrompt carries the discovery then fetch workflow.
func (r *Registry) showLogsPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "show_logs",
			Title:       "Show Logs",
			Description: "Find a collection by keyword and display its recent log entries",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "pattern",
					Description: "Keyword contained in the collection name (e.g., 'api', 'worker')",
					Required:    true,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			pattern := getStringArg(req.Params.Arguments, "pattern", "")
			if pattern == "" {
				return nil, fmt.Errorf("missing required argument: pattern")
			}

			content := fmt.Sprintf(`%s

Show me the logs for "%s".`, System, pattern)

			return createPromptResult("Discover a collection and fetch its logs", content), nil
		},
	}
}

func (r *Registry) investigateErrorsPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "investigate_errors",
			Title:       "Investigate Errors",
			Description: "Summarize ERROR records of a collection with status codes and top error patterns",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "collection",
					Description: "Exact collection name",
					Required:    true,
				},
				{
					Name:        "window_hours",
					Description: "How many hours back to look (default: 24)",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			collection := getStringArg(req.Params.Arguments, "collection", "")
			if collection == "" {
				return nil, fmt.Errorf("missing required argument: collection")
			}
			hours := getStringArg(req.Params.Arguments, "window_hours", "24")

			content := fmt.Sprintf(`Let's investigate errors in %s over the last %s hours.

1. Run: fetchSamples with collectionName "%s" to see what the records look like
2. Run: searchAndAggregate with collectionName "%s", windowHours %s, fieldFilters {"level": "ERROR"} and aggregateByField "statusCode"
3. Review topErrorPatterns and statusCodeCounts in the result

Report the most frequent error pattern first, then anything unusual in the status codes.`,
				collection, hours, collection, collection, hours)

			return createPromptResult("Investigate errors workflow", content), nil
		},
	}
}

func (r *Registry) exploreSchemaPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "explore_schema",
			Title:       "Explore Log Structure",
			Description: "Sample a collection and list the fields its records carry",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "collection",
					Description: "Exact collection name",
					Required:    true,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			collection := getStringArg(req.Params.Arguments, "collection", "")
			if collection == "" {
				return nil, fmt.Errorf("missing required argument: collection")
			}

			content := fmt.Sprintf(`Help me understand the structure of the logs in %s.

1. Run: fetchSamples with collectionName "%s" and limit 20
2. Run: inferStructure with the samples from step 1
3. List the fields grouped by top-level key, with their types and an example value

Point out which fields look useful for filtering or aggregation.`, collection, collection)

			return createPromptResult("Explore log structure workflow", content), nil
		},
	}
}
