package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	if registry == nil {
		t.Fatal("Expected non-nil registry")
	}

	prompts := registry.GetPrompts()
	if len(prompts) != 3 {
		t.Errorf("Expected 3 prompts, got %d", len(prompts))
	}

	for _, p := range prompts {
		if p.Prompt == nil {
			t.Error("Prompt definition is nil")
			continue
		}
		if p.Prompt.Name == "" {
			t.Error("Prompt name is empty")
		}
		if p.Prompt.Description == "" {
			t.Errorf("Prompt %s has empty description", p.Prompt.Name)
		}
		if p.Handler == nil {
			t.Errorf("Prompt %s has nil handler", p.Prompt.Name)
		}
	}
}

func getPrompt(t *testing.T, name string) *PromptDefinition {
	t.Helper()
	for _, p := range NewRegistry(zap.NewNop()).GetPrompts() {
		if p.Prompt.Name == name {
			return p
		}
	}
	t.Fatalf("prompt %s not registered", name)
	return nil
}

func render(t *testing.T, p *PromptDefinition, args map[string]string) (string, error) {
	t.Helper()
	result, err := p.Handler(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: p.Prompt.Name, Arguments: args},
	})
	if err != nil {
		return "", err
	}
	if len(result.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(result.Messages))
	}
	text, ok := result.Messages[0].Content.(*mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Messages[0].Content)
	}
	return text.Text, nil
}

func TestPromptHandlers(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]string
		contains []string
	}{
		{
			name:     "show_logs",
			args:     map[string]string{"pattern": "api"},
			contains: []string{"searchCollections", "fetchSamples", `"api"`},
		},
		{
			name:     "investigate_errors",
			args:     map[string]string{"collection": "/app/prod/api"},
			contains: []string{"/app/prod/api", "last 24 hours", `"level": "ERROR"`},
		},
		{
			name:     "investigate_errors",
			args:     map[string]string{"collection": "/app/prod/api", "window_hours": "6"},
			contains: []string{"last 6 hours", "windowHours 6"},
		},
		{
			name:     "explore_schema",
			args:     map[string]string{"collection": "/app/prod/worker"},
			contains: []string{"inferStructure", "/app/prod/worker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := render(t, getPrompt(t, tt.name), tt.args)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("Expected prompt to contain %q", want)
				}
			}
		})
	}
}

func TestPromptRequiredArguments(t *testing.T) {
	for _, name := range []string{"show_logs", "investigate_errors", "explore_schema"} {
		if _, err := render(t, getPrompt(t, name), map[string]string{}); err == nil {
			t.Errorf("Expected %s to fail without its required argument", name)
		}
	}
}

func TestSystemPromptWorkflow(t *testing.T) {
	for _, want := range []string{"searchCollections", "fetchSamples", "INSIGHT:", "QUESTION:"} {
		if !strings.Contains(System, want) {
			t.Errorf("System prompt should mention %q", want)
		}
	}
	if strings.Index(System, "searchCollections") > strings.Index(System, "fetchSamples") {
		t.Error("System prompt should ask for discovery before fetching")
	}
}
