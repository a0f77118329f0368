package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/client"
	"github.com/tareqmamari/loglens/internal/config"
)

// OpenAIOptions configures the chat-completions agent.
type OpenAIOptions struct {
	Model       string
	Temperature float64
	// MaxSteps bounds the number of model round-trips that may request tools.
	MaxSteps int
}

// OptionsFromConfig returns the agent options from cfg.
func OptionsFromConfig(cfg *config.Config) OpenAIOptions {
	return OpenAIOptions{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxSteps:    cfg.LLMMaxSteps,
	}
}

// OpenAI is an Agent backed by an OpenAI-compatible chat-completions
// endpoint. It executes the model's tool calls through the request's
// surface until the model answers without calling a tool.
type OpenAI struct {
	client *client.Client
	opts   OpenAIOptions
	logger *zap.Logger
}

// NewOpenAI creates the agent. c must point at the API base URL (for example
// https://api.openai.com/v1) and carry the bearer credential.
func NewOpenAI(c *client.Client, opts OpenAIOptions, logger *zap.Logger) *OpenAI {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 8
	}
	return &OpenAI{client: c, opts: opts, logger: logger}
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatFunctionDecl `json:"function"`
}

type chatFunctionDecl struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Run implements Agent.
func (a *OpenAI) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Surface == nil {
		return nil, errors.New("agent run requires a tool surface")
	}

	var declared []chatTool
	for _, t := range req.Surface.Tools() {
		declared = append(declared, chatTool{
			Type: "function",
			Function: chatFunctionDecl{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.InputSchema(),
			},
		})
	}

	messages := []chatMessage{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.User},
	}
	result := &Result{}

	for step := 1; ; step++ {
		reply, err := a.complete(ctx, messages, declared)
		if err != nil {
			return nil, err
		}
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 {
			a.finish(result, reply.Content)
			a.logger.Debug("Agent finished",
				zap.Int("steps", step),
				zap.Int("tool_calls", len(result.Calls)),
			)
			return result, nil
		}

		for _, tc := range reply.ToolCalls {
			args := json.RawMessage(tc.Function.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			result.Calls = append(result.Calls, Call{ID: tc.ID, Name: tc.Function.Name, Args: args})

			inv, err := req.Surface.Invoke(ctx, tc.Function.Name, args)
			if err != nil {
				a.logger.Debug("Tool call failed, returning failure to the model",
					zap.String("tool", tc.Function.Name),
					zap.Error(err),
				)
			}
			result.Results = append(result.Results, inv)

			payload, err := json.Marshal(inv.Output)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s output: %w", tc.Function.Name, err)
			}
			messages = append(messages, chatMessage{
				Role:       "tool",
				Content:    string(payload),
				ToolCallID: tc.ID,
			})
		}

		if step >= a.opts.MaxSteps {
			a.logger.Warn("Agent step limit reached",
				zap.Int("max_steps", a.opts.MaxSteps),
				zap.Int("tool_calls", len(result.Calls)),
			)
			a.finish(result, reply.Content)
			return result, nil
		}
	}
}

func (a *OpenAI) complete(ctx context.Context, messages []chatMessage, declared []chatTool) (chatMessage, error) {
	body := chatRequest{
		Model:       a.opts.Model,
		Messages:    messages,
		Tools:       declared,
		Temperature: a.opts.Temperature,
	}
	if len(declared) > 0 {
		body.ToolChoice = "auto"
	}

	var resp chatResponse
	if _, err := a.client.DoJSON(ctx, &client.Request{
		Method: "POST",
		Path:   "/chat/completions",
		Body:   body,
	}, &resp); err != nil {
		return chatMessage{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return chatMessage{}, errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message, nil
}

func (a *OpenAI) finish(result *Result, text string) {
	clean, questions, insights := splitAnnotations(text)
	result.Text = clean
	result.ClarificationQuestions = questions
	result.NeedsClarification = len(questions) > 0
	result.Insights = insights
}
