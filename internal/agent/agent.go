// Package agent drives a tool-calling language model over the tool surface.
package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tareqmamari/loglens/internal/tools"
)

// Call is one tool call requested by the model.
type Call struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"toolName"`
	Args json.RawMessage `json:"args"`
}

// Request is the input of one agent run.
type Request struct {
	System  string
	User    string
	Surface *tools.Surface
}

// Result is what the agent produced: its final text and every tool call and
// tool result, each in the order they happened.
type Result struct {
	Text                   string
	Calls                  []Call
	Results                []tools.Invocation
	NeedsClarification     bool
	ClarificationQuestions []string
	Insights               []string
}

// Agent runs one conversational turn against a tool surface.
type Agent interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Unavailable returns an Agent whose every run fails with err. It stands in
// for the model when the agent runtime is not configured.
func Unavailable(err error) Agent {
	return Func(func(context.Context, Request) (*Result, error) {
		return nil, err
	})
}

// Line prefixes the model uses to mark clarification questions and insights.
const (
	questionPrefix = "QUESTION:"
	insightPrefix  = "INSIGHT:"
)

// splitAnnotations removes QUESTION: and INSIGHT: lines from text and
// returns them separately. Prefixes match case-insensitively.
func splitAnnotations(text string) (clean string, questions, insights []string) {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		switch {
		case hasPrefixFold(trimmed, questionPrefix):
			if q := strings.TrimSpace(trimmed[len(questionPrefix):]); q != "" {
				questions = append(questions, q)
			}
		case hasPrefixFold(trimmed, insightPrefix):
			if i := strings.TrimSpace(trimmed[len(insightPrefix):]); i != "" {
				insights = append(insights, i)
			}
		default:
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), questions, insights
}

// hasPrefixFold reports whether s begins with prefix, ignoring case.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
