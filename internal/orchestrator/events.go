package orchestrator

import (
	"time"

	"github.com/tareqmamari/loglens/internal/record"
)

// StepType classifies a step event.
type StepType string

// Step types, in the order a turn emits them.
const (
	StepToolCall   StepType = "tool_call"
	StepToolResult StepType = "tool_result"
	StepResult     StepType = "result"
)

// Step is one informational step of a turn. Seq starts at 0 and grows by
// one per step within a turn.
type Step struct {
	ID        string                 `json:"id"`
	Seq       int                    `json:"step"`
	Type      StepType               `json:"type"`
	Content   string                 `json:"content"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Result is the authoritative payload of a turn. Insights and
// ChainOfThought are always empty arrays on the wire.
type Result struct {
	Summary        string          `json:"summary"`
	Logs           []record.Record `json:"logs"`
	Insights       []string        `json:"insights"`
	ChainOfThought []Step          `json:"chainOfThought"`
}

// EventType is the discriminator of an Event.
type EventType string

// Event types.
const (
	EventStep   EventType = "step"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

// Event is one frame of a turn's stream. Exactly one of Step, Result or
// Error is set, matching Type.
type Event struct {
	Type   EventType `json:"type"`
	Step   *Step     `json:"step,omitempty"`
	Result *Result   `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`

	frame []byte
}

// Frame returns the event's JSON encoding, without a trailing newline.
// Events read from a Stream always carry their frame.
func (e Event) Frame() []byte {
	return e.frame
}
