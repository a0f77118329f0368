// Package orchestrator runs one conversational turn: it drives the agent
// over the tool surface, fetches logs itself when the agent stopped after
// discovering collections, and streams ordered step events followed by one
// terminal result.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/agent"
	"github.com/tareqmamari/loglens/internal/config"
	apperrors "github.com/tareqmamari/loglens/internal/errors"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/prompts"
	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/record"
	"github.com/tareqmamari/loglens/internal/tools"
	"github.com/tareqmamari/loglens/internal/tracing"
)

// FallbackWindow is the window queried when the orchestrator fetches logs
// on the agent's behalf.
const FallbackWindow = 24 * time.Hour

// MaxFallbackRecords caps the records kept from a fallback query.
const MaxFallbackRecords = 100

// Orchestrator runs turns. It holds no per-turn state and is safe for
// concurrent use.
type Orchestrator struct {
	agent   agent.Agent
	surface *tools.Surface
	svc     *query.Service
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	marshal func(v interface{}) ([]byte, error)
}

// New creates an Orchestrator. m may be nil; a nil clock means wall-clock time.
func New(a agent.Agent, surface *tools.Surface, svc *query.Service, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, clk clock.Clock) *Orchestrator {
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		agent:   a,
		surface: surface,
		svc:     svc,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		clock:   clk,
		marshal: json.Marshal,
	}
}

// Submit validates text and starts a turn. Empty input is rejected with
// INVALID_INPUT before anything runs. The turn ends when ctx is done or
// TurnTimeout elapses; the stream is then closed without a result.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*Stream, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewInvalidInput("message is required")
	}

	t := &turn{
		o:      o,
		id:     uuid.NewString(),
		text:   text,
		stream: newStream(),
		start:  o.clock.Now(),
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	go func() {
		defer cancel()
		t.run(ctx)
	}()
	return t.stream, nil
}

// turn is the state of one Submit call. It is owned by a single goroutine.
type turn struct {
	o      *Orchestrator
	id     string
	text   string
	stream *Stream
	start  time.Time
	seq    int
}

func (t *turn) run(ctx context.Context) {
	defer t.stream.close()

	ctx, span := tracing.TurnSpan(ctx, t.id)
	defer span.End()

	logger := t.o.logger.With(zap.String("turn_id", t.id))
	outcome := metrics.TurnCompleted
	defer func() {
		if t.o.metrics != nil {
			t.o.metrics.RecordTurn(outcome, t.o.clock.Since(t.start))
		}
		logger.Info("Turn finished",
			zap.String("outcome", outcome),
			zap.Int("steps", t.seq),
		)
	}()

	res, err := t.dispatch(ctx)
	if ctx.Err() != nil {
		outcome = abandoned(ctx)
		logger.Warn("Turn abandoned while the agent was running", zap.Error(ctx.Err()))
		return
	}
	if err != nil {
		outcome = metrics.TurnDegraded
		tracing.RecordError(span, err)
		logger.Warn("Agent run failed, returning an empty result", zap.Error(err))
		res = &agent.Result{Text: degradedSummary(err)}
	}

	if err := t.emitToolSteps(ctx, res); err != nil {
		outcome = t.failed(ctx, err, logger)
		return
	}

	discovered, records := collect(res.Results)
	if len(discovered) > 0 && len(records) == 0 {
		records = t.fallback(ctx, discovered, logger)
		if ctx.Err() != nil {
			outcome = abandoned(ctx)
			return
		}
	}

	summary, logs := t.finalize(res, discovered, records)

	if err := t.emitStep(ctx, StepResult, summary, nil); err != nil {
		outcome = t.failed(ctx, err, logger)
		return
	}
	if err := t.emitResult(ctx, &Result{
		Summary:        summary,
		Logs:           logs,
		Insights:       []string{},
		ChainOfThought: []Step{},
	}); err != nil {
		outcome = t.failed(ctx, err, logger)
		return
	}
	tracing.SetResultCount(span, len(logs))
}

// dispatch runs the agent. It returns as soon as ctx is done even if the
// agent has not, so the turn's ceiling holds for agents that ignore ctx.
func (t *turn) dispatch(ctx context.Context) (*agent.Result, error) {
	type outcome struct {
		res *agent.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := t.o.agent.Run(ctx, agent.Request{
			System:  prompts.System,
			User:    t.text,
			Surface: t.o.surface,
		})
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, apperrors.NewAgentFailure(out.err)
		}
		if out.res == nil {
			return &agent.Result{}, nil
		}
		return out.res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// emitToolSteps emits one tool_call step per call and then one tool_result
// step per result, each in the agent's order.
func (t *turn) emitToolSteps(ctx context.Context, res *agent.Result) error {
	for _, c := range res.Calls {
		args := c.Args
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		if err := t.emitStep(ctx, StepToolCall, fmt.Sprintf("Calling tool: %s", c.Name), map[string]interface{}{
			"toolName": c.Name,
			"args":     args,
		}); err != nil {
			return err
		}
	}
	for _, inv := range res.Results {
		if err := t.emitStep(ctx, StepToolResult, fmt.Sprintf("Tool %s completed", inv.Name), map[string]interface{}{
			"toolName": inv.Name,
			"result":   inv.Output,
		}); err != nil {
			return err
		}
	}
	return nil
}

// collect extracts the last discovered collection list and every record
// fetched by the sampling and search tools.
func collect(results []tools.Invocation) (discovered []string, records []record.Record) {
	for _, inv := range results {
		switch out := inv.Output.(type) {
		case *tools.SearchCollectionsOutput:
			discovered = out.Collections
		case *tools.ListCollectionsOutput:
			discovered = out.Collections
		case *tools.FetchSamplesOutput:
			records = append(records, out.Records...)
		case *tools.SearchAndAggregateOutput:
			records = append(records, out.Logs...)
		}
	}
	return discovered, records
}

// fallback queries each discovered collection in order and returns the
// records of the first one that has any. Failing collections count as empty.
func (t *turn) fallback(ctx context.Context, collections []string, logger *zap.Logger) []record.Record {
	logger.Info("Agent discovered collections without fetching logs, querying them directly",
		zap.Strings("collections", collections),
	)

	window := t.o.svc.Window(FallbackWindow)
	for _, c := range collections {
		records, err := t.o.svc.Query(ctx, query.Params{Collection: c, TimeRange: &window})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("Fallback query failed, treating collection as empty",
				zap.String("collection", c),
				zap.Error(err),
			)
			continue
		}
		if len(records) > 0 {
			t.recordFallback(metrics.FallbackFound)
			logger.Info("Fallback found logs",
				zap.String("collection", c),
				zap.Int("records", len(records)),
			)
			return records[:min(len(records), MaxFallbackRecords)]
		}
	}

	t.recordFallback(metrics.FallbackEmpty)
	logger.Info("No logs found in any discovered collection")
	return nil
}

func (t *turn) recordFallback(outcome string) {
	if t.o.metrics != nil {
		t.o.metrics.RecordFallback(outcome)
	}
}

// finalize builds the summary and the logs of the terminal result.
func (t *turn) finalize(res *agent.Result, discovered []string, records []record.Record) (string, []record.Record) {
	if len(records) == 0 && len(discovered) > 0 {
		now := record.FormatTimestamp(t.o.clock.Now())
		placeholders := make([]record.Record, len(discovered))
		for i, name := range discovered {
			placeholders[i] = record.Record{
				ID:             fmt.Sprintf("loggroup-%d", i),
				Timestamp:      now,
				Message:        fmt.Sprintf("Collection %d of %d", i+1, len(discovered)),
				CollectionName: name,
				Level:          record.LevelInfo,
				Metadata:       map[string]interface{}{"type": "collection", "name": name},
			}
		}
		return fmt.Sprintf("Found %d collections matching your query.", len(discovered)), placeholders
	}

	summary := res.Text
	if summary == "" && len(records) == 0 {
		summary = "No logs found for your query."
	}
	switch {
	case res.NeedsClarification && len(res.ClarificationQuestions) > 0:
		summary += "\n\n**I need a bit more information:**\n" + bullets(res.ClarificationQuestions)
	case len(res.Insights) > 0:
		summary += "\n\n**Insights:**\n" + bullets(res.Insights)
	}
	if records == nil {
		records = []record.Record{}
	}
	return summary, records
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, s := range items {
		lines[i] = "- " + s
	}
	return strings.Join(lines, "\n")
}

func (t *turn) emitStep(ctx context.Context, typ StepType, content string, data map[string]interface{}) error {
	step := &Step{
		ID:        fmt.Sprintf("step-%s-%d", t.id, t.seq),
		Seq:       t.seq,
		Type:      typ,
		Content:   content,
		Data:      data,
		Timestamp: t.o.clock.Now().UTC(),
	}
	ev := Event{Type: EventStep, Step: step}

	frame, err := t.o.marshal(ev)
	if err != nil && data != nil {
		// Steps are informational; keep the step without its payload.
		t.o.logger.Warn("Dropping unencodable step data",
			zap.String("turn_id", t.id),
			zap.Int("step", t.seq),
			zap.Error(err),
		)
		step.Data = nil
		frame, err = t.o.marshal(ev)
	}
	if err != nil {
		return apperrors.NewStreamEncoding(err)
	}

	ev.frame = frame
	if err := t.stream.send(ctx, ev); err != nil {
		return err
	}
	t.seq++
	return nil
}

func (t *turn) emitResult(ctx context.Context, res *Result) error {
	ev := Event{Type: EventResult, Result: res}
	frame, err := t.o.marshal(ev)
	if err != nil {
		return apperrors.NewStreamEncoding(err)
	}
	ev.frame = frame
	return t.stream.send(ctx, ev)
}

// failed handles an emission error. Encoding failures are reported to the
// consumer as an error event; a done context just ends the turn.
func (t *turn) failed(ctx context.Context, err error, logger *zap.Logger) string {
	if ctx.Err() != nil {
		return abandoned(ctx)
	}

	logger.Error("Failed to emit event", zap.Error(err))
	msg := err.Error()
	var se *apperrors.StructuredError
	if errors.As(err, &se) {
		msg = se.Message
	}
	ev := Event{Type: EventError, Error: msg}
	frame, mErr := json.Marshal(ev)
	if mErr == nil {
		ev.frame = frame
		_ = t.stream.send(ctx, ev)
	}
	return metrics.TurnFailed
}

func abandoned(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return metrics.TurnTimedOut
	}
	return metrics.TurnFailed
}

func degradedSummary(err error) string {
	msg := err.Error()
	var se *apperrors.StructuredError
	if errors.As(err, &se) {
		msg = se.Message
	}
	return "No logs found. The request could not be completed: " + msg
}
