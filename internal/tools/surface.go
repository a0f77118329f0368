package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/tracing"
)

// Invocation records one tool run: the tool name, its decoded input and its
// output. Input is nil when the arguments could not be decoded. Output is a
// *Failure when the run did not succeed.
type Invocation struct {
	Name   string      `json:"toolName"`
	Input  interface{} `json:"input,omitempty"`
	Output Output      `json:"output"`
}

// Failed reports whether the run produced a Failure.
func (inv Invocation) Failed() bool {
	_, ok := inv.Output.(*Failure)
	return ok
}

// Surface is the fixed set of tools the agent may call. It is safe for
// concurrent use.
type Surface struct {
	tools   []typedTool
	byName  map[string]typedTool
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewSurface builds the surface over svc. m may be nil.
func NewSurface(svc *query.Service, logger *zap.Logger, m *metrics.Metrics) *Surface {
	s := &Surface{
		tools: []typedTool{
			NewListCollectionsTool(svc, logger),
			NewSearchCollectionsTool(svc, logger),
			NewFetchSamplesTool(svc, logger),
			NewInferStructureTool(svc, logger),
			NewSearchAndAggregateTool(svc, logger),
		},
		logger:  logger,
		metrics: m,
	}
	s.byName = make(map[string]typedTool, len(s.tools))
	for _, t := range s.tools {
		s.byName[t.Name()] = t
	}
	return s
}

// Tools returns the tools in declaration order.
func (s *Surface) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	for i, t := range s.tools {
		out[i] = t
	}
	return out
}

// Lookup returns the tool with the given name.
func (s *Surface) Lookup(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Invoke decodes rawArgs, runs the named tool and returns the typed
// invocation. The returned error is the reason for a failed run; the
// invocation then carries the matching Failure so callers can pass it back
// to the agent unchanged.
func (s *Surface) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (Invocation, error) {
	inv := Invocation{Name: name}

	t, ok := s.byName[name]
	if !ok {
		err := apperrors.NewInvalidInput(fmt.Sprintf("unknown tool: %s", name)).
			WithSuggestion("Call one of listCollections, searchCollections, fetchSamples, inferStructure, searchAndAggregate")
		inv.Output = NewFailure(err)
		return inv, err
	}

	var args map[string]interface{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			wrapped := invalidArguments(name, fmt.Errorf("arguments are not a JSON object: %w", err))
			inv.Output = NewFailure(wrapped)
			return inv, wrapped
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	ctx, span := tracing.ToolSpan(ctx, name)
	defer span.End()
	if timeout := t.DefaultTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	input, out, err := t.invoke(ctx, args)
	latency := time.Since(start)

	inv.Input = input
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.Warn("Tool failed",
			zap.String("tool", name),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		out = NewFailure(err)
	} else {
		s.logger.Debug("Tool completed",
			zap.String("tool", name),
			zap.Duration("latency", latency),
		)
	}
	inv.Output = out

	if s.metrics != nil {
		s.metrics.RecordToolExecution(name, err == nil, latency)
	}
	return inv, err
}
