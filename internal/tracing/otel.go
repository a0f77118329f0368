// Package tracing provides distributed tracing support using OpenTelemetry.
package tracing

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tareqmamari/loglens"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	// Writer receives exported spans. Defaults to stderr so stdout stays
	// free for the stdio transport.
	Writer io.Writer
}

// InitOTel initializes OpenTelemetry with the given configuration.
// Returns a shutdown function that should be called on application exit.
func InitOTel(cfg OTelConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// tracer returns the tracer from the global provider, which is a no-op until
// InitOTel installs a real one.
func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// SpanKind represents the role of a span
type SpanKind string

// Span kinds for categorizing trace spans
const (
	SpanKindTurn  SpanKind = "turn"
	SpanKindTool  SpanKind = "tool"
	SpanKindHTTP  SpanKind = "http"
	SpanKindStore SpanKind = "store"
)

// TurnSpan starts the root span of a conversational turn.
func TurnSpan(ctx context.Context, turnID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "loglens.turn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("loglens.turn.id", turnID),
			attribute.String("loglens.span.kind", string(SpanKindTurn)),
		),
	)
}

// ToolSpan starts a new span for a tool execution
func ToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "loglens.tool."+toolName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("loglens.tool.name", toolName),
			attribute.String("loglens.span.kind", string(SpanKindTool)),
		),
	)
}

// HTTPSpan starts a new span for an outbound HTTP call
func HTTPSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "loglens.http."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", path),
			attribute.String("loglens.span.kind", string(SpanKindHTTP)),
		),
	)
}

// StoreSpan starts a new span for a log store query over one collection.
func StoreSpan(ctx context.Context, operation, collection string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "loglens.store."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("loglens.store.collection", collection),
			attribute.String("loglens.span.kind", string(SpanKindStore)),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetResultCount records how many items an operation produced.
func SetResultCount(span trace.Span, count int) {
	span.SetAttributes(attribute.Int("loglens.result.count", count))
}

// TraceID returns the trace id of the span in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
