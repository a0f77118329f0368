// Package metrics provides metrics collection and reporting for the loglens server.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const namespace = "loglens"

// Prometheus metric labels
const (
	labelTool    = "tool"
	labelStatus  = "status"
	labelOutcome = "outcome"
)

// Turn outcomes
const (
	TurnCompleted = "completed"
	TurnDegraded  = "degraded"
	TurnTimedOut  = "timed_out"
	TurnFailed    = "failed"
)

// Fallback outcomes
const (
	FallbackFound = "found"
	FallbackEmpty = "empty"
)

// Metrics tracks operational metrics with both internal counters and Prometheus metrics
type Metrics struct {
	// Request metrics (internal atomic counters for fast access)
	totalRequests      atomic.Uint64
	successfulRequests atomic.Uint64
	failedRequests     atomic.Uint64
	retriedRequests    atomic.Uint64
	rateLimitHits      atomic.Uint64

	// Latency tracking
	totalLatency atomic.Int64 // microseconds
	latencyCount atomic.Uint64
	maxLatency   atomic.Int64

	// Pipeline counters
	storePages    atomic.Uint64
	storeEvents   atomic.Uint64
	turns         atomic.Uint64
	fallbackRuns  atomic.Uint64
	errorsMu      sync.RWMutex
	errorByStatus map[int]uint64

	// Tool usage tracking
	toolsMu    sync.RWMutex
	toolUsage  map[string]uint64
	toolErrors map[string]uint64

	logger *zap.Logger

	promRequestsTotal  *prometheus.CounterVec
	promRequestsRetry  prometheus.Counter
	promRateLimitHits  prometheus.Counter
	promRequestLatency prometheus.Histogram
	promStorePages     prometheus.Counter
	promStoreEvents    prometheus.Counter
	promToolCalls      *prometheus.CounterVec
	promToolErrors     *prometheus.CounterVec
	promToolLatency    *prometheus.HistogramVec
	promTurns          *prometheus.CounterVec
	promTurnLatency    prometheus.Histogram
	promFallbacks      *prometheus.CounterVec
}

// New creates a metrics tracker whose Prometheus collectors are registered
// with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer, logger *zap.Logger) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		errorByStatus: make(map[int]uint64),
		toolUsage:     make(map[string]uint64),
		toolErrors:    make(map[string]uint64),
		logger:        logger,

		promRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound HTTP requests to the log store and agent runtime, labeled by status code",
		}, []string{labelStatus}),
		promRequestsRetry: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_retried_total",
			Help:      "Total number of retried outbound requests",
		}),
		promRateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of 429 responses received",
		}),
		promRequestLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_latency_seconds",
			Help:      "Outbound request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}),
		promStorePages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_pages_total",
			Help:      "Pages fetched from the log store",
		}),
		promStoreEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_events_total",
			Help:      "Raw events fetched from the log store",
		}),
		promToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls, labeled by tool name",
		}, []string{labelTool}),
		promToolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_errors_total",
			Help:      "Total number of tool errors, labeled by tool name",
		}, []string{labelTool}),
		promToolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Tool execution latency in seconds, labeled by tool name",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{labelTool}),
		promTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversational turns, labeled by outcome",
		}, []string{labelOutcome}),
		promTurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of a turn in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7m
		}),
		promFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_queries_total",
			Help:      "Fallback queries run by the orchestrator, labeled by outcome",
		}, []string{labelOutcome}),
	}
}

// RecordRequest records an outbound HTTP request. statusCode is 0 when no
// response was received.
func (m *Metrics) RecordRequest(success bool, latency time.Duration, statusCode int) {
	m.totalRequests.Add(1)
	m.promRequestsTotal.WithLabelValues(fmt.Sprintf("%d", statusCode)).Inc()
	m.promRequestLatency.Observe(latency.Seconds())

	if success {
		m.successfulRequests.Add(1)
	} else {
		m.failedRequests.Add(1)
		if statusCode != 0 {
			m.errorsMu.Lock()
			m.errorByStatus[statusCode]++
			m.errorsMu.Unlock()
		}
	}

	m.recordLatency(latency)
}

// RecordRetry records a retry attempt
func (m *Metrics) RecordRetry() {
	m.retriedRequests.Add(1)
	m.promRequestsRetry.Inc()
}

// RecordRateLimitHit records a rate limit hit
func (m *Metrics) RecordRateLimitHit() {
	m.rateLimitHits.Add(1)
	m.promRateLimitHits.Inc()
}

// RecordStorePage records one page fetched from the log store.
func (m *Metrics) RecordStorePage(events int) {
	m.storePages.Add(1)
	m.storeEvents.Add(uint64(events))
	m.promStorePages.Inc()
	m.promStoreEvents.Add(float64(events))
}

// RecordToolExecution records one tool invocation.
func (m *Metrics) RecordToolExecution(toolName string, success bool, latency time.Duration) {
	m.toolsMu.Lock()
	m.toolUsage[toolName]++
	if !success {
		m.toolErrors[toolName]++
	}
	m.toolsMu.Unlock()

	m.promToolCalls.WithLabelValues(toolName).Inc()
	m.promToolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
	if !success {
		m.promToolErrors.WithLabelValues(toolName).Inc()
	}
}

// RecordTurn records a finished turn and its outcome.
func (m *Metrics) RecordTurn(outcome string, duration time.Duration) {
	m.turns.Add(1)
	m.promTurns.WithLabelValues(outcome).Inc()
	m.promTurnLatency.Observe(duration.Seconds())
}

// RecordFallback records a fallback query pass.
func (m *Metrics) RecordFallback(outcome string) {
	m.fallbackRuns.Add(1)
	m.promFallbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordLatency(latency time.Duration) {
	latencyUs := latency.Microseconds()

	m.totalLatency.Add(latencyUs)
	m.latencyCount.Add(1)

	for {
		currentMax := m.maxLatency.Load()
		if latencyUs <= currentMax {
			break
		}
		if m.maxLatency.CompareAndSwap(currentMax, latencyUs) {
			break
		}
	}
}

// GetStats returns current statistics
func (m *Metrics) GetStats() Stats {
	m.errorsMu.RLock()
	errorsByStatus := make(map[int]uint64, len(m.errorByStatus))
	for k, v := range m.errorByStatus {
		errorsByStatus[k] = v
	}
	m.errorsMu.RUnlock()

	m.toolsMu.RLock()
	toolUsage := make(map[string]uint64, len(m.toolUsage))
	toolErrors := make(map[string]uint64, len(m.toolErrors))
	for k, v := range m.toolUsage {
		toolUsage[k] = v
	}
	for k, v := range m.toolErrors {
		toolErrors[k] = v
	}
	m.toolsMu.RUnlock()

	var avgLatency time.Duration
	if n := m.latencyCount.Load(); n > 0 {
		avgLatency = time.Duration(float64(m.totalLatency.Load())/float64(n)) * time.Microsecond
	}

	return Stats{
		TotalRequests:      m.totalRequests.Load(),
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		RetriedRequests:    m.retriedRequests.Load(),
		RateLimitHits:      m.rateLimitHits.Load(),
		AverageLatency:     avgLatency,
		MaxLatency:         time.Duration(m.maxLatency.Load()) * time.Microsecond,
		StorePages:         m.storePages.Load(),
		StoreEvents:        m.storeEvents.Load(),
		Turns:              m.turns.Load(),
		FallbackRuns:       m.fallbackRuns.Load(),
		ErrorsByStatus:     errorsByStatus,
		ToolUsage:          toolUsage,
		ToolErrors:         toolErrors,
	}
}

// LogStats logs current statistics
func (m *Metrics) LogStats() {
	stats := m.GetStats()

	var errorRate float64
	if stats.TotalRequests > 0 {
		errorRate = float64(stats.FailedRequests) / float64(stats.TotalRequests) * 100
	}

	m.logger.Info("Operational metrics",
		zap.Uint64("total_requests", stats.TotalRequests),
		zap.Uint64("failed_requests", stats.FailedRequests),
		zap.Float64("error_rate_pct", errorRate),
		zap.Uint64("retried_requests", stats.RetriedRequests),
		zap.Uint64("rate_limit_hits", stats.RateLimitHits),
		zap.Duration("avg_latency", stats.AverageLatency),
		zap.Duration("max_latency", stats.MaxLatency),
		zap.Uint64("store_pages", stats.StorePages),
		zap.Uint64("turns", stats.Turns),
		zap.Uint64("fallback_runs", stats.FallbackRuns),
		zap.Any("tool_usage", stats.ToolUsage),
	)
}

// Stats represents current metrics
type Stats struct {
	TotalRequests      uint64
	SuccessfulRequests uint64
	FailedRequests     uint64
	RetriedRequests    uint64
	RateLimitHits      uint64
	AverageLatency     time.Duration
	MaxLatency         time.Duration
	StorePages         uint64
	StoreEvents        uint64
	Turns              uint64
	FallbackRuns       uint64
	ErrorsByStatus     map[int]uint64
	ToolUsage          map[string]uint64
	ToolErrors         map[string]uint64
}
