// Package server exposes the orchestrator and the tool surface: the NDJSON
// chat endpoint, the MCP server over stdio or streamable HTTP, health probes
// and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tareqmamari/loglens/internal/config"
	"github.com/tareqmamari/loglens/internal/health"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/orchestrator"
	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/tools"
)

// Options holds the dependencies of a Server.
type Options struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer // nil means the default gatherer
	Orchestrator *orchestrator.Orchestrator
	Service      *query.Service
	Surface      *tools.Surface
	Checker      *health.Checker
	Version      string
}

// Server represents the loglens server
type Server struct {
	mcpServer    *mcp.Server
	orchestrator *orchestrator.Orchestrator
	svc          *query.Service
	surface      *tools.Surface
	config       *config.Config
	logger       *zap.Logger
	metrics      *metrics.Metrics
	health       *health.Handler
	handler      http.Handler
	version      string
}

// New creates a server and registers the tools, prompts and resources with
// its MCP server.
func New(opts Options) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "loglens",
		Version: opts.Version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})

	s := &Server{
		mcpServer:    mcpServer,
		orchestrator: opts.Orchestrator,
		svc:          opts.Service,
		surface:      opts.Surface,
		config:       opts.Config,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		health:       health.NewHandler(opts.Checker, opts.Logger),
		version:      opts.Version,
	}

	s.registerTools()
	s.registerPrompts()
	s.registerResources()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil))
	s.health.Register(mux)
	if opts.Config.MetricsEndpoint {
		gatherer := opts.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.handler = mux

	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// newHTTPServer builds the HTTP server. There is no server-wide write
// timeout: MCP sessions are long-lived, and /api/chat sets its own deadline.
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.config.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// ListenAndServe serves HTTP on the configured address until ctx is done,
// then shuts down gracefully within ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := s.newHTTPServer()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting HTTP server",
			zap.String("addr", s.config.HTTPAddr),
			zap.Bool("metrics_enabled", s.config.MetricsEndpoint),
		)
		s.health.SetReady(true)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.health.SetReady(false)
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.logStats()
	return err
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("Starting MCP server over stdio")
	defer s.logStats()
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) logStats() {
	if s.metrics != nil {
		s.metrics.LogStats()
	}
}
