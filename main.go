// Package main implements loglens, a conversational log explorer.
//
// A user message is handed to a tool-calling LLM agent that discovers log
// collections, samples them and aggregates them through a small tool
// surface. The turn's steps and its final result are streamed back as
// newline-delimited JSON from POST /api/chat. The same tools are exposed to
// MCP clients over stdio or streamable HTTP at /mcp.
//
// Configuration is provided through environment variables (see
// internal/config), an optional JSON file, and flags:
//
//	-config     path to a JSON config file (or CONFIG_FILE)
//	-addr       HTTP listen address, overrides HTTP_ADDR
//	-transport  http (default) or stdio
//
// Flags may also be set as LOGLENS_-prefixed environment variables.
//
// Set STORE_URL=memory:// to run against a seeded in-process store.
//
// Example usage:
//
//	export STORE_URL="https://logs.example.com"
//	export STORE_API_KEY="<your-api-key>"
//	export LLM_API_KEY="<your-llm-key>"
//	./loglens
//	./loglens count /app/prod/api
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/tareqmamari/loglens/internal/agent"
	"github.com/tareqmamari/loglens/internal/auth"
	"github.com/tareqmamari/loglens/internal/client"
	"github.com/tareqmamari/loglens/internal/config"
	"github.com/tareqmamari/loglens/internal/health"
	"github.com/tareqmamari/loglens/internal/metrics"
	"github.com/tareqmamari/loglens/internal/orchestrator"
	"github.com/tareqmamari/loglens/internal/query"
	"github.com/tareqmamari/loglens/internal/server"
	"github.com/tareqmamari/loglens/internal/store"
	"github.com/tareqmamari/loglens/internal/tools"
	"github.com/tareqmamari/loglens/internal/tracing"
)

// Build information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

// memoryStoreURL selects the seeded in-process store.
const memoryStoreURL = "memory://"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "loglens: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Load .env file if it exists (optional, for development)
	_ = godotenv.Load()

	fs := flag.NewFlagSet("loglens", flag.ContinueOnError)
	var (
		configFile = fs.String("config", "", "path to a JSON config file")
		addr       = fs.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
		transport  = fs.String("transport", "http", "serving transport: http or stdio")
		window     = fs.Duration("window", 24*time.Hour, "time window for the count command")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: loglens [flags] [count <collection>]\n\n")
		fs.PrintDefaults()
	}
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("LOGLENS")); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *configFile == "" {
		*configFile = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Ignore error on cleanup
	}()

	shutdownTracing, err := tracing.InitOTel(tracing.OTelConfig{
		ServiceName:    "loglens",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Enabled:        cfg.EnableTracing,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, logger)

	st, credentials, closeStore := buildStore(cfg, logger, m)
	defer closeStore()
	svc := query.NewService(st, cfg, logger, m, clock.New())

	switch cmd := fs.Arg(0); cmd {
	case "":
	case "count":
		return runCount(ctx, svc, fs.Arg(1), *window)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	logger.Info("Starting loglens",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("transport", *transport),
		zap.String("store", cfg.StoreURL),
		zap.String("model", cfg.LLMModel),
	)

	surface := tools.NewSurface(svc, logger, m)
	a, closeAgent := buildAgent(cfg, logger, m)
	defer closeAgent()

	srv := server.New(server.Options{
		Config:       cfg,
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		Orchestrator: orchestrator.New(a, surface, svc, cfg, logger, m, clock.New()),
		Service:      svc,
		Surface:      surface,
		Checker:      health.New(st, credentials, logger),
		Version:      version,
	})

	var serve func(context.Context) error
	switch *transport {
	case "http":
		serve = srv.ListenAndServe
	case "stdio":
		serve = srv.ServeStdio
	default:
		return fmt.Errorf("unknown transport %q: expected http or stdio", *transport)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Initiating graceful shutdown", zap.Duration("timeout", cfg.ShutdownTimeout))
		return shutdownTracing(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server shutdown complete")
	return nil
}

// buildStore selects the log store from STORE_URL. Missing settings yield a
// store that fails every call with the configuration error, so the server
// still starts and reports the problem on first use.
func buildStore(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (store.Store, health.TokenSource, func()) {
	noop := func() {}

	if strings.EqualFold(cfg.StoreURL, memoryStoreURL) {
		logger.Info("Using the in-memory demo store")
		return store.NewDemoStore(time.Now()), nil, noop
	}
	if err := cfg.ValidateStore(); err != nil {
		logger.Warn("Log store is not configured", zap.Error(err))
		return store.Unavailable(err), nil, noop
	}

	authenticator, err := auth.NewIAM(cfg.StoreAPIKey, cfg.StoreIAMURL, logger)
	if err != nil {
		logger.Warn("Failed to create store authenticator", zap.Error(err))
		return store.Unavailable(err), nil, noop
	}
	c := client.New(client.OptionsFromConfig(cfg, cfg.StoreURL, version), authenticator, logger, m)
	return store.NewHTTPStore(c, logger), authenticator, func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close store client", zap.Error(err))
		}
	}
}

// buildAgent returns the LLM agent, or one that fails every run when the
// agent runtime is not configured.
func buildAgent(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (agent.Agent, func()) {
	noop := func() {}

	if err := cfg.ValidateAgent(); err != nil {
		logger.Warn("Agent runtime is not configured", zap.Error(err))
		return agent.Unavailable(err), noop
	}
	authenticator, err := auth.NewBearer(cfg.LLMAPIKey, logger)
	if err != nil {
		logger.Warn("Failed to create agent authenticator", zap.Error(err))
		return agent.Unavailable(err), noop
	}
	c := client.New(client.OptionsFromConfig(cfg, cfg.LLMBaseURL, version), authenticator, logger, m)
	return agent.NewOpenAI(c, agent.OptionsFromConfig(cfg), logger), func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close agent client", zap.Error(err))
		}
	}
}

// runCount prints the number of events in collection over window.
func runCount(ctx context.Context, svc *query.Service, collection string, window time.Duration) error {
	collection = svc.ResolveCollection(collection)
	n, err := svc.CountEvents(ctx, collection, window)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d events in the last %s\n", collection, n, window)
	return nil
}

// initLogger creates a production logger if ENVIRONMENT=production,
// otherwise a development logger, at LOG_LEVEL.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
