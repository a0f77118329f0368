// Package config provides configuration management for the loglens server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
)

// Config holds all configuration for the server. It is built once in main
// and passed by pointer to every component constructor.
type Config struct {
	// Log store
	StoreURL    string `json:"store_url" env:"STORE_URL"`
	StoreAPIKey string `json:"store_api_key,omitempty" env:"STORE_API_KEY"` // env only in practice
	StoreIAMURL string `json:"store_iam_url,omitempty" env:"STORE_IAM_URL"`
	StoreRegion string `json:"store_region" env:"STORE_REGION"`

	// Query defaults
	DefaultCollection     string        `json:"default_collection,omitempty" env:"DEFAULT_COLLECTION"`
	MaxResultsPerQuery    int           `json:"max_results_per_query" env:"MAX_RESULTS_PER_QUERY"`
	DefaultTimeRangeHours int           `json:"default_time_range_hours" env:"DEFAULT_TIME_RANGE_HOURS"`
	CollectionListLimit   int           `json:"collection_list_limit" env:"COLLECTION_LIST_LIMIT"`
	CollectionCacheTTL    time.Duration `json:"collection_cache_ttl" env:"COLLECTION_CACHE_TTL"`

	// Agent runtime
	LLMBaseURL     string  `json:"llm_base_url" env:"LLM_BASE_URL"`
	LLMAPIKey      string  `json:"llm_api_key,omitempty" env:"LLM_API_KEY"`
	LLMModel       string  `json:"llm_model" env:"LLM_MODEL"`
	LLMTemperature float64 `json:"llm_temperature" env:"LLM_TEMPERATURE"`
	LLMMaxSteps    int     `json:"llm_max_steps" env:"LLM_MAX_STEPS"`

	// Turn handling
	TurnTimeout time.Duration `json:"turn_timeout" env:"TURN_TIMEOUT"`

	// HTTP Client Configuration
	Timeout         time.Duration `json:"timeout" env:"TIMEOUT"`
	MaxRetries      int           `json:"max_retries" env:"MAX_RETRIES"`
	RetryWaitMin    time.Duration `json:"retry_wait_min" env:"RETRY_WAIT_MIN"`
	RetryWaitMax    time.Duration `json:"retry_wait_max" env:"RETRY_WAIT_MAX"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" env:"IDLE_CONN_TIMEOUT"`

	// Rate Limiting
	RateLimit       int  `json:"rate_limit" env:"RATE_LIMIT"`             // requests per second
	RateLimitBurst  int  `json:"rate_limit_burst" env:"RATE_LIMIT_BURST"` // burst size
	EnableRateLimit bool `json:"enable_rate_limit" env:"ENABLE_RATE_LIMIT"`

	// Security
	TLSVerify bool `json:"tls_verify" env:"TLS_VERIFY"`

	// Inbound HTTP
	HTTPAddr        string        `json:"http_addr" env:"HTTP_ADDR"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// Observability
	EnableTracing   bool   `json:"enable_tracing" env:"ENABLE_TRACING"`
	MetricsEndpoint bool   `json:"metrics_endpoint" env:"METRICS_ENDPOINT"`
	Environment     string `json:"environment" env:"ENVIRONMENT"`

	// Logging
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		StoreRegion:           "us-east-1",
		MaxResultsPerQuery:    1000,
		DefaultTimeRangeHours: 24,
		CollectionListLimit:   50,
		CollectionCacheTTL:    30 * time.Second,
		LLMBaseURL:            "https://api.openai.com/v1",
		LLMModel:              "gpt-4o",
		LLMTemperature:        0,
		LLMMaxSteps:           8,
		TurnTimeout:           5 * time.Minute,
		Timeout:               30 * time.Second,
		MaxRetries:            3,
		RetryWaitMin:          1 * time.Second,
		RetryWaitMax:          30 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		RateLimit:             20,
		RateLimitBurst:        5,
		EnableRateLimit:       true,
		TLSVerify:             true,
		HTTPAddr:              "127.0.0.1:8080",
		ShutdownTimeout:       10 * time.Second,
		EnableTracing:         false,
		MetricsEndpoint:       true,
		LogLevel:              "info",
	}
}

// Load builds the configuration from defaults, an optional JSON file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Fields without a matching environment variable keep their current value.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid file path: path traversal detected")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is validated above
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return json.Unmarshal(data, cfg)
}

// Validate checks settings that every mode needs. Store credentials are
// checked separately by ValidateStore so that the server can start and
// report a descriptive error on first use.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.RateLimit <= 0 && c.EnableRateLimit {
		return errors.New("rate_limit must be positive when rate limiting is enabled")
	}
	if c.MaxResultsPerQuery <= 0 {
		return errors.New("max_results_per_query must be positive")
	}
	if c.DefaultTimeRangeHours <= 0 {
		return errors.New("default_time_range_hours must be positive")
	}
	if c.LLMMaxSteps <= 0 {
		return errors.New("llm_max_steps must be positive")
	}
	if c.TurnTimeout <= 0 {
		return errors.New("turn_timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// ValidateStore reports a configuration error when the log store cannot be
// reached with the current settings.
func (c *Config) ValidateStore() error {
	if c.StoreURL == "" {
		return apperrors.NewConfiguration("STORE_URL is required to reach the log store")
	}
	if c.StoreAPIKey == "" {
		return apperrors.NewConfiguration("STORE_API_KEY is required: no credentials configured for the log store")
	}
	return nil
}

// ValidateAgent reports a configuration error when the LLM runtime is not configured.
func (c *Config) ValidateAgent() error {
	if c.LLMAPIKey == "" {
		return apperrors.NewConfiguration("LLM_API_KEY is required to run the agent")
	}
	return nil
}

// DefaultWindow returns the default query window as a duration.
func (c *Config) DefaultWindow() time.Duration {
	return time.Duration(c.DefaultTimeRangeHours) * time.Hour
}

// Redact returns a copy of the config with sensitive data removed
func (c *Config) Redact() *Config {
	redacted := *c
	redacted.StoreAPIKey = MaskAPIKey(redacted.StoreAPIKey)
	redacted.LLMAPIKey = MaskAPIKey(redacted.LLMAPIKey)
	return &redacted
}

// MaskAPIKey returns a masked version of an API key for safe logging
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***REDACTED***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}
