package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
)

func TestConfigDefaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1000, cfg.MaxResultsPerQuery)
	assert.Equal(t, 24, cfg.DefaultTimeRangeHours)
	assert.Equal(t, 24*time.Hour, cfg.DefaultWindow())
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, 5*time.Minute, cfg.TurnTimeout)
	assert.True(t, cfg.TLSVerify)
	assert.True(t, cfg.EnableRateLimit)
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORE_URL", "https://logs.example.internal")
	t.Setenv("STORE_API_KEY", "test-api-key") // pragma: allowlist secret
	t.Setenv("DEFAULT_COLLECTION", "/aws/app/api")
	t.Setenv("MAX_RESULTS_PER_QUERY", "250")
	t.Setenv("DEFAULT_TIME_RANGE_HOURS", "6")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("TURN_TIMEOUT", "90s")
	t.Setenv("ENABLE_RATE_LIMIT", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://logs.example.internal", cfg.StoreURL)
	assert.Equal(t, "/aws/app/api", cfg.DefaultCollection)
	assert.Equal(t, 250, cfg.MaxResultsPerQuery)
	assert.Equal(t, 6, cfg.DefaultTimeRangeHours)
	assert.InDelta(t, 0.3, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.TurnTimeout)
	assert.False(t, cfg.EnableRateLimit)
	assert.NoError(t, cfg.ValidateStore())
}

func TestLoadFromFileThenEnv(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "loglens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default_collection":"from-file","llm_model":"file-model"}`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LLM_MODEL", "env-model")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.DefaultCollection)
	assert.Equal(t, "env-model", cfg.LLMModel, "environment takes precedence over the file")
	assert.Equal(t, 1000, cfg.MaxResultsPerQuery, "defaults survive when neither source sets a value")
}

func TestLoadRejectsTraversal(t *testing.T) {
	os.Clearenv()
	t.Setenv("CONFIG_FILE", "../../etc/passwd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }, true},
		{"zero rate limit when disabled", func(c *Config) { c.RateLimit = 0; c.EnableRateLimit = false }, false},
		{"zero page size", func(c *Config) { c.MaxResultsPerQuery = 0 }, true},
		{"zero window", func(c *Config) { c.DefaultTimeRangeHours = 0 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStoreMissingCredentials(t *testing.T) {
	cfg := Default()
	cfg.StoreURL = "https://logs.example.internal"

	err := cfg.ValidateStore()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConfiguration))
	assert.Contains(t, err.Error(), "STORE_API_KEY")
}

func TestConfigRedact(t *testing.T) {
	cfg := Default()
	cfg.StoreAPIKey = "secret-key-12345" // pragma: allowlist secret
	cfg.LLMAPIKey = "short"               // pragma: allowlist secret

	redacted := cfg.Redact()

	assert.Equal(t, "secr...2345", redacted.StoreAPIKey)
	assert.Equal(t, "***REDACTED***", redacted.LLMAPIKey)
	assert.Equal(t, "secret-key-12345", cfg.StoreAPIKey, "original must not be modified") // pragma: allowlist secret
}
