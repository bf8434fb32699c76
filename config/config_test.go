package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh"
	"github.com/hupe1980/reactmesh/executor"
	"github.com/hupe1980/reactmesh/model"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, executor.DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, reactmesh.DefaultMaxConcurrentRuns, cfg.MaxConcurrentRuns)
}

func TestParse_OverridesDefaults(t *testing.T) {
	t.Setenv("REACTMESH_TEST_KEY", "sk-ant-test")

	cfg, err := Parse([]byte(`
provider: anthropic
model: claude-3-5-haiku-latest
temperature: 0.2
api_key: ${REACTMESH_TEST_KEY}
max_iterations: 5
tool_timeout: 2s
early_stopping: force
rate_limit_rpm: 30
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Model)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, "sk-ant-test", cfg.APIKey)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 2*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "force", cfg.EarlyStopping)
	assert.Equal(t, 30.0, cfg.RateLimitRPM)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, int64(1024), cfg.MaxTokens)
	assert.Equal(t, reactmesh.DefaultMaxConcurrentRuns, cfg.MaxConcurrentRuns)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"provider", "provider: ollama", "provider"},
		{"iterations", "max_iterations: 0", "max_iterations"},
		{"timeout", "tool_timeout: -1s", "tool_timeout"},
		{"early stopping", "early_stopping: maybe", "early_stopping"},
		{"concurrency", "max_concurrent_runs: -2", "max_concurrent_runs"},
		{"temperature", "temperature: 3", "temperature"},
		{"log level", "log: {level: loud}", "log.level"},
		{"log format", "log: {format: xml}", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_ReportsAllErrors(t *testing.T) {
	_, err := Parse([]byte("provider: x\nmax_iterations: -1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
	assert.Contains(t, err.Error(), "max_iterations")
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("provider: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 7\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxIterations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "test"
	cfg.Model = "gpt-test"

	m, err := cfg.NewModel()
	require.NoError(t, err)
	assert.Equal(t, model.Info{Name: "gpt-test", Provider: "openai"}, m.Info())

	cfg.Provider = ProviderAnthropic
	cfg.Model = "claude-test"
	cfg.RateLimitRPM = 60

	m, err = cfg.NewModel()
	require.NoError(t, err)
	assert.IsType(t, &model.RateLimitedModel{}, m)
	assert.Equal(t, model.Info{Name: "claude-test", Provider: "anthropic"}, m.Info())

	cfg.Provider = "nope"
	_, err = cfg.NewModel()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log = LogConfig{Level: "warn", Format: "json"}

	l := cfg.NewLogger(&buf)
	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestApply(t *testing.T) {
	cfg := Default()
	cfg.MaxIterations = 4
	cfg.EarlyStopping = "force"
	cfg.MaxConcurrentRuns = 8

	var o reactmesh.Options
	cfg.Apply(&o)

	assert.Equal(t, 4, o.MaxIterations)
	assert.Equal(t, executor.EarlyStoppingForce, o.EarlyStopping)
	assert.Equal(t, 8, o.MaxConcurrentRuns)
	assert.Equal(t, 30*time.Second, o.ToolTimeout)
}
