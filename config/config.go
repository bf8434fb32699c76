// Package config loads the YAML configuration used by the reactmesh CLI and
// turns it into a model, a logger and façade options.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/reactmesh"
	"github.com/hupe1980/reactmesh/executor"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/model/anthropic"
	"github.com/hupe1980/reactmesh/model/openai"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Config is the on-disk configuration.
type Config struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	// APIKey is optional; provider SDKs fall back to their environment variables.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	MaxIterations     int           `yaml:"max_iterations"`
	ToolTimeout       time.Duration `yaml:"tool_timeout"`
	EarlyStopping     string        `yaml:"early_stopping"`
	Stream            bool          `yaml:"stream"`
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs"`

	RateLimitRPM   float64 `yaml:"rate_limit_rpm"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	Log LogConfig `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		MaxTokens:         1024,
		MaxIterations:     executor.DefaultMaxIterations,
		ToolTimeout:       30 * time.Second,
		EarlyStopping:     string(executor.EarlyStoppingRecover),
		MaxConcurrentRuns: reactmesh.DefaultMaxConcurrentRuns,
		RateLimitBurst:    1,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads, parses and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
// ${VAR} references are expanded from the environment first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		invalid("provider must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.Provider)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		invalid("temperature must be between 0 and 2, got %g", c.Temperature)
	}

	if c.MaxTokens <= 0 {
		invalid("max_tokens must be positive, got %d", c.MaxTokens)
	}

	if c.MaxIterations <= 0 {
		invalid("max_iterations must be positive, got %d", c.MaxIterations)
	}

	if c.ToolTimeout < 0 {
		invalid("tool_timeout must not be negative, got %s", c.ToolTimeout)
	}

	switch executor.EarlyStopping(c.EarlyStopping) {
	case executor.EarlyStoppingRecover, executor.EarlyStoppingForce:
	default:
		invalid("early_stopping must be %q or %q, got %q", executor.EarlyStoppingRecover, executor.EarlyStoppingForce, c.EarlyStopping)
	}

	if c.MaxConcurrentRuns <= 0 {
		invalid("max_concurrent_runs must be positive, got %d", c.MaxConcurrentRuns)
	}

	if c.RateLimitRPM < 0 {
		invalid("rate_limit_rpm must not be negative, got %g", c.RateLimitRPM)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		invalid("log.format must be json or text, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// NewModel builds the configured provider model, rate limited when
// rate_limit_rpm is set.
func (c *Config) NewModel() (model.Model, error) {
	var m model.Model

	switch c.Provider {
	case ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if c.Model != "" {
				o.Model = c.Model
			}
			o.Temperature = c.Temperature
			o.MaxCompletionTokens = c.MaxTokens
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
		})
	case ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if c.Model != "" {
				o.Model = sdk.Model(c.Model)
			}
			o.Temperature = c.Temperature
			o.MaxTokens = c.MaxTokens
			o.APIKey = c.APIKey
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}

	return model.RateLimited(m, model.NewLimiter(c.RateLimitRPM, c.RateLimitBurst)), nil
}

// NewLogger builds a ReactLogger writing to w.
func (c *Config) NewLogger(w io.Writer) *logging.ReactLogger {
	level, _ := logging.ParseLevel(c.Log.Level)

	cfg := logging.DefaultLoggerConfig()
	cfg.Level = level
	cfg.Format = strings.ToLower(c.Log.Format)
	cfg.Output = w

	return logging.NewLogger(cfg)
}

// Apply copies the run settings into façade options.
func (c *Config) Apply(o *reactmesh.Options) {
	o.MaxIterations = c.MaxIterations
	o.ToolTimeout = c.ToolTimeout
	o.EarlyStopping = executor.EarlyStopping(c.EarlyStopping)
	o.Stream = c.Stream
	o.MaxConcurrentRuns = c.MaxConcurrentRuns
}
