package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration, loaded from YAML and
// validated field by field.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server" validate:"required"`

	// Analysis configures batch runs.
	Analysis AnalysisConfig `yaml:"analysis" validate:"required"`

	// Grounding configures the grounded AI collaborator.
	Grounding GroundingConfig `yaml:"grounding" validate:"required"`

	// QueryGen configures the query-generation collaborator.
	QueryGen QueryGenConfig `yaml:"query_generation" validate:"required"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Port int `yaml:"port" validate:"required,min=1,max=65535"`
}

// AnalysisConfig tunes how a batch is processed.
type AnalysisConfig struct {
	// NumQueries is the default number of queries per batch.
	NumQueries int `yaml:"num_queries" validate:"required,min=1,max=50"`

	// MaxConcurrency bounds the query worker pool.
	MaxConcurrency int `yaml:"max_concurrency" validate:"required,min=1,max=32"`

	// QueryTimeout caps one query's AI call plus citation resolution.
	QueryTimeout time.Duration `yaml:"query_timeout" validate:"required,min=1s,max=10m"`

	// ResolveTimeout is the soft per-URL resolution timeout.
	ResolveTimeout time.Duration `yaml:"resolve_timeout" validate:"required,min=1s,max=60s"`

	// ResolveRatePerSecond throttles outbound resolution requests.
	ResolveRatePerSecond float64 `yaml:"resolve_rate_per_second" validate:"min=0"`

	// AutoSave persists each completed batch's results.
	AutoSave bool `yaml:"auto_save"`

	// ReportPath is the JSON document written when AutoSave is on.
	ReportPath string `yaml:"report_path" validate:"required_if=AutoSave true"`
}

// GroundingConfig selects the grounded answer model.
type GroundingConfig struct {
	// Model is the Gemini model used for grounded answers.
	Model string `yaml:"model" validate:"required"`

	// APIKeyEnv names the environment variable holding the API key. The
	// key itself never appears in configuration files.
	APIKeyEnv string `yaml:"api_key_env" validate:"required"`
}

// QueryGenConfig selects the text model that generates queries.
type QueryGenConfig struct {
	// Provider is the chat-completion backend for query generation.
	Provider string `yaml:"provider" validate:"required,oneof=google openai anthropic"`

	// Model is the provider-specific model name; empty uses the
	// provider default.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" validate:"required"`

	// MaxRetries bounds retry attempts for transient generation failures.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`

	// Timeout caps one generation request.
	Timeout time.Duration `yaml:"timeout" validate:"required,min=1s,max=5m"`
}

// DefaultConfig returns the configuration used when a field is omitted.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Analysis: AnalysisConfig{
			NumQueries:           8,
			MaxConcurrency:       DefaultMaxConcurrency,
			QueryTimeout:         DefaultQueryTimeout,
			ResolveTimeout:       8 * time.Second,
			ResolveRatePerSecond: 10,
			AutoSave:             true,
			ReportPath:           "reports/domain_analysis.json",
		},
		Grounding: GroundingConfig{
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GOOGLE_API_KEY",
		},
		QueryGen: QueryGenConfig{
			Provider:   "google",
			APIKeyEnv:  "GOOGLE_API_KEY",
			MaxRetries: 2,
			Timeout:    60 * time.Second,
		},
	}
}

var configValidator = validator.New()

// LoadConfig reads, defaults, and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes over the defaults and
// validates the result. Unknown fields are rejected so typos fail loudly.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := configValidator.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
