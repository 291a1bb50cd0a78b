// Package config loads the settings shared by every assistant: model
// provider, logging, data locations and the optional integrations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderScripted  = "scripted"
)

type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Log     LogConfig     `yaml:"log"`
	DataDir string        `yaml:"data_dir"`
	HTTP    HTTPConfig    `yaml:"http"`
	Search  SearchConfig  `yaml:"search"`
	Support SupportConfig `yaml:"support"`
	Server  ServerConfig  `yaml:"server"`
}

type ModelConfig struct {
	Provider        string  `yaml:"provider"`    // openai | anthropic | scripted
	Name            string  `yaml:"name"`        // provider default when empty
	Temperature     float64 `yaml:"temperature"` // default 0.7
	MaxTokens       int64   `yaml:"max_tokens"`  // default 4096
	BaseURL         string  `yaml:"base_url"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // default "info"
	Format string `yaml:"format"` // "console" or "json"
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"` // default 10s
	// RequestsPerSecond throttles calls to third-party APIs.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type SearchConfig struct {
	GoogleAPIKey string `yaml:"google_api_key"`
	GoogleCX     string `yaml:"google_cx"`
}

type SupportConfig struct {
	DatabaseURL       string `yaml:"database_url"`       // pgvector when set
	EmbeddingProvider string `yaml:"embedding_provider"` // hashing | openai
	EmbeddingModel    string `yaml:"embedding_model"`
	TopK              int    `yaml:"top_k"`
}

type ServerConfig struct {
	Addr           string  `yaml:"addr"` // default ":8080"
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		DataDir: "data",
		HTTP: HTTPConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
		Support: SupportConfig{
			EmbeddingProvider: "hashing",
			EmbeddingModel:    "text-embedding-3-small",
			TopK:              3,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimitRPS:   100,
			RateLimitBurst: 20,
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path (or
// ASSISTANTS_CONFIG), the .env file named by ASSISTANTS_ENV (default .env)
// plus its .secret sidecar, and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("ASSISTANTS_CONFIG")
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	envFile := os.Getenv("ASSISTANTS_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing env files are fine; godotenv never overrides variables that
	// are already set.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// applyEnv overrides fields with non-empty variables returned by getenv.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("MODEL_PROVIDER", &c.Model.Provider)
	str("MODEL_NAME", &c.Model.Name)
	str("MODEL_BASE_URL", &c.Model.BaseURL)
	str("OPENAI_API_KEY", &c.Model.OpenAIAPIKey)
	str("ANTHROPIC_API_KEY", &c.Model.AnthropicAPIKey)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DATA_DIR", &c.DataDir)
	str("GOOGLE_SEARCH_API_KEY", &c.Search.GoogleAPIKey)
	str("GOOGLE_SEARCH_CX", &c.Search.GoogleCX)
	str("DATABASE_URL", &c.Support.DatabaseURL)
	str("EMBEDDING_PROVIDER", &c.Support.EmbeddingProvider)
	str("EMBEDDING_MODEL", &c.Support.EmbeddingModel)
	str("SERVER_ADDR", &c.Server.Addr)

	if v := getenv("HTTP_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("HTTP_TIMEOUT: %w", err)
		}

		c.HTTP.Timeout = d
	}

	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS: invalid value %q", v)
		}

		c.Server.RateLimitRPS = rps
	}

	return nil
}

// parseDuration accepts Go durations ("15s") and plain seconds ("15").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	return time.ParseDuration(v)
}

// Validate checks that the selected provider can be used.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOpenAI:
		if c.Model.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY not found in environment variables")
		}
	case ProviderAnthropic:
		if c.Model.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY not found in environment variables")
		}
	case ProviderScripted:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}

	if c.HTTP.Timeout <= 0 {
		return errors.New("http timeout must be positive")
	}

	return nil
}

// Path joins elem below DataDir.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// FinanceDBPath is the SQLite file of the finance assistant.
func (c *Config) FinanceDBPath() string { return c.Path("finance.db") }

// VectorDBPath is the SQLite file of the support knowledge base.
func (c *Config) VectorDBPath() string { return c.Path("vectordb", "knowledge.db") }

// KnowledgeDir holds the documents loaded into an empty knowledge base.
func (c *Config) KnowledgeDir() string { return c.Path("knowledge") }

// TicketsDBPath is the bbolt file of the support ticket system.
func (c *Config) TicketsDBPath() string { return c.Path("tickets", "tickets.db") }

// ReportsDir is where research reports are written. It is relative to the
// working directory, not DataDir.
func (c *Config) ReportsDir() string { return "reports" }
