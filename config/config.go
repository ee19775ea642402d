// Package config loads relay settings from a YAML file with environment
// overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables applied by ApplyEnv.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvDatabaseDSN  = "RELAY_DATABASE_DSN"
	EnvHTTPAddr     = "RELAY_HTTP_ADDR"
)

// Config is the full service configuration.
type Config struct {
	HTTP         HTTP            `yaml:"http"`
	Provider     Provider        `yaml:"provider"`
	Database     Database        `yaml:"database"`
	Guest        Guest           `yaml:"guest"`
	Limits       PerKind[Limits] `yaml:"limits"`
	Models       Models          `yaml:"models"`
	Prompts      PerKind[string] `yaml:"prompts"`
	Instructions PerKind[string] `yaml:"instructions"`
	Agent        Agent           `yaml:"agent"`
	Telemetry    Telemetry       `yaml:"telemetry"`
	Tokenizer    string          `yaml:"tokenizer"`
	Policy       string          `yaml:"policy"`
	Workspace    string          `yaml:"workspace"`
	Log          Log             `yaml:"log"`
}

// PerKind holds one value per session kind.
type PerKind[T any] struct {
	Guest         T `yaml:"guest"`
	Authenticated T `yaml:"authenticated"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Provider struct {
	Name      string    `yaml:"name"`
	OpenAI    OpenAI    `yaml:"openai"`
	Gemini    Gemini    `yaml:"gemini"`
	Anthropic Anthropic `yaml:"anthropic"`
}

type OpenAI struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type Gemini struct {
	APIKey string `yaml:"api_key"`
}

type Anthropic struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Guest configures the in-memory guest store.
type Guest struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Limits bounds the history sent to the model. Zero is unlimited.
type Limits struct {
	MaxMessages int `yaml:"max_messages"`
	MaxTokens   int `yaml:"max_tokens"`
}

// Tier names a model per message complexity.
type Tier struct {
	Simple  string `yaml:"simple"`
	Complex string `yaml:"complex"`
}

// Models is the model selection table.
type Models struct {
	Guest         Tier   `yaml:"guest"`
	Authenticated Tier   `yaml:"authenticated"`
	Fallback      string `yaml:"fallback"`
}

type Agent struct {
	MaxIterations   int `yaml:"max_iterations"`
	Parallelism     int `yaml:"parallelism"`
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// Telemetry configures the error-reporting sink. An empty URL disables it.
type Telemetry struct {
	URL     string        `yaml:"url"`
	Source  string        `yaml:"source"`
	Timeout time.Duration `yaml:"timeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:     HTTP{Addr: ":8080"},
		Provider: Provider{Name: "openai"},
		Database: Database{Driver: "sqlite", DSN: "relay.db"},
		Guest:    Guest{TTL: 30 * time.Minute, SweepInterval: time.Minute},
		Limits: PerKind[Limits]{
			Guest:         Limits{MaxMessages: 30, MaxTokens: 8000},
			Authenticated: Limits{MaxMessages: 100, MaxTokens: 32000},
		},
		Agent:     Agent{MaxIterations: 10, Parallelism: 1},
		Telemetry: Telemetry{Source: "relay", Timeout: 5 * time.Second},
		Tokenizer: "chars",
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and addresses from getenv. Empty values are
// ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Provider.OpenAI.APIKey, EnvOpenAIKey)
	set(&c.Provider.Gemini.APIKey, EnvGeminiKey)
	set(&c.Provider.Anthropic.APIKey, EnvAnthropicKey)
	set(&c.Database.DSN, EnvDatabaseDSN)
	set(&c.HTTP.Addr, EnvHTTPAddr)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider.Name {
	case "openai", "gemini", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("provider.name: unknown provider %q", c.Provider.Name))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	switch c.Tokenizer {
	case "chars", "tiktoken":
	default:
		errs = append(errs, fmt.Errorf("tokenizer: unknown tokenizer %q", c.Tokenizer))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Guest.TTL < 0 || c.Guest.SweepInterval < 0 {
		errs = append(errs, errors.New("guest: durations must not be negative"))
	}
	if c.Guest.TTL > 0 && c.Guest.SweepInterval == 0 {
		errs = append(errs, errors.New("guest.sweep_interval: required when ttl is set"))
	}
	for name, l := range map[string]Limits{"guest": c.Limits.Guest, "authenticated": c.Limits.Authenticated} {
		if l.MaxMessages < 0 || l.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("limits.%s: must not be negative", name))
		}
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("agent.max_iterations: must be at least 1"))
	}
	if c.Agent.Parallelism < 1 {
		errs = append(errs, errors.New("agent.parallelism: must be at least 1"))
	}
	if c.Agent.MaxOutputTokens < 0 {
		errs = append(errs, errors.New("agent.max_output_tokens: must not be negative"))
	}
	return errors.Join(errs...)
}

// APIKey returns the key of the selected provider.
func (c Config) APIKey() string {
	switch c.Provider.Name {
	case "gemini":
		return c.Provider.Gemini.APIKey
	case "anthropic":
		return c.Provider.Anthropic.APIKey
	default:
		return c.Provider.OpenAI.APIKey
	}
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return l, nil
}
