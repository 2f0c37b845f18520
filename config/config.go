// Package config loads stackctl settings from defaults, a YAML file, a .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/smallnest/genaistack/client"
	"github.com/smallnest/genaistack/log"
	"github.com/smallnest/genaistack/workflow"
)

// Default values.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultLogLevel = "info"
	DefaultPrefix   = "stack:"
)

// Environment variables read by Load.
const (
	EnvBaseURL        = "STACK_BASE_URL"
	EnvToken          = "STACK_TOKEN"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvSerpAPIKey     = "SERP_API_KEY"
	EnvEmbeddingModel = "STACK_EMBEDDING_MODEL"
	EnvTimeout        = "STACK_TIMEOUT"
	EnvLogLevel       = "STACK_LOG_LEVEL"
	EnvDraftDriver    = "STACK_DRAFT_DRIVER"
	EnvDraftDSN       = "STACK_DRAFT_DSN"
	EnvDraftPrefix    = "STACK_DRAFT_PREFIX"
	EnvDraftTTL       = "STACK_DRAFT_TTL"
)

// Config holds everything a stackctl command needs.
type Config struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	Token          string        `yaml:"token"`
	GeminiAPIKey   string        `yaml:"gemini_api_key"`
	SerpAPIKey     string        `yaml:"serp_api_key"`
	EmbeddingModel string        `yaml:"embedding_model" validate:"required"`
	Timeout        time.Duration `yaml:"timeout" validate:"gte=0"`
	LogLevel       string        `yaml:"log_level" validate:"oneof=debug info warn warning error none off"`
	Drafts         DraftConfig   `yaml:"drafts"`
}

// DraftConfig selects where failed saves are kept. An empty driver turns
// drafts off.
type DraftConfig struct {
	Driver string        `yaml:"driver" validate:"omitempty,oneof=memory sqlite redis postgres"`
	DSN    string        `yaml:"dsn"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Options tell Load where to look. Empty paths are skipped.
type Options struct {
	File   string
	DotEnv string

	// Lookup replaces os.LookupEnv, mainly for tests.
	Lookup func(key string) (string, bool)
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:        client.DefaultBaseURL,
		EmbeddingModel: client.DefaultEmbeddingModel,
		Timeout:        DefaultTimeout,
		LogLevel:       DefaultLogLevel,
		Drafts:         DraftConfig{Prefix: DefaultPrefix},
	}
}

// Load builds a Config. Later sources win: defaults, the YAML file, the .env
// file, then the process environment. A missing file is not an error.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := cfg.loadYAML(opts.File); err != nil {
			return nil, err
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.DotEnv != "" {
		dotenv, err := godotenv.Read(opts.DotEnv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", opts.DotEnv, err)
		}
		lookup = layered(lookup, dotenv)
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// layered prefers the environment and falls back to values from a .env file.
func layered(env func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvBaseURL:        &c.BaseURL,
		EnvToken:          &c.Token,
		EnvGeminiAPIKey:   &c.GeminiAPIKey,
		EnvSerpAPIKey:     &c.SerpAPIKey,
		EnvEmbeddingModel: &c.EmbeddingModel,
		EnvLogLevel:       &c.LogLevel,
		EnvDraftDriver:    &c.Drafts.Driver,
		EnvDraftDSN:       &c.Drafts.DSN,
		EnvDraftPrefix:    &c.Drafts.Prefix,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		EnvTimeout:  &c.Timeout,
		EnvDraftTTL: &c.Drafts.TTL,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

// Validate checks field constraints and that a draft driver other than
// memory has a DSN.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if d := c.Drafts.Driver; d != "" && d != "memory" && c.Drafts.DSN == "" {
		return fmt.Errorf("drafts: driver %s needs a dsn", d)
	}
	return nil
}

// SessionDefaults returns the credentials used when a workflow's llm-engine
// node carries none.
func (c *Config) SessionDefaults() workflow.SessionDefaults {
	return workflow.SessionDefaults{
		ModelAPIKey:     c.GeminiAPIKey,
		WebSearchAPIKey: c.SerpAPIKey,
	}
}

// Logger returns a golog-backed logger at the configured level.
func (c *Config) Logger() log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.LogLevelInfo
	}
	return log.NewStackLogger(level)
}

// ClientOptions returns the options for a backend client.
func (c *Config) ClientOptions(logger log.Logger) []client.Option {
	opts := []client.Option{
		client.WithBaseURL(c.BaseURL),
		client.WithLogger(logger),
		client.WithCircuitBreaker(client.DefaultBreakerSettings()),
	}
	if c.Token != "" {
		opts = append(opts, client.WithToken(c.Token))
	}
	return opts
}

// Redacted returns a copy safe to print, with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Token = mask(c.Token)
	out.GeminiAPIKey = mask(c.GeminiAPIKey)
	out.SerpAPIKey = mask(c.SerpAPIKey)
	if i := strings.Index(out.Drafts.DSN, "@"); i > 0 {
		if j := strings.Index(out.Drafts.DSN, "://"); j >= 0 && j+3 < i {
			out.Drafts.DSN = out.Drafts.DSN[:j+3] + "***" + out.Drafts.DSN[i:]
		}
	}
	return out
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
