package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/genaistack/client"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{Lookup: env(nil)})
	require.NoError(t, err)

	assert.Equal(t, client.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "local", cfg.EmbeddingModel)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Drafts.Driver)
	assert.Equal(t, DefaultPrefix, cfg.Drafts.Prefix)
}

func TestLoad_Precedence(t *testing.T) {
	file := writeFile(t, "stack.yaml", `
base_url: http://yaml.example/api
gemini_api_key: yaml-key
serp_api_key: yaml-serp
timeout: 45s
log_level: debug
drafts:
  driver: sqlite
  dsn: /tmp/drafts.db
  ttl: 24h
`)
	dotenv := writeFile(t, ".env", "GEMINI_API_KEY=dotenv-key\nSTACK_TOKEN=dotenv-token\n")

	cfg, err := Load(Options{
		File:   file,
		DotEnv: dotenv,
		Lookup: env(map[string]string{
			EnvGeminiAPIKey: "env-key",
			EnvTimeout:      "5s",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, "http://yaml.example/api", cfg.BaseURL)
	assert.Equal(t, "env-key", cfg.GeminiAPIKey)
	assert.Equal(t, "yaml-serp", cfg.SerpAPIKey)
	assert.Equal(t, "dotenv-token", cfg.Token)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Drafts.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Drafts.TTL)
}

func TestLoad_MissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{
		File:   filepath.Join(dir, "absent.yaml"),
		DotEnv: filepath.Join(dir, ".env"),
		Lookup: env(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, client.DefaultBaseURL, cfg.BaseURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"bad yaml", "base_url: [", nil},
		{"bad duration", "", map[string]string{EnvTimeout: "soon"}},
		{"bad url", "", map[string]string{EnvBaseURL: "not a url"}},
		{"bad level", "log_level: loud", nil},
		{"bad driver", "drafts:\n  driver: mongo\n  dsn: x", nil},
		{"driver without dsn", "", map[string]string{EnvDraftDriver: "postgres"}},
		{"negative timeout", "timeout: -1s", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Lookup: env(tt.env)}
			if tt.yaml != "" {
				opts.File = writeFile(t, "stack.yaml", tt.yaml)
			}
			_, err := Load(opts)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MemoryDriverNeedsNoDSN(t *testing.T) {
	cfg, err := Load(Options{Lookup: env(map[string]string{EnvDraftDriver: "memory"})})
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Drafts.Driver)
}

func TestConfig_SessionDefaults(t *testing.T) {
	cfg := Default()
	cfg.GeminiAPIKey = "g"
	cfg.SerpAPIKey = "s"

	d := cfg.SessionDefaults()
	assert.Equal(t, "g", d.ModelAPIKey)
	assert.Equal(t, "s", d.WebSearchAPIKey)
}

func TestConfig_ClientOptions(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "http://backend.internal/api/"
	cfg.Token = "tok"

	c, err := client.New(cfg.ClientOptions(cfg.Logger())...)
	require.NoError(t, err)
	assert.Equal(t, "http://backend.internal/api", c.BaseURL())
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Default()
	cfg.Token = "abcdefgh"
	cfg.GeminiAPIKey = "key"
	cfg.Drafts.DSN = "postgres://stack:secret@db:5432/stack"

	r := cfg.Redacted()
	assert.Equal(t, "ab****gh", r.Token)
	assert.Equal(t, "****", r.GeminiAPIKey)
	assert.Empty(t, r.SerpAPIKey)
	assert.Equal(t, "postgres://***@db:5432/stack", r.Drafts.DSN)
	assert.Equal(t, "abcdefgh", cfg.Token)
}
