package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "DB_MIGRATE", "REDIS_URL", "LOG_LEVEL", "LOG_FORMAT", "RATE_RPS", "RATE_BURST", "SOLVER_WORKERS", "SOLVER_TIME_BUDGET", "WEBHOOK_URLS", "WEBHOOK_SECRET", "WEBHOOK_MAX_ATTEMPTS", "TRUSTED_PROXIES"} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Solver.TimeBudget)
	assert.True(t, cfg.Storage.Migrate)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
solver:
  workers: 4
  timeBudget: 2s
storage:
  databaseURL: postgres://localhost/carp
log:
  level: debug
  format: console
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Solver.Workers)
	assert.Equal(t, 2*time.Second, cfg.Solver.TimeBudget)
	assert.Equal(t, "postgres://localhost/carp", cfg.Storage.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 5000, cfg.Solver.MaxVertices)
	assert.Equal(t, int64(8<<20), cfg.Server.MaxBodyBytes)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o600))
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":               "8181",
		"DATABASE_URL":       "postgres://db/carp",
		"DB_MIGRATE":         "false",
		"REDIS_URL":          "redis://cache:6379/0",
		"LOG_LEVEL":          "warn",
		"LOG_FORMAT":         "console",
		"RATE_RPS":           "2.5",
		"RATE_BURST":         "4",
		"SOLVER_WORKERS":     "8",
		"SOLVER_TIME_BUDGET": "750ms",
		"WEBHOOK_URLS":       "http://a/hook, ,http://b/hook",
		"WEBHOOK_SECRET":     "s3cret",
		"TRUSTED_PROXIES":    "10.0.0.0/8, 192.168.1.1",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, ":8181", cfg.Server.Addr)
	assert.Equal(t, "postgres://db/carp", cfg.Storage.DatabaseURL)
	assert.False(t, cfg.Storage.Migrate)
	assert.Equal(t, "redis://cache:6379/0", cfg.Broker.RedisURL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 2.5, cfg.Rate.RPS, 1e-9)
	assert.Equal(t, 4, cfg.Rate.Burst)
	assert.Equal(t, 8, cfg.Solver.Workers)
	assert.Equal(t, 750*time.Millisecond, cfg.Solver.TimeBudget)
	assert.Equal(t, []string{"http://a/hook", "http://b/hook"}, cfg.Webhooks.URLs)
	assert.Equal(t, "s3cret", cfg.Webhooks.Secret)
	prefixes, err := cfg.Rate.ProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("192.168.1.1/32")}, prefixes)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	for _, key := range []string{"RATE_RPS", "RATE_BURST", "SOLVER_WORKERS", "SOLVER_TIME_BUDGET", "WEBHOOK_URLS", "WEBHOOK_SECRET", "WEBHOOK_MAX_ATTEMPTS", "TRUSTED_PROXIES"} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) string {
				if k == key {
					return "lots"
				}
				return ""
			})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Solver.Workers = -1 }},
		{"negative budget", func(c *Config) { c.Solver.TimeBudget = -time.Second }},
		{"negative max vertices", func(c *Config) { c.Solver.MaxVertices = -5 }},
		{"negative rate", func(c *Config) { c.Rate.RPS = -1 }},
		{"negative burst", func(c *Config) { c.Rate.Burst = -1 }},
		{"negative webhook attempts", func(c *Config) { c.Webhooks.MaxAttempts = -1 }},
		{"bad trusted proxy", func(c *Config) { c.Rate.TrustedProxies = []string{"10.0.0.0/33"} }},
		{"unknown level", func(c *Config) { c.Log.Level = "chatty" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
