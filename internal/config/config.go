// Package config loads service configuration from an optional YAML file
// overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Server   Server   `yaml:"server"`
	Solver   Solver   `yaml:"solver"`
	Storage  Storage  `yaml:"storage"`
	Broker   Broker   `yaml:"broker"`
	Rate     Rate     `yaml:"rate"`
	Webhooks Webhooks `yaml:"webhooks"`
	Log      Log      `yaml:"log"`
}

type Server struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	MaxBodyBytes      int64         `yaml:"maxBodyBytes"`
}

type Solver struct {
	// Workers parallelizes the rows of the shortest-path computation.
	Workers int `yaml:"workers"`
	// TimeBudget bounds one solve; zero disables the bound.
	TimeBudget time.Duration `yaml:"timeBudget"`
	// MaxVertices rejects instances above this size; zero disables the check.
	MaxVertices int `yaml:"maxVertices"`
}

type Storage struct {
	DatabaseURL string `yaml:"databaseURL"`
	Migrate     bool   `yaml:"migrate"`
}

type Broker struct {
	RedisURL string `yaml:"redisURL"`
}

type Rate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies lists the CIDRs or addresses whose X-Forwarded-For
	// header names the client. Empty trusts nobody.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// ProxyPrefixes parses TrustedProxies. A bare address becomes a host prefix.
func (r Rate) ProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, s := range r.TrustedProxies {
		s = strings.TrimSpace(s)
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, ErrInvalid)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Webhooks posts run events to external endpoints. Empty URLs disables it.
type Webhooks struct {
	URLs        []string `yaml:"urls"`
	Secret      string   `yaml:"secret"`
	Events      []string `yaml:"events"`
	MaxAttempts int      `yaml:"maxAttempts"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   Server{Addr: ":8080", ReadHeaderTimeout: 5 * time.Second, MaxBodyBytes: 8 << 20},
		Solver:   Solver{Workers: 1, TimeBudget: 60 * time.Second, MaxVertices: 5000},
		Storage:  Storage{Migrate: true},
		Rate:     Rate{RPS: 5, Burst: 10},
		Webhooks: Webhooks{Events: []string{"run.completed", "run.failed"}, MaxAttempts: 10},
		Log:      Log{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies env
// overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := getenv("DB_MIGRATE"); v != "" {
		c.Storage.Migrate = v != "false"
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Broker.RedisURL = v
	}
	if v := getenv("WEBHOOK_URLS"); v != "" {
		c.Webhooks.URLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Webhooks.URLs = append(c.Webhooks.URLs, u)
			}
		}
	}
	if v := getenv("WEBHOOK_SECRET"); v != "" {
		c.Webhooks.Secret = v
	}
	if v := getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS=%q: %w", v, ErrInvalid)
		}
		c.Webhooks.MaxAttempts = n
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS=%q: %w", v, ErrInvalid)
		}
		c.Rate.RPS = f
	}
	if v := getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST=%q: %w", v, ErrInvalid)
		}
		c.Rate.Burst = n
	}
	if v := getenv("TRUSTED_PROXIES"); v != "" {
		c.Rate.TrustedProxies = strings.Split(v, ",")
	}
	if v := getenv("SOLVER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOLVER_WORKERS=%q: %w", v, ErrInvalid)
		}
		c.Solver.Workers = n
	}
	if v := getenv("SOLVER_TIME_BUDGET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SOLVER_TIME_BUDGET=%q: %w", v, ErrInvalid)
		}
		c.Solver.TimeBudget = d
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Solver.Workers < 0 {
		return fmt.Errorf("solver.workers must be >= 0: %w", ErrInvalid)
	}
	if c.Solver.TimeBudget < 0 {
		return fmt.Errorf("solver.timeBudget must be >= 0: %w", ErrInvalid)
	}
	if c.Solver.MaxVertices < 0 {
		return fmt.Errorf("solver.maxVertices must be >= 0: %w", ErrInvalid)
	}
	if c.Rate.RPS < 0 || c.Rate.Burst < 0 {
		return fmt.Errorf("rate must be >= 0: %w", ErrInvalid)
	}
	if _, err := c.Rate.ProxyPrefixes(); err != nil {
		return err
	}
	if c.Webhooks.MaxAttempts < 0 {
		return fmt.Errorf("webhooks.maxAttempts must be >= 0: %w", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, ErrInvalid)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q: %w", c.Log.Format, ErrInvalid)
	}
	return nil
}

// SetupLogging configures the global zerolog logger.
func (c Config) SetupLogging() {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if c.Log.Format == "console" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
