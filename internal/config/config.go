// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package config loads server configuration from defaults, an optional YAML
// file, environment variables and command-line flags, in that order.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Revocation backends.
const (
	RevocationMemory   = "memory"
	RevocationPostgres = "postgres"
)

// EnvProduction is the environment name that enables production-only behavior
// such as the Secure attribute on the refresh cookie.
const EnvProduction = "production"

// Config is the complete server configuration.
type Config struct {
	Env        string           `koanf:"env"`
	HTTP       HTTPConfig       `koanf:"http"`
	Database   DatabaseConfig   `koanf:"database"`
	JWT        JWTConfig        `koanf:"jwt"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Revocation RevocationConfig `koanf:"revocation"`
	Password   PasswordConfig   `koanf:"password"`
	Log        LogConfig        `koanf:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	MetricsAddr    string   `koanf:"metrics_addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	MaxBodyBytes   int64    `koanf:"max_body_bytes"`
	// TrustProxy makes the client IP come from X-Forwarded-For.
	TrustProxy bool `koanf:"trust_proxy"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string `koanf:"url"`
	ConnectTimeout string `koanf:"connect_timeout"`

	ConnectTimeoutDuration time.Duration `koanf:"-"`
}

// JWTConfig configures token signing. The two secrets must differ.
type JWTConfig struct {
	AccessSecret  string `koanf:"access_secret"`
	RefreshSecret string `koanf:"refresh_secret"`
	AccessExpiry  string `koanf:"access_expiry"`
	RefreshExpiry string `koanf:"refresh_expiry"`
	Issuer        string `koanf:"issuer"`
	Audience      string `koanf:"audience"`

	AccessTTL  time.Duration `koanf:"-"`
	RefreshTTL time.Duration `koanf:"-"`
}

// LimitRule is a fixed-window budget: Max requests per Window.
type LimitRule struct {
	Max    int    `koanf:"max"`
	Window string `koanf:"window"`

	WindowDuration time.Duration `koanf:"-"`
}

// RateLimitConfig holds the per-route-class limits.
type RateLimitConfig struct {
	API     LimitRule `koanf:"api"`
	Login   LimitRule `koanf:"login"`
	Refresh LimitRule `koanf:"refresh"`
}

// RevocationConfig selects and tunes the revocation store.
type RevocationConfig struct {
	Backend       string `koanf:"backend"`
	Retention     string `koanf:"retention"`
	SweepInterval string `koanf:"sweep_interval"`

	RetentionDuration     time.Duration `koanf:"-"`
	SweepIntervalDuration time.Duration `koanf:"-"`
}

// PasswordConfig tunes credential checks.
type PasswordConfig struct {
	// DecoyScheme is the hash scheme verified for unknown emails. It should
	// match the scheme most stored hashes use.
	DecoyScheme string `koanf:"decoy_scheme"`
	// Upgrade rehashes legacy bcrypt passwords to argon2id on login.
	Upgrade bool `koanf:"upgrade"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the built-in configuration with durations resolved.
// Secrets are left empty and must be supplied.
func Default() *Config {
	cfg := &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:           ":3001",
			MetricsAddr:    "127.0.0.1:9100",
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxBodyBytes:   1 << 20,
		},
		Database: DatabaseConfig{
			ConnectTimeout: "30s",
		},
		JWT: JWTConfig{
			AccessExpiry:  "15m",
			RefreshExpiry: "7d",
			Issuer:        "lfa-academy",
			Audience:      "lfa-academy-users",
		},
		RateLimit: RateLimitConfig{
			API:     LimitRule{Max: 100, Window: "15m"},
			Login:   LimitRule{Max: 5, Window: "15m"},
			Refresh: LimitRule{Max: 20, Window: "15m"},
		},
		Revocation: RevocationConfig{
			Backend:       RevocationMemory,
			Retention:     "24h",
			SweepInterval: "10m",
		},
		Password: PasswordConfig{
			DecoyScheme: "argon2id",
			Upgrade:     true,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
	//nolint:errcheck // defaults are known-good
	_ = cfg.resolve()
	return cfg
}

// envKeys maps recognized environment variables to config keys.
var envKeys = map[string]string{
	"NODE_ENV":              "env",
	"PORT":                  "http.addr",
	"METRICS_ADDR":          "http.metrics_addr",
	"CORS_ALLOWED_ORIGINS":  "http.allowed_origins",
	"TRUST_PROXY":           "http.trust_proxy",
	"DATABASE_URL":          "database.url",
	"JWT_ACCESS_SECRET":     "jwt.access_secret",
	"JWT_REFRESH_SECRET":    "jwt.refresh_secret",
	"JWT_ACCESS_EXPIRY":     "jwt.access_expiry",
	"JWT_REFRESH_EXPIRY":    "jwt.refresh_expiry",
	"JWT_ISSUER":            "jwt.issuer",
	"JWT_AUDIENCE":          "jwt.audience",
	"REVOCATION_BACKEND":    "revocation.backend",
	"PASSWORD_DECOY_SCHEME": "password.decoy_scheme",
	"PASSWORD_UPGRADE":      "password.upgrade",
	"LOG_FORMAT":            "log.format",
	"LOG_LEVEL":             "log.level",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"env":                "env",
	"http-addr":          "http.addr",
	"metrics-addr":       "http.metrics_addr",
	"database-url":       "database.url",
	"revocation-backend": "revocation.backend",
	"log-format":         "log.format",
	"log-level":          "log.level",
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "environment name (production enables secure cookies)")
	fs.String("http-addr", "", "API listen address")
	fs.String("metrics-addr", "", "metrics/health listen address (empty keeps the configured value)")
	fs.String("database-url", "", "PostgreSQL connection string")
	fs.String("revocation-backend", "", "revocation store: memory or postgres")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
}

// Load builds a Config. path may be empty to skip the YAML layer and flags may
// be nil to skip the flag layer. Only flags the user actually set override
// lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase builds a Config for commands that only touch the database.
// Token settings are not validated; a database URL is required.
func LoadDatabase(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(path, flags)
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("DATABASE_URL or --database-url is required")
	}
	return cfg, nil
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", mapEnv), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, mapFlag), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if k.Exists("http.allowed_origins") {
		cfg.HTTP.AllowedOrigins = nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "unmarshal").Wrap(err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mapEnv(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok {
		return "", nil
	}
	switch name {
	case "CORS_ALLOWED_ORIGINS":
		return key, splitList(value)
	case "PORT":
		if !strings.Contains(value, ":") {
			value = ":" + value
		}
	case "TRUST_PROXY", "PASSWORD_UPGRADE":
		return key, value == "1" || strings.EqualFold(value, "true")
	}
	return key, value
}

func mapFlag(f *pflag.Flag) (string, any) {
	key, ok := flagKeys[f.Name]
	if !ok || !f.Changed {
		return "", nil
	}
	return key, f.Value.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolve parses the textual durations into their typed counterparts.
func (c *Config) resolve() error {
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"database.connect_timeout", c.Database.ConnectTimeout, &c.Database.ConnectTimeoutDuration},
		{"jwt.access_expiry", c.JWT.AccessExpiry, &c.JWT.AccessTTL},
		{"jwt.refresh_expiry", c.JWT.RefreshExpiry, &c.JWT.RefreshTTL},
		{"rate_limit.api.window", c.RateLimit.API.Window, &c.RateLimit.API.WindowDuration},
		{"rate_limit.login.window", c.RateLimit.Login.Window, &c.RateLimit.Login.WindowDuration},
		{"rate_limit.refresh.window", c.RateLimit.Refresh.Window, &c.RateLimit.Refresh.WindowDuration},
		{"revocation.retention", c.Revocation.Retention, &c.Revocation.RetentionDuration},
		{"revocation.sweep_interval", c.Revocation.SweepInterval, &c.Revocation.SweepIntervalDuration},
	}
	for _, f := range fields {
		d, err := ParseDuration(f.raw)
		if err != nil {
			return oops.Code("CONFIG_INVALID").
				With("key", f.key).
				With("value", f.raw).
				Errorf("invalid duration for %s: %v", f.key, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	invalid := oops.Code("CONFIG_INVALID")

	if c.JWT.AccessSecret == "" {
		return invalid.With("key", "jwt.access_secret").Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.JWT.RefreshSecret == "" {
		return invalid.With("key", "jwt.refresh_secret").Errorf("JWT_REFRESH_SECRET is required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return invalid.With("key", "jwt.refresh_secret").Errorf("access and refresh secrets must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return invalid.With("key", "jwt").Errorf("token expiries must be positive")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return invalid.With("key", "jwt.access_expiry").
			Errorf("access expiry %s must be shorter than refresh expiry %s", c.JWT.AccessTTL, c.JWT.RefreshTTL)
	}
	for name, rule := range map[string]LimitRule{
		"api":     c.RateLimit.API,
		"login":   c.RateLimit.Login,
		"refresh": c.RateLimit.Refresh,
	} {
		if rule.Max <= 0 || rule.WindowDuration <= 0 {
			return invalid.With("key", "rate_limit."+name).Errorf("rate limit max and window must be positive")
		}
	}
	switch c.Revocation.Backend {
	case RevocationMemory:
	case RevocationPostgres:
		if c.Database.URL == "" {
			return invalid.With("key", "database.url").Errorf("postgres revocation backend requires DATABASE_URL")
		}
	default:
		return invalid.With("key", "revocation.backend").
			Errorf("unknown revocation backend %q: must be %q or %q", c.Revocation.Backend, RevocationMemory, RevocationPostgres)
	}
	if c.Password.DecoyScheme != "argon2id" && c.Password.DecoyScheme != "bcrypt" {
		return invalid.With("key", "password.decoy_scheme").
			Errorf("password decoy scheme must be 'argon2id' or 'bcrypt', got %q", c.Password.DecoyScheme)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid.With("key", "log.format").Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}
