// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package config loads cr0n settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"net/netip"
	"os"
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

// EnvPrefix is the prefix of environment overrides. Nested keys use a
// double underscore: CR0N_DATABASE__MAX_CONNS.
const EnvPrefix = "CR0N_"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the full application configuration.
type Config struct {
	Env      string         `koanf:"env"`
	Log      LogConfig      `koanf:"log"`
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Plans    PlansConfig    `koanf:"plans"`
	Mail     MailConfig     `koanf:"mail"`
	Billing  BillingConfig  `koanf:"billing"`
	Media    MediaConfig    `koanf:"media"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// HTTPConfig configures the web and observability listeners.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	AppURL          string        `koanf:"app_url"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// TrustedProxies lists the networks whose X-Forwarded-For is believed.
	// Empty trusts none.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL                  string `koanf:"url"`
	MaxConns             int32  `koanf:"max_conns"`
	MinConns             int32  `koanf:"min_conns"`
	SerializationRetries uint64 `koanf:"serialization_retries"`
}

// RedisConfig configures the login throttle store. An empty Addr disables
// throttling.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig tunes sessions and credentials.
type AuthConfig struct {
	SessionTTL  time.Duration `koanf:"session_ttl"`
	MaxSessions int           `koanf:"max_sessions"`
	SweepEvery  time.Duration `koanf:"sweep_every"`
	// PasswordAlgorithm hashes new credentials: argon2id or pbkdf2.
	// Stored credentials of either kind always verify.
	PasswordAlgorithm string `koanf:"password_algorithm"`
	// PBKDF2Iterations is the work factor for pbkdf2 credentials.
	PBKDF2Iterations int `koanf:"pbkdf2_iterations"`
}

// Password hashing algorithms.
const (
	PasswordArgon2id = "argon2id"
	PasswordPBKDF2   = "pbkdf2"
)

// PlansConfig locates the plan catalog. An empty File uses the built-in one.
type PlansConfig struct {
	File string `koanf:"file"`
}

// MailConfig configures outgoing email. An empty ResendAPIKey logs instead
// of sending.
type MailConfig struct {
	ResendAPIKey string `koanf:"resend_api_key"`
	From         string `koanf:"from"`
	AppName      string `koanf:"app_name"`
}

// BillingConfig configures Stripe. An empty SecretKey disables billing.
type BillingConfig struct {
	StripeSecretKey string `koanf:"stripe_secret_key"`
	WebhookSecret   string `koanf:"webhook_secret"`
}

// MediaConfig configures the media bucket. An empty Bucket disables uploads.
type MediaConfig struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PathStyle bool   `koanf:"path_style"`
}

var defaults = map[string]any{
	"env":                            EnvDevelopment,
	"log.format":                     "json",
	"log.level":                      "info",
	"http.addr":                      ":8080",
	"http.metrics_addr":              "127.0.0.1:9100",
	"http.app_url":                   "http://localhost:8080",
	"http.shutdown_timeout":          "10s",
	"database.max_conns":             10,
	"database.serialization_retries": 10,
	"auth.session_ttl":               "720h",
	"auth.max_sessions":              5,
	"auth.sweep_every":               "1h",
	"auth.password_algorithm":        PasswordArgon2id,
	"auth.pbkdf2_iterations":         1000,
	"mail.from":                      "cr0n <noreply@cr0n.dev>",
	"mail.app_name":                  "cr0n",
	"media.region":                   "us-east-1",
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"env":          "env",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"addr":         "http.addr",
	"metrics-addr": "http.metrics_addr",
	"database-url": "database.url",
	"plans":        "plans.file",
}

// RegisterFlags adds the configurable flags to fs. Flags only override
// other sources when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", EnvDevelopment, "environment (development, production, test)")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health listen address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("plans", "", "plan catalog YAML file")
}

// Load builds a Config. path is an optional YAML file; fs may be nil.
// DATABASE_URL is honoured when no other source sets database.url.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "load environment").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
		}
	}

	if k.String("database.url") == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			if err := k.Set("database.url", url); err != nil {
				return nil, oops.Code("CONFIG_INVALID").With("key", "database.url").Wrap(err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

// envKey turns CR0N_DATABASE__MAX_CONNS into database.max_conns.
func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return oops.Code("CONFIG_INVALID").With("env", c.Env).
			Errorf("env must be development, production or test")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("log.format", c.Log.Format).
			Errorf("log format must be 'json' or 'text'")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if !validProxy(proxy) {
			return oops.Code("CONFIG_INVALID").With("http.trusted_proxies", proxy).
				Errorf("trusted proxy must be an IP address or CIDR")
		}
	}
	if c.Auth.SessionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("auth.session_ttl", c.Auth.SessionTTL.String()).
			Errorf("session ttl must be positive")
	}
	if c.Auth.MaxSessions < 1 {
		return oops.Code("CONFIG_INVALID").With("auth.max_sessions", c.Auth.MaxSessions).
			Errorf("max sessions must be at least 1")
	}
	if c.Auth.PasswordAlgorithm != PasswordArgon2id && c.Auth.PasswordAlgorithm != PasswordPBKDF2 {
		return oops.Code("CONFIG_INVALID").With("auth.password_algorithm", c.Auth.PasswordAlgorithm).
			Errorf("password algorithm must be argon2id or pbkdf2")
	}
	if c.Auth.PBKDF2Iterations < 1 {
		return oops.Code("CONFIG_INVALID").With("auth.pbkdf2_iterations", c.Auth.PBKDF2Iterations).
			Errorf("pbkdf2 iterations must be positive")
	}
	if c.Billing.StripeSecretKey != "" && c.Billing.WebhookSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("billing.webhook_secret is required when billing is enabled")
	}
	if c.Production() && !strings.HasPrefix(c.HTTP.AppURL, "https://") {
		return oops.Code("CONFIG_INVALID").With("http.app_url", c.HTTP.AppURL).
			Errorf("app url must use https in production")
	}
	return nil
}

func validProxy(proxy string) bool {
	if _, err := netip.ParsePrefix(proxy); err == nil {
		return true
	}
	_, err := netip.ParseAddr(proxy)
	return err == nil
}

// Production reports whether cookies must be Secure.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}
