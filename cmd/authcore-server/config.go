package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/authcore"
)

const envPrefix = "AUTHCORE_"

// Config is the resolved runtime configuration of the server.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" envPrefix:"HTTP_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Throttle ThrottleConfig `yaml:"throttle" envPrefix:"THROTTLE_"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr" env:"ADDR"`
	TrustProxy        bool          `yaml:"trust_proxy" env:"TRUST_PROXY"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // "json" or "text"
}

// StorageConfig selects a backend per concern.
type StorageConfig struct {
	Accounts string `yaml:"accounts" env:"ACCOUNTS"` // memory | postgres
	Sessions string `yaml:"sessions" env:"SESSIONS"` // memory | redis | postgres
	Lockout  string `yaml:"lockout" env:"LOCKOUT"`   // accounts | redis
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn" env:"DSN"`
	EnsureSchema bool   `yaml:"ensure_schema" env:"ENSURE_SCHEMA"`
}

type AuthConfig struct {
	SigningKey        string        `yaml:"signing_key" env:"SIGNING_KEY"`
	TokenTTL          time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
	Issuer            string        `yaml:"issuer" env:"ISSUER"`
	Audience          string        `yaml:"audience" env:"AUDIENCE"`
	LockoutThreshold  int           `yaml:"lockout_threshold" env:"LOCKOUT_THRESHOLD"`
	LockoutDuration   time.Duration `yaml:"lockout_duration" env:"LOCKOUT_DURATION"`
	PasswordAlgorithm string        `yaml:"password_algorithm" env:"PASSWORD_ALGORITHM"`
	BcryptCost        int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	PasswordMinLength int           `yaml:"password_min_length" env:"PASSWORD_MIN_LENGTH"`
	PurgeInterval     time.Duration `yaml:"purge_interval" env:"PURGE_INTERVAL"`
	Audit             bool          `yaml:"audit" env:"AUDIT"`
	Metrics           bool          `yaml:"metrics" env:"METRICS"`
}

type ThrottleConfig struct {
	Enabled bool    `yaml:"enabled" env:"ENABLED"`
	Rate    float64 `yaml:"rate" env:"RATE"`
	Burst   int     `yaml:"burst" env:"BURST"`
}

func defaultConfig() Config {
	core := authcore.DefaultConfig()
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Storage: StorageConfig{
			Accounts: "memory",
			Sessions: "memory",
			Lockout:  "accounts",
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: core.Session.RedisPrefix},
		Auth: AuthConfig{
			TokenTTL:          core.Token.TTL,
			Issuer:            core.Token.Issuer,
			Audience:          core.Token.Audience,
			LockoutThreshold:  core.Lockout.Threshold,
			LockoutDuration:   core.Lockout.Duration,
			PasswordAlgorithm: core.Password.Algorithm,
			BcryptCost:        core.Password.BcryptCost,
			PasswordMinLength: core.Password.MinLength,
			PurgeInterval:     core.Session.PurgeInterval,
			Audit:             true,
			Metrics:           true,
		},
		Throttle: ThrottleConfig{Enabled: true, Rate: 5, Burst: 10},
	}
}

// LoadConfig resolves configuration in priority order: defaults, then the YAML file at
// path (skipped when path is empty or the file does not exist), then AUTHCORE_*
// environment variables. A nil environ reads the process environment.
func LoadConfig(path string, environ map[string]string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Accounts {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.accounts: unknown backend %q", c.Storage.Accounts)
	}
	switch c.Storage.Sessions {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("storage.sessions: unknown backend %q", c.Storage.Sessions)
	}
	switch c.Storage.Lockout {
	case "accounts", "redis":
	default:
		return fmt.Errorf("storage.lockout: unknown backend %q", c.Storage.Lockout)
	}
	if c.usesPostgres() && strings.TrimSpace(c.Postgres.DSN) == "" {
		return errors.New("postgres.dsn is required by the selected storage")
	}
	if c.usesRedis() && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("redis.addr is required by the selected storage")
	}
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key (AUTHCORE_AUTH_SIGNING_KEY) is required")
	}
	return nil
}

func (c Config) usesPostgres() bool {
	return c.Storage.Accounts == "postgres" || c.Storage.Sessions == "postgres"
}

func (c Config) usesRedis() bool {
	return c.Storage.Sessions == "redis" || c.Storage.Lockout == "redis"
}

// engineConfig maps the server settings onto an authcore.Config.
func (c Config) engineConfig() authcore.Config {
	out := authcore.DefaultConfig()
	out.Token.PrivateKey = []byte(c.Auth.SigningKey)
	out.Token.TTL = c.Auth.TokenTTL
	out.Token.Issuer = c.Auth.Issuer
	out.Token.Audience = c.Auth.Audience
	out.Lockout.Threshold = c.Auth.LockoutThreshold
	out.Lockout.Duration = c.Auth.LockoutDuration
	out.Password.Algorithm = c.Auth.PasswordAlgorithm
	out.Password.BcryptCost = c.Auth.BcryptCost
	out.Password.MinLength = c.Auth.PasswordMinLength
	out.Session.RedisPrefix = c.Redis.Prefix
	out.Session.PurgeInterval = c.Auth.PurgeInterval
	out.Audit.Enabled = c.Auth.Audit
	out.Metrics.Enabled = c.Auth.Metrics
	out.Metrics.EnableLatencyHistograms = c.Auth.Metrics
	return out
}
