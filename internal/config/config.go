// Package config loads and validates relay configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

// EnvPrefix prefixes every environment override, e.g. RELAY_SERVER_PORT.
const EnvPrefix = "RELAY"

// Session backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultWorkerIDs are the agents provisioned for Sales Navigator exports.
var DefaultWorkerIDs = []string{"2696753432671290", "2786592566218024", "8109199544661391"}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Phantom   PhantomConfig   `mapstructure:"phantom"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RequestTimeoutSeconds bounds every route except /scrape.
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret        string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	Audience      string `mapstructure:"audience"`
	LeewaySeconds int    `mapstructure:"leeway_seconds"`
}

// PhantomConfig configures the provider client and the retry budgets.
type PhantomConfig struct {
	APIKey             string   `mapstructure:"api_key"`
	BaseURL            string   `mapstructure:"base_url"`
	HTTPTimeoutSeconds int      `mapstructure:"http_timeout_seconds"`
	WorkerIDs          []string `mapstructure:"worker_ids"`
	MaxRetries         int      `mapstructure:"max_retries"`
	RetryDelaySeconds  int      `mapstructure:"retry_delay_seconds"`
	PollMaxAttempts    int      `mapstructure:"poll_max_attempts"`
	PollDelaySeconds   int      `mapstructure:"poll_delay_seconds"`
}

// SessionConfig selects and configures the session backend.
type SessionConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig controls the Postgres session backend.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// RedisConfig controls the Redis session backend.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// RateLimitConfig throttles /scrape per user.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CORSConfig lists allowed origins; "*" allows all.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load builds a Config from .env, an optional config file, and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindAliases accepts the bare variable names used by existing deployments.
func bindAliases(v *viper.Viper) error {
	aliases := map[string]string{
		"phantom.api_key": "PHANTOM_KEY",
		"server.port":     "PORT",
		"auth.secret":     "JWT_SECRET",
	}
	for key, alias := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("auth.leeway_seconds", 30)
	v.SetDefault("phantom.base_url", "https://api.phantombuster.com/api/v2")
	v.SetDefault("phantom.http_timeout_seconds", 30)
	v.SetDefault("phantom.worker_ids", DefaultWorkerIDs)
	v.SetDefault("phantom.max_retries", 5)
	v.SetDefault("phantom.retry_delay_seconds", 60)
	v.SetDefault("phantom.poll_max_attempts", 30)
	v.SetDefault("phantom.poll_delay_seconds", 10)
	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.postgres.table", "relay_sessions")
	v.SetDefault("session.postgres.ensure_schema", true)
	v.SetDefault("session.redis.key_prefix", "relay:session:")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 0.2)
	v.SetDefault("ratelimit.burst", 2)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret must be set")
	}
	if c.Phantom.APIKey == "" {
		return fmt.Errorf("phantom.api_key must be set")
	}
	if len(c.Phantom.WorkerIDs) == 0 {
		return fmt.Errorf("phantom.worker_ids must list at least one agent")
	}
	for _, id := range c.Phantom.WorkerIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("phantom.worker_ids must not contain empty ids")
		}
	}
	if c.Phantom.MaxRetries <= 0 {
		return fmt.Errorf("phantom.max_retries must be > 0")
	}
	if c.Phantom.PollMaxAttempts <= 0 {
		return fmt.Errorf("phantom.poll_max_attempts must be > 0")
	}
	if c.Phantom.RetryDelaySeconds < 0 || c.Phantom.PollDelaySeconds < 0 {
		return fmt.Errorf("phantom delays must be >= 0")
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Session.Postgres.DSN == "" {
			return fmt.Errorf("session.postgres.dsn must be set for the postgres backend")
		}
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend %q is not one of memory, postgres, redis", c.Session.Backend)
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	return nil
}

// RetryConfig converts the phantom budgets into scrape.RetryConfig.
func (c Config) RetryConfig() scrape.RetryConfig {
	return scrape.RetryConfig{
		MaxRetries:      c.Phantom.MaxRetries,
		RetryDelay:      time.Duration(c.Phantom.RetryDelaySeconds) * time.Second,
		PollMaxAttempts: c.Phantom.PollMaxAttempts,
		PollDelay:       time.Duration(c.Phantom.PollDelaySeconds) * time.Second,
	}
}

// Workers returns the configured agent ids in pool order.
func (c Config) Workers() []scrape.WorkerID {
	out := make([]scrape.WorkerID, 0, len(c.Phantom.WorkerIDs))
	for _, id := range c.Phantom.WorkerIDs {
		out = append(out, scrape.WorkerID(strings.TrimSpace(id)))
	}
	return out
}

// ScrapeBudget is the longest a single scrape can take with every retry spent:
// the full pool wait, the launch retries and the poll window.
func (c Config) ScrapeBudget() time.Duration {
	rc := c.RetryConfig()
	acquire := time.Duration(len(c.Phantom.WorkerIDs)*(rc.MaxRetries-1)) * rc.RetryDelay
	launch := time.Duration(rc.MaxRetries-1) * rc.RetryDelay
	poll := time.Duration(rc.PollMaxAttempts-1) * rc.PollDelay
	calls := len(c.Phantom.WorkerIDs)*rc.MaxRetries + rc.MaxRetries + rc.PollMaxAttempts + 2
	return acquire + launch + poll + time.Duration(calls)*c.HTTPTimeout()
}

// HTTPTimeout is the per-request provider timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Phantom.HTTPTimeoutSeconds) * time.Second
}

// RequestTimeout bounds non-scrape routes.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
