// Package config loads slotkit settings from slotkit.yaml and SLOTKIT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory, with a
// .yaml or .yml extension.
const FileName = "slotkit"

// EnvPrefix prefixes environment overrides; "backend.base_url" becomes
// SLOTKIT_BACKEND_BASE_URL.
const EnvPrefix = "SLOTKIT"

// Config is the complete slotkit configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Session   SessionConfig   `mapstructure:"session"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	E2E       E2EConfig       `mapstructure:"e2e"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	SPABase         string        `mapstructure:"spa_base"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Pprof           bool          `mapstructure:"pprof"`
}

// Address is the listen address.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// BackendConfig configures the REST backend.
type BackendConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
}

// CacheConfig configures the store and its backing cache.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	TTL      time.Duration `mapstructure:"ttl"`
	FreshFor time.Duration `mapstructure:"fresh_for"`
	Prefix   string        `mapstructure:"prefix"`
	Redis    RedisConfig   `mapstructure:"redis"`

	// AbortIdle cancels a backend request once nobody waits for it.
	AbortIdle bool `mapstructure:"abort_idle"`
}

// RedisConfig locates the redis server.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Secure bool          `mapstructure:"secure"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// RateLimitConfig bounds location selections and websocket upgrades per
// client address. Zero requests disables limiting. The limiter shares the
// redis server when the cache backend is redis.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// E2EConfig configures browser automation.
type E2EConfig struct {
	Headless   bool          `mapstructure:"headless"`
	BaseURL    string        `mapstructure:"base_url"`
	BrowserBin string        `mapstructure:"browser_bin"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.spa_base", "/spa")
	v.SetDefault("server.render_timeout", 2*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.pprof", false)

	v.SetDefault("backend.base_url", "http://localhost:8081/openmrs")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.username", "")
	v.SetDefault("backend.password", "")

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.fresh_for", 2*time.Second)
	v.SetDefault("cache.abort_idle", false)
	v.SetDefault("cache.prefix", "slotkit:")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", 8*time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.SetDefault("ratelimit.requests", 20)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("e2e.headless", true)
	v.SetDefault("e2e.base_url", "http://localhost:8080")
	v.SetDefault("e2e.browser_bin", "")
	v.SetDefault("e2e.timeout", 30*time.Second)
}

// Load reads the configuration. An explicit file must exist; otherwise
// slotkit.yaml in the working directory is optional.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		fail("server.port must be between 0 and 65535, got: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.SPABase, "/") || (len(c.Server.SPABase) > 1 && strings.HasSuffix(c.Server.SPABase, "/")) {
		fail("server.spa_base must start and not end with '/', got: %s", c.Server.SPABase)
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fail("backend.base_url must be an absolute http(s) URL, got: %s", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		fail("backend.timeout must not be negative")
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			fail("cache.redis.addr is required for the redis backend")
		}
	default:
		fail("cache.backend must be %q or %q, got: %s", CacheMemory, CacheRedis, c.Cache.Backend)
	}
	if c.Cache.FreshFor < 0 || c.Cache.TTL < 0 {
		fail("cache durations must not be negative")
	}

	if c.RateLimit.Requests < 0 {
		fail("ratelimit.requests must not be negative")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		fail("ratelimit.window must be positive when ratelimit.requests is set")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		fail("logging.level must be debug, info, warn or error, got: %s", c.Logging.Level)
	}

	return errors.Join(errs...)
}
