package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fusionlab/fusionlab/internal/ailink"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
)

// Config represents the complete application configuration.
// Precedence, lowest first: built-in defaults, config file, environment
// variables, runtime overrides.
type Config struct {
	Server       ServerConfig          `mapstructure:"server"`
	Logging      LoggingConfig         `mapstructure:"logging"`
	Metrics      MetricsConfig         `mapstructure:"metrics"`
	Health       HealthConfig          `mapstructure:"health"`
	Debug        DebugConfig           `mapstructure:"debug"`
	AILink       ailink.Config         `mapstructure:"ailink"`
	Capabilities CapabilitiesConfig    `mapstructure:"capabilities"`
	RateLimits   RateLimitsConfig      `mapstructure:"rate_limits"`
	Redis        ratelimit.RedisConfig `mapstructure:"redis"`
	Counter      CounterConfig         `mapstructure:"counter"`
	Store        StoreConfig           `mapstructure:"store"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CapabilitiesConfig holds per-capability budgets and retry policies.
type CapabilitiesConfig struct {
	Image       fusion.Settings `mapstructure:"image"`
	Description fusion.Settings `mapstructure:"description"`
	Suggestion  fusion.Settings `mapstructure:"suggestion"`
}

// Settings returns the capability table with defaults filled in.
func (c CapabilitiesConfig) Settings() map[fusion.Capability]fusion.Settings {
	return fusion.MergeSettings(map[fusion.Capability]fusion.Settings{
		fusion.CapabilityImage:       c.Image,
		fusion.CapabilityDescription: c.Description,
		fusion.CapabilitySuggestion:  c.Suggestion,
	})
}

// RateLimitsConfig selects the limiter backend.
type RateLimitsConfig struct {
	// Backend is memory, redis or libsql.
	Backend string `mapstructure:"backend"`

	// SweepInterval controls how often expired windows are dropped. Zero disables it.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// CounterConfig selects where the fusion counter lives.
type CounterConfig struct {
	// Driver is file or libsql.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	// Enabled exposes /admin/signal for sending signals over HTTP
	Enabled bool `mapstructure:"enabled"`
}

// UsesStore reports whether any component needs the libsql store.
func (c *Config) UsesStore() bool {
	return strings.EqualFold(c.Counter.Driver, "libsql") ||
		strings.EqualFold(c.RateLimits.Backend, ratelimit.BackendLibsql)
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch strings.ToLower(strings.TrimSpace(c.RateLimits.Backend)) {
	case ratelimit.BackendMemory, "":
	case ratelimit.BackendRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when rate_limits.backend is redis")
		}
	case ratelimit.BackendLibsql:
	default:
		return fmt.Errorf("unsupported rate_limits.backend: %s", c.RateLimits.Backend)
	}
	if c.RateLimits.SweepInterval < 0 {
		return fmt.Errorf("rate_limits.sweep_interval must not be negative")
	}

	switch strings.ToLower(strings.TrimSpace(c.Counter.Driver)) {
	case "file", "", "libsql":
	default:
		return fmt.Errorf("unsupported counter.driver: %s", c.Counter.Driver)
	}

	for name, s := range map[string]fusion.Settings{
		"image":       c.Capabilities.Image,
		"description": c.Capabilities.Description,
		"suggestion":  c.Capabilities.Suggestion,
	} {
		if s.RequestsPerWindow < 0 || s.Window < 0 || s.MaxRetries < 0 || s.BaseDelay < 0 {
			return fmt.Errorf("capabilities.%s values must not be negative", name)
		}
	}
	return nil
}
