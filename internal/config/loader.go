// Package config provides centralized configuration management for fusionlab.
//
// Values are layered: built-in defaults, an optional YAML config file
// (explicit path, XDG config dir, or ./config/config.yaml), environment
// variables named {PREFIX}{NAME}, then runtime overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fusionlab/fusionlab/internal/appid"
)

// LegacyAPIKeyEnv is honoured when no ailink.api_key is configured.
const LegacyAPIKeyEnv = "GEMINI_API_KEY"

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity

	configFile string
	dotenvOnce sync.Once
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the config file path. An empty path restores discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// LoadDotEnv reads ./.env once. Variables already set in the environment win.
func LoadDotEnv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// Load resolves the configuration and stores it for GetConfig.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		appIdentity = appid.GetOrFallback(ctx)
	}
	LoadDotEnv()

	v := viper.New()
	SetDefaults(v)

	path, err := resolveConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if err := v.MergeConfigMap(envOverrides); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	for _, overrides := range runtimeOverrides {
		if len(overrides) == 0 {
			continue
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to apply runtime overrides: %w", err)
		}
	}

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !cfg.AILink.HasCredential() {
		cfg.AILink.APIKey = strings.TrimSpace(os.Getenv(LegacyAPIKeyEnv))
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

// ConfigFileUsed returns the file Load would read, or "" when none exists.
func ConfigFileUsed() string {
	path, _ := resolveConfigFile()
	return path
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func resolveConfigFile() (string, error) {
	configMu.RLock()
	explicit := configFile
	configMu.RUnlock()

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{DefaultConfigPath(), filepath.Join("config", "config.yaml")}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config file %s: %w", candidate, err)
		}
	}
	return "", nil
}

func envPrefix() string {
	prefix := appid.Fallback().EnvPrefix
	if appIdentity != nil && appIdentity.EnvPrefix != "" {
		prefix = appIdentity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	prefix := envPrefix()

	specs := []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},

		// Upstream provider
		{Name: prefix + "API_KEY", Path: []string{"ailink", "api_key"}, Type: EnvString},
		{Name: prefix + "AILINK_BASE_URL", Path: []string{"ailink", "base_url"}, Type: EnvString},
		{Name: prefix + "AILINK_TEXT_MODEL", Path: []string{"ailink", "text_model"}, Type: EnvString},
		{Name: prefix + "AILINK_IMAGE_MODEL", Path: []string{"ailink", "image_model"}, Type: EnvString},
		{Name: prefix + "AILINK_TIMEOUT", Path: []string{"ailink", "timeout"}, Type: EnvString},
		{Name: prefix + "AILINK_PROMPTS_DIR", Path: []string{"ailink", "prompts_dir"}, Type: EnvString},
		{Name: prefix + "AILINK_TRACE_FILE", Path: []string{"ailink", "trace_file"}, Type: EnvString},

		// Rate limiting
		{Name: prefix + "RATE_LIMIT_BACKEND", Path: []string{"rate_limits", "backend"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT_SWEEP_INTERVAL", Path: []string{"rate_limits", "sweep_interval"}, Type: EnvString},
		{Name: prefix + "REDIS_ADDR", Path: []string{"redis", "addr"}, Type: EnvString},
		{Name: prefix + "REDIS_USERNAME", Path: []string{"redis", "username"}, Type: EnvString},
		{Name: prefix + "REDIS_PASSWORD", Path: []string{"redis", "password"}, Type: EnvString},
		{Name: prefix + "REDIS_DB", Path: []string{"redis", "db"}, Type: EnvInt},
		{Name: prefix + "REDIS_PREFIX", Path: []string{"redis", "prefix"}, Type: EnvString},

		// Counter and store
		{Name: prefix + "COUNTER_DRIVER", Path: []string{"counter", "driver"}, Type: EnvString},
		{Name: prefix + "COUNTER_PATH", Path: []string{"counter", "path"}, Type: EnvString},
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},
	}

	for _, capability := range []string{"image", "description", "suggestion"} {
		upper := strings.ToUpper(capability)
		specs = append(specs,
			EnvVarSpec{Name: prefix + upper + "_REQUESTS_PER_WINDOW", Path: []string{"capabilities", capability, "requests_per_window"}, Type: EnvInt},
			EnvVarSpec{Name: prefix + upper + "_WINDOW", Path: []string{"capabilities", capability, "window"}, Type: EnvString},
			EnvVarSpec{Name: prefix + upper + "_MAX_RETRIES", Path: []string{"capabilities", capability, "max_retries"}, Type: EnvInt},
			EnvVarSpec{Name: prefix + upper + "_BASE_DELAY", Path: []string{"capabilities", capability, "base_delay"}, Type: EnvString},
		)
	}
	return specs
}

// appNamesForPaths returns the config name and binary name from app identity.
func appNamesForPaths() (configName string, binaryName string) {
	fallback := appid.Fallback()
	configName = fallback.ConfigName
	binaryName = fallback.BinaryName
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
