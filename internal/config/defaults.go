package config

import (
	"github.com/spf13/viper"

	"github.com/fusionlab/fusionlab/internal/ailink/driver/gemini"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
)

// DefaultCounterPath matches the location the counter file has always used.
const DefaultCounterPath = "data/fusion-count.json"

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults. The write timeout covers a full retry sequence.
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	// Metrics and health
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)

	// Upstream provider
	v.SetDefault("ailink.api_key", "")
	v.SetDefault("ailink.base_url", gemini.DefaultBaseURL)
	v.SetDefault("ailink.text_model", gemini.DefaultTextModel)
	v.SetDefault("ailink.image_model", gemini.DefaultImageModel)
	v.SetDefault("ailink.timeout", "60s")
	v.SetDefault("ailink.prompts_dir", "")
	v.SetDefault("ailink.trace_file", "")

	// Capabilities
	for capability, s := range fusion.DefaultSettings() {
		key := "capabilities." + string(capability) + "."
		v.SetDefault(key+"requests_per_window", s.RequestsPerWindow)
		v.SetDefault(key+"window", s.Window.String())
		v.SetDefault(key+"max_retries", s.MaxRetries)
		v.SetDefault(key+"base_delay", s.BaseDelay.String())
	}

	// Rate limiter
	v.SetDefault("rate_limits.backend", ratelimit.BackendMemory)
	v.SetDefault("rate_limits.sweep_interval", "5m")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "fusionlab:ratelimit:")

	// Counter and store
	v.SetDefault("counter.driver", "file")
	v.SetDefault("counter.path", DefaultCounterPath)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
}
