// Package fusion implements the generation capabilities: input validation,
// per-client rate limiting and the upstream calls that produce an image, a
// description or a pair of suggested items.
package fusion

import (
	"time"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
)

// Capability names an endpoint class. It doubles as the rate limit class.
type Capability string

const (
	CapabilityImage       Capability = "image"
	CapabilityDescription Capability = "description"
	CapabilitySuggestion  Capability = "suggestion"
)

// Capabilities lists every capability in display order.
var Capabilities = []Capability{CapabilityImage, CapabilityDescription, CapabilitySuggestion}

// Settings parameterizes one capability.
type Settings struct {
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
}

// DefaultSettings returns the stock budgets and retry policies.
func DefaultSettings() map[Capability]Settings {
	return map[Capability]Settings{
		CapabilityImage:       {RequestsPerWindow: 10, Window: time.Minute, MaxRetries: 5, BaseDelay: time.Second},
		CapabilityDescription: {RequestsPerWindow: 15, Window: time.Minute, MaxRetries: 5, BaseDelay: time.Second},
		CapabilitySuggestion:  {RequestsPerWindow: 20, Window: time.Minute, MaxRetries: 5, BaseDelay: time.Second},
	}
}

// Limit converts the settings into a limiter budget.
func (s Settings) Limit() ratelimit.RateLimit {
	return ratelimit.RateLimit{RequestsPerWindow: s.RequestsPerWindow, WindowDuration: s.Window}
}

// Policy converts the settings into a retry policy.
func (s Settings) Policy() driver.Policy {
	return driver.Policy{MaxRetries: s.MaxRetries, BaseDelay: s.BaseDelay}
}

// CallBudget is the longest upstream call any capability can make when each
// attempt runs for perAttempt.
func CallBudget(settings map[Capability]Settings, perAttempt time.Duration) time.Duration {
	var longest time.Duration
	for _, s := range settings {
		if budget := s.Policy().Budget(perAttempt); budget > longest {
			longest = budget
		}
	}
	return longest
}

// Limits builds the limiter budget table keyed by capability name.
func Limits(settings map[Capability]Settings) map[string]ratelimit.RateLimit {
	limits := make(map[string]ratelimit.RateLimit, len(settings))
	for capability, s := range settings {
		limits[string(capability)] = s.Limit()
	}
	return limits
}

// MergeSettings fills zero fields of overrides from the defaults.
func MergeSettings(overrides map[Capability]Settings) map[Capability]Settings {
	merged := DefaultSettings()
	for capability, o := range overrides {
		base, ok := merged[capability]
		if !ok {
			base = Settings{
				RequestsPerWindow: ratelimit.FallbackLimit.RequestsPerWindow,
				Window:            ratelimit.FallbackLimit.WindowDuration,
				MaxRetries:        driver.DefaultPolicy.MaxRetries,
				BaseDelay:         driver.DefaultPolicy.BaseDelay,
			}
		}
		if o.RequestsPerWindow > 0 {
			base.RequestsPerWindow = o.RequestsPerWindow
		}
		if o.Window > 0 {
			base.Window = o.Window
		}
		if o.MaxRetries > 0 {
			base.MaxRetries = o.MaxRetries
		}
		if o.BaseDelay > 0 {
			base.BaseDelay = o.BaseDelay
		}
		merged[capability] = base
	}
	return merged
}
