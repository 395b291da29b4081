package metrics

import (
	"strconv"
	"time"

	"github.com/fusionlab/fusionlab/internal/observability"
)

// Fusion metrics following Prometheus naming conventions.
const (
	GenerationsTotal      = "fusion_generations_total"
	GenerationDuration    = "fusion_generation_duration_ms"
	RateLimitedTotal      = "fusion_rate_limited_total"
	UpstreamAttemptsTotal = "upstream_attempts_total"
	UpstreamRetriesTotal  = "upstream_retries_total"
	RateLimitEntries      = "ratelimit_entries"
	FusionCountIncrements = "fusion_count_increments_total"
	ServerStartTime       = "app_server_start_time_seconds"
)

// RecordGeneration records the outcome of one capability request.
func RecordGeneration(capability, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(GenerationsTotal, 1, map[string]string{
		"capability": capability,
		"status":     status,
	})
	_ = observability.TelemetrySystem.Histogram(GenerationDuration, duration, map[string]string{
		"capability": capability,
	})
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(capability string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(RateLimitedTotal, 1, map[string]string{
		"capability": capability,
	})
}

// RecordUpstreamAttempt records a single HTTP attempt against a provider.
// Outcome is one of success, retryable or failed.
func RecordUpstreamAttempt(provider, outcome string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(UpstreamAttemptsTotal, 1, map[string]string{
		"provider": provider,
		"outcome":  outcome,
	})
}

// RecordUpstreamRetry records a scheduled retry. Status 0 means a network failure.
func RecordUpstreamRetry(provider string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(UpstreamRetriesTotal, 1, map[string]string{
		"provider": provider,
		"status":   strconv.Itoa(status),
	})
}

// SetRateLimitEntries records how many client windows the limiter tracks.
func SetRateLimitEntries(count int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(RateLimitEntries, float64(count), nil)
}

// RecordFusionCountIncrement records a counter increment.
func RecordFusionCountIncrement(success bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(FusionCountIncrements, 1, map[string]string{
		"status": status,
	})
}

// SetServerStartTime records the server start time (Unix timestamp).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}
