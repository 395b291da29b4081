package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionlab/fusionlab/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestFusionMetrics(t *testing.T) {
	collector := withCollector(t)

	RecordGeneration("image", "success", 120*time.Millisecond)
	RecordRateLimited("image")
	RecordUpstreamAttempt("gemini", "retryable")
	RecordUpstreamRetry("gemini", 503)
	SetRateLimitEntries(4)
	RecordFusionCountIncrement(true)
	RecordFusionCountIncrement(false)
	SetServerStartTime(time.Now().Unix())

	assert.Greater(t, collector.CountMetricsByName(GenerationsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(GenerationDuration), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitedTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(UpstreamAttemptsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(UpstreamRetriesTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitEntries), 0)
	assert.Equal(t, 2, collector.CountMetricsByName(FusionCountIncrements))
	assert.Greater(t, collector.CountMetricsByName(ServerStartTime), 0)
}

func TestErrorMetrics(t *testing.T) {
	collector := withCollector(t)

	RecordError("RATE_LIMITED", 429)
	RecordErrorByEndpoint("/api/generate-image", "RATE_LIMITED")
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(ErrorsTotalName), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpointName), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotalName), 0)
}

func TestMetricsWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordGeneration("suggestion", "failed", time.Second)
		RecordRateLimited("suggestion")
		SetRateLimitEntries(0)
		RecordFusionCountIncrement(true)
		RecordError("INTERNAL_ERROR", 500)
	})
}
