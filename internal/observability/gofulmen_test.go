package observability_test

import (
	"context"
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/observability"
)

func resetLoggers(t *testing.T) {
	t.Helper()
	cli, server := observability.CLILogger, observability.ServerLogger
	t.Cleanup(func() {
		observability.CLILogger = cli
		observability.ServerLogger = server
	})
}

func TestInitCLILogger(t *testing.T) {
	resetLoggers(t)

	observability.InitCLILogger("fusionlab-test", true)
	require.NotNil(t, observability.CLILogger)
	observability.CLILogger.Debug("verbose cli message", zap.String("capability", "image"))
}

func TestInitServerLoggerProfiles(t *testing.T) {
	for _, profile := range []string{"STRUCTURED", "simple", ""} {
		t.Run(profile, func(t *testing.T) {
			resetLoggers(t)

			observability.InitServerLogger("fusionlab-test", "debug", profile)
			require.NotNil(t, observability.ServerLogger)
			observability.ServerLogger.Info("server message", zap.String("profile", profile))
		})
	}
}

func TestLoggerPrefersServer(t *testing.T) {
	resetLoggers(t)

	observability.ServerLogger = nil
	observability.InitCLILogger("fusionlab-test", false)
	assert.Same(t, observability.CLILogger, observability.Logger())

	observability.InitServerLogger("fusionlab-test", "info", "STRUCTURED")
	assert.Same(t, observability.ServerLogger, observability.Logger())
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
	assert.NotEmpty(t, crucible.GetVersionString())
}

func TestRequestFields(t *testing.T) {
	assert.Empty(t, observability.RequestFields(context.Background()))

	ctx := observability.WithRequestID(context.Background(), "req-7")
	assert.Equal(t, "req-7", observability.RequestID(ctx))
	assert.Equal(t, []zap.Field{zap.String("request_id", "req-7")}, observability.RequestFields(ctx))
}

func TestStopMetricsWithoutExporter(t *testing.T) {
	original := observability.TelemetrySystem
	t.Cleanup(func() { observability.TelemetrySystem = original })

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false})
	require.NoError(t, err)
	observability.TelemetrySystem = sys
	observability.PrometheusExporter = nil

	require.NoError(t, observability.StopMetrics())
	assert.Nil(t, observability.TelemetrySystem)
	assert.Zero(t, observability.GetMetricsPort())
}
