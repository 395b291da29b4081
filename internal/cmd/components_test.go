package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionlab/fusionlab/internal/ailink"
	"github.com/fusionlab/fusionlab/internal/appid"
	"github.com/fusionlab/fusionlab/internal/config"
	"github.com/fusionlab/fusionlab/internal/counter"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
	"github.com/fusionlab/fusionlab/internal/server/handlers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AILink:     ailink.Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		RateLimits: config.RateLimitsConfig{Backend: ratelimit.BackendMemory, SweepInterval: time.Minute},
		Counter:    config.CounterConfig{Driver: counter.DriverFile, Path: filepath.Join(t.TempDir(), "fusion-count.json")},
	}
}

func newTestComponents(t *testing.T, cfg *config.Config) *components {
	t.Helper()
	comps, err := newComponents(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })
	return comps
}

func TestComponentsMemoryBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.AILink.TextModel = "custom-text"

	comps := newTestComponents(t, cfg)

	assert.IsType(t, &ratelimit.MemoryLimiter{}, comps.limiter)
	assert.IsType(t, &counter.FileStore{}, comps.counter)
	assert.Nil(t, comps.store, "memory limiter with file counter needs no database")
	require.NotNil(t, comps.service)
	assert.Equal(t, "custom-text", comps.client.TextModel)
	assert.NotEmpty(t, comps.client.ImageModel)
}

func TestComponentsRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig(t)
	cfg.RateLimits.Backend = "Redis"
	cfg.Redis = ratelimit.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}

	comps := newTestComponents(t, cfg)

	limiter, ok := comps.limiter.(*ratelimit.RedisLimiter)
	require.True(t, ok)
	require.NotNil(t, limiter.OnReject)
	require.NoError(t, limiter.Ping(context.Background()))

	hm := handlers.NewHealthManager("test")
	registerHealthChecks(hm, comps, appid.Fallback(), false)
	status, checks := hm.Check(context.Background())
	assert.Equal(t, "healthy", status)
	assert.Equal(t, "healthy", checks["rate_limiter"])
}

func TestComponentsRedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimits.Backend = ratelimit.BackendRedis

	_, err := newComponents(context.Background(), cfg, nil)
	require.Error(t, err, "an empty redis address cannot be dialed")
}

func TestRegisterHealthChecksWithoutCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.AILink.APIKey = ""
	comps := newTestComponents(t, cfg)

	hm := handlers.NewHealthManager("test")
	registerHealthChecks(hm, comps, appid.Fallback(), false)
	status, checks := hm.Check(context.Background())

	assert.Equal(t, "unhealthy", status)
	assert.Equal(t, "unhealthy", checks["ailink_credential"])
	assert.Equal(t, "healthy", checks["fusion_counter"])
	assert.Equal(t, "healthy", checks["app_identity"])
	assert.NotContains(t, checks, "rate_limiter", "the memory limiter has nothing to ping")
	assert.NotContains(t, checks, "telemetry")
}

func TestMemorySweeperStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimits.SweepInterval = 10 * time.Millisecond
	comps := newTestComponents(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	comps.startSweeper(ctx)

	limited, err := comps.limiter.IsRateLimited(context.Background(), "image", "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, limited)

	cancel()
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	var order []int
	comps := &components{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return assert.AnError },
	}}

	err := comps.Close()
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, comps.Close(), "closers run once")
}

func TestBackendDefaultsToMemory(t *testing.T) {
	assert.Equal(t, ratelimit.BackendMemory, backend(&config.Config{}))
	assert.Equal(t, ratelimit.BackendLibsql, backend(&config.Config{RateLimits: config.RateLimitsConfig{Backend: " LIBSQL "}}))
}
