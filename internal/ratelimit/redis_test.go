package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	limiter, err := NewRedisLimiter(context.Background(), RedisConfig{Addr: mr.Addr()}, map[string]RateLimit{
		"description": {RequestsPerWindow: 2, WindowDuration: time.Minute},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	return limiter, mr
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newRedisLimiter(t)

	for i := 0; i < 2; i++ {
		limited, err := limiter.IsRateLimited(ctx, "description", "10.0.0.1")
		require.NoError(t, err)
		require.False(t, limited)
	}

	limited, err := limiter.IsRateLimited(ctx, "description", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, limited)

	value, err := mr.Get("fusionlab:ratelimit:description:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	assert.Equal(t, time.Minute, mr.TTL("fusionlab:ratelimit:description:10.0.0.1"), "rejections do not extend the window")

	mr.FastForward(time.Minute + time.Millisecond)

	limited, err = limiter.IsRateLimited(ctx, "description", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestRedisLimiterIsolatesClients(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newRedisLimiter(t)

	var rejected int
	limiter.OnReject = func(string, string) { rejected++ }

	for i := 0; i < 3; i++ {
		_, err := limiter.IsRateLimited(ctx, "description", "a")
		require.NoError(t, err)
	}
	limited, err := limiter.IsRateLimited(ctx, "description", "b")
	require.NoError(t, err)

	assert.False(t, limited)
	assert.Equal(t, 1, rejected)
}

func TestRedisLimiterRequiresAddress(t *testing.T) {
	_, err := NewRedisLimiter(context.Background(), RedisConfig{}, nil)
	require.Error(t, err)
}

func TestClientID(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		expected  string
	}{
		{name: "first forwarded entry", forwarded: " 203.0.113.7 , 10.0.0.1", expected: "203.0.113.7"},
		{name: "real ip", realIP: "198.51.100.2", expected: "198.51.100.2"},
		{name: "forwarded wins over real ip", forwarded: "203.0.113.8", realIP: "198.51.100.2", expected: "203.0.113.8"},
		{name: "empty forwarded entry falls through", forwarded: " ,10.0.0.1", realIP: "198.51.100.3", expected: "198.51.100.3"},
		{name: "no headers", expected: UnknownClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/suggest-ideas", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.expected, ClientID(req))
		})
	}
}
