// Package ratelimit admits or rejects requests per (class, client) pair using
// fixed-window counters.
//
// A window starts on the first request for a key and lasts WindowDuration. The
// first RequestsPerWindow requests are admitted; the rest are rejected until
// the window expires. Because windows are not aligned, a client may get up to
// twice the threshold admitted across a window boundary. That is accepted.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Limiter decides whether a client has exhausted its budget for a class.
type Limiter interface {
	IsRateLimited(ctx context.Context, class, clientID string) (bool, error)
}

// RateLimit represents a fixed-window budget.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// FallbackLimit applies to classes without a configured budget.
var FallbackLimit = RateLimit{RequestsPerWindow: 30, WindowDuration: time.Minute}

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendLibsql = "libsql"
)

// ResolveLimit returns the budget for class, or FallbackLimit.
func ResolveLimit(limits map[string]RateLimit, class string) RateLimit {
	if limit, ok := limits[strings.TrimSpace(class)]; ok {
		if limit.RequestsPerWindow > 0 && limit.WindowDuration > 0 {
			return limit
		}
	}
	return FallbackLimit
}

// Key joins class and client into the window key.
func Key(class, clientID string) string {
	return class + ":" + clientID
}

// LongestWindow returns the longest window among limits and the fallback.
// Sweepers use it as the grace period so no live window is dropped.
func LongestWindow(limits map[string]RateLimit) time.Duration {
	longest := FallbackLimit.WindowDuration
	for _, limit := range limits {
		if limit.WindowDuration > longest {
			longest = limit.WindowDuration
		}
	}
	return longest
}
