package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the connection used by RedisLimiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// The window key expires on its own, so a missing key is a fresh window.
var fixedWindowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
  return 0
end
if tonumber(current) >= tonumber(ARGV[1]) then
  return 1
end
redis.call('INCR', KEYS[1])
return 0
`)

// RedisLimiter shares window state between replicas through Redis.
type RedisLimiter struct {
	Limits   map[string]RateLimit
	OnReject func(class, clientID string)

	client *redis.Client
	prefix string
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(ctx context.Context, cfg RedisConfig, limits map[string]RateLimit) (*RedisLimiter, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fusionlab:ratelimit:"
	}

	return &RedisLimiter{Limits: limits, client: client, prefix: prefix}, nil
}

// IsRateLimited records the request and reports whether it exceeds the budget.
func (r *RedisLimiter) IsRateLimited(ctx context.Context, class, clientID string) (bool, error) {
	limit := ResolveLimit(r.Limits, class)

	res, err := fixedWindowScript.Run(ctx, r.client,
		[]string{r.prefix + Key(class, clientID)},
		limit.RequestsPerWindow,
		limit.WindowDuration.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	if res == 1 {
		if r.OnReject != nil {
			r.OnReject(class, clientID)
		}
		return true, nil
	}
	return false, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (r *RedisLimiter) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
