package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/ailink/driver"
	"github.com/fusionlab/fusionlab/internal/ailink/driver/gemini"
	"github.com/fusionlab/fusionlab/internal/ailink/prompt"
	"github.com/fusionlab/fusionlab/internal/config"
	"github.com/fusionlab/fusionlab/internal/counter"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/metrics"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
	"github.com/fusionlab/fusionlab/internal/store"
)

// components holds the wired components shared by serve and the one-shot commands.
type components struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *store.Store
	limiter  ratelimit.Limiter
	counter  counter.Store
	client   *gemini.Client
	service  *fusion.Service
	settings map[fusion.Capability]fusion.Settings
	closers  []func() error
}

// newRuntime opens storage, picks the limiter backend and builds the fusion service.
func newComponents(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: logger, settings: cfg.Capabilities.Settings()}

	if cfg.AILink.TraceFile != "" && !driver.IsTracingEnabled() {
		cleanup, err := driver.EnableTracing(cfg.AILink.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("enable upstream tracing: %w", err)
		}
		c.closers = append(c.closers, func() error { cleanup(); return nil })
	}

	if cfg.UsesStore() {
		db, err := openStore(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.store = db
		c.closers = append(c.closers, db.Close)
	}

	if err := c.buildLimiter(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.buildCounter()

	c.client = newGeminiClient(cfg, logger)

	prompts, err := prompt.RegistryWithOverrides(cfg.AILink.PromptsDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	c.service, err = fusion.NewService(fusion.Options{
		Generator: c.client,
		Limiter:   c.limiter,
		Prompts:   prompts,
		Settings:  c.settings,
		Logger:    logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) buildLimiter(ctx context.Context) error {
	limits := fusion.Limits(c.settings)

	switch backend(c.cfg) {
	case ratelimit.BackendRedis:
		limiter, err := ratelimit.NewRedisLimiter(ctx, c.cfg.Redis, limits)
		if err != nil {
			return err
		}
		limiter.OnReject = c.rejected
		c.limiter = limiter
		c.closers = append(c.closers, limiter.Close)
	case ratelimit.BackendLibsql:
		limiter := store.NewRateLimiter(c.store, limits)
		limiter.OnReject = c.rejected
		c.limiter = limiter
	default:
		limiter := ratelimit.NewMemoryLimiter(limits)
		limiter.OnReject = c.rejected
		c.limiter = limiter
	}
	return nil
}

func (c *components) rejected(class, clientID string) {
	c.debug("Client over budget", zap.String("class", class), zap.String("client_id", clientID))
}

func (c *components) buildCounter() {
	if strings.EqualFold(c.cfg.Counter.Driver, counter.DriverLibsql) {
		c.counter = counter.NewDBStore(c.store)
		return
	}
	c.counter = counter.NewFileStore(c.cfg.Counter.Path, c.logger)
}

// startSweeper drops expired windows in the background for backends that keep
// them. Redis expires keys itself.
func (c *components) startSweeper(ctx context.Context) {
	interval := c.cfg.RateLimits.SweepInterval

	switch limiter := c.limiter.(type) {
	case *ratelimit.MemoryLimiter:
		limiter.StartSweeper(ctx, interval, func(removed, remaining int) {
			metrics.SetRateLimitEntries(remaining)
			c.debug("Swept rate limit windows", zap.Int("removed", removed), zap.Int("remaining", remaining))
		})
	case *store.RateLimiter:
		grace := ratelimit.LongestWindow(limiter.Limits)
		limiter.StartSweeper(ctx, interval, grace, func(removed int64, err error) {
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("Rate limit sweep failed", zap.Error(err))
				}
				return
			}
			if remaining, err := c.store.CountRateLimits(ctx, store.RateLimitQuery{All: true}); err == nil {
				metrics.SetRateLimitEntries(remaining)
			}
			c.debug("Swept rate limit windows", zap.Int64("removed", removed))
		})
	}
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *components) debug(msg string, fields ...zap.Field) {
	if c.logger != nil {
		c.logger.Debug(msg, fields...)
	}
}

func newGeminiClient(cfg *config.Config, logger *logging.Logger) *gemini.Client {
	poster := driver.NewBackoffClient("gemini", cfg.AILink.Timeout, logger)
	client := gemini.NewClient(cfg.AILink.BaseURL, cfg.AILink.APIKey, poster)
	if model := strings.TrimSpace(cfg.AILink.TextModel); model != "" {
		client.TextModel = model
	}
	if model := strings.TrimSpace(cfg.AILink.ImageModel); model != "" {
		client.ImageModel = model
	}
	return client
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func backend(cfg *config.Config) string {
	name := strings.ToLower(strings.TrimSpace(cfg.RateLimits.Backend))
	if name == "" {
		return ratelimit.BackendMemory
	}
	return name
}
