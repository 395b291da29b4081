package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/config"
	errwrap "github.com/fusionlab/fusionlab/internal/errors"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/metrics"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/server"
	"github.com/fusionlab/fusionlab/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// adminTokenEnv names the bearer token for /admin/signal in debug mode.
const adminTokenEnv = "FUSIONLAB_ADMIN_TOKEN"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload configuration (limits and backends apply on restart)`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(ctx, serveOverrides(cmd))
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "failed to load configuration")
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()
	if namespace == "" {
		namespace = identity.BinaryName
	}

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(namespace, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	comps, err := newComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to wire components", zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "component setup failed")
	}
	comps.startSweeper(sweepCtx)

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("rate_limit_backend", backend(cfg)),
		zap.String("counter_driver", cfg.Counter.Driver),
		zap.Bool("credential_configured", comps.client.Configured()),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	handlers.SetAppIdentity(identity)
	handlers.InitHealthManager(versionInfo.Version)
	registerHealthChecks(handlers.GetHealthManager(), comps, identity, cfg.Metrics.Enabled)
	metrics.SetServerStartTime(time.Now().Unix())

	var adminToken string
	if cfg.Debug.Enabled {
		adminToken = strings.TrimSpace(os.Getenv(adminTokenEnv))
		if adminToken == "" {
			logger.Warn("Debug mode is on but no admin token is set; /admin/signal stays disabled",
				zap.String("env", adminTokenEnv))
		}
	}

	writeTimeout := responseDeadline(cfg.Server.WriteTimeout, comps.settings, cfg.AILink.Timeout)
	if writeTimeout != cfg.Server.WriteTimeout {
		logger.Info("Raised write timeout to cover the retry budget",
			zap.Duration("configured", cfg.Server.WriteTimeout),
			zap.Duration("effective", writeTimeout))
	}

	srv := server.New(server.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Fusion:       comps.service,
		Counter:      comps.counter,
		Health:       cfg.Health.Enabled,
		Metrics:      cfg.Metrics.Enabled,
		AdminToken:   adminToken,
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Handlers run last registered first.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.StopMetrics(); err != nil {
			logger.Warn("Failed to stop metrics exporter", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		stopSweep()
		if err := comps.Close(); err != nil {
			logger.Warn("Failed to release components", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: reloading configuration")
		if _, err := loadConfig(ctx, serveOverrides(cmd)); err != nil {
			logger.Error("Failed to reload configuration",
				zap.String("file", config.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		logger.Info("Configuration reloaded", zap.String("file", config.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- srv.Start()
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		_ = comps.Close()
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// serveOverrides turns explicitly set flags into runtime overrides, which
// outrank the config file and the environment.
func serveOverrides(cmd *cobra.Command) map[string]any {
	serverOverrides := map[string]any{}
	if cmd.Flags().Changed("host") {
		serverOverrides["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		serverOverrides["port"] = serverPort
	}
	if len(serverOverrides) == 0 {
		return nil
	}
	return map[string]any{"server": serverOverrides}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}

// responseSlack leaves room to write the error body after the last attempt.
const responseSlack = 5 * time.Second

// responseDeadline keeps the write timeout above the slowest possible
// generation so exhausted retries still reach the client as a 500 body.
func responseDeadline(configured time.Duration, settings map[fusion.Capability]fusion.Settings, perAttempt time.Duration) time.Duration {
	need := fusion.CallBudget(settings, perAttempt) + responseSlack
	if configured < need {
		return need
	}
	return configured
}
