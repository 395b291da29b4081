package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	if s.opts.Health {
		s.router.Get("/health", handlers.HealthHandler)
		s.router.Get("/health/live", handlers.LivenessHandler)
		s.router.Get("/health/ready", handlers.ReadinessHandler)
		s.router.Get("/health/startup", handlers.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)

	if s.opts.Metrics {
		s.router.Get("/metrics", MetricsHandler)
	}

	if s.opts.Fusion != nil {
		fusion := handlers.NewFusionHandlers(s.opts.Fusion)
		s.router.Post("/api/generate-image", fusion.GenerateImage)
		s.router.Post("/api/generate-description", fusion.GenerateDescription)
		s.router.Post("/api/suggest-ideas", fusion.SuggestIdeas)
	}
	if s.opts.Counter != nil {
		count := handlers.NewCounterHandlers(s.opts.Counter)
		s.router.Get("/api/fusion-count", count.Get)
		s.router.Post("/api/fusion-count", count.Increment)
	}

	s.registerAdminEndpoint()
}

func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep this server off the public internet",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
