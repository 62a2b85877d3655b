// internal/interfaces/http/server.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/config"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/middleware"
	"github.com/your-org/inventory-ledger/internal/interfaces/http/routes"
	"github.com/your-org/inventory-ledger/internal/pkg/metrics"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Options are the collaborators the server is built from
type Options struct {
	Services    *routes.Services
	Log         logrus.FieldLogger
	Metrics     *metrics.Metrics
	RedisClient *redis.Client
	// Checks run on /health, keyed by dependency name
	Checks map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	opts       Options
	gin        *gin.Engine
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a new HTTP server instance with all routes mounted
func NewServer(cfg *config.Config, opts Options) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    cfg,
		opts:      opts,
		gin:       gin.New(),
		startedAt: time.Now(),
	}
	if len(cfg.Security.TrustedProxies) > 0 {
		if err := s.gin.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
			opts.Log.WithError(err).Warn("invalid trusted proxies, ignoring")
		}
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.gin,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.opts.Log.Infof("🚀 HTTP Server starting on port %s", s.config.Server.Port)
	s.opts.Log.Infof("🌐 API Base URL: http://localhost:%s/api/v1", s.config.Server.Port)
	s.opts.Log.Infof("📊 Health Check: http://localhost:%s/health", s.config.Server.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.opts.Log.Info("🛑 Shutting down HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.opts.Log.Info("✅ HTTP server stopped gracefully")
	return nil
}

// setupMiddleware configures all middleware for the server
func (s *Server) setupMiddleware() {
	s.gin.Use(gin.Recovery())
	s.gin.Use(middleware.RequestID())
	s.gin.Use(middleware.Logger(s.opts.Log, s.opts.Metrics))
	s.gin.Use(middleware.CORS(s.config))
	s.gin.Use(middleware.SecurityHeaders(s.config.App.Name))
	s.gin.Use(middleware.RateLimit(s.config, s.opts.RedisClient, s.opts.Log))
	s.gin.Use(middleware.RequestSizeLimit(1 << 20))
	s.gin.Use(middleware.Timeout(s.config.Server.RequestTimeout))
}

// setupRoutes configures all routes for the server
func (s *Server) setupRoutes() {
	s.gin.GET("/health", s.healthCheck)
	s.gin.GET("/ready", s.readinessCheck)

	if s.config.Metrics.Enabled && s.opts.Metrics != nil {
		s.gin.GET(s.config.Metrics.Path, gin.WrapH(s.opts.Metrics.Handler()))
	}

	apiV1 := s.gin.Group("/api/v1")
	routes.SetupRoutes(apiV1, s.opts.Services, s.config)

	if s.config.IsDevelopment() {
		s.gin.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message":     s.config.App.Name,
				"version":     s.config.App.Version,
				"environment": s.config.App.Environment,
				"health":      "/health",
				"endpoints": gin.H{
					"purchasing": "/api/v1/purchasing",
					"sales":      "/api/v1/sales",
					"inventory":  "/api/v1/inventory",
					"report":     "/api/v1/report",
				},
			})
		})
	}
}

// healthCheck runs every dependency check
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			s.opts.Log.WithError(err).WithField("dependency", name).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  name + " check failed",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     s.config.App.Version,
		"environment": s.config.App.Environment,
		"store":       s.config.Inventory.StoreDriver,
	})
}

// readinessCheck reports that the router is serving
func (s *Server) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).String(),
	})
}
