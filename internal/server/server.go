// Package server exposes the sync engine's state over a small local HTTP
// surface: health, the last pass report, a manual sync trigger and a
// websocket stream of pass reports.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"snapshoot-sync/config"
	"snapshoot-sync/internal/auth"
	"snapshoot-sync/internal/middleware"
	"snapshoot-sync/internal/outbox"
	"snapshoot-sync/pkg/logger"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// Syncer is the orchestrator as seen by the status routes.
type Syncer interface {
	Sync(ctx context.Context) outbox.Report
	Trigger(ctx context.Context)
	Depths(ctx context.Context) ([]outbox.QueueDepth, error)
	LastReport() (outbox.Report, bool)
	Running() bool
}

type Connectivity interface {
	Online() bool
	SetOnline(online bool)
}

type Session interface {
	Claims(ctx context.Context) (auth.TokenClaims, error)
}

// Deps are the parts of the engine the routes read and drive. Health and
// Metrics are optional.
type Deps struct {
	Sync         Syncer
	Connectivity Connectivity
	Session      Session
	Hub          *Hub
	Health       func(ctx context.Context) error
	Metrics      http.Handler
}

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     config.Status
	deps       Deps
	logger     *logger.Logger
}

func New(cfg *config.Config, deps Deps, l *logger.Logger) *Server {
	switch cfg.App.Mode {
	case ReleaseMode, "production":
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	if l == nil {
		l = logger.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Status.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg.Status,
		deps:   deps,
		logger: l,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", s.ping)
	s.engine.GET("/health", s.health)
	s.engine.GET("/status", s.status)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	guarded := middleware.TokenMiddleware(s.config.Token)
	limit := middleware.NewRateLimiter(s.config.SyncPerSecond, s.config.SyncBurst)
	s.engine.POST("/sync", guarded, limit.Handler(), s.sync)
	s.engine.POST("/connectivity", guarded, s.connectivity)

	if s.deps.Hub != nil {
		s.engine.GET("/events", guarded, NewWebSocketHandler(s.deps.Hub, s.logger).Handle)
	}
}

// Handler is the routed engine, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the status server on %s...", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Errorf("Error in starting the status server: %s", err)
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down the status server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the status server: %s", err)
		return err
	}
	s.logger.Infof("Status server stopped gracefully")
	return nil
}
