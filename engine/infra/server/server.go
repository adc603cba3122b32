package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airtide/airtide/engine/core"
	"github.com/airtide/airtide/engine/infra/postgres"
	"github.com/airtide/airtide/engine/task"
	tkrouter "github.com/airtide/airtide/engine/task/router"
	"github.com/airtide/airtide/engine/task/uc"
	"github.com/airtide/airtide/engine/workflow"
	"github.com/airtide/airtide/pkg/config"
	"github.com/airtide/airtide/pkg/logger"
)

const (
	httpReadTimeout       = 15 * time.Second
	httpWriteTimeout      = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	serverShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg        *config.Config
	store      *postgres.Store
	taskRepo   task.Repository
	catalog    workflow.Catalog
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	store *postgres.Store,
	taskRepo task.Repository,
	catalog workflow.Catalog,
) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		taskRepo: taskRepo,
		catalog:  catalog,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.GET("/health", s.handleHealth)
	api := engine.Group("/api/v1")
	handlers := tkrouter.NewHandlers(s.taskRepo, s.catalog, uc.ListLimits{
		DefaultPageSize: s.cfg.Limits.DefaultPageLimit,
		MaxPageSize:     s.cfg.Limits.MaxPageLimit,
	})
	tkrouter.Register(api, handlers)
	return engine
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run serves HTTP until the context is canceled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	log.Info("server shutting down")
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = serverShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Router exposes the gin engine, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// requestLogger assigns each request an id, scopes the context logger to it
// and logs the outcome. Incoming X-Request-ID headers are honored so callers
// can correlate across services.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = core.MustNewID().String()
		}
		c.Writer.Header().Set("X-Request-ID", requestID)
		log := logger.FromContext(c.Request.Context()).With("request_id", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
