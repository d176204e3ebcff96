// Package api exposes stored fraction sets over a read-only HTTP service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jetfakes/internal"
)

// Server represents the fraction lookup web server
type Server struct {
	router  *gin.Engine
	handler *FractionHandler
	logger  *internal.Logger
}

// NewServer creates a server with its routes registered
func NewServer(loader SetLoader, ginMode string, logger *internal.Logger) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	if logger == nil {
		logger = internal.NopLogger()
	}
	s := &Server{
		router:  gin.New(),
		handler: NewFractionHandler(loader, logger),
		logger:  logger,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/v1/fractions/:channel/:period")
	{
		v1.GET("", s.handler.GetRun)
		v1.GET("/lookup", s.handler.Lookup)
		v1.GET("/surfaces/:category/:group", s.handler.GetSurface)
	}
}

// requestLogger logs every request at DEBUG
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("[API] %s %s %d %v", c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start))
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[API] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("[API] shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
