// Package server is the HTTP surface over the service facade. It holds no
// business logic: handlers decode requests, call the service, and map error
// codes to HTTP statuses.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	sifterr "github.com/sarsift/sarsift/internal/errors"
	"github.com/sarsift/sarsift/internal/service"
)

// Server wraps the gin engine and the service it fronts.
type Server struct {
	svc    *service.Service
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the server and registers all routes.
func New(svc *service.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{svc: svc, logger: logger, engine: engine}
	s.registerRoutes()
	return s
}

// Handler exposes the router for net/http and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)

	idx := s.engine.Group("/index")
	idx.POST("/start", s.handleStart)
	idx.GET("/status", s.handleStatus)
	idx.GET("/result", s.handleResult)
	idx.GET("/identifiers", s.handleIdentifiers)
	idx.GET("/cluster", s.handleCluster)
	idx.POST("/clusters/update", s.handleUpdateClusters)
	idx.POST("/search", s.handleSearch)
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps structured error codes onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	code := sifterr.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case code == sifterr.ErrCodeUnknownJob || code == sifterr.ErrCodeUnknownCluster:
		status = http.StatusNotFound
	case code == sifterr.ErrCodeJobNotReady:
		status = http.StatusConflict
	case sifterr.IsValidation(err):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
