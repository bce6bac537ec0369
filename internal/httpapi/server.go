// Package httpapi provides the HTTP API for threadwise.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/digest"
	"github.com/fyrsmithlabs/threadwise/internal/qa"
)

// Server exposes question answering and digests over HTTP.
type Server struct {
	echo    *echo.Echo
	qa      *qa.Service
	digests *digest.Service
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(qaSvc *qa.Service, digests *digest.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if qaSvc == nil {
		return nil, fmt.Errorf("qa service cannot be nil")
	}
	if digests == nil {
		return nil, fmt.Errorf("digest service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8085,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		qa:      qaSvc,
		digests: digests,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/workspaces/:workspace_id/qa", s.handleAsk)
	v1.GET("/workspaces/:workspace_id/digest", s.handleDigest)
}

// AskRequest is the request body for POST /api/v1/workspaces/:workspace_id/qa.
type AskRequest struct {
	Question      string `json:"question"`
	ContextSize   int    `json:"context_size,omitempty"`
	ChannelFilter string `json:"channel_filter,omitempty"`
	DaysBack      int    `json:"days_back,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAsk answers a question against one workspace's history.
func (s *Server) handleAsk(c echo.Context) error {
	workspaceID := c.Param("workspace_id")

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid qa request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	answer, err := s.qa.Ask(c.Request().Context(), workspaceID, req.Question, qa.AskOptions{
		ContextSize:   req.ContextSize,
		ChannelFilter: req.ChannelFilter,
		DaysBack:      req.DaysBack,
	})
	if err != nil {
		switch {
		case errors.Is(err, qa.ErrInvalidTenant):
			return echo.NewHTTPError(http.StatusBadRequest, "workspace id is required")
		case errors.Is(err, qa.ErrEmptyQuestion):
			return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
		default:
			s.logger.Error("answering question failed",
				zap.String("workspace_id", workspaceID),
				zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to answer question")
		}
	}

	return c.JSON(http.StatusOK, answer)
}

// DigestResponse wraps a rendered digest.
type DigestResponse struct {
	WorkspaceID  string    `json:"workspace_id"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	MessageCount int       `json:"message_count"`
	Markdown     string    `json:"markdown"`
}

// handleDigest builds an activity digest for one workspace.
// Query params: days (default 7), channel.
func (s *Server) handleDigest(c echo.Context) error {
	workspaceID := c.Param("workspace_id")

	var days int
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a non-negative integer")
		}
		days = n
	}

	d, err := s.digests.Build(c.Request().Context(), workspaceID, digest.Options{
		Days:        days,
		ChannelName: c.QueryParam("channel"),
	})
	if err != nil {
		if errors.Is(err, qa.ErrInvalidTenant) {
			return echo.NewHTTPError(http.StatusBadRequest, "workspace id is required")
		}
		s.logger.Error("building digest failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build digest")
	}

	return c.JSON(http.StatusOK, DigestResponse{
		WorkspaceID:  d.WorkspaceID,
		PeriodStart:  d.PeriodStart,
		PeriodEnd:    d.PeriodEnd,
		MessageCount: d.MessageCount,
		Markdown:     d.Markdown(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
