package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"NewsIngest/internal/usecase"
)

// Server exposes the ingestion core over HTTP. Handlers decode, validate
// and delegate; all behavior lives in the manager.
type Server struct {
	e       *echo.Echo
	manager *usecase.Manager
	addr    string
	logger  *slog.Logger
}

// NewServer wires routes onto a fresh echo instance.
func NewServer(manager *usecase.Manager, addr string, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{e: e, manager: manager, addr: addr, logger: logger}

	api := e.Group("/api/crawler")
	api.GET("/status", s.status)
	api.POST("/run", s.run)
	api.POST("/scheduler/start", s.startScheduler)
	api.POST("/scheduler/stop", s.stopScheduler)
	api.PUT("/scheduler/auto", s.setAutoCrawl)
	api.PUT("/filter", s.updateFilter)

	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("http server listening", "addr", s.addr)
	}
	return s.e.Start(s.addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Status())
}

func (s *Server) run(c echo.Context) error {
	report, err := s.manager.RunOnce(c.Request().Context())
	switch {
	case errors.Is(err, usecase.ErrAlreadyRunning):
		return c.JSON(http.StatusConflict, errorBody(err))
	case err != nil:
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}
	return c.JSON(http.StatusOK, report)
}

type startSchedulerRequest struct {
	IntervalMinutes int `json:"interval_minutes"`
}

func (s *Server) startScheduler(c echo.Context) error {
	req := startSchedulerRequest{IntervalMinutes: 60}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	if req.IntervalMinutes <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "interval_minutes must be positive",
		})
	}

	interval := time.Duration(req.IntervalMinutes) * time.Minute
	if err := s.manager.StartScheduler(interval); err != nil {
		if errors.Is(err, usecase.ErrSchedulerActive) {
			return c.JSON(http.StatusConflict, errorBody(err))
		}
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "scheduler started",
	})
}

func (s *Server) stopScheduler(c echo.Context) error {
	s.manager.StopScheduler()
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "scheduler stopped",
	})
}

type setAutoCrawlRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) setAutoCrawl(c echo.Context) error {
	var req setAutoCrawlRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	if req.Enabled == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "enabled is required",
		})
	}

	s.manager.SetAutoCrawl(*req.Enabled)
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"enabled": *req.Enabled,
	})
}

type updateFilterRequest struct {
	MaxAgeDays *int  `json:"max_age_days"`
	Enabled    *bool `json:"enabled"`
}

func (s *Server) updateFilter(c echo.Context) error {
	var req updateFilterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	current := s.manager.Status().Filter
	maxAgeDays := current.MaxAgeDays
	enabled := current.Enabled
	if req.MaxAgeDays != nil {
		maxAgeDays = *req.MaxAgeDays
	}
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	if err := s.manager.UpdatePolicy(maxAgeDays, enabled); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"filter": s.manager.Status().Filter,
	})
}

func errorBody(err error) map[string]string {
	return map[string]string{"status": "error", "message": err.Error()}
}
