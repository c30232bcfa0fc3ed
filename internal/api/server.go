//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/websocket"
)

// Version is reported by the status endpoint.
var Version = "0.1.0-dev"

// RouteRegistrar is implemented by every package's HTTP handlers.
type RouteRegistrar interface {
	RegisterRoutes(g *echo.Group)
}

// Routes lists the handler sets mounted under /api/v1. Nil entries are
// skipped.
type Routes struct {
	Titles          RouteRegistrar
	History         RouteRegistrar
	DelayProfiles   RouteRegistrar
	Blocklist       RouteRegistrar
	Pending         RouteRegistrar
	RSSSync         RouteRegistrar
	Downloads       RouteRegistrar
	Queue           RouteRegistrar
	DownloadClients RouteRegistrar
	Indexers        RouteRegistrar
	Scheduler       RouteRegistrar
	Logs            RouteRegistrar
}

// Server handles HTTP requests for the gamearr API.
type Server struct {
	echo      *echo.Echo
	hub       *websocket.Hub
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates a new API server instance with every route mounted.
func NewServer(hub *websocket.Hub, routes Routes, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		hub:       hub,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes(routes)
	return s
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	status := map[string]any{
		"version":   Version,
		"startTime": s.startTime.Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.hub != nil {
		status["websocketClients"] = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, status)
}

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
