package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apimw "github.com/slipstream/gamearr/internal/api/middleware"
)

const apiPrefix = "/api/v1"

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders(apiPrefix))

	// Request body size limit (2MB)
	s.echo.Use(middleware.BodyLimit("2M"))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes(routes Routes) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", metricsHandler())
	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}

	api := s.echo.Group(apiPrefix)
	api.GET("/status", s.getStatus)

	mount(api, "/titles", routes.Titles)
	mount(api, "/history", routes.History)
	mount(api, "/delayprofiles", routes.DelayProfiles)
	mount(api, "/blocklist", routes.Blocklist)
	mount(api, "/pending", routes.Pending)
	mount(api, "/rsssync", routes.RSSSync)
	mount(api, "/downloads", routes.Downloads)
	mount(api, "/queue", routes.Queue)
	mount(api, "/downloadclients", routes.DownloadClients)
	mount(api, "/indexers", routes.Indexers)
	mount(api, "/scheduler", routes.Scheduler)
	mount(api, "/logs", routes.Logs)
}

func mount(api *echo.Group, prefix string, r RouteRegistrar) {
	if r == nil {
		return
	}
	r.RegisterRoutes(api.Group(prefix))
}
