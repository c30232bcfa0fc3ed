//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/logger"
)

// LogsProvider provides access to log data.
type LogsProvider interface {
	GetRecentLogs() []logger.LogEntry
	TailLogs(limit int, minLevel zerolog.Level) []logger.LogEntry
	GetLogFilePath() string
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
}

// NewLogsHandlers creates a new logs handlers instance.
func NewLogsHandlers(provider LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries from the ring buffer.
// GET /api/v1/logs?limit=100&level=warn
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	var logs []logger.LogEntry
	limitParam, levelParam := c.QueryParam("limit"), c.QueryParam("level")
	if limitParam == "" && levelParam == "" {
		logs = h.provider.GetRecentLogs()
	} else {
		limit := 0
		if limitParam != "" {
			n, err := strconv.Atoi(limitParam)
			if err != nil || n < 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
			}
			limit = n
		}
		minLevel := zerolog.TraceLevel
		if levelParam != "" {
			lvl, err := zerolog.ParseLevel(levelParam)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid level")
			}
			minLevel = lvl
		}
		logs = h.provider.TailLogs(limit, minLevel)
	}
	if logs == nil {
		logs = []logger.LogEntry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	logPath := h.provider.GetLogFilePath()
	if logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(logPath, logger.LogFileName)
}
