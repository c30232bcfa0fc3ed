package rsssync

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/gamearr/internal/library"
)

// Handlers provides HTTP handlers for RSS sync operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new RSS sync handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the RSS sync routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/trigger", h.Trigger)
	g.GET("/status", h.GetStatus)
	g.POST("/search/:titleId", h.Search)
}

// Trigger manually triggers an RSS sync.
// POST /api/v1/rsssync/trigger
func (h *Handlers) Trigger(c echo.Context) error {
	if h.service.IsRunning() {
		return echo.NewHTTPError(http.StatusConflict, "RSS sync already running")
	}

	go func() {
		_ = h.service.Run(context.WithoutCancel(c.Request().Context()))
	}()

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "RSS sync started",
	})
}

// GetStatus returns the last RSS sync status.
// GET /api/v1/rsssync/status
func (h *Handlers) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.LastStatus())
}

// Search runs a targeted search for one title. With ?grab=true the best
// result is grabbed, otherwise the evaluated releases are returned.
// POST /api/v1/rsssync/search/:titleId
func (h *Handlers) Search(c echo.Context) error {
	titleID, err := strconv.ParseInt(c.Param("titleId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid title id")
	}
	ctx := c.Request().Context()

	if c.QueryParam("grab") == "true" {
		result, err := h.service.SearchAndGrab(ctx, titleID)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, result)
	}

	decisions, err := h.service.Search(ctx, titleID, true)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, decisions)
}

func mapError(err error) error {
	if errors.Is(err, library.ErrTitleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "title not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
