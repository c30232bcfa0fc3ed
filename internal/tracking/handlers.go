package tracking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for tracked downloads.
type Handlers struct {
	service *Service
}

// NewHandlers creates new tracking handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the tracking routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("/poll", h.Poll)
	g.GET("/:clientId/:downloadId", h.Get)
	g.POST("/:clientId/:downloadId/ignore", h.Ignore)
	g.DELETE("/:clientId/:downloadId", h.Remove)
}

// List returns every tracked download.
// GET /api/v1/downloads
func (h *Handlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Downloads())
}

// Poll polls every client now.
// POST /api/v1/downloads/poll
func (h *Handlers) Poll(c echo.Context) error {
	if err := h.service.PollAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Get returns one tracked download.
// GET /api/v1/downloads/:clientId/:downloadId
func (h *Handlers) Get(c echo.Context) error {
	clientID, downloadID, err := params(c)
	if err != nil {
		return err
	}
	td, err := h.service.Find(clientID, downloadID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, td)
}

// Ignore stops tracking a download.
// POST /api/v1/downloads/:clientId/:downloadId/ignore
func (h *Handlers) Ignore(c echo.Context) error {
	clientID, downloadID, err := params(c)
	if err != nil {
		return err
	}
	if err := h.service.Ignore(c.Request().Context(), clientID, downloadID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Remove deletes a download from its client.
// DELETE /api/v1/downloads/:clientId/:downloadId?deleteData=true
func (h *Handlers) Remove(c echo.Context) error {
	clientID, downloadID, err := params(c)
	if err != nil {
		return err
	}
	deleteData := c.QueryParam("deleteData") == "true"
	if err := h.service.Remove(c.Request().Context(), clientID, downloadID, deleteData); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func params(c echo.Context) (int64, string, error) {
	clientID, err := strconv.ParseInt(c.Param("clientId"), 10, 64)
	if err != nil {
		return 0, "", echo.NewHTTPError(http.StatusBadRequest, "invalid client id")
	}
	return clientID, c.Param("downloadId"), nil
}

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
