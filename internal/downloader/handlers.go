package downloader

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for download client inspection.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new download client handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers download client routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id/items", h.Items)
}

type clientResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
}

// List returns all enabled clients in priority order.
// GET /api/v1/downloadclients
func (h *Handlers) List(c echo.Context) error {
	clients := h.service.List()
	resp := make([]clientResponse, len(clients))
	for i, client := range clients {
		resp[i] = clientResponse{ID: client.ID(), Name: client.Name(), Protocol: string(client.Protocol())}
	}
	return c.JSON(http.StatusOK, resp)
}

// Items returns the raw items a client currently reports.
// GET /api/v1/downloadclients/:id/items
func (h *Handlers) Items(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	client, err := h.service.Get(id)
	if errors.Is(err, ErrClientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	items, err := client.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
