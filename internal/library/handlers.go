package library

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for title operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new title handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the title routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id/monitored", h.SetMonitored)
	g.DELETE("/:id", h.Delete)
}

// List returns all titles, or only monitored ones with ?monitored=true.
// GET /api/v1/titles
func (h *Handlers) List(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		titles []*Title
		err    error
	)
	if c.QueryParam("monitored") == "true" {
		titles, err = h.service.ListMonitored(ctx)
	} else {
		titles, err = h.service.List(ctx)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if titles == nil {
		titles = []*Title{}
	}
	return c.JSON(http.StatusOK, titles)
}

// Get returns a single title.
// GET /api/v1/titles/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	title, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, title)
}

// Create adds a title.
// POST /api/v1/titles
func (h *Handlers) Create(c echo.Context) error {
	var input CreateTitleInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	title, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, title)
}

// SetMonitored toggles monitoring.
// PUT /api/v1/titles/:id/monitored
func (h *Handlers) SetMonitored(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var body struct {
		Monitored bool `json:"monitored"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.SetMonitored(c.Request().Context(), id, body.Monitored); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a title.
// DELETE /api/v1/titles/:id
func (h *Handlers) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrTitleNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTitle):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
