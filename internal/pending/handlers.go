package pending

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/gamearr/internal/downloader"
)

// Handlers provides HTTP handlers for pending releases.
type Handlers struct {
	store *Store
}

// NewHandlers creates a new pending release handlers instance.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers pending release routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.DELETE("", h.RemoveMany)
	g.DELETE("/:id", h.Remove)
	g.POST("/:id/grab", h.ForceGrab)
}

type removeManyRequest struct {
	IDs []int64 `json:"ids"`
}

// List returns pending releases, optionally filtered by titleId.
// GET /api/v1/pending
func (h *Handlers) List(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		releases []*Release
		err      error
	)
	if raw := c.QueryParam("titleId"); raw != "" {
		titleID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid titleId")
		}
		releases, err = h.store.ListForTitle(ctx, titleID)
	} else {
		releases, err = h.store.List(ctx)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if releases == nil {
		releases = []*Release{}
	}
	return c.JSON(http.StatusOK, releases)
}

// Remove deletes one pending release.
// DELETE /api/v1/pending/:id
func (h *Handlers) Remove(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.store.Remove(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveMany deletes pending releases by ID.
// DELETE /api/v1/pending
func (h *Handlers) RemoveMany(c echo.Context) error {
	var req removeManyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.RemoveByIDs(c.Request().Context(), req.IDs); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ForceGrab grabs a pending release immediately.
// POST /api/v1/pending/:id/grab
func (h *Handlers) ForceGrab(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	result, err := h.store.ForceGrab(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTitleBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, downloader.ErrClientUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
