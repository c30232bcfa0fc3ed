package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/gamearr/internal/pending"
	"github.com/slipstream/gamearr/internal/tracking"
	"github.com/slipstream/gamearr/internal/websocket"
)

// EventGet is the websocket request for the current queue.
const EventGet = "queue:get"

// DownloadRemover removes a live download from its client.
type DownloadRemover interface {
	Remove(ctx context.Context, clientID int64, downloadID string, deleteData bool) error
}

// PendingRemover drops a pending release.
type PendingRemover interface {
	Remove(ctx context.Context, id int64) error
}

// Handlers provides HTTP handlers for the queue.
type Handlers struct {
	service   *Service
	downloads DownloadRemover
	pending   PendingRemover
}

// NewHandlers creates new queue handlers.
func NewHandlers(service *Service, downloads DownloadRemover, pendingStore PendingRemover) *Handlers {
	return &Handlers{service: service, downloads: downloads, pending: pendingStore}
}

// RegisterRoutes registers the queue routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Remove)
}

// RegisterWebSocket answers queue:get requests. The payload may carry a
// titleId filter.
func (h *Handlers) RegisterWebSocket(hub *websocket.Hub) {
	hub.Handle(EventGet, func(_ context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			TitleID int64 `json:"titleId"`
		}
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("invalid queue request: %w", err)
			}
		}
		if req.TitleID > 0 {
			return h.service.GetQueueForTitle(req.TitleID), nil
		}
		return h.service.GetQueue(), nil
	})
}

// List returns the queue, optionally for one title.
// GET /api/v1/queue?titleId=
func (h *Handlers) List(c echo.Context) error {
	if raw := c.QueryParam("titleId"); raw != "" {
		titleID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid title id")
		}
		return c.JSON(http.StatusOK, h.service.GetQueueForTitle(titleID))
	}
	return c.JSON(http.StatusOK, h.service.GetQueue())
}

// Get returns one entry.
// GET /api/v1/queue/:id
func (h *Handlers) Get(c echo.Context) error {
	e, ok := h.service.Find(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, e)
}

// Remove removes the entry from whichever source backs it.
// DELETE /api/v1/queue/:id?deleteData=true
func (h *Handlers) Remove(c echo.Context) error {
	e, ok := h.service.Find(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	ctx := c.Request().Context()

	var err error
	switch e.Source {
	case SourceLive:
		clientRaw, downloadID, _ := strings.Cut(e.SourceID, ":")
		clientID, perr := strconv.ParseInt(clientRaw, 10, 64)
		if perr != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, perr.Error())
		}
		err = h.downloads.Remove(ctx, clientID, downloadID, c.QueryParam("deleteData") == "true")
	case SourcePending:
		id, perr := strconv.ParseInt(e.SourceID, 10, 64)
		if perr != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, perr.Error())
		}
		err = h.pending.Remove(ctx, id)
	}

	switch {
	case err == nil:
	case errors.Is(err, tracking.ErrNotFound), errors.Is(err, pending.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if rerr := h.service.Refresh(ctx); rerr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, rerr.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
