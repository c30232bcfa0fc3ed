package indexer

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/gamearr/internal/indexer/status"
)

// StatusReader exposes the indexer failure ledger.
type StatusReader interface {
	All(ctx context.Context) (map[int64]*status.IndexerStatus, error)
}

// Handlers provides HTTP handlers for indexer inspection.
type Handlers struct {
	service  *Service
	statuses StatusReader
}

// NewHandlers creates a new indexer handlers instance. statuses may be nil.
func NewHandlers(service *Service, statuses StatusReader) *Handlers {
	return &Handlers{service: service, statuses: statuses}
}

// RegisterRoutes registers indexer routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
}

type indexerResponse struct {
	ID       int64                 `json:"id"`
	Name     string                `json:"name"`
	Protocol string                `json:"protocol"`
	Health   status.HealthStatus   `json:"health"`
	Status   *status.IndexerStatus `json:"status,omitempty"`
}

// List returns the registered indexers with their failure ledger.
// GET /api/v1/indexers
func (h *Handlers) List(c echo.Context) error {
	var ledger map[int64]*status.IndexerStatus
	if h.statuses != nil {
		var err error
		if ledger, err = h.statuses.All(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	adapters := h.service.List()
	resp := make([]indexerResponse, len(adapters))
	for i, a := range adapters {
		resp[i] = indexerResponse{ID: a.ID(), Name: a.Name(), Protocol: string(a.Protocol()), Health: status.HealthStatusUnknown}
		if st, ok := ledger[a.ID()]; ok {
			resp[i].Health = st.Health()
			resp[i].Status = st
		}
	}
	return c.JSON(http.StatusOK, resp)
}
