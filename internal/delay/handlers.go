package delay

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for delay policy operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new delay policy handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers delay policy routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/resolve", h.Resolve)
	g.GET("/match", h.Match)
	g.GET("/tag/:tag", h.ForTag)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/reorder", h.Reorder)
}

type reorderRequest struct {
	Index int `json:"index"`
}

// List returns all policies in order.
// GET /api/v1/delaypolicies
func (h *Handlers) List(c echo.Context) error {
	policies, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toResponses(policies))
}

// Get returns one policy.
// GET /api/v1/delaypolicies/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	policy, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, policy.ToResponse())
}

// Create adds a tagged policy.
// POST /api/v1/delaypolicies
func (h *Handlers) Create(c echo.Context) error {
	var input PolicyInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	policy, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, policy.ToResponse())
}

// Update replaces a policy's settings.
// PUT /api/v1/delaypolicies/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var input PolicyInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	policy, err := h.service.Update(c.Request().Context(), id, input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, policy.ToResponse())
}

// Delete removes a policy.
// DELETE /api/v1/delaypolicies/:id
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

// Reorder moves a policy to a new index.
// PUT /api/v1/delaypolicies/:id/reorder
func (h *Handlers) Reorder(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	policies, err := h.service.Reorder(c.Request().Context(), id, req.Index)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResponses(policies))
}

// Resolve returns the best policy for a tag set.
// GET /api/v1/delaypolicies/resolve?tags=1,2
func (h *Handlers) Resolve(c echo.Context) error {
	tags, err := parseTags(c.QueryParam("tags"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	policy, err := h.service.BestForTags(c.Request().Context(), tags)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, policy.ToResponse())
}

// Match returns every policy applicable to a tag set, including the default.
// GET /api/v1/delaypolicies/match?tags=1,2
func (h *Handlers) Match(c echo.Context) error {
	tags, err := parseTags(c.QueryParam("tags"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	policies, err := h.service.AllForTags(c.Request().Context(), tags)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResponses(policies))
}

// ForTag returns the policies explicitly tagged with a tag.
// GET /api/v1/delaypolicies/tag/:tag
func (h *Handlers) ForTag(c echo.Context) error {
	tag, err := strconv.ParseInt(c.Param("tag"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid tag")
	}
	policies, err := h.service.AllForTag(c.Request().Context(), tag)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toResponses(policies))
}

func parseTags(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]int64, 0, len(parts))
	for _, part := range parts {
		tag, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, errors.New("invalid tags")
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func toResponses(policies []*Policy) []PolicyResponse {
	out := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.ToResponse())
	}
	return out
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDefaultPolicy), errors.Is(err, ErrInvalidPolicy):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
