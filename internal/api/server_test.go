package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/logger"
	"github.com/slipstream/gamearr/internal/testutil"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(g *echo.Group) {
	g.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
}

type staticLogs struct{ entries []logger.LogEntry }

func (s staticLogs) GetRecentLogs() []logger.LogEntry { return s.entries }
func (staticLogs) GetLogFilePath() string             { return "" }

func (s staticLogs) TailLogs(limit int, minLevel zerolog.Level) []logger.LogEntry {
	var out []logger.LogEntry
	for _, e := range s.entries {
		if lvl, _ := zerolog.ParseLevel(e.Level); lvl >= minLevel {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthAndStatus(t *testing.T) {
	s := NewServer(nil, Routes{}, testutil.NopLogger())

	rec := serve(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, Version, status["version"])
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
}

func TestServer_MountsRoutes(t *testing.T) {
	s := NewServer(nil, Routes{Titles: pingRoutes{}}, testutil.NopLogger())

	rec := serve(s, http.MethodGet, "/api/v1/titles/ping")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/v1/queue").Code, "unset routes are not mounted")
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(nil, Routes{}, testutil.NopLogger())

	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLogsHandlers(t *testing.T) {
	provider := staticLogs{entries: []logger.LogEntry{{Level: "info", Message: "hello"}}}
	s := NewServer(nil, Routes{Logs: NewLogsHandlers(provider)}, testutil.NopLogger())

	rec := serve(s, http.MethodGet, "/api/v1/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []logger.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/v1/logs/download").Code)
}

func TestLogsHandlers_TailQuery(t *testing.T) {
	provider := staticLogs{entries: []logger.LogEntry{
		{Level: "debug", Message: "one"},
		{Level: "warn", Message: "two"},
		{Level: "error", Message: "three"},
	}}
	s := NewServer(nil, Routes{Logs: NewLogsHandlers(provider)}, testutil.NopLogger())

	rec := serve(s, http.MethodGet, "/api/v1/logs?level=warn&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []logger.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "three", entries[0].Message)

	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/api/v1/logs?level=loud").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/api/v1/logs?limit=-3").Code)
}
