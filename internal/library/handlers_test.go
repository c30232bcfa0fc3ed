package library

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/testutil"
)

func newHandlerServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	svc := NewService(tdb.Conn, tdb.Logger)
	e := echo.New()
	NewHandlers(svc).RegisterRoutes(e.Group("/titles"))
	return e, svc
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_CreateGetMonitor(t *testing.T) {
	e, _ := newHandlerServer(t)

	rec := do(e, http.MethodPost, "/titles", `{"name":"Celeste","year":2018,"monitored":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Title
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "celeste", created.CleanName)
	assert.Equal(t, AvailabilityReleased, created.MinimumAvailability)

	rec = do(e, http.MethodPut, "/titles/1/monitored", `{"monitored":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/titles?monitored=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(e, http.MethodGet, "/titles/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got Title
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Monitored)
}

func TestHandlers_Errors(t *testing.T) {
	e, _ := newHandlerServer(t)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/titles", `{"name":"  "}`).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/titles/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/titles/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/titles/42", "").Code)
}
