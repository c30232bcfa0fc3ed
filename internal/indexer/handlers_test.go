package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/mock"
	"github.com/slipstream/gamearr/internal/indexer/status"
	"github.com/slipstream/gamearr/internal/testutil"
)

type staticLedger map[int64]*status.IndexerStatus

func (l staticLedger) All(context.Context) (map[int64]*status.IndexerStatus, error) { return l, nil }

func TestHandlers_ListReportsHealth(t *testing.T) {
	svc := NewService(testutil.NopLogger())
	svc.Register(mock.New(1, "Failing", candidate.ProtocolTorrent))
	svc.Register(mock.New(2, "Fresh", candidate.ProtocolUsenet))

	failedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := staticLedger{1: {IndexerID: 1, ConsecutiveFailures: 3, LastError: "timeout", MostRecentFailure: &failedAt}}

	e := echo.New()
	NewHandlers(svc, ledger).RegisterRoutes(e.Group("/api/v1/indexers"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/indexers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []indexerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	byName := map[string]indexerResponse{resp[0].Name: resp[0], resp[1].Name: resp[1]}

	assert.Equal(t, status.HealthStatusFailing, byName["Failing"].Health)
	require.NotNil(t, byName["Failing"].Status)
	assert.Equal(t, "timeout", byName["Failing"].Status.LastError)
	assert.Equal(t, status.HealthStatusUnknown, byName["Fresh"].Health)
	assert.Nil(t, byName["Fresh"].Status)
}
