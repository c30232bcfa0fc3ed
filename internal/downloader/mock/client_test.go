package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/downloader/types"
)

func TestClient_SimulatedProgress(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := New(1, "mock", candidate.ProtocolTorrent)
	c.SetClock(func() time.Time { return now })
	ctx := context.Background()

	id, err := c.Submit(ctx, &candidate.Candidate{Title: "Some.Game.GOG", Size: 1000})
	require.NoError(t, err)

	items, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, types.StatusQueued, items[0].Status)

	now = start.Add(QueueDelay + DownloadDuration/2)
	items, _ = c.List(ctx)
	assert.Equal(t, types.StatusDownloading, items[0].Status)
	assert.Equal(t, int64(500), items[0].Sizeleft)
	require.NotNil(t, items[0].Timeleft)

	now = start.Add(QueueDelay + DownloadDuration)
	items, _ = c.List(ctx)
	assert.Equal(t, types.StatusCompleted, items[0].Status)
	assert.Zero(t, items[0].Sizeleft)
	assert.NotEmpty(t, items[0].OutputPath)
}

func TestClient_SetStatusAndRemove(t *testing.T) {
	c := New(1, "mock", candidate.ProtocolUsenet)
	ctx := context.Background()

	id, err := c.Submit(ctx, &candidate.Candidate{Title: "Some.Game"})
	require.NoError(t, err)

	require.NoError(t, c.SetStatus(id, types.StatusError, "unpack failed"))
	items, _ := c.List(ctx)
	assert.Equal(t, types.StatusError, items[0].Status)
	assert.Equal(t, "unpack failed", items[0].Message)

	require.NoError(t, c.Remove(ctx, id, true))
	assert.Zero(t, c.DownloadCount())
	assert.ErrorIs(t, c.Remove(ctx, id, true), types.ErrNotFound)
	assert.ErrorIs(t, c.SetStatus(id, types.StatusError, ""), types.ErrNotFound)
}

func TestClient_FailWith(t *testing.T) {
	c := New(1, "mock", candidate.ProtocolTorrent)
	c.FailWith(types.ErrNotConnected)

	_, err := c.Submit(context.Background(), &candidate.Candidate{Title: "x"})
	assert.True(t, errors.Is(err, types.ErrNotConnected))
	_, err = c.List(context.Background())
	assert.ErrorIs(t, err, types.ErrNotConnected)

	c.FailWith(nil)
	_, err = c.List(context.Background())
	assert.NoError(t, err)
}
