package downloader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/downloader/mock"
	"github.com/slipstream/gamearr/internal/events"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/library"
	"github.com/slipstream/gamearr/internal/testutil"
)

type recordingHistory struct {
	events []*history.Event
	err    error
}

func (r *recordingHistory) Record(_ context.Context, e *history.Event) error {
	r.events = append(r.events, e)
	return r.err
}

func testCandidate(protocol candidate.Protocol) *candidate.Candidate {
	return &candidate.Candidate{
		IndexerID:   3,
		IndexerName: "idx",
		GUID:        "guid-1",
		Title:       "Some.Game.GOG",
		Size:        5 * 1000 * 1000 * 1000,
		Protocol:    protocol,
		Quality:     candidate.UnknownQuality(),
		Match:       &library.Title{ID: 42},
	}
}

func TestService_ForProtocolOrdersByPriority(t *testing.T) {
	svc := NewService(nil, nil, testutil.NopLogger())
	svc.Register(mock.New(1, "low", candidate.ProtocolTorrent), 10, true)
	svc.Register(mock.New(2, "high", candidate.ProtocolTorrent), 1, true)
	svc.Register(mock.New(3, "nzb", candidate.ProtocolUsenet), 1, true)
	svc.Register(mock.New(4, "off", candidate.ProtocolTorrent), 0, false)

	clients := svc.ForProtocol(candidate.ProtocolTorrent)
	require.Len(t, clients, 2)
	assert.Equal(t, "high", clients[0].Name())
	assert.Equal(t, "low", clients[1].Name())

	assert.Len(t, svc.List(), 3)

	_, err := svc.Get(99)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestService_GrabRecordsHistoryAndPublishes(t *testing.T) {
	hist := &recordingHistory{}
	pub := events.NewPublisher(testutil.NopLogger())
	var published []events.Event
	pub.Subscribe(events.ObserverFunc(func(_ context.Context, e events.Event) {
		published = append(published, e)
	}))

	svc := NewService(hist, pub, testutil.NopLogger())
	client := mock.New(1, "qbit", candidate.ProtocolTorrent)
	svc.Register(client, 1, true)

	result, err := svc.Grab(context.Background(), testCandidate(candidate.ProtocolTorrent), true)
	require.NoError(t, err)
	assert.NotEmpty(t, result.DownloadID)
	assert.Equal(t, int64(1), result.ClientID)
	assert.Equal(t, 1, client.DownloadCount())

	require.Len(t, hist.events, 1)
	ev := hist.events[0]
	assert.Equal(t, history.EventTypeGrabbed, ev.EventType)
	assert.Equal(t, int64(42), ev.TitleID)
	assert.Equal(t, result.DownloadID, ev.DownloadID)
	assert.Equal(t, "idx", ev.Data["indexer"])
	assert.Equal(t, true, ev.Data["userInvoked"])

	require.Len(t, published, 1)
	assert.Equal(t, events.ReleaseGrabbed, published[0].Type)
	assert.Equal(t, int64(42), published[0].TitleID)
	grabbed, ok := published[0].Payload.(events.GrabbedRelease)
	require.True(t, ok)
	assert.Equal(t, result.DownloadID, grabbed.DownloadID)
	assert.Equal(t, "qbit", grabbed.ClientName)
	assert.Equal(t, "idx", grabbed.Candidate.IndexerName)
}

func TestService_GrabFallsThroughToNextClient(t *testing.T) {
	svc := NewService(nil, nil, testutil.NopLogger())
	broken := mock.New(1, "broken", candidate.ProtocolUsenet)
	broken.FailWith(ErrNotConnected)
	healthy := mock.New(2, "healthy", candidate.ProtocolUsenet)
	svc.Register(broken, 1, true)
	svc.Register(healthy, 2, true)

	result, err := svc.Grab(context.Background(), testCandidate(candidate.ProtocolUsenet), false)
	require.NoError(t, err)
	assert.Equal(t, "healthy", result.ClientName)
}

func TestService_GrabUnavailable(t *testing.T) {
	t.Run("no client for protocol", func(t *testing.T) {
		svc := NewService(nil, nil, testutil.NopLogger())
		svc.Register(mock.New(1, "nzb", candidate.ProtocolUsenet), 1, true)

		_, err := svc.Grab(context.Background(), testCandidate(candidate.ProtocolTorrent), false)
		assert.ErrorIs(t, err, ErrClientUnavailable)
	})

	t.Run("connectivity failure", func(t *testing.T) {
		svc := NewService(nil, nil, testutil.NopLogger())
		client := mock.New(1, "qbit", candidate.ProtocolTorrent)
		client.FailWith(ErrAuthFailed)
		svc.Register(client, 1, true)

		_, err := svc.Grab(context.Background(), testCandidate(candidate.ProtocolTorrent), false)
		assert.ErrorIs(t, err, ErrClientUnavailable)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("other failure is not unavailable", func(t *testing.T) {
		svc := NewService(nil, nil, testutil.NopLogger())
		client := mock.New(1, "qbit", candidate.ProtocolTorrent)
		client.FailWith(errors.New("torrent file rejected"))
		svc.Register(client, 1, true)

		_, err := svc.Grab(context.Background(), testCandidate(candidate.ProtocolTorrent), false)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrClientUnavailable)
	})
}

func TestService_LoadConfigs(t *testing.T) {
	svc := NewService(nil, nil, testutil.NopLogger())
	err := svc.LoadConfigs([]ClientConfig{
		{ID: 1, Name: "mock", Type: ClientTypeMock, Protocol: candidate.ProtocolTorrent, Enabled: true},
	})
	require.NoError(t, err)
	assert.Len(t, svc.List(), 1)

	err = svc.LoadConfigs([]ClientConfig{{ID: 2, Name: "x", Type: "carrier-pigeon"}})
	assert.ErrorIs(t, err, ErrUnsupportedClient)
}
