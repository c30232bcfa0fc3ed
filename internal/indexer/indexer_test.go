package indexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/mock"
	"github.com/slipstream/gamearr/internal/testutil"
)

func TestService_LoadConfigs(t *testing.T) {
	svc := NewService(testutil.NopLogger())
	err := svc.LoadConfigs([]Config{
		{ID: 2, Name: "feed", Type: AdapterTypeRSS, URL: "http://example.com/rss", Enabled: true},
		{ID: 1, Name: "mock", Type: AdapterTypeMock, Enabled: true},
		{ID: 3, Name: "off", Type: AdapterTypeMock, Enabled: false},
	})
	require.NoError(t, err)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, "mock", list[0].Name())
	assert.Equal(t, "feed", list[1].Name())

	_, err = svc.Get(3)
	assert.ErrorIs(t, err, ErrIndexerNotFound)

	err = svc.LoadConfigs([]Config{{ID: 9, Name: "x", Type: "gopher", Enabled: true}})
	assert.ErrorIs(t, err, ErrUnsupportedIndexer)
}

func TestToCandidate(t *testing.T) {
	a := mock.New(4, "idx", candidate.ProtocolUsenet)
	pub := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	c := ToCandidate(a, Release{
		GUID:        "g",
		Title:       "Some.Game-RUNE",
		DownloadURL: "http://x/1.nzb",
		Size:        42,
		PublishDate: pub,
		Flags:       candidate.FlagInternal,
	})

	assert.Equal(t, "4:g", c.Key())
	assert.Equal(t, "idx", c.IndexerName)
	assert.Equal(t, candidate.ProtocolUsenet, c.Protocol)
	assert.Equal(t, pub, c.PublishDate)
	assert.True(t, c.Flags.Has(candidate.FlagInternal))
	assert.Equal(t, candidate.SourceUnknown, c.Quality.Source.Value)
	assert.Nil(t, c.Match)
}
