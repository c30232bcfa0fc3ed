package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/types"
)

const torznabFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
<channel>
<title>test</title>
<item>
  <title>Some.Game.v1.2-RUNE</title>
  <guid>abc</guid>
  <link>http://example.com/dl/abc.torrent</link>
  <pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
  <size>5000000000</size>
  <torznab:attr name="seeders" value="12"/>
  <torznab:attr name="downloadvolumefactor" value="0"/>
  <torznab:attr name="tag" value="internal"/>
</item>
<item>
  <title>Other.Game.GOG</title>
  <enclosure url="http://example.com/dl/other.nzb" length="123" type="application/x-nzb"/>
</item>
<item>
  <title>No link</title>
</item>
</channel>
</rss>`

func TestParseFeed_StandardRSS(t *testing.T) {
	releases, err := ParseFeed([]byte(torznabFeed))
	require.NoError(t, err)
	require.Len(t, releases, 2)

	first := releases[0]
	assert.Equal(t, "abc", first.GUID)
	assert.Equal(t, int64(5000000000), first.Size)
	assert.Equal(t, 12, first.Seeders)
	assert.Equal(t, candidate.ProtocolTorrent, first.Protocol)
	assert.True(t, first.Flags.Has(candidate.FlagFreeleech))
	assert.True(t, first.Flags.Has(candidate.FlagInternal))
	assert.Equal(t, 2025, first.PublishDate.Year())

	second := releases[1]
	assert.Equal(t, "http://example.com/dl/other.nzb", second.GUID)
	assert.Equal(t, int64(123), second.Size)
	assert.Equal(t, candidate.ProtocolUsenet, second.Protocol)
}

func TestParseFeed_TorrentPotato(t *testing.T) {
	releases, err := ParseFeed([]byte(`{"results":[{"release_name":"Some.Game-RUNE","torrent_id":"7","download_url":"http://x/7","freeleech":true,"size":10,"seeders":3}]}`))
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "7", releases[0].GUID)
	assert.True(t, releases[0].Flags.Has(candidate.FlagFreeleech))
}

func TestParseFeed_EmptyAndMalformed(t *testing.T) {
	releases, err := ParseFeed([]byte(`<rss><channel><title>x</title></channel></rss>`))
	require.NoError(t, err)
	assert.Empty(t, releases)

	_, err = ParseFeed([]byte(`<html>nope</html>`))
	assert.ErrorIs(t, err, types.ErrMalformedFeed)
}

func TestClient_Requests(t *testing.T) {
	c := NewClient(&types.Config{ID: 1, Name: "feed", URL: "http://example.com/api?cat=4000", APIKey: "k"})

	recent, err := c.GetRecentRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "http://example.com/api?apikey=k&cat=4000", recent[0].URL)

	search, err := c.GetSearchRequests(context.Background(), types.Criteria{Query: "Some Game"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "http://example.com/api?apikey=k&cat=4000&q=Some+Game&t=search", search[0].URL)
}

func TestClient_Parse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(torznabFeed))
	}))
	defer srv.Close()

	c := NewClient(&types.Config{ID: 1, Name: "feed", URL: srv.URL, APIKey: "k", Protocol: candidate.ProtocolTorrent})
	reqs, err := c.GetRecentRequests(context.Background())
	require.NoError(t, err)

	releases, err := c.Parse(context.Background(), reqs[0])
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, candidate.ProtocolTorrent, releases[1].Protocol, "configured protocol wins")

	bad := NewClient(&types.Config{ID: 2, Name: "bad", URL: srv.URL})
	reqs, _ = bad.GetRecentRequests(context.Background())
	_, err = bad.Parse(context.Background(), reqs[0])
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}
