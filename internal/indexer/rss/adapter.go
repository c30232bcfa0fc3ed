// Package rss implements an indexer adapter for RSS and torznab-style feeds.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/types"
)

const maxResponseSize = 10 * 1024 * 1024 // 10 MB

// Client fetches and parses a single feed URL. Search requests add the
// torznab "t=search&q=" parameters to the same URL.
type Client struct {
	cfg    types.Config
	client *http.Client
}

var _ types.Adapter = (*Client)(nil)

// NewClient creates a new RSS indexer client.
func NewClient(cfg *types.Config) *Client {
	return &Client{
		cfg:    *cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) ID() int64    { return c.cfg.ID }
func (c *Client) Name() string { return c.cfg.Name }

func (c *Client) Protocol() candidate.Protocol {
	if c.cfg.Protocol == "" {
		return candidate.ProtocolTorrent
	}
	return c.cfg.Protocol
}

func (c *Client) GetRecentRequests(_ context.Context) ([]types.Request, error) {
	u, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return []types.Request{{URL: u.String()}}, nil
}

func (c *Client) GetSearchRequests(_ context.Context, criteria types.Criteria) ([]types.Request, error) {
	u, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("t", "search")
	q.Set("q", criteria.Query)
	u.RawQuery = q.Encode()
	return []types.Request{{URL: u.String()}}, nil
}

func (c *Client) baseURL() (*url.URL, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url for %s: %w", c.cfg.Name, err)
	}
	if c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("apikey", c.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// Parse fetches the request URL and parses the feed.
func (c *Client) Parse(ctx context.Context, r types.Request) ([]types.Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "gamearr/1.0")
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", types.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	releases, err := ParseFeed(body)
	if err != nil {
		return nil, err
	}
	if c.cfg.Protocol != "" {
		for i := range releases {
			releases[i].Protocol = c.cfg.Protocol
		}
	}
	return releases, nil
}
