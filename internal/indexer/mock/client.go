// Package mock provides an in-memory indexer adapter with canned releases.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/types"
)

// Client serves a fixed release list.
type Client struct {
	id       int64
	name     string
	protocol candidate.Protocol

	mu       sync.RWMutex
	releases []types.Release
	failWith error
	calls    int
}

var _ types.Adapter = (*Client)(nil)

// New creates an empty mock indexer.
func New(id int64, name string, protocol candidate.Protocol) *Client {
	if protocol == "" {
		protocol = candidate.ProtocolTorrent
	}
	return &Client{id: id, name: name, protocol: protocol}
}

// NewFromConfig creates a mock indexer from a Config.
func NewFromConfig(cfg *types.Config) *Client {
	return New(cfg.ID, cfg.Name, cfg.Protocol)
}

func (c *Client) ID() int64                    { return c.id }
func (c *Client) Name() string                 { return c.name }
func (c *Client) Protocol() candidate.Protocol { return c.protocol }

// SetReleases replaces the canned releases.
func (c *Client) SetReleases(releases ...types.Release) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases = releases
}

// FailWith makes Parse return err. Pass nil to recover.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

// Calls returns how many times Parse ran.
func (c *Client) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

func (c *Client) GetRecentRequests(_ context.Context) ([]types.Request, error) {
	return []types.Request{{URL: fmt.Sprintf("mock://%d/recent", c.id)}}, nil
}

func (c *Client) GetSearchRequests(_ context.Context, criteria types.Criteria) ([]types.Request, error) {
	return []types.Request{{URL: fmt.Sprintf("mock://%d/search?q=%s", c.id, criteria.Query)}}, nil
}

// Parse returns the canned releases. Search requests filter by a
// case-insensitive substring of the query.
func (c *Client) Parse(_ context.Context, req types.Request) ([]types.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if c.failWith != nil {
		return nil, c.failWith
	}

	_, query, isSearch := strings.Cut(req.URL, "?q=")
	out := make([]types.Release, 0, len(c.releases))
	for _, r := range c.releases {
		if isSearch && query != "" && !strings.Contains(normalize(r.Title), normalize(query)) {
			continue
		}
		if r.Protocol == "" {
			r.Protocol = c.protocol
		}
		out = append(out, r)
	}
	return out, nil
}

var separators = strings.NewReplacer(".", " ", "_", " ", "-", " ")

func normalize(s string) string {
	return strings.ToLower(separators.Replace(s))
}
