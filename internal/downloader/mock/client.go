// Package mock provides an in-memory download client that simulates progress.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/downloader/types"
)

const (
	// DownloadDuration is how long a mock download takes to complete.
	DownloadDuration = 5 * time.Minute
	// QueueDelay is how long items stay queued before starting.
	QueueDelay = 2 * time.Second
	// MockDownloadDir is the simulated download directory.
	MockDownloadDir = "/mock/downloads/gamearr"
)

// mockDownload represents an in-progress mock download.
type mockDownload struct {
	ID       string
	Name     string
	Size     int64
	AddedAt  time.Time
	Override types.Status // set by SetStatus, wins over simulated progress
	Message  string
}

// Client implements an in-memory download client.
type Client struct {
	id       int64
	name     string
	protocol candidate.Protocol
	category string

	mu        sync.RWMutex
	downloads map[string]*mockDownload
	order     []string
	failWith  error
	now       func() time.Time
}

// Compile-time check that Client implements types.Client.
var _ types.Client = (*Client)(nil)

// New creates an empty mock client.
func New(id int64, name string, protocol candidate.Protocol) *Client {
	if protocol == "" {
		protocol = candidate.ProtocolTorrent
	}
	return &Client{
		id:        id,
		name:      name,
		protocol:  protocol,
		downloads: make(map[string]*mockDownload),
		now:       time.Now,
	}
}

// NewFromConfig creates a client from a ClientConfig.
func NewFromConfig(cfg *types.ClientConfig) *Client {
	c := New(cfg.ID, cfg.Name, cfg.Protocol)
	c.category = cfg.Category
	return c
}

func (c *Client) ID() int64                    { return c.id }
func (c *Client) Name() string                 { return c.name }
func (c *Client) Protocol() candidate.Protocol { return c.protocol }

// Submit adds a mock download for the candidate.
func (c *Client) Submit(_ context.Context, cand *candidate.Candidate) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWith != nil {
		return "", c.failWith
	}

	size := cand.Size
	if size <= 0 {
		size = 10 * 1000 * 1000 * 1000
	}

	id := uuid.NewString()
	c.downloads[id] = &mockDownload{
		ID:      id,
		Name:    cand.Title,
		Size:    size,
		AddedAt: c.now(),
	}
	c.order = append(c.order, id)
	return id, nil
}

// List returns all downloads in submission order.
func (c *Client) List(_ context.Context) ([]types.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.failWith != nil {
		return nil, c.failWith
	}

	now := c.now()
	items := make([]types.Item, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.calculateProgress(c.downloads[id], now))
	}
	return items, nil
}

// Remove deletes a download.
func (c *Client) Remove(_ context.Context, id string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.downloads[id]; !ok {
		return types.ErrNotFound
	}
	delete(c.downloads, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetStatus pins a download to a status, overriding simulated progress.
func (c *Client) SetStatus(id string, status types.Status, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.downloads[id]
	if !ok {
		return types.ErrNotFound
	}
	d.Override = status
	d.Message = message
	return nil
}

// FastForward completes a download immediately.
func (c *Client) FastForward(id string) error {
	return c.SetStatus(id, types.StatusCompleted, "")
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

// SetClock replaces the clock used to simulate progress.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// DownloadCount returns the number of downloads.
func (c *Client) DownloadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.downloads)
}

func (c *Client) calculateProgress(d *mockDownload, now time.Time) types.Item {
	item := types.Item{
		ID:       d.ID,
		Title:    d.Name,
		Category: c.category,
		Size:     d.Size,
		AddedAt:  d.AddedAt,
		Message:  d.Message,
	}

	status := d.Override
	var fraction float64
	if status == "" {
		elapsed := now.Sub(d.AddedAt)
		switch {
		case elapsed < QueueDelay:
			status = types.StatusQueued
		case elapsed >= QueueDelay+DownloadDuration:
			status = types.StatusCompleted
			fraction = 1
		default:
			status = types.StatusDownloading
			fraction = float64(elapsed-QueueDelay) / float64(DownloadDuration)
		}
	} else if status == types.StatusCompleted || status == types.StatusSeeding {
		fraction = 1
	}

	item.Status = status
	item.Sizeleft = d.Size - int64(float64(d.Size)*fraction)
	if status == types.StatusCompleted || status == types.StatusSeeding {
		item.Sizeleft = 0
		item.OutputPath = fmt.Sprintf("%s/%s", MockDownloadDir, d.Name)
	}
	if status == types.StatusDownloading || status == types.StatusQueued {
		left := time.Duration((1 - fraction) * float64(DownloadDuration))
		item.Timeleft = &left
	}
	return item
}
