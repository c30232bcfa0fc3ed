// Package types defines the download client adapter contract.
package types

import (
	"context"
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
)

// Common errors for download clients.
var (
	ErrNotImplemented = errors.New("operation not implemented")
	ErrNotConnected   = errors.New("client not connected")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrNotFound       = errors.New("download not found")
)

// ClientType identifies an adapter implementation.
type ClientType string

const (
	// ClientTypeMock is an in-memory client that simulates progress.
	ClientTypeMock ClientType = "mock"
)

// ClientConfig holds common configuration for all download clients.
type ClientConfig struct {
	ID       int64              `mapstructure:"id"`
	Name     string             `mapstructure:"name"`
	Type     ClientType         `mapstructure:"type"`
	Protocol candidate.Protocol `mapstructure:"protocol"`
	Host     string             `mapstructure:"host"`
	Port     int                `mapstructure:"port"`
	Username string             `mapstructure:"username"`
	Password string             `mapstructure:"password"`
	APIKey   string             `mapstructure:"apiKey"`
	Category string             `mapstructure:"category"`
	Priority int                `mapstructure:"priority"`
	Enabled  bool               `mapstructure:"enabled"`
}

// Client is the uniform contract every download client adapter implements.
type Client interface {
	ID() int64
	Name() string
	Protocol() candidate.Protocol

	// List reports every item the client currently knows about.
	List(ctx context.Context) ([]Item, error)
	// Submit hands a candidate to the client and returns the client-assigned id.
	Submit(ctx context.Context, c *candidate.Candidate) (string, error)
	Remove(ctx context.Context, id string, deleteData bool) error
}

// Item is one download as reported by a client.
type Item struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Status   Status         `json:"status"`
	Category string         `json:"category,omitempty"`
	Size     int64          `json:"size"`
	Sizeleft int64          `json:"sizeleft"`
	Timeleft *time.Duration `json:"timeleft,omitempty"`
	// OutputPath is where completed content lives.
	OutputPath string    `json:"outputPath,omitempty"`
	Message    string    `json:"message,omitempty"`
	AddedAt    time.Time `json:"addedAt,omitempty"`
}

// Progress returns completion in percent.
func (i Item) Progress() float64 {
	if i.Size <= 0 {
		return 0
	}
	return float64(i.Size-i.Sizeleft) / float64(i.Size) * 100
}

// Status represents the status of a download.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusSeeding     Status = "seeding"
	StatusWarning     Status = "warning"
	StatusError       Status = "error"
	StatusUnknown     Status = "unknown"
)
