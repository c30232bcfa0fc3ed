// Package types defines the indexer adapter contract.
package types

import (
	"context"
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
)

var (
	ErrNotImplemented = errors.New("operation not implemented")
	ErrUnauthorized   = errors.New("indexer rejected credentials")
	ErrMalformedFeed  = errors.New("unable to parse feed")
)

// AdapterType identifies an adapter implementation.
type AdapterType string

const (
	AdapterTypeRSS  AdapterType = "rss"
	AdapterTypeMock AdapterType = "mock"
)

// Config holds the configuration for one indexer.
type Config struct {
	ID       int64              `mapstructure:"id"`
	Name     string             `mapstructure:"name"`
	Type     AdapterType        `mapstructure:"type"`
	Protocol candidate.Protocol `mapstructure:"protocol"`
	URL      string             `mapstructure:"url"`
	APIKey   string             `mapstructure:"apiKey"`
	Cookie   string             `mapstructure:"cookie"`
	Enabled  bool               `mapstructure:"enabled"`
}

// Criteria describes a targeted search.
type Criteria struct {
	TitleID int64  `json:"titleId"`
	Query   string `json:"query"`
	Year    int    `json:"year,omitempty"`
}

// Request is one fetch an adapter wants performed. Adapters produce a chain
// of requests and parse each response independently.
type Request struct {
	URL  string `json:"url"`
	Page int    `json:"page,omitempty"`
}

// Release is one raw item from an indexer response.
type Release struct {
	GUID        string                 `json:"guid"`
	Title       string                 `json:"title"`
	DownloadURL string                 `json:"downloadUrl"`
	InfoURL     string                 `json:"infoUrl,omitempty"`
	Size        int64                  `json:"size"`
	PublishDate time.Time              `json:"publishDate"`
	Protocol    candidate.Protocol     `json:"protocol"`
	Seeders     int                    `json:"seeders,omitempty"`
	Flags       candidate.IndexerFlags `json:"flags,omitempty"`
}

// Adapter is the uniform contract every indexer implementation satisfies.
type Adapter interface {
	ID() int64
	Name() string
	Protocol() candidate.Protocol

	GetRecentRequests(ctx context.Context) ([]Request, error)
	GetSearchRequests(ctx context.Context, criteria Criteria) ([]Request, error)
	Parse(ctx context.Context, req Request) ([]Release, error)
}
