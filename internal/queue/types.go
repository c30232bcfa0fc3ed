// Package queue merges tracked downloads and pending releases into one
// read-only view.
package queue

import (
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/tracking"
)

var ErrNotFound = errors.New("queue entry not found")

// Source is where an entry came from.
type Source string

const (
	SourceLive    Source = "live"
	SourcePending Source = "pending"
)

// Entry is one row of the queue.
type Entry struct {
	ID                  string                   `json:"id"`
	TitleID             int64                    `json:"titleId"`
	Title               string                   `json:"title"`
	Status              string                   `json:"status"`
	TrackedState        tracking.State           `json:"trackedState,omitempty"`
	EstimatedCompletion *time.Time               `json:"estimatedCompletionTime,omitempty"`
	Timeleft            *time.Duration           `json:"timeleft,omitempty"`
	Size                int64                    `json:"size"`
	Sizeleft            int64                    `json:"sizeleft"`
	Protocol            candidate.Protocol       `json:"protocol"`
	Quality             candidate.Quality        `json:"quality"`
	DownloadClient      string                   `json:"downloadClient,omitempty"`
	Indexer             string                   `json:"indexer,omitempty"`
	StatusMessages      []tracking.StatusMessage `json:"statusMessages,omitempty"`
	Source              Source                   `json:"source"`
	SourceID            string                   `json:"sourceId"`
}
