// Package tracking follows grabbed downloads through the download clients
// until they are imported, fail or disappear.
package tracking

import (
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/downloader"
)

var (
	ErrNotFound     = errors.New("tracked download not found")
	ErrPollRunning  = errors.New("poll already running for client")
	ErrNoOutputPath = errors.New("download client reported no output path")
)

// State is the lifecycle position of a tracked download.
type State string

const (
	StateDownloading   State = "downloading"
	StateImportPending State = "importPending"
	StateImporting     State = "importing"
	StateImported      State = "imported"
	StateWarning       State = "warning"
	StateFailed        State = "failed"
	StateAborted       State = "aborted"
	StateCancelled     State = "cancelled"
	StateOrphaned      State = "orphaned"
)

// IsTerminal reports whether the state never changes again.
func (s State) IsTerminal() bool {
	switch s {
	case StateImported, StateAborted, StateCancelled, StateOrphaned:
		return true
	default:
		return false
	}
}

// IsActive reports whether the download still occupies its title.
func (s State) IsActive() bool {
	switch s {
	case StateDownloading, StateImportPending, StateImporting, StateWarning:
		return true
	default:
		return false
	}
}

// StatusMessage groups messages under a heading, usually the release name.
type StatusMessage struct {
	Title    string   `json:"title"`
	Messages []string `json:"messages"`
}

// TrackedDownload is one client item as the pipeline understands it.
type TrackedDownload struct {
	DownloadID string               `json:"downloadId"`
	ClientID   int64                `json:"clientId"`
	ClientName string               `json:"clientName"`
	Protocol   candidate.Protocol   `json:"protocol"`
	Candidate  *candidate.Candidate `json:"candidate"`
	TitleID    int64                `json:"titleId,omitempty"`
	State      State                `json:"state"`
	// Trackable is false for items that were not grabbed through the
	// pipeline; those are reconstructed from the client's item name.
	Trackable       bool            `json:"trackable"`
	StatusMessages  []StatusMessage `json:"statusMessages,omitempty"`
	Item            downloader.Item `json:"item"`
	Added           time.Time       `json:"added"`
	ImportAttempted bool            `json:"importAttempted"`

	lastProgress time.Time
	lastSizeleft int64
	// awaitingClient marks a download registered at grab time that no poll
	// has reported yet.
	awaitingClient bool
}

// Key identifies the download across clients.
func (td *TrackedDownload) Key() string {
	return key(td.ClientID, td.DownloadID)
}

func (td *TrackedDownload) setMessage(messages ...string) {
	if len(messages) == 0 {
		td.StatusMessages = nil
		return
	}
	td.StatusMessages = []StatusMessage{{Title: td.Item.Title, Messages: messages}}
}

func (td *TrackedDownload) clone() *TrackedDownload {
	cp := *td
	if td.StatusMessages != nil {
		cp.StatusMessages = make([]StatusMessage, len(td.StatusMessages))
		copy(cp.StatusMessages, td.StatusMessages)
	}
	if td.Candidate != nil {
		cp.Candidate = td.Candidate.Clone()
	}
	return &cp
}
