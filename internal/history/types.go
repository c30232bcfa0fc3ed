package history

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
)

// ErrNotFound is returned when no matching history event exists.
var ErrNotFound = errors.New("history event not found")

// EventType represents the type of history event.
type EventType string

const (
	EventTypeGrabbed                EventType = "grabbed"
	EventTypeDownloadFolderImported EventType = "downloadFolderImported"
	EventTypeDownloadFailed         EventType = "downloadFailed"
	EventTypeDownloadIgnored        EventType = "downloadIgnored"
)

// Event is an immutable record of something that happened to a title.
type Event struct {
	ID          int64              `json:"id"`
	TitleID     int64              `json:"titleId"`
	EventType   EventType          `json:"eventType"`
	SourceTitle string             `json:"sourceTitle"`
	DownloadID  string             `json:"downloadId,omitempty"`
	Quality     *candidate.Quality `json:"quality,omitempty"`
	Data        map[string]any     `json:"data,omitempty"`
	Date        time.Time          `json:"date"`
}

// ListOptions contains options for listing history.
type ListOptions struct {
	EventType string
	TitleID   int64
	Page      int
	PageSize  int
}

// ListResponse contains paginated history results.
type ListResponse struct {
	Items      []*Event `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}

// GrabbedData contains data for grabbed events.
type GrabbedData struct {
	Indexer     string `json:"indexer,omitempty"`
	IndexerID   int64  `json:"indexerId,omitempty"`
	GUID        string `json:"guid,omitempty"`
	ClientName  string `json:"clientName,omitempty"`
	ClientID    int64  `json:"clientId,omitempty"`
	Protocol    string `json:"protocol,omitempty"`
	Size        int64  `json:"size,omitempty"`
	UserInvoked bool   `json:"userInvoked,omitempty"`
}

// ImportedData contains data for downloadFolderImported events.
type ImportedData struct {
	ClientName string `json:"clientName,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
}

// FailedData contains data for downloadFailed and downloadIgnored events.
type FailedData struct {
	ClientName string `json:"clientName,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ToJSON converts a data struct to a JSON map.
func ToJSON(v any) (map[string]any, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}
