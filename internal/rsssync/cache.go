package rsssync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/slipstream/gamearr/internal/database"
	"github.com/slipstream/gamearr/internal/indexer"
)

var ErrNoCacheBoundary = errors.New("no cache boundary")

const cacheKeyPrefix = "rss_cache_boundary_"

// CacheBoundary represents the newest release seen on an indexer's last sync.
type CacheBoundary struct {
	GUID string    `json:"guid,omitempty"`
	URL  string    `json:"url"`
	Date time.Time `json:"date,omitzero"`
}

func cacheKey(indexerID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(indexerID, 10)
}

// GetCacheBoundary retrieves the cache boundary for an indexer.
func GetCacheBoundary(ctx context.Context, q database.Querier, indexerID int64) (*CacheBoundary, error) {
	raw, err := database.GetSetting(ctx, q, cacheKey(indexerID))
	if errors.Is(err, database.ErrSettingNotFound) {
		return nil, ErrNoCacheBoundary
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache boundary: %w", err)
	}

	var boundary CacheBoundary
	if err := json.Unmarshal([]byte(raw), &boundary); err != nil || (boundary.URL == "" && boundary.GUID == "") {
		return nil, ErrNoCacheBoundary
	}
	return &boundary, nil
}

// UpdateCacheBoundary stores the newest release as the cache boundary after a successful sync.
func UpdateCacheBoundary(ctx context.Context, q database.Querier, indexerID int64, newest *indexer.Release) error {
	if newest == nil {
		return nil
	}

	data, err := json.Marshal(CacheBoundary{
		GUID: newest.GUID,
		URL:  newest.DownloadURL,
		Date: newest.PublishDate.UTC(),
	})
	if err != nil {
		return err
	}
	return database.SetSetting(ctx, q, cacheKey(indexerID), string(data))
}

// IsAtCacheBoundary checks whether a release matches the cache boundary.
func IsAtCacheBoundary(release *indexer.Release, boundary *CacheBoundary) bool {
	if boundary == nil {
		return false
	}
	same := (boundary.GUID != "" && release.GUID == boundary.GUID) ||
		(boundary.URL != "" && release.DownloadURL == boundary.URL)
	if !same {
		return false
	}
	if boundary.Date.IsZero() {
		return true
	}
	return !release.PublishDate.After(boundary.Date)
}
