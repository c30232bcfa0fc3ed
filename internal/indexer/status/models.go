// Package status keeps a per-indexer failure ledger. It never disables an
// indexer: a failed source is simply tried again on the next cycle.
package status

import "time"

// Operation is the kind of request an indexer served.
type Operation string

const (
	OperationRSS    Operation = "rss"
	OperationSearch Operation = "search"
)

// IndexerStatus is the ledger row for one indexer.
type IndexerStatus struct {
	IndexerID           int64      `json:"indexerId"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	InitialFailure      *time.Time `json:"initialFailure,omitempty"`
	MostRecentFailure   *time.Time `json:"mostRecentFailure,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	LastRSSSync         *time.Time `json:"lastRssSync,omitempty"`
	LastSearch          *time.Time `json:"lastSearch,omitempty"`
}

// HealthStatus summarises an indexer's recent behaviour.
type HealthStatus string

const (
	HealthStatusHealthy HealthStatus = "healthy"
	HealthStatusFailing HealthStatus = "failing"
	HealthStatusUnknown HealthStatus = "unknown"
)

// Health derives the summary from the ledger row.
func (s *IndexerStatus) Health() HealthStatus {
	switch {
	case s.ConsecutiveFailures > 0:
		return HealthStatusFailing
	case s.LastSuccess != nil:
		return HealthStatusHealthy
	default:
		return HealthStatusUnknown
	}
}
