package library

import (
	"slices"
	"time"
)

// MinimumAvailability selects which release date must have passed before a
// title is considered available for passive grabbing.
type MinimumAvailability string

const (
	AvailabilityAnnounced   MinimumAvailability = "announced"
	AvailabilityEarlyAccess MinimumAvailability = "earlyAccess"
	AvailabilityReleased    MinimumAvailability = "released"
)

// QualityProfile lists the release sources a title accepts and the source at
// which upgrades stop.
type QualityProfile struct {
	Name    string   `json:"name"`
	Allowed []string `json:"allowed"`
	Cutoff  string   `json:"cutoff"`
	// MinFormatScore is the minimum summed custom format score.
	MinFormatScore int `json:"minFormatScore"`
}

// Allows reports whether the source is allowed. An empty profile allows all.
func (p QualityProfile) Allows(source string) bool {
	if len(p.Allowed) == 0 {
		return true
	}
	return slices.Contains(p.Allowed, source)
}

// Title is a tracked game in the library.
type Title struct {
	ID                  int64               `json:"id"`
	Name                string              `json:"name"`
	CleanName           string              `json:"cleanName"`
	Year                int                 `json:"year,omitempty"`
	Monitored           bool                `json:"monitored"`
	MinimumAvailability MinimumAvailability `json:"minimumAvailability"`
	AnnouncedDate       *time.Time          `json:"announcedDate,omitempty"`
	EarlyAccessDate     *time.Time          `json:"earlyAccessDate,omitempty"`
	ReleaseDate         *time.Time          `json:"releaseDate,omitempty"`
	OriginalLanguage    string              `json:"originalLanguage,omitempty"`
	Tags                []int64             `json:"tags"`
	Profile             QualityProfile      `json:"profile"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// AvailableFrom returns the date selected by the title's minimum
// availability, falling back to later dates when the selected one is unknown.
// Returns nil when no usable date exists.
func (t *Title) AvailableFrom() *time.Time {
	switch t.MinimumAvailability {
	case AvailabilityAnnounced:
		return firstDate(t.AnnouncedDate, t.EarlyAccessDate, t.ReleaseDate)
	case AvailabilityEarlyAccess:
		return firstDate(t.EarlyAccessDate, t.ReleaseDate)
	default:
		return firstDate(t.ReleaseDate)
	}
}

func firstDate(dates ...*time.Time) *time.Time {
	for _, d := range dates {
		if d != nil && !d.IsZero() {
			return d
		}
	}
	return nil
}

// CreateTitleInput contains fields for creating a title.
type CreateTitleInput struct {
	Name                string              `json:"name"`
	Year                int                 `json:"year"`
	Monitored           bool                `json:"monitored"`
	MinimumAvailability MinimumAvailability `json:"minimumAvailability"`
	AnnouncedDate       *time.Time          `json:"announcedDate,omitempty"`
	EarlyAccessDate     *time.Time          `json:"earlyAccessDate,omitempty"`
	ReleaseDate         *time.Time          `json:"releaseDate,omitempty"`
	OriginalLanguage    string              `json:"originalLanguage"`
	Tags                []int64             `json:"tags"`
	Profile             QualityProfile      `json:"profile"`
}
