// Package candidate defines the shared data model for a parsed release and
// the enrichment and rejection state accumulated while it is evaluated.
package candidate

import (
	"fmt"
	"time"

	"github.com/slipstream/gamearr/internal/library"
)

// Protocol represents the transport used to fetch a release.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
	ProtocolUnknown Protocol = "unknown"
)

// IndexerFlags is a bitset of indexer-specific release markers.
type IndexerFlags uint8

const (
	FlagFreeleech IndexerFlags = 1 << iota
	FlagInternal
	FlagScene
	FlagNuked
)

// Has reports whether all bits of f are set.
func (i IndexerFlags) Has(f IndexerFlags) bool {
	return i&f == f
}

// Candidate is a release returned by an indexer, optionally matched against a
// library title. Identity (IndexerID, GUID) never changes after creation.
type Candidate struct {
	IndexerID   int64        `json:"indexerId"`
	IndexerName string       `json:"indexer"`
	GUID        string       `json:"guid"`
	Title       string       `json:"title"`
	DownloadURL string       `json:"downloadUrl"`
	Size        int64        `json:"size"`
	PublishDate time.Time    `json:"publishDate"`
	Protocol    Protocol     `json:"protocol"`
	Seeders     int          `json:"seeders,omitempty"`
	Flags       IndexerFlags `json:"indexerFlags,omitempty"`

	Quality       Quality        `json:"quality"`
	Languages     []Language     `json:"languages,omitempty"`
	LanguageConf  Confidence     `json:"languageConfidence"`
	CustomFormats []CustomFormat `json:"customFormats,omitempty"`
	FormatConf    Confidence     `json:"customFormatConfidence"`

	// Match is nil during a generic sync where no library title was found.
	Match *library.Title `json:"match,omitempty"`

	Rejections []Rejection `json:"rejections,omitempty"`
}

// Key returns a string uniquely identifying the release across indexers.
func (c *Candidate) Key() string {
	return fmt.Sprintf("%d:%s", c.IndexerID, c.GUID)
}

// TitleID returns the matched library title id, or 0 when unmatched.
func (c *Candidate) TitleID() int64 {
	if c.Match == nil {
		return 0
	}
	return c.Match.ID
}

// Age returns how long ago the release was published.
func (c *Candidate) Age(now time.Time) time.Duration {
	if c.PublishDate.IsZero() {
		return 0
	}
	return now.Sub(c.PublishDate)
}

// Reject records a rejection on the candidate.
func (c *Candidate) Reject(r Rejection) {
	c.Rejections = append(c.Rejections, r)
}

// HasLanguage reports whether lang is among the detected languages.
func (c *Candidate) HasLanguage(lang Language) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// CustomFormatScore sums the scores of all matched custom formats.
func (c *Candidate) CustomFormatScore() int {
	score := 0
	for _, cf := range c.CustomFormats {
		score += cf.Score
	}
	return score
}

// Clone returns a copy that can be enriched independently of c.
func (c *Candidate) Clone() *Candidate {
	cp := *c
	cp.Languages = append([]Language(nil), c.Languages...)
	cp.CustomFormats = append([]CustomFormat(nil), c.CustomFormats...)
	cp.Rejections = append([]Rejection(nil), c.Rejections...)
	return &cp
}
