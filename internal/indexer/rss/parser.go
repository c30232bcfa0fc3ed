package rss

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/types"
)

// ParseFeed auto-detects the feed format and parses it into releases.
func ParseFeed(data []byte) ([]types.Release, error) {
	// Try standard RSS (with torznab/newznab attributes) first
	if results, err := parseStandardRSS(data); err == nil && len(results) > 0 {
		return results, nil
	}

	// Try TorrentPotato (JSON)
	if results, err := parseTorrentPotato(data); err == nil && len(results) > 0 {
		return results, nil
	}

	if isEmptyRSS(data) {
		return nil, nil
	}
	return nil, types.ErrMalformedFeed
}

// Standard RSS structures

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	Link      string       `xml:"link"`
	GUID      string       `xml:"guid"`
	PubDate   string       `xml:"pubDate"`
	Size      int64        `xml:"size"`
	Enclosure rssEnclosure `xml:"enclosure"`
	Comments  string       `xml:"comments"`
	Attrs     []attr       `xml:"attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// attr is a torznab:attr or newznab:attr element.
type attr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func isEmptyRSS(data []byte) bool {
	var feed rssFeed
	return xml.Unmarshal(data, &feed) == nil && len(feed.Channel.Items) == 0
}

func parseStandardRSS(data []byte) ([]types.Release, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	var results []types.Release
	for _, item := range feed.Channel.Items {
		downloadURL := item.Link
		if downloadURL == "" && item.Enclosure.URL != "" {
			downloadURL = item.Enclosure.URL
		}
		if downloadURL == "" {
			continue
		}

		size := item.Size
		if size == 0 && item.Enclosure.Length > 0 {
			size = item.Enclosure.Length
		}

		guid := item.GUID
		if guid == "" {
			guid = downloadURL
		}

		release := types.Release{
			GUID:        guid,
			Title:       item.Title,
			DownloadURL: downloadURL,
			InfoURL:     item.Comments,
			Size:        size,
			PublishDate: parseDate(item.PubDate),
			Protocol:    inferProtocol(downloadURL, item.Enclosure.Type),
		}
		applyAttrs(&release, item.Attrs)
		results = append(results, release)
	}

	return results, nil
}

func applyAttrs(r *types.Release, attrs []attr) {
	for _, a := range attrs {
		switch strings.ToLower(a.Name) {
		case "seeders":
			r.Seeders, _ = strconv.Atoi(a.Value)
		case "size":
			if r.Size == 0 {
				r.Size, _ = strconv.ParseInt(a.Value, 10, 64)
			}
		case "downloadvolumefactor":
			if v, err := strconv.ParseFloat(a.Value, 64); err == nil && v == 0 {
				r.Flags |= candidate.FlagFreeleech
			}
		case "tag":
			switch strings.ToLower(a.Value) {
			case "internal":
				r.Flags |= candidate.FlagInternal
			case "scene":
				r.Flags |= candidate.FlagScene
			case "nuked":
				r.Flags |= candidate.FlagNuked
			}
		}
	}
}

// TorrentPotato (JSON)

type torrentPotatoResponse struct {
	Results []torrentPotatoItem `json:"results"`
}

type torrentPotatoItem struct {
	ReleaseName string `json:"release_name"`
	TorrentID   string `json:"torrent_id"`
	DownloadURL string `json:"download_url"`
	Freeleech   bool   `json:"freeleech"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	PublishDate string `json:"publish_date"`
}

func parseTorrentPotato(data []byte) ([]types.Release, error) {
	var resp torrentPotatoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no results")
	}

	var results []types.Release
	for _, item := range resp.Results {
		if item.DownloadURL == "" {
			continue
		}

		guid := item.TorrentID
		if guid == "" {
			guid = item.DownloadURL
		}

		release := types.Release{
			GUID:        guid,
			Title:       item.ReleaseName,
			DownloadURL: item.DownloadURL,
			Size:        item.Size,
			PublishDate: parseDate(item.PublishDate),
			Protocol:    candidate.ProtocolTorrent,
			Seeders:     item.Seeders,
		}
		if item.Freeleech {
			release.Flags |= candidate.FlagFreeleech
		}
		results = append(results, release)
	}

	return results, nil
}

// Helpers

func parseDate(s string) time.Time {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func inferProtocol(url, enclosureType string) candidate.Protocol {
	if enclosureType == "application/x-nzb" {
		return candidate.ProtocolUsenet
	}
	if strings.Contains(url, ".nzb") {
		return candidate.ProtocolUsenet
	}
	return candidate.ProtocolTorrent
}
