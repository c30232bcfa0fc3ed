// Package delay resolves tag-scoped delay policies that decide how long an
// accepted release is held before it is grabbed.
package delay

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrNotFound      = errors.New("delay policy not found")
	ErrDefaultPolicy = errors.New("the default delay policy cannot be deleted")
	ErrInvalidPolicy = errors.New("invalid delay policy")
)

// Protocol names match candidate.Protocol values.
const (
	ProtocolTorrent = "torrent"
	ProtocolUsenet  = "usenet"
)

// Policy is a tag-scoped wait-before-grab rule. Lower Order wins; the default
// policy is untagged and always ordered last.
type Policy struct {
	ID                     int64
	Order                  int
	Tags                   []int64
	EnableTorrent          bool
	EnableUsenet           bool
	PreferredProtocol      string
	TorrentDelay           time.Duration
	UsenetDelay            time.Duration
	BypassIfHighestQuality bool
	IsDefault              bool
}

// DelayFor returns the hold duration for a protocol.
func (p *Policy) DelayFor(protocol string) time.Duration {
	switch protocol {
	case ProtocolTorrent:
		return p.TorrentDelay
	case ProtocolUsenet:
		return p.UsenetDelay
	default:
		return 0
	}
}

// Allows reports whether the protocol is enabled by the policy.
func (p *Policy) Allows(protocol string) bool {
	switch protocol {
	case ProtocolTorrent:
		return p.EnableTorrent
	case ProtocolUsenet:
		return p.EnableUsenet
	default:
		return true
	}
}

// Intersects reports whether the policy shares at least one tag with tags.
func (p *Policy) Intersects(tags []int64) bool {
	for _, t := range p.Tags {
		if slices.Contains(tags, t) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	return &cp
}

// PolicyInput holds the mutable fields of a policy. Delays are in minutes.
type PolicyInput struct {
	Tags                   []int64 `json:"tags"`
	EnableTorrent          bool    `json:"enableTorrent"`
	EnableUsenet           bool    `json:"enableUsenet"`
	PreferredProtocol      string  `json:"preferredProtocol"`
	TorrentDelay           int     `json:"torrentDelay"`
	UsenetDelay            int     `json:"usenetDelay"`
	BypassIfHighestQuality bool    `json:"bypassIfHighestQuality"`
}

func (in PolicyInput) validate(isDefault bool) error {
	if !in.EnableTorrent && !in.EnableUsenet {
		return fmt.Errorf("%w: at least one protocol must be enabled", ErrInvalidPolicy)
	}
	switch in.PreferredProtocol {
	case ProtocolTorrent, ProtocolUsenet:
	default:
		return fmt.Errorf("%w: preferred protocol must be torrent or usenet", ErrInvalidPolicy)
	}
	if in.TorrentDelay < 0 || in.UsenetDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidPolicy)
	}
	if isDefault && len(in.Tags) > 0 {
		return fmt.Errorf("%w: the default policy cannot have tags", ErrInvalidPolicy)
	}
	if !isDefault && len(in.Tags) == 0 {
		return fmt.Errorf("%w: a non-default policy requires at least one tag", ErrInvalidPolicy)
	}
	return nil
}

// PolicyResponse is the transport shape of a policy. Delays are in minutes.
type PolicyResponse struct {
	ID                     int64   `json:"id"`
	Order                  int     `json:"order"`
	Tags                   []int64 `json:"tags"`
	EnableTorrent          bool    `json:"enableTorrent"`
	EnableUsenet           bool    `json:"enableUsenet"`
	PreferredProtocol      string  `json:"preferredProtocol"`
	TorrentDelay           int     `json:"torrentDelay"`
	UsenetDelay            int     `json:"usenetDelay"`
	BypassIfHighestQuality bool    `json:"bypassIfHighestQuality"`
	IsDefault              bool    `json:"isDefault"`
}

// ToResponse converts a policy to its transport shape.
func (p *Policy) ToResponse() PolicyResponse {
	tags := p.Tags
	if tags == nil {
		tags = []int64{}
	}
	return PolicyResponse{
		ID:                     p.ID,
		Order:                  p.Order,
		Tags:                   tags,
		EnableTorrent:          p.EnableTorrent,
		EnableUsenet:           p.EnableUsenet,
		PreferredProtocol:      p.PreferredProtocol,
		TorrentDelay:           int(p.TorrentDelay / time.Minute),
		UsenetDelay:            int(p.UsenetDelay / time.Minute),
		BypassIfHighestQuality: p.BypassIfHighestQuality,
		IsDefault:              p.IsDefault,
	}
}
