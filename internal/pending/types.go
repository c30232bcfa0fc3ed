// Package pending holds accepted candidates whose grab is deferred, either by
// a delay policy or because no download client could take them.
package pending

import (
	"errors"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
)

var (
	ErrNotFound = errors.New("pending release not found")
	// ErrTitleBusy is returned when another grab for the same title is in
	// progress. The release stays pending.
	ErrTitleBusy = errors.New("a grab for this title is already in progress")
)

// Reason explains why a release is held.
type Reason string

const (
	ReasonDelay                     Reason = "delay"
	ReasonDownloadClientUnavailable Reason = "downloadClientUnavailable"
	ReasonManual                    Reason = "manual"
)

// Release is a held candidate. At most one release is pending per title.
type Release struct {
	ID        int64                `json:"id"`
	TitleID   int64                `json:"titleId"`
	Candidate *candidate.Candidate `json:"candidate"`
	Policy    *delay.Policy        `json:"policy,omitempty"`
	Reason    Reason               `json:"reason"`
	Added     time.Time            `json:"added"`
	ReleaseAt time.Time            `json:"releaseAt"`
}

// Ready reports whether the hold has expired.
func (r *Release) Ready(now time.Time) bool {
	return !r.ReleaseAt.After(now)
}

// Timeleft returns the remaining hold, zero once ready.
func (r *Release) Timeleft(now time.Time) time.Duration {
	if r.Ready(now) {
		return 0
	}
	return r.ReleaseAt.Sub(now)
}

// releaseAt computes when a hold expires. Delay holds run from the publish
// date, matching how the delay rule measures age.
func releaseAt(c *candidate.Candidate, policy *delay.Policy, reason Reason, now time.Time) time.Time {
	if reason != ReasonDelay || policy == nil {
		return now
	}
	start := c.PublishDate
	if start.IsZero() {
		start = now
	}
	return start.Add(policy.DelayFor(string(c.Protocol)))
}
