// Package events provides an explicit observer list for pipeline
// notifications. Publishers are handed a *Publisher at construction time;
// there is no global bus.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
)

// Type identifies a notification.
type Type string

const (
	TrackedDownloadsRefreshed Type = "trackedDownloadsRefreshed"
	PendingReleasesUpdated    Type = "pendingReleasesUpdated"
	ReleaseGrabbed            Type = "releaseGrabbed"
	DownloadImported          Type = "downloadImported"
	DownloadFailed            Type = "downloadFailed"
	DownloadIgnored           Type = "downloadIgnored"
)

// Event is a notification delivered to observers. TitleID is zero when the
// event is not about a single title.
type Event struct {
	Type    Type
	TitleID int64
	Payload any
}

// GrabbedRelease is the payload of ReleaseGrabbed.
type GrabbedRelease struct {
	DownloadID string
	ClientID   int64
	ClientName string
	Candidate  *candidate.Candidate
}

// DownloadFailure is the payload of DownloadFailed.
type DownloadFailure struct {
	DownloadID string
	ClientName string
	Candidate  *candidate.Candidate
	Message    string
}

// Observer receives published events. Notify must not block for long; slow
// work belongs on the observer's own goroutine.
type Observer interface {
	Notify(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Publisher delivers events synchronously, in subscription order.
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
	logger    zerolog.Logger
}

// NewPublisher creates an empty observer list.
func NewPublisher(logger zerolog.Logger) *Publisher {
	return &Publisher{
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe appends an observer.
func (p *Publisher) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Publish notifies every observer. A panicking observer is logged and does
// not prevent delivery to the rest. A nil publisher discards events.
func (p *Publisher) Publish(ctx context.Context, e Event) {
	if p == nil {
		return
	}
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, o := range observers {
		p.deliver(ctx, o, e)
	}
}

func (p *Publisher) deliver(ctx context.Context, o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("event", string(e.Type)).Msg("Observer panicked")
		}
	}()
	o.Notify(ctx, e)
}
