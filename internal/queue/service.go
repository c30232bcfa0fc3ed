package queue

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/events"
	"github.com/slipstream/gamearr/internal/metrics"
	"github.com/slipstream/gamearr/internal/pending"
	"github.com/slipstream/gamearr/internal/tracking"
)

// EventUpdated is the websocket message carrying a fresh queue.
const EventUpdated = "queue:updated"

// namespace seeds the stable entry ids.
var namespace = uuid.MustParse("6f1c2a4e-8d3b-4f5a-9c7e-2b1d0e3f4a5b")

// DownloadSource lists tracked downloads.
type DownloadSource interface {
	Downloads() []*tracking.TrackedDownload
}

// PendingSource lists pending releases.
type PendingSource interface {
	List(ctx context.Context) ([]*pending.Release, error)
}

// Broadcaster pushes messages to websocket clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// Service keeps the merged queue snapshot. Readers always see a complete
// snapshot; a refresh swaps it in whole.
type Service struct {
	downloads DownloadSource
	pending   PendingSource
	hub       Broadcaster
	logger    zerolog.Logger
	now       func() time.Time

	snapshot  atomic.Pointer[[]Entry]
	triggerCh chan struct{}
}

// NewService creates a queue service with an empty snapshot.
func NewService(downloads DownloadSource, pendingSource PendingSource, hub Broadcaster, logger zerolog.Logger) *Service {
	s := &Service{
		downloads: downloads,
		pending:   pendingSource,
		hub:       hub,
		logger:    logger.With().Str("component", "queue").Logger(),
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}
	empty := []Entry{}
	s.snapshot.Store(&empty)
	return s
}

// EntryID derives the stable id for a source row.
func EntryID(source Source, sourceID string) string {
	return uuid.NewSHA1(namespace, []byte(string(source)+":"+sourceID)).String()
}

// GetQueue returns the current snapshot.
func (s *Service) GetQueue() []Entry {
	return *s.snapshot.Load()
}

// GetQueueForTitle returns the snapshot entries for one title, in snapshot
// order.
func (s *Service) GetQueueForTitle(titleID int64) []Entry {
	return s.filter(func(e Entry) bool { return e.TitleID == titleID })
}

// Find returns the entry with the given id.
func (s *Service) Find(id string) (Entry, bool) {
	for _, e := range s.GetQueue() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func (s *Service) filter(keep func(Entry) bool) []Entry {
	all := s.GetQueue()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Notify implements events.Observer. Refreshes happen on the Run loop.
func (s *Service) Notify(_ context.Context, e events.Event) {
	switch e.Type {
	case events.TrackedDownloadsRefreshed, events.PendingReleasesUpdated:
		s.Trigger()
	}
}

// Trigger schedules a refresh. It never blocks; a pending trigger absorbs
// further ones.
func (s *Service) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Run refreshes the snapshot whenever triggered until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().Msg("Queue projection started")
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Initial queue refresh failed")
	}
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Queue projection stopped")
			return
		case <-s.triggerCh:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Queue refresh failed")
			}
		}
	}
}

// Refresh rebuilds the snapshot from both sources and broadcasts it. On a
// pending store failure the previous snapshot is kept.
func (s *Service) Refresh(ctx context.Context) error {
	now := s.now()

	downloads := s.downloads.Downloads()
	var held []*pending.Release
	if s.pending != nil {
		var err error
		held, err = s.pending.List(ctx)
		if err != nil {
			return err
		}
	}

	entries := make([]Entry, 0, len(downloads)+len(held))
	for _, td := range downloads {
		entries = append(entries, fromTracked(td, now))
	}
	for _, rel := range held {
		entries = append(entries, fromPending(rel, now))
	}
	s.snapshot.Store(&entries)

	metrics.QueueEntries.WithLabelValues(string(SourceLive)).Set(float64(len(downloads)))
	metrics.QueueEntries.WithLabelValues(string(SourcePending)).Set(float64(len(held)))

	if s.hub != nil {
		if err := s.hub.Broadcast(EventUpdated, entries); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to broadcast queue")
		}
	}
	return nil
}

func fromTracked(td *tracking.TrackedDownload, now time.Time) Entry {
	sourceID := strconv.FormatInt(td.ClientID, 10) + ":" + td.DownloadID
	e := Entry{
		ID:             EntryID(SourceLive, sourceID),
		TitleID:        td.TitleID,
		Title:          td.Item.Title,
		Status:         string(td.Item.Status),
		TrackedState:   td.State,
		Size:           td.Item.Size,
		Sizeleft:       td.Item.Sizeleft,
		Protocol:       td.Protocol,
		DownloadClient: td.ClientName,
		StatusMessages: td.StatusMessages,
		Source:         SourceLive,
		SourceID:       sourceID,
	}
	if td.Candidate != nil {
		e.Quality = td.Candidate.Quality
		e.Indexer = td.Candidate.IndexerName
		if e.Title == "" {
			e.Title = td.Candidate.Title
		}
	}
	if td.Item.Timeleft != nil {
		left := *td.Item.Timeleft
		eta := now.Add(left)
		e.Timeleft = &left
		e.EstimatedCompletion = &eta
	}
	return e
}

func fromPending(rel *pending.Release, now time.Time) Entry {
	sourceID := strconv.FormatInt(rel.ID, 10)
	left := rel.Timeleft(now)
	eta := rel.ReleaseAt
	e := Entry{
		ID:                  EntryID(SourcePending, sourceID),
		TitleID:             rel.TitleID,
		Status:              string(rel.Reason),
		EstimatedCompletion: &eta,
		Timeleft:            &left,
		Source:              SourcePending,
		SourceID:            sourceID,
	}
	if c := rel.Candidate; c != nil {
		e.Title = c.Title
		e.Size = c.Size
		e.Sizeleft = c.Size
		e.Protocol = c.Protocol
		e.Quality = c.Quality
		e.Indexer = c.IndexerName
	}
	return e
}
