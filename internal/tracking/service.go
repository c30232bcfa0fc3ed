package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/slipstream/gamearr/internal/augment"
	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/downloader"
	"github.com/slipstream/gamearr/internal/events"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/metrics"
)

// DefaultStallTimeout is how long a download may report no progress before
// it is flagged.
const DefaultStallTimeout = 6 * time.Hour

// clientPickupWindow is how long a freshly grabbed download may stay absent
// from its client's list before it is orphaned.
const clientPickupWindow = time.Hour

// ClientSource lists the enabled download clients.
type ClientSource interface {
	List() []downloader.Client
	Get(id int64) (downloader.Client, error)
}

// HistoryStore is the slice of the history ledger tracking needs.
type HistoryStore interface {
	Record(ctx context.Context, e *history.Event) error
	MostRecentForTitle(ctx context.Context, titleID int64) (*history.Event, error)
	FindByDownloadID(ctx context.Context, downloadID string) ([]*history.Event, error)
	HasEvent(ctx context.Context, downloadID string, eventType history.EventType) (bool, error)
}

// Service polls download clients and advances tracked downloads.
type Service struct {
	clients   ClientSource
	history   HistoryStore
	importer  Importer
	augmenter *augment.Pipeline
	publisher *events.Publisher
	logger    zerolog.Logger

	stallTimeout time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	downloads map[string]*TrackedDownload

	polling   sync.Map // client id -> *atomic.Bool
	importing sync.Map // title id -> *sync.Mutex
}

// NewService creates a tracking service. A nil importer leaves completed
// downloads pending import.
func NewService(
	clients ClientSource,
	hist HistoryStore,
	importer Importer,
	augmenter *augment.Pipeline,
	publisher *events.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		clients:      clients,
		history:      hist,
		importer:     importer,
		augmenter:    augmenter,
		publisher:    publisher,
		logger:       logger.With().Str("component", "tracking").Logger(),
		stallTimeout: DefaultStallTimeout,
		now:          time.Now,
		downloads:    make(map[string]*TrackedDownload),
	}
}

// SetStallTimeout changes the no-progress window. Zero disables stall
// detection.
func (s *Service) SetStallTimeout(d time.Duration) {
	s.stallTimeout = d
}

// Notify implements events.Observer. A grab is tracked immediately so the
// title counts as occupied before the next poll reaches its client.
func (s *Service) Notify(ctx context.Context, e events.Event) {
	if e.Type != events.ReleaseGrabbed {
		return
	}
	grabbed, ok := e.Payload.(events.GrabbedRelease)
	if !ok || grabbed.DownloadID == "" || grabbed.Candidate == nil {
		return
	}
	if s.track(grabbed) {
		s.publisher.Publish(ctx, events.Event{Type: events.TrackedDownloadsRefreshed, Payload: grabbed.ClientID})
	}
}

// track registers a grabbed download ahead of its first poll. Reports false
// when the download is already known.
func (s *Service) track(g events.GrabbedRelease) bool {
	k := key(g.ClientID, g.DownloadID)
	now := s.now()
	td := &TrackedDownload{
		DownloadID: g.DownloadID,
		ClientID:   g.ClientID,
		ClientName: g.ClientName,
		Protocol:   g.Candidate.Protocol,
		Candidate:  g.Candidate.Clone(),
		TitleID:    g.Candidate.TitleID(),
		State:      StateDownloading,
		Trackable:  true,
		Item: downloader.Item{
			ID:       g.DownloadID,
			Title:    g.Candidate.Title,
			Status:   downloader.StatusQueued,
			Size:     g.Candidate.Size,
			Sizeleft: g.Candidate.Size,
		},
		Added:          now,
		lastProgress:   now,
		lastSizeleft:   g.Candidate.Size,
		awaitingClient: true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.downloads[k]; ok {
		return false
	}
	s.downloads[k] = td
	s.logger.Debug().Str("downloadId", g.DownloadID).Int64("titleId", td.TitleID).Msg("Tracking grabbed download")
	return true
}

func key(clientID int64, downloadID string) string {
	return strconv.FormatInt(clientID, 10) + ":" + downloadID
}

// PollAll polls every enabled client concurrently.
func (s *Service) PollAll(ctx context.Context) error {
	var g errgroup.Group
	for _, c := range s.clients.List() {
		g.Go(func() error {
			if err := s.Poll(ctx, c); err != nil && !errors.Is(err, ErrPollRunning) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Poll refreshes every download of one client. A poll already in flight for
// the same client makes this return ErrPollRunning. Client faults are logged
// and leave existing downloads untouched.
func (s *Service) Poll(ctx context.Context, client downloader.Client) error {
	guard, _ := s.polling.LoadOrStore(client.ID(), &atomic.Bool{})
	busy := guard.(*atomic.Bool)
	if !busy.CompareAndSwap(false, true) {
		s.logger.Debug().Str("client", client.Name()).Msg("Poll already running, skipping")
		return ErrPollRunning
	}
	defer busy.Store(false)

	logger := s.logger.With().Int64("clientId", client.ID()).Str("client", client.Name()).Logger()

	items, err := client.List(ctx)
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.KindClient).Inc()
		logger.Warn().Err(err).Msg("Failed to list downloads")
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		k := key(client.ID(), item.ID)
		seen[k] = struct{}{}

		td := s.lookupOrCreate(ctx, client, item)
		s.update(ctx, td, item)
	}

	s.sweepMissing(client.ID(), seen)

	s.publisher.Publish(ctx, events.Event{Type: events.TrackedDownloadsRefreshed, Payload: client.ID()})
	logger.Debug().Int("items", len(items)).Msg("Poll completed")
	return nil
}

// lookupOrCreate returns the tracked download for an item, correlating new
// items against grab history.
func (s *Service) lookupOrCreate(ctx context.Context, client downloader.Client, item downloader.Item) *TrackedDownload {
	k := key(client.ID(), item.ID)
	s.mu.RLock()
	td, ok := s.downloads[k]
	s.mu.RUnlock()
	if ok {
		return td
	}

	now := s.now()
	td = &TrackedDownload{
		DownloadID:   item.ID,
		ClientID:     client.ID(),
		ClientName:   client.Name(),
		Protocol:     client.Protocol(),
		State:        StateDownloading,
		Item:         item,
		Added:        now,
		lastProgress: now,
		lastSizeleft: item.Sizeleft,
	}
	if !item.AddedAt.IsZero() {
		td.Added = item.AddedAt
	}

	if grabbed := s.grabEvent(ctx, item.ID); grabbed != nil {
		td.Trackable = true
		td.TitleID = grabbed.TitleID
		td.Candidate = candidateFromGrab(grabbed, td.Protocol)
	} else {
		td.Candidate = s.reconstruct(ctx, td, item)
	}

	s.mu.Lock()
	if existing, ok := s.downloads[k]; ok {
		td = existing
	} else {
		s.downloads[k] = td
	}
	s.mu.Unlock()
	return td
}

func (s *Service) grabEvent(ctx context.Context, downloadID string) *history.Event {
	evs, err := s.history.FindByDownloadID(ctx, downloadID)
	if err != nil {
		s.logger.Warn().Err(err).Str("downloadId", downloadID).Msg("Failed to correlate download with history")
		return nil
	}
	for _, ev := range evs {
		if ev.EventType == history.EventTypeGrabbed {
			return ev
		}
	}
	return nil
}

func candidateFromGrab(ev *history.Event, protocol candidate.Protocol) *candidate.Candidate {
	c := &candidate.Candidate{
		Title:    ev.SourceTitle,
		Protocol: protocol,
		Quality:  candidate.UnknownQuality(),
	}
	if ev.Quality != nil {
		c.Quality = *ev.Quality
	}
	if v, ok := ev.Data["indexer"].(string); ok {
		c.IndexerName = v
	}
	if v, ok := ev.Data["indexerId"].(float64); ok {
		c.IndexerID = int64(v)
	}
	if v, ok := ev.Data["guid"].(string); ok {
		c.GUID = v
	}
	if v, ok := ev.Data["size"].(float64); ok {
		c.Size = int64(v)
	}
	return c
}

// reconstruct builds a best-effort candidate from the client's item name.
func (s *Service) reconstruct(ctx context.Context, td *TrackedDownload, item downloader.Item) *candidate.Candidate {
	c := &candidate.Candidate{
		Title:    item.Title,
		Size:     item.Size,
		Protocol: td.Protocol,
		Quality:  candidate.UnknownQuality(),
	}
	if s.augmenter == nil {
		return c
	}
	return s.augmenter.Augment(ctx, c, &augment.DownloadClientInfo{
		ClientName: td.ClientName,
		ItemTitle:  item.Title,
		Category:   item.Category,
	})
}

// update applies one client report to a tracked download.
func (s *Service) update(ctx context.Context, td *TrackedDownload, item downloader.Item) {
	s.mu.Lock()
	td.Item = item
	td.awaitingClient = false
	if td.State.IsTerminal() {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if item.Sizeleft != td.lastSizeleft {
		td.lastSizeleft = item.Sizeleft
		td.lastProgress = now
	}
	s.mu.Unlock()

	switch item.Status {
	case downloader.StatusQueued:
		s.transition(td, StateDownloading)
	case downloader.StatusDownloading:
		if s.stallTimeout > 0 && now.Sub(td.lastProgress) >= s.stallTimeout {
			s.transition(td, StateWarning, fmt.Sprintf("No progress for %s", s.stallTimeout))
			return
		}
		s.transition(td, StateDownloading)
	case downloader.StatusPaused:
		if item.Progress() >= 100 {
			s.complete(ctx, td)
			return
		}
		s.transition(td, StateWarning, "Download is paused")
	case downloader.StatusWarning:
		msg := item.Message
		if msg == "" {
			msg = "Download client reported a warning"
		}
		s.transition(td, StateWarning, msg)
	case downloader.StatusError:
		s.fail(ctx, td, item.Message)
	case downloader.StatusCompleted, downloader.StatusSeeding:
		s.complete(ctx, td)
	default:
		s.transition(td, StateWarning, fmt.Sprintf("Unknown download status %q", item.Status))
	}
}

// complete runs the import check. The most recent history event for the
// title decides whether the content was already imported. Completions for
// one title run one at a time so parallel client polls cannot both import.
func (s *Service) complete(ctx context.Context, td *TrackedDownload) {
	if !td.Trackable || td.TitleID == 0 {
		s.transition(td, StateImportPending, "Download was not grabbed by gamearr, manual import required")
		return
	}
	s.transition(td, StateImportPending)

	unlock := s.lockTitle(td.TitleID)
	defer unlock()

	last, err := s.history.MostRecentForTitle(ctx, td.TitleID)
	switch {
	case err == nil && last.EventType == history.EventTypeDownloadFolderImported:
		s.logger.Debug().Str("downloadId", td.DownloadID).Int64("titleId", td.TitleID).Msg("Already imported, skipping import")
		s.transition(td, StateImported)
		return
	case err != nil && !errors.Is(err, history.ErrNotFound):
		s.logger.Warn().Err(err).Str("downloadId", td.DownloadID).Msg("Failed to check import history")
		return
	}

	if s.importer == nil {
		return
	}

	s.transition(td, StateImporting)
	s.mu.Lock()
	td.ImportAttempted = true
	snapshot := td.clone()
	s.mu.Unlock()

	if err := s.importer.Import(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Str("downloadId", td.DownloadID).Msg("Import failed")
		s.transition(td, StateWarning, "Import failed: "+err.Error())
		return
	}

	data, _ := history.ToJSON(history.ImportedData{
		ClientName: td.ClientName,
		OutputPath: snapshot.Item.OutputPath,
	})
	event := &history.Event{
		TitleID:     td.TitleID,
		EventType:   history.EventTypeDownloadFolderImported,
		SourceTitle: snapshot.Candidate.Title,
		DownloadID:  td.DownloadID,
		Quality:     &snapshot.Candidate.Quality,
		Data:        data,
	}
	if err := s.history.Record(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("downloadId", td.DownloadID).Msg("Failed to record import")
	}

	s.transition(td, StateImported)
	s.publisher.Publish(ctx, events.Event{Type: events.DownloadImported, TitleID: td.TitleID, Payload: snapshot})
	s.logger.Info().Str("downloadId", td.DownloadID).Int64("titleId", td.TitleID).Str("release", snapshot.Candidate.Title).Msg("Download imported")
}

func (s *Service) lockTitle(titleID int64) func() {
	v, _ := s.importing.LoadOrStore(titleID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// fail moves a download to Failed, recording downloadFailed once per
// download id.
func (s *Service) fail(ctx context.Context, td *TrackedDownload, message string) {
	if message == "" {
		message = "Download client reported an error"
	}
	if !s.transition(td, StateFailed, message) || !td.Trackable {
		return
	}

	recorded, err := s.history.HasEvent(ctx, td.DownloadID, history.EventTypeDownloadFailed)
	if err != nil {
		s.logger.Warn().Err(err).Str("downloadId", td.DownloadID).Msg("Failed to check failure history")
		return
	}
	if recorded {
		return
	}

	data, _ := history.ToJSON(history.FailedData{ClientName: td.ClientName, Message: message})
	if err := s.history.Record(ctx, &history.Event{
		TitleID:     td.TitleID,
		EventType:   history.EventTypeDownloadFailed,
		SourceTitle: td.Candidate.Title,
		DownloadID:  td.DownloadID,
		Quality:     &td.Candidate.Quality,
		Data:        data,
	}); err != nil {
		s.logger.Error().Err(err).Str("downloadId", td.DownloadID).Msg("Failed to record download failure")
		return
	}
	s.publisher.Publish(ctx, events.Event{
		Type:    events.DownloadFailed,
		TitleID: td.TitleID,
		Payload: events.DownloadFailure{
			DownloadID: td.DownloadID,
			ClientName: td.ClientName,
			Candidate:  td.Candidate.Clone(),
			Message:    message,
		},
	})
}

// transition sets the state and messages, reporting whether the state
// changed.
func (s *Service) transition(td *TrackedDownload, state State, messages ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	td.setMessage(messages...)
	if td.State == state {
		return false
	}
	s.logger.Debug().
		Str("downloadId", td.DownloadID).
		Str("from", string(td.State)).
		Str("to", string(state)).
		Msg("Tracked download transition")
	td.State = state
	metrics.TrackedDownloadTransitionsTotal.WithLabelValues(string(state)).Inc()
	return true
}

// sweepMissing handles downloads the client no longer reports: terminal ones
// are forgotten, the rest become Orphaned.
func (s *Service) sweepMissing(clientID int64, seen map[string]struct{}) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, td := range s.downloads {
		if td.ClientID != clientID {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		if td.awaitingClient && now.Sub(td.Added) < clientPickupWindow {
			continue
		}
		if td.State.IsTerminal() {
			delete(s.downloads, k)
			continue
		}
		td.State = StateOrphaned
		td.setMessage("Download is no longer reported by the client")
		metrics.TrackedDownloadTransitionsTotal.WithLabelValues(string(StateOrphaned)).Inc()
		s.logger.Warn().Str("downloadId", td.DownloadID).Int64("clientId", clientID).Msg("Download orphaned")
	}
}

// Downloads returns a snapshot of every tracked download, oldest first.
func (s *Service) Downloads() []*TrackedDownload {
	s.mu.RLock()
	out := make([]*TrackedDownload, 0, len(s.downloads))
	for _, td := range s.downloads {
		out = append(out, td.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Added.Equal(out[j].Added) {
			return out[i].Added.Before(out[j].Added)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Find returns a snapshot of one tracked download.
func (s *Service) Find(clientID int64, downloadID string) (*TrackedDownload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.downloads[key(clientID, downloadID)]
	if !ok {
		return nil, ErrNotFound
	}
	return td.clone(), nil
}

// HasActiveDownload reports whether a title has a download in flight.
func (s *Service) HasActiveDownload(titleID int64) bool {
	if titleID == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, td := range s.downloads {
		if td.TitleID == titleID && td.State.IsActive() {
			return true
		}
	}
	return false
}

// Tracks reports whether a download id is known, whatever its state.
func (s *Service) Tracks(downloadID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, td := range s.downloads {
		if td.DownloadID == downloadID {
			return true
		}
	}
	return false
}

// Ignore stops tracking a download without removing it from the client.
func (s *Service) Ignore(ctx context.Context, clientID int64, downloadID string) error {
	td, err := s.get(clientID, downloadID)
	if err != nil {
		return err
	}
	s.transition(td, StateCancelled, "Ignored by user")

	if td.Trackable {
		data, _ := history.ToJSON(history.FailedData{ClientName: td.ClientName, Message: "Ignored by user"})
		if err := s.history.Record(ctx, &history.Event{
			TitleID:     td.TitleID,
			EventType:   history.EventTypeDownloadIgnored,
			SourceTitle: td.Candidate.Title,
			DownloadID:  td.DownloadID,
			Quality:     &td.Candidate.Quality,
			Data:        data,
		}); err != nil {
			return fmt.Errorf("failed to record ignored download: %w", err)
		}
	}

	s.publisher.Publish(ctx, events.Event{Type: events.DownloadIgnored, TitleID: td.TitleID, Payload: td.Key()})
	s.publisher.Publish(ctx, events.Event{Type: events.TrackedDownloadsRefreshed, Payload: clientID})
	return nil
}

// Remove deletes a download from its client and marks it Aborted.
func (s *Service) Remove(ctx context.Context, clientID int64, downloadID string, deleteData bool) error {
	td, err := s.get(clientID, downloadID)
	if err != nil {
		return err
	}
	client, err := s.clients.Get(clientID)
	if err != nil {
		return fmt.Errorf("failed to remove download: %w", err)
	}
	if err := client.Remove(ctx, downloadID, deleteData); err != nil && !errors.Is(err, downloader.ErrNotFound) {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.KindClient).Inc()
		return fmt.Errorf("failed to remove download: %w", err)
	}

	s.transition(td, StateAborted, "Removed by user")
	s.publisher.Publish(ctx, events.Event{Type: events.TrackedDownloadsRefreshed, Payload: clientID})
	return nil
}

func (s *Service) get(clientID int64, downloadID string) (*TrackedDownload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	td, ok := s.downloads[key(clientID, downloadID)]
	if !ok {
		return nil, ErrNotFound
	}
	return td, nil
}
