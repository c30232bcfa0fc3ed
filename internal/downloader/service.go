package downloader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/events"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/metrics"
)

var (
	ErrClientNotFound = errors.New("download client not found")
	// ErrClientUnavailable means no enabled client could accept the
	// candidate right now. Callers hold the candidate for a retry.
	ErrClientUnavailable = errors.New("download client unavailable")
)

// HistoryRecorder stores grab events.
type HistoryRecorder interface {
	Record(ctx context.Context, e *history.Event) error
}

// registered pairs a client with the static priority it was configured with.
type registered struct {
	client   Client
	priority int
	enabled  bool
}

// Service holds the configured download clients and hands candidates to them.
type Service struct {
	mu      sync.RWMutex
	clients map[int64]*registered

	history   HistoryRecorder
	publisher *events.Publisher
	logger    zerolog.Logger
}

// NewService creates an empty client registry.
func NewService(hist HistoryRecorder, publisher *events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		clients:   make(map[int64]*registered),
		history:   hist,
		publisher: publisher,
		logger:    logger.With().Str("component", "downloader").Logger(),
	}
}

// LoadConfigs builds and registers a client for every config.
func (s *Service) LoadConfigs(cfgs []ClientConfig) error {
	for i := range cfgs {
		cfg := &cfgs[i]
		client, err := NewClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to create download client %q: %w", cfg.Name, err)
		}
		s.Register(client, cfg.Priority, cfg.Enabled)
	}
	return nil
}

// Register adds or replaces a client. Lower priority values are tried first.
func (s *Service) Register(client Client, priority int, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID()] = &registered{client: client, priority: priority, enabled: enabled}
	s.logger.Info().Int64("clientId", client.ID()).Str("client", client.Name()).
		Str("protocol", string(client.Protocol())).Bool("enabled", enabled).Msg("Registered download client")
}

// Get returns a client by ID.
func (s *Service) Get(id int64) (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return r.client, nil
}

// List returns every enabled client ordered by priority then ID.
func (s *Service) List() []Client {
	return s.sorted(func(*registered) bool { return true })
}

// ForProtocol returns enabled clients for a protocol in priority order.
func (s *Service) ForProtocol(protocol candidate.Protocol) []Client {
	return s.sorted(func(r *registered) bool { return r.client.Protocol() == protocol })
}

func (s *Service) sorted(keep func(*registered) bool) []Client {
	s.mu.RLock()
	matched := make([]*registered, 0, len(s.clients))
	for _, r := range s.clients {
		if r.enabled && keep(r) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority < matched[j].priority
		}
		return matched[i].client.ID() < matched[j].client.ID()
	})

	result := make([]Client, len(matched))
	for i, r := range matched {
		result[i] = r.client
	}
	return result
}

// GrabResult describes a successful submission.
type GrabResult struct {
	DownloadID string `json:"downloadId"`
	ClientID   int64  `json:"clientId"`
	ClientName string `json:"clientName"`
}

// Grab submits the candidate to the first client for its protocol that
// accepts it, then records a grabbed history event. When every client fails
// with a connectivity fault the error wraps ErrClientUnavailable.
func (s *Service) Grab(ctx context.Context, c *candidate.Candidate, userInvoked bool) (*GrabResult, error) {
	clients := s.ForProtocol(c.Protocol)
	if len(clients) == 0 {
		metrics.GrabsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: no enabled %s client", ErrClientUnavailable, c.Protocol)
	}

	var lastErr error
	for _, client := range clients {
		downloadID, err := client.Submit(ctx, c)
		if err != nil {
			metrics.AdapterFailuresTotal.WithLabelValues(metrics.KindClient).Inc()
			s.logger.Warn().Err(err).Str("client", client.Name()).Str("release", c.Title).
				Msg("Download client rejected submission")
			lastErr = err
			continue
		}

		result := &GrabResult{DownloadID: downloadID, ClientID: client.ID(), ClientName: client.Name()}
		s.recordGrab(ctx, c, result, userInvoked)
		metrics.GrabsTotal.WithLabelValues("submitted").Inc()
		s.publisher.Publish(ctx, events.Event{Type: events.ReleaseGrabbed, TitleID: c.TitleID(), Payload: events.GrabbedRelease{
			DownloadID: downloadID,
			ClientID:   client.ID(),
			ClientName: client.Name(),
			Candidate:  c.Clone(),
		}})

		s.logger.Info().Str("release", c.Title).Str("client", client.Name()).
			Str("downloadId", downloadID).Bool("userInvoked", userInvoked).Msg("Grabbed release")
		return result, nil
	}

	metrics.GrabsTotal.WithLabelValues("failed").Inc()
	if isUnavailable(lastErr) {
		return nil, fmt.Errorf("%w: %w", ErrClientUnavailable, lastErr)
	}
	return nil, fmt.Errorf("failed to submit release: %w", lastErr)
}

func (s *Service) recordGrab(ctx context.Context, c *candidate.Candidate, result *GrabResult, userInvoked bool) {
	data, err := history.ToJSON(history.GrabbedData{
		Indexer:     c.IndexerName,
		IndexerID:   c.IndexerID,
		GUID:        c.GUID,
		ClientName:  result.ClientName,
		ClientID:    result.ClientID,
		Protocol:    string(c.Protocol),
		Size:        c.Size,
		UserInvoked: userInvoked,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode grab data")
	}

	quality := c.Quality
	event := &history.Event{
		TitleID:     c.TitleID(),
		EventType:   history.EventTypeGrabbed,
		SourceTitle: c.Title,
		DownloadID:  result.DownloadID,
		Quality:     &quality,
		Data:        data,
	}
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, event); err != nil {
		// The download is already running; tracking falls back to parsing.
		s.logger.Error().Err(err).Str("downloadId", result.DownloadID).Msg("Failed to record grab history")
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, context.DeadlineExceeded)
}
