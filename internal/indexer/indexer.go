// Package indexer holds the configured indexer adapters and converts their
// raw releases into candidates.
package indexer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/indexer/mock"
	"github.com/slipstream/gamearr/internal/indexer/rss"
	"github.com/slipstream/gamearr/internal/indexer/types"
)

// Re-export types for convenience.
type (
	Adapter     = types.Adapter
	AdapterType = types.AdapterType
	Config      = types.Config
	Criteria    = types.Criteria
	Request     = types.Request
	Release     = types.Release
)

const (
	AdapterTypeRSS  = types.AdapterTypeRSS
	AdapterTypeMock = types.AdapterTypeMock
)

var (
	ErrIndexerNotFound    = errors.New("indexer not found")
	ErrUnsupportedIndexer = errors.New("unsupported indexer type")
	ErrNotImplemented     = types.ErrNotImplemented
	ErrUnauthorized       = types.ErrUnauthorized
	ErrMalformedFeed      = types.ErrMalformedFeed
)

// NewAdapter creates an adapter for the config's type.
func NewAdapter(cfg *Config) (Adapter, error) {
	switch cfg.Type {
	case AdapterTypeRSS:
		return rss.NewClient(cfg), nil
	case AdapterTypeMock:
		return mock.NewFromConfig(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIndexer, cfg.Type)
	}
}

// ToCandidate converts a raw release into an unenriched candidate.
func ToCandidate(a Adapter, r Release) *candidate.Candidate {
	protocol := r.Protocol
	if protocol == "" {
		protocol = a.Protocol()
	}
	return &candidate.Candidate{
		IndexerID:   a.ID(),
		IndexerName: a.Name(),
		GUID:        r.GUID,
		Title:       r.Title,
		DownloadURL: r.DownloadURL,
		Size:        r.Size,
		PublishDate: r.PublishDate,
		Protocol:    protocol,
		Seeders:     r.Seeders,
		Flags:       r.Flags,
		Quality:     candidate.UnknownQuality(),
	}
}

// Service is the registry of enabled indexers.
type Service struct {
	mu       sync.RWMutex
	adapters map[int64]Adapter
	logger   zerolog.Logger
}

// NewService creates an empty indexer registry.
func NewService(logger zerolog.Logger) *Service {
	return &Service{
		adapters: make(map[int64]Adapter),
		logger:   logger.With().Str("component", "indexer").Logger(),
	}
}

// LoadConfigs registers an adapter for every enabled config.
func (s *Service) LoadConfigs(cfgs []Config) error {
	for i := range cfgs {
		cfg := &cfgs[i]
		if !cfg.Enabled {
			continue
		}
		a, err := NewAdapter(cfg)
		if err != nil {
			return fmt.Errorf("failed to create indexer %q: %w", cfg.Name, err)
		}
		s.Register(a)
	}
	return nil
}

// Register adds or replaces an adapter.
func (s *Service) Register(a Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[a.ID()] = a
	s.logger.Info().Int64("indexerId", a.ID()).Str("indexer", a.Name()).Msg("Registered indexer")
}

// Get returns an adapter by ID.
func (s *Service) Get(id int64) (Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[id]
	if !ok {
		return nil, ErrIndexerNotFound
	}
	return a, nil
}

// List returns every adapter ordered by ID.
func (s *Service) List() []Adapter {
	s.mu.RLock()
	out := make([]Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
