package rsssync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/slipstream/gamearr/internal/augment"
	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/decisioning"
	"github.com/slipstream/gamearr/internal/indexer"
	"github.com/slipstream/gamearr/internal/indexer/status"
	"github.com/slipstream/gamearr/internal/metrics"
)

// DefaultConcurrency is the number of indexers synced at once.
const DefaultConcurrency = 4

// ErrSyncRunning is returned when a cycle is requested while one is in flight.
var ErrSyncRunning = errors.New("rss sync already running")

// Broadcaster pushes events to connected websocket clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// ConfigFunc returns the evaluation settings for a cycle.
type ConfigFunc func() decisioning.EvaluationConfig

// SyncStatus holds the result of the last RSS sync run.
type SyncStatus struct {
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"lastRun,omitzero"`
	TotalReleases int       `json:"totalReleases"`
	Matched       int       `json:"matched"`
	Grabbed       int       `json:"grabbed"`
	Pending       int       `json:"pending"`
	FailedSources int       `json:"failedSources"`
	ElapsedMs     int       `json:"elapsed"`
	Error         string    `json:"error,omitempty"`
}

// Service runs ingestion cycles: fetch recent releases from every indexer,
// match them to titles, augment, evaluate, then grab or hold the winners.
type Service struct {
	db        *sql.DB
	indexers  *indexer.Service
	titles    TitleFinder
	augmenter *augment.Pipeline
	engine    *decisioning.Engine
	processor *decisioning.Processor
	config    ConfigFunc
	hub       Broadcaster
	ledger    StatusRecorder
	logger    zerolog.Logger

	concurrency int

	running    atomic.Bool
	perIndexer sync.Map // indexer id -> *atomic.Bool
	mu         sync.RWMutex
	status     SyncStatus
}

// NewService creates a new RSS sync service.
func NewService(
	db *sql.DB,
	indexers *indexer.Service,
	titles TitleFinder,
	augmenter *augment.Pipeline,
	engine *decisioning.Engine,
	processor *decisioning.Processor,
	config ConfigFunc,
	hub Broadcaster,
	logger zerolog.Logger,
) *Service {
	if config == nil {
		config = func() decisioning.EvaluationConfig { return decisioning.EvaluationConfig{} }
	}
	return &Service{
		db:          db,
		indexers:    indexers,
		titles:      titles,
		augmenter:   augmenter,
		engine:      engine,
		processor:   processor,
		config:      config,
		hub:         hub,
		logger:      logger.With().Str("component", "rsssync").Logger(),
		concurrency: DefaultConcurrency,
	}
}

// StatusRecorder keeps the per-indexer failure ledger.
type StatusRecorder interface {
	RecordSuccess(ctx context.Context, indexerID int64, op status.Operation) error
	RecordFailure(ctx context.Context, indexerID int64, opErr error) error
}

// SetStatusRecorder records every fetch outcome in the indexer ledger.
func (s *Service) SetStatusRecorder(r StatusRecorder) {
	s.ledger = r
}

func (s *Service) recordFetch(ctx context.Context, a indexer.Adapter, op status.Operation, fetchErr error) {
	if s.ledger == nil {
		return
	}
	var err error
	if fetchErr != nil {
		err = s.ledger.RecordFailure(ctx, a.ID(), fetchErr)
	} else {
		err = s.ledger.RecordSuccess(ctx, a.ID(), op)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("indexerId", a.ID()).Msg("Failed to update indexer status")
	}
}

// SetConcurrency bounds how many indexers are synced in parallel.
func (s *Service) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// IsRunning returns whether an RSS sync is currently running.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// LastStatus returns the last sync status.
func (s *Service) LastStatus() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Running = s.running.Load()
	return st
}

// indexerResult is what one indexer contributed to a cycle.
type indexerResult struct {
	adapter   indexer.Adapter
	releases  int
	newest    *indexer.Release
	decisions []decisioning.Decision
	err       error
}

// Run executes a full RSS sync cycle. A cycle already in flight makes this a
// no-op returning ErrSyncRunning.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSyncRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	adapters := s.indexers.List()
	if len(adapters) == 0 {
		s.logger.Debug().Msg("No indexers configured, skipping RSS sync")
		s.setStatus(SyncStatus{LastRun: start})
		return nil
	}

	s.logger.Info().Int("indexers", len(adapters)).Msg("RSS sync starting")
	s.broadcast(EventStarted, syncStarted{Indexers: len(adapters)})

	cfg := s.config()
	matcher := NewMatcher(s.titles, s.logger)

	var (
		resultsMu sync.Mutex
		results   []indexerResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, a := range adapters {
		g.Go(func() error {
			res, ok := s.syncIndexer(gctx, a, matcher, cfg)
			if !ok {
				return nil
			}
			resultsMu.Lock()
			results = append(results, res)
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.failSync(start, err.Error())
		return err
	}

	var (
		decisions     []decisioning.Decision
		totalReleases int
		matched       int
		failed        int
	)
	for _, res := range results {
		if res.err != nil {
			failed++
			continue
		}
		totalReleases += res.releases
		matched += countMatched(res.decisions)
		decisions = append(decisions, res.decisions...)
	}

	processed := s.processor.Process(ctx, decisions, false)

	for _, res := range results {
		if res.err != nil || res.newest == nil {
			continue
		}
		if err := UpdateCacheBoundary(ctx, s.db, res.adapter.ID(), res.newest); err != nil {
			s.logger.Warn().Err(err).Int64("indexerId", res.adapter.ID()).Msg("failed to update RSS cache boundary")
		}
	}

	elapsed := int(time.Since(start).Milliseconds())
	summary := SyncStatus{
		LastRun:       start,
		TotalReleases: totalReleases,
		Matched:       matched,
		Grabbed:       len(processed.Grabbed),
		Pending:       len(processed.Pending),
		FailedSources: failed,
		ElapsedMs:     elapsed,
	}
	s.setStatus(summary)
	s.broadcast(EventCompleted, summary)

	s.logger.Info().
		Int("totalReleases", totalReleases).
		Int("matched", matched).
		Int("grabbed", summary.Grabbed).
		Int("pending", summary.Pending).
		Int("failedSources", failed).
		Int("elapsedMs", elapsed).
		Msg("RSS sync completed")

	return nil
}

// syncIndexer fetches and evaluates one indexer's recent releases. The second
// return is false when a sync for the same indexer is already running.
func (s *Service) syncIndexer(ctx context.Context, a indexer.Adapter, matcher *Matcher, cfg decisioning.EvaluationConfig) (indexerResult, bool) {
	guard, _ := s.perIndexer.LoadOrStore(a.ID(), &atomic.Bool{})
	busy := guard.(*atomic.Bool)
	if !busy.CompareAndSwap(false, true) {
		s.logger.Debug().Str("indexer", a.Name()).Msg("Indexer sync already running, skipping")
		return indexerResult{}, false
	}
	defer busy.Store(false)

	res := indexerResult{adapter: a}
	logger := s.logger.With().Int64("indexerId", a.ID()).Str("indexer", a.Name()).Logger()

	releases, err := s.fetch(ctx, a, nil)
	s.recordFetch(ctx, a, status.OperationRSS, err)
	if err != nil {
		metrics.AdapterFailuresTotal.WithLabelValues(metrics.KindIndexer).Inc()
		logger.Warn().Err(err).Msg("Indexer fetch failed")
		res.err = err
		s.broadcast(EventProgress, progressFor(res))
		return res, true
	}

	boundary, err := GetCacheBoundary(ctx, s.db, a.ID())
	if err != nil && !errors.Is(err, ErrNoCacheBoundary) {
		logger.Warn().Err(err).Msg("failed to load RSS cache boundary")
	}

	var fresh []indexer.Release
	for i := range releases {
		if IsAtCacheBoundary(&releases[i], boundary) {
			logger.Debug().Str("guid", releases[i].GUID).Msg("reached RSS cache boundary")
			break
		}
		fresh = append(fresh, releases[i])
	}
	res.releases = len(fresh)
	res.newest = newestRelease(releases)

	candidates := make([]*candidate.Candidate, 0, len(fresh))
	for _, r := range fresh {
		c := indexer.ToCandidate(a, r)
		c.Match = matcher.Match(ctx, r.Title)
		c = s.augmenter.Augment(ctx, c, nil)
		if c.Match != nil && len(c.CustomFormats) > 0 {
			logger.Trace().
				Str("release", c.Title).
				Str("formats", augment.FormatNames(c.CustomFormats)).
				Int("score", c.CustomFormatScore()).
				Msg("matched custom formats")
		}
		candidates = append(candidates, c)
	}
	res.decisions = s.engine.EvaluateAll(ctx, candidates, nil, cfg)

	s.broadcast(EventProgress, progressFor(res))
	return res, true
}

// fetch runs every request the adapter generates. A nil criteria fetches the
// recent feed.
func (s *Service) fetch(ctx context.Context, a indexer.Adapter, criteria *indexer.Criteria) ([]indexer.Release, error) {
	var (
		requests []indexer.Request
		err      error
	)
	if criteria == nil {
		requests, err = a.GetRecentRequests(ctx)
	} else {
		requests, err = a.GetSearchRequests(ctx, *criteria)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build requests: %w", err)
	}

	var releases []indexer.Release
	for _, req := range requests {
		page, err := a.Parse(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
		}
		releases = append(releases, page...)
	}
	return releases, nil
}

// Search queries every indexer for one title and returns the evaluated
// decisions, most preferred first.
func (s *Service) Search(ctx context.Context, titleID int64, userInvoked bool) ([]decisioning.Decision, error) {
	title, err := s.titles.Get(ctx, titleID)
	if err != nil {
		return nil, err
	}

	criteria := &indexer.Criteria{TitleID: title.ID, Query: title.Name, Year: title.Year}
	matcher := NewMatcher(s.titles, s.logger)
	cfg := s.config()
	sc := &decisioning.SearchContext{TitleID: title.ID, UserInvoked: userInvoked}

	var (
		mu         sync.Mutex
		candidates []*candidate.Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, a := range s.indexers.List() {
		g.Go(func() error {
			releases, err := s.fetch(gctx, a, criteria)
			s.recordFetch(gctx, a, status.OperationSearch, err)
			if err != nil {
				metrics.AdapterFailuresTotal.WithLabelValues(metrics.KindIndexer).Inc()
				s.logger.Warn().Err(err).Str("indexer", a.Name()).Msg("Indexer search failed")
				return nil
			}
			for _, r := range releases {
				c := indexer.ToCandidate(a, r)
				if matcher.MatchTarget(r.Title, title) {
					c.Match = title
				}
				c = s.augmenter.Augment(gctx, c, nil)
				mu.Lock()
				candidates = append(candidates, c)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decisions := s.engine.EvaluateAll(ctx, candidates, sc, cfg)
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].Accepted() != decisions[j].Accepted() {
			return decisions[i].Accepted()
		}
		return candidate.Compare(decisions[i].Candidate, decisions[j].Candidate) > 0
	})

	s.logger.Info().
		Int64("titleId", title.ID).
		Int("releases", len(decisions)).
		Bool("userInvoked", userInvoked).
		Msg("Title search completed")
	return decisions, nil
}

// SearchAndGrab searches for a title and grabs (or holds) the best result.
func (s *Service) SearchAndGrab(ctx context.Context, titleID int64) (decisioning.ProcessResult, error) {
	decisions, err := s.Search(ctx, titleID, true)
	if err != nil {
		return decisioning.ProcessResult{}, err
	}
	return s.processor.Process(ctx, decisions, true), nil
}

func newestRelease(releases []indexer.Release) *indexer.Release {
	var newest *indexer.Release
	for i := range releases {
		if newest == nil || releases[i].PublishDate.After(newest.PublishDate) {
			newest = &releases[i]
		}
	}
	return newest
}

func (s *Service) setStatus(st SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *Service) failSync(start time.Time, errMsg string) {
	s.setStatus(SyncStatus{
		LastRun: start,
		Error:   errMsg,
	})
	s.broadcast(EventFailed, syncFailed{Error: errMsg})
}

func (s *Service) broadcast(eventType string, payload any) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to broadcast RSS sync event")
	}
}
