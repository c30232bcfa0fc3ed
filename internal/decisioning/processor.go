package decisioning

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
	"github.com/slipstream/gamearr/internal/downloader"
	"github.com/slipstream/gamearr/internal/pending"
)

// Grabber hands a candidate to a download client.
type Grabber interface {
	Grab(ctx context.Context, c *candidate.Candidate, userInvoked bool) (*downloader.GrabResult, error)
}

// PendingStore holds candidates whose grab is deferred.
type PendingStore interface {
	Add(ctx context.Context, c *candidate.Candidate, policy *delay.Policy, reason pending.Reason) (*pending.Release, error)
	RemoveForTitle(ctx context.Context, titleID int64) error
}

// ProcessResult summarises what happened to a batch of decisions.
type ProcessResult struct {
	Grabbed  []*downloader.GrabResult `json:"grabbed"`
	Pending  []*pending.Release       `json:"pending"`
	Rejected int                      `json:"rejected"`
}

// Processor turns decisions into grabs and pending releases. For each title
// only the most preferred accepted candidate is grabbed.
type Processor struct {
	grabber Grabber
	pending PendingStore
	lock    *TitleLock
	logger  zerolog.Logger
}

// NewProcessor creates a new decision processor.
func NewProcessor(grabber Grabber, store PendingStore, lock *TitleLock, logger zerolog.Logger) *Processor {
	if lock == nil {
		lock = NewTitleLock()
	}
	return &Processor{
		grabber: grabber,
		pending: store,
		lock:    lock,
		logger:  logger.With().Str("component", "decision-processor").Logger(),
	}
}

// titleDecisions groups the decisions for one title.
type titleDecisions struct {
	titleID  int64
	accepted []Decision
	delayed  []Decision
}

// Process grabs the best accepted candidate per title. When no client can take
// it, or when the best candidate is only held by a delay, the candidate is
// added to the pending store instead.
func (p *Processor) Process(ctx context.Context, decisions []Decision, userInvoked bool) ProcessResult {
	var result ProcessResult

	groups := make(map[int64]*titleDecisions)
	var order []int64
	for _, d := range decisions {
		titleID := d.Candidate.TitleID()
		switch {
		case titleID == 0:
			result.Rejected++
			continue
		case d.Accepted(), d.OnlyDelayed():
		default:
			result.Rejected++
			continue
		}
		g, ok := groups[titleID]
		if !ok {
			g = &titleDecisions{titleID: titleID}
			groups[titleID] = g
			order = append(order, titleID)
		}
		if d.Accepted() {
			g.accepted = append(g.accepted, d)
		} else {
			g.delayed = append(g.delayed, d)
		}
	}

	for _, titleID := range order {
		if ctx.Err() != nil {
			break
		}
		p.processTitle(ctx, groups[titleID], userInvoked, &result)
	}
	return result
}

func (p *Processor) processTitle(ctx context.Context, g *titleDecisions, userInvoked bool, result *ProcessResult) {
	unlock, ok := p.lock.TryLock(g.titleID)
	if !ok {
		p.logger.Debug().Int64("titleId", g.titleID).Msg("Skipping title, grab lock held")
		return
	}
	defer unlock()

	SortByPreference(g.accepted)
	SortByPreference(g.delayed)

	for _, d := range g.accepted {
		grab, err := p.grabber.Grab(ctx, d.Candidate, userInvoked)
		if err == nil {
			result.Grabbed = append(result.Grabbed, grab)
			if p.pending != nil {
				if err := p.pending.RemoveForTitle(ctx, g.titleID); err != nil {
					p.logger.Warn().Err(err).Int64("titleId", g.titleID).Msg("Failed to clear pending releases")
				}
			}
			return
		}
		if errors.Is(err, downloader.ErrClientUnavailable) {
			p.hold(ctx, d, pending.ReasonDownloadClientUnavailable, result)
			return
		}
		p.logger.Warn().Err(err).Str("release", d.Candidate.Title).Msg("Grab failed, trying next release")
	}

	if len(g.accepted) == 0 && len(g.delayed) > 0 {
		p.hold(ctx, g.delayed[0], pending.ReasonDelay, result)
	}
}

func (p *Processor) hold(ctx context.Context, d Decision, reason pending.Reason, result *ProcessResult) {
	if p.pending == nil {
		return
	}
	rel, err := p.pending.Add(ctx, d.Candidate, d.Policy, reason)
	if err != nil {
		p.logger.Error().Err(err).Str("release", d.Candidate.Title).Msg("Failed to hold release")
		return
	}
	result.Pending = append(result.Pending, rel)
}

// SortByPreference orders decisions with the most preferred candidate first.
func SortByPreference(decisions []Decision) {
	sort.SliceStable(decisions, func(i, j int) bool {
		return candidate.Compare(decisions[i].Candidate, decisions[j].Candidate) > 0
	})
}
