// Package decisioning evaluates candidates against an ordered list of
// acceptance rules and turns the verdicts into grabs or pending releases.
package decisioning

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/metrics"
)

// BlocklistChecker reports blocked releases.
type BlocklistChecker interface {
	IsBlocked(ctx context.Context, titleID, indexerID int64, guid, sourceTitle string) (bool, error)
}

// HistoryReader reads the most recent history event for a title.
type HistoryReader interface {
	MostRecentForTitle(ctx context.Context, titleID int64) (*history.Event, error)
}

// QueueChecker reports live downloads. Tracks is true once the tracker knows
// a download id, whatever its state.
type QueueChecker interface {
	HasActiveDownload(titleID int64) bool
	Tracks(downloadID string) bool
}

// DelayResolver resolves the delay policy for a tag set.
type DelayResolver interface {
	BestForTags(ctx context.Context, tags []int64) (*delay.Policy, error)
}

// Dependencies are the read-only collaborators rules consult. Any may be nil,
// in which case the rules that need it accept.
type Dependencies struct {
	Blocklist BlocklistChecker
	History   HistoryReader
	Queue     QueueChecker
	Delay     DelayResolver
}

// Rule is one named acceptance check. Check returns nil to accept.
type Rule struct {
	Name     string
	Priority int
	Check    func(ctx context.Context, ev *Evaluation) *candidate.Rejection
}

// Evaluation is the state a rule sees for one candidate.
type Evaluation struct {
	Candidate *candidate.Candidate
	Search    *SearchContext
	Config    EvaluationConfig

	engine      *Engine
	policy      *delay.Policy
	policyError error
	resolved    bool

	lastEvent  *history.Event
	lastLoaded bool
}

// Policy resolves the delay policy for the candidate's title once per
// evaluation. Returns nil when unmatched or when resolution failed.
func (ev *Evaluation) Policy(ctx context.Context) *delay.Policy {
	if ev.resolved {
		return ev.policy
	}
	ev.resolved = true
	if ev.engine.deps.Delay == nil || ev.Candidate.Match == nil {
		return nil
	}
	ev.policy, ev.policyError = ev.engine.deps.Delay.BestForTags(ctx, ev.Candidate.Match.Tags)
	if ev.policyError != nil {
		ev.engine.logger.Warn().Err(ev.policyError).
			Int64("titleId", ev.Candidate.TitleID()).
			Msg("Failed to resolve delay policy")
		ev.policy = nil
	}
	return ev.policy
}

// LastEvent loads the newest history event for the candidate's title once per
// evaluation. Returns nil when unmatched, when the title has no history or
// when the lookup failed.
func (ev *Evaluation) LastEvent(ctx context.Context) *history.Event {
	if ev.lastLoaded {
		return ev.lastEvent
	}
	ev.lastLoaded = true
	hr := ev.engine.deps.History
	if hr == nil || ev.Candidate.Match == nil {
		return nil
	}
	last, err := hr.MostRecentForTitle(ctx, ev.Candidate.Match.ID)
	switch {
	case errors.Is(err, history.ErrNotFound):
	case err != nil:
		ev.engine.logger.Warn().Err(err).Str("release", ev.Candidate.Title).Msg("History lookup failed")
	default:
		ev.lastEvent = last
	}
	return ev.lastEvent
}

// Engine runs every rule against a candidate in ascending priority.
type Engine struct {
	rules  []Rule
	deps   Dependencies
	logger zerolog.Logger
}

// NewEngine creates an engine with the default rule set.
func NewEngine(deps Dependencies, logger zerolog.Logger) *Engine {
	return NewEngineWithRules(deps, logger, DefaultRules()...)
}

// NewEngineWithRules creates an engine with an explicit rule set. Rules with
// equal priority keep their declaration order.
func NewEngineWithRules(deps Dependencies, logger zerolog.Logger, rules ...Rule) *Engine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Engine{
		rules:  sorted,
		deps:   deps,
		logger: logger.With().Str("component", "decisioning").Logger(),
	}
}

// Rules returns the rule names in execution order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Evaluate runs all rules against c. There is no short-circuit: every rule
// runs so the caller sees every reason. The rejections are also recorded on
// the candidate.
func (e *Engine) Evaluate(ctx context.Context, c *candidate.Candidate, sc *SearchContext, cfg EvaluationConfig) Decision {
	ev := &Evaluation{Candidate: c, Search: sc, Config: cfg, engine: e}

	var rejections []candidate.Rejection
	for _, rule := range e.rules {
		if r := e.runRule(ctx, rule, ev); r != nil {
			rejections = append(rejections, *r)
			metrics.RejectionsTotal.WithLabelValues(string(r.Reason), string(r.Type)).Inc()
		}
	}

	c.Rejections = append(c.Rejections[:0], rejections...)
	metrics.RecordDecision(len(rejections) == 0)

	if len(rejections) > 0 {
		e.logger.Debug().
			Str("release", c.Title).
			Int64("titleId", c.TitleID()).
			Int("rejections", len(rejections)).
			Str("first", string(rejections[0].Reason)).
			Msg("Release rejected")
	}

	return Decision{
		Candidate:  c,
		Rejections: rejections,
		Policy:     ev.Policy(ctx),
	}
}

// EvaluateAll evaluates candidates sequentially in input order.
func (e *Engine) EvaluateAll(ctx context.Context, candidates []*candidate.Candidate, sc *SearchContext, cfg EvaluationConfig) []Decision {
	decisions := make([]Decision, 0, len(candidates))
	for _, c := range candidates {
		decisions = append(decisions, e.Evaluate(ctx, c, sc, cfg))
	}
	return decisions
}

// runRule runs one rule. A panicking rule is logged and treated as accept.
func (e *Engine) runRule(ctx context.Context, rule Rule, ev *Evaluation) (rejection *candidate.Rejection) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RulePanicsTotal.WithLabelValues(rule.Name).Inc()
			e.logger.Error().
				Str("rule", rule.Name).
				Str("release", ev.Candidate.Title).
				Str("panic", fmt.Sprint(r)).
				Msg("Decision rule panicked, skipping")
			rejection = nil
		}
	}()
	return rule.Check(ctx, ev)
}
