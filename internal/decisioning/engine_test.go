package decisioning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/library"
	"github.com/slipstream/gamearr/internal/testutil"
)

var evalNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func released(daysAgo int) *time.Time {
	d := evalNow.AddDate(0, 0, -daysAgo)
	return &d
}

func testTitle() *library.Title {
	return &library.Title{
		ID:                  1,
		Name:                "Some Game",
		Monitored:           true,
		MinimumAvailability: library.AvailabilityReleased,
		ReleaseDate:         released(30),
		OriginalLanguage:    "en",
		Tags:                []int64{1},
		Profile:             library.QualityProfile{Name: "Any", Cutoff: "gog"},
	}
}

func gbCandidate(gb float64) *candidate.Candidate {
	q := candidate.UnknownQuality()
	q.Source = candidate.Facet[candidate.Source]{Value: candidate.SourceScene, Confidence: candidate.ConfidenceTag}
	return &candidate.Candidate{
		IndexerID:   1,
		GUID:        "guid",
		Title:       "Some.Game-RUNE",
		Size:        int64(gb * 1e9),
		Protocol:    candidate.ProtocolTorrent,
		PublishDate: evalNow.Add(-48 * time.Hour),
		Seeders:     10,
		Quality:     q,
		Languages:   []candidate.Language{"en"},
		Match:       testTitle(),
	}
}

func sizeConfig(minGB, maxGB float64, negate bool) EvaluationConfig {
	return EvaluationConfig{Now: evalNow, Size: SizeLimits{MinGB: minGB, MaxGB: maxGB, Negate: negate}}
}

func reasons(d Decision) []candidate.Reason {
	out := make([]candidate.Reason, len(d.Rejections))
	for i, r := range d.Rejections {
		out[i] = r.Reason
	}
	return out
}

func TestEngine_Scenarios(t *testing.T) {
	engine := NewEngine(Dependencies{}, testutil.NopLogger())
	ctx := context.Background()
	cfg := sizeConfig(1, 10, false)

	t.Run("5GB within bounds is accepted", func(t *testing.T) {
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		assert.True(t, d.Accepted(), "rejections: %v", d.Rejections)
	})

	t.Run("unmonitored title in background sync", func(t *testing.T) {
		c := gbCandidate(5)
		c.Match.Monitored = false
		d := engine.Evaluate(ctx, c, nil, cfg)
		require.Len(t, d.Rejections, 1)
		assert.Equal(t, candidate.ReasonTitleNotMonitored, d.Rejections[0].Reason)
		assert.Equal(t, candidate.Permanent, d.Rejections[0].Type)
	})

	t.Run("unmonitored title in user search", func(t *testing.T) {
		c := gbCandidate(5)
		c.Match.Monitored = false
		d := engine.Evaluate(ctx, c, &SearchContext{TitleID: 1, UserInvoked: true}, cfg)
		assert.True(t, d.Accepted(), "rejections: %v", d.Rejections)
	})
}

func TestEngine_AcceptedIffNoRejections(t *testing.T) {
	engine := NewEngine(Dependencies{}, testutil.NopLogger())
	ctx := context.Background()

	for _, gb := range []float64{0.5, 1, 5, 10, 11} {
		d := engine.Evaluate(ctx, gbCandidate(gb), nil, sizeConfig(1, 10, false))
		assert.Equal(t, len(d.Rejections) == 0, d.Accepted())
		assert.Equal(t, d.Rejections, d.Candidate.Rejections)
	}
}

func TestEngine_RunsEveryRule(t *testing.T) {
	engine := NewEngine(Dependencies{}, testutil.NopLogger())
	c := gbCandidate(50)
	c.Match.Monitored = false
	c.Match.ReleaseDate = nil

	d := engine.Evaluate(context.Background(), c, nil, sizeConfig(1, 10, false))
	assert.Equal(t, []candidate.Reason{
		candidate.ReasonTitleNotMonitored,
		candidate.ReasonNotYetAvailable,
		candidate.ReasonSizeOutOfRange,
	}, reasons(d))
}

func TestEngine_PriorityOrderIsStable(t *testing.T) {
	var ran []string
	rule := func(name string, prio int) Rule {
		return Rule{Name: name, Priority: prio, Check: func(context.Context, *Evaluation) *candidate.Rejection {
			ran = append(ran, name)
			return nil
		}}
	}
	engine := NewEngineWithRules(Dependencies{}, testutil.NopLogger(),
		rule("late", 50), rule("first", 0), rule("second", 0), rule("middle", 10))

	assert.Equal(t, []string{"first", "second", "middle", "late"}, engine.Rules())
	engine.Evaluate(context.Background(), gbCandidate(5), nil, EvaluationConfig{})
	assert.Equal(t, []string{"first", "second", "middle", "late"}, ran)
}

func TestEngine_PanickingRuleIsSkipped(t *testing.T) {
	engine := NewEngineWithRules(Dependencies{}, testutil.NopLogger(),
		Rule{Name: "boom", Check: func(context.Context, *Evaluation) *candidate.Rejection { panic("bad data") }},
		Rule{Name: "size", Priority: 1, Check: checkSize},
	)

	d := engine.Evaluate(context.Background(), gbCandidate(50), nil, sizeConfig(1, 10, false))
	assert.Equal(t, []candidate.Reason{candidate.ReasonSizeOutOfRange}, reasons(d))

	d = engine.Evaluate(context.Background(), gbCandidate(5), nil, sizeConfig(1, 10, false))
	assert.True(t, d.Accepted())
}

func TestEngine_ReevaluationResetsRejections(t *testing.T) {
	engine := NewEngine(Dependencies{}, testutil.NopLogger())
	c := gbCandidate(50)

	d := engine.Evaluate(context.Background(), c, nil, sizeConfig(1, 10, false))
	require.False(t, d.Accepted())

	d = engine.Evaluate(context.Background(), c, nil, sizeConfig(1, 100, false))
	assert.True(t, d.Accepted())
	assert.Empty(t, c.Rejections)
}

type stubBlocklist struct{ blocked bool }

func (s stubBlocklist) IsBlocked(context.Context, int64, int64, string, string) (bool, error) {
	return s.blocked, nil
}

type stubHistory struct{ last *history.Event }

func (s stubHistory) MostRecentForTitle(context.Context, int64) (*history.Event, error) {
	if s.last == nil {
		return nil, history.ErrNotFound
	}
	return s.last, nil
}

type stubQueue struct {
	active  map[int64]bool
	tracked map[string]bool
}

func (s stubQueue) HasActiveDownload(titleID int64) bool { return s.active[titleID] }
func (s stubQueue) Tracks(downloadID string) bool        { return s.tracked[downloadID] }

type stubDelay struct {
	policy *delay.Policy
	calls  int
}

func (s *stubDelay) BestForTags(context.Context, []int64) (*delay.Policy, error) {
	s.calls++
	return s.policy, nil
}

func TestEngine_Dependencies(t *testing.T) {
	ctx := context.Background()
	cfg := EvaluationConfig{Now: evalNow}

	t.Run("blocklisted", func(t *testing.T) {
		engine := NewEngine(Dependencies{Blocklist: stubBlocklist{blocked: true}}, testutil.NopLogger())
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		assert.Equal(t, []candidate.Reason{candidate.ReasonBlocklisted}, reasons(d))
	})

	t.Run("already imported", func(t *testing.T) {
		deps := Dependencies{History: stubHistory{last: &history.Event{
			EventType:   history.EventTypeDownloadFolderImported,
			SourceTitle: "some.game-rune",
		}}}
		engine := NewEngine(deps, testutil.NopLogger())
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		assert.Equal(t, []candidate.Reason{candidate.ReasonAlreadyImported}, reasons(d))
	})

	t.Run("no history is not an error", func(t *testing.T) {
		engine := NewEngine(Dependencies{History: stubHistory{}}, testutil.NopLogger())
		assert.True(t, engine.Evaluate(ctx, gbCandidate(5), nil, cfg).Accepted())
	})

	t.Run("already in queue is temporary", func(t *testing.T) {
		engine := NewEngine(Dependencies{Queue: stubQueue{active: map[int64]bool{1: true}}}, testutil.NopLogger())
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		require.Len(t, d.Rejections, 1)
		assert.Equal(t, candidate.ReasonAlreadyInQueue, d.Rejections[0].Reason)
		assert.True(t, d.TemporarilyRejected())
	})

	t.Run("recent grab not yet tracked occupies the title", func(t *testing.T) {
		grab := &history.Event{
			TitleID: 1, EventType: history.EventTypeGrabbed, SourceTitle: "Some.Game-CODEX",
			DownloadID: "dl-1", Date: evalNow.Add(-time.Minute),
		}
		engine := NewEngine(Dependencies{History: stubHistory{last: grab}, Queue: stubQueue{}}, testutil.NopLogger())
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		require.Len(t, d.Rejections, 1)
		assert.Equal(t, candidate.ReasonAlreadyInQueue, d.Rejections[0].Reason)
		assert.True(t, d.TemporarilyRejected())

		tracked := stubQueue{tracked: map[string]bool{"dl-1": true}}
		engine = NewEngine(Dependencies{History: stubHistory{last: grab}, Queue: tracked}, testutil.NopLogger())
		assert.True(t, engine.Evaluate(ctx, gbCandidate(5), nil, cfg).Accepted(), "a tracked grab that is no longer active frees the title")

		stale := *grab
		stale.Date = evalNow.Add(-2 * time.Hour)
		engine = NewEngine(Dependencies{History: stubHistory{last: &stale}, Queue: stubQueue{}}, testutil.NopLogger())
		assert.True(t, engine.Evaluate(ctx, gbCandidate(5), nil, cfg).Accepted(), "a grab the client never picked up stops blocking")
	})

	t.Run("policy resolved once and carried on the decision", func(t *testing.T) {
		resolver := &stubDelay{policy: &delay.Policy{ID: 3, EnableTorrent: true, EnableUsenet: true}}
		engine := NewEngine(Dependencies{Delay: resolver}, testutil.NopLogger())
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		assert.True(t, d.Accepted())
		require.NotNil(t, d.Policy)
		assert.Equal(t, int64(3), d.Policy.ID)
		assert.Equal(t, 1, resolver.calls)
	})

	t.Run("protocol disabled", func(t *testing.T) {
		resolver := &stubDelay{policy: &delay.Policy{EnableTorrent: false, EnableUsenet: true}}
		engine := NewEngine(Dependencies{Delay: resolver}, testutil.NopLogger())
		d := engine.Evaluate(ctx, gbCandidate(5), nil, cfg)
		assert.Equal(t, []candidate.Reason{candidate.ReasonProtocolDisabled}, reasons(d))
	})
}
