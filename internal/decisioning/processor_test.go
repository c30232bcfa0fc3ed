package decisioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
	"github.com/slipstream/gamearr/internal/downloader"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/pending"
	"github.com/slipstream/gamearr/internal/testutil"
)

type fakeGrabber struct {
	fail    map[string]error
	grabbed []string
}

func (f *fakeGrabber) Grab(_ context.Context, c *candidate.Candidate, _ bool) (*downloader.GrabResult, error) {
	if err := f.fail[c.GUID]; err != nil {
		return nil, err
	}
	f.grabbed = append(f.grabbed, c.GUID)
	return &downloader.GrabResult{DownloadID: "dl-" + c.GUID}, nil
}

type fakePending struct {
	added   []*pending.Release
	cleared []int64
}

func (f *fakePending) Add(_ context.Context, c *candidate.Candidate, policy *delay.Policy, reason pending.Reason) (*pending.Release, error) {
	rel := &pending.Release{ID: int64(len(f.added) + 1), TitleID: c.TitleID(), Candidate: c, Policy: policy, Reason: reason}
	f.added = append(f.added, rel)
	return rel, nil
}

func (f *fakePending) RemoveForTitle(_ context.Context, titleID int64) error {
	f.cleared = append(f.cleared, titleID)
	return nil
}

func decision(guid string, titleID int64, source candidate.Source, rejections ...candidate.Rejection) Decision {
	c := gbCandidate(5)
	c.GUID = guid
	c.Match.ID = titleID
	c.Quality.Source.Value = source
	return Decision{Candidate: c, Rejections: rejections}
}

var delayed = candidate.Rejection{Reason: candidate.ReasonDelayed, Type: candidate.Temporary}

func TestProcessor_GrabsBestPerTitle(t *testing.T) {
	grabber := &fakeGrabber{}
	store := &fakePending{}
	p := NewProcessor(grabber, store, nil, testutil.NopLogger())

	result := p.Process(context.Background(), []Decision{
		decision("scene", 1, candidate.SourceScene),
		decision("gog", 1, candidate.SourceGOG),
		decision("steam", 2, candidate.SourceSteam),
		decision("bad", 2, candidate.SourceGOG, candidate.Rejection{Reason: candidate.ReasonSizeOutOfRange, Type: candidate.Permanent}),
	}, false)

	assert.Equal(t, []string{"gog", "steam"}, grabber.grabbed)
	assert.Len(t, result.Grabbed, 2)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, []int64{1, 2}, store.cleared)
	assert.Empty(t, store.added)
}

func TestProcessor_DelayedGoesPending(t *testing.T) {
	store := &fakePending{}
	p := NewProcessor(&fakeGrabber{}, store, nil, testutil.NopLogger())

	d := decision("scene", 1, candidate.SourceScene, delayed)
	d.Policy = &delay.Policy{ID: 4}
	result := p.Process(context.Background(), []Decision{d}, false)

	require.Len(t, result.Pending, 1)
	assert.Equal(t, pending.ReasonDelay, result.Pending[0].Reason)
	assert.Equal(t, int64(4), result.Pending[0].Policy.ID)
}

func TestProcessor_AcceptedBeatsDelayed(t *testing.T) {
	grabber := &fakeGrabber{}
	store := &fakePending{}
	p := NewProcessor(grabber, store, nil, testutil.NopLogger())

	p.Process(context.Background(), []Decision{
		decision("held", 1, candidate.SourceGOG, delayed),
		decision("now", 1, candidate.SourceScene),
	}, false)

	assert.Equal(t, []string{"now"}, grabber.grabbed)
	assert.Empty(t, store.added)
}

func TestProcessor_ClientUnavailableGoesPending(t *testing.T) {
	grabber := &fakeGrabber{fail: map[string]error{
		"gog": errors.Join(downloader.ErrClientUnavailable, errors.New("connection refused")),
	}}
	store := &fakePending{}
	p := NewProcessor(grabber, store, nil, testutil.NopLogger())

	result := p.Process(context.Background(), []Decision{
		decision("gog", 1, candidate.SourceGOG),
		decision("scene", 1, candidate.SourceScene),
	}, false)

	assert.Empty(t, grabber.grabbed)
	require.Len(t, result.Pending, 1)
	assert.Equal(t, "gog", result.Pending[0].Candidate.GUID)
	assert.Equal(t, pending.ReasonDownloadClientUnavailable, result.Pending[0].Reason)
}

func TestProcessor_OtherFailureTriesNext(t *testing.T) {
	grabber := &fakeGrabber{fail: map[string]error{"gog": errors.New("bad torrent")}}
	p := NewProcessor(grabber, &fakePending{}, nil, testutil.NopLogger())

	p.Process(context.Background(), []Decision{
		decision("gog", 1, candidate.SourceGOG),
		decision("scene", 1, candidate.SourceScene),
	}, false)

	assert.Equal(t, []string{"scene"}, grabber.grabbed)
}

func TestProcessor_SkipsLockedTitle(t *testing.T) {
	grabber := &fakeGrabber{}
	lock := NewTitleLock()
	unlock, ok := lock.TryLock(1)
	require.True(t, ok)
	p := NewProcessor(grabber, &fakePending{}, lock, testutil.NopLogger())

	p.Process(context.Background(), []Decision{decision("gog", 1, candidate.SourceGOG)}, false)
	assert.Empty(t, grabber.grabbed)

	unlock()
	p.Process(context.Background(), []Decision{decision("gog", 1, candidate.SourceGOG)}, false)
	assert.Equal(t, []string{"gog"}, grabber.grabbed)
}

// grabLedger records grabs the way the history ledger does, without any
// tracker ever seeing them.
type grabLedger struct {
	mu      sync.Mutex
	last    map[int64]*history.Event
	grabbed []string
}

func (l *grabLedger) MostRecentForTitle(_ context.Context, titleID int64) (*history.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev, ok := l.last[titleID]; ok {
		return ev, nil
	}
	return nil, history.ErrNotFound
}

func (l *grabLedger) Grab(_ context.Context, c *candidate.Candidate, _ bool) (*downloader.GrabResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grabbed = append(l.grabbed, c.GUID)
	l.last[c.TitleID()] = &history.Event{
		TitleID: c.TitleID(), EventType: history.EventTypeGrabbed, SourceTitle: c.Title,
		DownloadID: "dl-" + c.GUID, Date: evalNow,
	}
	return &downloader.GrabResult{DownloadID: "dl-" + c.GUID}, nil
}

func TestProcessor_NoSecondGrabBeforeTrackerPolls(t *testing.T) {
	ctx := context.Background()
	ledger := &grabLedger{last: make(map[int64]*history.Event)}
	engine := NewEngine(Dependencies{History: ledger, Queue: stubQueue{}}, testutil.NopLogger())
	p := NewProcessor(ledger, &fakePending{}, nil, testutil.NopLogger())
	cfg := EvaluationConfig{Now: evalNow.Add(time.Minute)}

	for _, guid := range []string{"a", "b"} {
		c := gbCandidate(5)
		c.GUID = guid
		c.Title = "Some.Game." + guid + "-RUNE"
		p.Process(ctx, engine.EvaluateAll(ctx, []*candidate.Candidate{c}, nil, cfg), false)
	}

	assert.Equal(t, []string{"a"}, ledger.grabbed)
}
