package augment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/library"
	"github.com/slipstream/gamearr/internal/testutil"
)

type stubAugmenter struct {
	name string
	aug  *Augmentation
	err  error
	boom bool
}

func (s stubAugmenter) Name() string { return s.name }

func (s stubAugmenter) Augment(context.Context, *candidate.Candidate, *DownloadClientInfo) (*Augmentation, error) {
	if s.boom {
		panic("boom")
	}
	return s.aug, s.err
}

func newCandidate(title string) *candidate.Candidate {
	return &candidate.Candidate{
		IndexerID: 1,
		GUID:      "guid-1",
		Title:     title,
		Protocol:  candidate.ProtocolTorrent,
		Quality:   candidate.UnknownQuality(),
	}
}

func TestPipeline_DefaultAugmenters(t *testing.T) {
	p := NewDefaultPipeline(testutil.NopLogger(), nil)
	c := newCandidate("Baldurs.Gate.3.v4.1.1.GOG")
	c.Match = &library.Title{ID: 7, OriginalLanguage: "en"}

	p.Augment(context.Background(), c, nil)

	assert.Equal(t, candidate.SourceGOG, c.Quality.Source.Value)
	assert.Equal(t, candidate.ConfidenceTag, c.Quality.Source.Confidence)
	assert.Equal(t, candidate.ModifierNone, c.Quality.Modifier.Value)
	assert.Equal(t, candidate.ConfidenceFallback, c.Quality.Modifier.Confidence)
	assert.Equal(t, candidate.Revision{Version: 1}, c.Quality.Revision.Value)
	assert.Equal(t, []candidate.Language{"en"}, c.Languages)
	assert.Equal(t, candidate.ConfidenceFallback, c.LanguageConf)
}

func TestPipeline_TagBeatsFallbackInAnyOrder(t *testing.T) {
	tagged := stubAugmenter{name: "tagged", aug: &Augmentation{Source: tag(candidate.SourceScene)}}
	guessed := stubAugmenter{name: "guessed", aug: &Augmentation{Source: fallback(candidate.SourceISO)}}

	orders := map[string][]Augmenter{
		"tag first":      {tagged, guessed},
		"fallback first": {guessed, tagged},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			c := newCandidate("Some.Game")
			NewPipeline(testutil.NopLogger(), order...).Augment(context.Background(), c, nil)

			assert.Equal(t, candidate.SourceScene, c.Quality.Source.Value)
			assert.Equal(t, candidate.ConfidenceTag, c.Quality.Source.Confidence)
		})
	}
}

func TestPipeline_EqualConfidenceLaterWins(t *testing.T) {
	first := stubAugmenter{name: "first", aug: &Augmentation{Source: fallback(candidate.SourceISO)}}
	second := stubAugmenter{name: "second", aug: &Augmentation{Source: fallback(candidate.SourceWeb)}}

	c := newCandidate("Some.Game")
	NewPipeline(testutil.NopLogger(), first, second).Augment(context.Background(), c, nil)

	assert.Equal(t, candidate.SourceWeb, c.Quality.Source.Value)
}

func TestPipeline_FailingAugmenterIsSkipped(t *testing.T) {
	tests := []struct {
		name   string
		broken Augmenter
	}{
		{"error", stubAugmenter{name: "broken", err: errors.New("lookup failed")}},
		{"panic", stubAugmenter{name: "broken", boom: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCandidate("Some.Game.GOG")
			p := NewPipeline(testutil.NewTestLogger(t), tt.broken, ReleaseNameQuality{})

			require.NotPanics(t, func() { p.Augment(context.Background(), c, nil) })
			assert.Equal(t, candidate.SourceGOG, c.Quality.Source.Value)
		})
	}
}

func TestReleaseNameLanguage_Normalizes(t *testing.T) {
	c := newCandidate("Some.Game.MULTi.GERMAN-RUNE")

	aug, err := ReleaseNameLanguage{}.Augment(context.Background(), c, nil)

	require.NoError(t, err)
	require.NotNil(t, aug)
	assert.Equal(t, []candidate.Language{candidate.LanguageMulti, "de"}, aug.Languages)
	assert.Equal(t, candidate.ConfidenceTag, aug.LanguageConf)
}

func TestTitleOriginalLanguage(t *testing.T) {
	t.Run("no match", func(t *testing.T) {
		aug, err := TitleOriginalLanguage{}.Augment(context.Background(), newCandidate("Some.Game"), nil)
		require.NoError(t, err)
		assert.Nil(t, aug)
	})

	t.Run("languages already detected", func(t *testing.T) {
		c := newCandidate("Some.Game")
		c.Match = &library.Title{OriginalLanguage: "ja"}
		c.Languages = []candidate.Language{"en"}

		aug, err := TitleOriginalLanguage{}.Augment(context.Background(), c, nil)
		require.NoError(t, err)
		assert.Nil(t, aug)
	})

	t.Run("three letter code", func(t *testing.T) {
		c := newCandidate("Some.Game")
		c.Match = &library.Title{OriginalLanguage: "jpn"}

		aug, err := TitleOriginalLanguage{}.Augment(context.Background(), c, nil)
		require.NoError(t, err)
		require.NotNil(t, aug)
		assert.Equal(t, []candidate.Language{"ja"}, aug.Languages)
	})
}

func TestIndexerFlags_SceneFallback(t *testing.T) {
	c := newCandidate("Some.Game.GOG")
	c.Flags = candidate.FlagScene | candidate.FlagFreeleech

	NewDefaultPipeline(testutil.NopLogger(), nil).Augment(context.Background(), c, nil)
	assert.Equal(t, candidate.SourceGOG, c.Quality.Source.Value, "tagged source must survive the flag fallback")

	untagged := newCandidate("Some.Game")
	untagged.Flags = candidate.FlagScene
	NewDefaultPipeline(testutil.NopLogger(), nil).Augment(context.Background(), untagged, nil)
	assert.Equal(t, candidate.SourceScene, untagged.Quality.Source.Value)
	assert.Equal(t, candidate.ConfidenceFallback, untagged.Quality.Source.Confidence)
}

func TestDownloadClientItem(t *testing.T) {
	c := newCandidate("Some Game")
	dc := &DownloadClientInfo{ClientName: "qbit", ItemTitle: "Some.Game.PROPER.GERMAN-CODEX"}

	NewDefaultPipeline(testutil.NopLogger(), nil).Augment(context.Background(), c, dc)

	assert.Equal(t, candidate.SourceScene, c.Quality.Source.Value)
	assert.Equal(t, candidate.ModifierProper, c.Quality.Modifier.Value)
	assert.Equal(t, 2, c.Quality.Revision.Value.Version)
	assert.Equal(t, []candidate.Language{"de"}, c.Languages)
}

func TestDefaultQuality_UsenetSource(t *testing.T) {
	c := newCandidate("Some.Game")
	c.Protocol = candidate.ProtocolUsenet

	aug, err := DefaultQuality{}.Augment(context.Background(), c, nil)

	require.NoError(t, err)
	require.NotNil(t, aug.Source)
	assert.Equal(t, candidate.SourceScene, aug.Source.Value)
	assert.Equal(t, candidate.ConfidenceFallback, aug.Source.Confidence)
}
