package candidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slipstream/gamearr/internal/library"
)

func withSource(s Source) Quality {
	q := UnknownQuality()
	q.Source = Facet[Source]{Value: s, Confidence: ConfidenceTag}
	return q
}

func TestCompare(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b *Candidate
		want int
	}{
		{
			name: "source weight wins",
			a:    &Candidate{Quality: withSource(SourceGOG)},
			b:    &Candidate{Quality: withSource(SourceRepack), CustomFormats: []CustomFormat{{Score: 100}}},
			want: 1,
		},
		{
			name: "format score breaks quality tie",
			a:    &Candidate{Quality: withSource(SourceScene), CustomFormats: []CustomFormat{{Score: -10}}},
			b:    &Candidate{Quality: withSource(SourceScene)},
			want: -1,
		},
		{
			name: "newer release preferred",
			a:    &Candidate{Quality: UnknownQuality(), PublishDate: now},
			b:    &Candidate{Quality: UnknownQuality(), PublishDate: now.Add(-time.Hour)},
			want: 1,
		},
		{
			name: "known date beats missing date",
			a:    &Candidate{Quality: UnknownQuality()},
			b:    &Candidate{Quality: UnknownQuality(), PublishDate: now},
			want: -1,
		},
		{
			name: "larger release last tiebreak",
			a:    &Candidate{Quality: UnknownQuality(), Size: 10},
			b:    &Candidate{Quality: UnknownQuality(), Size: 20},
			want: -1,
		},
		{
			name: "equal",
			a:    &Candidate{Quality: UnknownQuality(), Size: 10},
			b:    &Candidate{Quality: UnknownQuality(), Size: 10},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a), "compare is antisymmetric")
		})
	}
}

func TestQualityCompare_Revision(t *testing.T) {
	a := withSource(SourceGOG)
	b := withSource(SourceGOG)
	b.Revision.Value = Revision{Version: 2}
	assert.Equal(t, -1, a.Compare(b))

	b.Revision.Value = Revision{Version: 1, Real: 1}
	assert.Equal(t, -1, a.Compare(b), "real outranks version")
}

func TestQualityName(t *testing.T) {
	q := withSource(SourceGOG)
	assert.Equal(t, "gog", q.Name())
	q.Resolution.Value = Resolution1080p
	assert.Equal(t, "gog-1080p", q.Name())
}

func TestCandidate_Accessors(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &Candidate{
		IndexerID:     3,
		GUID:          "abc",
		PublishDate:   now.Add(-2 * time.Hour),
		Languages:     []Language{"en", LanguageMulti},
		CustomFormats: []CustomFormat{{Score: 5}, {Score: 7}},
		Flags:         FlagFreeleech | FlagScene,
	}

	assert.Equal(t, "3:abc", c.Key())
	assert.Zero(t, c.TitleID())
	assert.Equal(t, 2*time.Hour, c.Age(now))
	assert.Zero(t, (&Candidate{}).Age(now))
	assert.True(t, c.HasLanguage(LanguageMulti))
	assert.False(t, c.HasLanguage("de"))
	assert.Equal(t, 12, c.CustomFormatScore())
	assert.True(t, c.Flags.Has(FlagScene))
	assert.False(t, c.Flags.Has(FlagScene|FlagNuked))

	c.Match = &library.Title{ID: 9}
	assert.Equal(t, int64(9), c.TitleID())
}

func TestCandidate_CloneIsIndependent(t *testing.T) {
	c := &Candidate{Languages: []Language{"en"}}
	cp := c.Clone()
	cp.Languages[0] = "fr"
	cp.Reject(Rejection{Reason: ReasonBlocklisted, Type: Permanent})

	assert.Equal(t, Language("en"), c.Languages[0])
	assert.Empty(t, c.Rejections)
	assert.Len(t, cp.Rejections, 1)
}

func TestOnlyTemporary(t *testing.T) {
	assert.False(t, OnlyTemporary(nil))
	assert.True(t, OnlyTemporary([]Rejection{{Type: Temporary}, {Type: Temporary}}))
	assert.False(t, OnlyTemporary([]Rejection{{Type: Temporary}, {Type: Permanent}}))
	assert.True(t, HasReason([]Rejection{{Reason: ReasonDelayed}}, ReasonDelayed))
}
