package candidate

import "fmt"

// Confidence records how a facet value was obtained. Higher values win when
// augmenters disagree.
type Confidence int

const (
	ConfidenceUnknown Confidence = iota
	// ConfidenceFallback marks values that were inferred or guessed.
	ConfidenceFallback
	// ConfidenceTag marks values explicitly present in the release name.
	ConfidenceTag
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceFallback:
		return "fallback"
	case ConfidenceTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Source is the distribution origin of a game release.
type Source string

const (
	SourceUnknown Source = "unknown"
	SourceISO     Source = "iso"
	SourceScene   Source = "scene"
	SourceWeb     Source = "web"
	SourceRepack  Source = "repack"
	SourceSteam   Source = "steam"
	SourceGOG     Source = "gog"
)

// sourceWeights orders sources from least to most preferred.
var sourceWeights = map[Source]int{
	SourceUnknown: 0,
	SourceRepack:  1,
	SourceWeb:     2,
	SourceISO:     3,
	SourceScene:   4,
	SourceSteam:   5,
	SourceGOG:     6,
}

// Weight returns the relative preference of the source.
func (s Source) Weight() int {
	return sourceWeights[s]
}

// Resolution is the video resolution of bundled cinematic assets, when tagged.
type Resolution int

const (
	ResolutionUnknown Resolution = 0
	Resolution720p    Resolution = 720
	Resolution1080p   Resolution = 1080
	Resolution1440p   Resolution = 1440
	Resolution2160p   Resolution = 2160
)

// Modifier qualifies a release within its source.
type Modifier string

const (
	ModifierNone   Modifier = "none"
	ModifierProper Modifier = "proper"
	ModifierRepack Modifier = "repack"
	ModifierUpdate Modifier = "update"
	ModifierCrack  Modifier = "crack"
)

// Revision tracks re-releases of the same content.
type Revision struct {
	Version int `json:"version"`
	Real    int `json:"real"`
}

// Compare returns -1, 0 or 1 comparing r with o.
func (r Revision) Compare(o Revision) int {
	switch {
	case r.Real != o.Real:
		if r.Real > o.Real {
			return 1
		}
		return -1
	case r.Version != o.Version:
		if r.Version > o.Version {
			return 1
		}
		return -1
	default:
		return 0
	}
}

// Facet pairs a detected value with the confidence it was detected at.
type Facet[T comparable] struct {
	Value      T          `json:"value"`
	Confidence Confidence `json:"confidence"`
}

// Quality is the detected quality of a release, one confidence per facet.
type Quality struct {
	Source     Facet[Source]     `json:"source"`
	Resolution Facet[Resolution] `json:"resolution"`
	Modifier   Facet[Modifier]   `json:"modifier"`
	Revision   Facet[Revision]   `json:"revision"`
}

// UnknownQuality returns a quality with every facet unset.
func UnknownQuality() Quality {
	return Quality{
		Source:   Facet[Source]{Value: SourceUnknown},
		Modifier: Facet[Modifier]{Value: ModifierNone},
		Revision: Facet[Revision]{Value: Revision{Version: 1}},
	}
}

// Name returns a display name such as "gog-1080p".
func (q Quality) Name() string {
	if q.Resolution.Value == ResolutionUnknown {
		return string(q.Source.Value)
	}
	return fmt.Sprintf("%s-%dp", q.Source.Value, q.Resolution.Value)
}

// Compare orders qualities by source weight, then resolution, then revision.
func (q Quality) Compare(o Quality) int {
	if a, b := q.Source.Value.Weight(), o.Source.Value.Weight(); a != b {
		if a > b {
			return 1
		}
		return -1
	}
	if q.Resolution.Value != o.Resolution.Value {
		if q.Resolution.Value > o.Resolution.Value {
			return 1
		}
		return -1
	}
	return q.Revision.Value.Compare(o.Revision.Value)
}
