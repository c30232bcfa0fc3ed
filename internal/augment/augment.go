// Package augment enriches candidates with quality, language and custom
// format facets from an ordered list of independent augmenters.
package augment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/metrics"
)

// DownloadClientInfo describes the download client item a candidate was
// reconstructed from, when augmenting tracked downloads.
type DownloadClientInfo struct {
	ClientName string
	ItemTitle  string
	Category   string
}

// Augmentation is one augmenter's opinion. Nil fields mean no opinion on
// that facet.
type Augmentation struct {
	Source     *candidate.Facet[candidate.Source]
	Resolution *candidate.Facet[candidate.Resolution]
	Modifier   *candidate.Facet[candidate.Modifier]
	Revision   *candidate.Facet[candidate.Revision]

	Languages    []candidate.Language
	LanguageConf candidate.Confidence

	CustomFormats []candidate.CustomFormat
	FormatConf    candidate.Confidence
	// HasFormats distinguishes an empty matched set from no opinion.
	HasFormats bool
}

// Augmenter proposes facet values for a candidate. Returning nil means the
// augmenter has nothing to contribute.
type Augmenter interface {
	Name() string
	Augment(ctx context.Context, c *candidate.Candidate, dc *DownloadClientInfo) (*Augmentation, error)
}

// Pipeline runs augmenters in a fixed order and merges their proposals.
type Pipeline struct {
	augmenters []Augmenter
	logger     zerolog.Logger
}

// NewPipeline creates a pipeline running augmenters in the given order.
func NewPipeline(logger zerolog.Logger, augmenters ...Augmenter) *Pipeline {
	return &Pipeline{
		augmenters: augmenters,
		logger:     logger.With().Str("component", "augment").Logger(),
	}
}

// NewDefaultPipeline creates the standard pipeline. formats may be nil.
func NewDefaultPipeline(logger zerolog.Logger, formats []*FormatDefinition) *Pipeline {
	return NewPipeline(logger,
		ReleaseNameQuality{},
		ReleaseNameLanguage{},
		IndexerFlags{},
		DownloadClientItem{},
		TitleOriginalLanguage{},
		DefaultQuality{},
		NewCustomFormats(formats),
	)
}

// Augment enriches c in place and returns it. A failing augmenter is logged
// and skipped; the remaining augmenters still run.
func (p *Pipeline) Augment(ctx context.Context, c *candidate.Candidate, dc *DownloadClientInfo) *candidate.Candidate {
	for _, a := range p.augmenters {
		aug, err := p.run(ctx, a, c, dc)
		if err != nil {
			metrics.AugmenterErrorsTotal.WithLabelValues(a.Name()).Inc()
			p.logger.Warn().Err(err).
				Str("augmenter", a.Name()).
				Str("release", c.Title).
				Msg("Augmenter failed, skipping")
			continue
		}
		if aug != nil {
			merge(c, aug)
		}
	}
	return c
}

func (p *Pipeline) run(ctx context.Context, a Augmenter, c *candidate.Candidate, dc *DownloadClientInfo) (aug *Augmentation, err error) {
	defer func() {
		if r := recover(); r != nil {
			aug = nil
			err = fmt.Errorf("augmenter panicked: %v", r)
		}
	}()
	return a.Augment(ctx, c, dc)
}

func merge(c *candidate.Candidate, aug *Augmentation) {
	mergeFacet(&c.Quality.Source, aug.Source)
	mergeFacet(&c.Quality.Resolution, aug.Resolution)
	mergeFacet(&c.Quality.Modifier, aug.Modifier)
	mergeFacet(&c.Quality.Revision, aug.Revision)

	if len(aug.Languages) > 0 && aug.LanguageConf >= c.LanguageConf {
		c.Languages = append([]candidate.Language(nil), aug.Languages...)
		c.LanguageConf = aug.LanguageConf
	}

	if aug.HasFormats && aug.FormatConf >= c.FormatConf {
		c.CustomFormats = append([]candidate.CustomFormat(nil), aug.CustomFormats...)
		c.FormatConf = aug.FormatConf
	}
}

// mergeFacet overwrites dst only when the proposal is at least as confident.
func mergeFacet[T comparable](dst *candidate.Facet[T], proposal *candidate.Facet[T]) {
	if proposal == nil {
		return
	}
	if proposal.Confidence >= dst.Confidence {
		*dst = *proposal
	}
}

func tag[T comparable](v T) *candidate.Facet[T] {
	return &candidate.Facet[T]{Value: v, Confidence: candidate.ConfidenceTag}
}

func fallback[T comparable](v T) *candidate.Facet[T] {
	return &candidate.Facet[T]{Value: v, Confidence: candidate.ConfidenceFallback}
}
