package augment

import (
	"context"
	"strings"

	"golang.org/x/text/language"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/parser"
)

// ReleaseNameQuality proposes quality facets explicitly tagged in the
// release name.
type ReleaseNameQuality struct{}

func (ReleaseNameQuality) Name() string { return "ReleaseNameQuality" }

func (ReleaseNameQuality) Augment(_ context.Context, c *candidate.Candidate, _ *DownloadClientInfo) (*Augmentation, error) {
	return qualityFromName(c.Title), nil
}

// ReleaseNameLanguage proposes languages tagged in the release name.
type ReleaseNameLanguage struct{}

func (ReleaseNameLanguage) Name() string { return "ReleaseNameLanguage" }

func (ReleaseNameLanguage) Augment(_ context.Context, c *candidate.Candidate, _ *DownloadClientInfo) (*Augmentation, error) {
	return languagesFromName(c.Title), nil
}

// IndexerFlags proposes facets implied by indexer markers.
type IndexerFlags struct{}

func (IndexerFlags) Name() string { return "IndexerFlags" }

func (IndexerFlags) Augment(_ context.Context, c *candidate.Candidate, _ *DownloadClientInfo) (*Augmentation, error) {
	if !c.Flags.Has(candidate.FlagScene) {
		return nil, nil
	}
	return &Augmentation{Source: fallback(candidate.SourceScene)}, nil
}

// DownloadClientItem parses the name the download client reports, which may
// carry tags the indexer title lacked.
type DownloadClientItem struct{}

func (DownloadClientItem) Name() string { return "DownloadClientItem" }

func (DownloadClientItem) Augment(_ context.Context, _ *candidate.Candidate, dc *DownloadClientInfo) (*Augmentation, error) {
	if dc == nil || dc.ItemTitle == "" {
		return nil, nil
	}
	aug := qualityFromName(dc.ItemTitle)
	if langs := languagesFromName(dc.ItemTitle); langs != nil {
		if aug == nil {
			aug = &Augmentation{}
		}
		aug.Languages = langs.Languages
		aug.LanguageConf = langs.LanguageConf
	}
	return aug, nil
}

// TitleOriginalLanguage assumes the matched title's original language when
// nothing else identified one.
type TitleOriginalLanguage struct{}

func (TitleOriginalLanguage) Name() string { return "TitleOriginalLanguage" }

func (TitleOriginalLanguage) Augment(_ context.Context, c *candidate.Candidate, _ *DownloadClientInfo) (*Augmentation, error) {
	if len(c.Languages) > 0 || c.Match == nil || c.Match.OriginalLanguage == "" {
		return nil, nil
	}
	lang, ok := normalizeLanguage(c.Match.OriginalLanguage)
	if !ok {
		return nil, nil
	}
	return &Augmentation{
		Languages:    []candidate.Language{lang},
		LanguageConf: candidate.ConfidenceFallback,
	}, nil
}

// DefaultQuality fills facets still unknown after the name-based augmenters.
type DefaultQuality struct{}

func (DefaultQuality) Name() string { return "DefaultQuality" }

func (DefaultQuality) Augment(_ context.Context, c *candidate.Candidate, _ *DownloadClientInfo) (*Augmentation, error) {
	aug := &Augmentation{}
	// Usenet game posts are overwhelmingly scene releases.
	if c.Quality.Source.Confidence == candidate.ConfidenceUnknown && c.Protocol == candidate.ProtocolUsenet {
		aug.Source = fallback(candidate.SourceScene)
	}
	if c.Quality.Modifier.Confidence == candidate.ConfidenceUnknown {
		aug.Modifier = fallback(candidate.ModifierNone)
	}
	if c.Quality.Revision.Confidence == candidate.ConfidenceUnknown {
		aug.Revision = fallback(candidate.Revision{Version: 1})
	}
	return aug, nil
}

func qualityFromName(name string) *Augmentation {
	parsed := parser.Parse(name)
	if parsed == nil {
		return nil
	}

	aug := &Augmentation{}
	found := false
	if parsed.Source != "" {
		aug.Source = tag(candidate.Source(parsed.Source))
		found = true
	}
	if parsed.Resolution != 0 {
		aug.Resolution = tag(candidate.Resolution(parsed.Resolution))
		found = true
	}
	if parsed.Modifier != "" {
		aug.Modifier = tag(candidate.Modifier(parsed.Modifier))
		found = true
	}
	if parsed.Revision > 0 || parsed.Real > 0 {
		version := parsed.Revision
		if version == 0 {
			version = 1
		}
		aug.Revision = tag(candidate.Revision{Version: version, Real: parsed.Real})
		found = true
	}
	if !found {
		return nil
	}
	return aug
}

func languagesFromName(name string) *Augmentation {
	parsed := parser.Parse(name)
	if parsed == nil || len(parsed.Languages) == 0 {
		return nil
	}

	var langs []candidate.Language
	seen := make(map[candidate.Language]struct{})
	for _, raw := range parsed.Languages {
		lang, ok := normalizeLanguage(raw)
		if !ok {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		langs = append(langs, lang)
	}
	if len(langs) == 0 {
		return nil
	}
	return &Augmentation{Languages: langs, LanguageConf: candidate.ConfidenceTag}
}

// normalizeLanguage maps any BCP 47 or ISO 639 code to its base language.
func normalizeLanguage(raw string) (candidate.Language, bool) {
	t, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return candidate.LanguageUnknown, false
	}
	base, conf := t.Base()
	if conf == language.No {
		return candidate.LanguageUnknown, false
	}
	return candidate.Language(base.String()), true
}
