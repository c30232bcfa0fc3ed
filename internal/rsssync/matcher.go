package rsssync

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/gamearr/internal/library"
	"github.com/slipstream/gamearr/internal/parser"
)

// TitleFinder looks up library titles.
type TitleFinder interface {
	Get(ctx context.Context, id int64) (*library.Title, error)
	FindByCleanName(ctx context.Context, name string) ([]*library.Title, error)
}

// Matcher resolves release names to library titles. Lookups are cached for
// the lifetime of the matcher, which is one sync cycle.
type Matcher struct {
	titles TitleFinder
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string][]*library.Title
}

// NewMatcher creates a matcher backed by the title repository.
func NewMatcher(titles TitleFinder, logger zerolog.Logger) *Matcher {
	return &Matcher{
		titles: titles,
		logger: logger,
		cache:  make(map[string][]*library.Title),
	}
}

// Match returns the title a release name refers to, or nil.
func (m *Matcher) Match(ctx context.Context, releaseName string) *library.Title {
	parsed := parser.Parse(releaseName)
	if parsed.Title == "" {
		return nil
	}

	found, err := m.lookup(ctx, parsed.Title)
	if err != nil {
		m.logger.Warn().Err(err).Str("release", releaseName).Msg("failed to look up title")
		return nil
	}
	return pickTitle(found, parsed.Year)
}

// MatchTarget reports whether a release name refers to the given title.
func (m *Matcher) MatchTarget(releaseName string, target *library.Title) bool {
	parsed := parser.Parse(releaseName)
	if parsed.Title == "" || library.CleanName(parsed.Title) != target.CleanName {
		return false
	}
	return parsed.Year == 0 || target.Year == 0 || parsed.Year == target.Year
}

func (m *Matcher) lookup(ctx context.Context, title string) ([]*library.Title, error) {
	clean := library.CleanName(title)

	m.mu.Lock()
	defer m.mu.Unlock()
	if found, ok := m.cache[clean]; ok {
		return found, nil
	}
	found, err := m.titles.FindByCleanName(ctx, title)
	if err != nil {
		return nil, err
	}
	m.cache[clean] = found
	return found, nil
}

// pickTitle prefers the title whose year matches the release. A release
// without a year matches only an unambiguous title.
func pickTitle(titles []*library.Title, year int) *library.Title {
	if len(titles) == 0 {
		return nil
	}
	if year == 0 {
		if len(titles) == 1 {
			return titles[0]
		}
		return nil
	}
	for _, t := range titles {
		if t.Year == year {
			return t
		}
	}
	if len(titles) == 1 && titles[0].Year == 0 {
		return titles[0]
	}
	return nil
}
