// Package parser extracts structured facets from game release names.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedRelease holds everything recognised in a release name. Empty or zero
// fields were not present in the name.
type ParsedRelease struct {
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Version    string   `json:"version,omitempty"`
	Platform   string   `json:"platform,omitempty"`
	Group      string   `json:"group,omitempty"`
	Source     string   `json:"source,omitempty"`     // "gog", "steam", "scene", "repack", "iso", "web"
	Resolution int      `json:"resolution,omitempty"` // 720, 1080, 1440, 2160
	Modifier   string   `json:"modifier,omitempty"`   // "proper", "repack", "update", "crack"
	Revision   int      `json:"revision,omitempty"`   // 2 for PROPER/REPACK
	Real       int      `json:"real,omitempty"`
	Languages  []string `json:"languages,omitempty"` // raw language codes, "mul" for MULTi
}

var (
	versionPattern = regexp.MustCompile(`(?i)(?:^|[\.\s_\-])(v\d+(?:\.\d+)*[a-z]?|build[\.\s_]?\d+)(?:[\.\s_\-]|$)`)
	yearPattern    = regexp.MustCompile(`^(19|20)\d{2}$`)
	multiPattern   = regexp.MustCompile(`(?i)^multi(\d{1,2})?$`)
	groupPattern   = regexp.MustCompile(`-([A-Za-z0-9]+)$`)

	// Separator cleanup, same approach as filename parsing
	separatorPattern = regexp.MustCompile(`[\.\s_]+`)

	// Source patterns (order matters - more specific patterns first)
	sourcePatterns = []struct {
		source  string
		pattern *regexp.Regexp
	}{
		{"gog", regexp.MustCompile(`(?i)\bgog\b`)},
		{"steam", regexp.MustCompile(`(?i)\bsteam(rip)?\b`)},
		{"repack", regexp.MustCompile(`(?i)\b(fitgirl|dodi|elamigos|kaos|xatab)\b|\bfitgirl[\.\s_-]repack\b`)},
		{"scene", regexp.MustCompile(`(?i)-(codex|rune|tenoke|skidrow|plaza|flt|doge|razor1911|cpy|hoodlum|empress|reloaded|prophet|darksiders|tinyiso|p2p)$`)},
		{"iso", regexp.MustCompile(`(?i)\biso\b`)},
		{"web", regexp.MustCompile(`(?i)\b(web[\.\-]?dl|itch(io)?|epic)\b`)},
	}

	resolutionPatterns = []struct {
		resolution int
		pattern    *regexp.Regexp
	}{
		{2160, regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)},
		{1440, regexp.MustCompile(`(?i)\b1440p\b`)},
		{1080, regexp.MustCompile(`(?i)\b1080p\b`)},
		{720, regexp.MustCompile(`(?i)\b720p\b`)},
	}

	properPattern = regexp.MustCompile(`(?i)\bproper\b`)
	repackPattern = regexp.MustCompile(`(?i)\brepack\b`)
	realPattern   = regexp.MustCompile(`\bREAL\b`)
	updatePattern = regexp.MustCompile(`(?i)\b(update|patch|hotfix)\b`)
	crackPattern  = regexp.MustCompile(`(?i)\b(crack(ed)?|crackfix)(\.only)?\b`)

	platformPatterns = []struct {
		platform string
		pattern  *regexp.Regexp
	}{
		{"linux", regexp.MustCompile(`(?i)\blinux\b`)},
		{"macos", regexp.MustCompile(`(?i)\b(macos|osx|mac)\b`)},
		{"windows", regexp.MustCompile(`(?i)\b(win(dows)?|win64|x64)\b`)},
	}

	languageTokens = map[string]string{
		"eng": "en", "english": "en",
		"ger": "de", "german": "de", "deu": "de",
		"fr": "fr", "fre": "fr", "french": "fr",
		"spa": "es", "spanish": "es",
		"ita": "it", "italian": "it",
		"rus": "ru", "russian": "ru",
		"jpn": "ja", "japanese": "ja",
		"pol": "pl", "polish": "pl",
		"chs": "zh", "cht": "zh", "chinese": "zh",
		"kor": "ko", "korean": "ko",
		"por": "pt", "portuguese": "pt",
	}

	// Tokens that end the title portion of a release name.
	stopTokens = map[string]struct{}{
		"gog": {}, "steam": {}, "steamrip": {}, "iso": {}, "repack": {}, "proper": {},
		"update": {}, "patch": {}, "hotfix": {}, "crack": {}, "crackfix": {}, "real": {},
		"win": {}, "win64": {}, "windows": {}, "linux": {}, "macos": {}, "osx": {}, "x64": {},
		"720p": {}, "1080p": {}, "1440p": {}, "2160p": {}, "4k": {}, "uhd": {},
		"fitgirl": {}, "dodi": {}, "elamigos": {}, "kaos": {}, "xatab": {},
		"incl": {}, "dlc": {}, "deluxe": {}, "goty": {},
	}
)

// Parse parses a release name into structured data.
func Parse(name string) *ParsedRelease {
	name = strings.TrimSpace(name)
	parsed := &ParsedRelease{}
	if name == "" {
		return parsed
	}

	body := name
	if m := groupPattern.FindStringSubmatch(name); m != nil {
		parsed.Group = m[1]
		body = strings.TrimSuffix(name, m[0])
	}
	spaced := separatorPattern.ReplaceAllString(body, " ")

	titlePart := body
	if loc := versionPattern.FindStringSubmatchIndex(body); loc != nil {
		parsed.Version = strings.TrimPrefix(strings.ToLower(body[loc[2]:loc[3]]), "v")
		titlePart = body[:loc[0]]
	}
	parsed.Title = splitTitle(separatorPattern.ReplaceAllString(titlePart, " "))
	parsed.Year = findYear(spaced)

	for _, sp := range sourcePatterns {
		if sp.pattern.MatchString(name) {
			parsed.Source = sp.source
			break
		}
	}
	for _, rp := range resolutionPatterns {
		if rp.pattern.MatchString(spaced) {
			parsed.Resolution = rp.resolution
			break
		}
	}
	for _, pp := range platformPatterns {
		if pp.pattern.MatchString(spaced) {
			parsed.Platform = pp.platform
			break
		}
	}

	parseModifier(spaced, parsed)
	parsed.Languages = parseLanguages(spaced)

	return parsed
}

// splitTitle returns the tokens before the first year (after the first
// token), language or known tag.
func splitTitle(spaced string) string {
	tokens := tokenize(spaced)
	end := len(tokens)
	for i, tok := range tokens {
		if i == 0 {
			continue
		}
		lower := strings.ToLower(tok)
		if yearPattern.MatchString(tok) || multiPattern.MatchString(lower) || isStopToken(lower) {
			end = i
			break
		}
	}
	return CleanTitle(strings.Join(tokens[:end], " "))
}

func findYear(spaced string) int {
	for i, tok := range tokenize(spaced) {
		if i > 0 && yearPattern.MatchString(tok) {
			year, _ := strconv.Atoi(tok)
			return year
		}
	}
	return 0
}

// tokenize splits on whitespace, and additionally splits hyphenated tokens
// whose trailing parts are tags ("MULTi12-FitGirl") so hyphenated titles
// ("Half-Life") stay intact.
func tokenize(spaced string) []string {
	var tokens []string
	for _, tok := range strings.Fields(spaced) {
		parts := strings.Split(tok, "-")
		if len(parts) > 1 && hasTagPart(parts) {
			for _, p := range parts {
				if p != "" {
					tokens = append(tokens, p)
				}
			}
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func hasTagPart(parts []string) bool {
	for _, p := range parts {
		lower := strings.ToLower(p)
		if multiPattern.MatchString(lower) || isStopToken(lower) {
			return true
		}
	}
	return false
}

func isStopToken(lower string) bool {
	if _, ok := stopTokens[lower]; ok {
		return true
	}
	_, ok := languageTokens[lower]
	return ok
}

func parseModifier(spaced string, parsed *ParsedRelease) {
	switch {
	case properPattern.MatchString(spaced):
		parsed.Modifier = "proper"
		parsed.Revision = 2
	case repackPattern.MatchString(spaced) && parsed.Source != "repack":
		parsed.Modifier = "repack"
		parsed.Revision = 2
	case updatePattern.MatchString(spaced):
		parsed.Modifier = "update"
	case crackPattern.MatchString(spaced):
		parsed.Modifier = "crack"
	}
	parsed.Real = len(realPattern.FindAllString(spaced, -1))
}

func parseLanguages(spaced string) []string {
	var langs []string
	seen := make(map[string]struct{})
	add := func(code string) {
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		langs = append(langs, code)
	}

	tokens := tokenize(spaced)
	for i, tok := range tokens {
		if i == 0 {
			continue
		}
		lower := strings.ToLower(tok)
		if multiPattern.MatchString(lower) {
			add("mul")
			continue
		}
		if code, ok := languageTokens[lower]; ok {
			add(code)
		}
	}
	return langs
}

// CleanTitle collapses separators and trims a title.
func CleanTitle(title string) string {
	title = separatorPattern.ReplaceAllString(title, " ")
	title = strings.Trim(title, " -")
	return strings.TrimSpace(title)
}
