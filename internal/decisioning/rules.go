package decisioning

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/history"
	"github.com/slipstream/gamearr/internal/library"
)

// Rule priorities. Lower runs first.
const (
	PriorityIdentity = 0
	PriorityPolicy   = 10
	PriorityState    = 20
	PriorityRelease  = 30
	PriorityScore    = 40
	PriorityDelay    = 100
)

// DefaultRules returns the standard rule set in declaration order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "TitleMatch", Priority: PriorityIdentity, Check: checkTitleMatch},
		{Name: "UnknownTitle", Priority: PriorityIdentity, Check: checkUnknownTitle},
		{Name: "Monitored", Priority: PriorityPolicy, Check: checkMonitored},
		{Name: "Availability", Priority: PriorityPolicy, Check: checkAvailability},
		{Name: "Blocklist", Priority: PriorityState, Check: checkBlocklist},
		{Name: "AlreadyImported", Priority: PriorityState, Check: checkAlreadyImported},
		{Name: "AlreadyInQueue", Priority: PriorityState, Check: checkAlreadyInQueue},
		{Name: "ProtocolEnabled", Priority: PriorityRelease, Check: checkProtocolEnabled},
		{Name: "Size", Priority: PriorityRelease, Check: checkSize},
		{Name: "QualityAllowed", Priority: PriorityRelease, Check: checkQualityAllowed},
		{Name: "Language", Priority: PriorityRelease, Check: checkLanguage},
		{Name: "MinimumSeeders", Priority: PriorityRelease, Check: checkMinimumSeeders},
		{Name: "Retention", Priority: PriorityRelease, Check: checkRetention},
		{Name: "ReleaseRestrictions", Priority: PriorityRelease, Check: checkReleaseRestrictions},
		{Name: "CustomFormatScore", Priority: PriorityScore, Check: checkCustomFormatScore},
		{Name: "Delay", Priority: PriorityDelay, Check: checkDelay},
	}
}

func reject(reason candidate.Reason, t candidate.RejectionType, format string, args ...any) *candidate.Rejection {
	return &candidate.Rejection{Reason: reason, Type: t, Message: fmt.Sprintf(format, args...)}
}

func checkTitleMatch(_ context.Context, ev *Evaluation) *candidate.Rejection {
	sc := ev.Search
	if sc == nil || sc.TitleID == 0 {
		return nil
	}
	if ev.Candidate.TitleID() != sc.TitleID {
		return reject(candidate.ReasonWrongTitle, candidate.Permanent,
			"Release matched title %d, searched for %d", ev.Candidate.TitleID(), sc.TitleID)
	}
	return nil
}

func checkUnknownTitle(_ context.Context, ev *Evaluation) *candidate.Rejection {
	if ev.Search != nil && ev.Search.TitleID != 0 {
		return nil
	}
	if ev.Candidate.Match == nil {
		return reject(candidate.ReasonUnknownTitle, candidate.Permanent, "Release did not match any library title")
	}
	return nil
}

func checkMonitored(_ context.Context, ev *Evaluation) *candidate.Rejection {
	if ev.Search.userInvoked() || ev.Candidate.Match == nil {
		return nil
	}
	if !ev.Candidate.Match.Monitored {
		return reject(candidate.ReasonTitleNotMonitored, candidate.Permanent, "%s is not monitored", ev.Candidate.Match.Name)
	}
	return nil
}

func checkAvailability(_ context.Context, ev *Evaluation) *candidate.Rejection {
	title := ev.Candidate.Match
	if ev.Search.userInvoked() || title == nil {
		return nil
	}
	from := title.AvailableFrom()
	if from == nil {
		return reject(candidate.ReasonNotYetAvailable, candidate.Permanent,
			"%s has no %s date", title.Name, availabilityLabel(title.MinimumAvailability))
	}
	availableAt := from.AddDate(0, 0, ev.Config.AvailabilityDelayDays)
	if ev.Config.now().Before(availableAt) {
		return reject(candidate.ReasonNotYetAvailable, candidate.Permanent,
			"%s will be available from %s", title.Name, availableAt.Format(time.DateOnly))
	}
	return nil
}

func availabilityLabel(m library.MinimumAvailability) string {
	switch m {
	case library.AvailabilityAnnounced:
		return "announcement"
	case library.AvailabilityEarlyAccess:
		return "early access"
	default:
		return "release"
	}
}

func checkBlocklist(ctx context.Context, ev *Evaluation) *candidate.Rejection {
	bl := ev.engine.deps.Blocklist
	c := ev.Candidate
	if bl == nil || c.Match == nil {
		return nil
	}
	blocked, err := bl.IsBlocked(ctx, c.Match.ID, c.IndexerID, c.GUID, c.Title)
	if err != nil {
		ev.engine.logger.Warn().Err(err).Str("release", c.Title).Msg("Blocklist lookup failed")
		return nil
	}
	if blocked {
		return reject(candidate.ReasonBlocklisted, candidate.Permanent, "Release is blocklisted")
	}
	return nil
}

func checkAlreadyImported(ctx context.Context, ev *Evaluation) *candidate.Rejection {
	last := ev.LastEvent(ctx)
	if last == nil {
		return nil
	}
	if last.EventType == history.EventTypeDownloadFolderImported && strings.EqualFold(last.SourceTitle, ev.Candidate.Title) {
		return reject(candidate.ReasonAlreadyImported, candidate.Permanent, "Release was already imported")
	}
	return nil
}

// grabSettleWindow bounds how long a grab the tracker has not yet seen keeps
// its title occupied.
const grabSettleWindow = time.Hour

// checkAlreadyInQueue rejects while the title has a live download, and also
// while its latest grab has not reached the tracker yet.
func checkAlreadyInQueue(ctx context.Context, ev *Evaluation) *candidate.Rejection {
	q := ev.engine.deps.Queue
	c := ev.Candidate
	if c.Match == nil {
		return nil
	}
	if q != nil && q.HasActiveDownload(c.Match.ID) {
		return reject(candidate.ReasonAlreadyInQueue, candidate.Temporary, "A download for %s is already in the queue", c.Match.Name)
	}

	last := ev.LastEvent(ctx)
	if last == nil || last.EventType != history.EventTypeGrabbed {
		return nil
	}
	if ev.Config.now().Sub(last.Date) >= grabSettleWindow {
		return nil
	}
	if q != nil && last.DownloadID != "" && q.Tracks(last.DownloadID) {
		return nil
	}
	return reject(candidate.ReasonAlreadyInQueue, candidate.Temporary,
		"%s was grabbed at %s and is not tracked yet", last.SourceTitle, last.Date.Format(time.RFC3339))
}

func checkProtocolEnabled(ctx context.Context, ev *Evaluation) *candidate.Rejection {
	policy := ev.Policy(ctx)
	if policy == nil {
		return nil
	}
	if !policy.Allows(string(ev.Candidate.Protocol)) {
		return reject(candidate.ReasonProtocolDisabled, candidate.Permanent,
			"%s is disabled by the delay policy", ev.Candidate.Protocol)
	}
	return nil
}

func checkSize(_ context.Context, ev *Evaluation) *candidate.Rejection {
	limits := ev.Config.Size
	size := ev.Candidate.Size
	if (limits.MinGB == 0 && limits.MaxGB == 0) || size == 0 {
		return nil
	}
	if SizeWithin(size, limits) {
		return nil
	}
	return reject(candidate.ReasonSizeOutOfRange, candidate.Permanent,
		"Size %.2f GB is outside %s", float64(size)/1e9, describeLimits(limits))
}

// SizeWithin applies the size bounds: min exclusive, max inclusive, zero max
// unbounded, and Negate inverting the result.
func SizeWithin(size int64, limits SizeLimits) bool {
	bytes := float64(size)
	ok := bytes > limits.MinGB*1e9
	if limits.MaxGB > 0 {
		ok = ok && bytes <= limits.MaxGB*1e9
	}
	if limits.Negate {
		return !ok
	}
	return ok
}

func describeLimits(limits SizeLimits) string {
	bounds := fmt.Sprintf("(%.2f, %.2f] GB", limits.MinGB, limits.MaxGB)
	if limits.MaxGB == 0 {
		bounds = fmt.Sprintf("(%.2f, unbounded) GB", limits.MinGB)
	}
	if limits.Negate {
		return "the complement of " + bounds
	}
	return bounds
}

func checkQualityAllowed(_ context.Context, ev *Evaluation) *candidate.Rejection {
	c := ev.Candidate
	if c.Match == nil {
		return nil
	}
	source := string(c.Quality.Source.Value)
	if !c.Match.Profile.Allows(source) {
		return reject(candidate.ReasonQualityNotWanted, candidate.Permanent,
			"Quality %s is not allowed by profile %s", c.Quality.Name(), c.Match.Profile.Name)
	}
	return nil
}

func checkLanguage(_ context.Context, ev *Evaluation) *candidate.Rejection {
	target := ev.Config.Language
	c := ev.Candidate
	if target == nil {
		return nil
	}

	want := target.Language
	if target.Original {
		if c.Match == nil || c.Match.OriginalLanguage == "" {
			return nil
		}
		want = candidate.Language(strings.ToLower(c.Match.OriginalLanguage))
	}
	if want == candidate.LanguageUnknown {
		return nil
	}

	matched := c.HasLanguage(want) || c.HasLanguage(candidate.LanguageMulti)
	if target.Negate {
		matched = !matched
	}
	if !matched {
		verb := "missing"
		if target.Negate {
			verb = "excluded"
		}
		return reject(candidate.ReasonLanguageMismatch, candidate.Permanent, "Language %s is %s", want, verb)
	}
	return nil
}

func checkMinimumSeeders(_ context.Context, ev *Evaluation) *candidate.Rejection {
	c := ev.Candidate
	minSeeders := ev.Config.MinimumSeeders
	if c.Protocol != candidate.ProtocolTorrent || minSeeders <= 0 {
		return nil
	}
	if c.Seeders < minSeeders {
		return reject(candidate.ReasonMinimumSeeders, candidate.Temporary, "Not enough seeders: %d < %d", c.Seeders, minSeeders)
	}
	return nil
}

func checkRetention(_ context.Context, ev *Evaluation) *candidate.Rejection {
	c := ev.Candidate
	days := ev.Config.RetentionDays
	if c.Protocol != candidate.ProtocolUsenet || days <= 0 || c.PublishDate.IsZero() {
		return nil
	}
	age := c.Age(ev.Config.now())
	if age > time.Duration(days)*24*time.Hour {
		return reject(candidate.ReasonRetentionExceeded, candidate.Permanent,
			"Older than retention: %d days > %d", int(age.Hours()/24), days)
	}
	return nil
}

func checkReleaseRestrictions(_ context.Context, ev *Evaluation) *candidate.Rejection {
	title := ev.Candidate.Title
	if len(ev.Config.RequiredTerms) > 0 {
		found := false
		for _, term := range ev.Config.RequiredTerms {
			if termMatches(term, title) {
				found = true
				break
			}
		}
		if !found {
			return reject(candidate.ReasonRequiredTermMissing, candidate.Permanent,
				"Missing required terms: %s", strings.Join(ev.Config.RequiredTerms, ", "))
		}
	}
	for _, term := range ev.Config.IgnoredTerms {
		if termMatches(term, title) {
			return reject(candidate.ReasonIgnoredTermPresent, candidate.Permanent, "Contains ignored term: %s", term)
		}
	}
	return nil
}

// termPatterns caches compiled slash-wrapped terms. Invalid expressions are
// cached as nil.
var termPatterns sync.Map // term -> *regexp.Regexp

func termPattern(term string) *regexp.Regexp {
	if v, ok := termPatterns.Load(term); ok {
		return v.(*regexp.Regexp)
	}
	re, err := regexp.Compile("(?i)" + term[1:len(term)-1])
	if err != nil {
		re = nil
	}
	termPatterns.Store(term, re)
	return re
}

// termMatches matches a case-insensitive substring, or a regular expression
// when the term is wrapped in slashes. An invalid expression never matches.
func termMatches(term, title string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	if len(term) > 2 && strings.HasPrefix(term, "/") && strings.HasSuffix(term, "/") {
		re := termPattern(term)
		return re != nil && re.MatchString(title)
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(term))
}

func checkCustomFormatScore(_ context.Context, ev *Evaluation) *candidate.Rejection {
	c := ev.Candidate
	threshold := ev.Config.MinimumFormatScore
	if c.Match != nil && c.Match.Profile.MinFormatScore > threshold {
		threshold = c.Match.Profile.MinFormatScore
	}
	if threshold == 0 {
		return nil
	}
	if score := c.CustomFormatScore(); score < threshold {
		return reject(candidate.ReasonCustomFormatScore, candidate.Permanent,
			"Custom format score %d is below minimum %d", score, threshold)
	}
	return nil
}

func checkDelay(ctx context.Context, ev *Evaluation) *candidate.Rejection {
	c := ev.Candidate
	if ev.Search.userInvoked() || c.Match == nil {
		return nil
	}
	policy := ev.Policy(ctx)
	if policy == nil {
		return nil
	}
	wait := policy.DelayFor(string(c.Protocol))
	if wait <= 0 {
		return nil
	}
	if policy.BypassIfHighestQuality && atCutoff(c) && string(c.Protocol) == policy.PreferredProtocol {
		return nil
	}
	age := c.Age(ev.Config.now())
	if age >= wait {
		return nil
	}
	return reject(candidate.ReasonDelayed, candidate.Temporary,
		"Waiting for a better release, %s of %s delay remaining", (wait - age).Round(time.Minute), wait)
}

// atCutoff reports whether the candidate's source meets the profile cutoff.
func atCutoff(c *candidate.Candidate) bool {
	cutoff := candidate.Source(c.Match.Profile.Cutoff)
	if cutoff == "" {
		return false
	}
	return c.Quality.Source.Value.Weight() >= cutoff.Weight()
}
