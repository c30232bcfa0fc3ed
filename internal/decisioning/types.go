package decisioning

import (
	"time"

	"github.com/slipstream/gamearr/internal/candidate"
	"github.com/slipstream/gamearr/internal/delay"
)

// SearchContext describes a targeted search. A nil *SearchContext means a
// passive background sync.
type SearchContext struct {
	TitleID int64 `json:"titleId"`
	// UserInvoked searches bypass the monitored and availability checks.
	UserInvoked bool `json:"userInvoked"`
}

func (sc *SearchContext) userInvoked() bool {
	return sc != nil && sc.UserInvoked
}

// SizeLimits bounds release size in GB (1e9 bytes). The minimum is exclusive
// and the maximum inclusive; a zero maximum means unbounded.
type SizeLimits struct {
	MinGB  float64 `json:"minGb"`
	MaxGB  float64 `json:"maxGb"`
	Negate bool    `json:"negate"`
}

// LanguageTarget selects the language a release must carry.
type LanguageTarget struct {
	// Original compares against the matched title's original language and
	// ignores Language.
	Original bool               `json:"original"`
	Language candidate.Language `json:"language,omitempty"`
	Negate   bool               `json:"negate"`
}

// EvaluationConfig carries every setting a rule reads. Rules never consult
// global configuration.
type EvaluationConfig struct {
	Now                   time.Time       `json:"now"`
	AvailabilityDelayDays int             `json:"availabilityDelayDays"`
	Size                  SizeLimits      `json:"size"`
	Language              *LanguageTarget `json:"language,omitempty"`
	MinimumSeeders        int             `json:"minimumSeeders"`
	RetentionDays         int             `json:"retentionDays"`
	RequiredTerms         []string        `json:"requiredTerms,omitempty"`
	IgnoredTerms          []string        `json:"ignoredTerms,omitempty"`
	MinimumFormatScore    int             `json:"minimumFormatScore"`
}

func (cfg EvaluationConfig) now() time.Time {
	if cfg.Now.IsZero() {
		return time.Now()
	}
	return cfg.Now
}

// Decision is the verdict for one candidate.
type Decision struct {
	Candidate  *candidate.Candidate  `json:"candidate"`
	Rejections []candidate.Rejection `json:"rejections"`
	// Policy is the delay policy resolved during evaluation, nil when the
	// candidate matched no title or resolution failed.
	Policy *delay.Policy `json:"-"`
}

// Accepted reports whether the decision carries no rejections.
func (d Decision) Accepted() bool {
	return len(d.Rejections) == 0
}

// OnlyDelayed reports whether the sole obstacle to a grab is a delay hold.
func (d Decision) OnlyDelayed() bool {
	if len(d.Rejections) == 0 {
		return false
	}
	for _, r := range d.Rejections {
		if r.Reason != candidate.ReasonDelayed {
			return false
		}
	}
	return true
}

// TemporarilyRejected reports whether every rejection may clear on its own.
func (d Decision) TemporarilyRejected() bool {
	return candidate.OnlyTemporary(d.Rejections)
}
