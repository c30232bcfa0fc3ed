package candidate

// Reason is the closed set of rejection reason codes.
type Reason string

const (
	ReasonWrongTitle          Reason = "wrongTitle"
	ReasonUnknownTitle        Reason = "unknownTitle"
	ReasonTitleNotMonitored   Reason = "titleNotMonitored"
	ReasonNotYetAvailable     Reason = "notYetAvailable"
	ReasonSizeOutOfRange      Reason = "sizeOutOfRange"
	ReasonLanguageMismatch    Reason = "languageMismatch"
	ReasonQualityNotWanted    Reason = "qualityNotWanted"
	ReasonBlocklisted         Reason = "blocklisted"
	ReasonAlreadyImported     Reason = "alreadyImported"
	ReasonAlreadyInQueue      Reason = "alreadyInQueue"
	ReasonDelayed             Reason = "delayed"
	ReasonProtocolDisabled    Reason = "protocolDisabled"
	ReasonMinimumSeeders      Reason = "minimumSeeders"
	ReasonRetentionExceeded   Reason = "retentionExceeded"
	ReasonRequiredTermMissing Reason = "requiredTermMissing"
	ReasonIgnoredTermPresent  Reason = "ignoredTermPresent"
	ReasonCustomFormatScore   Reason = "customFormatScore"
)

// RejectionType tells whether re-evaluating the same candidate without new
// information could change the verdict.
type RejectionType string

const (
	Permanent RejectionType = "permanent"
	Temporary RejectionType = "temporary"
)

// Rejection is one reason a candidate was not accepted.
type Rejection struct {
	Reason  Reason        `json:"reason"`
	Message string        `json:"message"`
	Type    RejectionType `json:"type"`
}

// OnlyTemporary reports whether every rejection is temporary and at least one
// exists.
func OnlyTemporary(rejections []Rejection) bool {
	if len(rejections) == 0 {
		return false
	}
	for _, r := range rejections {
		if r.Type != Temporary {
			return false
		}
	}
	return true
}

// HasReason reports whether reason is present in rejections.
func HasReason(rejections []Rejection, reason Reason) bool {
	for _, r := range rejections {
		if r.Reason == reason {
			return true
		}
	}
	return false
}
