package candidate

// Language is a lower-case BCP 47 base language code ("en", "de"), or
// LanguageMulti for releases that bundle several languages.
type Language string

const (
	LanguageUnknown Language = ""
	LanguageMulti   Language = "mul"
)
