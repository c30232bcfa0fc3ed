package augment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slipstream/gamearr/internal/candidate"
)

// Specification fields a custom format can match against.
const (
	FieldTitle    = "title"
	FieldSource   = "source"
	FieldLanguage = "language"
	FieldFlag     = "flag"
)

var ErrInvalidFormat = errors.New("invalid custom format")

// Specification is one condition of a custom format.
type Specification struct {
	Name     string `yaml:"name" json:"name"`
	Field    string `yaml:"field" json:"field"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Negate   bool   `yaml:"negate" json:"negate"`
	Required bool   `yaml:"required" json:"required"`

	re *regexp.Regexp
}

// FormatDefinition is a user-defined custom format.
type FormatDefinition struct {
	ID             int64           `yaml:"id" json:"id"`
	Name           string          `yaml:"name" json:"name"`
	Score          int             `yaml:"score" json:"score"`
	Specifications []Specification `yaml:"specifications" json:"specifications"`
}

type formatsFile struct {
	CustomFormats []*FormatDefinition `yaml:"customFormats"`
}

// LoadFormats reads custom format definitions from a YAML file.
func LoadFormats(path string) ([]*FormatDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom formats: %w", err)
	}
	return ParseFormats(data)
}

// ParseFormats decodes and compiles custom format definitions.
func ParseFormats(data []byte) ([]*FormatDefinition, error) {
	var file formatsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse custom formats: %w", err)
	}
	for _, f := range file.CustomFormats {
		if err := f.Compile(); err != nil {
			return nil, err
		}
	}
	return file.CustomFormats, nil
}

// Compile validates the definition and compiles its patterns.
func (f *FormatDefinition) Compile() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFormat)
	}
	if len(f.Specifications) == 0 {
		return fmt.Errorf("%w: %q has no specifications", ErrInvalidFormat, f.Name)
	}
	for i := range f.Specifications {
		spec := &f.Specifications[i]
		if spec.Field == "" {
			spec.Field = FieldTitle
		}
		switch spec.Field {
		case FieldTitle, FieldSource, FieldLanguage, FieldFlag:
		default:
			return fmt.Errorf("%w: %q has unknown field %q", ErrInvalidFormat, f.Name, spec.Field)
		}
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return fmt.Errorf("%w: %q pattern %q: %v", ErrInvalidFormat, f.Name, spec.Pattern, err)
		}
		spec.re = re
	}
	return nil
}

// Matches reports whether the candidate satisfies the format: every required
// specification matches, and at least one optional specification matches
// when any exist.
func (f *FormatDefinition) Matches(c *candidate.Candidate) bool {
	optional, optionalHit := 0, false
	for i := range f.Specifications {
		spec := &f.Specifications[i]
		hit := spec.matches(c)
		if spec.Required {
			if !hit {
				return false
			}
			continue
		}
		optional++
		if hit {
			optionalHit = true
		}
	}
	return optional == 0 || optionalHit
}

func (s *Specification) matches(c *candidate.Candidate) bool {
	if s.re == nil {
		return false
	}
	hit := false
	for _, v := range fieldValues(s.Field, c) {
		if s.re.MatchString(v) {
			hit = true
			break
		}
	}
	if s.Negate {
		return !hit
	}
	return hit
}

func fieldValues(field string, c *candidate.Candidate) []string {
	switch field {
	case FieldSource:
		return []string{string(c.Quality.Source.Value)}
	case FieldLanguage:
		values := make([]string, 0, len(c.Languages))
		for _, l := range c.Languages {
			values = append(values, string(l))
		}
		return values
	case FieldFlag:
		return flagNames(c.Flags)
	default:
		return []string{c.Title}
	}
}

func flagNames(flags candidate.IndexerFlags) []string {
	var names []string
	for _, f := range []struct {
		flag candidate.IndexerFlags
		name string
	}{
		{candidate.FlagFreeleech, "freeleech"},
		{candidate.FlagInternal, "internal"},
		{candidate.FlagScene, "scene"},
		{candidate.FlagNuked, "nuked"},
	} {
		if flags.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return names
}

// CustomFormats proposes the set of matching custom formats. It runs last so
// that it sees every other augmenter's facets.
type CustomFormats struct {
	formats []*FormatDefinition
}

// NewCustomFormats creates the augmenter over compiled definitions.
func NewCustomFormats(formats []*FormatDefinition) *CustomFormats {
	return &CustomFormats{formats: formats}
}

func (*CustomFormats) Name() string { return "CustomFormats" }

func (a *CustomFormats) Augment(_ context.Context, c *candidate.Candidate, _ *DownloadClientInfo) (*Augmentation, error) {
	if len(a.formats) == 0 {
		return nil, nil
	}
	matched := make([]candidate.CustomFormat, 0)
	for _, f := range a.formats {
		if f.Matches(c) {
			matched = append(matched, candidate.CustomFormat{ID: f.ID, Name: f.Name, Score: f.Score})
		}
	}
	return &Augmentation{
		CustomFormats: matched,
		FormatConf:    candidate.ConfidenceTag,
		HasFormats:    true,
	}, nil
}

// FormatNames returns the names of the given formats, for logging.
func FormatNames(formats []candidate.CustomFormat) string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}
