// Package patterns holds the catalog of known error signatures and
// anti-pattern rules, and the engine that matches reported errors and code
// against them.
package patterns

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Severity orders anti-patterns from least to most harmful
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Weight is the contribution of one anti-pattern to a complexity estimate
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

// MarshalText encodes the severity by name for JSON and YAML
func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity maps a name to a Severity
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// PatternSignature describes the textual markers of a known error category
type PatternSignature struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Category       string   `json:"category" yaml:"category"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
	Matchers       []string `json:"matchers" yaml:"matchers"`
	ContextClues   []string `json:"context_clues" yaml:"context_clues"`
	TemplateKey    string   `json:"template_key" yaml:"template_key"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`

	matchers []*regexp.Regexp
}

func (s *PatternSignature) compile() error {
	if s.ID == "" {
		return fmt.Errorf("pattern signature without id")
	}
	s.matchers = make([]*regexp.Regexp, 0, len(s.Matchers))
	for _, expr := range s.Matchers {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("signature %s: invalid matcher %q: %w", s.ID, expr, err)
		}
		s.matchers = append(s.matchers, re)
	}
	return nil
}

// PatternMatch is one signature scored against a reported error
type PatternMatch struct {
	Signature       PatternSignature `json:"signature"`
	Confidence      float64          `json:"confidence"`
	MatchedKeywords []string         `json:"matched_keywords"`
	MatchedClues    []string         `json:"matched_clues"`
	MatchedMatchers []string         `json:"matched_matchers,omitempty"`
}

// AntiPattern is a code construct known to cause defects
type AntiPattern struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Severity Severity `json:"severity" yaml:"severity"`
	Impact   string   `json:"impact" yaml:"impact"`
	Solution string   `json:"solution" yaml:"solution"`
}

// AntiPatternRule is an AntiPattern plus how to find it in code. Unless
// suppresses the rule when it matches anywhere in the code; FileGlobs limit
// the rule to matching file names.
type AntiPatternRule struct {
	AntiPattern `yaml:",inline"`
	Pattern     string   `json:"pattern" yaml:"pattern"`
	Unless      string   `json:"unless,omitempty" yaml:"unless"`
	FileGlobs   []string `json:"file_globs,omitempty" yaml:"file_globs"`

	pattern *regexp.Regexp
	unless  *regexp.Regexp
	globs   []glob.Glob
}

func (r *AntiPatternRule) compile() error {
	if r.ID == "" {
		return fmt.Errorf("anti-pattern rule without id")
	}
	if _, ok := severityNames[r.Severity]; !ok {
		return fmt.Errorf("anti-pattern %s: invalid severity", r.ID)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("anti-pattern %s: invalid pattern: %w", r.ID, err)
	}
	r.pattern = re

	r.unless = nil
	if r.Unless != "" {
		if r.unless, err = regexp.Compile(r.Unless); err != nil {
			return fmt.Errorf("anti-pattern %s: invalid unless pattern: %w", r.ID, err)
		}
	}

	r.globs = make([]glob.Glob, 0, len(r.FileGlobs))
	for _, g := range r.FileGlobs {
		compiled, err := glob.Compile(g)
		if err != nil {
			return fmt.Errorf("anti-pattern %s: invalid file glob %q: %w", r.ID, g, err)
		}
		r.globs = append(r.globs, compiled)
	}
	return nil
}

// appliesTo reports whether the rule covers fileName. Unknown file names
// are always covered.
func (r *AntiPatternRule) appliesTo(fileName string) bool {
	if len(r.globs) == 0 || fileName == "" {
		return true
	}
	for _, g := range r.globs {
		if g.Match(fileName) {
			return true
		}
	}
	return false
}

// DetectedAntiPattern is one rule found in a piece of code
type DetectedAntiPattern struct {
	AntiPattern
	Occurrences int    `json:"occurrences"`
	Excerpt     string `json:"excerpt"`
}
