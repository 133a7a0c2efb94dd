// Package analysis classifies a recognised error by complexity and estimates
// the effort needed to resolve it.
package analysis

import (
	"strings"

	"bugx/internal/patterns"
)

// Complexity buckets an error by how much investigation it needs
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Approach keys returned in Result.Approach
const (
	ApproachApplyTemplate       = "apply-template"
	ApproachGuidedInvestigation = "guided-investigation"
	ApproachSystematicDebugging = "systematic-debugging"
	UnknownCategory             = "unknown"
	UnknownErrorType            = "unknown"
)

// Thresholds are the fixed constants the classification uses
type Thresholds struct {
	LowConfidence      float64
	MediumConfidence   float64
	HighSeverityScore  int
	SomeSeverityScore  int
	DeepStackFrames    int
	SimpleMaxPoints    int
	ModerateMaxPoints  int
	SimpleMinutes      int
	ModerateMinutes    int
	ComplexMinutes     int
	MinutesPerCritical int
}

// DefaultThresholds are the thresholds used unless overridden
var DefaultThresholds = Thresholds{
	LowConfidence:      40,
	MediumConfidence:   70,
	HighSeverityScore:  5,
	SomeSeverityScore:  2,
	DeepStackFrames:    10,
	SimpleMaxPoints:    1,
	ModerateMaxPoints:  3,
	SimpleMinutes:      15,
	ModerateMinutes:    45,
	ComplexMinutes:     120,
	MinutesPerCritical: 10,
}

// Input is everything the analyzer looks at
type Input struct {
	Matches      []patterns.PatternMatch
	AntiPatterns []patterns.DetectedAntiPattern
	ErrorMessage string
	StackTrace   string
}

// Result is the classification of one error
type Result struct {
	Complexity       Complexity `json:"complexity"`
	ComplexityPoints int        `json:"complexity_points"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Approach         string     `json:"approach"`
	ApproachDetail   string     `json:"approach_detail"`
	ErrorCategory    string     `json:"error_category"`
	ErrorType        string     `json:"error_type"`
	TopConfidence    float64    `json:"top_confidence"`
	SeverityScore    int        `json:"severity_score"`
	CriticalCount    int        `json:"critical_count"`
}

// Analyzer is deterministic and stateless
type Analyzer struct {
	thresholds Thresholds
}

// NewAnalyzer creates an analyzer with the default thresholds
func NewAnalyzer() *Analyzer {
	return &Analyzer{thresholds: DefaultThresholds}
}

// NewAnalyzerWithThresholds creates an analyzer with custom thresholds
func NewAnalyzerWithThresholds(t Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// Analyze classifies the error described by in
func (a *Analyzer) Analyze(in Input) Result {
	t := a.thresholds
	result := Result{
		ErrorCategory: UnknownCategory,
		ErrorType:     UnknownErrorType,
	}

	points := 0
	if len(in.Matches) == 0 {
		points += 2
	} else {
		top := in.Matches[0]
		result.TopConfidence = top.Confidence
		result.ErrorCategory = top.Signature.Category
		if top.Signature.TemplateKey != "" {
			result.ErrorType = top.Signature.TemplateKey
		}
		switch {
		case top.Confidence < t.LowConfidence:
			points += 2
		case top.Confidence < t.MediumConfidence:
			points++
		}
	}

	for _, ap := range in.AntiPatterns {
		result.SeverityScore += ap.Severity.Weight()
		if ap.Severity == patterns.SeverityCritical {
			result.CriticalCount++
		}
	}
	switch {
	case result.SeverityScore >= t.HighSeverityScore:
		points += 2
	case result.SeverityScore >= t.SomeSeverityScore:
		points++
	}

	if StackDepth(in.StackTrace) > t.DeepStackFrames {
		points++
	}

	result.ComplexityPoints = points
	switch {
	case points <= t.SimpleMaxPoints:
		result.Complexity = ComplexitySimple
		result.EstimatedMinutes = t.SimpleMinutes
		result.Approach = ApproachApplyTemplate
		result.ApproachDetail = "Apply the matching fix template directly and verify the reproduction."
	case points <= t.ModerateMaxPoints:
		result.Complexity = ComplexityModerate
		result.EstimatedMinutes = t.ModerateMinutes
		result.Approach = ApproachGuidedInvestigation
		result.ApproachDetail = "Reproduce the error, confirm the suspected pattern, then apply the template with adjustments."
	default:
		result.Complexity = ComplexityComplex
		result.EstimatedMinutes = t.ComplexMinutes
		result.Approach = ApproachSystematicDebugging
		result.ApproachDetail = "Isolate the failure with a minimal reproduction, bisect recent changes and address anti-patterns before fixing."
	}
	result.EstimatedMinutes += result.CriticalCount * t.MinutesPerCritical

	return result
}

// StackDepth counts frame lines in a JavaScript ("at fn (file:1:2)") or Go
// ("\t/path/file.go:12 +0x1d") stack trace
func StackDepth(stack string) int {
	depth := 0
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "at ") || strings.Contains(line, ".go:") {
			depth++
		}
	}
	return depth
}
