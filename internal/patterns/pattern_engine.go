package patterns

import (
	"math"
	"sort"
	"strings"

	"bugx/internal/logging"
)

// Scoring weights for AnalyzeError. A raw score above MaxConfidence is
// clamped.
const (
	WeightMessageKeyword = 25.0
	WeightStackKeyword   = 10.0
	WeightCodeKeyword    = 10.0
	WeightMatcher        = 30.0
	WeightContextClue    = 15.0

	MaxConfidence        = 100.0
	DefaultMinConfidence = 10.0

	maxExcerptLength = 120
)

// Engine matches reported errors against a Library. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	library       *Library
	minConfidence float64
	logger        logging.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithMinConfidence sets the confidence below which matches are dropped
func WithMinConfidence(minConfidence float64) Option {
	return func(e *Engine) {
		e.minConfidence = minConfidence
	}
}

// WithLogger sets the engine logger
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a recognition engine over library. A nil library means
// the builtin catalog.
func NewEngine(library *Library, opts ...Option) *Engine {
	if library == nil {
		library = BuiltinLibrary()
	}
	engine := &Engine{
		library:       library,
		minConfidence: DefaultMinConfidence,
		logger:        logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Library returns the catalog the engine matches against
func (e *Engine) Library() *Library {
	return e.library
}

// AnalyzeError scores every signature against the reported error and returns
// the matches ordered by confidence, highest first. Equal confidences keep
// catalog order. No match yields an empty slice.
func (e *Engine) AnalyzeError(message, stackTrace, codeContext, fileName string) []PatternMatch {
	msg := strings.ToLower(message)
	stack := strings.ToLower(stackTrace)
	code := strings.ToLower(codeContext)
	file := strings.ToLower(fileName)
	errorText := message + "\n" + stackTrace

	matches := make([]PatternMatch, 0)
	for i := range e.library.signatures {
		sig := &e.library.signatures[i]

		var score float64
		var keywords, clues, matchers []string
		hits := 0

		for _, kw := range sig.Keywords {
			needle := strings.ToLower(kw)
			inError := false
			if strings.Contains(msg, needle) {
				score += WeightMessageKeyword
				inError = true
			}
			if stack != "" && strings.Contains(stack, needle) {
				score += WeightStackKeyword
				inError = true
			}
			inCode := code != "" && strings.Contains(code, needle)
			if inCode {
				score += WeightCodeKeyword
			}
			if inError || inCode {
				keywords = append(keywords, kw)
			}
			if inError {
				hits++
			}
		}

		for j, re := range sig.matchers {
			if re.MatchString(errorText) {
				score += WeightMatcher
				matchers = append(matchers, sig.Matchers[j])
				hits++
			}
		}

		// Code alone never identifies an error; the message or stack must hit.
		if hits == 0 {
			continue
		}

		for _, clue := range sig.ContextClues {
			needle := strings.ToLower(clue)
			if (code != "" && strings.Contains(code, needle)) || (file != "" && strings.Contains(file, needle)) {
				score += WeightContextClue
				clues = append(clues, clue)
			}
		}

		confidence := math.Min(score, MaxConfidence)
		if confidence < e.minConfidence {
			continue
		}

		matches = append(matches, PatternMatch{
			Signature:       *sig,
			Confidence:      confidence,
			MatchedKeywords: keywords,
			MatchedClues:    clues,
			MatchedMatchers: matchers,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	e.logger.Debug("Error analyzed", "matches", len(matches), "file", fileName)
	return matches
}

// DetectAntiPatterns scans code for anti-pattern rules. Each rule appears at
// most once, carrying its occurrence count; results are ordered by severity,
// most severe first, then catalog order.
func (e *Engine) DetectAntiPatterns(codeContext, fileName string) []DetectedAntiPattern {
	detected := make([]DetectedAntiPattern, 0)
	if strings.TrimSpace(codeContext) == "" {
		return detected
	}

	for i := range e.library.antiPatterns {
		rule := &e.library.antiPatterns[i]
		if !rule.appliesTo(fileName) {
			continue
		}
		if rule.unless != nil && rule.unless.MatchString(codeContext) {
			continue
		}

		locations := rule.pattern.FindAllStringIndex(codeContext, -1)
		if len(locations) == 0 {
			continue
		}

		detected = append(detected, DetectedAntiPattern{
			AntiPattern: rule.AntiPattern,
			Occurrences: len(locations),
			Excerpt:     excerpt(codeContext[locations[0][0]:locations[0][1]]),
		})
	}

	sort.SliceStable(detected, func(i, j int) bool {
		return detected[i].Severity > detected[j].Severity
	})

	return detected
}

// HasCritical reports whether any detected anti-pattern is critical
func HasCritical(detected []DetectedAntiPattern) bool {
	for _, d := range detected {
		if d.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxExcerptLength {
		return s[:maxExcerptLength] + "..."
	}
	return s
}
