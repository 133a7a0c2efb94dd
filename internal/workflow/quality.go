package workflow

import (
	"math"

	"bugx/internal/analysis"
)

// Quality score weights
const (
	QualityBase             = 50.0
	QualityTemplateBonus    = 20.0
	QualityPerPrevention    = 5.0
	QualityMaxPrevention    = 20.0
	QualityConfidenceFactor = 0.15
	QualityMaxConfidence    = 15.0
	QualitySimpleBonus      = 10.0
	QualityModerateBonus    = 5.0
	QualityMax              = 100.0
)

// QualityInput are the factors of the quality score
type QualityInput struct {
	TemplateApplied bool
	PreventionCount int
	Confidence      float64
	Complexity      analysis.Complexity
}

// QualityScore approximates how thorough a fix is, in [0,100]
func QualityScore(in QualityInput) float64 {
	score := QualityBase

	if in.TemplateApplied {
		score += QualityTemplateBonus
	}
	if in.PreventionCount > 0 {
		score += math.Min(QualityMaxPrevention, float64(in.PreventionCount)*QualityPerPrevention)
	}
	if in.Confidence > 0 {
		score += math.Min(QualityMaxConfidence, in.Confidence*QualityConfidenceFactor)
	}

	switch in.Complexity {
	case analysis.ComplexitySimple:
		score += QualitySimpleBonus
	case analysis.ComplexityModerate:
		score += QualityModerateBonus
	}

	return math.Min(QualityMax, score)
}
