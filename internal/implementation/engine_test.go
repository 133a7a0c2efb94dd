package implementation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugx/internal/analysis"
	"bugx/internal/patterns"
	"bugx/internal/templates"
)

func hydrationRequest(t *testing.T, registry *templates.Registry) Request {
	t.Helper()
	tmpl, err := registry.GetTemplate("hydration-mismatch")
	require.NoError(t, err)

	sig, ok := patterns.BuiltinLibrary().Signature("hydration-mismatch")
	require.True(t, ok)

	return Request{
		Analysis:     analysis.Result{ErrorCategory: "hydration", ErrorType: "hydration-mismatch"},
		Template:     &tmpl,
		FileName:     "card.tsx",
		Component:    "ScholarshipCard",
		ErrorMessage: "Hydration failed",
		Matches:      []patterns.PatternMatch{{Signature: sig, Confidence: 100}},
		AntiPatterns: []patterns.DetectedAntiPattern{
			{AntiPattern: patterns.AntiPattern{ID: "random-in-state-init", Name: "Random value in state initializer", Severity: patterns.SeverityCritical, Solution: "Initialise with a stable value and set the random value in useEffect"}},
		},
		PreventionRequired: true,
	}
}

func TestGenerate_FromTemplate(t *testing.T) {
	registry := templates.NewRegistry()
	engine := NewEngine(registry, nil)
	req := hydrationRequest(t, registry)

	result, err := engine.Generate(req)
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, result.Source)
	require.Len(t, result.Steps, len(req.Template.Steps)+1)
	for i, step := range result.Steps {
		assert.Equal(t, i+1, step.Order)
	}
	assert.Equal(t, SourceTemplate, result.Steps[0].Source)
	assert.Contains(t, result.Steps[0].Detail, "card.tsx")

	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, SourceVerification, last.Source)
	assert.Equal(t, req.Matches[0].Signature.Recommendation, last.Detail)

	assert.Subset(t, result.PreventionMeasures, req.Template.Prevention)
	assert.Contains(t, result.PreventionMeasures, "Initialise with a stable value and set the random value in useEffect")
}

func TestGenerate_GenericFallback(t *testing.T) {
	engine := NewEngine(templates.NewRegistry(), nil)

	result, err := engine.Generate(Request{
		Analysis:           analysis.Result{ErrorCategory: "build"},
		FileName:           "page.tsx",
		PreventionRequired: true,
	})
	require.NoError(t, err)

	assert.Equal(t, SourceGeneric, result.Source)
	require.Len(t, result.Steps, 3)
	assert.Contains(t, result.Steps[0].Detail, "page.tsx")
	assert.Equal(t, "Inspect module resolution", result.Steps[1].Action)
	assert.Equal(t, []string{"Run a clean install and build in CI"}, result.PreventionMeasures)
}

func TestGenerate_UnknownCategory(t *testing.T) {
	engine := NewEngine(templates.NewRegistry(), nil)

	result, err := engine.Generate(Request{
		Analysis: analysis.Result{ErrorCategory: analysis.UnknownCategory},
		AntiPatterns: []patterns.DetectedAntiPattern{
			{AntiPattern: patterns.AntiPattern{Name: "Empty catch block", Solution: "Log or rethrow"}},
		},
		PreventionRequired: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Isolate the failure", result.Steps[1].Action)
	assert.Contains(t, result.Steps[2].Detail, "Empty catch block")
	assert.Equal(t, []string{"Log or rethrow"}, result.PreventionMeasures)
}

func TestGenerate_PreventionOnlyWhenRequired(t *testing.T) {
	registry := templates.NewRegistry()
	engine := NewEngine(registry, nil)
	req := hydrationRequest(t, registry)
	req.PreventionRequired = false

	result, err := engine.Generate(req)
	require.NoError(t, err)

	assert.NotNil(t, result.PreventionMeasures)
	assert.Empty(t, result.PreventionMeasures)
}

func TestGenerate_DeduplicatesPrevention(t *testing.T) {
	registry := templates.NewRegistry()
	engine := NewEngine(registry, nil)
	req := hydrationRequest(t, registry)
	req.AntiPatterns = append(req.AntiPatterns, req.AntiPatterns[0])
	req.Template.Prevention = append(req.Template.Prevention, req.Template.Prevention[0])

	result, err := engine.Generate(req)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, m := range result.PreventionMeasures {
		assert.False(t, seen[m], "duplicate measure %q", m)
		seen[m] = true
	}
}

func TestGenerate_BrokenTemplate(t *testing.T) {
	engine := NewEngine(templates.NewEmptyRegistry(), nil)
	broken := templates.PatternTemplate{ErrorType: "x", Steps: []templates.FixStep{{Action: "{{.Missing}}"}}}

	_, err := engine.Generate(Request{Template: &broken})

	assert.Error(t, err)
}
