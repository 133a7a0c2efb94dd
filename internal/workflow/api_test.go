package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugx/internal/analysis"
	"bugx/internal/config"
	bugxerrors "bugx/internal/errors"
	"bugx/internal/implementation"
	"bugx/internal/knowledge"
	"bugx/internal/templates"
)

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name string
		in   QualityInput
		want float64
	}{
		{"base only", QualityInput{Complexity: analysis.ComplexityComplex}, 50},
		{"template", QualityInput{TemplateApplied: true, Complexity: analysis.ComplexityComplex}, 70},
		{"prevention capped", QualityInput{PreventionCount: 9, Complexity: analysis.ComplexityComplex}, 70},
		{"confidence", QualityInput{Confidence: 60, Complexity: analysis.ComplexityComplex}, 59},
		{"moderate", QualityInput{Complexity: analysis.ComplexityModerate}, 55},
		{"simple", QualityInput{Complexity: analysis.ComplexitySimple}, 60},
		{"capped at 100", QualityInput{TemplateApplied: true, PreventionCount: 4, Confidence: 100, Complexity: analysis.ComplexitySimple}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, QualityScore(tt.in), 1e-9)
		})
	}
}

func TestQualityScore_NonDecreasingInPrevention(t *testing.T) {
	for _, complexity := range []analysis.Complexity{analysis.ComplexitySimple, analysis.ComplexityModerate, analysis.ComplexityComplex} {
		previous := -1.0
		for count := 0; count <= 10; count++ {
			score := QualityScore(QualityInput{TemplateApplied: true, PreventionCount: count, Confidence: 75, Complexity: complexity})
			assert.GreaterOrEqual(t, score, previous)
			assert.LessOrEqual(t, score, QualityMax)
			previous = score
		}
	}
}

func TestAnalyzeContext(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.AnalyzeContext(hydrationRequest())

	assert.Equal(t, "hydration", result.ErrorCategory)
	assert.Equal(t, "hydration-mismatch", result.ErrorType)
	assert.Equal(t, analysis.ApproachApplyTemplate, result.Approach)
}

func TestGetTemplate_NotFound(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.GetTemplate("type-error")

	require.Error(t, err)
	assert.True(t, errors.Is(err, templates.ErrTemplateNotFound))
	assert.True(t, errors.Is(err, bugxerrors.ErrNotFound))
	assert.NotEmpty(t, o.ListTemplates())
}

func TestGenerateImplementation(t *testing.T) {
	o := newTestOrchestrator(t)
	noPrevention := false

	plan, err := o.GenerateImplementation(ImplementationRequest{
		Request:            Request{ErrorMessage: "something odd happened", Component: "Checkout"},
		ErrorType:          "null-reference",
		PreventionRequired: &noPrevention,
	})
	require.NoError(t, err)
	assert.Equal(t, implementation.SourceTemplate, plan.Source)
	assert.Empty(t, plan.PreventionMeasures)

	plan, err = o.GenerateImplementation(ImplementationRequest{Request: hydrationRequest()})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.PreventionMeasures)

	_, err = o.GenerateImplementation(ImplementationRequest{})
	assert.Error(t, err)
}

func TestKnowledgeAPI(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.ShareWithTeam(knowledge.ShareRequest{Title: "missing fields"})
	require.Error(t, err)

	entry, err := o.ShareWithTeam(knowledge.ShareRequest{
		Title:          "Stale session cookie",
		ErrorSignature: "auth-session",
		Solution:       "Clear the cookie on logout",
		SharedBy:       "sam",
	})
	require.NoError(t, err)

	rated, err := o.RecordFeedback(entry.ID, true)
	require.NoError(t, err)
	assert.Equal(t, knowledge.DefaultEffectiveness+knowledge.FeedbackStep, rated.Effectiveness)

	_, err = o.RecordFeedback("missing", false)
	assert.True(t, errors.Is(err, bugxerrors.ErrNotFound))

	assert.Len(t, o.ListKnowledge(), 1)
}

func TestGetMetrics(t *testing.T) {
	o := newTestOrchestrator(t, WithNotifier(&recordingNotifier{}))
	o.RunCompleteWorkflow(context.Background(), hydrationRequest())

	snapshot := o.GetMetrics(false)
	assert.Equal(t, 1, snapshot.Sessions.TotalSessions)
	assert.Equal(t, 1, snapshot.Sessions.DocumentationCount)
	assert.Equal(t, 1, snapshot.KnowledgeEntries)
	assert.Nil(t, snapshot.Documentation)
	require.NotEmpty(t, snapshot.TemplateUsage)
	assert.Equal(t, "hydration-mismatch", snapshot.TemplateUsage[0].ErrorType)

	assert.Len(t, o.GetMetrics(true).Documentation, 1)
}

func TestConfigure(t *testing.T) {
	o := newTestOrchestrator(t)

	cfg := config.DefaultWorkflowConfig()
	cfg.TeamNotification = false
	require.NoError(t, o.Configure(cfg))
	assert.False(t, o.Config().TeamNotification)

	cfg.MinQualityScore = 120
	err := o.Configure(cfg)
	require.Error(t, err)
	assert.True(t, bugxerrors.IsValidationError(bugxerrors.FromError(err)))
	assert.Equal(t, 70.0, o.Config().MinQualityScore)
}

func TestConfigureFromMap(t *testing.T) {
	o := newTestOrchestrator(t)

	cfg, err := o.ConfigureFromMap(map[string]interface{}{
		"ai_assisted":       "false",
		"min_quality_score": 80,
	})
	require.NoError(t, err)
	assert.False(t, cfg.AIAssisted)
	assert.Equal(t, 80.0, cfg.MinQualityScore)
	assert.True(t, cfg.DocumentationRequired, "keys not given keep their value")
	assert.Equal(t, cfg, o.Config())

	_, err = o.ConfigureFromMap(map[string]interface{}{"verbose": true})
	assert.Error(t, err)

	_, err = o.ConfigureFromMap(map[string]interface{}{"min_quality_score": -5})
	assert.Error(t, err)
	assert.Equal(t, 80.0, o.Config().MinQualityScore)
}

func TestHealthCheck(t *testing.T) {
	o := newTestOrchestrator(t)

	report := o.HealthCheck(context.Background())

	assert.Equal(t, HealthHealthy, report.Status)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, report.ExpectedFailures)
	assert.Equal(t, len(report.Diagnostics)-1, report.Passed)

	var random Diagnostic
	for _, d := range report.Diagnostics {
		if d.Name == "random_value_consistency" {
			random = d
		}
	}
	assert.False(t, random.Passed)
	assert.True(t, random.ExpectedFailure)
	assert.Contains(t, random.Message, "non-deterministic")
}

func TestHealthCheck_FailingProbeDegrades(t *testing.T) {
	o := newTestOrchestrator(t,
		WithProbe("datastore", func(context.Context) error { return errors.New("not initialised") }),
		WithProbe("redis", func(context.Context) error { panic("nil client") }),
	)

	report := o.HealthCheck(context.Background())

	assert.Equal(t, HealthDegraded, report.Status)
	assert.Equal(t, 2, report.Failed)
	last := report.Diagnostics[len(report.Diagnostics)-1]
	assert.Equal(t, "redis", last.Name)
	assert.Contains(t, last.Message, "nil client")
}
