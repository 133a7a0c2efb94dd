package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugx/internal/analysis"
	"bugx/internal/config"
	"bugx/internal/implementation"
	"bugx/internal/knowledge"
	"bugx/internal/metrics"
	"bugx/internal/notify"
)

const hydrationCode = `'use client'
import { useState } from 'react'

export default function UserProfile() {
  const [id] = useState(Math.random())
  return <div id={id}>Profile</div>
}
`

func hydrationRequest() Request {
	return Request{
		Developer:    "dana",
		ErrorMessage: "Hydration failed because the server rendered text",
		CodeContext:  hydrationCode,
		FileName:     "UserProfile.tsx",
		Component:    "UserProfile",
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	collector := metrics.NewCollector(metrics.WithRegisterer(prometheus.NewRegistry()))
	return NewOrchestrator(append([]Option{WithCollector(collector)}, opts...)...)
}

func phaseStatuses(result Result) map[Phase]PhaseStatus {
	statuses := make(map[Phase]PhaseStatus, len(result.Phases))
	for _, p := range result.Phases {
		statuses[p.Phase] = p.Status
	}
	return statuses
}

func TestRunCompleteWorkflow_HydrationEndToEnd(t *testing.T) {
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, WithNotifier(notifier))

	result := o.RunCompleteWorkflow(context.Background(), hydrationRequest())

	require.True(t, result.Success, result.Error)
	assert.Equal(t, PhaseSessionComplete, result.State)
	assert.True(t, result.DocumentationCreated)
	assert.NotEmpty(t, result.DocumentationID)
	assert.NotEmpty(t, result.KnowledgeEntryID)

	top, ok := result.PatternAnalysis.Top()
	require.True(t, ok)
	assert.Equal(t, "hydration", top.Signature.Category)
	require.NotEmpty(t, result.PatternAnalysis.AntiPatterns)
	assert.Equal(t, "random-in-state-init", result.PatternAnalysis.AntiPatterns[0].ID)

	require.NotNil(t, result.ContextAnalysis)
	assert.Equal(t, analysis.ComplexityModerate, result.ContextAnalysis.Complexity)
	assert.Equal(t, "hydration-mismatch", result.TemplateUsed)
	require.NotNil(t, result.Implementation)
	assert.Equal(t, implementation.SourceTemplate, result.Implementation.Source)
	assert.Equal(t, 100.0, result.QualityScore)
	assert.Empty(t, result.Warnings)

	assert.True(t, result.TeamNotified)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notify.TypeCriticalAntiPattern, notifier.sent[0].Type)
	assert.Equal(t, result.SessionID, notifier.sent[0].SessionID)

	statuses := phaseStatuses(result)
	for _, phase := range []Phase{PhaseInit, PhasePatternRecognition, PhaseContextAnalysis, PhaseTemplateMatch,
		PhaseImplementation, PhaseQualityValidation, PhaseDocumentation, PhaseTeamNotification, PhaseSessionComplete} {
		assert.Equal(t, PhaseCompleted, statuses[phase], phase)
	}

	session, ok := o.Collector().Session(result.SessionID)
	require.True(t, ok)
	assert.Equal(t, metrics.StatusCompleted, session.Status)
	assert.Equal(t, 100.0, session.QualityScore)

	docs := o.Collector().Documentation()
	require.Len(t, docs, 1)
	assert.Equal(t, "Hydration Mismatch in UserProfile", docs[0].Title)
	assert.Contains(t, docs[0].HTML, "<h1>")

	view, err := o.GetTemplate("hydration-mismatch")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Usage.UsageCount)
	assert.Equal(t, 1, view.Usage.SuccessCount)

	entries := o.ListKnowledge()
	require.Len(t, entries, 1)
	assert.Equal(t, "hydration-mismatch", entries[0].ErrorSignature)
	assert.Equal(t, "dana", entries[0].SharedBy)
}

func TestRunCompleteWorkflow_UnknownTemplateUsesGenericPath(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.RunCompleteWorkflow(context.Background(), Request{
		Developer:    "lee",
		ErrorMessage: "TypeError: handler is not a function",
	})

	require.True(t, result.Success, result.Error)
	assert.Empty(t, result.TemplateUsed)
	require.NotNil(t, result.ContextAnalysis)
	assert.Equal(t, "type-error", result.ContextAnalysis.ErrorType)
	require.NotNil(t, result.Implementation)
	assert.Equal(t, implementation.SourceGeneric, result.Implementation.Source)
	assert.NotEmpty(t, result.Implementation.Steps)

	statuses := phaseStatuses(result)
	assert.Equal(t, PhaseCompleted, statuses[PhaseTemplateMatch])
	assert.Equal(t, PhaseSkipped, statuses[PhaseTeamNotification])
}

func TestRunCompleteWorkflow_SkipsDisabledPhases(t *testing.T) {
	cfg := config.DefaultWorkflowConfig()
	cfg.AIAssisted = false
	cfg.DocumentationRequired = false
	cfg.TeamNotification = false
	o := newTestOrchestrator(t, WithConfig(cfg))

	result := o.RunCompleteWorkflow(context.Background(), hydrationRequest())

	require.True(t, result.Success)
	assert.Nil(t, result.Implementation)
	assert.False(t, result.DocumentationCreated)
	assert.False(t, result.TeamNotified)
	assert.Empty(t, o.ListKnowledge())

	for _, phase := range []Phase{PhaseImplementation, PhaseDocumentation, PhaseTeamNotification} {
		rec, ok := result.Phase(phase)
		require.True(t, ok, phase)
		assert.Equal(t, PhaseSkipped, rec.Status)
		assert.Equal(t, "disabled by configuration", rec.Reason)
	}
}

func TestRunCompleteWorkflow_NoCriticalAntiPatternSkipsNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, WithNotifier(notifier))

	req := hydrationRequest()
	req.CodeContext = ""
	result := o.RunCompleteWorkflow(context.Background(), req)

	require.True(t, result.Success)
	rec, ok := result.Phase(PhaseTeamNotification)
	require.True(t, ok)
	assert.Equal(t, PhaseSkipped, rec.Status)
	assert.Equal(t, "no critical anti-patterns", rec.Reason)
	assert.Empty(t, notifier.sent)
}

func TestRunCompleteWorkflow_NotificationErrorIsWarning(t *testing.T) {
	o := newTestOrchestrator(t, WithNotifier(&recordingNotifier{err: errors.New("redis down")}))

	result := o.RunCompleteWorkflow(context.Background(), hydrationRequest())

	require.True(t, result.Success)
	assert.False(t, result.TeamNotified)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "redis down")
}

func TestRunCompleteWorkflow_PhasePanicFailsSafely(t *testing.T) {
	panicking := notify.NotifierFunc(func(context.Context, notify.Notification) error {
		panic("socket closed")
	})
	o := newTestOrchestrator(t, WithNotifier(panicking))

	result := o.RunCompleteWorkflow(context.Background(), hydrationRequest())

	assert.False(t, result.Success)
	assert.Equal(t, PhaseFailed, result.State)
	assert.Equal(t, PhaseTeamNotification, result.FailedPhase)
	assert.Contains(t, result.Error, "socket closed")
	assert.Zero(t, result.QualityScore)
	assert.Equal(t, SafeRecommendations, result.Recommendations)

	rec, ok := result.Phase(PhaseTeamNotification)
	require.True(t, ok)
	assert.Equal(t, PhaseErrored, rec.Status)

	session, ok := o.Collector().Session(result.SessionID)
	require.True(t, ok)
	assert.Equal(t, metrics.StatusFailed, session.Status)
	assert.Zero(t, session.QualityScore)

	view, err := o.GetTemplate("hydration-mismatch")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Usage.UsageCount)
	assert.Equal(t, 0, view.Usage.SuccessCount)
}

func TestRunCompleteWorkflow_CancelledContextFails(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := o.RunCompleteWorkflow(ctx, hydrationRequest())

	assert.False(t, result.Success)
	assert.Equal(t, PhasePatternRecognition, result.FailedPhase)
	assert.Contains(t, result.Error, context.Canceled.Error())
	assert.Equal(t, 1, o.Collector().CalculateMetrics().FailedSessions)
}

func TestRunCompleteWorkflow_LowQualityWarns(t *testing.T) {
	cfg := config.DefaultWorkflowConfig()
	cfg.MinQualityScore = 100
	o := newTestOrchestrator(t, WithConfig(cfg))

	result := o.RunCompleteWorkflow(context.Background(), Request{ErrorMessage: "TypeError: handler is not a function"})

	require.True(t, result.Success)
	assert.Less(t, result.QualityScore, 100.0)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "below the minimum")
}

func TestRunCompleteWorkflow_ConsultsTeamKnowledge(t *testing.T) {
	store := knowledge.NewStore(nil)
	shared, err := store.Share(knowledge.ShareRequest{
		Title:          "Random ids in profile card",
		ErrorSignature: "hydration-mismatch",
		Solution:       "Use useId for element ids",
	})
	require.NoError(t, err)
	cfg := config.DefaultWorkflowConfig()
	cfg.DocumentationRequired = false
	o := newTestOrchestrator(t, WithKnowledgeStore(store), WithConfig(cfg))

	result := o.RunCompleteWorkflow(context.Background(), hydrationRequest())

	require.True(t, result.Success)
	assert.Contains(t, result.Recommendations, "Team knowledge (Random ids in profile card): Use useId for element ids")
	entry, err := store.Get(shared.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.UsageCount)
}

func TestQuickFix_RequiresErrorMessage(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.QuickFix(context.Background(), Request{Developer: "dana"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_message")

	result, err := o.QuickFix(context.Background(), Request{ErrorMessage: "TypeError: x is not a function"})
	require.NoError(t, err)
	session, ok := o.Collector().Session(result.SessionID)
	require.True(t, ok)
	assert.Equal(t, "anonymous", session.Developer)
}

func TestRunCompleteWorkflow_ConcurrentSessionsStayIsolated(t *testing.T) {
	o := newTestOrchestrator(t, WithNotifier(&recordingNotifier{}))

	const workers = 20
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := hydrationRequest()
			req.Developer = fmt.Sprintf("dev-%d", i)
			if i%2 == 1 {
				req = Request{Developer: req.Developer, ErrorMessage: "TypeError: handler is not a function"}
			}
			results[i] = o.RunCompleteWorkflow(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.True(t, result.Success)
		session, ok := o.Collector().Session(result.SessionID)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("dev-%d", i), session.Developer)
		assert.Equal(t, result.QualityScore, session.QualityScore)
		assert.Equal(t, result.TemplateUsed, session.TemplateUsed)
	}

	report := o.Collector().CalculateMetrics()
	assert.Equal(t, workers, report.TotalSessions)
	assert.Equal(t, workers, report.SuccessfulSessions)

	view, err := o.GetTemplate("hydration-mismatch")
	require.NoError(t, err)
	assert.Equal(t, workers/2, view.Usage.UsageCount)
}
