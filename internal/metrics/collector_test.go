package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCollector(t *testing.T) (*Collector, *fakeClock, *prometheus.Registry) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	return NewCollector(WithRegisterer(reg), WithClock(clock.Now)), clock, reg
}

func TestSessionLifecycle(t *testing.T) {
	collector, clock, _ := newTestCollector(t)

	id := collector.StartSession("ana", "Hydration failed", "ScholarshipCard")
	require.NotEmpty(t, id)

	session, ok := collector.Session(id)
	require.True(t, ok)
	assert.Equal(t, StatusActive, session.Status)
	assert.Zero(t, session.Duration())

	clock.Advance(30 * time.Minute)
	assert.True(t, collector.CompleteSession(id, Outcome{Success: true, QualityScore: 90, Approach: "apply-template", TemplateUsed: "hydration-mismatch"}))

	session, _ = collector.Session(id)
	assert.Equal(t, StatusCompleted, session.Status)
	assert.Equal(t, 30*time.Minute, session.Duration())
	assert.Equal(t, 90.0, session.QualityScore)
}

func TestCompleteSession_UnknownID(t *testing.T) {
	collector, _, _ := newTestCollector(t)

	assert.False(t, collector.CompleteSession("does-not-exist", Outcome{Success: true}))
	assert.Equal(t, 0, collector.CalculateMetrics().TotalSessions)
}

func TestCompleteSession_FirstCompletionWins(t *testing.T) {
	collector, _, _ := newTestCollector(t)
	id := collector.StartSession("ana", "boom", "")

	assert.True(t, collector.CompleteSession(id, Outcome{Success: true, QualityScore: 80}))
	assert.False(t, collector.CompleteSession(id, Outcome{Success: false, QualityScore: 0}))

	report := collector.CalculateMetrics()
	assert.Equal(t, 1, report.TotalSessions)
	assert.Equal(t, 1, report.CompletedSessions)
	assert.Equal(t, 1, report.SuccessfulSessions)
	assert.Equal(t, 0, report.FailedSessions)
	assert.Equal(t, 80.0, report.AverageQualityScore)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Instruments().SessionsCompleted.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.Instruments().SessionsCompleted.WithLabelValues("failure")))
}

func TestCalculateMetrics(t *testing.T) {
	collector, clock, _ := newTestCollector(t)

	a := collector.StartSession("ana", "a", "")
	b := collector.StartSession("ben", "b", "")
	collector.StartSession("cy", "c", "")

	clock.Advance(10 * time.Minute)
	collector.CompleteSession(a, Outcome{Success: true, QualityScore: 100, Approach: "apply-template", TemplateUsed: "null-reference"})
	clock.Advance(20 * time.Minute)
	collector.CompleteSession(b, Outcome{Success: false, QualityScore: 0, Approach: "systematic-debugging"})

	report := collector.CalculateMetrics()
	assert.Equal(t, 3, report.TotalSessions)
	assert.Equal(t, 1, report.ActiveSessions)
	assert.Equal(t, 2, report.CompletedSessions)
	assert.Equal(t, 0.5, report.SuccessRate)
	assert.InDelta(t, 20.0, report.AverageResolutionMinutes, 0.001)
	assert.Equal(t, 50.0, report.AverageQualityScore)
	assert.Equal(t, map[string]int{"apply-template": 1, "systematic-debugging": 1}, report.ApproachBreakdown)
	assert.Equal(t, map[string]int{"null-reference": 1}, report.TemplateBreakdown)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Instruments().ActiveSessions))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.Instruments().SessionsStarted))
}

func TestCalculateMetrics_Empty(t *testing.T) {
	collector, _, _ := newTestCollector(t)

	report := collector.CalculateMetrics()

	assert.Zero(t, report.TotalSessions)
	assert.Zero(t, report.SuccessRate)
	assert.NotNil(t, report.ApproachBreakdown)
}

func TestCompleteSession_ConcurrentDistinctSessions(t *testing.T) {
	collector, _, _ := newTestCollector(t)

	const n = 40
	ids := make([]string, n)
	for i := range ids {
		ids[i] = collector.StartSession("dev", "err", "")
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			collector.CompleteSession(id, Outcome{Success: i%2 == 0, QualityScore: float64(i)})
		}(i, id)
	}
	wg.Wait()

	for i, id := range ids {
		session, ok := collector.Session(id)
		require.True(t, ok)
		assert.Equal(t, float64(i), session.QualityScore)
		assert.Equal(t, i%2 == 0, session.Success)
	}
	report := collector.CalculateMetrics()
	assert.Equal(t, n, report.CompletedSessions)
	assert.Equal(t, n/2, report.SuccessfulSessions)
}

func TestDocumentation(t *testing.T) {
	collector, clock, _ := newTestCollector(t)

	first := collector.AddDocumentation(DocumentationEntry{Title: "First"})
	clock.Advance(time.Minute)
	collector.AddDocumentation(DocumentationEntry{Title: "Second"})

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	docs := collector.Documentation()
	require.Len(t, docs, 2)
	assert.Equal(t, "Second", docs[0].Title)
	assert.Equal(t, 2, collector.CalculateMetrics().DocumentationCount)
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.Instruments().DocumentationTotal))
}

func TestInstrumentsRegistered(t *testing.T) {
	collector, _, reg := newTestCollector(t)
	id := collector.StartSession("ana", "x", "")
	collector.CompleteSession(id, Outcome{Success: true, Approach: "apply-template"})

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["bugx_sessions_started_total"])
	assert.True(t, names["bugx_sessions_completed_total"])
	assert.True(t, names["bugx_session_resolution_seconds"])
	assert.True(t, names["bugx_session_approach_total"])
}
