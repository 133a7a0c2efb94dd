package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bugx"

// Instruments are the Prometheus metrics mirroring collector events
type Instruments struct {
	SessionsStarted    prometheus.Counter
	SessionsCompleted  *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	ResolutionDuration prometheus.Histogram
	QualityScore       prometheus.Histogram
	ApproachTotal      *prometheus.CounterVec
	DocumentationTotal prometheus.Counter
}

// NewInstruments creates the instruments and registers them on reg. A nil
// reg leaves them unregistered.
func NewInstruments(reg prometheus.Registerer) *Instruments {
	factory := promauto.With(reg)
	return &Instruments{
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Total number of debugging sessions started",
			},
		),
		SessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_completed_total",
				Help:      "Total number of debugging sessions completed",
			},
			[]string{"result"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of debugging sessions in progress",
			},
		),
		ResolutionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_resolution_seconds",
				Help:      "Time from session start to completion in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
			},
		),
		QualityScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_quality_score",
				Help:      "Quality score of completed sessions",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),
		ApproachTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_approach_total",
				Help:      "Completed sessions by recommended approach",
			},
			[]string{"approach"},
		),
		DocumentationTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documentation_entries_total",
				Help:      "Total number of documentation entries recorded",
			},
		),
	}
}
