// Package metrics records debugging sessions and documentation entries and
// aggregates them into reports. Every event is mirrored to Prometheus.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"bugx/internal/logging"
)

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Session is one debugging session
type Session struct {
	ID           string        `json:"id"`
	Developer    string        `json:"developer"`
	ErrorMessage string        `json:"error_message"`
	Component    string        `json:"component,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time,omitempty"`
	Status       SessionStatus `json:"status"`
	Success      bool          `json:"success"`
	QualityScore float64       `json:"quality_score"`
	Approach     string        `json:"approach,omitempty"`
	TemplateUsed string        `json:"template_used,omitempty"`
}

// Duration is the resolution time of a finished session
func (s Session) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Outcome finalises a session
type Outcome struct {
	Success      bool
	QualityScore float64
	Approach     string
	TemplateUsed string
}

// DocumentationEntry is a rendered record of a resolved error
type DocumentationEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	ErrorType string    `json:"error_type"`
	Markdown  string    `json:"markdown"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}

// Report aggregates all recorded sessions
type Report struct {
	TotalSessions            int            `json:"total_sessions"`
	ActiveSessions           int            `json:"active_sessions"`
	CompletedSessions        int            `json:"completed_sessions"`
	SuccessfulSessions       int            `json:"successful_sessions"`
	FailedSessions           int            `json:"failed_sessions"`
	SuccessRate              float64        `json:"success_rate"`
	AverageResolutionMinutes float64        `json:"average_resolution_minutes"`
	AverageQualityScore      float64        `json:"average_quality_score"`
	ApproachBreakdown        map[string]int `json:"approach_breakdown"`
	TemplateBreakdown        map[string]int `json:"template_breakdown"`
	DocumentationCount       int            `json:"documentation_count"`
	GeneratedAt              time.Time      `json:"generated_at"`
}

// Collector owns the session store and documentation log. It is safe for
// concurrent use.
type Collector struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	order         []string
	documentation []DocumentationEntry

	instruments *Instruments
	logger      logging.Logger
	now         func() time.Time
}

// Option configures a Collector
type Option func(*Collector)

// WithRegisterer registers the Prometheus instruments on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Collector) {
		c.instruments = NewInstruments(reg)
	}
}

// WithLogger sets the collector logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates an empty collector. Without WithRegisterer the
// instruments exist but are not registered anywhere.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		sessions: make(map[string]*Session),
		logger:   logging.NewNoOpLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.instruments == nil {
		c.instruments = NewInstruments(nil)
	}
	return c
}

// Instruments exposes the Prometheus instruments
func (c *Collector) Instruments() *Instruments {
	return c.instruments
}

// StartSession opens a session and returns its id
func (c *Collector) StartSession(developer, errorMessage, component string) string {
	session := &Session{
		ID:           uuid.New().String(),
		Developer:    developer,
		ErrorMessage: errorMessage,
		Component:    component,
		StartTime:    c.now(),
		Status:       StatusActive,
	}

	c.mu.Lock()
	c.sessions[session.ID] = session
	c.order = append(c.order, session.ID)
	c.mu.Unlock()

	c.instruments.SessionsStarted.Inc()
	c.instruments.ActiveSessions.Inc()
	c.logger.Debug("Session started", "session_id", session.ID, "developer", developer)
	return session.ID
}

// CompleteSession finalises the session with outcome. It returns false when
// the id is unknown or the session already finished; the first completion
// wins.
func (c *Collector) CompleteSession(id string, outcome Outcome) bool {
	c.mu.Lock()
	session, exists := c.sessions[id]
	if !exists {
		c.mu.Unlock()
		c.logger.Warn("Completion for unknown session ignored", "session_id", id)
		return false
	}
	if session.Status != StatusActive {
		c.mu.Unlock()
		c.logger.Debug("Repeated session completion ignored", "session_id", id)
		return false
	}

	session.EndTime = c.now()
	session.Success = outcome.Success
	session.QualityScore = outcome.QualityScore
	session.Approach = outcome.Approach
	session.TemplateUsed = outcome.TemplateUsed
	session.Status = StatusFailed
	if outcome.Success {
		session.Status = StatusCompleted
	}
	final := *session
	c.mu.Unlock()

	result := "failure"
	if final.Success {
		result = "success"
	}
	c.instruments.SessionsCompleted.WithLabelValues(result).Inc()
	c.instruments.ActiveSessions.Dec()
	c.instruments.ResolutionDuration.Observe(final.Duration().Seconds())
	c.instruments.QualityScore.Observe(final.QualityScore)
	if final.Approach != "" {
		c.instruments.ApproachTotal.WithLabelValues(final.Approach).Inc()
	}

	c.logger.Info("Session completed",
		"session_id", id,
		"status", string(final.Status),
		"quality_score", final.QualityScore,
		"duration_ms", final.Duration().Milliseconds())
	return true
}

// Session returns a copy of the session with id
func (c *Collector) Session(id string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, exists := c.sessions[id]
	if !exists {
		return Session{}, false
	}
	return *session, true
}

// Sessions returns copies of all sessions in start order
func (c *Collector) Sessions() []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sessions := make([]Session, 0, len(c.order))
	for _, id := range c.order {
		sessions = append(sessions, *c.sessions[id])
	}
	return sessions
}

// CalculateMetrics aggregates every recorded session. Rates and averages
// cover finished sessions only.
func (c *Collector) CalculateMetrics() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := Report{
		TotalSessions:      len(c.sessions),
		ApproachBreakdown:  make(map[string]int),
		TemplateBreakdown:  make(map[string]int),
		DocumentationCount: len(c.documentation),
		GeneratedAt:        c.now(),
	}

	var totalMinutes, totalQuality float64
	for _, session := range c.sessions {
		switch session.Status {
		case StatusActive:
			report.ActiveSessions++
			continue
		case StatusCompleted:
			report.SuccessfulSessions++
		case StatusFailed:
			report.FailedSessions++
		}
		report.CompletedSessions++
		totalMinutes += session.Duration().Minutes()
		totalQuality += session.QualityScore
		if session.Approach != "" {
			report.ApproachBreakdown[session.Approach]++
		}
		if session.TemplateUsed != "" {
			report.TemplateBreakdown[session.TemplateUsed]++
		}
	}

	if report.CompletedSessions > 0 {
		finished := float64(report.CompletedSessions)
		report.SuccessRate = float64(report.SuccessfulSessions) / finished
		report.AverageResolutionMinutes = totalMinutes / finished
		report.AverageQualityScore = totalQuality / finished
	}

	return report
}

// AddDocumentation appends entry to the documentation log, filling in the id
// and creation time when missing
func (c *Collector) AddDocumentation(entry DocumentationEntry) DocumentationEntry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.documentation = append(c.documentation, entry)
	c.mu.Unlock()

	c.instruments.DocumentationTotal.Inc()
	return entry
}

// Documentation returns the documentation log, newest first
func (c *Collector) Documentation() []DocumentationEntry {
	c.mu.RLock()
	entries := make([]DocumentationEntry, len(c.documentation))
	copy(entries, c.documentation)
	c.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}
