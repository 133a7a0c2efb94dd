// Package workflow sequences pattern recognition, context analysis, template
// selection, implementation, quality validation, documentation and team
// notification into one debugging workflow per reported error, and exposes
// the toolkit's procedural API.
package workflow

import (
	"time"

	"bugx/internal/analysis"
	"bugx/internal/implementation"
	"bugx/internal/patterns"
	"bugx/internal/templates"
)

// Phase is a state of the workflow state machine
type Phase string

const (
	PhaseInit               Phase = "init"
	PhasePatternRecognition Phase = "pattern_recognition"
	PhaseContextAnalysis    Phase = "context_analysis"
	PhaseTemplateMatch      Phase = "template_match"
	PhaseImplementation     Phase = "implementation"
	PhaseQualityValidation  Phase = "quality_validation"
	PhaseDocumentation      Phase = "documentation"
	PhaseTeamNotification   Phase = "team_notification"
	PhaseSessionComplete    Phase = "session_complete"
	PhaseFailed             Phase = "failed"
)

// PhaseStatus is how a phase ended
type PhaseStatus string

const (
	PhaseCompleted PhaseStatus = "completed"
	PhaseSkipped   PhaseStatus = "skipped"
	PhaseErrored   PhaseStatus = "failed"
)

// PhaseRecord is the trace of one phase
type PhaseRecord struct {
	Phase      Phase       `json:"phase"`
	Status     PhaseStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS float64     `json:"duration_ms"`
}

// Request is a reported error
type Request struct {
	Developer    string `json:"developer" mapstructure:"developer"`
	ErrorMessage string `json:"error_message" mapstructure:"error_message" validate:"required"`
	StackTrace   string `json:"stack_trace,omitempty" mapstructure:"stack_trace"`
	CodeContext  string `json:"code_context,omitempty" mapstructure:"code_context"`
	FileName     string `json:"file_name,omitempty" mapstructure:"file_name"`
	Component    string `json:"component,omitempty" mapstructure:"component"`
}

// PatternAnalysis is the output of pattern recognition
type PatternAnalysis struct {
	Matches      []patterns.PatternMatch        `json:"matches"`
	AntiPatterns []patterns.DetectedAntiPattern `json:"anti_patterns"`
}

// Top returns the best match, if any
func (p PatternAnalysis) Top() (patterns.PatternMatch, bool) {
	if len(p.Matches) == 0 {
		return patterns.PatternMatch{}, false
	}
	return p.Matches[0], true
}

// Result is what a workflow returns, whether it completed or failed
type Result struct {
	SessionID            string                 `json:"session_id"`
	Success              bool                   `json:"success"`
	State                Phase                  `json:"state"`
	FailedPhase          Phase                  `json:"failed_phase,omitempty"`
	Error                string                 `json:"error,omitempty"`
	QualityScore         float64                `json:"quality_score"`
	TemplateUsed         string                 `json:"template_used,omitempty"`
	DocumentationCreated bool                   `json:"documentation_created"`
	DocumentationID      string                 `json:"documentation_id,omitempty"`
	KnowledgeEntryID     string                 `json:"knowledge_entry_id,omitempty"`
	TeamNotified         bool                   `json:"team_notified"`
	PatternAnalysis      PatternAnalysis        `json:"pattern_analysis"`
	ContextAnalysis      *analysis.Result       `json:"context_analysis,omitempty"`
	Implementation       *implementation.Result `json:"implementation,omitempty"`
	Recommendations      []string               `json:"recommendations"`
	Warnings             []string               `json:"warnings"`
	Phases               []PhaseRecord          `json:"phases"`
	StartedAt            time.Time              `json:"started_at"`
	CompletedAt          time.Time              `json:"completed_at"`
}

// Phase returns the record of phase p
func (r Result) Phase(p Phase) (PhaseRecord, bool) {
	for _, rec := range r.Phases {
		if rec.Phase == p {
			return rec, true
		}
	}
	return PhaseRecord{}, false
}

// TemplateView is a template with its usage counters
type TemplateView struct {
	templates.PatternTemplate
	Usage templates.Usage `json:"usage"`
}

// ImplementationRequest asks for a plan without running a full workflow.
// ErrorType overrides the type inferred from the error; PreventionRequired
// defaults to the workflow configuration.
type ImplementationRequest struct {
	Request
	ErrorType          string `json:"error_type,omitempty" mapstructure:"error_type"`
	PreventionRequired *bool  `json:"prevention_required,omitempty" mapstructure:"prevention_required"`
}

// Diagnostic is one health check
type Diagnostic struct {
	Name            string  `json:"name"`
	Passed          bool    `json:"passed"`
	ExpectedFailure bool    `json:"expected_failure,omitempty"`
	Message         string  `json:"message"`
	DurationMS      float64 `json:"duration_ms"`
}

// Health statuses
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// HealthReport is the result of HealthCheck
type HealthReport struct {
	Status           string       `json:"status"`
	Diagnostics      []Diagnostic `json:"diagnostics"`
	Passed           int          `json:"passed"`
	Failed           int          `json:"failed"`
	ExpectedFailures int          `json:"expected_failures"`
	CheckedAt        time.Time    `json:"checked_at"`
}
