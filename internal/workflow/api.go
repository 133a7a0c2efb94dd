package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"bugx/internal/analysis"
	"bugx/internal/config"
	bugxerrors "bugx/internal/errors"
	"bugx/internal/implementation"
	"bugx/internal/knowledge"
	"bugx/internal/metrics"
	"bugx/internal/patterns"
	"bugx/internal/templates"
)

// MetricsSnapshot is what GetMetrics reports
type MetricsSnapshot struct {
	Sessions         metrics.Report              `json:"sessions"`
	TemplateUsage    []templates.Usage           `json:"template_usage"`
	KnowledgeEntries int                         `json:"knowledge_entries"`
	Documentation    []metrics.DocumentationEntry `json:"documentation,omitempty"`
}

// AnalyzePattern runs pattern recognition and anti-pattern detection
func (o *Orchestrator) AnalyzePattern(errorMessage, stackTrace, codeContext, fileName string) PatternAnalysis {
	return PatternAnalysis{
		Matches:      o.patterns.AnalyzeError(errorMessage, stackTrace, codeContext, fileName),
		AntiPatterns: o.patterns.DetectAntiPatterns(codeContext, fileName),
	}
}

// AnalyzeContext recognises req and classifies it
func (o *Orchestrator) AnalyzeContext(req Request) analysis.Result {
	found := o.AnalyzePattern(req.ErrorMessage, req.StackTrace, req.CodeContext, req.FileName)
	return o.analyzer.Analyze(analysis.Input{
		Matches:      found.Matches,
		AntiPatterns: found.AntiPatterns,
		ErrorMessage: req.ErrorMessage,
		StackTrace:   req.StackTrace,
	})
}

// GetTemplate returns the template of errorType with its usage. Unknown
// types fail with templates.ErrTemplateNotFound.
func (o *Orchestrator) GetTemplate(errorType string) (TemplateView, error) {
	tmpl, err := o.registry.GetTemplate(errorType)
	if err != nil {
		return TemplateView{}, err
	}
	return TemplateView{PatternTemplate: tmpl, Usage: o.usageOf(tmpl.ErrorType)}, nil
}

// ListTemplates returns every registered template with its usage
func (o *Orchestrator) ListTemplates() []TemplateView {
	list := o.registry.List()
	views := make([]TemplateView, 0, len(list))
	for _, tmpl := range list {
		views = append(views, TemplateView{PatternTemplate: tmpl, Usage: o.usageOf(tmpl.ErrorType)})
	}
	return views
}

func (o *Orchestrator) usageOf(errorType string) templates.Usage {
	for _, u := range o.registry.Usage() {
		if u.ErrorType == errorType {
			return u
		}
	}
	return templates.Usage{ErrorType: errorType}
}

// GenerateImplementation builds a fix plan for req without opening a
// session. A missing template is not an error: the plan is generic.
func (o *Orchestrator) GenerateImplementation(req ImplementationRequest) (implementation.Result, error) {
	if strings.TrimSpace(req.ErrorMessage) == "" && req.ErrorType == "" {
		return implementation.Result{}, bugxerrors.NewRequiredFieldError("error_message")
	}

	found := o.AnalyzePattern(req.ErrorMessage, req.StackTrace, req.CodeContext, req.FileName)
	result := o.analyzer.Analyze(analysis.Input{
		Matches:      found.Matches,
		AntiPatterns: found.AntiPatterns,
		ErrorMessage: req.ErrorMessage,
		StackTrace:   req.StackTrace,
	})

	errorType := result.ErrorType
	if req.ErrorType != "" {
		errorType = req.ErrorType
	}

	var tmpl *templates.PatternTemplate
	candidate, err := o.registry.GetTemplate(errorType)
	switch {
	case err == nil:
		tmpl = &candidate
	case !errors.Is(err, templates.ErrTemplateNotFound):
		return implementation.Result{}, err
	}

	prevention := o.Config().PreventionRequired
	if req.PreventionRequired != nil {
		prevention = *req.PreventionRequired
	}

	return o.implementation.Generate(implementation.Request{
		Analysis:           result,
		Template:           tmpl,
		CodeContext:        req.CodeContext,
		FileName:           req.FileName,
		Component:          req.Component,
		ErrorMessage:       req.ErrorMessage,
		Matches:            found.Matches,
		AntiPatterns:       found.AntiPatterns,
		PreventionRequired: prevention,
	})
}

// ShareWithTeam adds a knowledge entry
func (o *Orchestrator) ShareWithTeam(req knowledge.ShareRequest) (knowledge.Entry, error) {
	return o.knowledge.Share(req)
}

// RecordFeedback rates a knowledge entry
func (o *Orchestrator) RecordFeedback(id string, helpful bool) (knowledge.Entry, error) {
	return o.knowledge.Feedback(id, helpful)
}

// ListKnowledge returns the shared entries, newest first
func (o *Orchestrator) ListKnowledge() []knowledge.Entry {
	return o.knowledge.List()
}

// GetMetrics aggregates sessions, template usage and knowledge. The
// documentation log is included when withDocumentation is set.
func (o *Orchestrator) GetMetrics(withDocumentation bool) MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Sessions:         o.collector.CalculateMetrics(),
		TemplateUsage:    o.registry.Usage(),
		KnowledgeEntries: o.knowledge.Len(),
	}
	if withDocumentation {
		snapshot.Documentation = o.collector.Documentation()
	}
	return snapshot
}

// Collector returns the metrics collector
func (o *Orchestrator) Collector() *metrics.Collector {
	return o.collector
}

// Library returns the pattern library in use
func (o *Orchestrator) Library() *patterns.Library {
	return o.patterns.Library()
}

// Config returns the current workflow configuration
func (o *Orchestrator) Config() config.WorkflowConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// Configure replaces the workflow configuration. Running workflows keep the
// configuration they started with.
func (o *Orchestrator) Configure(cfg config.WorkflowConfig) error {
	if err := cfg.Validate(); err != nil {
		return bugxerrors.NewValidationError("min_quality_score", err.Error(), cfg.MinQualityScore)
	}

	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()

	o.logger.Info("Workflow configuration updated",
		"ai_assisted", cfg.AIAssisted,
		"documentation_required", cfg.DocumentationRequired,
		"team_notification", cfg.TeamNotification,
		"min_quality_score", cfg.MinQualityScore)
	return nil
}

// ConfigureFromMap merges the keys of values into the current configuration.
// Keys use the snake_case names of config.WorkflowConfig; unknown keys are
// rejected and strings are converted where possible ("true", "80").
func (o *Orchestrator) ConfigureFromMap(values map[string]interface{}) (config.WorkflowConfig, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cfg := o.cfg
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return config.WorkflowConfig{}, bugxerrors.NewInternalError("failed to create config decoder", err)
	}
	if err := decoder.Decode(values); err != nil {
		return config.WorkflowConfig{}, bugxerrors.NewValidationError("config", fmt.Sprintf("invalid workflow configuration: %v", err), values)
	}
	if err := cfg.Validate(); err != nil {
		return config.WorkflowConfig{}, bugxerrors.NewValidationError("min_quality_score", err.Error(), cfg.MinQualityScore)
	}

	o.cfg = cfg
	o.logger.Info("Workflow configuration updated", "keys", len(values))
	return cfg, nil
}
