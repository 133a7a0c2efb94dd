package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bugx/internal/analysis"
	"bugx/internal/config"
	"bugx/internal/docs"
	bugxerrors "bugx/internal/errors"
	"bugx/internal/implementation"
	"bugx/internal/knowledge"
	"bugx/internal/logging"
	"bugx/internal/metrics"
	"bugx/internal/notify"
	"bugx/internal/patterns"
	"bugx/internal/templates"
)

// SafeRecommendations are returned by a failed workflow
var SafeRecommendations = []string{
	"Reproduce the error with the smallest possible input",
	"Read the first error in the browser console and the server log, not the last",
	"Search the team knowledge base for the error message",
	"Escalate to a teammate if the error is not understood within 30 minutes",
}

// Orchestrator owns every stateful component of the toolkit and runs
// workflows against them. It is safe for concurrent use; each workflow runs
// sequentially on the calling goroutine.
type Orchestrator struct {
	patterns       *patterns.Engine
	analyzer       *analysis.Analyzer
	registry       *templates.Registry
	implementation *implementation.Engine
	collector      *metrics.Collector
	knowledge      *knowledge.Store
	renderer       *docs.Renderer
	notifier       notify.Notifier
	probes         []probe
	logger         logging.Logger
	now            func() time.Time

	mu  sync.RWMutex
	cfg config.WorkflowConfig
}

type probe struct {
	name string
	fn   func(ctx context.Context) error
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithConfig sets the initial workflow configuration
func WithConfig(cfg config.WorkflowConfig) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithPatternEngine replaces the builtin recognition engine
func WithPatternEngine(engine *patterns.Engine) Option {
	return func(o *Orchestrator) { o.patterns = engine }
}

// WithAnalyzer replaces the default context analyzer
func WithAnalyzer(analyzer *analysis.Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = analyzer }
}

// WithRegistry replaces the builtin template registry
func WithRegistry(registry *templates.Registry) Option {
	return func(o *Orchestrator) { o.registry = registry }
}

// WithCollector replaces the metrics collector
func WithCollector(collector *metrics.Collector) Option {
	return func(o *Orchestrator) { o.collector = collector }
}

// WithKnowledgeStore replaces the knowledge store
func WithKnowledgeStore(store *knowledge.Store) Option {
	return func(o *Orchestrator) { o.knowledge = store }
}

// WithNotifier sets where team notifications go
func WithNotifier(notifier notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = notifier }
}

// WithProbe adds a named dependency check to HealthCheck
func WithProbe(name string, fn func(ctx context.Context) error) Option {
	return func(o *Orchestrator) { o.probes = append(o.probes, probe{name: name, fn: fn}) }
}

// NewOrchestrator wires the toolkit. Unset components get defaults.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg: config.DefaultWorkflowConfig(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = logging.NewNoOpLogger()
	}
	if o.patterns == nil {
		o.patterns = patterns.NewEngine(nil, patterns.WithLogger(o.logger))
	}
	if o.analyzer == nil {
		o.analyzer = analysis.NewAnalyzer()
	}
	if o.registry == nil {
		o.registry = templates.NewRegistry()
	}
	if o.collector == nil {
		o.collector = metrics.NewCollector(metrics.WithLogger(o.logger))
	}
	if o.knowledge == nil {
		o.knowledge = knowledge.NewStore(o.logger)
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.logger)
	}
	o.implementation = implementation.NewEngine(o.registry, o.logger)
	o.renderer = docs.NewRenderer()
	return o
}

// run is the mutable state of one workflow
type run struct {
	req       Request
	cfg       config.WorkflowConfig
	result    *Result
	logger    logging.Logger
	template  *templates.PatternTemplate
	knowledge []knowledge.Entry
}

// QuickFix validates req and runs the complete workflow on it
func (o *Orchestrator) QuickFix(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ErrorMessage) == "" {
		return Result{}, bugxerrors.NewRequiredFieldError("error_message")
	}
	if req.Developer == "" {
		req.Developer = "anonymous"
	}
	return o.RunCompleteWorkflow(ctx, req), nil
}

// RunCompleteWorkflow drives req through every enabled phase. It never
// returns an error: a failing phase ends the workflow in the failed state
// with safe default recommendations.
func (o *Orchestrator) RunCompleteWorkflow(ctx context.Context, req Request) Result {
	traceID := logging.GetTraceID(ctx)
	if traceID == "" {
		traceID = logging.GenerateTraceID()
		ctx = logging.WithTraceID(ctx, traceID)
	}

	r := &run{
		req: req,
		cfg: o.Config(),
		result: &Result{
			State:           PhaseInit,
			Recommendations: make([]string, 0),
			Warnings:        make([]string, 0),
			Phases:          make([]PhaseRecord, 0, 9),
			PatternAnalysis: PatternAnalysis{
				Matches:      make([]patterns.PatternMatch, 0),
				AntiPatterns: make([]patterns.DetectedAntiPattern, 0),
			},
			StartedAt: o.now(),
		},
		logger: o.logger.WithTraceID(traceID),
	}

	r.result.SessionID = o.collector.StartSession(req.Developer, req.ErrorMessage, req.Component)
	r.logger = r.logger.WithComponent("workflow")
	r.logger.InfoContext(ctx, "Workflow started", "session_id", r.result.SessionID, "developer", req.Developer)
	r.record(PhaseInit, PhaseCompleted, "", 0)

	phases := []struct {
		phase   Phase
		enabled func() (bool, string)
		fn      func(ctx context.Context, r *run) error
	}{
		{PhasePatternRecognition, enabledBy(r.cfg.PatternRecognition), o.recognizePatterns},
		{PhaseContextAnalysis, enabledBy(r.cfg.ContextAnalysis), o.analyzeContext},
		{PhaseTemplateMatch, enabledBy(r.cfg.TemplateMatching), o.matchTemplate},
		{PhaseImplementation, enabledBy(r.cfg.AIAssisted), o.generateImplementation},
		{PhaseQualityValidation, enabledBy(r.cfg.QualityValidation), o.validateQuality},
		{PhaseDocumentation, enabledBy(r.cfg.DocumentationRequired), o.document},
		{PhaseTeamNotification, func() (bool, string) { return o.shouldNotify(r) }, o.notifyTeam},
	}

	for _, p := range phases {
		r.result.State = p.phase
		if p.phase == PhaseQualityValidation {
			r.score()
		}
		if enabled, reason := p.enabled(); !enabled {
			r.record(p.phase, PhaseSkipped, reason, 0)
			continue
		}
		if err := o.runPhase(ctx, r, p.phase, p.fn); err != nil {
			return o.fail(ctx, r, p.phase, err)
		}
	}

	return o.complete(ctx, r)
}

func enabledBy(flag bool) func() (bool, string) {
	return func() (bool, string) {
		if !flag {
			return false, "disabled by configuration"
		}
		return true, ""
	}
}

// runPhase runs fn, turning panics and a done context into errors
func (o *Orchestrator) runPhase(ctx context.Context, r *run, phase Phase, fn func(ctx context.Context, r *run) error) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("phase %s panicked: %v", phase, rec)
		}
		elapsed := time.Since(start)
		if err != nil {
			r.record(phase, PhaseErrored, "", elapsed)
			r.result.Phases[len(r.result.Phases)-1].Error = err.Error()
			return
		}
		r.record(phase, PhaseCompleted, "", elapsed)
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("workflow cancelled before %s: %w", phase, err)
	}
	return fn(ctx, r)
}

func (r *run) record(phase Phase, status PhaseStatus, reason string, elapsed time.Duration) {
	r.result.Phases = append(r.result.Phases, PhaseRecord{
		Phase:      phase,
		Status:     status,
		Reason:     reason,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	})
}

func (r *run) recommend(rec string) {
	rec = strings.TrimSpace(rec)
	if rec == "" {
		return
	}
	for _, existing := range r.result.Recommendations {
		if strings.EqualFold(existing, rec) {
			return
		}
	}
	r.result.Recommendations = append(r.result.Recommendations, rec)
}

func (o *Orchestrator) recognizePatterns(ctx context.Context, r *run) error {
	r.result.PatternAnalysis = o.AnalyzePattern(r.req.ErrorMessage, r.req.StackTrace, r.req.CodeContext, r.req.FileName)
	r.logger.DebugContext(ctx, "Patterns recognised",
		"matches", len(r.result.PatternAnalysis.Matches),
		"anti_patterns", len(r.result.PatternAnalysis.AntiPatterns))
	return nil
}

func (o *Orchestrator) analyzeContext(ctx context.Context, r *run) error {
	result := o.analyzer.Analyze(analysis.Input{
		Matches:      r.result.PatternAnalysis.Matches,
		AntiPatterns: r.result.PatternAnalysis.AntiPatterns,
		ErrorMessage: r.req.ErrorMessage,
		StackTrace:   r.req.StackTrace,
	})
	r.result.ContextAnalysis = &result
	r.logger.DebugContext(ctx, "Context analysed",
		"complexity", string(result.Complexity),
		"approach", result.Approach,
		"estimated_minutes", result.EstimatedMinutes)
	return nil
}

// errorTypeKey is the template key of the error, from the context analysis
// when it ran and from the top pattern otherwise
func (r *run) errorTypeKey() string {
	if r.result.ContextAnalysis != nil {
		return r.result.ContextAnalysis.ErrorType
	}
	if top, ok := r.result.PatternAnalysis.Top(); ok && top.Signature.TemplateKey != "" {
		return top.Signature.TemplateKey
	}
	return analysis.UnknownErrorType
}

func (o *Orchestrator) matchTemplate(ctx context.Context, r *run) error {
	errorType := r.errorTypeKey()

	tmpl, err := o.registry.GetTemplate(errorType)
	switch {
	case err == nil:
		r.template = &tmpl
		r.result.TemplateUsed = tmpl.ErrorType
	case errors.Is(err, templates.ErrTemplateNotFound):
		r.logger.DebugContext(ctx, "No template for error type, using generic path", "error_type", errorType)
	default:
		return err
	}

	if errorType == analysis.UnknownErrorType {
		return nil
	}
	r.knowledge = o.knowledge.Search(errorType)
	for _, entry := range r.knowledge {
		if err := o.knowledge.RecordUsage(entry.ID); err != nil {
			r.logger.WarnContext(ctx, "Failed to record knowledge usage", "entry_id", entry.ID, "error", err)
		}
		r.recommend(fmt.Sprintf("Team knowledge (%s): %s", entry.Title, entry.Solution))
	}
	return nil
}

func (o *Orchestrator) generateImplementation(ctx context.Context, r *run) error {
	var analysisResult analysis.Result
	if r.result.ContextAnalysis != nil {
		analysisResult = *r.result.ContextAnalysis
	}

	plan, err := o.implementation.Generate(implementation.Request{
		Analysis:           analysisResult,
		Template:           r.template,
		CodeContext:        r.req.CodeContext,
		FileName:           r.req.FileName,
		Component:          r.req.Component,
		ErrorMessage:       r.req.ErrorMessage,
		Matches:            r.result.PatternAnalysis.Matches,
		AntiPatterns:       r.result.PatternAnalysis.AntiPatterns,
		PreventionRequired: r.cfg.PreventionRequired,
	})
	if err != nil {
		return err
	}
	r.result.Implementation = &plan
	r.logger.DebugContext(ctx, "Implementation generated", "steps", len(plan.Steps), "source", plan.Source)
	return nil
}

// score computes the quality score and the recommendations every completed
// workflow carries. It runs whether or not quality validation is enabled.
func (r *run) score() {
	in := QualityInput{}
	if r.result.Implementation != nil {
		in.TemplateApplied = r.result.Implementation.Source == implementation.SourceTemplate
		in.PreventionCount = len(r.result.Implementation.PreventionMeasures)
	}
	if top, ok := r.result.PatternAnalysis.Top(); ok {
		in.Confidence = top.Confidence
	}
	if r.result.ContextAnalysis != nil {
		in.Complexity = r.result.ContextAnalysis.Complexity
	}
	r.result.QualityScore = QualityScore(in)

	if top, ok := r.result.PatternAnalysis.Top(); ok {
		r.recommend(top.Signature.Recommendation)
	}
	for _, ap := range r.result.PatternAnalysis.AntiPatterns {
		r.recommend(ap.Solution)
	}
}

func (o *Orchestrator) validateQuality(ctx context.Context, r *run) error {
	if r.result.QualityScore < r.cfg.MinQualityScore {
		warning := fmt.Sprintf("Quality score %.0f is below the minimum of %.0f", r.result.QualityScore, r.cfg.MinQualityScore)
		r.result.Warnings = append(r.result.Warnings, warning)
		r.recommend("Review the fix with a teammate before merging; the generated plan is thin")
		r.logger.WarnContext(ctx, "Quality below minimum", "quality_score", r.result.QualityScore, "min_quality_score", r.cfg.MinQualityScore)
	}
	return nil
}

func (o *Orchestrator) document(ctx context.Context, r *run) error {
	rec := docs.Record{
		SessionID:       r.result.SessionID,
		Developer:       r.req.Developer,
		Component:       r.req.Component,
		FileName:        r.req.FileName,
		ErrorMessage:    r.req.ErrorMessage,
		ErrorType:       r.errorTypeKey(),
		QualityScore:    r.result.QualityScore,
		Recommendations: r.result.Recommendations,
		CreatedAt:       o.now(),
	}
	if top, ok := r.result.PatternAnalysis.Top(); ok {
		rec.PatternName = top.Signature.Name
		rec.Confidence = top.Confidence
	}
	if ca := r.result.ContextAnalysis; ca != nil {
		rec.Category = ca.ErrorCategory
		rec.Complexity = string(ca.Complexity)
		rec.EstimatedMinutes = ca.EstimatedMinutes
		rec.Approach = ca.Approach
	}
	if plan := r.result.Implementation; plan != nil {
		for _, step := range plan.Steps {
			rec.Steps = append(rec.Steps, step.Action+": "+step.Detail)
		}
		rec.Prevention = plan.PreventionMeasures
	}
	for _, ap := range r.result.PatternAnalysis.AntiPatterns {
		rec.AntiPatterns = append(rec.AntiPatterns, docs.AntiPatternNote{
			Name:     ap.Name,
			Severity: ap.Severity.String(),
			Solution: ap.Solution,
		})
	}

	markdown := o.renderer.Compose(rec)
	html, err := o.renderer.Render(markdown)
	if err != nil {
		return err
	}
	entry := o.collector.AddDocumentation(metrics.DocumentationEntry{
		SessionID: r.result.SessionID,
		Title:     docs.Title(rec.ErrorType, rec.Component),
		ErrorType: rec.ErrorType,
		Markdown:  markdown,
		HTML:      html,
		CreatedAt: rec.CreatedAt,
	})
	r.result.DocumentationCreated = true
	r.result.DocumentationID = entry.ID

	solution := strings.Join(rec.Steps, "\n")
	if solution == "" {
		solution = strings.Join(r.result.Recommendations, "\n")
	}
	if solution == "" {
		r.logger.DebugContext(ctx, "Nothing to share with the team", "session_id", r.result.SessionID)
		return nil
	}
	shared, err := o.knowledge.Share(knowledge.ShareRequest{
		Title:          entry.Title,
		ErrorSignature: rec.ErrorType,
		Solution:       solution,
		Prevention:     strings.Join(rec.Prevention, "\n"),
		SharedBy:       r.req.Developer,
		Effectiveness:  r.result.QualityScore,
	})
	if err != nil {
		return err
	}
	r.result.KnowledgeEntryID = shared.ID
	return nil
}

func (o *Orchestrator) shouldNotify(r *run) (bool, string) {
	if !r.cfg.TeamNotification {
		return false, "disabled by configuration"
	}
	if !patterns.HasCritical(r.result.PatternAnalysis.AntiPatterns) {
		return false, "no critical anti-patterns"
	}
	return true, ""
}

// notifyTeam delivers the alert. Delivery errors become warnings; a missed
// notification does not fail the fix.
func (o *Orchestrator) notifyTeam(ctx context.Context, r *run) error {
	summaries := make([]notify.AntiPatternSummary, 0, len(r.result.PatternAnalysis.AntiPatterns))
	for _, ap := range r.result.PatternAnalysis.AntiPatterns {
		if ap.Severity != patterns.SeverityCritical {
			continue
		}
		summaries = append(summaries, notify.AntiPatternSummary{
			ID:          ap.ID,
			Name:        ap.Name,
			Severity:    ap.Severity.String(),
			Occurrences: ap.Occurrences,
			Solution:    ap.Solution,
		})
	}

	n := notify.Notification{
		ID:           uuid.New().String(),
		Type:         notify.TypeCriticalAntiPattern,
		SessionID:    r.result.SessionID,
		Developer:    r.req.Developer,
		Component:    r.req.Component,
		FileName:     r.req.FileName,
		ErrorMessage: r.req.ErrorMessage,
		ErrorType:    r.errorTypeKey(),
		AntiPatterns: summaries,
		Message:      fmt.Sprintf("%d critical anti-pattern(s) found while fixing %q", len(summaries), r.req.ErrorMessage),
		Timestamp:    o.now(),
	}

	if err := o.notifier.Notify(ctx, n); err != nil {
		r.result.Warnings = append(r.result.Warnings, "Team notification failed: "+err.Error())
		r.logger.WarnContext(ctx, "Team notification failed", "session_id", r.result.SessionID, "error", err)
		return nil
	}
	r.result.TeamNotified = true
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, r *run) Result {
	r.result.State = PhaseSessionComplete
	r.result.Success = true
	r.result.CompletedAt = o.now()
	r.record(PhaseSessionComplete, PhaseCompleted, "", 0)

	o.recordTemplateUsage(ctx, r, true)
	o.collector.CompleteSession(r.result.SessionID, metrics.Outcome{
		Success:      true,
		QualityScore: r.result.QualityScore,
		Approach:     r.approach(),
		TemplateUsed: r.result.TemplateUsed,
	})

	r.logger.InfoContext(ctx, "Workflow completed",
		"session_id", r.result.SessionID,
		"quality_score", r.result.QualityScore,
		"template_used", r.result.TemplateUsed,
		"documentation_created", r.result.DocumentationCreated,
		"team_notified", r.result.TeamNotified)
	return *r.result
}

func (o *Orchestrator) fail(ctx context.Context, r *run, phase Phase, err error) Result {
	wfErr := bugxerrors.NewWorkflowError(string(phase), err)
	r.logger.ErrorContext(ctx, "Workflow failed", "session_id", r.result.SessionID, "phase", string(phase), "error", wfErr)

	r.result.State = PhaseFailed
	r.result.Success = false
	r.result.FailedPhase = phase
	r.result.Error = wfErr.Error()
	r.result.QualityScore = 0
	r.result.Recommendations = append(make([]string, 0, len(SafeRecommendations)), SafeRecommendations...)
	r.result.CompletedAt = o.now()
	r.record(PhaseFailed, PhaseCompleted, "failed in "+string(phase), 0)

	o.recordTemplateUsage(ctx, r, false)
	o.collector.CompleteSession(r.result.SessionID, metrics.Outcome{
		Success:      false,
		Approach:     r.approach(),
		TemplateUsed: r.result.TemplateUsed,
	})
	return *r.result
}

func (o *Orchestrator) recordTemplateUsage(ctx context.Context, r *run, success bool) {
	if r.template == nil {
		return
	}
	if err := o.registry.RecordTemplateUsage(r.template.ErrorType, success); err != nil {
		r.logger.WarnContext(ctx, "Failed to record template usage", "error_type", r.template.ErrorType, "error", err)
	}
}

func (r *run) approach() string {
	if r.result.ContextAnalysis != nil {
		return r.result.ContextAnalysis.Approach
	}
	return ""
}
