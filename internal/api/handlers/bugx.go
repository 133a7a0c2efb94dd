package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"bugx/internal/analysis"
	"bugx/internal/api/response"
	"bugx/internal/config"
	"bugx/internal/database"
	"bugx/internal/implementation"
	"bugx/internal/knowledge"
	"bugx/internal/logging"
	"bugx/internal/workflow"
)

// maxBodyBytes bounds request bodies; code context is the largest field
const maxBodyBytes = 1 << 20

// Toolkit is the procedural API the handlers expose
type Toolkit interface {
	QuickFix(ctx context.Context, req workflow.Request) (workflow.Result, error)
	AnalyzePattern(errorMessage, stackTrace, codeContext, fileName string) workflow.PatternAnalysis
	AnalyzeContext(req workflow.Request) analysis.Result
	GetTemplate(errorType string) (workflow.TemplateView, error)
	ListTemplates() []workflow.TemplateView
	GenerateImplementation(req workflow.ImplementationRequest) (implementation.Result, error)
	ShareWithTeam(req knowledge.ShareRequest) (knowledge.Entry, error)
	RecordFeedback(id string, helpful bool) (knowledge.Entry, error)
	ListKnowledge() []knowledge.Entry
	GetMetrics(withDocumentation bool) workflow.MetricsSnapshot
	Config() config.WorkflowConfig
	ConfigureFromMap(values map[string]interface{}) (config.WorkflowConfig, error)
}

// ActivityRecorder stores activity log rows
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, activity database.Activity) (bool, error)
}

// ErrorInput is the error description shared by the analysis requests
type ErrorInput struct {
	ErrorMessage string `json:"error_message" validate:"required,max=20000"`
	StackTrace   string `json:"stack_trace,omitempty" validate:"max=200000"`
	CodeContext  string `json:"code_context,omitempty" validate:"max=500000"`
	FileName     string `json:"file_name,omitempty" validate:"max=1024"`
	Component    string `json:"component,omitempty" validate:"max=256"`
}

func (e ErrorInput) request(developer string) workflow.Request {
	return workflow.Request{
		Developer:    developer,
		ErrorMessage: e.ErrorMessage,
		StackTrace:   e.StackTrace,
		CodeContext:  e.CodeContext,
		FileName:     e.FileName,
		Component:    e.Component,
	}
}

// QuickFixBody is the body of POST /quickfix
type QuickFixBody struct {
	ErrorInput
	Developer string `json:"developer,omitempty" validate:"max=256"`
}

// ImplementationBody is the body of POST /implementation; error_type alone
// is enough to expand a template
type ImplementationBody struct {
	ErrorMessage       string `json:"error_message" validate:"required_without=ErrorType,max=20000"`
	StackTrace         string `json:"stack_trace,omitempty"`
	CodeContext        string `json:"code_context,omitempty"`
	FileName           string `json:"file_name,omitempty"`
	Component          string `json:"component,omitempty"`
	ErrorType          string `json:"error_type,omitempty" validate:"max=128"`
	PreventionRequired *bool  `json:"prevention_required,omitempty"`
}

// ShareBody is the body of POST /knowledge
type ShareBody struct {
	Title          string   `json:"title" validate:"required,max=256"`
	ErrorSignature string   `json:"error_signature" validate:"required,max=256"`
	Solution       string   `json:"solution" validate:"required"`
	Prevention     string   `json:"prevention,omitempty"`
	SharedBy       string   `json:"shared_by,omitempty" validate:"max=256"`
	Effectiveness  *float64 `json:"effectiveness,omitempty" validate:"omitempty,min=0,max=100"`
}

// FeedbackBody is the body of POST /knowledge/{id}/feedback
type FeedbackBody struct {
	Helpful *bool `json:"helpful" validate:"required"`
}

// BugXHandler serves the debugging toolkit endpoints
type BugXHandler struct {
	toolkit   Toolkit
	activity  ActivityRecorder
	validator *validator.Validate
	logger    logging.Logger
}

// NewBugXHandler creates the handler. activity may be nil, in which case
// no activity is logged.
func NewBugXHandler(toolkit Toolkit, activity ActivityRecorder, logger logging.Logger) *BugXHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &BugXHandler{
		toolkit:   toolkit,
		activity:  activity,
		validator: validator.New(),
		logger:    logger.WithComponent("api"),
	}
}

// Routes mounts the handler endpoints on r
func (h *BugXHandler) Routes(r chi.Router) {
	r.Post("/quickfix", h.QuickFix)
	r.Post("/analyze", h.AnalyzePattern)
	r.Post("/context", h.AnalyzeContext)
	r.Post("/implementation", h.GenerateImplementation)
	r.Get("/templates", h.ListTemplates)
	r.Get("/templates/{errorType}", h.GetTemplate)
	r.Get("/knowledge", h.ListKnowledge)
	r.Post("/knowledge", h.ShareKnowledge)
	r.Post("/knowledge/{id}/feedback", h.KnowledgeFeedback)
	r.Get("/metrics", h.GetMetrics)
	r.Get("/config", h.GetConfig)
	r.Put("/config", h.Configure)
}

// QuickFix runs the complete workflow. A failed workflow is still a 200: the
// result carries the failure and the safe recommendations.
func (h *BugXHandler) QuickFix(w http.ResponseWriter, r *http.Request) {
	var body QuickFixBody
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.toolkit.QuickFix(r.Context(), body.request(body.Developer))
	if err != nil {
		response.WriteStandardError(w, err)
		return
	}

	h.recordActivity(r.Context(), result, body)
	response.WriteSuccess(w, result)
}

// AnalyzePattern matches the error against the pattern library
func (h *BugXHandler) AnalyzePattern(w http.ResponseWriter, r *http.Request) {
	var body ErrorInput
	if !h.decode(w, r, &body) {
		return
	}
	response.WriteSuccess(w, h.toolkit.AnalyzePattern(body.ErrorMessage, body.StackTrace, body.CodeContext, body.FileName))
}

// AnalyzeContext classifies complexity and recommends an approach
func (h *BugXHandler) AnalyzeContext(w http.ResponseWriter, r *http.Request) {
	var body ErrorInput
	if !h.decode(w, r, &body) {
		return
	}
	response.WriteSuccess(w, h.toolkit.AnalyzeContext(body.request("")))
}

// GenerateImplementation expands a fix plan
func (h *BugXHandler) GenerateImplementation(w http.ResponseWriter, r *http.Request) {
	var body ImplementationBody
	if !h.decode(w, r, &body) {
		return
	}

	plan, err := h.toolkit.GenerateImplementation(workflow.ImplementationRequest{
		Request: workflow.Request{
			ErrorMessage: body.ErrorMessage,
			StackTrace:   body.StackTrace,
			CodeContext:  body.CodeContext,
			FileName:     body.FileName,
			Component:    body.Component,
		},
		ErrorType:          body.ErrorType,
		PreventionRequired: body.PreventionRequired,
	})
	if err != nil {
		response.WriteStandardError(w, err)
		return
	}
	response.WriteSuccess(w, plan)
}

// ListTemplates returns every template with its usage
func (h *BugXHandler) ListTemplates(w http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(w, h.toolkit.ListTemplates())
}

// GetTemplate returns one template; unknown error types are a 404
func (h *BugXHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	view, err := h.toolkit.GetTemplate(chi.URLParam(r, "errorType"))
	if err != nil {
		response.WriteStandardError(w, err)
		return
	}
	response.WriteSuccess(w, view)
}

// ListKnowledge returns the shared entries
func (h *BugXHandler) ListKnowledge(w http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(w, h.toolkit.ListKnowledge())
}

// ShareKnowledge adds a knowledge entry
func (h *BugXHandler) ShareKnowledge(w http.ResponseWriter, r *http.Request) {
	var body ShareBody
	if !h.decode(w, r, &body) {
		return
	}

	req := knowledge.ShareRequest{
		Title:          body.Title,
		ErrorSignature: body.ErrorSignature,
		Solution:       body.Solution,
		Prevention:     body.Prevention,
		SharedBy:       body.SharedBy,
	}
	if body.Effectiveness != nil {
		req.Effectiveness = *body.Effectiveness
	}

	entry, err := h.toolkit.ShareWithTeam(req)
	if err != nil {
		response.WriteStandardError(w, err)
		return
	}
	response.WriteCreated(w, entry)
}

// KnowledgeFeedback rates an entry
func (h *BugXHandler) KnowledgeFeedback(w http.ResponseWriter, r *http.Request) {
	var body FeedbackBody
	if !h.decode(w, r, &body) {
		return
	}

	entry, err := h.toolkit.RecordFeedback(chi.URLParam(r, "id"), *body.Helpful)
	if err != nil {
		response.WriteStandardError(w, err)
		return
	}
	response.WriteSuccess(w, entry)
}

// GetMetrics reports the aggregates; ?documentation=true adds the log
func (h *BugXHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	withDocs := false
	if raw := r.URL.Query().Get("documentation"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.WriteValidationError(w, "documentation must be a boolean", raw)
			return
		}
		withDocs = parsed
	}
	response.WriteSuccess(w, h.toolkit.GetMetrics(withDocs))
}

// GetConfig returns the workflow configuration
func (h *BugXHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	response.WriteSuccess(w, h.toolkit.Config())
}

// Configure merges a partial configuration object
func (h *BugXHandler) Configure(w http.ResponseWriter, r *http.Request) {
	var values map[string]interface{}
	if !h.decodeJSON(w, r, &values) {
		return
	}
	if len(values) == 0 {
		response.WriteValidationError(w, "configuration update is empty")
		return
	}

	cfg, err := h.toolkit.ConfigureFromMap(values)
	if err != nil {
		response.WriteStandardError(w, err)
		return
	}
	response.WriteSuccess(w, cfg, "configuration updated")
}

// decode reads and validates a JSON body, writing the error response itself
func (h *BugXHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !h.decodeJSON(w, r, dst) {
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.WriteValidationError(w, "Request validation failed", describeValidation(err))
		return false
	}
	return true
}

func (h *BugXHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		response.WriteBadRequest(w, "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// describeValidation turns validator errors into "field: rule" pairs
func describeValidation(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// recordActivity logs a completed workflow. A datastore that is not ready
// skips the write; a failing insert only logs.
func (h *BugXHandler) recordActivity(ctx context.Context, result workflow.Result, body QuickFixBody) {
	if h.activity == nil {
		return
	}

	written, err := h.activity.RecordActivity(ctx, database.Activity{
		Action:  "bugx_quickfix",
		Details: truncate(body.ErrorMessage, 500),
		Metadata: map[string]interface{}{
			"session_id":    result.SessionID,
			"developer":     body.Developer,
			"success":       result.Success,
			"quality_score": result.QualityScore,
			"template_used": result.TemplateUsed,
		},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to record activity", "session_id", result.SessionID, "error", err)
		return
	}
	if !written {
		h.logger.DebugContext(ctx, "Activity not recorded, datastore not ready", "session_id", result.SessionID)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
