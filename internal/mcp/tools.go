package mcp

import (
	"context"
	"fmt"
	"strings"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/go-viper/mapstructure/v2"

	bugxerrors "bugx/internal/errors"
	"bugx/internal/knowledge"
	"bugx/internal/workflow"
)

// Tool names
const (
	ToolQuickFix          = "bugx_quick_fix"
	ToolAnalyzePattern    = "bugx_analyze_pattern"
	ToolGetTemplate       = "bugx_get_template"
	ToolShareKnowledge    = "bugx_share_knowledge"
	ToolKnowledgeFeedback = "bugx_knowledge_feedback"
	ToolMetrics           = "bugx_metrics"
	ToolConfigure         = "bugx_configure"
	ToolHealth            = "bugx_health"
)

// ToolNames lists every registered tool in registration order
func ToolNames() []string {
	return []string{
		ToolQuickFix, ToolAnalyzePattern, ToolGetTemplate, ToolShareKnowledge,
		ToolKnowledgeFeedback, ToolMetrics, ToolConfigure, ToolHealth,
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func errorProps() map[string]interface{} {
	return map[string]interface{}{
		"error_message": stringProp("The error message as reported by the browser, server or test runner"),
		"stack_trace":   stringProp("Stack trace, if any"),
		"code_context":  stringProp("Source around the failing line. Used for anti-pattern detection"),
		"file_name":     stringProp("File the error points at, e.g. 'UserProfile.tsx'"),
		"component":     stringProp("Component or module name"),
	}
}

// registerTools registers the BugX tools
func (s *Server) registerTools() {
	quickFix := errorProps()
	quickFix["developer"] = stringProp("Who is debugging. Recorded on the session")

	s.mcpServer.AddTool(mcp.NewTool(
		ToolQuickFix,
		"Run the full BugX debugging workflow for an error: recognise known error patterns, detect anti-patterns in the code, pick a fix template, produce ordered fix steps with prevention measures, score the fix and document it for the team.",
		mcp.ObjectSchema("Quick fix parameters", quickFix, []string{"error_message"}),
	), mcp.ToolHandlerFunc(s.handleQuickFix))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolAnalyzePattern,
		"Match an error against the pattern library and detect anti-patterns in the code context, without opening a workflow session.",
		mcp.ObjectSchema("Pattern analysis parameters", errorProps(), []string{"error_message"}),
	), mcp.ToolHandlerFunc(s.handleAnalyzePattern))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolGetTemplate,
		"Fetch the fix template for an error type (e.g. 'hydration-mismatch') together with its usage counters.",
		mcp.ObjectSchema("Template lookup parameters", map[string]interface{}{
			"error_type": stringProp("Template key, as reported in pattern matches"),
		}, []string{"error_type"}),
	), mcp.ToolHandlerFunc(s.handleGetTemplate))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolShareKnowledge,
		"Share a resolution with the team. Later workflows with the same error signature surface it as a recommendation.",
		mcp.ObjectSchema("Knowledge entry", map[string]interface{}{
			"title":           stringProp("Short title of the resolution"),
			"error_signature": stringProp("Error type the resolution applies to"),
			"solution":        stringProp("What fixed it"),
			"prevention":      stringProp("How to keep it from coming back"),
			"shared_by":       stringProp("Author"),
			"effectiveness": map[string]interface{}{
				"type":        "number",
				"minimum":     knowledge.MinEffectiveness,
				"maximum":     knowledge.MaxEffectiveness,
				"description": "Initial effectiveness score, defaults to 50",
			},
		}, []string{"title", "error_signature", "solution"}),
	), mcp.ToolHandlerFunc(s.handleShareKnowledge))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolKnowledgeFeedback,
		"Rate a shared knowledge entry. Helpful feedback raises its effectiveness, unhelpful feedback lowers it.",
		mcp.ObjectSchema("Feedback parameters", map[string]interface{}{
			"id":      stringProp("Knowledge entry id"),
			"helpful": map[string]interface{}{"type": "boolean", "description": "Whether the entry helped"},
		}, []string{"id", "helpful"}),
	), mcp.ToolHandlerFunc(s.handleKnowledgeFeedback))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolMetrics,
		"Report workflow metrics: session totals, success rate, average resolution time and quality, template usage.",
		mcp.ObjectSchema("Metrics parameters", map[string]interface{}{
			"documentation": map[string]interface{}{
				"type":        "boolean",
				"default":     false,
				"description": "Include the generated documentation entries",
			},
		}, []string{}),
	), mcp.ToolHandlerFunc(s.handleMetrics))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolConfigure,
		"Change the workflow configuration at runtime. Only the given keys change. Without parameters the current configuration is returned.",
		mcp.ObjectSchema("Workflow configuration", map[string]interface{}{
			"ai_assisted":            map[string]interface{}{"type": "boolean"},
			"pattern_recognition":    map[string]interface{}{"type": "boolean"},
			"context_analysis":       map[string]interface{}{"type": "boolean"},
			"template_matching":      map[string]interface{}{"type": "boolean"},
			"quality_validation":     map[string]interface{}{"type": "boolean"},
			"documentation_required": map[string]interface{}{"type": "boolean"},
			"prevention_required":    map[string]interface{}{"type": "boolean"},
			"team_notification":      map[string]interface{}{"type": "boolean"},
			"min_quality_score":      map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
		}, []string{}),
	), mcp.ToolHandlerFunc(s.handleConfigure))

	s.mcpServer.AddTool(mcp.NewTool(
		ToolHealth,
		"Run the toolkit diagnostics. The random value consistency diagnostic always fails and is reported as an expected failure.",
		mcp.ObjectSchema("Health parameters", map[string]interface{}{}, []string{}),
	), mcp.ToolHandlerFunc(s.handleHealth))

	s.logger.Info("MCP tools registered", "count", len(ToolNames()))
}

// decodeParams copies params into target. Numbers and booleans sent as
// strings are converted.
func decodeParams(params map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return bugxerrors.NewInternalError("failed to create parameter decoder", err)
	}
	if err := decoder.Decode(params); err != nil {
		return bugxerrors.NewValidationError("params", fmt.Sprintf("invalid parameters: %v", err), nil)
	}
	return nil
}

func requireString(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", bugxerrors.NewRequiredFieldError(key)
	}
	return v, nil
}

// toolError converts err for the client, keeping its code
func (s *Server) toolError(ctx context.Context, tool string, err error) error {
	stdErr := bugxerrors.FromError(err).WithProtocol("mcp")
	s.logger.WarnContext(ctx, "Tool call failed", "tool", tool, "code", stdErr.ErrorInfo.Code, "error", err)
	return stdErr
}

func (s *Server) decodeRequest(params map[string]interface{}) (workflow.Request, error) {
	if _, err := requireString(params, "error_message"); err != nil {
		return workflow.Request{}, err
	}
	var req workflow.Request
	if err := decodeParams(params, &req); err != nil {
		return workflow.Request{}, err
	}
	return req, nil
}

func (s *Server) handleQuickFix(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	req, err := s.decodeRequest(params)
	if err != nil {
		return nil, s.toolError(ctx, ToolQuickFix, err)
	}
	if req.Developer == "" {
		req.Developer = "mcp-client"
	}

	result, err := s.orchestrator.QuickFix(ctx, req)
	if err != nil {
		return nil, s.toolError(ctx, ToolQuickFix, err)
	}
	// a failed workflow is still a result: it carries safe recommendations
	return result, nil
}

func (s *Server) handleAnalyzePattern(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	req, err := s.decodeRequest(params)
	if err != nil {
		return nil, s.toolError(ctx, ToolAnalyzePattern, err)
	}

	found := s.orchestrator.AnalyzePattern(req.ErrorMessage, req.StackTrace, req.CodeContext, req.FileName)
	return map[string]interface{}{
		"pattern_analysis": found,
		"context_analysis": s.orchestrator.AnalyzeContext(req),
	}, nil
}

func (s *Server) handleGetTemplate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	errorType, err := requireString(params, "error_type")
	if err != nil {
		return nil, s.toolError(ctx, ToolGetTemplate, err)
	}

	view, err := s.orchestrator.GetTemplate(errorType)
	if err != nil {
		return nil, s.toolError(ctx, ToolGetTemplate, err)
	}
	return view, nil
}

func (s *Server) handleShareKnowledge(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var req knowledge.ShareRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, s.toolError(ctx, ToolShareKnowledge, err)
	}

	entry, err := s.orchestrator.ShareWithTeam(req)
	if err != nil {
		return nil, s.toolError(ctx, ToolShareKnowledge, err)
	}
	return entry, nil
}

func (s *Server) handleKnowledgeFeedback(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id, err := requireString(params, "id")
	if err != nil {
		return nil, s.toolError(ctx, ToolKnowledgeFeedback, err)
	}
	if _, ok := params["helpful"]; !ok {
		return nil, s.toolError(ctx, ToolKnowledgeFeedback, bugxerrors.NewRequiredFieldError("helpful"))
	}
	var body struct {
		Helpful bool `mapstructure:"helpful"`
	}
	if err := decodeParams(params, &body); err != nil {
		return nil, s.toolError(ctx, ToolKnowledgeFeedback, err)
	}

	entry, err := s.orchestrator.RecordFeedback(id, body.Helpful)
	if err != nil {
		return nil, s.toolError(ctx, ToolKnowledgeFeedback, err)
	}
	return entry, nil
}

func (s *Server) handleMetrics(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var opts struct {
		Documentation bool `mapstructure:"documentation"`
	}
	if err := decodeParams(params, &opts); err != nil {
		return nil, s.toolError(ctx, ToolMetrics, err)
	}
	return s.orchestrator.GetMetrics(opts.Documentation), nil
}

func (s *Server) handleConfigure(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if len(params) == 0 {
		return s.orchestrator.Config(), nil
	}

	cfg, err := s.orchestrator.ConfigureFromMap(params)
	if err != nil {
		return nil, s.toolError(ctx, ToolConfigure, err)
	}
	return cfg, nil
}

func (s *Server) handleHealth(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return s.orchestrator.HealthCheck(ctx), nil
}
