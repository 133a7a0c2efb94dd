package docs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// APIVersion is the version advertised in the OpenAPI document
const APIVersion = "1.0.0"

// OpenAPIGenerator builds the OpenAPI 3 document of the HTTP API
type OpenAPIGenerator struct {
	serverURL string
}

// NewOpenAPIGenerator creates a generator. serverURL may be empty.
func NewOpenAPIGenerator(serverURL string) *OpenAPIGenerator {
	return &OpenAPIGenerator{serverURL: serverURL}
}

// Generate builds and validates the document
func (g *OpenAPIGenerator) Generate(ctx context.Context) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "BugX API",
			Version:     APIVersion,
			Description: "Error pattern recognition, fix templates, debugging workflows and team knowledge.",
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: components},
		Tags: openapi3.Tags{
			{Name: "workflow", Description: "Debugging workflows"},
			{Name: "patterns", Description: "Pattern recognition and context analysis"},
			{Name: "templates", Description: "Fix templates"},
			{Name: "knowledge", Description: "Team knowledge"},
			{Name: "system", Description: "Health, metrics and setup"},
		},
	}
	if g.serverURL != "" {
		doc.Servers = openapi3.Servers{{URL: g.serverURL}}
	}

	for _, route := range routes() {
		item := doc.Paths.Value(route.path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(route.path, item)
		}
		item.SetOperation(route.method, route.operation())
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}

// CountOperations returns the number of operations in doc
func CountOperations(doc *openapi3.T) int {
	count := 0
	for _, item := range doc.Paths.Map() {
		count += len(item.Operations())
	}
	return count
}

type route struct {
	method      string
	path        string
	id          string
	tag         string
	summary     string
	pathParam   string
	request     string
	response    string
	errors      []int
	contentType string
}

func (r route) operation() *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = r.id
	op.Summary = r.summary
	op.Tags = []string{r.tag}

	if r.pathParam != "" {
		op.Parameters = openapi3.Parameters{
			{Value: openapi3.NewPathParameter(r.pathParam).WithSchema(openapi3.NewStringSchema())},
		}
	}
	if r.request != "" {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(schemaRef(r.request)),
		}
	}

	ok := openapi3.NewResponse().WithDescription("Success")
	switch {
	case r.response != "":
		ok = ok.WithJSONSchemaRef(schemaRef(r.response))
	case r.contentType != "":
		ok = ok.WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{r.contentType}))
	}

	op.Responses = openapi3.NewResponses(openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: ok}))
	for _, status := range r.errors {
		op.Responses.Set(fmt.Sprint(status), &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(http.StatusText(status)).
				WithJSONSchemaRef(schemaRef("Error")),
		})
	}
	return op
}

func routes() []route {
	return []route{
		{method: http.MethodPost, path: "/api/v1/bugx/quickfix", id: "quickFix", tag: "workflow", summary: "Run the complete debugging workflow for an error", request: "QuickFixRequest", response: "WorkflowResult", errors: []int{400}},
		{method: http.MethodPost, path: "/api/v1/bugx/analyze", id: "analyzePattern", tag: "patterns", summary: "Match an error against the pattern library", request: "AnalyzeRequest", response: "PatternAnalysis", errors: []int{400}},
		{method: http.MethodPost, path: "/api/v1/bugx/context", id: "analyzeContext", tag: "patterns", summary: "Classify complexity and recommend an approach", request: "AnalyzeRequest", response: "ContextAnalysis", errors: []int{400}},
		{method: http.MethodPost, path: "/api/v1/bugx/implementation", id: "generateImplementation", tag: "templates", summary: "Expand a fix into concrete steps", request: "ImplementationRequest", response: "Implementation", errors: []int{400}},
		{method: http.MethodGet, path: "/api/v1/bugx/templates", id: "listTemplates", tag: "templates", summary: "List fix templates with usage", response: "TemplateList"},
		{method: http.MethodGet, path: "/api/v1/bugx/templates/{errorType}", id: "getTemplate", tag: "templates", summary: "Get the fix template of an error type", pathParam: "errorType", response: "Template", errors: []int{404}},
		{method: http.MethodGet, path: "/api/v1/bugx/knowledge", id: "listKnowledge", tag: "knowledge", summary: "List shared team knowledge", response: "KnowledgeList"},
		{method: http.MethodPost, path: "/api/v1/bugx/knowledge", id: "shareKnowledge", tag: "knowledge", summary: "Share a resolution with the team", request: "ShareRequest", response: "KnowledgeEntry", errors: []int{400}},
		{method: http.MethodPost, path: "/api/v1/bugx/knowledge/{id}/feedback", id: "knowledgeFeedback", tag: "knowledge", summary: "Rate a knowledge entry", pathParam: "id", request: "FeedbackRequest", response: "KnowledgeEntry", errors: []int{400, 404}},
		{method: http.MethodGet, path: "/api/v1/bugx/metrics", id: "getMetrics", tag: "system", summary: "Aggregate workflow metrics", response: "MetricsReport"},
		{method: http.MethodGet, path: "/api/v1/bugx/config", id: "getConfig", tag: "system", summary: "Current workflow configuration", response: "WorkflowConfig"},
		{method: http.MethodPut, path: "/api/v1/bugx/config", id: "configure", tag: "system", summary: "Update the workflow configuration", request: "ConfigUpdate", response: "WorkflowConfig", errors: []int{400}},
		{method: http.MethodGet, path: "/health", id: "healthCheck", tag: "system", summary: "Run the toolkit diagnostics", response: "HealthReport"},
		{method: http.MethodGet, path: "/api/setup", id: "setupUsage", tag: "system", summary: "Datastore setup usage", contentType: "text/plain"},
		{method: http.MethodPost, path: "/api/setup", id: "setup", tag: "system", summary: "Create the datastore schema", response: "SetupReport", errors: []int{503}},
	}
}

var components = componentSchemas()

func schemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, components[name].Value)
}

func str() *openapi3.Schema     { return openapi3.NewStringSchema() }
func num() *openapi3.Schema     { return openapi3.NewFloat64Schema() }
func integer() *openapi3.Schema { return openapi3.NewIntegerSchema() }
func boolean() *openapi3.Schema { return openapi3.NewBoolSchema() }
func object() *openapi3.Schema  { return openapi3.NewObjectSchema() }

func stringList() *openapi3.Schema {
	return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
}

func componentSchemas() openapi3.Schemas {
	errorInput := map[string]*openapi3.Schema{
		"error_message": str(),
		"stack_trace":   str(),
		"code_context":  str(),
		"file_name":     str(),
		"component":     str(),
	}

	quickFix := object().WithProperties(errorInput).WithProperty("developer", str())
	quickFix.Required = []string{"error_message"}

	analyze := object().WithProperties(errorInput)
	analyze.Required = []string{"error_message"}

	implementation := object().WithProperties(errorInput).
		WithProperty("error_type", str()).
		WithProperty("prevention_required", boolean())
	implementation.Required = []string{"error_message"}

	share := object().
		WithProperty("title", str()).
		WithProperty("error_signature", str()).
		WithProperty("solution", str()).
		WithProperty("prevention", str()).
		WithProperty("shared_by", str()).
		WithProperty("effectiveness", num())
	share.Required = []string{"title", "error_signature", "solution"}

	feedback := object().WithProperty("helpful", boolean())
	feedback.Required = []string{"helpful"}

	workflowConfig := object().
		WithProperty("ai_assisted", boolean()).
		WithProperty("pattern_recognition", boolean()).
		WithProperty("context_analysis", boolean()).
		WithProperty("template_matching", boolean()).
		WithProperty("quality_validation", boolean()).
		WithProperty("documentation_required", boolean()).
		WithProperty("prevention_required", boolean()).
		WithProperty("team_notification", boolean()).
		WithProperty("min_quality_score", num())

	configUpdate := object().WithAnyAdditionalProperties()

	match := object().
		WithProperty("pattern_id", str()).
		WithProperty("name", str()).
		WithProperty("category", str()).
		WithProperty("confidence", num()).
		WithProperty("matched_keywords", stringList()).
		WithProperty("recommendation", str())

	antiPattern := object().
		WithProperty("id", str()).
		WithProperty("name", str()).
		WithProperty("severity", openapi3.NewStringSchema().WithEnum("low", "medium", "high", "critical")).
		WithProperty("impact", str()).
		WithProperty("solution", str()).
		WithProperty("occurrences", integer())

	patternAnalysis := object().
		WithProperty("matches", openapi3.NewArraySchema().WithItems(match)).
		WithProperty("anti_patterns", openapi3.NewArraySchema().WithItems(antiPattern))

	contextAnalysis := object().
		WithProperty("complexity", openapi3.NewStringSchema().WithEnum("simple", "moderate", "complex")).
		WithProperty("complexity_points", integer()).
		WithProperty("estimated_minutes", integer()).
		WithProperty("approach", str()).
		WithProperty("approach_detail", str()).
		WithProperty("error_category", str()).
		WithProperty("error_type", str())

	step := object().
		WithProperty("order", integer()).
		WithProperty("action", str()).
		WithProperty("detail", str()).
		WithProperty("source", str())

	implementationResult := object().
		WithProperty("steps", openapi3.NewArraySchema().WithItems(step)).
		WithProperty("prevention_measures", stringList()).
		WithProperty("source", str())

	phase := object().
		WithProperty("phase", str()).
		WithProperty("status", openapi3.NewStringSchema().WithEnum("completed", "skipped", "failed")).
		WithProperty("duration_ms", num()).
		WithProperty("error", str())

	workflowResult := object().
		WithProperty("session_id", str()).
		WithProperty("success", boolean()).
		WithProperty("state", str()).
		WithProperty("quality_score", num()).
		WithProperty("template_used", str()).
		WithProperty("documentation_created", boolean()).
		WithProperty("team_notified", boolean()).
		WithProperty("recommendations", stringList()).
		WithProperty("warnings", stringList()).
		WithProperty("phases", openapi3.NewArraySchema().WithItems(phase)).
		WithProperty("pattern_analysis", patternAnalysis).
		WithProperty("context_analysis", contextAnalysis).
		WithProperty("implementation", implementationResult)

	template := object().
		WithProperty("name", str()).
		WithProperty("error_type", str()).
		WithProperty("description", str()).
		WithProperty("steps", openapi3.NewArraySchema().WithItems(object().WithProperty("action", str()).WithProperty("detail", str()))).
		WithProperty("prevention", stringList()).
		WithProperty("usage", object().WithProperty("usage_count", integer()).WithProperty("success_count", integer()))

	entry := object().
		WithProperty("id", str()).
		WithProperty("title", str()).
		WithProperty("error_signature", str()).
		WithProperty("solution", str()).
		WithProperty("prevention", str()).
		WithProperty("shared_by", str()).
		WithProperty("timestamp", openapi3.NewDateTimeSchema()).
		WithProperty("usage_count", integer()).
		WithProperty("effectiveness", num()).
		WithProperty("feedback", object().WithProperty("helpful", integer()).WithProperty("not_helpful", integer()))

	sessions := object().
		WithProperty("total_sessions", integer()).
		WithProperty("active_sessions", integer()).
		WithProperty("completed_sessions", integer()).
		WithProperty("success_rate", num()).
		WithProperty("average_resolution_minutes", num()).
		WithProperty("average_quality_score", num()).
		WithProperty("approach_breakdown", object().WithAdditionalProperties(integer())).
		WithProperty("documentation_count", integer())

	usage := object().
		WithProperty("error_type", str()).
		WithProperty("usage_count", integer()).
		WithProperty("success_count", integer())

	metrics := object().
		WithProperty("sessions", sessions).
		WithProperty("template_usage", openapi3.NewArraySchema().WithItems(usage)).
		WithProperty("knowledge_entries", integer()).
		WithProperty("documentation", openapi3.NewArraySchema().WithItems(object().WithAnyAdditionalProperties()))

	diagnostic := object().
		WithProperty("name", str()).
		WithProperty("passed", boolean()).
		WithProperty("expected_failure", boolean()).
		WithProperty("message", str())

	health := object().
		WithProperty("status", openapi3.NewStringSchema().WithEnum("healthy", "degraded")).
		WithProperty("diagnostics", openapi3.NewArraySchema().WithItems(diagnostic)).
		WithProperty("datastore", object().WithAnyAdditionalProperties())

	setup := object().
		WithProperty("driver", str()).
		WithProperty("tables", stringList()).
		WithProperty("indexes", stringList()).
		WithProperty("demo_user_created", boolean())

	errorBody := object().WithProperty("error", object().
		WithProperty("code", str()).
		WithProperty("message", str()).
		WithProperty("details", object().WithAnyAdditionalProperties()))

	named := map[string]*openapi3.Schema{
		"QuickFixRequest":       quickFix,
		"AnalyzeRequest":        analyze,
		"ImplementationRequest": implementation,
		"ShareRequest":          share,
		"FeedbackRequest":       feedback,
		"ConfigUpdate":          configUpdate,
		"WorkflowConfig":        workflowConfig,
		"PatternAnalysis":       patternAnalysis,
		"ContextAnalysis":       contextAnalysis,
		"Implementation":        implementationResult,
		"WorkflowResult":        workflowResult,
		"Template":              template,
		"TemplateList":          openapi3.NewArraySchema().WithItems(template),
		"KnowledgeEntry":        entry,
		"KnowledgeList":         openapi3.NewArraySchema().WithItems(entry),
		"MetricsReport":         metrics,
		"HealthReport":          health,
		"SetupReport":           setup,
		"Error":                 errorBody,
	}

	schemas := make(openapi3.Schemas, len(named))
	for name, schema := range named {
		schemas[name] = openapi3.NewSchemaRef("", schema)
	}
	return schemas
}
