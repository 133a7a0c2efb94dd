package docs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIGenerator_Generate(t *testing.T) {
	doc, err := NewOpenAPIGenerator("http://localhost:8080").Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Equal(t, "BugX API", doc.Info.Title)
	require.Len(t, doc.Servers, 1)

	for _, path := range []string{
		"/api/v1/bugx/quickfix",
		"/api/v1/bugx/templates/{errorType}",
		"/api/v1/bugx/knowledge/{id}/feedback",
		"/health",
		"/api/setup",
	} {
		assert.NotNil(t, doc.Paths.Value(path), path)
	}

	setup := doc.Paths.Value("/api/setup")
	assert.NotNil(t, setup.Get)
	assert.NotNil(t, setup.Post)
	assert.Equal(t, len(routes()), CountOperations(doc))

	for _, name := range []string{"WorkflowResult", "KnowledgeEntry", "Error", "HealthReport"} {
		assert.Contains(t, doc.Components.Schemas, name)
	}
}

func TestSwaggerUIHandler(t *testing.T) {
	h := NewSwaggerUIHandler(NewOpenAPIGenerator(""), "/openapi.json", nil)

	rec := httptest.NewRecorder()
	h.ServeSpec(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var spec map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Equal(t, "3.0.3", spec["openapi"])
	assert.Contains(t, spec["paths"], "/api/v1/bugx/quickfix")

	rec = httptest.NewRecorder()
	h.ServeUI(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "url: '/openapi.json'")
}
