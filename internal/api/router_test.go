package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bugx/internal/config"
	"bugx/internal/database"
	"bugx/internal/metrics"
	"bugx/internal/notify"
	"bugx/internal/workflow"
)

const hydrationCode = `const [id] = useState(Math.random())
return <div id={id}>Profile</div>`

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	router    *Router
	datastore *database.Datastore
	registry  *prometheus.Registry
}

func newTestServer(t *testing.T, withDatastore bool) *testServer {
	t.Helper()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.WithRegisterer(registry))
	orchestrator := workflow.NewOrchestrator(
		workflow.WithCollector(collector),
		workflow.WithNotifier(notify.NotifierFunc(func(context.Context, notify.Notification) error { return nil })),
	)

	ts := &testServer{registry: registry}
	deps := Dependencies{Orchestrator: orchestrator, Registry: registry}
	if withDatastore {
		db, dialect, err := database.Open(context.Background(), config.DatabaseConfig{
			Driver:       database.DriverSQLite,
			DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
			MaxOpenConns: 4,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		ts.datastore = database.NewDatastore(db, dialect, database.BootstrapOptions{
			SeedDemoUser: true,
			DemoEmail:    "admin@bugx.local",
			DemoPassword: "s3cret",
			HashCost:     bcrypt.MinCost,
		}, nil)
		deps.Datastore = ts.datastore
	}

	ts.router = NewRouter(config.DefaultConfig(), deps)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.Handler().ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRootAndNotFound(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"server":"bugx"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, env = ts.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, _ = ts.do(t, http.MethodDelete, "/api/v1/bugx/templates", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestQuickFixEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := ts.do(t, http.MethodPost, "/api/v1/bugx/quickfix", map[string]string{
		"developer":     "dana",
		"error_message": "Hydration failed because the server rendered text didn't match the client",
		"code_context":  hydrationCode,
		"file_name":     "UserProfile.tsx",
		"component":     "UserProfile",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result workflow.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Success)
	assert.True(t, result.DocumentationCreated)
	assert.Equal(t, "hydration-mismatch", result.TemplateUsed)
	assert.NotEmpty(t, result.SessionID)
}

func TestQuickFixEndpoint_Validation(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := ts.do(t, http.MethodPost, "/api/v1/bugx/quickfix", map[string]string{"developer": "dana"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bugx/quickfix", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.router.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuickFixEndpoint_RecordsActivity(t *testing.T) {
	ts := newTestServer(t, true)

	body := map[string]string{"developer": "sam", "error_message": "Cannot read properties of undefined (reading 'map')"}

	// Not bootstrapped yet: the workflow still runs, the activity write is skipped
	w, _ := ts.do(t, http.MethodPost, "/api/v1/bugx/quickfix", body)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/setup", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodPost, "/api/v1/bugx/quickfix", body)
	require.Equal(t, http.StatusOK, w.Code)

	activity, err := ts.datastore.RecentActivity(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "bugx_quickfix", activity[0].Action)
	assert.Equal(t, "sam", activity[0].Metadata["developer"])
}

func TestAnalysisEndpoints(t *testing.T) {
	ts := newTestServer(t, false)
	input := map[string]string{
		"error_message": "Hydration failed because the server rendered text didn't match the client",
		"code_context":  hydrationCode,
		"file_name":     "UserProfile.tsx",
	}

	w, env := ts.do(t, http.MethodPost, "/api/v1/bugx/analyze", input)
	require.Equal(t, http.StatusOK, w.Code)
	var found workflow.PatternAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.NotEmpty(t, found.Matches)
	assert.Equal(t, "hydration", found.Matches[0].Signature.Category)
	assert.NotEmpty(t, found.AntiPatterns)

	w, env = ts.do(t, http.MethodPost, "/api/v1/bugx/context", input)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"error_type":"hydration-mismatch"`)

	w, env = ts.do(t, http.MethodPost, "/api/v1/bugx/implementation", map[string]interface{}{
		"error_type":          "null-reference",
		"prevention_required": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"source":"template"`)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/bugx/implementation", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplateEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := ts.do(t, http.MethodGet, "/api/v1/bugx/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []workflow.TemplateView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.NotEmpty(t, list)

	w, env = ts.do(t, http.MethodGet, "/api/v1/bugx/templates/hydration-mismatch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"error_type":"hydration-mismatch"`)

	w, env = ts.do(t, http.MethodGet, "/api/v1/bugx/templates/type-error", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestKnowledgeEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	w, _ := ts.do(t, http.MethodPost, "/api/v1/bugx/knowledge", map[string]string{"title": "incomplete"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := ts.do(t, http.MethodPost, "/api/v1/bugx/knowledge", map[string]interface{}{
		"title":           "Stale session cookie",
		"error_signature": "auth-session",
		"solution":        "Clear the cookie on logout",
		"shared_by":       "sam",
		"effectiveness":   60,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry struct {
		ID            string  `json:"id"`
		Effectiveness float64 `json:"effectiveness"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, 60.0, entry.Effectiveness)

	w, env = ts.do(t, http.MethodPost, "/api/v1/bugx/knowledge/"+entry.ID+"/feedback", map[string]bool{"helpful": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"effectiveness":50`)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/bugx/knowledge/"+entry.ID+"/feedback", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/v1/bugx/knowledge/missing/feedback", map[string]bool{"helpful": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = ts.do(t, http.MethodGet, "/api/v1/bugx/knowledge", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Stale session cookie")
}

func TestConfigEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := ts.do(t, http.MethodGet, "/api/v1/bugx/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"min_quality_score":70`)

	w, env = ts.do(t, http.MethodPut, "/api/v1/bugx/config", map[string]interface{}{"team_notification": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"team_notification":false`)

	w, env = ts.do(t, http.MethodPut, "/api/v1/bugx/config", map[string]interface{}{"min_quality_score": 250})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/v1/bugx/config", map[string]interface{}{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/v1/bugx/config", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodPost, "/api/v1/bugx/quickfix", map[string]string{"error_message": "Maximum update depth exceeded"})

	w, env := ts.do(t, http.MethodGet, "/api/v1/bugx/metrics?documentation=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot workflow.MetricsSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.Equal(t, 1, snapshot.Sessions.TotalSessions)
	assert.Len(t, snapshot.Documentation, 1)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/bugx/metrics?documentation=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.router.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bugx_sessions_started_total 1")
	assert.Contains(t, rec.Body.String(), `bugx_http_requests_total{code="200",method="POST",route="/api/v1/bugx/quickfix"} 1`)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, true)

	w, env := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"healthy"`)
	assert.Contains(t, string(env.Data), `"state":"uninitialized"`)
	assert.Contains(t, string(env.Data), "random_value_consistency")
}

func TestSetupEndpoints(t *testing.T) {
	ts := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/setup", nil)
	rec := httptest.NewRecorder()
	ts.router.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST /api/setup")
	assert.Contains(t, rec.Body.String(), "uninitialized")

	for i := 0; i < 2; i++ {
		w, env := ts.do(t, http.MethodPost, "/api/setup", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, string(env.Data), "activity_logs")
	}
	assert.True(t, ts.datastore.Ready())

	without := newTestServer(t, false)
	w, env := without.do(t, http.MethodPost, "/api/setup", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestOpenAPIEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	ts.router.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/bugx/quickfix")

	req = httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec = httptest.NewRecorder()
	ts.router.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}
