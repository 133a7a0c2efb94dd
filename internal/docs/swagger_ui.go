package docs

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"bugx/internal/logging"
)

// SwaggerUIHandler serves the OpenAPI document and an interactive UI for it.
// The document is generated on first use and cached.
type SwaggerUIHandler struct {
	generator *OpenAPIGenerator
	logger    logging.Logger
	page      *template.Template
	specURL   string

	once    sync.Once
	spec    []byte
	specErr error
}

// NewSwaggerUIHandler creates a handler that serves the UI and points it at specURL
func NewSwaggerUIHandler(generator *OpenAPIGenerator, specURL string, logger logging.Logger) *SwaggerUIHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &SwaggerUIHandler{
		generator: generator,
		logger:    logger,
		page:      template.Must(template.New("swagger").Parse(swaggerUITemplate)),
		specURL:   specURL,
	}
}

// ServeSpec writes the OpenAPI document as JSON
func (h *SwaggerUIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		var doc *openapi3.T
		doc, h.specErr = h.generator.Generate(r.Context())
		if h.specErr == nil {
			h.spec, h.specErr = json.MarshalIndent(doc, "", "  ")
		}
		if h.specErr != nil {
			h.logger.Error("Failed to generate OpenAPI document", "error", h.specErr)
		}
	})
	if h.specErr != nil {
		http.Error(w, "OpenAPI document unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(h.spec)
}

// ServeUI writes the Swagger UI page
func (h *SwaggerUIHandler) ServeUI(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	data := struct {
		Title   string
		Version string
		SpecURL string
	}{Title: "BugX API", Version: APIVersion, SpecURL: h.specURL}

	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render Swagger UI", "error", err)
		http.Error(w, "Failed to render documentation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}} {{.Version}}</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.10.5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.5/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.5/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '{{.SpecURL}}',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                layout: "StandaloneLayout",
                validatorUrl: null
            });
        };
    </script>
</body>
</html>
`
