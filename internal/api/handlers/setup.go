package handlers

import (
	"context"
	"fmt"
	"net/http"

	"bugx/internal/api/response"
	"bugx/internal/database"
	"bugx/internal/logging"
)

// Bootstrapper runs the idempotent datastore setup
type Bootstrapper interface {
	Setup(ctx context.Context) (database.Report, error)
	Status() database.Status
}

const setupUsage = `BugX datastore setup

POST /api/setup creates the users and activity_logs tables with their
indexes and seeds the demo user when enabled. Every statement is
idempotent, so the request can be repeated safely.

  curl -X POST %s/api/setup

Current state: %s
`

// SetupHandler serves the datastore bootstrap endpoint
type SetupHandler struct {
	datastore Bootstrapper
	logger    logging.Logger
}

// NewSetupHandler creates the handler. A nil datastore answers 503.
func NewSetupHandler(datastore Bootstrapper, logger logging.Logger) *SetupHandler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &SetupHandler{datastore: datastore, logger: logger.WithComponent("setup")}
}

// Usage explains the endpoint
func (h *SetupHandler) Usage(w http.ResponseWriter, r *http.Request) {
	state := "no datastore configured"
	if h.datastore != nil {
		state = h.datastore.Status().State
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, setupUsage, scheme+"://"+r.Host, state)
}

// Setup bootstraps the schema. Concurrent requests share one attempt.
func (h *SetupHandler) Setup(w http.ResponseWriter, r *http.Request) {
	if h.datastore == nil {
		response.WriteServiceUnavailable(w, "Datastore is not configured")
		return
	}

	report, err := h.datastore.Setup(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Datastore setup failed", "error", err)
		response.WriteStandardError(w, err)
		return
	}
	response.WriteSuccess(w, report, "datastore ready")
}
