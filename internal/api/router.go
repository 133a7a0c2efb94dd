// Package api provides the HTTP API layer for the BugX debugging toolkit.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bugx/internal/api/handlers"
	"bugx/internal/api/middleware"
	"bugx/internal/api/monitoring"
	"bugx/internal/api/response"
	"bugx/internal/config"
	"bugx/internal/database"
	"bugx/internal/docs"
	"bugx/internal/logging"
	"bugx/internal/notify"
	"bugx/internal/workflow"
)

const (
	requestTimeout = 30 * time.Second
	maxRequestSize = 10 * 1024 * 1024
)

// Dependencies are the services the router exposes. Orchestrator is
// required; Datastore, Hub and MCP are optional and Registry defaults to a
// fresh Prometheus registry.
type Dependencies struct {
	Orchestrator *workflow.Orchestrator
	Datastore    *database.Datastore
	Hub          *notify.Hub
	MCP          http.Handler
	Registry     *prometheus.Registry
	Logger       logging.Logger
}

// Router represents the main API router
type Router struct {
	config        *config.Config
	mux           *chi.Mux
	version       string
	deps          Dependencies
	logger        logging.Logger
	shutdownFuncs []func(context.Context) error
}

// NewRouter creates a new API router with middleware and routes
func NewRouter(cfg *config.Config, deps Dependencies) *Router {
	if deps.Logger == nil {
		deps.Logger = logging.NewNoOpLogger()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	r := &Router{
		config:        cfg,
		mux:           chi.NewRouter(),
		version:       docs.APIVersion,
		deps:          deps,
		logger:        deps.Logger.WithComponent("router"),
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.mux
}

// OnShutdown registers fn to run on Stop
func (r *Router) OnShutdown(fn func(context.Context) error) {
	r.shutdownFuncs = append(r.shutdownFuncs, fn)
}

// setupMiddleware configures the middleware stack
func (r *Router) setupMiddleware() {
	// Recovery middleware (should be first)
	r.mux.Use(chimiddleware.Recoverer)

	r.mux.Use(r.timeoutMiddleware())
	r.mux.Use(middleware.NewLoggingMiddleware(r.deps.Logger).Handler())
	r.mux.Use(monitoring.NewHTTPMetrics(r.deps.Registry).Middleware)
	r.mux.Use(r.createCORSMiddleware().Handler())
	r.mux.Use(middleware.NewVersionChecker(r.version).Handler())
	r.mux.Use(chimiddleware.RequestSize(maxRequestSize))

	// Heartbeat for load balancer health checks
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

// createCORSMiddleware is permissive for local origins in development and
// same-origin only otherwise
func (r *Router) createCORSMiddleware() *middleware.CORSMiddleware {
	if r.config.Server.IsDevelopment() {
		return middleware.NewDefaultCORSMiddleware()
	}
	return middleware.NewCORSMiddleware(middleware.CORSConfig{})
}

// timeoutMiddleware applies the request timeout to everything but WebSockets
func (r *Router) timeoutMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		withTimeout := chimiddleware.Timeout(requestTimeout)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/ws") {
				next.ServeHTTP(w, req)
				return
			}
			withTimeout.ServeHTTP(w, req)
		})
	}
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	var (
		activity  handlers.ActivityRecorder
		dsStatus  handlers.DatastoreStatus
		bootstrap handlers.Bootstrapper
	)
	if r.deps.Datastore != nil {
		activity, dsStatus, bootstrap = r.deps.Datastore, r.deps.Datastore, r.deps.Datastore
	}

	healthHandler := handlers.NewHealthHandler(r.deps.Orchestrator, dsStatus, r.version)
	r.mux.Get("/health", healthHandler.Handle)

	setupHandler := handlers.NewSetupHandler(bootstrap, r.deps.Logger)
	r.mux.Get("/api/setup", setupHandler.Usage)
	r.mux.Post("/api/setup", setupHandler.Setup)

	bugxHandler := handlers.NewBugXHandler(r.deps.Orchestrator, activity, r.deps.Logger)
	r.mux.Route("/api/v1/bugx", bugxHandler.Routes)

	r.mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(r.deps.Registry, promhttp.HandlerOpts{}))

	swagger := docs.NewSwaggerUIHandler(docs.NewOpenAPIGenerator(r.serverURL()), "/openapi.json", r.deps.Logger)
	r.mux.Get("/openapi.json", swagger.ServeSpec)
	r.mux.Get("/docs", swagger.ServeUI)

	if r.deps.Hub != nil {
		r.mux.Get("/ws/notifications", r.deps.Hub.ServeWS)
	}
	if r.deps.MCP != nil {
		r.mux.Handle("/mcp", r.deps.MCP)
	}

	r.mux.Get("/", r.handleRoot)
	r.mux.NotFound(r.handleNotFound)
	r.mux.MethodNotAllowed(r.handleMethodNotAllowed)
}

func (r *Router) serverURL() string {
	return fmt.Sprintf("http://%s", r.config.Server.Address())
}

// handleRoot lists the endpoints
func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"health":  "/health",
		"api":     "/api/v1/bugx",
		"setup":   "/api/setup",
		"metrics": "/metrics",
		"docs":    "/docs",
		"openapi": "/openapi.json",
	}
	if r.deps.Hub != nil {
		endpoints["notifications"] = "/ws/notifications"
	}
	if r.deps.MCP != nil {
		endpoints["mcp"] = "/mcp"
	}

	response.WriteSuccess(w, map[string]interface{}{
		"server":    "bugx",
		"version":   r.version,
		"endpoints": endpoints,
		"features": map[string]bool{
			"datastore":     r.deps.Datastore != nil,
			"notifications": r.deps.Hub != nil,
		},
	})
}

func (r *Router) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	response.WriteNotFound(w, "Endpoint not found", "The requested resource does not exist")
}

func (r *Router) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	response.WriteMethodNotAllowed(w, "Method not allowed", "The HTTP method is not supported for this endpoint")
}

// Stop runs the registered shutdown functions
func (r *Router) Stop(ctx context.Context) error {
	var errs []error
	for _, shutdownFunc := range r.shutdownFuncs {
		if err := shutdownFunc(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("router shutdown: %w", err)
	}
	return nil
}
