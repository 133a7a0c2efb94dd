// Package handlers provides HTTP request handlers for the BugX API.
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"bugx/internal/api/response"
	"bugx/internal/database"
	"bugx/internal/workflow"
)

// healthTimeout bounds one health check request
const healthTimeout = 10 * time.Second

// HealthChecker runs the toolkit diagnostics
type HealthChecker interface {
	HealthCheck(ctx context.Context) workflow.HealthReport
}

// DatastoreStatus reports the datastore initialiser state
type DatastoreStatus interface {
	Status() database.Status
}

// HealthHandler provides health check functionality
type HealthHandler struct {
	checker   HealthChecker
	datastore DatastoreStatus
	version   string
	startTime time.Time
}

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status      string                `json:"status"`
	Server      string                `json:"server"`
	Version     string                `json:"version"`
	Uptime      string                `json:"uptime"`
	Timestamp   string                `json:"timestamp"`
	Diagnostics workflow.HealthReport `json:"diagnostics"`
	Datastore   *database.Status      `json:"datastore,omitempty"`
	System      SystemInfo            `json:"system"`
}

// SystemInfo represents system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemoryMB     uint64 `json:"memory_mb"`
}

// NewHealthHandler creates a new health check handler. datastore may be nil
// when the server runs without one.
func NewHealthHandler(checker HealthChecker, datastore DatastoreStatus, version string) *HealthHandler {
	return &HealthHandler{
		checker:   checker,
		datastore: datastore,
		version:   version,
		startTime: time.Now(),
	}
}

// Handle processes health check requests. A datastore that is not ready
// does not make the server unhealthy: workflows run without it.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	report := h.checker.HealthCheck(ctx)
	status := HealthStatus{
		Status:      report.Status,
		Server:      "bugx",
		Version:     h.version,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Diagnostics: report,
		System:      systemInfo(),
	}
	if h.datastore != nil {
		ds := h.datastore.Status()
		status.Datastore = &ds
	}

	statusCode := http.StatusOK
	if report.Status != workflow.HealthHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	response.WriteStatus(w, statusCode, status)
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemoryMB:     m.Alloc / 1024 / 1024,
	}
}
