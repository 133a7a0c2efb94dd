package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bugx/internal/logging"
)

// slowRequest is the duration above which a request is logged as slow
const slowRequest = time.Second

// LoggingMiddleware logs requests and tags them with a request ID that also
// serves as the trace ID of everything the request logs
type LoggingMiddleware struct {
	logger logging.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger logging.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &LoggingMiddleware{logger: logger.WithComponent("http")}
}

// Handler returns the logging middleware handler
func (lm *LoggingMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			r = r.WithContext(logging.WithTraceID(r.Context(), requestID))
			w.Header().Set("X-Request-ID", requestID)

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			lm.logResponse(r, wrapper.statusCode, time.Since(start))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Unwrap exposes the wrapped writer to http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack hands the connection over for WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (lm *LoggingMiddleware) logResponse(r *http.Request, statusCode int, duration time.Duration) {
	// Skip logging for health checks to reduce noise
	if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
		return
	}

	fields := []interface{}{
		"method", r.Method,
		"path", r.URL.Path,
		"status", statusCode,
		"duration_ms", duration.Milliseconds(),
		"remote", r.RemoteAddr,
	}
	if clientVersion := r.Header.Get("X-Client-Version"); clientVersion != "" {
		fields = append(fields, "client_version", clientVersion)
	}

	ctx := r.Context()
	switch {
	case statusCode >= http.StatusInternalServerError:
		lm.logger.ErrorContext(ctx, "Request failed", fields...)
	case statusCode >= http.StatusBadRequest:
		lm.logger.WarnContext(ctx, "Request rejected", fields...)
	case duration > slowRequest:
		lm.logger.WarnContext(ctx, "Slow request", fields...)
	default:
		lm.logger.InfoContext(ctx, "Request served", fields...)
	}
}

// GetRequestID extracts the request ID from the request context
func GetRequestID(r *http.Request) string {
	return logging.GetTraceID(r.Context())
}
