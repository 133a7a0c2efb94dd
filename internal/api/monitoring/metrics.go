// Package monitoring records HTTP request metrics as Prometheus instruments.
package monitoring

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests no route matched, keeping label
// cardinality bounded
const unmatchedRoute = "unmatched"

// HTTPMetrics tracks requests by route pattern
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics creates the instruments and registers them on reg
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bugx",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bugx",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bugx",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "HTTP requests being served",
			},
		),
	}
}

// Middleware records every request that passes through it
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
