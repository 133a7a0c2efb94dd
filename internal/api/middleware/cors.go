package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// CORSConfig represents CORS configuration options. AllowedOrigins accepts
// glob patterns such as "https://*.example.com"; "*" allows every origin.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORSMiddleware provides Cross-Origin Resource Sharing (CORS) support
type CORSMiddleware struct {
	config  CORSConfig
	anyOrig bool
	origins []glob.Glob
	allowed map[string]bool
}

// NewCORSMiddleware creates a new CORS middleware with configuration.
// Origin patterns that do not compile are ignored.
func NewCORSMiddleware(config CORSConfig) *CORSMiddleware {
	if len(config.AllowedMethods) == 0 {
		config.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	}
	if len(config.AllowedHeaders) == 0 {
		config.AllowedHeaders = []string{
			"Accept",
			"Content-Type",
			"Content-Length",
			"X-Client-Version",
			"X-Request-ID",
		}
	}
	if len(config.ExposedHeaders) == 0 {
		config.ExposedHeaders = []string{"X-Request-ID", "X-Server-Version", "X-Compatible-Versions"}
	}
	if config.MaxAge == 0 {
		config.MaxAge = 86400 // 24 hours
	}

	c := &CORSMiddleware{config: config, allowed: make(map[string]bool)}
	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			c.anyOrig = true
			continue
		}
		if g, err := glob.Compile(origin, '.', ':'); err == nil {
			c.origins = append(c.origins, g)
		}
	}
	for _, header := range config.AllowedHeaders {
		c.allowed[strings.ToLower(header)] = true
	}
	return c
}

// NewDefaultCORSMiddleware allows local development origins
func NewDefaultCORSMiddleware() *CORSMiddleware {
	return NewCORSMiddleware(CORSConfig{
		AllowedOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
		AllowCredentials: true,
	})
}

// Handler returns the CORS middleware handler
func (c *CORSMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && c.IsOriginAllowed(origin) {
				c.setCORSHeaders(w, origin)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				c.handlePreflight(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IsOriginAllowed checks origin against the configured patterns
func (c *CORSMiddleware) IsOriginAllowed(origin string) bool {
	if c.anyOrig {
		return true
	}
	for _, g := range c.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

func (c *CORSMiddleware) setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
	if c.config.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Access-Control-Expose-Headers", strings.Join(c.config.ExposedHeaders, ", "))
}

func (c *CORSMiddleware) handlePreflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || !c.IsOriginAllowed(origin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	w.Header().Set("Access-Control-Allow-Methods", strings.Join(c.config.AllowedMethods, ", "))
	allowHeaders := strings.Join(c.config.AllowedHeaders, ", ")
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" && c.headersAllowed(requested) {
		allowHeaders = requested
	}
	w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
	w.Header().Set("Access-Control-Max-Age", strconv.Itoa(c.config.MaxAge))
	w.WriteHeader(http.StatusNoContent)
}

func (c *CORSMiddleware) headersAllowed(requested string) bool {
	for _, header := range strings.Split(requested, ",") {
		if !c.allowed[strings.ToLower(strings.TrimSpace(header))] {
			return false
		}
	}
	return true
}
