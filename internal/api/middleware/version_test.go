package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestVersionChecker_Handler(t *testing.T) {
	handler := NewVersionChecker("1.2.0").Handler()(okHandler())

	tests := []struct {
		name     string
		path     string
		header   string
		value    string
		wantCode int
	}{
		{"supported version", "/api/v1/bugx/templates", "X-Client-Version", "1.1.4", http.StatusOK},
		{"unsupported major", "/api/v1/bugx/templates", "X-Client-Version", "2.0.0", http.StatusBadRequest},
		{"newer minor", "/api/v1/bugx/templates", "X-Client-Version", "1.3.0", http.StatusBadRequest},
		{"malformed", "/api/v1/bugx/templates", "X-Client-Version", "latest", http.StatusBadRequest},
		{"user agent", "/api/v1/bugx/templates", "User-Agent", "bugx/1.0.0 (linux)", http.StatusOK},
		{"foreign user agent", "/api/v1/bugx/templates", "User-Agent", "curl/8.4.0", http.StatusOK},
		{"no version", "/api/v1/bugx/templates", "", "", http.StatusOK},
		{"public endpoint", "/health", "X-Client-Version", "9.0.0", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "1.2.0", w.Header().Get("X-Server-Version"))
			assert.NotEmpty(t, w.Header().Get("X-Compatible-Versions"))
		})
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("v1.4.2")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 4, Patch: 2}, v)

	_, err = ParseVersion("1.4")
	assert.Error(t, err)

	assert.Equal(t, -1, Version{Major: 1}.Compare(Version{Major: 1, Patch: 1}))
	assert.Equal(t, 1, Version{Major: 2}.Compare(Version{Major: 1, Minor: 9}))
	assert.Equal(t, 0, Version{Major: 1, Minor: 2}.Compare(Version{Major: 1, Minor: 2}))
}
