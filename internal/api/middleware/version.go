// Package middleware provides HTTP middleware components for the BugX API.
package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"bugx/internal/api/response"
)

// Version represents a semantic version
type Version struct {
	Major int
	Minor int
	Patch int
}

// Compare returns -1, 0 or 1 as v is lower than, equal to or higher than other
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// ParseVersion parses "major.minor.patch", tolerating a leading "v"
func ParseVersion(version string) (Version, error) {
	var v Version
	trimmed := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if strings.Count(trimmed, ".") != 2 {
		return Version{}, fmt.Errorf("invalid version %q", version)
	}
	if _, err := fmt.Sscanf(trimmed, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch); err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return v, nil
}

// clientNames are the User-Agent products whose version is checked
var clientNames = []string{"bugx-cli", "bugx"}

// VersionChecker rejects clients outside the supported version range and
// advertises the server version
type VersionChecker struct {
	serverVersion string
	minVersion    Version
	maxVersion    Version
}

// NewVersionChecker accepts client versions from serverVersion's major
// release up to serverVersion's minor release
func NewVersionChecker(serverVersion string) *VersionChecker {
	server, err := ParseVersion(serverVersion)
	if err != nil {
		server = Version{Major: 1}
	}
	return &VersionChecker{
		serverVersion: serverVersion,
		minVersion:    Version{Major: server.Major},
		maxVersion:    Version{Major: server.Major, Minor: server.Minor, Patch: 999},
	}
}

// Handler returns the version checking middleware handler
func (vc *VersionChecker) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Server-Version", vc.serverVersion)
			w.Header().Set("X-Compatible-Versions", vc.compatibleRange())

			if vc.isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// Clients that do not announce a version are accepted
			clientVersion := vc.extractClientVersion(r)
			if clientVersion == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !vc.IsSupported(clientVersion) {
				response.WriteVersionMismatch(w,
					"Client version not supported",
					"Supported versions: "+vc.compatibleRange())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IsSupported reports whether version falls in the supported range
func (vc *VersionChecker) IsSupported(version string) bool {
	v, err := ParseVersion(version)
	if err != nil {
		return false
	}
	return v.Compare(vc.minVersion) >= 0 && v.Compare(vc.maxVersion) <= 0
}

func (vc *VersionChecker) compatibleRange() string {
	return fmt.Sprintf(">=%d.%d.%d <=%d.%d.x",
		vc.minVersion.Major, vc.minVersion.Minor, vc.minVersion.Patch,
		vc.maxVersion.Major, vc.maxVersion.Minor)
}

// extractClientVersion reads X-Client-Version or a "bugx/1.2.3" User-Agent
func (vc *VersionChecker) extractClientVersion(r *http.Request) string {
	if version := r.Header.Get("X-Client-Version"); version != "" {
		return version
	}

	product, version, found := strings.Cut(r.Header.Get("User-Agent"), "/")
	if !found {
		return ""
	}
	product = strings.ToLower(strings.TrimSpace(product))
	for _, name := range clientNames {
		if product == name {
			version, _, _ = strings.Cut(version, " ")
			return strings.TrimSpace(version)
		}
	}
	return ""
}

// publicEndpoints skip version checking
var publicEndpoints = func() []string {
	endpoints := []string{"/", "/health", "/mcp", "/metrics", "/docs", "/openapi.json", "/ws/notifications"}
	sort.Strings(endpoints)
	return endpoints
}()

func (vc *VersionChecker) isPublicEndpoint(path string) bool {
	i := sort.SearchStrings(publicEndpoints, path)
	return i < len(publicEndpoints) && publicEndpoints[i] == path
}
