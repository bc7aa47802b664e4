// Package server provides HTTP middleware shared by the artifact API.
package server

import (
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// AbsPath returns the absolute form of path, or path itself if it cannot be
// resolved.
func AbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	// AllowedOrigins lists exact origins; empty allows any origin.
	AllowedOrigins []string
}

// CORS adds cross-origin headers. With no configured origins every origin is
// allowed without credentials. Otherwise only listed origins receive headers
// and preflights from other origins are refused.
func CORS(cfg CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := "*"
		if len(cfg.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			if !slices.Contains(cfg.AllowedOrigins, origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			allowed = origin
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSPConfig holds Content-Security-Policy directives.
type CSPConfig struct {
	DefaultSrc     []string
	ConnectSrc     []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
}

// APICSPConfig is the policy for JSON endpoints, which load nothing.
func APICSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// Header renders the policy as a header value.
func (c CSPConfig) Header() string {
	var parts []string
	add := func(name string, sources []string) {
		if len(sources) > 0 {
			parts = append(parts, name+" "+strings.Join(sources, " "))
		}
	}
	add("default-src", c.DefaultSrc)
	add("connect-src", c.ConnectSrc)
	add("frame-ancestors", c.FrameAncestors)
	add("base-uri", c.BaseURI)
	add("form-action", c.FormAction)
	return strings.Join(parts, "; ")
}

// SecurityHeaders sets the standard hardening headers and the given CSP.
func SecurityHeaders(csp CSPConfig, next http.Handler) http.Handler {
	policy := csp.Header()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if policy != "" {
			h.Set("Content-Security-Policy", policy)
		}
		next.ServeHTTP(w, r)
	})
}
