package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/xrefgraph/internal/logging"
)

// MinAPIKeyLength is the shortest accepted API key.
const MinAPIKeyLength = 16

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// ValidateAuthConfig checks that an enabled config carries a usable key.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required when authentication is enabled")
	}
	if len(cfg.APIKey) < MinAPIKeyLength {
		return fmt.Errorf("API key must be at least %d characters (got %d)", MinAPIKeyLength, len(cfg.APIKey))
	}
	return nil
}

// publicPaths bypass authentication so health checks and scrapers need no key.
var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware requires the X-API-Key header on every non-public path when
// auth is enabled. WebSocket clients, which cannot set headers from a
// browser, may pass the key as the api_key query parameter instead.
func AuthMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	if !cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" && r.URL.Path == "/ws" {
			key = r.URL.Query().Get("api_key")
		}
		switch {
		case key == "":
			logging.Warn("unauthorized_request", "path", r.URL.Path, "reason", "missing API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
		case subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) != 1:
			logging.Warn("unauthorized_request", "path", r.URL.Path, "reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}
