package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSAllowAll(t *testing.T) {
	h := CORS(CORSConfig{}, ok)
	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q with wildcard origin", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCORSRestricted(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://viewer.example"}}, ok)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{"allowed get", http.MethodGet, "https://viewer.example", "https://viewer.example", http.StatusOK},
		{"allowed preflight", http.MethodOptions, "https://viewer.example", "https://viewer.example", http.StatusNoContent},
		{"other get", http.MethodGet, "https://evil.example", "", http.StatusOK},
		{"other preflight", http.MethodOptions, "https://evil.example", "", http.StatusForbidden},
		{"no origin", http.MethodGet, "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/stats", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(APICSPConfig(), ok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCSPHeaderEmpty(t *testing.T) {
	if got := (CSPConfig{}).Header(); got != "" {
		t.Errorf("empty config header = %q", got)
	}
	h := SecurityHeaders(CSPConfig{}, ok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, set := w.Header()["Content-Security-Policy"]; set {
		t.Error("CSP header set for an empty policy")
	}
}

func TestAbsPath(t *testing.T) {
	got := AbsPath("processed")
	if !filepath.IsAbs(got) || filepath.Base(got) != "processed" {
		t.Errorf("AbsPath(processed) = %q", got)
	}
}
