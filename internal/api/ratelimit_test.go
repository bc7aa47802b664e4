package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucketRefill(t *testing.T) {
	start := time.Unix(0, 0)
	b := newTokenBucket(2, 1, start)

	for i := range 2 {
		if ok, _, _ := b.take(start); !ok {
			t.Fatalf("take %d rejected within burst", i)
		}
	}
	ok, remaining, retry := b.take(start)
	if ok || remaining != 0 || retry != time.Second {
		t.Errorf("take over burst = %v, %d, %v", ok, remaining, retry)
	}

	if ok, _, _ := b.take(start.Add(1500 * time.Millisecond)); !ok {
		t.Error("bucket did not refill")
	}
	if !b.idleSince(start.Add(10*time.Minute), 5*time.Minute) {
		t.Error("bucket not idle after ttl")
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1})
	defer rl.Stop()
	now := time.Unix(100, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || rl.Allow("10.0.0.1") {
		t.Error("first request should pass and second should fail")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other client limited by the first")
	}
	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("client still limited after refill")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 30, BurstSize: 2})
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/graph", nil)
		r.RemoteAddr = "192.0.2.7:5555"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	if w := serve(); w.Code != http.StatusNoContent || w.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Errorf("first request = %d remaining %q", w.Code, w.Header().Get("X-RateLimit-Remaining"))
	}
	serve()
	w := serve()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "30" || w.Header().Get("Retry-After") == "" {
		t.Errorf("headers = %v", w.Header())
	}
}

func TestServerRateLimit(t *testing.T) {
	f := newFixture(t, true, func(c *Config) {
		c.RateLimitRequests = 1
		c.RateLimitBurst = 2
	})
	for i := range 2 {
		if code, _ := f.get(t, "/health", nil); code != http.StatusOK {
			t.Fatalf("request %d = %d", i, code)
		}
	}
	code, env := f.get(t, "/health", nil)
	if code != http.StatusTooManyRequests || env.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("over limit = %d %+v", code, env.Error)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"forwarded first entry", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
		{"forwarded garbage", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.1"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"ipv6", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"unparseable", "pipe", nil, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
