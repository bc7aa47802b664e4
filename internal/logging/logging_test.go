package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLogOutput redirects the default logger to a JSON buffer at debug
// level while f runs.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

func decodeLine(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(out), "\n")[0])
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestInitLoggerToLevelsAndTimestamp(t *testing.T) {
	defer InitLogger(LevelInfo, FormatText)

	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelWarn, FormatJSON)
	Info("hidden")
	Warn("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	m := decodeLine(t, out)
	if m["msg"] != "shown" || m["k"] != float64(1) {
		t.Errorf("log line = %v", m)
	}
	ts, _ := m["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q is not RFC3339", ts)
	}

	buf.Reset()
	InitLoggerTo(&buf, LevelDebug, FormatText)
	Debug("text line", "stage", "parse")
	if !strings.Contains(buf.String(), "stage=parse") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestDomainHelpers(t *testing.T) {
	out := captureLogOutput(func() {
		PipelineStage("aggregate", 1500*time.Millisecond, "edges", 3)
	})
	m := decodeLine(t, out)
	if m["msg"] != "pipeline_stage" || m["stage"] != "aggregate" || m["elapsed_ms"] != float64(1500) {
		t.Errorf("PipelineStage = %v", m)
	}

	out = captureLogOutput(func() { RecordSkipped(12, "unknown book", "token", "Foo.1.1") })
	m = decodeLine(t, out)
	if m["level"] != "DEBUG" || m["line"] != float64(12) || m["token"] != "Foo.1.1" {
		t.Errorf("RecordSkipped = %v", m)
	}

	out = captureLogOutput(func() { ArtifactWritten("graph", "/tmp/graph_data.json", 2048) })
	m = decodeLine(t, out)
	if m["size"] != "2.0 kB" || m["bytes"] != float64(2048) {
		t.Errorf("ArtifactWritten = %v", m)
	}

	out = captureLogOutput(func() { JobEvent("abc", "completed") })
	if m = decodeLine(t, out); m["job_id"] != "abc" || m["status"] != "completed" {
		t.Errorf("JobEvent = %v", m)
	}

	out = captureLogOutput(func() { WebSocketEvent("client_connected", 2) })
	if m = decodeLine(t, out); m["client_count"] != float64(2) {
		t.Errorf("WebSocketEvent = %v", m)
	}

	out = captureLogOutput(func() { ServerStartup("api", "http", 8080) })
	if m = decodeLine(t, out); m["port"] != float64(8080) {
		t.Errorf("ServerStartup = %v", m)
	}
}

func TestContextLogging(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if GetRequestID(ctx) != "req-1" {
		t.Fatalf("GetRequestID = %q", GetRequestID(ctx))
	}
	if GetRequestID(context.Background()) != "" {
		t.Error("empty context has a request id")
	}
	out := captureLogOutput(func() { InfoContext(ctx, "hello") })
	if m := decodeLine(t, out); m["request_id"] != "req-1" {
		t.Errorf("InfoContext = %v", m)
	}
}

func TestCombinedMiddleware(t *testing.T) {
	var seen string
	h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	out := captureLogOutput(func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
		if rec.Header().Get("X-Request-ID") != seen || seen == "" {
			t.Errorf("request id header %q, context %q", rec.Header().Get("X-Request-ID"), seen)
		}
	})
	m := decodeLine(t, out)
	if m["status_code"] != float64(http.StatusTeapot) || m["path"] != "/graph" || m["request_id"] != seen {
		t.Errorf("request log = %v", m)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	captureLogOutput(func() { h.ServeHTTP(rec, req) })
	if seen != "given" {
		t.Errorf("incoming request id not reused: %q", seen)
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("expected error hijacking a recorder")
	}
	rw.Flush()
}
