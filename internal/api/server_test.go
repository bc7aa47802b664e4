package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/core/stats"
	"github.com/FocuswithJustin/xrefgraph/internal/pipeline"
)

const exampleInput = "From Verse\tTo Verse\tVotes\n" +
	"Gen.1.1\tJohn.3.16\t5\n" +
	"Gen.1.2\tJohn.3.16\t3\n" +
	"Gen.1.1\tGen.1.2\t10\n" +
	"Bogus.1.1\tJohn.3.16\t9\n" +
	"Gen.51.1\tJohn.3.16\t4\n" +
	"Ps.22.1\tMatt.27.46\tlots\n"

// Chapter ids in the canonical id space.
const (
	genesis1  = 0
	psalms22  = 499
	matthew27 = 955
	john3     = 999
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type fixture struct {
	srv     *Server
	ts      *httptest.Server
	cfg     Config
	dataDir string
}

// newFixture builds the example dataset into a temporary artifact directory
// and serves it. build=false leaves the directory empty.
func newFixture(t *testing.T, build bool, mutate func(*Config)) *fixture {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	dir := filepath.Join(root, "processed")
	for _, d := range []string{dataDir, dir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	input := writeFile(t, dataDir, "cross_references.txt", exampleInput)

	cfg := Config{
		Dir:     dir,
		DataDir: dataDir,
		Build:   pipeline.Config{Input: input},
		Version: "test",
	}
	if build {
		bc := cfg.Build
		bc.OutDir = dir
		if _, err := pipeline.Run(context.Background(), bc, nil); err != nil {
			t.Fatalf("build fixture: %v", err)
		}
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		srv.jobsWG.Wait()
		if srv.limiter != nil {
			srv.limiter.Stop()
		}
	})
	return &fixture{srv: srv, ts: ts, cfg: srv.cfg, dataDir: dataDir}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, header map[string]string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v\n%s", method, path, err, raw)
		}
	} else {
		env.Data = raw
	}
	return resp, env
}

func (f *fixture) get(t *testing.T, path string, into any) (int, envelope) {
	t.Helper()
	resp, env := f.do(t, http.MethodGet, path, nil, nil)
	if into != nil && env.Success {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data of %s: %v", path, err)
		}
	}
	return resp.StatusCode, env
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, true, nil)
	var info HealthInfo
	code, _ := f.get(t, "/health", &info)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !info.Loaded || info.Chapters != 1189 || info.Connections != 2 {
		t.Errorf("health = %+v", info)
	}
	if info.RunID == "" || info.Version != "test" {
		t.Errorf("health missing run id or version: %+v", info)
	}
}

func TestRootAndUnknownPath(t *testing.T) {
	f := newFixture(t, true, nil)
	if code, env := f.get(t, "/", nil); code != http.StatusOK || !env.Success {
		t.Errorf("GET / = %d %+v", code, env.Error)
	}
	code, env := f.get(t, "/nope", nil)
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("GET /nope = %d %+v", code, env.Error)
	}
}

func TestGraph(t *testing.T) {
	f := newFixture(t, true, nil)
	var a graph.Artifact
	code, env := f.get(t, "/graph", &a)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(a.Chapters) != 1189 || len(a.Connections) != 2 {
		t.Errorf("graph has %d chapters, %d connections", len(a.Chapters), len(a.Connections))
	}
	if env.Meta == nil || env.Meta.Total != 2 || env.Meta.LoadedAt == "" {
		t.Errorf("meta = %+v", env.Meta)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, true, nil)
	var st stats.Stats
	if code, _ := f.get(t, "/stats", &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if st.TotalVerseReferences != 5 || st.TestamentDistribution.OTToNT != 4 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStatsMissing(t *testing.T) {
	f := newFixture(t, true, nil)
	if err := os.Remove(filepath.Join(f.cfg.Dir, pipeline.DefaultStatsName)); err != nil {
		t.Fatal(err)
	}
	f.srv.reload("test")
	if code, env := f.get(t, "/stats", nil); code != http.StatusNotFound || env.Success {
		t.Errorf("GET /stats without stats.json = %d", code)
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t, true, nil)

	var res PreviewResult
	if code, _ := f.get(t, "/preview?limit=1", &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Report.Retained != 1 || res.Report.Chapters != 2 || res.Report.HighestWeight != 8 {
		t.Errorf("report = %+v", res.Report)
	}
	if !res.Graph.Metadata.IsPreview || len(res.Graph.Connections) != 1 {
		t.Errorf("preview graph = %+v", res.Graph.Metadata)
	}
	c := res.Graph.Connections[0]
	if res.Graph.Chapters[c.Source].Label != "Genesis 1" || res.Graph.Chapters[c.Target].Label != "John 3" {
		t.Errorf("preview connection %+v does not map to Genesis 1 -> John 3", c)
	}

	var def PreviewResult
	f.get(t, "/preview", &def)
	if def.Report.Retained != 2 {
		t.Errorf("default preview retained %d", def.Report.Retained)
	}

	f.get(t, "/preview?limit=1&format=js", nil)
	if st := f.srv.state.get().previews.Stats(); st.Size != 2 || st.Hits != 1 {
		t.Errorf("preview cache stats = %+v", st)
	}
}

func TestPreviewScript(t *testing.T) {
	f := newFixture(t, true, nil)
	resp, env := f.do(t, http.MethodGet, "/preview?limit=1&format=js", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := string(env.Data)
	for _, want := range []string{"const PREVIEW_DATA = ", "// Contains top 1 connections", "// Full dataset (2 connections)"} {
		if !strings.Contains(body, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestPreviewInvalidLimit(t *testing.T) {
	f := newFixture(t, true, nil)
	for _, q := range []string{"limit=0", "limit=-3", "limit=many"} {
		code, env := f.get(t, "/preview?"+q, nil)
		if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_PARAM" {
			t.Errorf("GET /preview?%s = %d %+v", q, code, env.Error)
		}
	}
}

func TestBooks(t *testing.T) {
	f := newFixture(t, true, nil)
	var books []BookInfo
	if code, _ := f.get(t, "/books", &books); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(books) != 66 {
		t.Fatalf("got %d books", len(books))
	}
	gen, john, matt := books[0], books[42], books[39]
	// Genesis 51 is outside the canon but still counts toward the book matrix.
	if gen.Name != "Genesis" || gen.Outgoing != 12 || gen.Incoming != 0 {
		t.Errorf("Genesis = %+v", gen)
	}
	if john.Name != "John" || john.Incoming != 12 || john.FirstChapterID != john3-2 {
		t.Errorf("John = %+v", john)
	}
	if matt.FirstChapterID != 929 {
		t.Errorf("Matthew first chapter id = %d", matt.FirstChapterID)
	}
}

func TestChapter(t *testing.T) {
	f := newFixture(t, true, nil)

	tests := []struct {
		name     string
		path     string
		wantID   int
		outgoing []Neighbor
		incoming []Neighbor
	}{
		{"by id", "/chapters/0", genesis1, []Neighbor{{john3, "John 3", 8}}, []Neighbor{}},
		{"by label", "/chapters/John%203", john3, []Neighbor{}, []Neighbor{{genesis1, "Genesis 1", 8}}},
		{"zero weight edge", "/chapters/499", psalms22, []Neighbor{{matthew27, "Matthew 27", 0}}, []Neighbor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d ChapterDetail
			if code, env := f.get(t, tt.path, &d); code != http.StatusOK {
				t.Fatalf("status = %d %+v", code, env.Error)
			}
			if d.ID != tt.wantID {
				t.Errorf("id = %d, want %d", d.ID, tt.wantID)
			}
			if !equalNeighbors(d.Outgoing, tt.outgoing) || !equalNeighbors(d.Incoming, tt.incoming) {
				t.Errorf("neighbors = out %+v in %+v", d.Outgoing, d.Incoming)
			}
		})
	}

	for _, path := range []string{"/chapters/1189", "/chapters/-1", "/chapters/Genesis%2051"} {
		if code, _ := f.get(t, path, nil); code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, code)
		}
	}
	if code, _ := f.get(t, "/chapters/", nil); code != http.StatusBadRequest {
		t.Errorf("GET /chapters/ = %d, want 400", code)
	}
	if code, env := f.get(t, "/chapters/0?limit=-1", nil); code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_PARAM" {
		t.Errorf("GET /chapters/0?limit=-1 = %d %+v", code, env.Error)
	}
	var d ChapterDetail
	if code, _ := f.get(t, "/chapters/0?limit=1", &d); code != http.StatusOK || len(d.Outgoing) != 1 {
		t.Errorf("GET /chapters/0?limit=1 = %d %+v", code, d)
	}
}

func equalNeighbors(a, b []Neighbor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConnections(t *testing.T) {
	f := newFixture(t, true, nil)
	var views []ConnectionView
	code, env := f.get(t, "/connections?limit=1", &views)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(views) != 1 || views[0].SourceLabel != "Genesis 1" || views[0].TargetLabel != "John 3" || views[0].Weight != 8 {
		t.Errorf("connections = %+v", views)
	}
	if env.Meta.Total != 2 {
		t.Errorf("meta total = %d", env.Meta.Total)
	}
}

func TestConnectionsInvalidLimit(t *testing.T) {
	f := newFixture(t, true, nil)
	for _, q := range []string{"limit=-1", "limit=0", "limit=all"} {
		code, env := f.get(t, "/connections?"+q, nil)
		if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_PARAM" {
			t.Errorf("GET /connections?%s = %d %+v", q, code, env.Error)
		}
	}
}

func TestManifest(t *testing.T) {
	f := newFixture(t, true, nil)
	var m struct {
		RunID     string `json:"run_id"`
		Artifacts []struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"artifacts"`
	}
	if code, _ := f.get(t, "/manifest", &m); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if m.RunID == "" || len(m.Artifacts) != 2 || m.Artifacts[0].Path != pipeline.DefaultGraphName {
		t.Errorf("manifest = %+v", m)
	}
}

func TestNotLoaded(t *testing.T) {
	f := newFixture(t, false, nil)

	var info HealthInfo
	f.get(t, "/health", &info)
	if info.Loaded {
		t.Error("health reports loaded with an empty directory")
	}
	for _, path := range []string{"/graph", "/stats", "/preview", "/books", "/chapters/0", "/manifest"} {
		code, env := f.get(t, path, nil)
		if code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "NOT_LOADED" {
			t.Errorf("GET %s = %d %+v", path, code, env.Error)
		}
	}
}

func TestNewRejectsCorruptGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, pipeline.DefaultGraphName, "{not json")
	if _, err := New(Config{Dir: dir}); err == nil {
		t.Fatal("New() with a corrupt graph succeeded")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, true, nil)
	for _, path := range []string{"/health", "/graph", "/stats", "/preview", "/books", "/chapters/0"} {
		resp, env := f.do(t, http.MethodPost, path, nil, nil)
		if resp.StatusCode != http.StatusMethodNotAllowed || env.Error.Code != "METHOD_NOT_ALLOWED" {
			t.Errorf("POST %s = %d", path, resp.StatusCode)
		}
		if resp.Header.Get("Allow") != http.MethodGet {
			t.Errorf("POST %s Allow = %q", path, resp.Header.Get("Allow"))
		}
	}
}

func TestMiddlewareChain(t *testing.T) {
	f := newFixture(t, true, func(c *Config) {
		c.AllowedOrigins = []string{"https://viewer.example"}
	})
	resp, _ := f.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://viewer.example"})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://viewer.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("request id missing")
	}
}

func TestAuthRequired(t *testing.T) {
	const key = "0123456789abcdef0123"
	f := newFixture(t, true, func(c *Config) {
		c.Auth = AuthConfig{Enabled: true, APIKey: key}
	})

	if code, env := f.get(t, "/graph", nil); code != http.StatusUnauthorized || env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("GET /graph without key = %d", code)
	}
	resp, _ := f.do(t, http.MethodGet, "/graph", nil, map[string]string{"X-API-Key": "wrong-key-wrong-key"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /graph with wrong key = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/graph", nil, map[string]string{"X-API-Key": key})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /graph with key = %d", resp.StatusCode)
	}
	for _, path := range []string{"/", "/health", "/metrics"} {
		if code, _ := f.get(t, path, nil); code != http.StatusOK {
			t.Errorf("GET %s without key = %d", path, code)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no dir", Config{}},
		{"bad port", Config{Dir: "x", Port: 70000}},
		{"short key", Config{Dir: "x", Auth: AuthConfig{Enabled: true, APIKey: "short"}}},
		{"tls without files", Config{Dir: "x", TLS: TLSConfig{Enabled: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("Validate() = nil")
			}
		})
	}

	cfg := Config{Dir: "processed", RateLimitRequests: 30}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Port != 8080 || cfg.RateLimitBurst != 10 || cfg.Build.OutDir != "processed" || cfg.Build.GraphName != pipeline.DefaultGraphName {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true, nil)
	f.get(t, "/graph", nil)
	resp, env := f.do(t, http.MethodGet, "/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(env.Data), `xrefgraph_http_requests_total{code="200",route="graph"}`) {
		t.Error("metrics missing graph route counter")
	}
}
