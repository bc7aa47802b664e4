package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	LoadedAt  string `json:"loaded_at,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the /health payload.
type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Loaded      bool   `json:"loaded"`
	Chapters    int    `json:"chapters"`
	Connections int    `json:"connections"`
	RunID       string `json:"run_id,omitempty"`
	Clients     int    `json:"websocket_clients"`
}

// BookInfo is one /books entry. Outgoing and Incoming are the book's row and
// column sums in the book matrix.
type BookInfo struct {
	Index int `json:"index"`
	canon.Book
	FirstChapterID int `json:"first_chapter_id"`
	Outgoing       int `json:"outgoing_weight"`
	Incoming       int `json:"incoming_weight"`
}

// Neighbor is a connection seen from one chapter.
type Neighbor struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Weight int    `json:"weight"`
}

// ChapterDetail is the /chapters/{id} payload.
type ChapterDetail struct {
	graph.ChapterNode
	Outgoing []Neighbor `json:"outgoing"`
	Incoming []Neighbor `json:"incoming"`
}

// PreviewResult is the /preview payload.
type PreviewResult struct {
	Report graph.PreviewReport `json:"report"`
	Graph  *graph.Artifact     `json:"graph"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"name":    "xrefgraph",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /graph",
			"GET /stats",
			"GET /preview?limit=N[&format=js]",
			"GET /books",
			"GET /chapters/:id",
			"GET /connections?limit=N",
			"GET /manifest",
			"GET /metrics",
			"GET /jobs",
			"POST /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	info := HealthInfo{
		Status:  "healthy",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Clients: s.hub.ClientCount(),
	}
	if snap := s.state.get(); snap != nil {
		info.Loaded = true
		info.Chapters = len(snap.graph.Chapters)
		info.Connections = len(snap.graph.Connections)
		if snap.manifest != nil {
			info.RunID = snap.manifest.RunID
		}
	}
	respond(w, http.StatusOK, info)
}

// loaded returns the current snapshot or writes a 503 and returns nil.
func (s *Server) loaded(w http.ResponseWriter) *snapshot {
	snap := s.state.get()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_LOADED", "No graph artifact has been loaded")
	}
	return snap
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if snap := s.loaded(w); snap != nil {
		respondWithMeta(w, snap.graph, len(snap.graph.Connections), snap)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.loaded(w)
	if snap == nil {
		return
	}
	if snap.stats == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No statistics artifact in "+s.cfg.Dir)
		return
	}
	respondWithMeta(w, snap.stats, 0, snap)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit, ok := limitParam(w, r, graph.DefaultPreviewLimit)
	if !ok {
		return
	}
	snap := s.loaded(w)
	if snap == nil {
		return
	}

	p, err := snap.preview(limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	if r.URL.Query().Get("format") == "js" {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		if err := graph.EncodePreviewScript(w, p.graph, len(snap.graph.Connections)); err != nil {
			logging.ErrorContext(r.Context(), "failed to write preview script", "error", err)
		}
		return
	}
	respondWithMeta(w, PreviewResult{Report: p.report, Graph: p.graph}, p.report.Retained, snap)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.loaded(w)
	if snap == nil {
		return
	}

	g := snap.graph
	books := make([]BookInfo, len(g.Books))
	first := 0
	for i, b := range g.Books {
		info := BookInfo{Index: i, Book: b, FirstChapterID: first}
		if g.BookMatrix != nil {
			for j := range g.Books {
				info.Outgoing += g.BookMatrix.At(i, j)
				info.Incoming += g.BookMatrix.At(j, i)
			}
		}
		books[i] = info
		first += b.Chapters
	}
	respondWithMeta(w, books, len(books), snap)
}

// handleChapter serves /chapters/{id}, where id is a chapter id or a label
// such as "Genesis 1". An optional limit bounds each neighbor list.
func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/chapters/")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Chapter id is required")
		return
	}
	// Without a limit every edge of the chapter is returned.
	limit := -1
	if r.URL.Query().Has("limit") {
		var ok bool
		if limit, ok = limitParam(w, r, 0); !ok {
			return
		}
	}
	snap := s.loaded(w)
	if snap == nil {
		return
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		label, uerr := url.PathUnescape(raw)
		if uerr != nil {
			label = raw
		}
		var found bool
		if id, found = snap.index.Lookup(label); !found {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown chapter: "+label)
			return
		}
	}
	node, found := snap.graph.Chapter(id)
	if !found {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Chapter id out of range: "+raw)
		return
	}

	respond(w, http.StatusOK, ChapterDetail{
		ChapterNode: node,
		Outgoing:    neighbors(snap.graph, graph.Heaviest(snap.index.Outgoing[id], limit), true),
		Incoming:    neighbors(snap.graph, graph.Heaviest(snap.index.Incoming[id], limit), false),
	})
}

func neighbors(g *graph.Artifact, conns []graph.Connection, outgoing bool) []Neighbor {
	out := make([]Neighbor, 0, len(conns))
	for _, c := range conns {
		other := c.Source
		if outgoing {
			other = c.Target
		}
		n := Neighbor{ID: other, Weight: c.Weight}
		if node, ok := g.Chapter(other); ok {
			n.Label = node.Label
		}
		out = append(out, n)
	}
	return out
}

// ConnectionView is a connection with its endpoint labels.
type ConnectionView struct {
	graph.Connection
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit, ok := limitParam(w, r, 100)
	if !ok {
		return
	}
	snap := s.loaded(w)
	if snap == nil {
		return
	}
	top := graph.Heaviest(snap.graph.Connections, limit)
	views := make([]ConnectionView, len(top))
	for i, c := range top {
		views[i].Connection = c
		if n, ok := snap.graph.Chapter(c.Source); ok {
			views[i].SourceLabel = n.Label
		}
		if n, ok := snap.graph.Chapter(c.Target); ok {
			views[i].TargetLabel = n.Label
		}
	}
	respondWithMeta(w, views, len(snap.graph.Connections), snap)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.loaded(w)
	if snap == nil {
		return
	}
	if snap.manifest == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No manifest in "+s.cfg.Dir)
		return
	}
	respondWithMeta(w, snap.manifest, len(snap.manifest.Artifacts), snap)
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only "+strings.Join(methods, " and ")+" allowed")
	return false
}

// intParam parses an optional integer query parameter.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", name+" must be an integer")
		return 0, false
	}
	return n, true
}

// limitParam parses the limit query parameter, which must be positive.
func limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limit, ok := intParam(w, r, "limit", def)
	if !ok {
		return 0, false
	}
	if limit <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be positive")
		return 0, false
	}
	return limit, true
}

func respond(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondWithMeta(w http.ResponseWriter, data any, total int, snap *snapshot) {
	write(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			LoadedAt:  snap.loadedAt.Format(time.RFC3339),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}
