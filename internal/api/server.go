// Package api serves built cross-reference artifacts over HTTP, runs rebuild
// jobs, and pushes their progress to WebSocket clients.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
	"github.com/FocuswithJustin/xrefgraph/internal/metrics"
	"github.com/FocuswithJustin/xrefgraph/internal/server"
)

// Server is the artifact API.
type Server struct {
	cfg     Config
	state   *artifacts
	hub     *Hub
	jobs    *JobStore
	limiter *RateLimiter
	handler http.Handler
	started time.Time

	// ctx is the parent of every job context; Start replaces it.
	ctx     context.Context
	buildMu sync.Mutex
	jobsWG  sync.WaitGroup
}

// New validates cfg, loads the artifacts in cfg.Dir if present, and builds
// the handler chain. Background work starts with Start or Run.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		state:   newArtifacts(cfg.Dir, cfg.Build.GraphName, cfg.Build.StatsName),
		hub:     NewHub(),
		jobs:    NewJobStore(),
		started: time.Now(),
		ctx:     context.Background(),
	}

	if snap, err := s.state.load(); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, fmt.Errorf("load artifacts: %w", err)
		}
		logging.Warn("no graph artifact yet", "dir", server.AbsPath(cfg.Dir))
	} else {
		metrics.Loaded(len(snap.graph.Connections))
	}

	s.handler = s.middleware(s.routes())
	return s, nil
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, metrics.Middleware(name, h))
	}

	route("/", "root", s.handleRoot)
	route("/health", "health", s.handleHealth)
	route("/graph", "graph", s.handleGraph)
	route("/stats", "stats", s.handleStats)
	route("/preview", "preview", s.handlePreview)
	route("/books", "books", s.handleBooks)
	route("/chapters/", "chapter", s.handleChapter)
	route("/connections", "connections", s.handleConnections)
	route("/manifest", "manifest", s.handleManifest)
	route("/jobs", "jobs", s.handleJobs)
	route("/jobs/", "job", s.handleJobByID)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", websocketHandler(s.hub, s.cfg.AllowedOrigins))
	return mux
}

// middleware wraps mux from the inside out: security headers, auth, rate
// limiting, CORS, then request logging outermost.
func (s *Server) middleware(mux http.Handler) http.Handler {
	h := server.SecurityHeaders(server.APICSPConfig(), mux)

	h = AuthMiddleware(s.cfg.Auth, h)
	logging.Info("authentication configured", "enabled", s.cfg.Auth.Enabled)

	if s.cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		})
		h = s.limiter.Middleware(h)
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.cfg.RateLimitBurst)
	}

	h = server.CORS(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, h)
	if len(s.cfg.AllowedOrigins) == 0 {
		logging.Warn("CORS allows all origins", "recommendation", "set --allowed-origins in production")
	}

	return logging.CombinedMiddleware(h)
}

// reload re-reads the artifact directory and tells WebSocket clients. A
// failed reload keeps serving the previous snapshot.
func (s *Server) reload(trigger string) {
	snap, err := s.state.load()
	metrics.Reload(err)
	if err != nil {
		logging.Error("artifact reload failed", "trigger", trigger, "error", err)
		return
	}
	metrics.Loaded(len(snap.graph.Connections))
	logging.Info("artifacts reloaded", "trigger", trigger,
		"chapters", len(snap.graph.Chapters), "connections", len(snap.graph.Connections))
	s.hub.Broadcast(ProgressMessage{
		Type:     MessageReload,
		Progress: 100,
		Message:  "artifacts reloaded",
		Data:     map[string]any{"trigger": trigger, "connections": len(snap.graph.Connections)},
	})
}

// Start launches the hub and, with Watch set, the file watcher. They stop
// when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx
	go s.hub.Run(ctx)
	if s.cfg.Watch {
		w, err := newWatcher(s.cfg.Dir, s.state.watches, func() { s.reload("watch") })
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		go w.run(ctx)
		logging.Info("watching artifact directory", "dir", server.AbsPath(s.cfg.Dir))
	}
	return nil
}

// Run starts the server and blocks until ctx is done or listening fails,
// then shuts down gracefully and cancels running jobs.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		return err
	}
	if s.limiter != nil {
		defer s.limiter.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	protocol := "http"
	if s.cfg.TLS.Enabled {
		protocol = "https"
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("artifact_api", protocol, s.cfg.Port,
		"dir", server.AbsPath(s.cfg.Dir), "watch", s.cfg.Watch)

	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled {
			errc <- srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer done()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logging.Warn("server shutdown", "error", serr)
	}
	cancel()
	s.jobsWG.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
