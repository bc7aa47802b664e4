// Package metrics defines the Prometheus collectors for pipeline runs and the
// artifact API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrefgraph_pipeline_runs_total",
		Help: "Total pipeline runs by kind and outcome",
	}, []string{"kind", "outcome"})

	pipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xrefgraph_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"stage"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrefgraph_records_total",
		Help: "Input records by result (parsed, skipped, bad_votes)",
	}, []string{"result"})

	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xrefgraph_chapter_connections",
		Help: "Chapter connections in the most recently built or loaded graph",
	})

	droppedEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xrefgraph_dropped_edges_total",
		Help: "Aggregated edges dropped because an endpoint chapter is not in the catalog",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrefgraph_http_requests_total",
		Help: "API requests by route and status code",
	}, []string{"route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xrefgraph_http_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	artifactReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xrefgraph_artifact_reloads_total",
		Help: "Artifact reloads by the API server, by outcome",
	}, []string{"outcome"})
)

// PipelineRun counts a finished run of kind (build, preview, verify).
func PipelineRun(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	pipelineRuns.WithLabelValues(kind, outcome).Inc()
}

// ObserveStage records the duration of a pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	pipelineStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Records adds the reader's counts.
func Records(parsed, skipped, badVotes int) {
	recordsTotal.WithLabelValues("parsed").Add(float64(parsed))
	recordsTotal.WithLabelValues("skipped").Add(float64(skipped))
	recordsTotal.WithLabelValues("bad_votes").Add(float64(badVotes))
}

// Graph records the size of a graph and the edges dropped while building it.
func Graph(connections, dropped int) {
	connectionsGauge.Set(float64(connections))
	droppedEdges.Add(float64(dropped))
}

// Loaded records the size of the graph the API is serving.
func Loaded(connections int) {
	connectionsGauge.Set(float64(connections))
}

// Reload counts an artifact reload by the API server.
func Reload(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	artifactReloads.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency under route.
func Middleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
