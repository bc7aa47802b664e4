package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/xrefgraph/core/aggregate"
	"github.com/FocuswithJustin/xrefgraph/core/cas"
	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/core/sqlite"
	"github.com/FocuswithJustin/xrefgraph/core/stats"
	"github.com/FocuswithJustin/xrefgraph/internal/fileutil"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
	"github.com/FocuswithJustin/xrefgraph/internal/metrics"
	"github.com/FocuswithJustin/xrefgraph/internal/source"
)

// ProgressFunc receives stage updates; percent runs from 0 to 100.
type ProgressFunc func(stage string, percent int, message string)

// Summary describes a finished build.
type Summary struct {
	RunID       string            `json:"run_id,omitempty"`
	Input       source.Report     `json:"input"`
	Chapters    int               `json:"chapters"`
	Connections int               `json:"connections"`
	Dropped     int               `json:"dropped_edges"`
	BookLinks   int               `json:"book_links"`
	Artifacts   map[string]string `json:"artifacts"`
	Preview     *PreviewSummary   `json:"preview,omitempty"`
	Duration    time.Duration     `json:"duration_ns"`
}

type run struct {
	cfg      Config
	progress ProgressFunc
}

func (r *run) stage(name string, percent int, start time.Time, args ...any) {
	elapsed := time.Since(start)
	metrics.ObserveStage(name, elapsed)
	logging.PipelineStage(name, elapsed, args...)
	if r.progress != nil {
		r.progress(name, percent, fmt.Sprintf("%s done", name))
	}
}

// Run executes a full build: read, aggregate, export graph and stats, then the
// optional preview, SQLite, manifest and snapshot outputs.
//
// Aggregation is single-threaded; only the independent artifact writes run
// concurrently once every in-memory result is final.
func Run(ctx context.Context, cfg Config, progress ProgressFunc) (sum *Summary, err error) {
	defer func() { metrics.PipelineRun("build", err) }()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &run{cfg: cfg, progress: progress}
	began := time.Now()

	t := time.Now()
	res, err := source.Load(ctx, cfg.Input, cfg.Format, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	metrics.Records(res.Report.Parsed, res.Report.Skipped, res.Report.BadVotes)
	r.stage("load", 20, t,
		"lines", res.Report.Lines, "parsed", res.Report.Parsed,
		"skipped", res.Report.Skipped, "bad_votes", res.Report.BadVotes)

	t = time.Now()
	edges := aggregate.Chapters(res.Records)
	matrix := aggregate.Books(res.Records)
	r.stage("aggregate", 40, t, "chapter_edges", len(edges), "book_links", matrix.NonZero())

	t = time.Now()
	artifact, report := graph.Build(cfg.Catalog, edges, matrix, len(res.Records))
	for _, e := range report.Dropped {
		logging.Warn("edge_dropped", "from", e.From.String(), "to", e.To.String(), "weight", e.Weight)
	}
	metrics.Graph(len(artifact.Connections), len(report.Dropped))
	st := stats.Compute(res.Records, len(edges))
	r.stage("build", 55, t, "connections", len(artifact.Connections), "dropped", len(report.Dropped))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	sum = &Summary{
		Input:       res.Report,
		Chapters:    len(artifact.Chapters),
		Connections: len(artifact.Connections),
		Dropped:     len(report.Dropped),
		BookLinks:   matrix.NonZero(),
		Artifacts: map[string]string{
			"graph": cfg.GraphPath(),
			"stats": cfg.StatsPath(),
		},
	}

	t = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeArtifact("graph", cfg.GraphPath(), func() error { return graph.WriteJSON(cfg.GraphPath(), artifact) })
	})
	g.Go(func() error {
		return writeArtifact("stats", cfg.StatsPath(), func() error { return graph.WriteJSON(cfg.StatsPath(), st) })
	})
	if cfg.SQLitePath != "" {
		sum.Artifacts["sqlite"] = cfg.SQLitePath
		g.Go(func() error {
			return writeArtifact("sqlite", cfg.SQLitePath, func() error {
				_, err := sqlite.Export(gctx, cfg.SQLitePath, artifact)
				return err
			})
		})
	}
	var preview *PreviewSummary
	if cfg.PreviewOut != "" {
		sum.Artifacts["preview"] = cfg.PreviewOut
		g.Go(func() error {
			p, err := writePreview(artifact, cfg.PreviewLimit, cfg.PreviewOut)
			preview = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if preview != nil {
		if full, err := fileutil.Size(cfg.GraphPath()); err == nil {
			preview.setFullSize(full)
		}
		sum.Preview = preview
	}
	r.stage("write", 80, t, "artifacts", len(sum.Artifacts))

	if !cfg.NoManifest {
		t = time.Now()
		m, err := writeManifest(cfg, sum.Artifacts)
		if err != nil {
			return nil, err
		}
		sum.RunID = m.RunID
		sum.Artifacts["manifest"] = cfg.ManifestPath()
		r.stage("manifest", 95, t, "run_id", m.RunID, "snapshot", m.SnapshotDir)
	}

	sum.Duration = time.Since(began)
	if progress != nil {
		progress("done", 100, fmt.Sprintf("%d connections written", sum.Connections))
	}
	return sum, nil
}

func writeArtifact(kind, path string, write func() error) error {
	if err := write(); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	size, err := fileutil.Size(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", kind, err)
	}
	logging.ArtifactWritten(kind, path, size)
	return nil
}

// writeManifest fingerprints every artifact. Paths outside the output
// directory are recorded relative to it.
func writeManifest(cfg Config, artifacts map[string]string) (*cas.Manifest, error) {
	m, err := cas.NewManifest(cfg.Input, cfg.Version)
	if err != nil {
		return nil, err
	}
	for name, path := range artifacts {
		if _, err := m.Add(name, path, cfg.OutDir); err != nil {
			return nil, err
		}
	}

	if cfg.SnapshotDir != "" {
		store, err := cas.NewStore(cfg.SnapshotDir)
		if err != nil {
			return nil, err
		}
		if err := m.Snapshot(store, cfg.OutDir, map[string]bool{"graph": true, "sqlite": true}); err != nil {
			return nil, err
		}
	}

	if err := m.Write(cfg.ManifestPath()); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// RunStats reads the dataset and writes only the statistics artifact.
func RunStats(ctx context.Context, cfg Config) (st *stats.Stats, err error) {
	defer func() { metrics.PipelineRun("stats", err) }()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res, err := source.Load(ctx, cfg.Input, cfg.Format, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	st = stats.Compute(res.Records, len(aggregate.Chapters(res.Records)))
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if err := writeArtifact("stats", cfg.StatsPath(), func() error { return graph.WriteJSON(cfg.StatsPath(), st) }); err != nil {
		return nil, err
	}
	return st, nil
}

// Verify checks the artifacts listed in a manifest against their recorded
// digests.
func Verify(manifestPath string, checkInput bool) (mm []cas.Mismatch, err error) {
	defer func() { metrics.PipelineRun("verify", err) }()
	m, err := cas.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return m.Verify(filepath.Dir(manifestPath), checkInput), nil
}
