package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/FocuswithJustin/xrefgraph/core/cache"
	"github.com/FocuswithJustin/xrefgraph/core/cas"
	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/core/stats"
)

// snapshot is one consistent view of the served artifacts. Its artifacts are
// never mutated after load; a reload swaps in a new snapshot.
type snapshot struct {
	graph    *graph.Artifact
	index    *graph.ConnectionIndex
	stats    *stats.Stats
	manifest *cas.Manifest
	loadedAt time.Time

	// previews caches /preview results by limit for this snapshot only.
	previews *cache.LRU[int, *previewEntry]
}

// previewEntry is a computed preview and its report.
type previewEntry struct {
	graph  *graph.Artifact
	report graph.PreviewReport
}

// maxCachedPreviews bounds the distinct limits kept per snapshot.
const maxCachedPreviews = 16

// preview returns the preview of the snapshot's graph with the given limit,
// computing it at most once per limit.
func (s *snapshot) preview(limit int) (*previewEntry, error) {
	return s.previews.GetOrCompute(limit, func() (*previewEntry, error) {
		p, _, report, err := graph.Preview(s.graph, limit)
		if err != nil {
			return nil, err
		}
		return &previewEntry{graph: p, report: report}, nil
	})
}

// artifacts holds the current snapshot of an artifact directory.
type artifacts struct {
	dir       string
	graphName string
	statsName string

	mu  sync.RWMutex
	cur *snapshot
}

func newArtifacts(dir, graphName, statsName string) *artifacts {
	return &artifacts{dir: dir, graphName: graphName, statsName: statsName}
}

// get returns the current snapshot, or nil before the first successful load.
func (a *artifacts) get() *snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur
}

// load reads the directory and swaps in the result. The graph is required;
// stats and manifest are optional. On error the previous snapshot is kept.
func (a *artifacts) load() (*snapshot, error) {
	g, err := graph.Load(filepath.Join(a.dir, a.graphName))
	if err != nil {
		return nil, err
	}
	s := &snapshot{
		graph:    g,
		index:    graph.NewConnectionIndex(g),
		loadedAt: time.Now().UTC(),
		previews: cache.New[int, *previewEntry](cache.Config{MaxSize: maxCachedPreviews}),
	}

	s.stats, err = loadStats(filepath.Join(a.dir, a.statsName))
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	m, err := cas.LoadManifest(filepath.Join(a.dir, cas.ManifestName))
	switch {
	case err == nil:
		s.manifest = m
	case !os.IsNotExist(err):
		return nil, err
	}

	a.mu.Lock()
	a.cur = s
	a.mu.Unlock()
	return s, nil
}

// watches reports whether a change to the named file should trigger a reload.
func (a *artifacts) watches(name string) bool {
	switch filepath.Base(name) {
	case a.graphName, a.statsName, cas.ManifestName:
		return true
	}
	return false
}

func loadStats(path string) (*stats.Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("stats artifact", path)
		}
		return nil, errors.NewIO("read", path, err)
	}
	var st stats.Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &st, nil
}
