// Package pipeline runs the batch transform from a cross-reference dataset to
// the graph, statistics, preview and optional SQLite artifacts.
package pipeline

import (
	"path/filepath"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/cas"
	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/internal/source"
	"github.com/FocuswithJustin/xrefgraph/internal/validation"
)

// Default artifact names.
const (
	DefaultGraphName = "graph_data.json"
	DefaultStatsName = "stats.json"
)

// Config describes one build run.
type Config struct {
	// Input is the dataset path; .xz and .gz are decompressed transparently.
	Input  string
	Format source.Format

	// OutDir receives the graph, stats and manifest files.
	OutDir    string
	GraphName string
	StatsName string

	// PreviewOut, when set, also writes the preview script there.
	PreviewOut   string
	PreviewLimit int

	// SQLitePath, when set, also exports the graph to a SQLite database.
	SQLitePath string

	// SnapshotDir, when set, copies every artifact into a content-addressed store.
	SnapshotDir string

	// NoManifest disables manifest.json.
	NoManifest bool

	// Catalog defaults to the 66-book canon.
	Catalog *canon.Catalog

	// Version is recorded in the manifest.
	Version string
}

func (c *Config) setDefaults() {
	if c.GraphName == "" {
		c.GraphName = DefaultGraphName
	}
	if c.StatsName == "" {
		c.StatsName = DefaultStatsName
	}
	if c.PreviewLimit == 0 {
		c.PreviewLimit = graph.DefaultPreviewLimit
	}
	if c.Catalog == nil {
		c.Catalog = canon.Default()
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	c.setDefaults()
	if c.Input == "" {
		return errors.NewValidation("input", "an input file is required")
	}
	if c.OutDir == "" {
		return errors.NewValidation("out", "an output directory is required")
	}
	if c.PreviewLimit < 0 {
		return errors.NewValidation("preview-limit", "must be positive")
	}
	for _, name := range []string{c.GraphName, c.StatsName} {
		if err := validation.ArtifactName(name); err != nil {
			return &errors.ValidationError{Field: "artifact name", Value: name, Message: err.Error()}
		}
	}
	return nil
}

// GraphPath returns the graph artifact path.
func (c *Config) GraphPath() string {
	return filepath.Join(c.OutDir, c.GraphName)
}

// StatsPath returns the statistics artifact path.
func (c *Config) StatsPath() string {
	return filepath.Join(c.OutDir, c.StatsName)
}

// ManifestPath returns the manifest path.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutDir, cas.ManifestName)
}
