package pipeline

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/core/graph"
	"github.com/FocuswithJustin/xrefgraph/internal/fileutil"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
	"github.com/FocuswithJustin/xrefgraph/internal/metrics"
)

// PreviewSummary reports a written preview script.
type PreviewSummary struct {
	graph.PreviewReport
	Path         string  `json:"path"`
	PreviewBytes int64   `json:"preview_bytes"`
	FullBytes    int64   `json:"full_bytes,omitempty"`
	Reduction    float64 `json:"reduction_percent,omitempty"`
}

func (p *PreviewSummary) setFullSize(full int64) {
	p.FullBytes = full
	if full > 0 {
		p.Reduction = 100 - float64(p.PreviewBytes)/float64(full)*100
	}
}

// String renders the summary the way the CLI prints it.
func (p *PreviewSummary) String() string {
	s := fmt.Sprintf("%d of %d connections, %d chapters, weights %d..%d, %s",
		p.Retained, p.SourceConnections, p.Chapters, p.LowestWeight, p.HighestWeight,
		humanize.Bytes(uint64(p.PreviewBytes)))
	if p.FullBytes > 0 {
		s += fmt.Sprintf(" (full %s, %.1f%% smaller)", humanize.Bytes(uint64(p.FullBytes)), p.Reduction)
	}
	return s
}

func writePreview(a *graph.Artifact, limit int, out string) (*PreviewSummary, error) {
	p, _, report, err := graph.Preview(a, limit)
	if err != nil {
		return nil, errors.Wrap(errors.NewValidation("preview-limit", err.Error()), "preview")
	}
	if err := graph.WritePreviewScript(out, p, len(a.Connections)); err != nil {
		return nil, fmt.Errorf("write preview: %w", err)
	}
	size, err := fileutil.Size(out)
	if err != nil {
		return nil, fmt.Errorf("stat preview: %w", err)
	}
	logging.ArtifactWritten("preview", out, size,
		"connections", report.Retained, "chapters", report.Chapters)
	return &PreviewSummary{PreviewReport: report, Path: out, PreviewBytes: size}, nil
}

// RunPreview derives the preview script from an existing graph artifact.
func RunPreview(graphPath string, limit int, out string) (sum *PreviewSummary, err error) {
	defer func() { metrics.PipelineRun("preview", err) }()
	if limit <= 0 {
		return nil, &errors.ValidationError{Field: "limit", Value: fmt.Sprint(limit), Message: "must be positive"}
	}
	a, err := graph.Load(graphPath)
	if err != nil {
		return nil, err
	}
	if a.Metadata.IsPreview {
		return nil, &errors.ValidationError{Field: "graph", Value: graphPath, Message: "is already a preview artifact"}
	}
	sum, err = writePreview(a, limit, out)
	if err != nil {
		return nil, err
	}
	if full, err := fileutil.Size(graphPath); err == nil {
		sum.setFullSize(full)
	}
	return sum, nil
}
