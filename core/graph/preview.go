package graph

import (
	"fmt"
	"sort"
)

// DefaultPreviewLimit is the number of connections kept by the reference
// front end's instant-load preview.
const DefaultPreviewLimit = 200

// IndexMap records how a preview compacted the chapter id space.
type IndexMap struct {
	// OldToNew maps a source chapter id to its preview id.
	OldToNew map[int]int
	// NewToOld lists source chapter ids by preview id (ascending).
	NewToOld []int
}

// PreviewReport summarizes a preview extraction.
type PreviewReport struct {
	SourceConnections int `json:"source_connections"`
	Retained          int `json:"retained"`
	Chapters          int `json:"chapters"`
	HighestWeight     int `json:"highest_weight"`
	LowestWeight      int `json:"lowest_weight"`
}

// Preview returns a bounded subgraph of a holding its limit heaviest
// connections, with chapters restricted to those the retained connections
// touch and renumbered densely from zero in ascending source-id order.
//
// Ties in weight keep the source array order. Retained chapter nodes keep their
// payload unchanged, including the source id, so preview.Chapters[i].ID is the
// reverse mapping for preview id i. Books and the book matrix are copied by
// reference; a must not be mutated afterwards.
func Preview(a *Artifact, limit int) (*Artifact, *IndexMap, PreviewReport, error) {
	if limit <= 0 {
		return nil, nil, PreviewReport{}, fmt.Errorf("preview limit must be positive, got %d", limit)
	}

	valid := make([]Connection, 0, len(a.Connections))
	for _, c := range a.Connections {
		// A connection to a chapter outside the node list cannot be remapped.
		if _, ok := a.Chapter(c.Source); !ok {
			continue
		}
		if _, ok := a.Chapter(c.Target); !ok {
			continue
		}
		valid = append(valid, c)
	}
	top := Heaviest(valid, limit)

	used := make(map[int]struct{}, 2*len(top))
	for _, c := range top {
		used[c.Source] = struct{}{}
		used[c.Target] = struct{}{}
	}

	idx := &IndexMap{
		OldToNew: make(map[int]int, len(used)),
		NewToOld: make([]int, 0, len(used)),
	}
	for old := range used {
		idx.NewToOld = append(idx.NewToOld, old)
	}
	sort.Ints(idx.NewToOld)

	chapters := make([]ChapterNode, len(idx.NewToOld))
	for newID, old := range idx.NewToOld {
		idx.OldToNew[old] = newID
		chapters[newID] = a.Chapters[old]
	}

	conns := make([]Connection, len(top))
	for i, c := range top {
		conns[i] = Connection{
			Source: idx.OldToNew[c.Source],
			Target: idx.OldToNew[c.Target],
			Weight: c.Weight,
		}
	}

	report := PreviewReport{
		SourceConnections: len(a.Connections),
		Retained:          len(conns),
		Chapters:          len(chapters),
	}
	if len(top) > 0 {
		report.HighestWeight = top[0].Weight
		report.LowestWeight = top[len(top)-1].Weight
	}

	return &Artifact{
		Metadata: Metadata{
			TotalBooks:         a.Metadata.TotalBooks,
			TotalChapters:      len(chapters),
			TotalConnections:   len(conns),
			TotalVerseRefs:     a.Metadata.TotalVerseRefs,
			IsPreview:          true,
			PreviewDescription: fmt.Sprintf("Top %d connections by weight for instant loading", limit),
		},
		Books:       a.Books,
		Chapters:    chapters,
		Connections: conns,
		BookMatrix:  a.BookMatrix,
	}, idx, report, nil
}
