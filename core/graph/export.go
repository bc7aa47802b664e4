package graph

import (
	"sort"

	"github.com/FocuswithJustin/xrefgraph/core/aggregate"
	"github.com/FocuswithJustin/xrefgraph/core/canon"
)

// ChapterNodes enumerates every chapter of the catalog in canon order and
// assigns ids 0..N-1, whether or not a chapter has any edges.
func ChapterNodes(cat *canon.Catalog) []ChapterNode {
	nodes := make([]ChapterNode, 0, cat.TotalChapters())
	cat.EachChapter(func(bookIndex int, b canon.Book, ch int) bool {
		key := canon.ChapterKey{Book: b.Name, Chapter: ch}
		nodes = append(nodes, ChapterNode{
			ID:        len(nodes),
			Label:     key.String(),
			Book:      b.Name,
			Chapter:   ch,
			BookIndex: bookIndex,
			Testament: b.Testament,
		})
		return true
	})
	return nodes
}

// BuildReport describes what Build did with the aggregated edges.
type BuildReport struct {
	// Remapped is the number of edges whose endpoints were both known.
	Remapped int
	// Dropped lists the edges with an endpoint outside the chapter id space,
	// such as "Genesis 51".
	Dropped []aggregate.ChapterEdge
}

// Build assembles the graph artifact: it assigns the chapter id space, remaps
// each aggregated edge onto it, and attaches the book table and matrix.
//
// verseRefs is the count of raw records successfully parsed. Connections are
// ordered by (source, target) so identical inputs give identical arrays.
func Build(cat *canon.Catalog, edges []aggregate.ChapterEdge, matrix *aggregate.BookMatrix, verseRefs int) (*Artifact, BuildReport) {
	nodes := ChapterNodes(cat)
	ids := make(map[canon.ChapterKey]int, len(nodes))
	for _, n := range nodes {
		ids[n.Key()] = n.ID
	}

	var report BuildReport
	conns := make([]Connection, 0, len(edges))
	for _, e := range edges {
		src, ok1 := ids[e.From]
		dst, ok2 := ids[e.To]
		if !ok1 || !ok2 {
			report.Dropped = append(report.Dropped, e)
			continue
		}
		conns = append(conns, Connection{Source: src, Target: dst, Weight: e.Weight})
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].Source != conns[j].Source {
			return conns[i].Source < conns[j].Source
		}
		return conns[i].Target < conns[j].Target
	})
	report.Remapped = len(conns)

	if matrix == nil {
		matrix = &aggregate.BookMatrix{}
	}

	return &Artifact{
		Metadata: Metadata{
			TotalBooks:       cat.Len(),
			TotalChapters:    len(nodes),
			TotalConnections: len(conns),
			TotalVerseRefs:   verseRefs,
		},
		Books:       cat.Books(),
		Chapters:    nodes,
		Connections: conns,
		BookMatrix:  matrix,
	}, report
}
