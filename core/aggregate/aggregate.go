// Package aggregate reduces verse-level cross-reference records to chapter-pair
// and book-pair weights.
//
// Both reductions sum |votes| and exclude self pairs. They are pure functions of
// the record set; fold order does not change any weight.
package aggregate

import (
	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
)

// ChapterEdge is an aggregated directed connection between two chapters,
// identified by chapter key rather than by numeric id.
type ChapterEdge struct {
	From   canon.ChapterKey
	To     canon.ChapterKey
	Weight int
}

// chapterPair is the composite grouping key for chapter aggregation.
type chapterPair struct {
	from, to canon.ChapterKey
}

// Chapters groups records by (from chapter, to chapter), dropping pairs whose
// endpoints fall in the same chapter, and sums record weights per group.
//
// Edges are returned in order of first appearance of their pair in records, so
// the same input always yields the same slice.
func Chapters(records []xref.Record) []ChapterEdge {
	index := make(map[chapterPair]int)
	var edges []ChapterEdge

	for _, r := range records {
		key := chapterPair{from: r.From.ChapterKey(), to: r.To.ChapterKey()}
		if key.from == key.to {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(edges)
			index[key] = i
			edges = append(edges, ChapterEdge{From: key.from, To: key.to})
		}
		edges[i].Weight += r.Weight()
	}
	return edges
}

// bookPair is the composite grouping key for book aggregation.
type bookPair struct {
	from, to int
}

// Books groups records by (from book, to book), dropping same-book pairs, and
// scatters the summed weights into a BookMatrix. Groups whose book index falls
// outside the matrix are skipped.
func Books(records []xref.Record) *BookMatrix {
	sums := make(map[bookPair]int)
	for _, r := range records {
		if r.SameBook() {
			continue
		}
		sums[bookPair{from: r.From.BookIndex, to: r.To.BookIndex}] += r.Weight()
	}

	m := &BookMatrix{}
	for k, w := range sums {
		if !inRange(k.from) || !inRange(k.to) {
			continue
		}
		m[k.from][k.to] = w
	}
	return m
}

func inRange(i int) bool {
	return i >= 0 && i < canon.BookCount
}

// Groups returns the number of distinct directed book pairs with at least one
// contributing record.
func Groups(records []xref.Record) int {
	seen := make(map[bookPair]struct{})
	for _, r := range records {
		if r.SameBook() {
			continue
		}
		seen[bookPair{from: r.From.BookIndex, to: r.To.BookIndex}] = struct{}{}
	}
	return len(seen)
}
