// Package stats computes the summary statistics written next to the graph
// artifact (stats.json).
package stats

import (
	"sort"

	"github.com/FocuswithJustin/xrefgraph/core/canon"
	"github.com/FocuswithJustin/xrefgraph/core/xref"
)

// TopN is the length of the most-referenced and most-referencing lists.
const TopN = 10

// BookCount is one entry of a ranked book list.
type BookCount struct {
	Book  string `json:"book"`
	Count int    `json:"count"`
}

// TestamentDistribution counts records by (from, to) testament.
type TestamentDistribution struct {
	OTToOT int `json:"OT_to_OT"`
	OTToNT int `json:"OT_to_NT"`
	NTToOT int `json:"NT_to_OT"`
	NTToNT int `json:"NT_to_NT"`
}

// Total returns the sum of all four buckets.
func (d TestamentDistribution) Total() int {
	return d.OTToOT + d.OTToNT + d.NTToOT + d.NTToNT
}

// Stats is the stats.json document.
type Stats struct {
	TotalVerseReferences    int                   `json:"total_verse_references"`
	TotalChapterConnections int                   `json:"total_chapter_connections"`
	MostReferencedBooks     []BookCount           `json:"most_referenced_books"`
	MostReferencingBooks    []BookCount           `json:"most_referencing_books"`
	TestamentDistribution   TestamentDistribution `json:"testament_distribution"`
}

// Compute derives statistics from the parsed records. Counts are record
// counts, not vote sums. chapterConnections is the number of aggregated
// chapter edges.
//
// Ranked lists hold at most TopN books with a nonzero count, by descending
// count; ties keep canonical book order.
func Compute(records []xref.Record, chapterConnections int) *Stats {
	var in, out [canon.BookCount]int
	var dist TestamentDistribution

	for _, r := range records {
		if i := r.From.BookIndex; i >= 0 && i < canon.BookCount {
			out[i]++
		}
		if i := r.To.BookIndex; i >= 0 && i < canon.BookCount {
			in[i]++
		}

		switch {
		case r.From.Testament == canon.OT && r.To.Testament == canon.OT:
			dist.OTToOT++
		case r.From.Testament == canon.OT && r.To.Testament == canon.NT:
			dist.OTToNT++
		case r.From.Testament == canon.NT && r.To.Testament == canon.OT:
			dist.NTToOT++
		case r.From.Testament == canon.NT && r.To.Testament == canon.NT:
			dist.NTToNT++
		}
	}

	return &Stats{
		TotalVerseReferences:    len(records),
		TotalChapterConnections: chapterConnections,
		MostReferencedBooks:     rank(records, in[:], func(r xref.Record) xref.VerseRef { return r.To }),
		MostReferencingBooks:    rank(records, out[:], func(r xref.Record) xref.VerseRef { return r.From }),
		TestamentDistribution:   dist,
	}
}

// rank orders the nonzero counts. Book names come from the records so a
// custom catalog's names are reported as parsed.
func rank(records []xref.Record, counts []int, side func(xref.Record) xref.VerseRef) []BookCount {
	names := make([]string, len(counts))
	for _, r := range records {
		ref := side(r)
		if i := ref.BookIndex; i >= 0 && i < len(names) && names[i] == "" {
			names[i] = ref.Book
		}
	}

	idx := make([]int, 0, len(counts))
	for i, c := range counts {
		if c > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return counts[idx[a]] > counts[idx[b]]
	})
	if len(idx) > TopN {
		idx = idx[:TopN]
	}

	ranked := make([]BookCount, len(idx))
	for k, i := range idx {
		ranked[k] = BookCount{Book: names[i], Count: counts[i]}
	}
	return ranked
}
