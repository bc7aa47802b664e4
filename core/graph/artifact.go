// Package graph assigns the canonical chapter id space, builds the graph
// artifact consumed by the visualization front ends, and derives bounded
// preview artifacts from it.
package graph

import (
	"github.com/FocuswithJustin/xrefgraph/core/aggregate"
	"github.com/FocuswithJustin/xrefgraph/core/canon"
)

// Metadata summarizes an artifact.
type Metadata struct {
	TotalBooks       int `json:"total_books"`
	TotalChapters    int `json:"total_chapters"`
	TotalConnections int `json:"total_connections"`
	TotalVerseRefs   int `json:"total_verse_refs"`

	// Preview-only fields.
	IsPreview          bool   `json:"is_preview,omitempty"`
	PreviewDescription string `json:"preview_description,omitempty"`
}

// ChapterNode is one chapter in the id space.
type ChapterNode struct {
	ID        int             `json:"id"`
	Label     string          `json:"label"`
	Book      string          `json:"book"`
	Chapter   int             `json:"chapter"`
	BookIndex int             `json:"book_index"`
	Testament canon.Testament `json:"testament"`
}

// Key returns the chapter key the node was assigned from.
func (n ChapterNode) Key() canon.ChapterKey {
	return canon.ChapterKey{Book: n.Book, Chapter: n.Chapter}
}

// Connection is a directed, weighted edge between two chapter ids.
type Connection struct {
	Source int `json:"source"`
	Target int `json:"target"`
	Weight int `json:"weight"`
}

// Artifact is the persisted aggregation result (graph_data.json). A preview
// artifact has the same shape with restricted chapters and connections.
type Artifact struct {
	Metadata    Metadata              `json:"metadata"`
	Books       []canon.Book          `json:"books"`
	Chapters    []ChapterNode         `json:"chapters"`
	Connections []Connection          `json:"connections"`
	BookMatrix  *aggregate.BookMatrix `json:"book_matrix"`
}

// Chapter returns the node with the given id.
func (a *Artifact) Chapter(id int) (ChapterNode, bool) {
	if id < 0 || id >= len(a.Chapters) {
		return ChapterNode{}, false
	}
	return a.Chapters[id], true
}
