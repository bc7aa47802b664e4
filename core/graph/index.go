package graph

import "sort"

// ConnectionIndex provides lookup of an artifact's connections by endpoint.
type ConnectionIndex struct {
	// Outgoing maps a source chapter id to its connections.
	Outgoing map[int][]Connection

	// Incoming maps a target chapter id to the connections pointing at it.
	Incoming map[int][]Connection

	byLabel map[string]int
}

// NewConnectionIndex indexes the connections and chapter labels of a.
func NewConnectionIndex(a *Artifact) *ConnectionIndex {
	idx := &ConnectionIndex{
		Outgoing: make(map[int][]Connection),
		Incoming: make(map[int][]Connection),
		byLabel:  make(map[string]int, len(a.Chapters)),
	}
	for i, n := range a.Chapters {
		idx.byLabel[n.Label] = i
	}
	for _, c := range a.Connections {
		idx.Outgoing[c.Source] = append(idx.Outgoing[c.Source], c)
		idx.Incoming[c.Target] = append(idx.Incoming[c.Target], c)
	}
	return idx
}

// Lookup returns the chapter position for a label such as "Genesis 1".
func (idx *ConnectionIndex) Lookup(label string) (int, bool) {
	id, ok := idx.byLabel[label]
	return id, ok
}

// Degree returns the out- and in-degree of a chapter.
func (idx *ConnectionIndex) Degree(id int) (out, in int) {
	return len(idx.Outgoing[id]), len(idx.Incoming[id])
}

// Heaviest returns up to n connections by descending weight; ties keep the
// order of conns.
func Heaviest(conns []Connection, n int) []Connection {
	sorted := make([]Connection, len(conns))
	copy(sorted, conns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
