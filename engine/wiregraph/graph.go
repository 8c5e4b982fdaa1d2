// Package wiregraph builds one small endpoint graph per wire identifier from
// the normalized segment pool and resolves which real (component or terminal)
// endpoints are actually connected. Reference endpoints are kept unique per
// emitting sheet, complementary references are stitched across sheets, and a
// bounded breadth-first search eliminates the reference hops without ever
// inventing connections a chain of segments does not support.
package wiregraph

import (
	"sort"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
)

// Node is one endpoint in a wire's graph.
type Node struct {
	Name   string
	Kind   designator.Kind
	Page   int // earliest page the endpoint was seen on
	Foglio int
	Target int // reference nodes: sheet the marker points at
	Source int // reference nodes: sheet the marker was printed on
}

// Graph is the arena for one wire identifier: nodes keyed by name, adjacency
// as index sets. The boolean on an adjacency entry marks a cross-sheet
// reference link rather than a printed segment.
type Graph struct {
	ID           string
	nodes        []Node
	index        map[string]int
	adj          []map[int]bool
	segments     []segment
	hasReference bool
}

// segment remembers which printed row produced an edge, for attribute
// carry-over into resolved records.
type segment struct {
	a, b int
	rec  domain.WireRecord
}

func newGraph(id string) *Graph {
	return &Graph{ID: id, index: make(map[string]int)}
}

func (g *Graph) node(name string, kind designator.Kind, rec domain.WireRecord) int {
	if i, ok := g.index[name]; ok {
		if rec.Page > 0 && (g.nodes[i].Page == 0 || rec.Page < g.nodes[i].Page) {
			g.nodes[i].Page = rec.Page
			g.nodes[i].Foglio = rec.Foglio
		}
		return i
	}
	n := Node{Name: name, Kind: kind, Page: rec.Page, Foglio: rec.Foglio}
	if kind == designator.KindReference {
		if target, foglio, ok := designator.ParseReference(name); ok {
			n.Target = target
			n.Source = foglio
		}
	}
	g.nodes = append(g.nodes, n)
	g.adj = append(g.adj, make(map[int]bool))
	g.index[name] = len(g.nodes) - 1
	return len(g.nodes) - 1
}

func (g *Graph) edge(a, b int, isLink bool) {
	if a == b {
		return
	}
	g.adj[a][b] = g.adj[a][b] || isLink
	g.adj[b][a] = g.adj[b][a] || isLink
}

// endpointNode classifies one endpoint label and returns its node index.
// Reference labels get the emitting sheet appended so that two sheets both
// saying "continues on page 108" never collapse into one node.
func (g *Graph) endpointNode(label string, rec domain.WireRecord) int {
	kind := designator.Classify(label)
	name := label
	if kind == designator.KindReference {
		name = designator.QualifyReference(label, rec.Foglio)
	}
	return g.node(name, kind, rec)
}

// Build groups the normalized pool by wire identifier and assembles one graph
// per identifier, in ascending identifier order. Records are visited in page
// order so node pages reflect the earliest sighting.
func Build(pool []domain.WireRecord) []*Graph {
	sorted := make([]domain.WireRecord, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Page < sorted[j].Page })

	byID := make(map[string]*Graph)
	var order []string
	for _, rec := range sorted {
		g, ok := byID[rec.ID]
		if !ok {
			g = newGraph(rec.ID)
			byID[rec.ID] = g
			order = append(order, rec.ID)
		}
		a := g.endpointNode(rec.From, rec)
		b := g.endpointNode(rec.To, rec)
		g.edge(a, b, false)
		g.segments = append(g.segments, segment{a: a, b: b, rec: rec})
		if g.nodes[a].Kind == designator.KindReference || g.nodes[b].Kind == designator.KindReference {
			g.hasReference = true
		}
	}

	sort.Strings(order)
	graphs := make([]*Graph, 0, len(order))
	for _, id := range order {
		g := byID[id]
		g.crossLink()
		graphs = append(graphs, g)
	}
	return graphs
}

// crossLink adds a direct edge between every complementary pair of reference
// nodes: one targeting sheet X emitted from sheet Y, the other targeting
// sheet Y emitted from sheet X. This is how "continues on 108" printed on
// sheet 104 is stitched to "continues on 104" printed on sheet 108.
func (g *Graph) crossLink() {
	for i := range g.nodes {
		if g.nodes[i].Kind != designator.KindReference || g.nodes[i].Source == 0 {
			continue
		}
		for j := i + 1; j < len(g.nodes); j++ {
			if g.nodes[j].Kind != designator.KindReference || g.nodes[j].Source == 0 {
				continue
			}
			if g.nodes[i].Target == g.nodes[j].Source && g.nodes[j].Target == g.nodes[i].Source {
				g.edge(i, j, true)
			}
		}
	}
}
