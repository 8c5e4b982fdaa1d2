package wiregraph

import (
	"fmt"
	"sort"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
	"github.com/WireVisionAI/wirevision-mvp/pkg/fn"
)

// Output is the resolved connection list plus everything that could not be
// resolved. Warnings are reported, never silently dropped.
type Output struct {
	Wires    []domain.WireRecord
	Warnings []string
}

// Resolve builds the per-identifier graphs and collapses reference chains
// into direct component-to-component records. Graphs are independent, so
// resolution fans out across a bounded worker pool.
func Resolve(pool []domain.WireRecord, workers int) Output {
	graphs := Build(pool)
	if workers <= 0 {
		workers = 4
	}
	type result struct {
		wires   []domain.WireRecord
		warning string
	}
	results := fn.ParMap(graphs, workers, func(g *Graph) result {
		wires, unresolved := g.resolve()
		r := result{wires: wires}
		if unresolved {
			r.warning = fmt.Sprintf("wire %q: unresolved reference (no endpoint found on the target sheet)", g.ID)
		}
		return r
	})

	var out Output
	for _, r := range results {
		out.Wires = append(out.Wires, r.wires...)
		if r.warning != "" {
			out.Warnings = append(out.Warnings, r.warning)
		}
	}
	return out
}

// resolve runs a bounded breadth-first search from every real node. Real
// nodes other than the start are recorded as reachable but never expanded,
// so a chain A-ref-B-ref-C yields A-B and B-C, never a phantom A-C. A pair
// is emitted only when the walk actually crossed a cross-sheet link or the
// two endpoints share a printed segment: two endpoints fanning into the same
// reference marker on one sheet are connected through the far sheet, not to
// each other. The second return reports a reference-bearing wire that
// produced no pair at all.
func (g *Graph) resolve() ([]domain.WireRecord, bool) {
	rep := g.segmentRepresentatives()

	type state struct {
		n       int
		crossed bool
	}
	seen := make(map[[2]string]bool)
	var out []domain.WireRecord

	for s := range g.nodes {
		if g.nodes[s].Kind == designator.KindReference {
			continue
		}
		visited := [2][]bool{make([]bool, len(g.nodes)), make([]bool, len(g.nodes))}
		visited[0][s] = true
		queue := []state{{n: s}}
		for len(queue) > 0 {
			st := queue[0]
			queue = queue[1:]
			for _, m := range sortedNeighbors(g.adj[st.n]) {
				crossed := st.crossed || g.adj[st.n][m]
				if g.nodes[m].Kind != designator.KindReference {
					if m == s {
						continue
					}
					if !crossed && st.n != s {
						continue
					}
					key := pairKey(g.nodes[s].Name, g.nodes[m].Name)
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, g.resolvedRecord(s, m, rep))
					continue
				}
				ci := 0
				if crossed {
					ci = 1
				}
				if visited[ci][m] {
					continue
				}
				visited[ci][m] = true
				queue = append(queue, state{n: m, crossed: crossed})
			}
		}
	}
	return out, g.hasReference && len(out) == 0
}

// segmentRepresentatives maps each node to the earliest printed segment that
// touches it, so resolved records can carry gauge, color and the rest of the
// row attributes forward.
func (g *Graph) segmentRepresentatives() map[int]domain.WireRecord {
	rep := make(map[int]domain.WireRecord, len(g.nodes))
	for _, seg := range g.segments {
		if _, ok := rep[seg.a]; !ok {
			rep[seg.a] = seg.rec
		}
		if _, ok := rep[seg.b]; !ok {
			rep[seg.b] = seg.rec
		}
	}
	return rep
}

func (g *Graph) resolvedRecord(s, m int, rep map[int]domain.WireRecord) domain.WireRecord {
	page, foglio := g.nodes[s].Page, g.nodes[s].Foglio
	if page == 0 || (g.nodes[m].Page > 0 && g.nodes[m].Page < page) {
		page, foglio = g.nodes[m].Page, g.nodes[m].Foglio
	}
	rec := domain.WireRecord{
		ID:     g.ID,
		From:   g.nodes[s].Name,
		To:     g.nodes[m].Name,
		Page:   page,
		Foglio: foglio,
	}
	fillAttrs(&rec, rep[s])
	fillAttrs(&rec, rep[m])
	return rec
}

// fillAttrs copies row attributes into rec wherever rec has none yet.
func fillAttrs(rec *domain.WireRecord, src domain.WireRecord) {
	if rec.Cable == "" {
		rec.Cable = src.Cable
	}
	if rec.Gauge == "" {
		rec.Gauge = src.Gauge
	}
	if rec.Color == "" {
		rec.Color = src.Color
	}
	if rec.LengthMM == 0 {
		rec.LengthMM = src.LengthMM
	}
	if rec.TerminalA == "" {
		rec.TerminalA = src.TerminalA
	}
	if rec.TerminalB == "" {
		rec.TerminalB = src.TerminalB
	}
	if rec.Note == "" {
		rec.Note = src.Note
	}
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func sortedNeighbors(adj map[int]bool) []int {
	out := make([]int, 0, len(adj))
	for n := range adj {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
