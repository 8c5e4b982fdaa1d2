// Package merge scopes resolved connections to the target panel and applies
// the final deduplication pass before the results are handed to renderers.
package merge

import (
	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
)

// EndpointSet is the set of real endpoint labels observed on pages belonging
// to the target panel. It is built once per run from the normalized
// target-panel pool and used only as a membership filter.
type EndpointSet struct {
	labels map[string]bool
}

// NewEndpointSet collects non-reference endpoint labels from the target-panel
// wire pool.
func NewEndpointSet(pool []domain.WireRecord) *EndpointSet {
	s := &EndpointSet{labels: make(map[string]bool, len(pool)*2)}
	for _, rec := range pool {
		s.add(rec.From)
		s.add(rec.To)
	}
	return s
}

func (s *EndpointSet) add(label string) {
	if label == "" || designator.Classify(label) == designator.KindReference {
		return
	}
	s.labels[label] = true
}

// Contains reports whether the exact endpoint label was observed on the
// target panel.
func (s *EndpointSet) Contains(label string) bool {
	return s != nil && s.labels[label]
}

// Len returns the number of distinct labels in the set.
func (s *EndpointSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Scope keeps resolved records with at least one endpoint in the target
// panel's set. When the run never used a cross-panel pool the input is
// already scoped and is passed through untouched.
func Scope(resolved []domain.WireRecord, set *EndpointSet, crossPanel bool) []domain.WireRecord {
	if !crossPanel {
		return resolved
	}
	out := make([]domain.WireRecord, 0, len(resolved))
	for _, rec := range resolved {
		if set.Contains(rec.From) || set.Contains(rec.To) {
			out = append(out, rec)
		}
	}
	return out
}

// DedupWires merges rows whose (id, from, to) triple repeats, which happens
// when redundant page sources cover the same sheet. The row with more
// populated fields wins.
func DedupWires(wires []domain.WireRecord) []domain.WireRecord {
	out := make([]domain.WireRecord, 0, len(wires))
	index := make(map[[3]string]int, len(wires))
	for _, rec := range wires {
		key := rec.Key()
		if i, ok := index[key]; ok {
			out[i] = domain.RicherWire(out[i], rec)
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// DedupComponents folds repeated component references into one record each,
// summing quantities and unioning wire sets.
func DedupComponents(comps []domain.ComponentRecord) []domain.ComponentRecord {
	out := make([]domain.ComponentRecord, 0, len(comps))
	index := make(map[string]int, len(comps))
	for _, c := range comps {
		if i, ok := index[c.Ref]; ok {
			out[i] = domain.MergeComponents(out[i], c)
			continue
		}
		index[c.Ref] = len(out)
		out = append(out, c)
	}
	return out
}

// Finalize runs panel scoping and the final dedup over both record kinds.
func Finalize(wires []domain.WireRecord, comps []domain.ComponentRecord, set *EndpointSet, crossPanel bool) ([]domain.WireRecord, []domain.ComponentRecord) {
	return DedupWires(Scope(wires, set, crossPanel)), DedupComponents(comps)
}
