package graphstore

import (
	"context"
)

// PanelStats summarizes one panel's stored graph.
type PanelStats struct {
	Panel      string `json:"panel"`
	Components int64  `json:"components"`
	Wires      int64  `json:"wires"`
}

// NodeCounts returns node counts grouped by label.
func (s *Store) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// RelationshipCounts returns relationship counts grouped by type.
func (s *Store) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// TopPanels returns the largest panels by component count.
func (s *Store) TopPanels(ctx context.Context, limit int) ([]PanelStats, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Component)
		OPTIONAL MATCH (n)-[r:CONNECTED]-()
		WITH n.panel AS panel, count(DISTINCT n) AS components, count(DISTINCT r) AS wires
		RETURN panel, components, wires
		ORDER BY components DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []PanelStats
	for result.Next(ctx) {
		rec := result.Record()
		p, _ := rec.Get("panel")
		c, _ := rec.Get("components")
		w, _ := rec.Get("wires")
		st := PanelStats{}
		if ps, ok := p.(string); ok {
			st.Panel = ps
		}
		if ci, ok := c.(int64); ok {
			st.Components = ci
		}
		if wi, ok := w.(int64); ok {
			st.Wires = wi
		}
		stats = append(stats, st)
	}
	return stats, nil
}
