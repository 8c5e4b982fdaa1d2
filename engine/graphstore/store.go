package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/repo"
)

// Store provides graph operations on top of the generic Neo4j repository.
type Store struct {
	opener     SessionOpener
	components *repo.Neo4jRepo[ComponentNode, string]
}

// New creates a driver-backed store.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		opener:     driverOpener{driver: driver},
		components: newComponentRepo(driver),
	}
}

// NewWithOpener creates a store on a custom session opener. Lookups that go
// through the generic repository are unavailable in this mode.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener}
}

func newComponentRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[ComponentNode, string] {
	return repo.NewNeo4jRepo[ComponentNode, string](driver, "Component", componentProps, componentFromRecord)
}

func componentFromRecord(rec *neo4j.Record) (ComponentNode, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return ComponentNode{}, err
	}
	return componentFromProps(node.Props), nil
}

// Component returns a component by its panel-scoped id.
func (s *Store) Component(ctx context.Context, id string) (ComponentNode, error) {
	if s.components == nil {
		return ComponentNode{}, fmt.Errorf("component lookup requires a driver-backed store")
	}
	return s.components.Get(ctx, id)
}

// Components pages through stored components, optionally scoped to a panel.
func (s *Store) Components(ctx context.Context, panel string, offset, limit int) ([]ComponentNode, error) {
	if s.components == nil {
		return nil, fmt.Errorf("component listing requires a driver-backed store")
	}
	opts := repo.ListOpts{Offset: offset, Limit: limit}
	if panel != "" {
		opts.Filter = map[string]any{"panel": domain.NormalizePanelLabel(panel)}
	}
	return s.components.List(ctx, opts)
}

// SaveExtraction writes a finished run into the graph.
func (s *Store) SaveExtraction(ctx context.Context, meta domain.RunMeta, ext domain.Extraction) error {
	nodes, conns := FromExtraction(meta, ext)
	return s.SaveBatch(ctx, nodes, conns)
}

// SaveBatch merges components and connections in a single transaction.
// Re-running the same extraction is idempotent: nodes merge on id,
// relationships on the (from, to, wire) triple.
func (s *Store) SaveBatch(ctx context.Context, nodes []ComponentNode, conns []Connection) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, n := range nodes {
			cypher := `MERGE (n:Component {id: $id}) SET n += $props`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":    n.ID,
				"props": componentProps(n),
			}); err != nil {
				return nil, err
			}
		}
		for _, c := range conns {
			cypher := `MATCH (a:Component {id: $from}), (b:Component {id: $to})
			 MERGE (a)-[r:CONNECTED {wire: $wire}]->(b)
			 SET r += $props`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"from":  c.FromID,
				"to":    c.ToID,
				"wire":  c.WireID,
				"props": connectionProps(c),
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Neighbors returns components within the given traversal depth from a node.
func (s *Store) Neighbors(ctx context.Context, nodeID string, depth int) ([]ComponentNode, error) {
	if depth <= 0 {
		depth = 1
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (start:Component {id: $id})-[:CONNECTED*1..%d]-(n:Component)
		 WHERE n.id <> $id
		 RETURN DISTINCT n`, depth)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return collectComponents(ctx, result)
}

// PanelComponents returns every component stored for a panel.
func (s *Store) PanelComponents(ctx context.Context, panel string) ([]ComponentNode, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Component {panel: $panel}) RETURN n ORDER BY n.ref`
	result, err := sess.Run(ctx, cypher, map[string]any{"panel": domain.NormalizePanelLabel(panel)})
	if err != nil {
		return nil, err
	}
	return collectComponents(ctx, result)
}

// WireLink is one wire touching a component, as seen from that component.
type WireLink struct {
	Wire  string `json:"wire"`
	Other string `json:"other"`
	Gauge string `json:"gauge,omitempty"`
	Color string `json:"color,omitempty"`
}

// Connections returns the wires attached to a component.
func (s *Store) Connections(ctx context.Context, nodeID string) ([]WireLink, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (a:Component {id: $id})-[r:CONNECTED]-(b:Component)
	 RETURN r.wire AS wire, b.id AS other, r.gauge AS gauge, r.color AS color
	 ORDER BY wire, other`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}

	var links []WireLink
	for result.Next(ctx) {
		rec := result.Record()
		links = append(links, WireLink{
			Wire:  recString(rec, "wire"),
			Other: recString(rec, "other"),
			Gauge: recString(rec, "gauge"),
			Color: recString(rec, "color"),
		})
	}
	return links, result.Err()
}

// TracePath finds the shortest wiring path between two components.
func (s *Store) TracePath(ctx context.Context, fromID, toID string) ([]ComponentNode, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH p = shortestPath((a:Component {id: $from})-[:CONNECTED*]-(b:Component {id: $to}))
	 RETURN nodes(p) AS nodes`
	result, err := sess.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		return nil, fmt.Errorf("no path from %s to %s", fromID, toID)
	}

	nodesVal, ok := result.Record().Get("nodes")
	if !ok {
		return nil, fmt.Errorf("no nodes in path result")
	}
	nodeList, ok := nodesVal.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected nodes type")
	}

	var path []ComponentNode
	for _, raw := range nodeList {
		node, ok := raw.(dbtype.Node)
		if !ok {
			continue
		}
		path = append(path, componentFromProps(node.Props))
	}
	return path, nil
}

// collectComponents reads all Component nodes from a result set.
func collectComponents(ctx context.Context, result CypherResult) ([]ComponentNode, error) {
	var items []ComponentNode
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, componentFromProps(node.Props))
	}
	return items, result.Err()
}

func recString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
