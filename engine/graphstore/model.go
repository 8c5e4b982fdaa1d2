// Package graphstore persists resolved wiring into Neo4j as a browsable
// component graph: one Component node per device on a panel, one CONNECTED
// relationship per resolved wire. The store is a downstream view of a
// finished extraction; resolution correctness never depends on it.
package graphstore

import (
	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
)

// ComponentNode is one device on one panel.
type ComponentNode struct {
	ID          string `json:"id"` // "<panel>/<ref>", unique across panels
	Ref         string `json:"ref"`
	Panel       string `json:"panel"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Page        int    `json:"page,omitempty"`
}

// Connection is one resolved wire between two components.
type Connection struct {
	WireID  string `json:"wire_id"`
	FromID  string `json:"from_id"`
	ToID    string `json:"to_id"`
	FromPin string `json:"from_pin,omitempty"`
	ToPin   string `json:"to_pin,omitempty"`
	Gauge   string `json:"gauge,omitempty"`
	Color   string `json:"color,omitempty"`
	Page    int    `json:"page,omitempty"`
	Panel   string `json:"panel"`
}

// NodeID builds the panel-scoped component id.
func NodeID(panel, ref string) string {
	return panel + "/" + ref
}

// FromExtraction flattens a finished run into graph rows. Wire endpoints
// carry pin suffixes ("QM102.1"); the graph keeps devices as nodes and pins
// as relationship properties. Endpoints with no matching component row still
// get a bare node so no connection dangles.
func FromExtraction(meta domain.RunMeta, ext domain.Extraction) ([]ComponentNode, []Connection) {
	panel := domain.NormalizePanelLabel(meta.Panel)

	var nodes []ComponentNode
	index := make(map[string]int)
	ensure := func(ref string, page int) {
		if _, ok := index[ref]; ok {
			return
		}
		index[ref] = len(nodes)
		nodes = append(nodes, ComponentNode{ID: NodeID(panel, ref), Ref: ref, Panel: panel, Page: page})
	}

	for _, c := range ext.Components {
		ensure(c.Ref, c.Page)
		n := &nodes[index[c.Ref]]
		n.Description = c.Description
		n.Quantity = c.Quantity
		if c.Page > 0 {
			n.Page = c.Page
		}
	}

	var conns []Connection
	for _, w := range ext.Wires {
		fromRef, fromPin := designator.EndpointComponent(w.From)
		toRef, toPin := designator.EndpointComponent(w.To)
		if fromRef == "" || toRef == "" {
			continue
		}
		ensure(fromRef, w.Page)
		ensure(toRef, w.Page)
		conns = append(conns, Connection{
			WireID:  w.ID,
			FromID:  NodeID(panel, fromRef),
			ToID:    NodeID(panel, toRef),
			FromPin: fromPin,
			ToPin:   toPin,
			Gauge:   w.Gauge,
			Color:   w.Color,
			Page:    w.Page,
			Panel:   panel,
		})
	}
	return nodes, conns
}

func componentProps(n ComponentNode) map[string]any {
	return map[string]any{
		"id":          n.ID,
		"ref":         n.Ref,
		"panel":       n.Panel,
		"description": n.Description,
		"quantity":    n.Quantity,
		"page":        n.Page,
	}
}

func connectionProps(c Connection) map[string]any {
	return map[string]any{
		"wire":     c.WireID,
		"from_pin": c.FromPin,
		"to_pin":   c.ToPin,
		"gauge":    c.Gauge,
		"color":    c.Color,
		"page":     c.Page,
		"panel":    c.Panel,
	}
}

// componentFromProps rebuilds a node from Neo4j properties. Integers come
// back as int64.
func componentFromProps(props map[string]any) ComponentNode {
	return ComponentNode{
		ID:          strProp(props, "id"),
		Ref:         strProp(props, "ref"),
		Panel:       strProp(props, "panel"),
		Description: strProp(props, "description"),
		Quantity:    intProp(props, "quantity"),
		Page:        intProp(props, "page"),
	}
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
