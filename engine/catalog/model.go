// Package catalog maintains a searchable index of extracted components and
// wires in Qdrant. Each component and each resolved wire becomes one point
// whose payload carries the printed designations, so electricians can find
// "the motor breaker on panel A1" without knowing its exact reference.
package catalog

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	Ref     string            `json:"ref,omitempty"`
	Panel   string            `json:"panel"`
	Source  string            `json:"source"`
	Kind    string            `json:"kind"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// VectorRecord represents a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, ref, panel, source, kind, page
}
