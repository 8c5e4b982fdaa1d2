package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/graphstore"
)

// Searcher abstracts Qdrant vector search.
type Searcher interface {
	SearchFiltered(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]SearchResult, error)
}

// GraphEnricher optionally attaches wiring context to component hits.
type GraphEnricher interface {
	Connections(ctx context.Context, id string) ([]graphstore.WireLink, error)
}

// Options configures the search service.
type Options struct {
	TopK          int
	UseGraph      bool
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		UseGraph:      true,
		SearchTimeout: 5 * time.Second,
	}
}

// Service answers catalog queries: embed the question, search the index,
// attach graph wiring to component hits.
type Service struct {
	embed  Embedder
	search Searcher
	graph  GraphEnricher
	opts   Options
	logger *slog.Logger
}

// NewService creates a Service. The graph enricher may be nil.
func NewService(embed Embedder, search Searcher, graph GraphEnricher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{embed: embed, search: search, graph: graph, opts: opts, logger: logger}
}

// Hit is one catalog answer entry.
type Hit struct {
	Ref     string                `json:"ref,omitempty"`
	Panel   string                `json:"panel"`
	Kind    string                `json:"kind"`
	Content string                `json:"content"`
	Source  string                `json:"source"`
	Score   float32               `json:"score"`
	Wires   []graphstore.WireLink `json:"wires,omitempty"`
}

// Answer is the structured response to a catalog query.
type Answer struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
}

// Query searches the catalog for components and wires matching a free-text
// question, optionally scoped to one panel.
func (s *Service) Query(ctx context.Context, question string, panel string) (*Answer, error) {
	s.logger.Info("catalog: query start", "question_len", len(question), "panel", panel)

	vectors, err := s.embed.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("catalog: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("catalog: embedder returned %d vectors for one query", len(vectors))
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	filter := map[string]string{}
	if panel != "" {
		filter["panel"] = domain.NormalizePanelLabel(panel)
	}

	results, err := s.search.SearchFiltered(searchCtx, vectors[0], s.opts.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	s.logger.Info("catalog: search done", "results", len(results))

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Ref:     r.Ref,
			Panel:   r.Panel,
			Kind:    r.Kind,
			Content: r.Content,
			Source:  r.Source,
			Score:   r.Score,
		}
		if s.opts.UseGraph && s.graph != nil && r.Kind == "component" && r.Ref != "" {
			hits[i].Wires = s.enrichWithGraph(ctx, r.Panel, r.Ref)
		}
	}

	return &Answer{Query: question, Hits: hits}, nil
}

// enrichWithGraph fetches a component's wires; failures are logged and the
// hit is returned without them.
func (s *Service) enrichWithGraph(ctx context.Context, panel, ref string) []graphstore.WireLink {
	links, err := s.graph.Connections(ctx, graphstore.NodeID(panel, ref))
	if err != nil {
		s.logger.Warn("catalog: graph enrichment failed, continuing without", "err", err)
		return nil
	}
	return links
}
