package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/graphstore"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0, 0}
	}
	return vectors, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleExtraction() (domain.RunMeta, domain.Extraction) {
	meta := domain.RunMeta{Source: "cabinet.pdf", Panel: "+A1"}
	ext := domain.Extraction{
		Wires: []domain.WireRecord{
			{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1.5", Page: 1},
		},
		Components: []domain.ComponentRecord{
			{Ref: "QM102", Description: "Motor breaker", Quantity: 1, Page: 1},
			{Ref: "KM45", Description: "Contactor", Quantity: 1, Page: 2},
		},
	}
	return meta, ext
}

// --- Indexer ---

func TestIndexExtraction(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}, deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	embed := &fakeEmbedder{}
	ix := NewIndexer(vs, embed, discardLogger())

	meta, ext := sampleExtraction()
	n, err := ix.IndexExtraction(context.Background(), meta, ext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 points (2 components, 1 wire), got %d", n)
	}

	if len(pts.calls) < 2 || pts.calls[0] != "delete" {
		t.Fatalf("expected delete before upsert, got %v", pts.calls)
	}

	points := pts.lastUpsert.GetPoints()
	if len(points) != 3 {
		t.Fatalf("expected 3 points in upsert, got %d", len(points))
	}
	payload := points[0].GetPayload()
	if payload["kind"].GetStringValue() != "component" || payload["ref"].GetStringValue() != "QM102" {
		t.Errorf("wrong first payload: %+v", payload)
	}
	if payload["panel"].GetStringValue() != "A1" {
		t.Errorf("panel label should be normalized: %+v", payload)
	}
	wirePayload := points[2].GetPayload()
	if wirePayload["kind"].GetStringValue() != "wire" || wirePayload["ref"].GetStringValue() != "24" {
		t.Errorf("wrong wire payload: %+v", wirePayload)
	}
}

func TestIndexExtraction_StableIDs(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}, deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	ix := NewIndexer(vs, &fakeEmbedder{}, discardLogger())

	meta, ext := sampleExtraction()
	if _, err := ix.IndexExtraction(context.Background(), meta, ext); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := pts.lastUpsert.GetPoints()[0].GetId().GetUuid()

	if _, err := ix.IndexExtraction(context.Background(), meta, ext); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := pts.lastUpsert.GetPoints()[0].GetId().GetUuid()

	if first != second {
		t.Errorf("point ids must be stable across runs: %s vs %s", first, second)
	}
}

func TestIndexExtraction_EmbedError(t *testing.T) {
	pts := &mockPoints{deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	ix := NewIndexer(vs, &fakeEmbedder{err: errors.New("embedder down")}, discardLogger())

	meta, ext := sampleExtraction()
	if _, err := ix.IndexExtraction(context.Background(), meta, ext); err == nil {
		t.Fatal("expected error")
	}
}

// --- Service ---

type fakeSearcher struct {
	results    []SearchResult
	err        error
	lastFilter map[string]string
}

func (f *fakeSearcher) SearchFiltered(_ context.Context, _ []float32, _ int, filters map[string]string) ([]SearchResult, error) {
	f.lastFilter = filters
	return f.results, f.err
}

type fakeEnricher struct {
	links  []graphstore.WireLink
	err    error
	lastID string
}

func (f *fakeEnricher) Connections(_ context.Context, id string) ([]graphstore.WireLink, error) {
	f.lastID = id
	return f.links, f.err
}

func TestQueryScopesPanel(t *testing.T) {
	search := &fakeSearcher{}
	svc := NewService(&fakeEmbedder{}, search, nil, DefaultOptions(), discardLogger())

	if _, err := svc.Query(context.Background(), "motor breaker", "+A1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.lastFilter["panel"] != "A1" {
		t.Errorf("expected normalized panel filter, got %v", search.lastFilter)
	}
}

func TestQueryEnrichesComponentHits(t *testing.T) {
	search := &fakeSearcher{results: []SearchResult{
		{Ref: "QM102", Panel: "A1", Kind: "component", Content: "QM102 Motor breaker", Score: 0.9},
		{Ref: "24", Panel: "A1", Kind: "wire", Content: "wire 24", Score: 0.5},
	}}
	enrich := &fakeEnricher{links: []graphstore.WireLink{{Wire: "24", Other: "A1/KM45"}}}
	svc := NewService(&fakeEmbedder{}, search, enrich, DefaultOptions(), discardLogger())

	answer, err := svc.Query(context.Background(), "motor breaker", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answer.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(answer.Hits))
	}
	if len(answer.Hits[0].Wires) != 1 || answer.Hits[0].Wires[0].Wire != "24" {
		t.Errorf("component hit should carry its wires: %+v", answer.Hits[0])
	}
	if enrich.lastID != "A1/QM102" {
		t.Errorf("wrong node id for enrichment: %s", enrich.lastID)
	}
	if answer.Hits[1].Wires != nil {
		t.Errorf("wire hits should not be enriched: %+v", answer.Hits[1])
	}
}

func TestQueryEnrichmentFailureIsNonFatal(t *testing.T) {
	search := &fakeSearcher{results: []SearchResult{
		{Ref: "QM102", Panel: "A1", Kind: "component", Score: 0.9},
	}}
	enrich := &fakeEnricher{err: errors.New("neo4j down")}
	svc := NewService(&fakeEmbedder{}, search, enrich, DefaultOptions(), discardLogger())

	answer, err := svc.Query(context.Background(), "motor breaker", "")
	if err != nil {
		t.Fatalf("enrichment failure must not fail the query: %v", err)
	}
	if len(answer.Hits) != 1 || answer.Hits[0].Wires != nil {
		t.Errorf("expected plain hit without wires: %+v", answer.Hits)
	}
}

func TestQueryEmbedError(t *testing.T) {
	svc := NewService(&fakeEmbedder{err: errors.New("down")}, &fakeSearcher{}, nil, DefaultOptions(), discardLogger())
	if _, err := svc.Query(context.Background(), "anything", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestComponentText(t *testing.T) {
	c := domain.ComponentRecord{
		Ref:         "QM102",
		Description: "Motor breaker",
		Quantity:    2,
		Wires:       []string{"24", "31"},
	}
	got := componentText(c)
	want := "QM102 Motor breaker quantity 2 wires 24 31"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWireText(t *testing.T) {
	w := domain.WireRecord{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1.5", Color: "BU"}
	got := wireText(w)
	want := "wire 24 from QM102.1 to KM45.2 gauge 1.5 color BU"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
