package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/fn"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer writes extraction results into the vector store.
type Indexer struct {
	store *VectorStore
	embed Embedder
	batch int
	log   *slog.Logger
}

// NewIndexer creates an Indexer over a store and an embedder.
func NewIndexer(store *VectorStore, embed Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, embed: embed, batch: 32, log: logger}
}

type entry struct {
	id      string
	content string
	payload map[string]any
}

// IndexExtraction replaces one schematic's index entries with the given
// extraction. Point ids derive from source, panel and designation, so
// re-indexing the same drawing overwrites instead of duplicating, and the
// upfront delete clears points for devices no longer on it.
func (ix *Indexer) IndexExtraction(ctx context.Context, meta domain.RunMeta, ext domain.Extraction) (int, error) {
	panel := domain.NormalizePanelLabel(meta.Panel)

	if err := ix.store.DeleteBySource(ctx, meta.Source); err != nil {
		return 0, err
	}

	entries := buildEntries(meta.Source, panel, ext)
	total := 0
	for _, batch := range fn.Chunk(entries, ix.batch) {
		texts := fn.Map(batch, func(e entry) string { return e.content })
		vectors, err := ix.embed.Embed(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("catalog: embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return total, fmt.Errorf("catalog: embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}
		records := make([]VectorRecord, len(batch))
		for i, e := range batch {
			records[i] = VectorRecord{ID: e.id, Embedding: vectors[i], Payload: e.payload}
		}
		if err := ix.store.Upsert(ctx, records); err != nil {
			return total, err
		}
		total += len(records)
	}

	ix.log.Info("catalog: indexed extraction",
		"source", meta.Source, "panel", panel, "points", total)
	return total, nil
}

func buildEntries(source, panel string, ext domain.Extraction) []entry {
	entries := make([]entry, 0, len(ext.Components)+len(ext.Wires))
	for _, c := range ext.Components {
		content := componentText(c)
		entries = append(entries, entry{
			id:      pointID(source, panel, "component", c.Ref),
			content: content,
			payload: map[string]any{
				"content": content,
				"ref":     c.Ref,
				"panel":   panel,
				"source":  source,
				"kind":    "component",
				"page":    c.Page,
			},
		})
	}
	for _, w := range ext.Wires {
		content := wireText(w)
		entries = append(entries, entry{
			id:      pointID(source, panel, "wire", strings.Join([]string{w.ID, w.From, w.To}, "|")),
			content: content,
			payload: map[string]any{
				"content": content,
				"ref":     w.ID,
				"panel":   panel,
				"source":  source,
				"kind":    "wire",
				"page":    w.Page,
			},
		})
	}
	return entries
}

// pointID derives a stable UUID for one designation within one drawing.
func pointID(source, panel, kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%s/%s/%s", source, panel, kind, key))).String()
}

func componentText(c domain.ComponentRecord) string {
	var b strings.Builder
	b.WriteString(c.Ref)
	for _, s := range []string{c.Description, c.Manufacturer, c.PartNumber, c.Location, c.Note} {
		if s != "" {
			b.WriteString(" ")
			b.WriteString(s)
		}
	}
	if c.Quantity > 1 {
		fmt.Fprintf(&b, " quantity %d", c.Quantity)
	}
	if len(c.Wires) > 0 {
		fmt.Fprintf(&b, " wires %s", strings.Join(c.Wires, " "))
	}
	return b.String()
}

func wireText(w domain.WireRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "wire %s from %s to %s", w.ID, w.From, w.To)
	if w.Cable != "" {
		fmt.Fprintf(&b, " cable %s", w.Cable)
	}
	if w.Gauge != "" {
		fmt.Fprintf(&b, " gauge %s", w.Gauge)
	}
	if w.Color != "" {
		fmt.Fprintf(&b, " color %s", w.Color)
	}
	if w.Note != "" {
		b.WriteString(" ")
		b.WriteString(w.Note)
	}
	return b.String()
}
