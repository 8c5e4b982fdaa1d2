// Command search queries the extracted wiring knowledge from the command
// line: free-text catalog search via Ollama embeddings and Qdrant, plus
// panel listings, path tracing and graph stats straight from Neo4j. Results
// print as indented JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WireVisionAI/wirevision-mvp/engine/catalog"
	"github.com/WireVisionAI/wirevision-mvp/engine/graphstore"
	"github.com/WireVisionAI/wirevision-mvp/pkg/ollama"
)

func main() {
	var (
		q     = flag.String("q", "", "question to ask the catalog")
		panel = flag.String("panel", "", "restrict search hits to one panel")
		list  = flag.String("list", "", "print a panel's components and exit")
		trace = flag.String("trace", "", "shortest wiring path as FROM:TO component ids (e.g. A1/QM102:A1/XT1)")
		stats = flag.Bool("stats", false, "print graph counts and exit")
		topK  = flag.Int("top", catalog.DefaultOptions().TopK, "search hits to return")

		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "wirevision_catalog", "Qdrant collection name")
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel = flag.String("embed-model", "nomic-embed-text", "Ollama embedding model")
		neo4jURL   = flag.String("neo4j", "", "Neo4j bolt URL (enables -list, -trace, -stats and wiring enrichment)")
		neo4jUser  = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", "password", "Neo4j password")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var graph *graphstore.Store
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Fatalf("neo4j connect: %v", err)
		}
		defer driver.Close(ctx)
		graph = graphstore.New(driver)
	}

	switch {
	case *stats:
		if graph == nil {
			log.Fatal("-stats requires -neo4j")
		}
		nodes, err := graph.NodeCounts(ctx)
		if err != nil {
			log.Fatalf("node counts: %v", err)
		}
		rels, err := graph.RelationshipCounts(ctx)
		if err != nil {
			log.Fatalf("relationship counts: %v", err)
		}
		top, err := graph.TopPanels(ctx, 10)
		if err != nil {
			log.Fatalf("top panels: %v", err)
		}
		enc.Encode(map[string]any{"nodes": nodes, "relationships": rels, "top_panels": top})

	case *list != "":
		if graph == nil {
			log.Fatal("-list requires -neo4j")
		}
		comps, err := graph.PanelComponents(ctx, *list)
		if err != nil {
			log.Fatalf("list panel %s: %v", *list, err)
		}
		enc.Encode(comps)

	case *trace != "":
		if graph == nil {
			log.Fatal("-trace requires -neo4j")
		}
		from, to, ok := strings.Cut(*trace, ":")
		if !ok || from == "" || to == "" {
			log.Fatal("-trace wants FROM:TO component ids")
		}
		path, err := graph.TracePath(ctx, from, to)
		if err != nil {
			log.Fatalf("trace %s to %s: %v", from, to, err)
		}
		enc.Encode(path)

	case *q != "":
		vs, err := catalog.New(*qdrantAddr, *collection)
		if err != nil {
			log.Fatalf("qdrant connect: %v", err)
		}
		defer vs.Close()

		embed := ollama.New(*ollamaURL, ollama.Options{
			Model:   *embedModel,
			Timeout: ollama.DefaultOptions().Timeout,
			Rate:    ollama.DefaultOptions().Rate,
			Burst:   ollama.DefaultOptions().Burst,
		})

		opts := catalog.DefaultOptions()
		opts.TopK = *topK
		var enrich catalog.GraphEnricher
		if graph != nil {
			enrich = graph
		}

		ans, err := catalog.NewService(embed, vs, enrich, opts, logger).Query(ctx, *q, *panel)
		if err != nil {
			log.Fatalf("query: %v", err)
		}
		enc.Encode(ans)

	default:
		flag.Usage()
		os.Exit(2)
	}
}
