// Command worker consumes extraction jobs from NATS, runs the pipeline, and
// persists finished runs into the Neo4j wiring graph and the Qdrant parts
// catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WireVisionAI/wirevision-mvp/engine/catalog"
	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/extract"
	"github.com/WireVisionAI/wirevision-mvp/engine/graphstore"
	"github.com/WireVisionAI/wirevision-mvp/engine/vision"
	"github.com/WireVisionAI/wirevision-mvp/pkg/metrics"
	"github.com/WireVisionAI/wirevision-mvp/pkg/ollama"
)

var met = metrics.New()

// Worker metrics
var (
	mJobsTotal       = met.Counter("wirevision_worker_jobs_persisted_total", "Jobs persisted successfully")
	mWiresTotal      = met.Counter("wirevision_worker_wires_total", "Resolved wires written to the graph")
	mComponentsTotal = met.Counter("wirevision_worker_components_total", "Components written to the graph")
	mIndexedTotal    = met.Counter("wirevision_worker_indexed_total", "Catalog points indexed")
	mPersistDur      = met.Histogram("wirevision_worker_persist_duration_seconds", "Per-job persistence time", nil)
	mGraphDur        = met.Histogram("wirevision_worker_neo4j_duration_seconds", "Graph write latency", nil)
	mIndexDur        = met.Histogram("wirevision_worker_qdrant_duration_seconds", "Catalog index latency", nil)
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		natsURL     = flag.String("nats", "nats://localhost:4222", "NATS URL")
		visionURL   = flag.String("vision-url", envOr("VISION_URL", "https://api.openai.com/v1"), "recognition endpoint root")
		model       = flag.String("model", vision.DefaultOptions.Model, "recognition model")
		workers     = flag.Int("workers", extract.DefaultOptions.Workers, "concurrent recognition calls per job")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL (empty = skip graph writes)")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address (empty = skip catalog indexing)")
		collection  = flag.String("collection", "wirevision_catalog", "Qdrant collection name")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel  = flag.String("embed-model", "nomic-embed-text", "Ollama embedding model")
		metricsPort = flag.Int("metrics-port", 9092, "metrics listen port")
	)
	flag.Parse()

	met.CollectRuntime("wirevision_worker", 15*time.Second)
	met.ServeAsync(*metricsPort)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	nc, err := nats.Connect(*natsURL, nats.Name("wirevision-worker"))
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	log.Info("connected to NATS", "url", *natsURL)

	var graph *graphstore.Store
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Error("neo4j connect failed", "error", err)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Error("neo4j verify failed", "error", err)
			os.Exit(1)
		}
		graph = graphstore.New(driver)
		log.Info("connected to Neo4j")
	}

	var indexer *catalog.Indexer
	if *qdrantAddr != "" {
		vs, err := catalog.New(*qdrantAddr, *collection)
		if err != nil {
			log.Error("qdrant connect failed", "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
			log.Error("qdrant ensure collection failed", "error", err)
			os.Exit(1)
		}
		embed := ollama.New(*ollamaURL, ollama.Options{
			Model:   *embedModel,
			Timeout: ollama.DefaultOptions().Timeout,
			Rate:    ollama.DefaultOptions().Rate,
			Burst:   ollama.DefaultOptions().Burst,
		})
		indexer = catalog.NewIndexer(vs, embed, log)
		log.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)
	}

	orc := extract.New(extract.Deps{
		Recognizer: vision.NewClient(vision.Options{
			BaseURL: *visionURL,
			APIKey:  os.Getenv("VISION_API_KEY"),
			Model:   *model,
		}),
		Notifier: extract.NewNATSNotifier(nc, log),
		Logger:   log,
	}, extract.Options{Workers: *workers})

	onResult := func(ctx context.Context, job domain.Job, ext domain.Extraction) error {
		meta := domain.RunMeta{Source: job.Source, Panel: job.Panel, ExtractedAt: time.Now().UTC()}
		start := time.Now()

		if graph != nil {
			gStart := time.Now()
			if err := graph.SaveExtraction(ctx, meta, ext); err != nil {
				return fmt.Errorf("graph save: %w", err)
			}
			mGraphDur.Since(gStart)
			mWiresTotal.Add(int64(len(ext.Wires)))
			mComponentsTotal.Add(int64(len(ext.Components)))
		}

		if indexer != nil {
			iStart := time.Now()
			n, err := indexer.IndexExtraction(ctx, meta, ext)
			if err != nil {
				return fmt.Errorf("catalog index: %w", err)
			}
			mIndexDur.Since(iStart)
			mIndexedTotal.Add(int64(n))
		}

		mPersistDur.Since(start)
		mJobsTotal.Inc()
		return nil
	}

	sub, err := extract.StartConsumer(nc, extract.ConsumerDeps{
		Orchestrator: orc,
		OnResult:     onResult,
		Logger:       log,
	})
	if err != nil {
		log.Error("consumer start failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("worker ready", "subject", extract.JobsSubject)
	<-ctx.Done()
	log.Info("shutting down")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
