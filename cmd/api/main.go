// Package main implements the WireVision API server: synchronous schematic
// extraction plus read access to the wiring graph and the parts catalog.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WireVisionAI/wirevision-mvp/engine/catalog"
	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/extract"
	"github.com/WireVisionAI/wirevision-mvp/engine/graphstore"
	"github.com/WireVisionAI/wirevision-mvp/engine/vision"
	"github.com/WireVisionAI/wirevision-mvp/pkg/metrics"
	"github.com/WireVisionAI/wirevision-mvp/pkg/mid"
	"github.com/WireVisionAI/wirevision-mvp/pkg/ollama"
	"github.com/WireVisionAI/wirevision-mvp/pkg/repo"
)

// Config holds runtime configuration sourced from the environment.
type Config struct {
	Port       string
	CORSOrigin string
	MaxBodyMB  int64

	VisionURL   string
	VisionKey   string
	VisionModel string
	Workers     int

	// Optional backends. An empty URL disables the routes that need it.
	NATSURL    string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	OllamaURL  string
	EmbedModel string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		MaxBodyMB:  int64(envInt("MAX_BODY_MB", 64)),

		VisionURL:   envOr("VISION_URL", "https://api.openai.com/v1"),
		VisionKey:   envOr("VISION_API_KEY", ""),
		VisionModel: envOr("VISION_MODEL", vision.DefaultOptions.Model),
		Workers:     envInt("EXTRACT_WORKERS", extract.DefaultOptions.Workers),

		NATSURL:    envOr("NATS_URL", ""),
		Neo4jURL:   envOr("NEO4J_URL", ""),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", ""),
		Collection: envOr("QDRANT_COLLECTION", "wirevision_catalog"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", ollama.DefaultOptions().Model),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.CollectRuntime("wirevision_api", 15*time.Second)

	deps := extract.Deps{
		Recognizer: vision.NewClient(vision.Options{
			BaseURL: cfg.VisionURL,
			APIKey:  cfg.VisionKey,
			Model:   cfg.VisionModel,
		}),
		Logger: logger,
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("wirevision-api"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		deps.Notifier = extract.NewNATSNotifier(nc, logger)
		logger.Info("progress events enabled", "nats", cfg.NATSURL)
	}

	orc := extract.New(deps, extract.Options{Workers: cfg.Workers})

	var graph *graphstore.Store
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("failed to create Neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		graph = graphstore.New(driver)
		logger.Info("graph routes enabled", "neo4j", cfg.Neo4jURL)
	}

	var search *catalog.Service
	if cfg.QdrantURL != "" {
		vs, err := catalog.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		defer vs.Close()

		embed := ollama.New(cfg.OllamaURL, ollama.Options{
			Model:   cfg.EmbedModel,
			Timeout: ollama.DefaultOptions().Timeout,
			Rate:    ollama.DefaultOptions().Rate,
			Burst:   ollama.DefaultOptions().Burst,
		})
		var enrich catalog.GraphEnricher
		if graph != nil {
			enrich = graph
		}
		search = catalog.NewService(embed, vs, enrich, catalog.DefaultOptions(), logger)
		logger.Info("search route enabled", "qdrant", cfg.QdrantURL, "collection", cfg.Collection)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("POST /api/extract", handleExtract(orc, met, logger))
	mux.HandleFunc("GET /api/components", handleComponents(graphBackend(graph), logger))
	mux.HandleFunc("GET /api/components/{ref}", handleComponent(graphBackend(graph), logger))
	mux.HandleFunc("GET /api/search", handleSearch(searchBackend(search), logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("wirevision-api"),
		mid.MaxBody(cfg.MaxBodyMB<<20),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
		// Extraction holds the response open while the recognizer walks the
		// document, so the write timeout is far above the usual API norm.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// extractor runs one extraction job to completion.
type extractor interface {
	Run(ctx context.Context, job domain.Job) (domain.Extraction, error)
}

// componentReader is the slice of the graph store the read routes use.
type componentReader interface {
	Component(ctx context.Context, id string) (graphstore.ComponentNode, error)
	Components(ctx context.Context, panel string, offset, limit int) ([]graphstore.ComponentNode, error)
	Connections(ctx context.Context, id string) ([]graphstore.WireLink, error)
}

// catalogSearcher answers free-text catalog queries.
type catalogSearcher interface {
	Query(ctx context.Context, question, panel string) (*catalog.Answer, error)
}

// graphBackend avoids handing handlers a typed-nil interface when the graph
// store is not configured.
func graphBackend(s *graphstore.Store) componentReader {
	if s == nil {
		return nil
	}
	return s
}

func searchBackend(s *catalog.Service) catalogSearcher {
	if s == nil {
		return nil
	}
	return s
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ComponentResponse is one component with its wiring.
type ComponentResponse struct {
	Component graphstore.ComponentNode `json:"component"`
	Wires     []graphstore.WireLink    `json:"wires"`
}

// ComponentListResponse is a page of components.
type ComponentListResponse struct {
	Components []graphstore.ComponentNode `json:"components"`
	Count      int                        `json:"count"`
}

func handleExtract(orc extractor, met *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	runs := func(status string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("wirevision_api_extract_total", "status", status),
			"Extraction requests by outcome")
	}
	seconds := met.Histogram("wirevision_api_extract_seconds", "Extraction request duration in seconds", nil)

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var job domain.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ext, err := orc.Run(r.Context(), job)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				runs("rejected").Inc()
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			runs("failed").Inc()
			logger.Error("extraction failed", "source", job.Source, "panel", job.Panel, "error", err)
			writeError(w, http.StatusInternalServerError, "extraction failed")
			return
		}

		runs("ok").Inc()
		seconds.Since(start)
		writeJSON(w, http.StatusOK, ext)
	}
}

func handleComponent(store componentReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "graph store not configured")
			return
		}
		ref := strings.ToUpper(strings.TrimSpace(r.PathValue("ref")))
		panel := r.URL.Query().Get("panel")
		if panel == "" {
			writeError(w, http.StatusBadRequest, "panel query parameter is required")
			return
		}

		// Stored ids carry the normalized panel label, so normalize before
		// building the lookup key.
		id := graphstore.NodeID(domain.NormalizePanelLabel(panel), ref)
		comp, err := store.Component(r.Context(), id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "component not found")
				return
			}
			logger.Error("component lookup failed", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "component lookup failed")
			return
		}

		wires, err := store.Connections(r.Context(), id)
		if err != nil {
			// The component itself resolved; degrade to an empty wire list.
			logger.Warn("connections lookup failed", "id", id, "error", err)
		}
		if wires == nil {
			wires = []graphstore.WireLink{}
		}
		writeJSON(w, http.StatusOK, ComponentResponse{Component: comp, Wires: wires})
	}
}

func handleComponents(store componentReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "graph store not configured")
			return
		}
		q := r.URL.Query()
		offset := queryInt(q.Get("offset"), 0)
		limit := queryInt(q.Get("limit"), 100)

		comps, err := store.Components(r.Context(), q.Get("panel"), offset, limit)
		if err != nil {
			logger.Error("component listing failed", "panel", q.Get("panel"), "error", err)
			writeError(w, http.StatusInternalServerError, "component listing failed")
			return
		}
		if comps == nil {
			comps = []graphstore.ComponentNode{}
		}
		writeJSON(w, http.StatusOK, ComponentListResponse{Components: comps, Count: len(comps)})
	}
}

func handleSearch(svc catalogSearcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "catalog search not configured")
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, http.StatusBadRequest, "q query parameter is required")
			return
		}

		ans, err := svc.Query(r.Context(), query, r.URL.Query().Get("panel"))
		if err != nil {
			logger.Error("catalog query failed", "query", query, "error", err)
			writeError(w, http.StatusInternalServerError, "catalog query failed")
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

func queryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
