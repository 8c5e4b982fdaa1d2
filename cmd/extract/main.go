// Command extract runs the wiring extraction pipeline over a directory of
// rendered schematic pages and writes the connectivity document as JSON to a
// file or stdout.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/extract"
	"github.com/WireVisionAI/wirevision-mvp/engine/pagesource"
	"github.com/WireVisionAI/wirevision-mvp/engine/render"
	"github.com/WireVisionAI/wirevision-mvp/engine/vision"
)

func main() {
	pagesDir := flag.String("pages", "", "directory of rendered page images (sidecar <stem>.txt files become text layers)")
	panel := flag.String("panel", "", "target panel label (empty = accept every schematic page)")
	source := flag.String("source", "", "source document name (default: pages directory name)")
	out := flag.String("out", "-", "output path (- = stdout)")
	visionURL := flag.String("vision-url", envOr("VISION_URL", "https://api.openai.com/v1"), "recognition endpoint root")
	model := flag.String("model", vision.DefaultOptions.Model, "recognition model")
	workers := flag.Int("workers", extract.DefaultOptions.Workers, "concurrent recognition calls")
	attempts := flag.Int("attempts", extract.DefaultOptions.Retry.MaxAttempts, "max recognition attempts per page")
	interval := flag.Duration("interval", vision.DefaultOptions.Interval, "spacing between recognition requests")
	natsURL := flag.String("nats", "", "NATS URL for progress events (empty = none)")
	flag.Parse()

	if *pagesDir == "" {
		log.Fatal("-pages is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Progress goes to stderr so stdout stays clean for -out=-.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pages, err := pagesource.NewDir(*pagesDir).Pages(ctx)
	if err != nil {
		log.Fatalf("load pages: %v", err)
	}
	logger.Info("loaded pages", "dir", *pagesDir, "count", len(pages))

	src := *source
	if src == "" {
		src = filepath.Base(*pagesDir)
	}

	deps := extract.Deps{
		Recognizer: vision.NewClient(vision.Options{
			BaseURL:  *visionURL,
			APIKey:   os.Getenv("VISION_API_KEY"),
			Model:    *model,
			Interval: *interval,
		}),
		Logger: logger,
	}

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Fatalf("nats connect: %v", err)
		}
		defer nc.Close()
		deps.Notifier = extract.NewNATSNotifier(nc, logger)
		logger.Info("publishing progress events", "nats", *natsURL)
	}

	opts := extract.DefaultOptions
	opts.Workers = *workers
	opts.Retry.MaxAttempts = *attempts

	job := domain.Job{Source: src, Panel: *panel, Pages: pages}
	ext, err := extract.New(deps, opts).Run(ctx, job)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	meta := domain.RunMeta{Source: src, Panel: *panel, ExtractedAt: time.Now().UTC()}
	if *out == "-" {
		if err := render.WriteJSON(os.Stdout, meta, ext); err != nil {
			log.Fatalf("write: %v", err)
		}
		return
	}
	if err := (render.JSONFile{Path: *out}).Render(ctx, meta, ext); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	logger.Info("extraction written",
		"out", *out,
		"wires", len(ext.Wires),
		"components", len(ext.Components),
		"warnings", len(ext.Warnings),
	)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
