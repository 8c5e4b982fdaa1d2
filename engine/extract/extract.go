// Package extract drives page recognition over a whole document and turns
// the raw per-page rows into the final resolved connection list for one
// target panel. Pages are recognized under a bounded worker pool with retry
// and backoff; a page that keeps failing costs a warning, never the run.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/normalize"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
	"github.com/WireVisionAI/wirevision-mvp/pkg/fn"
)

// Recognizer reads one rendered page into typed rows. Failures must wrap the
// domain sentinels so the orchestrator can tell what is worth retrying.
type Recognizer interface {
	Recognize(ctx context.Context, page domain.PagePayload) (domain.PageExtract, error)
}

// Notifier receives progress events as pages complete and a single
// completion event when the run finishes. Implementations must be safe for
// concurrent use.
type Notifier interface {
	PageDone(ctx context.Context, ev ProgressEvent)
	RunDone(ctx context.Context, ev DoneEvent)
}

// Page completion statuses reported through the Notifier.
const (
	StatusExtracted  = "extracted"
	StatusSkipped    = "skipped"
	StatusCrossPanel = "cross-panel"
	StatusFailed     = "failed"
)

// ProgressEvent describes the outcome of one page.
type ProgressEvent struct {
	Source string `json:"source"`
	Panel  string `json:"panel"`
	Page   int    `json:"page"`
	Total  int    `json:"total"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Options configures the orchestrator.
type Options struct {
	// Workers bounds concurrent recognition calls.
	Workers int
	// Retry drives backoff for rate-limited and transient recognition
	// failures. Malformed model output gets a single retry regardless.
	Retry fn.RetryOpts
	// Normalize is the row-cleaning policy applied to both pools.
	Normalize normalize.Options
}

// DefaultOptions matches the pacing recognition providers tolerate.
var DefaultOptions = Options{
	Workers: 10,
	Retry: fn.RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Second,
		MaxWait:     30 * time.Second,
		Jitter:      true,
	},
	Normalize: normalize.DefaultOptions,
}

// Deps holds the orchestrator's external collaborators.
type Deps struct {
	Recognizer Recognizer
	Notifier   Notifier     // optional
	Logger     *slog.Logger // optional
}

// Orchestrator runs the extraction pipeline for one document at a time.
type Orchestrator struct {
	opts    Options
	rec     Recognizer
	notify  Notifier
	log     *slog.Logger
	retries atomic.Int64
}

// New creates an orchestrator. Zero option fields fall back to defaults.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions.Workers
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultOptions.Retry
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{opts: opts, rec: deps.Recognizer, notify: deps.Notifier, log: log}
}

// Run extracts the job's target panel. Input problems are the only fatal
// errors; everything downstream degrades to warnings.
func (o *Orchestrator) Run(ctx context.Context, job domain.Job) (domain.Extraction, error) {
	if err := domain.ValidateJob(job); err != nil {
		o.done(ctx, job, domain.Extraction{}, err)
		return domain.Extraction{}, err
	}
	start := time.Now()
	o.retries.Store(0)

	outcomes := o.recognizeAll(ctx, job)
	coll := o.classify(ctx, job, outcomes)
	coll.stats.Retries = int(o.retries.Load())

	result := o.pipeline()(ctx, coll)
	ext, err := result.Unwrap()
	if err != nil {
		// Stages are pure and never fail; keep the guard anyway.
		return domain.Extraction{}, err
	}
	ext.Stats.Elapsed = time.Since(start)

	o.log.Info("extract: run complete",
		"source", job.Source,
		"panel", job.Panel,
		"pages", ext.Stats.PagesTotal,
		"extracted", ext.Stats.PagesExtracted,
		"failed", ext.Stats.PagesFailed,
		"wires", len(ext.Wires),
		"components", len(ext.Components),
		"warnings", len(ext.Warnings),
		"elapsed", ext.Stats.Elapsed,
	)
	o.done(ctx, job, ext, nil)
	return ext, nil
}

// pageOutcome pairs a page with its recognition result or final error.
type pageOutcome struct {
	page    domain.PagePayload
	extract domain.PageExtract
	err     error
}

// recognizeAll fans the pages out over the worker pool. Cancellation stops
// new requests from being issued; whatever already completed is kept.
func (o *Orchestrator) recognizeAll(ctx context.Context, job domain.Job) []pageOutcome {
	return fn.ParMap(job.Pages, o.opts.Workers, func(page domain.PagePayload) pageOutcome {
		if ctx.Err() != nil {
			return pageOutcome{page: page, err: ctx.Err()}
		}
		extract, err := o.recognizePage(ctx, page)
		return pageOutcome{page: page, extract: extract, err: err}
	})
}

// recognizePage applies the retry policy for one page. Rate limits and
// transient failures use the full backoff budget; malformed output gets one
// retry before it is given up on.
func (o *Orchestrator) recognizePage(ctx context.Context, page domain.PagePayload) (domain.PageExtract, error) {
	malformed := 0
	opts := o.opts.Retry
	opts.Retryable = func(err error) bool {
		if errors.Is(err, domain.ErrMalformedOutput) {
			malformed++
			return malformed <= 1
		}
		return domain.Retriable(err)
	}
	opts.OnRetry = func(attempt int, wait time.Duration, err error) {
		o.retries.Add(1)
		o.log.Debug("extract: retrying page", "page", page.Index, "attempt", attempt, "wait", wait, "error", err)
	}

	result := fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[domain.PageExtract] {
		extract, err := o.rec.Recognize(ctx, page)
		return fn.FromPair(extract, err)
	})
	return result.Unwrap()
}

// classify routes each page outcome into the target pool, the cross-panel
// pool, or a warning, and stamps rows with their page and sheet numbers.
func (o *Orchestrator) classify(ctx context.Context, job domain.Job, outcomes []pageOutcome) collected {
	coll := collected{panel: job.Panel}
	total := len(outcomes)
	canceled := 0

	for _, oc := range outcomes {
		coll.stats.PagesTotal++

		if oc.err != nil {
			if errors.Is(oc.err, context.Canceled) || errors.Is(oc.err, context.DeadlineExceeded) {
				canceled++
				continue
			}
			coll.stats.PagesFailed++
			coll.warnings = append(coll.warnings, fmt.Sprintf("page %d: recognition failed after retries: %v", oc.page.Index, oc.err))
			o.page(ctx, job, oc.page.Index, total, StatusFailed, oc.err)
			continue
		}

		if !oc.extract.IsSchematic {
			coll.stats.PagesSkipped++
			o.page(ctx, job, oc.page.Index, total, StatusSkipped, nil)
			continue
		}

		if oc.extract.Foglio == 0 {
			coll.warnings = append(coll.warnings, fmt.Sprintf("page %d: sheet number unreadable, page references on it cannot be linked", oc.page.Index))
		}

		wires := stampWires(oc.extract.Wires, oc.page.Index, oc.extract.Foglio)

		if job.Panel != "" && !domain.SamePanel(oc.extract.PanelLabel, job.Panel) {
			coll.stats.PagesCrossPanel++
			coll.cross = append(coll.cross, fn.Filter(wires, carriesReference)...)
			o.page(ctx, job, oc.page.Index, total, StatusCrossPanel, nil)
			continue
		}

		coll.stats.PagesExtracted++
		coll.target = append(coll.target, wires...)
		coll.comps = append(coll.comps, stampComponents(oc.extract.Components, oc.page.Index)...)
		for _, w := range oc.extract.Warnings {
			coll.warnings = append(coll.warnings, fmt.Sprintf("page %d: %s", oc.page.Index, w))
		}
		o.page(ctx, job, oc.page.Index, total, StatusExtracted, nil)
	}

	if canceled > 0 {
		coll.warnings = append(coll.warnings, fmt.Sprintf("run canceled before completion, %d of %d pages not extracted", canceled, total))
	}
	return coll
}

func (o *Orchestrator) page(ctx context.Context, job domain.Job, page, total int, status string, err error) {
	if o.notify == nil {
		return
	}
	ev := ProgressEvent{Source: job.Source, Panel: job.Panel, Page: page, Total: total, Status: status}
	if err != nil {
		ev.Error = err.Error()
	}
	o.notify.PageDone(ctx, ev)
}

func (o *Orchestrator) done(ctx context.Context, job domain.Job, ext domain.Extraction, err error) {
	if o.notify == nil {
		return
	}
	ev := DoneEvent{
		Source:     job.Source,
		Panel:      job.Panel,
		Wires:      len(ext.Wires),
		Components: len(ext.Components),
		Warnings:   ext.Warnings,
		Stats:      ext.Stats,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	o.notify.RunDone(ctx, ev)
}

// carriesReference reports whether a raw segment has a page-reference
// endpoint. Cross-panel segments are only worth keeping when they do, since
// they can still complete a reference that starts on the target panel.
func carriesReference(rec domain.WireRecord) bool {
	return isReferenceLabel(rec.From) || isReferenceLabel(rec.To)
}

func isReferenceLabel(label string) bool {
	return designator.IsNumeric(label) || designator.Classify(label) == designator.KindReference
}

func stampWires(wires []domain.WireRecord, page, foglio int) []domain.WireRecord {
	out := make([]domain.WireRecord, len(wires))
	for i, w := range wires {
		w.Page = page
		w.Foglio = foglio
		out[i] = w
	}
	return out
}

func stampComponents(comps []domain.ComponentRecord, page int) []domain.ComponentRecord {
	out := make([]domain.ComponentRecord, len(comps))
	for i, c := range comps {
		c.Page = page
		out[i] = c
	}
	return out
}
