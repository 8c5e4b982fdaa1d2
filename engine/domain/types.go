// Package domain defines the core types, sentinel errors, and validation for
// the wirevision extraction pipeline. It is the shared vocabulary of every
// engine package and depends only on the standard library.
package domain

import (
	"sort"
	"time"
)

// WireRecord is one wire row: either a raw segment as printed on a schematic
// page, or a resolved real-to-real connection after graph resolution. ID,
// From and To are kept exactly as printed (case preserved).
type WireRecord struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Cable     string `json:"cable,omitempty"`
	Gauge     string `json:"gauge,omitempty"`
	Color     string `json:"color,omitempty"`
	LengthMM  int    `json:"length_mm,omitempty"`
	TerminalA string `json:"terminal_a,omitempty"`
	TerminalB string `json:"terminal_b,omitempty"`
	Note      string `json:"note,omitempty"`
	Page      int    `json:"page"`
	Foglio    int    `json:"foglio,omitempty"`
}

// MaxWireLengthMM bounds plausible wire lengths inside a cabinet run.
// Larger values are recognition artifacts and are cleared, not trusted.
const MaxWireLengthMM = 100_000

// Completeness counts populated fields. Used when duplicate rows compete:
// the row with more filled fields wins.
func (w WireRecord) Completeness() int {
	n := 0
	for _, s := range []string{w.ID, w.From, w.To, w.Cable, w.Gauge, w.Color, w.TerminalA, w.TerminalB, w.Note} {
		if s != "" {
			n++
		}
	}
	if w.LengthMM > 0 {
		n++
	}
	if w.Foglio > 0 {
		n++
	}
	return n
}

// Key returns the exact-duplicate identity of a row.
func (w WireRecord) Key() [3]string {
	return [3]string{w.ID, w.From, w.To}
}

// RicherWire returns whichever of a, b has more populated fields, a on ties.
func RicherWire(a, b WireRecord) WireRecord {
	if b.Completeness() > a.Completeness() {
		return b
	}
	return a
}

// ComponentRecord is one bill-of-components row. Ref is the printed device
// designation (e.g. "QM102") and is never a bare number: numbers-only refs
// are recognition artifacts of cable gauges and get dropped upstream.
type ComponentRecord struct {
	Ref          string   `json:"ref"`
	Description  string   `json:"description,omitempty"`
	Quantity     int      `json:"quantity"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	PartNumber   string   `json:"part_number,omitempty"`
	Location     string   `json:"location,omitempty"`
	Note         string   `json:"note,omitempty"`
	Wires        []string `json:"wires,omitempty"`
	Page         int      `json:"page"`
}

// AddWire records a wire identifier touching this component, keeping the
// set deduplicated and sorted.
func (c *ComponentRecord) AddWire(id string) {
	if id == "" {
		return
	}
	for _, w := range c.Wires {
		if w == id {
			return
		}
	}
	c.Wires = append(c.Wires, id)
	sort.Strings(c.Wires)
}

// MergeComponents folds b into a: quantities summed, wire sets unioned,
// notes concatenated, remaining fields first-non-empty.
func MergeComponents(a, b ComponentRecord) ComponentRecord {
	out := a
	out.Quantity = a.Quantity + b.Quantity
	if out.Quantity == 0 {
		out.Quantity = 1
	}
	for _, w := range b.Wires {
		out.AddWire(w)
	}
	if out.Description == "" {
		out.Description = b.Description
	}
	if out.Manufacturer == "" {
		out.Manufacturer = b.Manufacturer
	}
	if out.PartNumber == "" {
		out.PartNumber = b.PartNumber
	}
	if out.Location == "" {
		out.Location = b.Location
	}
	switch {
	case out.Note == "":
		out.Note = b.Note
	case b.Note != "" && b.Note != out.Note:
		out.Note = out.Note + "; " + b.Note
	}
	if out.Page == 0 || (b.Page > 0 && b.Page < out.Page) {
		out.Page = b.Page
	}
	return out
}

// PagePayload is one rendered schematic page handed to the recognizer.
// Rendering happens outside this repository; the payload carries the
// finished bitmap plus any text layer the renderer recovered.
type PagePayload struct {
	Index   int    `json:"index"`
	Image   []byte `json:"image"`
	MIME    string `json:"mime,omitempty"`
	RawText string `json:"raw_text,omitempty"`
}

// PageExtract is the typed result of recognizing a single page.
type PageExtract struct {
	PanelLabel  string            `json:"panel_label"`
	Foglio      int               `json:"foglio"`
	IsSchematic bool              `json:"is_schematic"`
	Wires       []WireRecord      `json:"wires"`
	Components  []ComponentRecord `json:"components"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Job is one extraction request: a document's rendered pages plus the panel
// the caller wants connectivity for. An empty Panel accepts every schematic
// page (single-panel documents).
type Job struct {
	Source string        `json:"source"`
	Panel  string        `json:"panel"`
	Pages  []PagePayload `json:"pages"`
}

// Stats summarizes one orchestrator run.
type Stats struct {
	PagesTotal      int           `json:"pages_total"`
	PagesExtracted  int           `json:"pages_extracted"`
	PagesSkipped    int           `json:"pages_skipped"`
	PagesCrossPanel int           `json:"pages_cross_panel"`
	PagesFailed     int           `json:"pages_failed"`
	Retries         int           `json:"retries"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Extraction is the orchestrator output: target-panel pools, the auxiliary
// cross-panel pool (reference-bearing segments only), and run warnings.
type Extraction struct {
	Wires           []WireRecord      `json:"wires"`
	CrossPanelWires []WireRecord      `json:"cross_panel_wires,omitempty"`
	Components      []ComponentRecord `json:"components"`
	Warnings        []string          `json:"warnings,omitempty"`
	Stats           Stats             `json:"stats"`
}

// RunMeta identifies one extraction run for renderers and event payloads.
type RunMeta struct {
	Source      string    `json:"source"`
	Panel       string    `json:"panel"`
	ExtractedAt time.Time `json:"extracted_at"`
}
