// Package normalize cleans the raw wire and component pools produced by page
// recognition. Every rule here is policy, not guesswork: composite gauge/id
// identifiers split, bare-numeric endpoints relabel as page references,
// cable-only and nil-conductor identifiers drop, truncated terminal-block
// names rewrite against the observed set, and duplicates merge keeping the
// most complete row. Each correction or drop is paired with a warning.
// Normalization is idempotent: a second pass changes nothing.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/designator"
)

// Options tunes exclusion policy.
type Options struct {
	// CablePrefixes lists identifier prefixes that mark a cable designation
	// rather than a wire ("W12" is a cable, not wire 12).
	CablePrefixes []string
	// DropPhaseLabels also excludes L1/L2/L3 identifiers. Off by default:
	// those tokens are frequently genuine wire identifiers, and the domain
	// itself is ambiguous about them.
	DropPhaseLabels bool
}

// DefaultOptions matches the common schematic conventions.
var DefaultOptions = Options{CablePrefixes: []string{"W"}}

// Normalizer applies the cleanup rules to record pools.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	if len(opts.CablePrefixes) == 0 {
		opts.CablePrefixes = DefaultOptions.CablePrefixes
	}
	return &Normalizer{opts: opts}
}

// compositeIDRe matches the "<number> / <token>" recognition artifact where
// a wire's gauge and identifier were read as one field.
var compositeIDRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*/\s*(.+)$`)

// nilConductors are labels naming the neutral or protective conductor, never
// a wire identifier.
var nilConductors = []string{"N", "PE", "PEN"}

// phaseLabels are the tokens excluded only under DropPhaseLabels.
var phaseLabels = []string{"L1", "L2", "L3"}

// Wires cleans a raw wire pool. The returned warnings name every correction
// and drop applied.
func (n *Normalizer) Wires(in []domain.WireRecord) ([]domain.WireRecord, []string) {
	var warnings []string
	cleaned := make([]domain.WireRecord, 0, len(in))

	for _, w := range in {
		w = trimWire(w)

		// Gauge/id read as one composite field. Applied until stable so a
		// doubly-composited identifier cannot survive one pass.
		for {
			m := compositeIDRe.FindStringSubmatch(w.ID)
			if m == nil {
				break
			}
			if w.Gauge == "" {
				w.Gauge = m[1]
			}
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: split composite identifier into gauge %q and id %q", w.Page, w.ID, m[1], m[2]))
			w.ID = strings.TrimSpace(m[2])
		}

		if w.ID == "" || w.From == "" || w.To == "" {
			warnings = append(warnings, fmt.Sprintf("page %d: dropped wire row with empty id or endpoint (id=%q from=%q to=%q)", w.Page, w.ID, w.From, w.To))
			continue
		}

		// Identifiers that name a different physical entity entirely.
		if designator.HasCablePrefix(w.ID, n.opts.CablePrefixes) {
			warnings = append(warnings, fmt.Sprintf("page %d: dropped %q: cable designation, not a wire identifier", w.Page, w.ID))
			continue
		}
		if matchesAny(w.ID, nilConductors) {
			warnings = append(warnings, fmt.Sprintf("page %d: dropped %q: neutral/protective conductor label", w.Page, w.ID))
			continue
		}
		if n.opts.DropPhaseLabels && matchesAny(w.ID, phaseLabels) {
			warnings = append(warnings, fmt.Sprintf("page %d: dropped %q: phase label excluded by policy", w.Page, w.ID))
			continue
		}

		// Bare-numeric endpoints are page coordinates or sheet numbers.
		fromNum := designator.IsNumeric(w.From)
		toNum := designator.IsNumeric(w.To)
		switch {
		case fromNum && toNum:
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: dropped row with two numeric endpoints (%q, %q)", w.Page, w.ID, w.From, w.To))
			continue
		case fromNum:
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: numeric endpoint %q relabeled as page reference", w.Page, w.ID, w.From))
			w.From = designator.ReferencePrefix + " " + strings.TrimSpace(w.From)
		case toNum:
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: numeric endpoint %q relabeled as page reference", w.Page, w.ID, w.To))
			w.To = designator.ReferencePrefix + " " + strings.TrimSpace(w.To)
		}

		if w.LengthMM < 0 || w.LengthMM > domain.MaxWireLengthMM {
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: implausible length %dmm cleared", w.Page, w.ID, w.LengthMM))
			w.LengthMM = 0
		}
		if designator.IsNumeric(w.TerminalA) {
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: numeric terminal_a %q cleared", w.Page, w.ID, w.TerminalA))
			w.TerminalA = ""
		}
		if designator.IsNumeric(w.TerminalB) {
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: numeric terminal_b %q cleared", w.Page, w.ID, w.TerminalB))
			w.TerminalB = ""
		}

		cleaned = append(cleaned, w)
	}

	// Pool-level pass: rewrite truncated terminal-block names, then merge
	// exact repeats.
	rewrites, blockWarnings := blockCorrections(cleaned)
	warnings = append(warnings, blockWarnings...)
	if len(rewrites) > 0 {
		for i := range cleaned {
			cleaned[i].From = rewriteBlock(cleaned[i].From, rewrites)
			cleaned[i].To = rewriteBlock(cleaned[i].To, rewrites)
			cleaned[i].TerminalA = rewriteBlock(cleaned[i].TerminalA, rewrites)
			cleaned[i].TerminalB = rewriteBlock(cleaned[i].TerminalB, rewrites)
		}
	}

	out := make([]domain.WireRecord, 0, len(cleaned))
	index := make(map[[3]string]int, len(cleaned))
	for _, w := range cleaned {
		k := w.Key()
		if i, dup := index[k]; dup {
			warnings = append(warnings, fmt.Sprintf("page %d: wire %q: merged duplicate row %s -> %s, keeping most complete", w.Page, w.ID, w.From, w.To))
			out[i] = domain.RicherWire(out[i], w)
			continue
		}
		index[k] = len(out)
		out = append(out, w)
	}
	return out, warnings
}

// Components cleans a raw component pool and merges rows sharing a base
// reference.
func (n *Normalizer) Components(in []domain.ComponentRecord) ([]domain.ComponentRecord, []string) {
	var warnings []string
	out := make([]domain.ComponentRecord, 0, len(in))
	index := make(map[string]int, len(in))

	for _, c := range in {
		c = trimComponent(c)

		base, pin := designator.NormalizeRef(c.Ref)
		if pin != "" {
			warnings = append(warnings, fmt.Sprintf("page %d: component %q: split pin suffix %q off reference %q", c.Page, c.Ref, pin, base))
			note := "pin " + pin
			if c.Note == "" {
				c.Note = note
			} else if !strings.Contains(c.Note, note) {
				c.Note = c.Note + "; " + note
			}
		}
		if base == "" {
			warnings = append(warnings, fmt.Sprintf("page %d: dropped component row with empty reference", c.Page))
			continue
		}
		if designator.IsNumeric(base) {
			warnings = append(warnings, fmt.Sprintf("page %d: dropped component %q: numeric reference is a gauge artifact", c.Page, base))
			continue
		}
		c.Ref = base
		if c.Quantity <= 0 {
			c.Quantity = 1
		}

		if i, dup := index[c.Ref]; dup {
			out[i] = domain.MergeComponents(out[i], c)
			continue
		}
		index[c.Ref] = len(out)
		out = append(out, c)
	}
	return out, warnings
}

func trimWire(w domain.WireRecord) domain.WireRecord {
	w.ID = strings.TrimSpace(w.ID)
	w.From = strings.TrimSpace(w.From)
	w.To = strings.TrimSpace(w.To)
	w.Cable = strings.TrimSpace(w.Cable)
	w.Gauge = strings.TrimSpace(w.Gauge)
	w.Color = strings.TrimSpace(w.Color)
	w.TerminalA = strings.TrimSpace(w.TerminalA)
	w.TerminalB = strings.TrimSpace(w.TerminalB)
	w.Note = strings.TrimSpace(w.Note)
	return w
}

func trimComponent(c domain.ComponentRecord) domain.ComponentRecord {
	c.Ref = strings.TrimSpace(c.Ref)
	c.Description = strings.TrimSpace(c.Description)
	c.Manufacturer = strings.TrimSpace(c.Manufacturer)
	c.PartNumber = strings.TrimSpace(c.PartNumber)
	c.Location = strings.TrimSpace(c.Location)
	c.Note = strings.TrimSpace(c.Note)
	return c
}

func matchesAny(id string, labels []string) bool {
	for _, l := range labels {
		if strings.EqualFold(id, l) {
			return true
		}
	}
	return false
}
