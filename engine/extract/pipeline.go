package extract

import (
	"context"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/engine/merge"
	"github.com/WireVisionAI/wirevision-mvp/engine/normalize"
	"github.com/WireVisionAI/wirevision-mvp/engine/wiregraph"
	"github.com/WireVisionAI/wirevision-mvp/pkg/fn"
)

// collected holds the orchestrator's raw accumulation: the target-panel
// pool, the reference-bearing cross-panel pool, and everything reported
// along the way.
type collected struct {
	panel    string
	target   []domain.WireRecord
	cross    []domain.WireRecord
	comps    []domain.ComponentRecord
	warnings []string
	stats    domain.Stats
}

// normalized is collected after row cleaning, plus the target panel's
// endpoint set used later for scoping.
type normalized struct {
	collected
	set *merge.EndpointSet
}

// resolvedPools adds the resolved real-to-real connections.
type resolvedPools struct {
	normalized
	wires []domain.WireRecord
}

// pipeline composes normalization, graph resolution, and panel scoping.
// Every stage is pure; warnings ride along instead of becoming errors.
func (o *Orchestrator) pipeline() fn.Stage[collected, domain.Extraction] {
	normalizeStage := fn.TracedStage("extract.normalize", o.normalizeStage())
	resolveStage := fn.TracedStage("extract.resolve", o.resolveStage())
	scopeStage := fn.TracedStage("extract.scope", o.scopeStage())
	return fn.Then(normalizeStage, fn.Then(resolveStage, scopeStage))
}

// normalizeStage cleans the two pools independently. Terminal-block
// corrections must never leak across panels, and the endpoint set has to be
// built from cleaned labels so it matches resolved records.
func (o *Orchestrator) normalizeStage() fn.Stage[collected, normalized] {
	return func(_ context.Context, coll collected) fn.Result[normalized] {
		norm := normalize.New(o.opts.Normalize)

		target, warns := norm.Wires(coll.target)
		coll.warnings = append(coll.warnings, warns...)

		cross, warns := norm.Wires(coll.cross)
		coll.warnings = append(coll.warnings, warns...)

		comps, warns := norm.Components(coll.comps)
		coll.warnings = append(coll.warnings, warns...)

		coll.target, coll.cross, coll.comps = target, cross, comps
		return fn.Ok(normalized{collected: coll, set: merge.NewEndpointSet(target)})
	}
}

// resolveStage builds the per-identifier graphs over both pools combined and
// collapses reference chains into direct connections.
func (o *Orchestrator) resolveStage() fn.Stage[normalized, resolvedPools] {
	return func(_ context.Context, norm normalized) fn.Result[resolvedPools] {
		pool := make([]domain.WireRecord, 0, len(norm.target)+len(norm.cross))
		pool = append(pool, norm.target...)
		pool = append(pool, norm.cross...)

		out := wiregraph.Resolve(pool, o.opts.Workers)
		norm.warnings = append(norm.warnings, out.Warnings...)
		return fn.Ok(resolvedPools{normalized: norm, wires: out.Wires})
	}
}

// scopeStage drops resolved connections that never touch the target panel
// and runs the final dedup over both record kinds.
func (o *Orchestrator) scopeStage() fn.Stage[resolvedPools, domain.Extraction] {
	return func(_ context.Context, res resolvedPools) fn.Result[domain.Extraction] {
		wires, comps := merge.Finalize(res.wires, res.comps, res.set, len(res.cross) > 0)
		return fn.Ok(domain.Extraction{
			Wires:           wires,
			CrossPanelWires: res.cross,
			Components:      comps,
			Warnings:        res.warnings,
			Stats:           res.stats,
		})
	}
}
