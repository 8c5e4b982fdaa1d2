package merge

import (
	"reflect"
	"testing"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

func TestEndpointSet(t *testing.T) {
	set := NewEndpointSet([]domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "reference 108"},
		{ID: "7", From: "XT12.4", To: "KM45.2"},
	})

	cases := []struct {
		label string
		want  bool
	}{
		{"QM102.1", true},
		{"XT12.4", true},
		{"KM45.2", true},
		{"reference 108", false},
		{"KM45.3", false},
	}
	for _, tc := range cases {
		if got := set.Contains(tc.label); got != tc.want {
			t.Errorf("Contains(%q) = %v, want %v", tc.label, got, tc.want)
		}
	}
	if set.Len() != 3 {
		t.Errorf("Len = %d, want 3", set.Len())
	}
}

func TestScopeKeepsWiresTouchingPanel(t *testing.T) {
	set := NewEndpointSet([]domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "reference 108"},
	})
	resolved := []domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "KM45.2"},
		{ID: "77", From: "KM45.3", To: "KA9.1"},
	}

	got := Scope(resolved, set, true)
	if len(got) != 1 {
		t.Fatalf("kept %d wires, want 1: %+v", len(got), got)
	}
	if got[0].ID != "24" {
		t.Errorf("kept wire %q, want 24", got[0].ID)
	}
}

func TestScopeSinglePanelPassthrough(t *testing.T) {
	resolved := []domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "KM45.2"},
		{ID: "77", From: "KM45.3", To: "KA9.1"},
	}

	got := Scope(resolved, NewEndpointSet(nil), false)
	if !reflect.DeepEqual(got, resolved) {
		t.Errorf("single-panel input was modified: %+v", got)
	}
}

func TestDedupWiresKeepsMostComplete(t *testing.T) {
	wires := []domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "KM45.2", Page: 1},
		{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1mm²", Color: "BN", Page: 4},
		{ID: "7", From: "XT12.1", To: "KM45.3", Page: 2},
	}

	got := DedupWires(wires)
	if len(got) != 2 {
		t.Fatalf("deduped to %d rows, want 2", len(got))
	}
	if got[0].Gauge != "1mm²" || got[0].Color != "BN" {
		t.Errorf("richer duplicate lost: %+v", got[0])
	}
	if got[1].ID != "7" {
		t.Errorf("row order not preserved: %+v", got)
	}
}

func TestFinalize(t *testing.T) {
	set := NewEndpointSet([]domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "reference 108"},
	})
	wires := []domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "KM45.2"},
		{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1mm²"},
		{ID: "99", From: "KA1.1", To: "KA2.2"},
	}
	comps := []domain.ComponentRecord{
		{Ref: "QM102", Quantity: 1, Wires: []string{"24"}},
		{Ref: "QM102", Quantity: 1, Description: "motor protection switch"},
	}

	outWires, outComps := Finalize(wires, comps, set, true)
	if len(outWires) != 1 || outWires[0].Gauge != "1mm²" {
		t.Errorf("wires = %+v, want one merged row for wire 24", outWires)
	}
	if len(outComps) != 1 {
		t.Fatalf("components = %+v, want one merged record", outComps)
	}
	c := outComps[0]
	if c.Quantity != 2 || c.Description != "motor protection switch" || len(c.Wires) != 1 {
		t.Errorf("component merge lost data: %+v", c)
	}
}
