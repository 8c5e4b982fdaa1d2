package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

func TestCompositeIdentifierSplit(t *testing.T) {
	n := New(Options{})
	out, warns := n.Wires([]domain.WireRecord{
		{ID: "2,5 / 108A", From: "QM102.1", To: "KM45.2", Page: 3},
	})
	if len(out) != 1 {
		t.Fatalf("got %d rows", len(out))
	}
	if out[0].ID != "108A" || out[0].Gauge != "2,5" {
		t.Errorf("split = id %q gauge %q", out[0].ID, out[0].Gauge)
	}
	if len(warns) != 1 {
		t.Errorf("warnings = %v, want exactly one", warns)
	}
	// An explicit gauge is not overwritten by the split.
	out, _ = n.Wires([]domain.WireRecord{
		{ID: "1.5 / 24", From: "A1.1", To: "K7.2", Gauge: "2.5mm²"},
	})
	if out[0].Gauge != "2.5mm²" {
		t.Errorf("existing gauge overwritten: %q", out[0].Gauge)
	}
}

func TestNumericEndpoints(t *testing.T) {
	n := New(Options{})
	out, warns := n.Wires([]domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "108", Page: 1},
		{ID: "31", From: "77", To: "104", Page: 1},
	})
	if len(out) != 1 {
		t.Fatalf("rows = %d, want 1 (both-numeric row dropped)", len(out))
	}
	if out[0].To != "reference 108" {
		t.Errorf("numeric endpoint not relabeled: %q", out[0].To)
	}
	if len(warns) != 2 {
		t.Errorf("warnings = %v, want relabel + drop", warns)
	}
}

func TestExclusionPolicy(t *testing.T) {
	rows := []domain.WireRecord{
		{ID: "W12", From: "A1.1", To: "K7.2"},
		{ID: "PE", From: "A1.1", To: "K7.2"},
		{ID: "pen", From: "A1.1", To: "K7.2"},
		{ID: "L1", From: "A1.1", To: "K7.2"},
		{ID: "24", From: "A1.1", To: "K7.2"},
	}

	n := New(Options{})
	out, _ := n.Wires(rows)
	var kept []string
	for _, w := range out {
		kept = append(kept, w.ID)
	}
	if !reflect.DeepEqual(kept, []string{"L1", "24"}) {
		t.Errorf("default policy kept %v, want [L1 24]", kept)
	}

	strict := New(Options{DropPhaseLabels: true})
	out, _ = strict.Wires(rows)
	kept = nil
	for _, w := range out {
		kept = append(kept, w.ID)
	}
	if !reflect.DeepEqual(kept, []string{"24"}) {
		t.Errorf("strict policy kept %v, want [24]", kept)
	}
}

func TestTerminalBlockCorrection(t *testing.T) {
	n := New(Options{})
	out, warns := n.Wires([]domain.WireRecord{
		{ID: "7", From: "XT2.4", To: "QM102.1"},
		{ID: "8", From: "XT12.1", To: "KM45.3"},
		{ID: "9", From: "XT16.2", To: "KM45.4"},
	})
	if out[0].From != "XT12.4" {
		t.Errorf("XT2.4 not corrected: %q", out[0].From)
	}
	if out[2].From != "XT16.2" {
		t.Errorf("XT16 must stay untouched: %q", out[2].From)
	}
	found := false
	for _, w := range warns {
		if strings.Contains(w, `"XT2" corrected to "XT12"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("correction warning missing: %v", warns)
	}
}

func TestTerminalBlockCorrectionAmbiguous(t *testing.T) {
	n := New(Options{})
	out, warns := n.Wires([]domain.WireRecord{
		{ID: "7", From: "XT2.4", To: "QM102.1"},
		{ID: "8", From: "XT12.1", To: "KM45.3"},
		{ID: "9", From: "XT52.2", To: "KM45.4"},
	})
	if out[0].From != "XT2.4" {
		t.Errorf("ambiguous correction must not rewrite, got %q", out[0].From)
	}
	found := false
	for _, w := range warns {
		if strings.Contains(w, "multiple truncation candidates") {
			found = true
		}
	}
	if !found {
		t.Errorf("ambiguity warning missing: %v", warns)
	}
}

func TestDuplicateMergeKeepsMostComplete(t *testing.T) {
	n := New(Options{})
	out, _ := n.Wires([]domain.WireRecord{
		{ID: "24", From: "QM102.1", To: "KM45.2", Page: 4},
		{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1.5mm²", Color: "BU", Page: 9},
	})
	if len(out) != 1 {
		t.Fatalf("rows = %d, want 1", len(out))
	}
	if out[0].Gauge != "1.5mm²" || out[0].Color != "BU" {
		t.Errorf("poorer duplicate won: %+v", out[0])
	}
}

func TestWireLengthBounds(t *testing.T) {
	n := New(Options{})
	out, warns := n.Wires([]domain.WireRecord{
		{ID: "24", From: "A1.1", To: "K7.2", LengthMM: 2_000_000},
	})
	if out[0].LengthMM != 0 {
		t.Errorf("implausible length kept: %d", out[0].LengthMM)
	}
	if len(warns) != 1 {
		t.Errorf("warnings = %v", warns)
	}
}

func TestNormalizationIdempotent(t *testing.T) {
	n := New(Options{})
	raw := []domain.WireRecord{
		{ID: " 2,5 / 108A ", From: "XT2.4", To: "108", Page: 1},
		{ID: "24", From: "QM102.1", To: "KM45.2", Page: 1},
		{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1mm²", Page: 2},
		{ID: "W9", From: "A1.1", To: "K7.2", Page: 2},
		{ID: "7", From: "XT12.1", To: "KM45.3", Page: 3},
	}
	once, warns1 := n.Wires(raw)
	if len(warns1) == 0 {
		t.Fatal("first pass should report corrections")
	}
	twice, warns2 := n.Wires(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed output:\n first=%+v\nsecond=%+v", once, twice)
	}
	if len(warns2) != 0 {
		t.Errorf("second pass warnings = %v, want none", warns2)
	}

	comps := []domain.ComponentRecord{
		{Ref: "-QM102/1", Page: 1},
		{Ref: "QM102", Description: "motor switch", Page: 2},
		{Ref: "12", Page: 2},
	}
	c1, cw1 := n.Components(comps)
	if len(cw1) == 0 {
		t.Fatal("first component pass should report corrections")
	}
	c2, cw2 := n.Components(c1)
	if !reflect.DeepEqual(c1, c2) {
		t.Errorf("component second pass changed output:\n first=%+v\nsecond=%+v", c1, c2)
	}
	if len(cw2) != 0 {
		t.Errorf("component second pass warnings = %v", cw2)
	}
}

func TestComponentNormalization(t *testing.T) {
	n := New(Options{})
	out, warns := n.Components([]domain.ComponentRecord{
		{Ref: "-QM102/1", Page: 4},
		{Ref: "QM102", Description: "motor protection switch", Wires: []string{"24"}, Page: 2},
		{Ref: "108", Page: 2},
		{Ref: "  ", Page: 3},
	})
	if len(out) != 1 {
		t.Fatalf("components = %+v, want single merged QM102", out)
	}
	c := out[0]
	if c.Ref != "QM102" {
		t.Errorf("ref = %q", c.Ref)
	}
	if c.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", c.Quantity)
	}
	if c.Description != "motor protection switch" {
		t.Errorf("description lost: %q", c.Description)
	}
	if !strings.Contains(c.Note, "pin 1") {
		t.Errorf("pin suffix not noted: %q", c.Note)
	}
	if c.Page != 2 {
		t.Errorf("page = %d, want earliest", c.Page)
	}
	if len(warns) != 3 {
		t.Errorf("warnings = %v, want pin split + numeric drop + empty drop", warns)
	}
}
