package domain

import (
	"errors"
	"testing"
)

func TestWireRecordCompleteness(t *testing.T) {
	bare := WireRecord{ID: "24", From: "QM102.1", To: "KM45.2"}
	rich := WireRecord{ID: "24", From: "QM102.1", To: "KM45.2", Gauge: "1.5mm²", Color: "BK", Foglio: 100}
	if bare.Completeness() != 3 {
		t.Errorf("bare completeness = %d, want 3", bare.Completeness())
	}
	if rich.Completeness() != 6 {
		t.Errorf("rich completeness = %d, want 6", rich.Completeness())
	}
	if got := RicherWire(bare, rich); got.Gauge != "1.5mm²" {
		t.Errorf("RicherWire kept the poorer row: %+v", got)
	}
	// Ties keep the first candidate.
	other := WireRecord{ID: "24", From: "QM102.1", To: "KM45.2"}
	if got := RicherWire(bare, other); got != bare {
		t.Errorf("tie should keep first candidate")
	}
}

func TestComponentAddWire(t *testing.T) {
	c := ComponentRecord{Ref: "QM102"}
	c.AddWire("24")
	c.AddWire("7")
	c.AddWire("24")
	c.AddWire("")
	if len(c.Wires) != 2 {
		t.Fatalf("wires = %v, want two entries", c.Wires)
	}
	if c.Wires[0] != "24" || c.Wires[1] != "7" {
		t.Errorf("wires not sorted: %v", c.Wires)
	}
}

func TestMergeComponents(t *testing.T) {
	a := ComponentRecord{Ref: "KM45", Quantity: 1, Wires: []string{"24"}, Note: "main contactor", Page: 3}
	b := ComponentRecord{Ref: "KM45", Quantity: 2, Wires: []string{"25"}, Description: "contactor 3P", Note: "spare", Page: 1}
	m := MergeComponents(a, b)
	if m.Quantity != 3 {
		t.Errorf("quantity = %d, want 3", m.Quantity)
	}
	if len(m.Wires) != 2 {
		t.Errorf("wires = %v, want union of two", m.Wires)
	}
	if m.Description != "contactor 3P" {
		t.Errorf("description not filled from b: %q", m.Description)
	}
	if m.Note != "main contactor; spare" {
		t.Errorf("notes not concatenated: %q", m.Note)
	}
	if m.Page != 1 {
		t.Errorf("page = %d, want earliest", m.Page)
	}
}

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want error
	}{
		{"no pages", Job{Panel: "A1"}, ErrNoInput},
		{"empty image", Job{Pages: []PagePayload{{Index: 1}}}, ErrEmptyPage},
		{"image ok", Job{Pages: []PagePayload{{Index: 1, Image: []byte{0xff}}}}, nil},
		{"text only ok", Job{Pages: []PagePayload{{Index: 1, RawText: "wiring"}}}, nil},
	}
	for _, tt := range tests {
		err := ValidateJob(tt.job)
		if tt.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestNormalizePanelLabel(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"+A1", "A1"},
		{" +a1 ", "A1"},
		{"-QE3", "QE3"},
		{"+ A2", "A2"},
		{"A1", "A1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePanelLabel(tt.input); got != tt.want {
			t.Errorf("NormalizePanelLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
	if !SamePanel("+A1", "a1") {
		t.Error("expected +A1 and a1 to match")
	}
	if SamePanel("+A1", "A2") {
		t.Error("expected +A1 and A2 to differ")
	}
}

func TestRetriable(t *testing.T) {
	if !Retriable(ErrRateLimited) || !Retriable(ErrTransient) || !Retriable(ErrMalformedOutput) {
		t.Error("retriable sentinels misclassified")
	}
	if Retriable(errors.New("bad request")) {
		t.Error("arbitrary errors must not be retriable")
	}
	wrapped := NewValidationError("pages", "", ErrNoInput)
	if Retriable(wrapped) {
		t.Error("validation errors must not be retriable")
	}
	if !errors.Is(wrapped, ErrNoInput) {
		t.Error("ValidationError must unwrap to its sentinel")
	}
}
