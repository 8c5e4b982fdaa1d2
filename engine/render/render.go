// Package render writes finished extractions for downstream consumers. The
// in-repo renderer emits JSON documents; spreadsheet and drawing layouts are
// produced by external tools reading that output.
package render

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

// Renderer writes one finished extraction somewhere useful.
type Renderer interface {
	Render(ctx context.Context, meta domain.RunMeta, ext domain.Extraction) error
}

// document is the on-disk layout. Slices are never null so consumers can
// index into them without checking.
type document struct {
	domain.RunMeta
	Wires      []domain.WireRecord      `json:"wires"`
	Components []domain.ComponentRecord `json:"components"`
	Warnings   []string                 `json:"warnings"`
	Stats      domain.Stats             `json:"stats"`
}

func newDocument(meta domain.RunMeta, ext domain.Extraction) document {
	doc := document{
		RunMeta:    meta,
		Wires:      ext.Wires,
		Components: ext.Components,
		Warnings:   ext.Warnings,
		Stats:      ext.Stats,
	}
	if doc.Wires == nil {
		doc.Wires = []domain.WireRecord{}
	}
	if doc.Components == nil {
		doc.Components = []domain.ComponentRecord{}
	}
	if doc.Warnings == nil {
		doc.Warnings = []string{}
	}
	return doc
}

// WriteJSON writes the extraction as an indented JSON document.
func WriteJSON(w io.Writer, meta domain.RunMeta, ext domain.Extraction) error {
	data, err := json.MarshalIndent(newDocument(meta, ext), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// JSONFile renders into a file, creating or truncating it.
type JSONFile struct {
	Path string
}

func (r JSONFile) Render(_ context.Context, meta domain.RunMeta, ext domain.Extraction) error {
	f, err := os.Create(r.Path)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, meta, ext); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
