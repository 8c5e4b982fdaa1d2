// Package pagesource loads rendered page images for extraction. Rendering a
// document into images is an external concern; this package only picks the
// rendered files up in a predictable order.
package pagesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// pageNumRe grabs the last number in a file stem, so "page_12" and "012"
// both order numerically.
var pageNumRe = regexp.MustCompile(`(\d+)\D*$`)

// Dir reads rendered pages from a directory. A sidecar "<stem>.txt" next to
// an image is attached as the page's text layer.
type Dir struct {
	path string
}

// NewDir creates a directory source.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Pages lists, orders, and loads the page images. A missing or empty
// directory is an input error and fatal to the run.
func (d *Dir) Pages(ctx context.Context) ([]domain.PagePayload, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoInput, err)
	}

	type pageFile struct {
		name string
		stem string
		num  int
	}
	var files []pageFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := mimeByExt[ext]; !ok {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		num := 0
		if m := pageNumRe.FindStringSubmatch(stem); m != nil {
			num, _ = strconv.Atoi(m[1])
		}
		files = append(files, pageFile{name: e.Name(), stem: stem, num: num})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no page images in %s", domain.ErrNoInput, d.path)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].num != files[j].num {
			return files[i].num < files[j].num
		}
		return files[i].name < files[j].name
	})

	pages := make([]domain.PagePayload, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := os.ReadFile(filepath.Join(d.path, f.name))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrNoInput, err)
		}
		index := f.num
		if index <= 0 {
			index = i + 1
		}
		page := domain.PagePayload{
			Index: index,
			Image: img,
			MIME:  mimeByExt[strings.ToLower(filepath.Ext(f.name))],
		}
		if text, err := os.ReadFile(filepath.Join(d.path, f.stem+".txt")); err == nil {
			page.RawText = string(text)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
