/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export rasterizes exported documents. A page exports exactly as the
// live surface paints it, only at the preset's resolution; pages that were
// never edited, and pages whose persisted graph is corrupt, export their
// placeholder content instead of failing the batch.
package export

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"postcanvas/internal/domain"
	applog "postcanvas/internal/log"
	"postcanvas/internal/render"
	"postcanvas/internal/scene"
)

// Exporter renders document pages for output.
type Exporter struct {
	raster *render.Rasterizer
	codec  scene.Codec
	log    *slog.Logger
}

// New builds an exporter over the shared rasterizer and codec.
func New(raster *render.Rasterizer, codec scene.Codec) *Exporter {
	return &Exporter{
		raster: raster,
		codec:  codec,
		log:    applog.WithComponent("export"),
	}
}

// Page renders a single page at the preset's resolution.
func (e *Exporter) Page(page *domain.Page, preset PresetName) (*image.RGBA, error) {
	m, err := Multiplier(preset, page.Format)
	if err != nil {
		return nil, err
	}
	g := e.hydrate(page)
	img, err := e.raster.Render(g, m)
	if err != nil {
		return nil, fmt.Errorf("render page %s: %w", page.ID, err)
	}
	return img, nil
}

// hydrate decodes the page's persisted graph, falling back to placeholder
// content for blank and corrupt pages so one bad page never sinks an export.
func (e *Exporter) hydrate(page *domain.Page) *scene.Graph {
	if len(page.Graph) > 0 {
		g, err := e.codec.Decode(page.Graph, page.Format, page.Theme)
		if err == nil {
			return g
		}
		e.log.Warn("exporting placeholder for corrupt page",
			slog.String("page", page.ID), slog.Any("err", err))
	}
	return scene.SeededGraph(page.Format, page.Theme)
}

// PageResult is one rendered page of a document export.
type PageResult struct {
	Index  int
	PageID string
	Name   string
	Image  *image.RGBA
}

// Rows iterates a document export lazily: each Next renders one page, so a
// caller streaming pages to disk never holds more than one frame in memory.
type Rows struct {
	exporter *Exporter
	preset   PresetName
	pages    []domain.Page
	pos      int
	cur      PageResult
	err      error
	closed   bool
}

// ExportAll returns a row iterator over every page of the document in order.
// The document is captured by value at call time; concurrent edits to it are
// not observed.
func (e *Exporter) ExportAll(doc *domain.Document, preset PresetName) *Rows {
	if _, err := Multiplier(preset, doc.Format); err != nil {
		return &Rows{err: err, closed: true}
	}
	snap := doc.Clone()
	return &Rows{exporter: e, preset: preset, pages: snap.Pages}
}

// Next advances to the next page, rendering it. It returns false when the
// document is exhausted or a render failed; check Err afterwards.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil || r.pos >= len(r.pages) {
		return false
	}
	page := &r.pages[r.pos]
	img, err := r.exporter.Page(page, r.preset)
	if err != nil {
		r.err = err
		r.closed = true
		return false
	}
	r.cur = PageResult{Index: r.pos, PageID: page.ID, Name: page.Name, Image: img}
	r.pos++
	return true
}

// Page returns the page rendered by the last successful Next.
func (r *Rows) Page() PageResult { return r.cur }

// Err returns the first error encountered while iterating.
func (r *Rows) Err() error { return r.err }

// Close releases the iterator. Further Next calls return false.
func (r *Rows) Close() { r.closed = true }

// WritePNG encodes the image to path, creating parent directories.
func WritePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// DocumentPNG exports every page of the document as page-<n>.png under
// outDir and returns the written paths.
func (e *Exporter) DocumentPNG(doc *domain.Document, outDir string, preset PresetName) ([]string, error) {
	rows := e.ExportAll(doc, preset)
	defer rows.Close()

	var written []string
	for rows.Next() {
		res := rows.Page()
		name := filepath.Join(outDir, fmt.Sprintf("page-%d.png", res.Index+1))
		if err := WritePNG(res.Image, name); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	if err := rows.Err(); err != nil {
		return written, err
	}
	return written, nil
}
