/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"postcanvas/internal/codec"
	"postcanvas/internal/domain"
	"postcanvas/internal/export"
	"postcanvas/internal/render"
	"postcanvas/internal/scene"
	"postcanvas/internal/store"
	"postcanvas/internal/text"
)

func testExporter(t *testing.T) *export.Exporter {
	t.Helper()
	fonts, err := text.NewLibrary()
	if err != nil {
		t.Fatalf("load fonts: %v", err)
	}
	return export.New(render.NewRasterizer(fonts), codec.Codec{})
}

func TestFlushableFollowsRendererLifecycle(t *testing.T) {
	fonts, err := text.NewLibrary()
	if err != nil {
		t.Fatalf("load fonts: %v", err)
	}
	provider := &render.Provider{Raster: render.NewRasterizer(fonts)}
	doc := domain.NewDocument("Lifecycle", domain.FormatPost, domain.ThemeClassic)

	if flushable(nil, &doc) {
		t.Fatal("nil renderer reported flushable")
	}
	r := scene.New(provider, scene.StdDecoder{}, codec.Codec{})
	if flushable(r, nil) {
		t.Fatal("nil document reported flushable")
	}
	if flushable(r, &doc) {
		t.Fatal("uninitialized renderer reported flushable")
	}
	if err := r.Activate(&doc.Pages[0]); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !flushable(r, &doc) {
		t.Fatal("active renderer not flushable")
	}
	r.Dispose()
	if flushable(r, &doc) {
		t.Fatal("disposed renderer reported flushable")
	}
}

func TestPagePreviewRendersAndCaches(t *testing.T) {
	ws, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	exp := testExporter(t)
	doc := domain.NewDocument("Thumbs", domain.FormatPost, domain.ThemeClassic)
	ctx := context.Background()

	blob, err := pagePreview(ctx, ws, exp, &doc, &doc.Pages[0])
	if err != nil {
		t.Fatalf("pagePreview: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 216 || b.Dy() != 216 {
		t.Fatalf("preview size = %dx%d, want 216x216", b.Dx(), b.Dy())
	}

	cached, err := ws.GetPreview(ctx, doc.ID, doc.Pages[0].ID, 216, 216)
	if err != nil {
		t.Fatalf("GetPreview: %v", err)
	}
	if !bytes.Equal(cached, blob) {
		t.Fatal("cache does not hold the rendered preview")
	}

	again, err := pagePreview(ctx, ws, exp, &doc, &doc.Pages[0])
	if err != nil {
		t.Fatalf("pagePreview (cached): %v", err)
	}
	if !bytes.Equal(again, blob) {
		t.Fatal("second call did not serve the cached preview")
	}
}

func TestRefreshPreviewsDropsStaleEntries(t *testing.T) {
	ws, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	exp := testExporter(t)
	doc := domain.NewDocument("Refresh", domain.FormatPost, domain.ThemeMidnight)
	doc.AppendPage()
	ctx := context.Background()

	// Entry for a page that no longer exists.
	if err := ws.PutPreview(ctx, doc.ID, "gone-page", 216, 216, []byte("stale")); err != nil {
		t.Fatalf("PutPreview: %v", err)
	}

	if err := refreshPreviews(ctx, ws, exp, &doc); err != nil {
		t.Fatalf("refreshPreviews: %v", err)
	}

	stale, err := ws.GetPreview(ctx, doc.ID, "gone-page", 216, 216)
	if err != nil {
		t.Fatalf("GetPreview: %v", err)
	}
	if stale != nil {
		t.Fatal("stale preview survived refresh")
	}
	for i, pg := range doc.Pages {
		if len(pg.Preview) == 0 {
			t.Fatalf("page %d has no preview after refresh", i)
		}
		fresh, err := ws.GetPreview(ctx, doc.ID, pg.ID, 216, 216)
		if err != nil {
			t.Fatalf("GetPreview page %d: %v", i, err)
		}
		if !bytes.Equal(fresh, pg.Preview) {
			t.Fatalf("page %d cache and Preview field differ", i)
		}
	}
}
