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

	"postcanvas/internal/domain"
	"postcanvas/internal/export"
	"postcanvas/internal/scene"
	"postcanvas/internal/store"
)

// flushable reports whether the live graph can be serialized back into the
// open document: both must exist and the renderer must still be active.
func flushable(r *scene.Renderer, doc *domain.Document) bool {
	return r != nil && doc != nil && r.State() == scene.StateActive
}

// pagePreview returns the page's thumbnail PNG from the workspace preview
// cache, rendering at the thumbnail preset and caching on a miss.
func pagePreview(ctx context.Context, ws *store.Workspace, exp *export.Exporter, doc *domain.Document, page *domain.Page) ([]byte, error) {
	pw, ph, err := export.OutputSize(export.PresetThumbnail, page.Format)
	if err != nil {
		return nil, err
	}
	if blob, err := ws.GetPreview(ctx, doc.ID, page.ID, pw, ph); err == nil && blob != nil {
		return blob, nil
	}
	img, err := exp.Page(page, export.PresetThumbnail)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	if err := ws.PutPreview(ctx, doc.ID, page.ID, pw, ph, buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// refreshPreviews rebuilds the document's cached thumbnails after a save.
// Stale entries are dropped first so removed or reshaped pages cannot leave
// orphans behind, then every page is re-rendered and its Preview field filled
// for list UIs.
func refreshPreviews(ctx context.Context, ws *store.Workspace, exp *export.Exporter, doc *domain.Document) error {
	if err := ws.DropPreviews(ctx, doc.ID); err != nil {
		return err
	}
	for i := range doc.Pages {
		blob, err := pagePreview(ctx, ws, exp, doc, &doc.Pages[i])
		if err != nil {
			return err
		}
		doc.Pages[i].Preview = blob
	}
	return nil
}
