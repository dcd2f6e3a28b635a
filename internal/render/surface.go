/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"log/slog"
	"sync"

	"postcanvas/internal/domain"
	applog "postcanvas/internal/log"
	"postcanvas/internal/scene"
)

// Surface is an offscreen raster target at the format's base resolution.
// Every redraw repaints the full frame; OnFrame hands the result to whoever
// presents it (the UI canvas, the preview cache).
type Surface struct {
	raster  *Rasterizer
	w, h    int
	onFrame func(*image.RGBA)
	log     *slog.Logger

	mu       sync.Mutex
	frame    *image.RGBA
	released bool
}

// Size returns the surface dimensions in pixels.
func (s *Surface) Size() (int, int) { return s.w, s.h }

// Redraw repaints the graph into the frame buffer.
func (s *Surface) Redraw(g *scene.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || g == nil {
		return
	}
	img, err := s.raster.Render(g, 1)
	if err != nil {
		s.log.Error("surface redraw failed", slog.Any("err", err))
		return
	}
	s.frame = img
	if s.onFrame != nil {
		s.onFrame(img)
	}
}

// Frame returns the most recently painted frame, or nil before the first
// redraw or after release.
func (s *Surface) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Release drops the frame buffer. Further redraws are ignored.
func (s *Surface) Release() {
	s.mu.Lock()
	s.frame = nil
	s.released = true
	s.mu.Unlock()
}

// Provider allocates offscreen surfaces sized to the page format.
type Provider struct {
	Raster *Rasterizer

	// OnFrame, when set, is copied onto every acquired surface and called
	// with each completed frame while holding no renderer locks beyond the
	// surface's own.
	OnFrame func(*image.RGBA)
}

var _ scene.SurfaceProvider = (*Provider)(nil)

// Acquire returns a fresh surface at the format's base resolution.
func (p *Provider) Acquire(format domain.Format) (scene.Surface, error) {
	w, h := format.BaseSize()
	return &Surface{
		raster:  p.Raster,
		w:       w,
		h:       h,
		onFrame: p.OnFrame,
		log:     applog.WithComponent("render"),
	}, nil
}
