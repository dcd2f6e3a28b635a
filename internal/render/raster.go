/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render rasterizes scene graphs. One Rasterizer serves both the live
// editing surface (scale 1) and the exporters (format multipliers), so what
// the user sees on canvas is pixel-for-pixel what an export produces, only
// scaled.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"postcanvas/internal/domain"
	"postcanvas/internal/scene"
	"postcanvas/internal/text"
	"postcanvas/internal/theme"
)

// Rasterizer paints graphs into RGBA images.
type Rasterizer struct {
	layouter *text.Layouter
}

// NewRasterizer builds a rasterizer over the given font provider.
func NewRasterizer(fonts text.Provider) *Rasterizer {
	return &Rasterizer{layouter: text.NewLayouter(fonts)}
}

// Render paints the graph at the given scale. Scale 1 yields the format's
// base resolution; exporters pass their multiplier.
func (r *Rasterizer) Render(g *scene.Graph, scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("render scale must be positive, got %g", scale)
	}
	w, h := g.Format.BaseSize()
	pixW := int(math.Round(float64(w) * scale))
	pixH := int(math.Round(float64(h) * scale))
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))

	paintBackground(img, theme.Lookup(g.Theme).Background)

	for _, el := range g.Elements() {
		switch el.Kind {
		case domain.KindText:
			if err := r.paintText(img, el, scale); err != nil {
				return nil, fmt.Errorf("paint text %s: %w", el.ID, err)
			}
		case domain.KindImage:
			paintImage(img, el, scale)
		}
	}
	return img, nil
}

func paintBackground(img *image.RGBA, bg theme.Background) {
	b := img.Bounds()
	if bg.Solid != nil {
		draw.Draw(img, b, &image.Uniform{C: toRGBA(*bg.Solid)}, image.Point{}, draw.Src)
		return
	}
	if bg.Gradient == nil {
		draw.Draw(img, b, &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)
		return
	}
	maxX := float64(b.Dx() - 1)
	maxY := float64(b.Dy() - 1)
	if maxX <= 0 {
		maxX = 1
	}
	if maxY <= 0 {
		maxY = 1
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		v := float64(y-b.Min.Y) / maxY
		for x := b.Min.X; x < b.Max.X; x++ {
			u := float64(x-b.Min.X) / maxX
			img.SetRGBA(x, y, toRGBA(bg.Gradient.ColorAt(u, v)))
		}
	}
}

// paintImage scales the decoded bitmap into its placement rect with
// Catmull-Rom resampling.
func paintImage(img *image.RGBA, el *scene.Element, scale float64) {
	if el.Bitmap == nil {
		return
	}
	r := el.Bounds().Scale(scale)
	dst := image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H)),
	)
	if dst.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(img, dst, el.Bitmap, el.Bitmap.Bounds(), xdraw.Over, nil)
}

func (r *Rasterizer) paintText(img *image.RGBA, el *scene.Element, scale float64) error {
	sizePx := el.FontSize * scale
	boundW := el.BoundingWidth * scale
	box, face, err := r.layouter.Layout(el.Content, el.FontFamily, sizePx, boundW)
	if err != nil {
		return err
	}

	// Anchor the wrapped box the same way Bounds anchors the approximate one.
	var left, top float64
	if el.Origin == domain.OriginTopLeft {
		left = el.X * scale
		top = el.Y * scale
	} else {
		left = el.X*scale - boundW/2
		top = el.Y*scale - box.Height/2
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(toRGBA(el.Fill)),
		Face: face,
	}
	lineH := box.Metrics.LineHeight()
	for i, ln := range box.Lines {
		x := left
		switch el.TextAlign {
		case domain.AlignCenter:
			x = left + (boundW-ln.Width)/2
		case domain.AlignRight:
			x = left + boundW - ln.Width
		}
		baseline := top + float64(i)*lineH + box.Metrics.Ascent
		drawer.Dot = fixed.Point26_6{
			X: fixed.Int26_6(math.Round(x * 64)),
			Y: fixed.Int26_6(math.Round(baseline * 64)),
		}
		drawer.DrawString(ln.Text)
	}
	return nil
}

func toRGBA(c domain.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
