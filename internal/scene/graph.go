/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"image"

	"postcanvas/internal/domain"
	"postcanvas/internal/geom"
)

// Element is a live scene element. Unlike domain.ElementRecord it carries the
// decoded bitmap for image elements and is addressed by pointer identity
// within a single graph. IDs stay stable across codec round trips so
// selection and undo can re-reference an element after rehydration.
type Element struct {
	ID     string
	Kind   domain.ElementKind
	X, Y   float64
	ZIndex int
	Origin domain.Origin

	// Text fields.
	Content       string
	FontSize      float64
	Fill          domain.Color
	FontFamily    string
	TextAlign     domain.Align
	BoundingWidth float64

	// Image fields.
	Bitmap image.Image
	Scale  float64
}

// Bounds returns the approximate page-local bounding rect of the element.
// Text height is estimated from the font size; precise wrapping happens in
// the raster path. Good enough for hit testing and selection handles.
func (e *Element) Bounds() geom.Rect {
	var sz geom.Size
	switch e.Kind {
	case domain.KindImage:
		if e.Bitmap != nil {
			b := e.Bitmap.Bounds()
			sz = geom.Size{W: float64(b.Dx()) * e.Scale, H: float64(b.Dy()) * e.Scale}
		}
	default:
		sz = geom.Size{W: e.BoundingWidth, H: e.FontSize * 1.4}
	}
	if e.Origin == domain.OriginTopLeft {
		return geom.Anchored(geom.Pt{X: e.X, Y: e.Y}, sz, 0, 0)
	}
	return geom.Anchored(geom.Pt{X: e.X, Y: e.Y}, sz, 0.5, 0.5)
}

// Graph is the live scene of one page: elements held in paint order
// (back to front) plus the page's format and theme. Only the scene renderer
// may mutate a live graph; the codec builds transient graphs during
// hydration and export.
type Graph struct {
	Format   domain.Format
	Theme    domain.Theme
	elements []*Element
}

// NewGraph returns an empty graph for the given format and theme.
func NewGraph(format domain.Format, theme domain.Theme) *Graph {
	return &Graph{Format: format, Theme: theme}
}

// Elements returns the elements in paint order. The slice is shared; callers
// must treat it as read-only.
func (g *Graph) Elements() []*Element { return g.elements }

// Len returns the number of elements.
func (g *Graph) Len() int { return len(g.elements) }

// ByID returns the element with the given id, or nil.
func (g *Graph) ByID(id string) *Element {
	for _, e := range g.elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Append adds an element at the top of the paint order.
func (g *Graph) Append(e *Element) {
	g.elements = append(g.elements, e)
	g.renumber()
}

// Restore replaces the element list with els as-is, keeping their persisted
// z indices. Hydration path; edits go through Append/Remove/Reorder, which
// renumber.
func (g *Graph) Restore(els []*Element) { g.elements = els }

// Remove deletes the element with the given id. It reports whether an
// element was removed.
func (g *Graph) Remove(id string) bool {
	for i, e := range g.elements {
		if e.ID == id {
			g.elements = append(g.elements[:i], g.elements[i+1:]...)
			g.renumber()
			return true
		}
	}
	return false
}

// Clear drops all elements.
func (g *Graph) Clear() { g.elements = nil }

// TopAt returns the topmost element whose bounds contain p, or nil.
func (g *Graph) TopAt(p geom.Pt) *Element {
	for i := len(g.elements) - 1; i >= 0; i-- {
		if g.elements[i].Bounds().Contains(p) {
			return g.elements[i]
		}
	}
	return nil
}

// indexOf returns the paint-order slot of id, or -1.
func (g *Graph) indexOf(id string) int {
	for i, e := range g.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// renumber assigns ZIndex = paint-order slot. Keeping the two in lockstep
// makes the persisted order and the z values agree after any reorder.
func (g *Graph) renumber() {
	for i, e := range g.elements {
		e.ZIndex = i
	}
}

// Move is a paint-order move of one or more elements.
type Move int

const (
	MoveToFront Move = iota
	MoveToBack
	MoveForward
	MoveBackward
)

// Reorder applies the move to the elements with the given ids. Relative order
// among the moved elements is preserved and every moved element is displaced
// by the same number of slots; moves past either end clamp. Unknown ids are
// ignored. It reports whether the paint order changed.
func (g *Graph) Reorder(ids []string, move Move) bool {
	moving := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.indexOf(id) >= 0 {
			moving[id] = true
		}
	}
	if len(moving) == 0 {
		return false
	}

	var picked, rest []*Element
	for _, e := range g.elements {
		if moving[e.ID] {
			picked = append(picked, e)
		} else {
			rest = append(rest, e)
		}
	}

	var out []*Element
	switch move {
	case MoveToFront:
		out = append(append(out, rest...), picked...)
	case MoveToBack:
		out = append(append(out, picked...), rest...)
	case MoveForward, MoveBackward:
		// Uniform single-slot displacement, clamped at the ends.
		delta := 1
		if move == MoveBackward {
			delta = -1
		}
		lo := g.indexOf(picked[0].ID)
		hi := g.indexOf(picked[len(picked)-1].ID)
		shift := delta
		if hi+shift > len(g.elements)-1 {
			shift = len(g.elements) - 1 - hi
		}
		if lo+shift < 0 {
			shift = -lo
		}
		if shift == 0 {
			return false
		}
		out = g.shiftBlockwise(moving, shift)
	default:
		return false
	}

	changed := false
	for i := range out {
		if out[i] != g.elements[i] {
			changed = true
			break
		}
	}
	if !changed {
		return false
	}
	g.elements = out
	g.renumber()
	return true
}

// shiftBlockwise displaces every moved element by shift slots while keeping
// the relative order of moved and unmoved elements intact.
func (g *Graph) shiftBlockwise(moving map[string]bool, shift int) []*Element {
	n := len(g.elements)
	out := make([]*Element, n)
	taken := make([]bool, n)
	// The caller clamped shift so every target slot is in range, and a uniform
	// shift keeps the targets distinct.
	for i, e := range g.elements {
		if moving[e.ID] {
			out[i+shift] = e
			taken[i+shift] = true
		}
	}
	j := 0
	for _, e := range g.elements {
		if moving[e.ID] {
			continue
		}
		for taken[j] {
			j++
		}
		out[j] = e
		taken[j] = true
	}
	return out
}
