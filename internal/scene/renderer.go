/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene owns the live, mutable graph of the currently active page.
// Every read-modify-write of the graph funnels through the Renderer and is
// serialized under one mutex; the only concurrency is asynchronous image
// decode, whose completions re-check that the graph they were decoding for
// is still the active one before touching anything.
package scene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"postcanvas/internal/domain"
	"postcanvas/internal/geom"
	applog "postcanvas/internal/log"
	"postcanvas/internal/notify"
	"postcanvas/internal/theme"
)

// PlaceholderText seeds an uninitialized page.
const PlaceholderText = "Your story starts here"

const defaultFontSize = 64
const defaultFontFamily = "sans"

// Errors reported by renderer operations. All of them are recoverable; a
// failed operation leaves the prior graph state fully intact.
var (
	ErrRenderSurfaceUnavailable = errors.New("no drawable surface is attached")
	ErrNotActive                = errors.New("scene renderer is not active")
	ErrNoSelection              = errors.New("no element is selected")
)

// ImageDecodeError wraps a bitmap decode failure. The graph is unchanged.
type ImageDecodeError struct{ Err error }

func (e *ImageDecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }
func (e *ImageDecodeError) Unwrap() error { return e.Err }

// Surface is a paintable target supplied by a drawing surface provider.
type Surface interface {
	Size() (w, h int)
	Redraw(g *Graph)
	Release()
}

// SurfaceProvider allocates surfaces for a page format.
type SurfaceProvider interface {
	Acquire(format domain.Format) (Surface, error)
}

// Codec moves graphs into and out of their persisted form. Implemented by
// internal/codec; declared here so hydration does not create an import cycle.
type Codec interface {
	Encode(g *Graph) (json.RawMessage, error)
	Decode(raw json.RawMessage, format domain.Format, thm domain.Theme) (*Graph, error)
}

// Events are fired after every successful mutation, outside the renderer
// lock, so handlers may call back into the renderer.
type Events struct {
	ElementSelected func(*Element) // nil means selection cleared
	GraphChanged    func()
}

// State tracks the renderer lifecycle: Uninitialized -> Active -> Disposed.
// Activate on a disposed renderer yields a logically fresh active instance.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDisposed
)

// TextStyle carries optional styling for AddText. Zero values fall back to
// the theme's defaults.
type TextStyle struct {
	FontSize      float64
	Fill          *domain.Color
	FontFamily    string
	Align         domain.Align
	BoundingWidth float64
}

// TextPatch is a partial update for the selected text element. Nil fields
// are left untouched.
type TextPatch struct {
	Content       *string
	FontSize      *float64
	Fill          *domain.Color
	FontFamily    *string
	Align         *domain.Align
	BoundingWidth *float64
}

// Renderer mediates every read and mutation of the active page's live graph.
type Renderer struct {
	provider SurfaceProvider
	decoder  Decoder
	codec    Codec
	sink     notify.Sink
	events   Events
	log      *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	surface    Surface
	graph      *Graph
	pageID     string
	selection  []string // ordered ids; the last entry is the primary selection
}

// New creates a renderer bound to a surface provider, a bitmap decoder and a
// codec. Events and the notification sink are optional.
func New(provider SurfaceProvider, dec Decoder, codec Codec) *Renderer {
	return &Renderer{
		provider: provider,
		decoder:  dec,
		codec:    codec,
		sink:     notify.Discard,
		log:      applog.WithComponent("scene"),
	}
}

// SetEvents installs the UI event callbacks.
func (r *Renderer) SetEvents(ev Events) {
	r.mu.Lock()
	r.events = ev
	r.mu.Unlock()
}

// SetNotifier installs the user-facing status sink.
func (r *Renderer) SetNotifier(s notify.Sink) {
	r.mu.Lock()
	if s == nil {
		s = notify.Discard
	}
	r.sink = s
	r.mu.Unlock()
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PageID returns the id of the active page, or "" when not active.
func (r *Renderer) PageID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageID
}

// Graph returns the live graph. Callers must treat it as read-only; all
// mutation goes through renderer operations.
func (r *Renderer) Graph() *Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph
}

// Activate makes the given page's scene the live graph, disposing any
// previously active graph first. A present persisted graph is hydrated
// through the codec; a corrupt one falls back to placeholder content so a
// damaged page never blocks the editor from opening. An uninitialized page
// seeds a single centered placeholder text element styled per the theme.
func (r *Renderer) Activate(page *domain.Page) error {
	r.mu.Lock()
	if r.provider == nil {
		r.mu.Unlock()
		return ErrRenderSurfaceUnavailable
	}

	surface, err := r.provider.Acquire(page.Format)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRenderSurfaceUnavailable, err)
	}

	// Implicit dispose of the predecessor: stale decode completions check
	// the generation and are discarded.
	r.disposeLocked()

	var g *Graph
	if len(page.Graph) > 0 {
		g, err = r.codec.Decode(page.Graph, page.Format, page.Theme)
		if err != nil {
			r.log.Warn("persisted graph rejected, falling back to placeholder",
				slog.String("page", page.ID), slog.Any("err", err))
			r.sink.Notify(notify.Warning, fmt.Sprintf("Page %q could not be restored and was reset.", page.Name))
			g = nil
		}
	}
	if g == nil {
		g = seededGraph(page.Format, page.Theme)
	}

	r.state = StateActive
	r.surface = surface
	r.graph = g
	r.pageID = page.ID
	r.selection = nil
	r.redrawLocked()
	ev := r.events
	r.mu.Unlock()

	fireGraphChanged(ev)
	fireSelected(ev, nil)
	return nil
}

// AddText inserts a new text element at the canvas center and selects it.
func (r *Renderer) AddText(content string, style TextStyle) (*Element, error) {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return nil, ErrNotActive
	}
	w, h := r.graph.Format.BaseSize()
	preset := theme.Lookup(r.graph.Theme)

	el := &Element{
		ID:            uuid.NewString(),
		Kind:          domain.KindText,
		X:             float64(w) / 2,
		Y:             float64(h) / 2,
		Origin:        domain.OriginCenter,
		Content:       content,
		FontSize:      style.FontSize,
		Fill:          preset.TextColor,
		FontFamily:    style.FontFamily,
		TextAlign:     style.Align,
		BoundingWidth: style.BoundingWidth,
	}
	if el.FontSize <= 0 {
		el.FontSize = defaultFontSize
	}
	if style.Fill != nil {
		el.Fill = *style.Fill
	}
	if el.FontFamily == "" {
		el.FontFamily = defaultFontFamily
	}
	if el.TextAlign == "" {
		el.TextAlign = domain.AlignCenter
	}
	if el.BoundingWidth <= 0 {
		el.BoundingWidth = 0.8 * float64(w)
	}

	r.graph.Append(el)
	r.selection = []string{el.ID}
	r.redrawLocked()
	ev := r.events
	r.mu.Unlock()

	fireGraphChanged(ev)
	fireSelected(ev, el)
	return el, nil
}

// AddImage decodes the raw bytes asynchronously and, if the graph this call
// was issued against is still active when the decode finishes, appends the
// image centered and scaled to fit within 60% of the shorter canvas
// dimension. done receives the inserted element, an *ImageDecodeError, or
// (nil, nil) when the completion was discarded because the graph went away.
func (r *Renderer) AddImage(ctx context.Context, data []byte, done func(*Element, error)) error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	gen := r.generation
	sink := r.sink
	r.mu.Unlock()

	go func() {
		img, err := r.decoder.Decode(ctx, data)
		if err != nil {
			derr := &ImageDecodeError{Err: err}
			r.log.Warn("image decode failed", slog.Any("err", err))
			sink.Notify(notify.Error, "The image could not be read. Try a different file.")
			if done != nil {
				done(nil, derr)
			}
			return
		}

		r.mu.Lock()
		if r.state != StateActive || r.generation != gen {
			// The graph this decode was issued for is gone; drop the result.
			r.mu.Unlock()
			r.log.Debug("discarding stale image decode")
			if done != nil {
				done(nil, nil)
			}
			return
		}

		w, h := r.graph.Format.BaseSize()
		short := w
		if h < short {
			short = h
		}
		b := img.Bounds()
		long := b.Dx()
		if b.Dy() > long {
			long = b.Dy()
		}
		scale := 1.0
		if long > 0 {
			scale = 0.6 * float64(short) / float64(long)
		}

		el := &Element{
			ID:     uuid.NewString(),
			Kind:   domain.KindImage,
			X:      float64(w) / 2,
			Y:      float64(h) / 2,
			Origin: domain.OriginCenter,
			Bitmap: img,
			Scale:  scale,
		}
		r.graph.Append(el)
		r.selection = []string{el.ID}
		r.redrawLocked()
		ev := r.events
		r.mu.Unlock()

		fireGraphChanged(ev)
		fireSelected(ev, el)
		if done != nil {
			done(el, nil)
		}
	}()
	return nil
}

// UpdateSelected applies a partial update to the primary selected element.
// Fields the selected element's variant lacks are skipped; a selection that
// is empty reports ErrNoSelection and changes nothing.
func (r *Renderer) UpdateSelected(patch TextPatch) error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	el := r.primaryLocked()
	if el == nil {
		r.mu.Unlock()
		return ErrNoSelection
	}
	if el.Kind != domain.KindText {
		r.mu.Unlock()
		return nil
	}

	changed := false
	if patch.Content != nil && *patch.Content != el.Content {
		el.Content = *patch.Content
		changed = true
	}
	if patch.FontSize != nil && *patch.FontSize > 0 && *patch.FontSize != el.FontSize {
		el.FontSize = *patch.FontSize
		changed = true
	}
	if patch.Fill != nil && *patch.Fill != el.Fill {
		el.Fill = *patch.Fill
		changed = true
	}
	if patch.FontFamily != nil && *patch.FontFamily != "" && *patch.FontFamily != el.FontFamily {
		el.FontFamily = *patch.FontFamily
		changed = true
	}
	if patch.Align != nil && *patch.Align != el.TextAlign {
		el.TextAlign = *patch.Align
		changed = true
	}
	if patch.BoundingWidth != nil && *patch.BoundingWidth > 0 && *patch.BoundingWidth != el.BoundingWidth {
		el.BoundingWidth = *patch.BoundingWidth
		changed = true
	}
	if changed {
		r.redrawLocked()
	}
	ev := r.events
	r.mu.Unlock()

	if changed {
		fireGraphChanged(ev)
	}
	return nil
}

// SetSelectedAlignment sets the text alignment of the selected element.
func (r *Renderer) SetSelectedAlignment(a domain.Align) error {
	return r.UpdateSelected(TextPatch{Align: &a})
}

// DeleteSelected removes every selected element from the graph.
func (r *Renderer) DeleteSelected() error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	if len(r.selection) == 0 {
		r.mu.Unlock()
		return ErrNoSelection
	}
	for _, id := range r.selection {
		r.graph.Remove(id)
	}
	r.selection = nil
	r.redrawLocked()
	ev := r.events
	r.mu.Unlock()

	fireGraphChanged(ev)
	fireSelected(ev, nil)
	return nil
}

// Clear resets the live graph to an empty scene over the theme background.
func (r *Renderer) Clear() error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	r.graph.Clear()
	r.selection = nil
	r.redrawLocked()
	ev := r.events
	r.mu.Unlock()

	fireGraphChanged(ev)
	fireSelected(ev, nil)
	return nil
}

// Select makes the element with the given id the sole selection.
func (r *Renderer) Select(id string) error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	el := r.graph.ByID(id)
	if el == nil {
		r.mu.Unlock()
		return fmt.Errorf("element %s not found", id)
	}
	r.selection = []string{id}
	ev := r.events
	r.mu.Unlock()

	fireSelected(ev, el)
	return nil
}

// ExtendSelection adds the element to the selection and makes it primary.
func (r *Renderer) ExtendSelection(id string) error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	el := r.graph.ByID(id)
	if el == nil {
		r.mu.Unlock()
		return fmt.Errorf("element %s not found", id)
	}
	out := r.selection[:0]
	for _, s := range r.selection {
		if s != id {
			out = append(out, s)
		}
	}
	r.selection = append(out, id)
	ev := r.events
	r.mu.Unlock()

	fireSelected(ev, el)
	return nil
}

// SelectAt selects the topmost element containing the point, or clears the
// selection when the point hits only background.
func (r *Renderer) SelectAt(p geom.Pt) (*Element, error) {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return nil, ErrNotActive
	}
	el := r.graph.TopAt(p)
	if el == nil {
		r.selection = nil
	} else {
		r.selection = []string{el.ID}
	}
	ev := r.events
	r.mu.Unlock()

	fireSelected(ev, el)
	return el, nil
}

// Selected returns the primary selected element, or nil.
func (r *Renderer) Selected() *Element {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primaryLocked()
}

// Reorder moves the given elements (or, with no ids, the current selection)
// in the paint order. Moves past either end clamp instead of failing.
func (r *Renderer) Reorder(move Move, ids ...string) error {
	r.mu.Lock()
	if r.state != StateActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	if len(ids) == 0 {
		ids = append(ids, r.selection...)
	}
	if len(ids) == 0 {
		r.mu.Unlock()
		return ErrNoSelection
	}
	changed := r.graph.Reorder(ids, move)
	if changed {
		r.redrawLocked()
	}
	ev := r.events
	r.mu.Unlock()

	if changed {
		fireGraphChanged(ev)
	}
	return nil
}

// Serialize dehydrates the live graph into its persisted form. It is safe to
// call at any point between mutations, which is what the autosave scheduler
// relies on.
func (r *Renderer) Serialize() (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateActive {
		return nil, ErrNotActive
	}
	return r.codec.Encode(r.graph)
}

// Dispose releases renderer-owned resources: the surface binding, the live
// graph and its decoded bitmaps. Pending decode completions for this graph
// are discarded. Dispose is idempotent.
func (r *Renderer) Dispose() {
	r.mu.Lock()
	r.disposeLocked()
	r.mu.Unlock()
}

func (r *Renderer) disposeLocked() {
	if r.state == StateDisposed {
		return
	}
	r.generation++
	if r.surface != nil {
		r.surface.Release()
		r.surface = nil
	}
	r.graph = nil
	r.pageID = ""
	r.selection = nil
	r.state = StateDisposed
}

func (r *Renderer) primaryLocked() *Element {
	if len(r.selection) == 0 || r.graph == nil {
		return nil
	}
	return r.graph.ByID(r.selection[len(r.selection)-1])
}

func (r *Renderer) redrawLocked() {
	if r.surface != nil {
		r.surface.Redraw(r.graph)
	}
}

func fireGraphChanged(ev Events) {
	if ev.GraphChanged != nil {
		ev.GraphChanged()
	}
}

func fireSelected(ev Events, el *Element) {
	if ev.ElementSelected != nil {
		ev.ElementSelected(el)
	}
}

// seededGraph builds the placeholder scene for an uninitialized page: one
// centered prompt wrapped to 80% of the canvas width, colored per the theme.
func seededGraph(format domain.Format, thm domain.Theme) *Graph {
	w, h := format.BaseSize()
	preset := theme.Lookup(thm)
	g := NewGraph(format, thm)
	g.Append(&Element{
		ID:            uuid.NewString(),
		Kind:          domain.KindText,
		X:             float64(w) / 2,
		Y:             float64(h) / 2,
		Origin:        domain.OriginCenter,
		Content:       PlaceholderText,
		FontSize:      defaultFontSize,
		Fill:          preset.TextColor,
		FontFamily:    defaultFontFamily,
		TextAlign:     domain.AlignCenter,
		BoundingWidth: 0.8 * float64(w),
	})
	return g
}

// SeededGraph exposes the placeholder scene for exporters that render pages
// which were never activated.
func SeededGraph(format domain.Format, thm domain.Theme) *Graph {
	return seededGraph(format, thm)
}
