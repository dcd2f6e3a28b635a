/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"postcanvas/internal/domain"
)

type fakeSurface struct {
	w, h     int
	redraws  int32
	released int32
}

func (s *fakeSurface) Size() (int, int) { return s.w, s.h }
func (s *fakeSurface) Redraw(*Graph)    { atomic.AddInt32(&s.redraws, 1) }
func (s *fakeSurface) Release()         { atomic.AddInt32(&s.released, 1) }

type fakeProvider struct {
	last *fakeSurface
	err  error
}

func (p *fakeProvider) Acquire(format domain.Format) (Surface, error) {
	if p.err != nil {
		return nil, p.err
	}
	w, h := format.BaseSize()
	p.last = &fakeSurface{w: w, h: h}
	return p.last, nil
}

// gateDecoder blocks each Decode until the gate channel is signalled.
type gateDecoder struct {
	gate chan struct{}
	err  error
}

func (d *gateDecoder) Decode(ctx context.Context, data []byte) (image.Image, error) {
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return image.NewNRGBA(image.Rect(0, 0, 4, 2)), nil
}

// echoCodec round-trips graphs through an in-memory table keyed by a token,
// standing in for the real codec.
type echoCodec struct {
	graphs  map[string]*Graph
	next    int
	decErr  error
	decoded int
}

func newEchoCodec() *echoCodec { return &echoCodec{graphs: map[string]*Graph{}} }

func (c *echoCodec) Encode(g *Graph) (json.RawMessage, error) {
	c.next++
	key := string(rune('a' + c.next))
	c.graphs[key] = g
	return json.RawMessage(`"` + key + `"`), nil
}

func (c *echoCodec) Decode(raw json.RawMessage, format domain.Format, thm domain.Theme) (*Graph, error) {
	c.decoded++
	if c.decErr != nil {
		return nil, c.decErr
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, err
	}
	g, ok := c.graphs[key]
	if !ok {
		return nil, errors.New("unknown graph token")
	}
	return g, nil
}

func newTestRenderer() (*Renderer, *fakeProvider, *echoCodec) {
	p := &fakeProvider{}
	c := newEchoCodec()
	return New(p, &gateDecoder{}, c), p, c
}

func activePage() *domain.Page {
	return &domain.Page{ID: "p1", Name: "Page 1", Format: domain.FormatPost, Theme: domain.ThemeMidnight}
}

func TestActivateSeedsPlaceholderOnBlankPage(t *testing.T) {
	r, _, _ := newTestRenderer()
	if r.State() != StateUninitialized {
		t.Fatalf("fresh renderer state = %v, want uninitialized", r.State())
	}
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if r.State() != StateActive {
		t.Fatalf("state = %v, want active", r.State())
	}

	g := r.Graph()
	if g.Len() != 1 {
		t.Fatalf("seeded graph has %d elements, want 1", g.Len())
	}
	el := g.Elements()[0]
	if el.Content != PlaceholderText {
		t.Fatalf("seeded content %q, want %q", el.Content, PlaceholderText)
	}
	if el.X != 540 || el.Y != 540 {
		t.Fatalf("seeded position (%v,%v), want canvas center (540,540)", el.X, el.Y)
	}
	if el.BoundingWidth != 0.8*1080 {
		t.Fatalf("seeded bounding width %v, want %v", el.BoundingWidth, 0.8*1080)
	}
}

func TestActivateHydratesPersistedGraph(t *testing.T) {
	r, _, c := newTestRenderer()
	want := graphOf("x", "y")
	raw, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	page := activePage()
	page.Graph = raw

	if err := r.Activate(page); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if r.Graph() != want {
		t.Fatalf("active graph is not the hydrated one")
	}
	if r.PageID() != "p1" {
		t.Fatalf("PageID = %q, want p1", r.PageID())
	}
}

func TestActivateFallsBackOnCorruptGraph(t *testing.T) {
	r, _, c := newTestRenderer()
	c.decErr = errors.New("boom")
	page := activePage()
	page.Graph = json.RawMessage(`"whatever"`)

	if err := r.Activate(page); err != nil {
		t.Fatalf("Activate should recover from a corrupt graph, got %v", err)
	}
	g := r.Graph()
	if g.Len() != 1 || g.Elements()[0].Content != PlaceholderText {
		t.Fatalf("corrupt page did not fall back to placeholder content")
	}
}

func TestActivateWithoutSurface(t *testing.T) {
	p := &fakeProvider{err: errors.New("no display")}
	r := New(p, &gateDecoder{}, newEchoCodec())
	err := r.Activate(activePage())
	if !errors.Is(err, ErrRenderSurfaceUnavailable) {
		t.Fatalf("err = %v, want ErrRenderSurfaceUnavailable", err)
	}
	if r.State() == StateActive {
		t.Fatalf("renderer must not become active without a surface")
	}
}

func TestOperationsRequireActiveState(t *testing.T) {
	r, _, _ := newTestRenderer()
	if _, err := r.AddText("hi", TextStyle{}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("AddText on uninitialized renderer: %v", err)
	}
	if err := r.DeleteSelected(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("DeleteSelected on uninitialized renderer: %v", err)
	}
	if _, err := r.Serialize(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Serialize on uninitialized renderer: %v", err)
	}
}

func TestAddTextDefaultsAndSelection(t *testing.T) {
	r, p, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	before := atomic.LoadInt32(&p.last.redraws)

	el, err := r.AddText("caption", TextStyle{})
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if el.FontSize != defaultFontSize || el.FontFamily != defaultFontFamily {
		t.Fatalf("defaults not applied: size=%v family=%q", el.FontSize, el.FontFamily)
	}
	if el.X != 540 || el.Y != 540 {
		t.Fatalf("new text at (%v,%v), want canvas center", el.X, el.Y)
	}
	if sel := r.Selected(); sel != el {
		t.Fatalf("new element is not selected")
	}
	if atomic.LoadInt32(&p.last.redraws) <= before {
		t.Fatalf("AddText did not trigger a redraw")
	}
}

func TestUpdateSelected(t *testing.T) {
	r, _, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	el, _ := r.AddText("before", TextStyle{})

	content := "after"
	size := 90.0
	if err := r.UpdateSelected(TextPatch{Content: &content, FontSize: &size}); err != nil {
		t.Fatalf("UpdateSelected: %v", err)
	}
	if el.Content != "after" || el.FontSize != 90 {
		t.Fatalf("patch not applied: %q %v", el.Content, el.FontSize)
	}

	// Untouched fields stay.
	if el.TextAlign != domain.AlignCenter {
		t.Fatalf("alignment changed unexpectedly to %q", el.TextAlign)
	}

	r.Dispose()
	if err := r.UpdateSelected(TextPatch{Content: &content}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("UpdateSelected after dispose: %v", err)
	}
}

func TestUpdateSelectedWithoutSelection(t *testing.T) {
	r, _, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	content := "x"
	if err := r.UpdateSelected(TextPatch{Content: &content}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
}

func TestAddImageCompletesOnActiveGraph(t *testing.T) {
	r, _, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	doneCh := make(chan *Element, 1)
	err := r.AddImage(context.Background(), []byte("png-bytes"), func(el *Element, err error) {
		if err != nil {
			t.Errorf("done err: %v", err)
		}
		doneCh <- el
	})
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}

	select {
	case el := <-doneCh:
		if el == nil {
			t.Fatalf("completion discarded on a live graph")
		}
		if el.Kind != domain.KindImage || el.Bitmap == nil {
			t.Fatalf("inserted element is not a decoded image")
		}
		// 4x2 source on a 1080 canvas: scale fits the long edge into 60%.
		if want := 0.6 * 1080 / 4; el.Scale != want {
			t.Fatalf("scale = %v, want %v", el.Scale, want)
		}
		if sel := r.Selected(); sel != el {
			t.Fatalf("decoded image is not selected")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("decode completion never arrived")
	}
}

func TestAddImageDiscardsStaleCompletion(t *testing.T) {
	gate := make(chan struct{})
	p := &fakeProvider{}
	r := New(p, &gateDecoder{gate: gate}, newEchoCodec())
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	type result struct {
		el  *Element
		err error
	}
	doneCh := make(chan result, 1)
	if err := r.AddImage(context.Background(), []byte("slow"), func(el *Element, err error) {
		doneCh <- result{el, err}
	}); err != nil {
		t.Fatalf("AddImage: %v", err)
	}

	// The graph the decode was issued for goes away before the decode lands.
	r.Dispose()
	close(gate)

	select {
	case res := <-doneCh:
		if res.el != nil || res.err != nil {
			t.Fatalf("stale completion not discarded: el=%v err=%v", res.el, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("decode completion never arrived")
	}
	if r.State() != StateDisposed {
		t.Fatalf("state = %v, want disposed", r.State())
	}
}

func TestAddImageDecodeFailureLeavesGraphIntact(t *testing.T) {
	p := &fakeProvider{}
	r := New(p, &gateDecoder{err: errors.New("not an image")}, newEchoCodec())
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	before := r.Graph().Len()

	doneCh := make(chan error, 1)
	if err := r.AddImage(context.Background(), []byte("junk"), func(el *Element, err error) {
		doneCh <- err
	}); err != nil {
		t.Fatalf("AddImage: %v", err)
	}

	select {
	case err := <-doneCh:
		var derr *ImageDecodeError
		if !errors.As(err, &derr) {
			t.Fatalf("err %T, want *ImageDecodeError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("decode completion never arrived")
	}
	if r.Graph().Len() != before {
		t.Fatalf("failed decode mutated the graph")
	}
}

func TestDeleteSelectedRemovesAll(t *testing.T) {
	r, _, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	a, _ := r.AddText("a", TextStyle{})
	b, _ := r.AddText("b", TextStyle{})
	if err := r.Select(a.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := r.ExtendSelection(b.ID); err != nil {
		t.Fatalf("ExtendSelection: %v", err)
	}

	if err := r.DeleteSelected(); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	g := r.Graph()
	if g.ByID(a.ID) != nil || g.ByID(b.ID) != nil {
		t.Fatalf("selected elements survived deletion")
	}
	if err := r.DeleteSelected(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("second delete: %v, want ErrNoSelection", err)
	}
}

func TestReorderDefaultsToSelection(t *testing.T) {
	r, _, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := r.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	a, _ := r.AddText("a", TextStyle{})
	b, _ := r.AddText("b", TextStyle{})
	_ = b
	if err := r.Select(a.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := r.Reorder(MoveToFront); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	top := r.Graph().Elements()[r.Graph().Len()-1]
	if top.ID != a.ID {
		t.Fatalf("top element %s, want %s", top.ID, a.ID)
	}
}

func TestEventsFireAfterMutations(t *testing.T) {
	r, _, _ := newTestRenderer()
	var graphChanges, selections int32
	r.SetEvents(Events{
		GraphChanged:    func() { atomic.AddInt32(&graphChanges, 1) },
		ElementSelected: func(*Element) { atomic.AddInt32(&selections, 1) },
	})
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if _, err := r.AddText("hi", TextStyle{}); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if atomic.LoadInt32(&graphChanges) < 2 {
		t.Fatalf("GraphChanged fired %d times, want activation + mutation", graphChanges)
	}
	if atomic.LoadInt32(&selections) < 2 {
		t.Fatalf("ElementSelected fired %d times, want activation + insert", selections)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	r, _, c := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	live := r.Graph()
	raw, err := r.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := c.Decode(raw, domain.FormatPost, domain.ThemeMidnight)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back != live {
		t.Fatalf("serialized graph does not round-trip")
	}
}

func TestDisposeIsIdempotentAndReleasesSurface(t *testing.T) {
	r, p, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	s := p.last

	r.Dispose()
	r.Dispose()
	r.Dispose()

	if got := atomic.LoadInt32(&s.released); got != 1 {
		t.Fatalf("surface released %d times, want exactly 1", got)
	}
	if r.State() != StateDisposed {
		t.Fatalf("state = %v, want disposed", r.State())
	}
	if r.Graph() != nil {
		t.Fatalf("graph still referenced after dispose")
	}
}

func TestActivateAfterDisposeYieldsFreshScene(t *testing.T) {
	r, p, _ := newTestRenderer()
	if err := r.Activate(activePage()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	first := p.last
	r.Dispose()

	page2 := &domain.Page{ID: "p2", Name: "Page 2", Format: domain.FormatStory, Theme: domain.ThemeOcean}
	if err := r.Activate(page2); err != nil {
		t.Fatalf("re-Activate: %v", err)
	}
	if r.State() != StateActive || r.PageID() != "p2" {
		t.Fatalf("renderer not fresh after re-activation")
	}
	if p.last == first {
		t.Fatalf("second activation reused the released surface")
	}
	if w, h := p.last.Size(); w != 1080 || h != 1920 {
		t.Fatalf("story surface %dx%d, want 1080x1920", w, h)
	}
}
