/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the persisted data model for postcanvas documents.
// Everything here is plain data: the live, mutable scene for the active page
// is owned by internal/scene and only passes through this representation via
// the codec. A document serializes to a self-contained JSON record.

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Format selects the canvas aspect-ratio preset of a page.
type Format string

const (
	FormatPost  Format = "post"  // 1:1, 1080x1080 base
	FormatStory Format = "story" // 9:16, 1080x1920 base
)

// BaseSize returns the base pixel size of the format's canvas. Element
// coordinates are stored relative to this size; exporters scale from it.
func (f Format) BaseSize() (w, h int) {
	if f == FormatStory {
		return 1080, 1920
	}
	return 1080, 1080
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool { return f == FormatPost || f == FormatStory }

// Theme names a visual preset. The preset table (background spec and default
// text color) lives in internal/theme; pages only carry the name.
type Theme string

const (
	ThemeClassic  Theme = "classic"
	ThemeMidnight Theme = "midnight"
	ThemeSunset   Theme = "sunset"
	ThemeOcean    Theme = "ocean"
	ThemeForest   Theme = "forest"
)

// Origin is the anchor point an element's position refers to.
type Origin string

const (
	OriginCenter  Origin = "center"
	OriginTopLeft Origin = "top-left"
)

// Align is the horizontal text alignment of a text element.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ElementKind discriminates the element union.
type ElementKind string

const (
	KindText  ElementKind = "text"
	KindImage ElementKind = "image"
)

// Color is an 8-bit RGBA color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// ElementRecord is the persisted form of a single scene element. It is a
// tagged union: Kind selects which of the optional field groups apply.
// X/Y are page-local coordinates relative to the page format's base size.
type ElementRecord struct {
	ID     string      `json:"id"`
	Kind   ElementKind `json:"kind"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	ZIndex int         `json:"zIndex"`
	Origin Origin      `json:"origin"`

	// Text fields (Kind == text).
	Content       string  `json:"content,omitempty"`
	FontSize      float64 `json:"fontSize,omitempty"`
	Fill          *Color  `json:"fill,omitempty"`
	FontFamily    string  `json:"fontFamily,omitempty"`
	TextAlign     Align   `json:"textAlign,omitempty"`
	BoundingWidth float64 `json:"boundingWidth,omitempty"`

	// Image fields (Kind == image). Bitmap is a base64-encoded PNG so the
	// decoded pixels round-trip losslessly through JSON.
	Bitmap string  `json:"bitmap,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
}

// PageGraph is the inert, serialized scene of a page: an ordered list of
// element records in paint order plus a codec version tag.
type PageGraph struct {
	Version  string          `json:"version"`
	Elements []ElementRecord `json:"elements"`
}

// Page is a single canvas in a document. Graph holds the codec's serialized
// scene and stays opaque at this level: a malformed graph must not prevent
// the rest of the document from loading, so it is carried as raw JSON and
// only interpreted (and validated) by the codec on activation. An empty
// Graph means the page is uninitialized and the scene renderer seeds
// placeholder content.
type Page struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Format  Format          `json:"format"`
	Theme   Theme           `json:"theme"`
	Graph   json.RawMessage `json:"graph,omitempty"`
	Preview []byte          `json:"preview,omitempty"` // cached small PNG for list UIs
}

// Document is an ordered, non-empty collection of pages plus metadata.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Format    Format    `json:"format"` // default for new pages
	Theme     Theme     `json:"theme"`  // default for new pages
	Pages     []Page    `json:"pages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrLastPage is returned when removing the only remaining page of a document.
var ErrLastPage = errors.New("a document must keep at least one page")

// NewDocument creates a document with a single default page.
func NewDocument(name string, format Format, theme Theme) Document {
	if !format.Valid() {
		format = FormatPost
	}
	d := Document{
		ID:     uuid.NewString(),
		Name:   name,
		Format: format,
		Theme:  theme,
		Pages:  []Page{NewPage("Page 1", format, theme)},
	}
	d.Touch()
	return d
}

// NewPage creates an uninitialized page.
func NewPage(name string, format Format, theme Theme) Page {
	return Page{
		ID:     uuid.NewString(),
		Name:   name,
		Format: format,
		Theme:  theme,
	}
}

// AppendPage adds a page at the end using the document defaults and returns it.
func (d *Document) AppendPage() *Page {
	name := fmt.Sprintf("Page %d", len(d.Pages)+1)
	d.Pages = append(d.Pages, NewPage(name, d.Format, d.Theme))
	d.Touch()
	return &d.Pages[len(d.Pages)-1]
}

// RemovePage deletes the page with the given id. Removing the last remaining
// page is rejected with ErrLastPage and leaves the document untouched.
func (d *Document) RemovePage(id string) error {
	if len(d.Pages) <= 1 {
		return ErrLastPage
	}
	for i := range d.Pages {
		if d.Pages[i].ID == id {
			d.Pages = append(d.Pages[:i], d.Pages[i+1:]...)
			d.Touch()
			return nil
		}
	}
	return fmt.Errorf("page %s not found", id)
}

// PageByID returns a pointer into the document's page slice, or nil.
func (d *Document) PageByID(id string) *Page {
	for i := range d.Pages {
		if d.Pages[i].ID == id {
			return &d.Pages[i]
		}
	}
	return nil
}

// PageIndex returns the position of the page with the given id, or -1.
func (d *Document) PageIndex(id string) int {
	for i := range d.Pages {
		if d.Pages[i].ID == id {
			return i
		}
	}
	return -1
}

// Touch advances UpdatedAt. The timestamp is strictly monotonic even when the
// wall clock does not advance between mutations.
func (d *Document) Touch() {
	now := time.Now().UTC()
	if !now.After(d.UpdatedAt) {
		now = d.UpdatedAt.Add(time.Nanosecond)
	}
	d.UpdatedAt = now
}

// Clone returns a deep copy of the document. Save paths operate on copies so
// the persisted value is replaced wholesale, never mutated in place.
func (d Document) Clone() Document {
	out := d
	out.Pages = make([]Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of the page including its persisted graph.
func (p Page) Clone() Page {
	out := p
	if p.Graph != nil {
		out.Graph = append(json.RawMessage(nil), p.Graph...)
	}
	if p.Preview != nil {
		out.Preview = append([]byte(nil), p.Preview...)
	}
	return out
}
