/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package codec maps the live scene graph to and from its persisted JSON
// form. The mapping is bijective for every graph the scene renderer can
// produce: ids, field values and paint order survive a round trip, and image
// pixels are carried as base64 PNG so they rehydrate losslessly.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"

	"postcanvas/internal/domain"
	"postcanvas/internal/scene"
)

// Version tags every serialized graph. Decode rejects tags it does not know
// so a future format bump degrades to placeholder content instead of
// misreading data.
const Version = "postcanvas.graph/1"

// CorruptDocumentError reports a persisted graph that cannot be hydrated.
// It is recoverable at page granularity: the caller falls back to
// placeholder content instead of failing the document load.
type CorruptDocumentError struct {
	Reason string
	Err    error
}

func (e *CorruptDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt page graph: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt page graph: %s", e.Reason)
}

func (e *CorruptDocumentError) Unwrap() error { return e.Err }

func corrupt(reason string, err error) error {
	return &CorruptDocumentError{Reason: reason, Err: err}
}

// Codec is stateless; the zero value is ready to use.
type Codec struct{}

var _ scene.Codec = Codec{}

// Encode serializes the graph in paint order. It is pure: the graph is not
// touched and equal graphs produce equal output.
func (Codec) Encode(g *scene.Graph) (json.RawMessage, error) {
	pg := domain.PageGraph{Version: Version, Elements: []domain.ElementRecord{}}
	for _, el := range g.Elements() {
		rec := domain.ElementRecord{
			ID:     el.ID,
			Kind:   el.Kind,
			X:      el.X,
			Y:      el.Y,
			ZIndex: el.ZIndex,
			Origin: el.Origin,
		}
		switch el.Kind {
		case domain.KindText:
			fill := el.Fill
			rec.Content = el.Content
			rec.FontSize = el.FontSize
			rec.Fill = &fill
			rec.FontFamily = el.FontFamily
			rec.TextAlign = el.TextAlign
			rec.BoundingWidth = el.BoundingWidth
		case domain.KindImage:
			if el.Bitmap != nil {
				var buf bytes.Buffer
				if err := png.Encode(&buf, el.Bitmap); err != nil {
					return nil, fmt.Errorf("encode element %s bitmap: %w", el.ID, err)
				}
				rec.Bitmap = base64.StdEncoding.EncodeToString(buf.Bytes())
			}
			rec.Scale = el.Scale
		}
		pg.Elements = append(pg.Elements, rec)
	}
	raw, err := json.Marshal(pg)
	if err != nil {
		return nil, fmt.Errorf("marshal page graph: %w", err)
	}
	return raw, nil
}

// Decode reconstructs a live graph from its persisted form, preserving ids,
// z indices and paint order. Missing optional fields take their defaults;
// structurally invalid input, an unknown version tag or an undecodable
// bitmap yield a *CorruptDocumentError.
func (Codec) Decode(raw json.RawMessage, format domain.Format, thm domain.Theme) (*scene.Graph, error) {
	if err := validateGraphJSON(raw); err != nil {
		return nil, err
	}

	var pg domain.PageGraph
	if err := json.Unmarshal(raw, &pg); err != nil {
		return nil, corrupt("invalid JSON", err)
	}
	if pg.Version != Version {
		return nil, corrupt(fmt.Sprintf("unknown version tag %q", pg.Version), nil)
	}

	w, _ := format.BaseSize()
	els := make([]*scene.Element, 0, len(pg.Elements))
	for i, rec := range pg.Elements {
		if rec.ID == "" {
			return nil, corrupt(fmt.Sprintf("element %d has no id", i), nil)
		}
		el := &scene.Element{
			ID:     rec.ID,
			Kind:   rec.Kind,
			X:      rec.X,
			Y:      rec.Y,
			ZIndex: rec.ZIndex,
			Origin: rec.Origin,
		}
		if el.Origin == "" {
			el.Origin = domain.OriginCenter
		}
		switch rec.Kind {
		case domain.KindText:
			el.Content = rec.Content
			el.FontSize = rec.FontSize
			if el.FontSize <= 0 {
				el.FontSize = 64
			}
			if rec.Fill != nil {
				el.Fill = *rec.Fill
			} else {
				el.Fill = defaultTextColor(thm)
			}
			el.FontFamily = rec.FontFamily
			if el.FontFamily == "" {
				el.FontFamily = "sans"
			}
			el.TextAlign = rec.TextAlign
			if el.TextAlign == "" {
				el.TextAlign = domain.AlignLeft
			}
			el.BoundingWidth = rec.BoundingWidth
			if el.BoundingWidth <= 0 {
				el.BoundingWidth = 0.8 * float64(w)
			}
		case domain.KindImage:
			if rec.Bitmap == "" {
				return nil, corrupt(fmt.Sprintf("image element %s has no bitmap", rec.ID), nil)
			}
			data, err := base64.StdEncoding.DecodeString(rec.Bitmap)
			if err != nil {
				return nil, corrupt(fmt.Sprintf("image element %s bitmap is not base64", rec.ID), err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, corrupt(fmt.Sprintf("image element %s bitmap is not a PNG", rec.ID), err)
			}
			el.Bitmap = img
			el.Scale = rec.Scale
			if el.Scale <= 0 {
				el.Scale = 1
			}
		default:
			return nil, corrupt(fmt.Sprintf("element %s has unknown kind %q", rec.ID, rec.Kind), nil)
		}
		els = append(els, el)
	}

	g := scene.NewGraph(format, thm)
	g.Restore(els)
	return g, nil
}
