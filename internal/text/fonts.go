/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package text measures and wraps element text. All measurement sits behind
// the Provider interface so the raster path and tests resolve faces the same
// deterministic way.
package text

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Metrics provides face metrics in pixels.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// LineHeight is the vertical advance between baselines.
func (m Metrics) LineHeight() float64 { return m.Ascent + m.Descent + m.LineGap }

// Provider resolves a logical family name at a pixel size to a concrete face.
type Provider interface {
	Resolve(family string, sizePx float64) (font.Face, Metrics, error)
}

// Library holds parsed OpenType fonts by family name and caches the faces it
// hands out. The builtin families "sans" and "sans-bold" are always present;
// unknown families fall back to "sans" so a document referencing a font this
// machine lacks still renders.
type Library struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[faceKey]cachedFace
}

type faceKey struct {
	family string
	size   float64
}

type cachedFace struct {
	face font.Face
	met  Metrics
}

// NewLibrary returns a library seeded with the builtin Go fonts.
func NewLibrary() (*Library, error) {
	l := &Library{
		fonts: make(map[string]*opentype.Font),
		faces: make(map[faceKey]cachedFace),
	}
	if err := l.Register("sans", goregular.TTF); err != nil {
		return nil, err
	}
	if err := l.Register("sans-bold", gobold.TTF); err != nil {
		return nil, err
	}
	return l, nil
}

// Register parses raw TTF/OTF data and stores it under the family name,
// replacing any previous font of that family.
func (l *Library) Register(family string, ttf []byte) error {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", family, err)
	}
	l.mu.Lock()
	l.fonts[family] = f
	for k := range l.faces {
		if k.family == family {
			delete(l.faces, k)
		}
	}
	l.mu.Unlock()
	return nil
}

// LoadTTF loads a font file from disk under the given family name.
func (l *Library) LoadTTF(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return l.Register(family, data)
}

// Families returns the registered family names.
func (l *Library) Families() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.fonts))
	for name := range l.fonts {
		out = append(out, name)
	}
	return out
}

// Resolve returns a face for the family at the given pixel size. Faces are
// cached per family/size; a 72 DPI mapping makes points and pixels coincide.
func (l *Library) Resolve(family string, sizePx float64) (font.Face, Metrics, error) {
	if sizePx <= 0 {
		sizePx = 12
	}
	key := faceKey{family: family, size: sizePx}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.faces[key]; ok {
		return c.face, c.met, nil
	}

	f, ok := l.fonts[family]
	if !ok {
		f, ok = l.fonts["sans"]
		if !ok {
			return nil, Metrics{}, fmt.Errorf("no font for family %q and no sans fallback", family)
		}
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("build face %q @%g: %w", family, sizePx, err)
	}
	m := face.Metrics()
	met := Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
	l.faces[key] = cachedFace{face: face, met: met}
	return face, met, nil
}
