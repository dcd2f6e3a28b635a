/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package text

import (
	"strings"

	"golang.org/x/image/font"
)

// Line is one wrapped line with its measured width in pixels.
type Line struct {
	Text  string
	Width float64
}

// Box is the result of wrapping a text run into a bounding width.
type Box struct {
	Lines   []Line
	Width   float64 // widest line
	Height  float64
	Metrics Metrics
}

// Layouter breaks element text into lines. It wraps on spaces and honors
// explicit newlines; a single word wider than the bounding width gets its own
// line rather than being broken mid-word.
type Layouter struct {
	Provider Provider
}

func NewLayouter(p Provider) *Layouter { return &Layouter{Provider: p} }

// Layout wraps content into maxWidth using the given family and pixel size.
// It also returns the resolved face so callers can draw the lines without a
// second resolve.
func (l *Layouter) Layout(content, family string, sizePx, maxWidth float64) (Box, font.Face, error) {
	face, met, err := l.Provider.Resolve(family, sizePx)
	if err != nil {
		return Box{}, nil, err
	}
	drawer := &font.Drawer{Face: face}
	box := Box{Metrics: met}

	var cur strings.Builder
	var curWidth float64
	flush := func() {
		box.Lines = append(box.Lines, Line{Text: cur.String(), Width: curWidth})
		if curWidth > box.Width {
			box.Width = curWidth
		}
		cur.Reset()
		curWidth = 0
	}

	for i, para := range strings.Split(content, "\n") {
		if i > 0 {
			flush()
		}
		for _, word := range strings.Fields(para) {
			w := advance(drawer, word)
			sep := 0.0
			if cur.Len() > 0 {
				sep = advance(drawer, " ")
			}
			if maxWidth > 0 && cur.Len() > 0 && curWidth+sep+w > maxWidth {
				flush()
				sep = 0
			}
			if sep > 0 {
				cur.WriteByte(' ')
				curWidth += sep
			}
			cur.WriteString(word)
			curWidth += w
		}
	}
	flush()

	box.Height = float64(len(box.Lines)) * met.LineHeight()
	return box, face, nil
}

func advance(d *font.Drawer, s string) float64 {
	return float64(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
}
