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
	"testing"
)

func testLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := NewLibrary()
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	return lib
}

func TestResolveBuiltinsAndFallback(t *testing.T) {
	lib := testLibrary(t)

	for _, fam := range []string{"sans", "sans-bold"} {
		face, met, err := lib.Resolve(fam, 24)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", fam, err)
		}
		if face == nil || met.Ascent <= 0 {
			t.Fatalf("Resolve(%q) returned empty face/metrics", fam)
		}
	}

	// Unknown family falls back to sans with identical metrics.
	_, wantMet, err := lib.Resolve("sans", 24)
	if err != nil {
		t.Fatalf("Resolve(sans): %v", err)
	}
	_, gotMet, err := lib.Resolve("headline-serif", 24)
	if err != nil {
		t.Fatalf("Resolve(unknown): %v", err)
	}
	if gotMet != wantMet {
		t.Fatalf("unknown family metrics %+v, want sans metrics %+v", gotMet, wantMet)
	}
}

func TestResolveCachesFaces(t *testing.T) {
	lib := testLibrary(t)
	a, _, err := lib.Resolve("sans", 32)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, _, err := lib.Resolve("sans", 32)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a != b {
		t.Fatalf("same family/size resolved to distinct faces")
	}
}

func TestLayoutWrapsOnSpaces(t *testing.T) {
	lib := testLibrary(t)
	l := NewLayouter(lib)

	box, _, err := l.Layout("one two three four five six", "sans", 24, 160)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(box.Lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(box.Lines))
	}
	for _, ln := range box.Lines {
		if ln.Width > 160 {
			t.Fatalf("line %q width %v exceeds bounding width", ln.Text, ln.Width)
		}
	}
	var joined []string
	for _, ln := range box.Lines {
		joined = append(joined, ln.Text)
	}
	if strings.Join(joined, " ") != "one two three four five six" {
		t.Fatalf("wrapping lost words: %q", joined)
	}
	if want := float64(len(box.Lines)) * box.Metrics.LineHeight(); box.Height != want {
		t.Fatalf("height %v, want %v", box.Height, want)
	}
}

func TestLayoutHonorsExplicitNewlines(t *testing.T) {
	lib := testLibrary(t)
	l := NewLayouter(lib)

	box, _, err := l.Layout("alpha\nbeta\n\ngamma", "sans", 24, 0)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	want := []string{"alpha", "beta", "", "gamma"}
	if len(box.Lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(box.Lines), len(want))
	}
	for i, w := range want {
		if box.Lines[i].Text != w {
			t.Fatalf("line %d = %q, want %q", i, box.Lines[i].Text, w)
		}
	}
}

func TestLayoutOverlongWordGetsOwnLine(t *testing.T) {
	lib := testLibrary(t)
	l := NewLayouter(lib)

	box, _, err := l.Layout("hi incomprehensibilities yo", "sans", 24, 60)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	found := false
	for _, ln := range box.Lines {
		if ln.Text == "incomprehensibilities" {
			found = true
		}
	}
	if !found {
		t.Fatalf("overlong word was broken mid-word: %+v", box.Lines)
	}
}

func TestLayoutEmptyContent(t *testing.T) {
	lib := testLibrary(t)
	l := NewLayouter(lib)
	box, _, err := l.Layout("", "sans", 24, 100)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(box.Lines) != 1 || box.Lines[0].Text != "" {
		t.Fatalf("empty content should produce one empty line, got %+v", box.Lines)
	}
}
