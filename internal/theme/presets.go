/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package theme holds the visual preset table. Each theme maps to exactly one
// preset: a background spec (solid color or linear gradient) and the default
// text color used for placeholder and newly added text. Backgrounds are
// evaluated at rasterization time; the live surface never carries style state
// of its own.
package theme

import (
	"math"
	"sort"

	"postcanvas/internal/domain"
)

// Stop is a color stop of a linear gradient, offset in [0,1].
type Stop struct {
	Offset float64
	Color  domain.Color
}

// Gradient is a linear color transition between two points given in unit
// canvas coordinates (0,0 = top-left, 1,1 = bottom-right). Stops must be in
// ascending offset order; offsets outside the stop range pad with the edge
// colors.
type Gradient struct {
	X0, Y0 float64
	X1, Y1 float64
	Stops  []Stop
}

// Background is either a solid fill or a gradient, never both.
type Background struct {
	Solid    *domain.Color
	Gradient *Gradient
}

// Preset is the full visual definition of a theme.
type Preset struct {
	Name       domain.Theme
	Background Background
	TextColor  domain.Color
}

var (
	white = domain.Color{R: 255, G: 255, B: 255, A: 255}
	ink   = domain.Color{R: 28, G: 28, B: 30, A: 255}
)

var presets = map[domain.Theme]Preset{
	domain.ThemeClassic: {
		Name:       domain.ThemeClassic,
		Background: Background{Solid: &white},
		TextColor:  ink,
	},
	domain.ThemeMidnight: {
		Name: domain.ThemeMidnight,
		Background: Background{Gradient: &Gradient{
			X0: 0, Y0: 0, X1: 0, Y1: 1,
			Stops: []Stop{
				{Offset: 0, Color: domain.Color{R: 23, G: 25, B: 48, A: 255}},
				{Offset: 1, Color: domain.Color{R: 8, G: 8, B: 16, A: 255}},
			},
		}},
		TextColor: white,
	},
	domain.ThemeSunset: {
		Name: domain.ThemeSunset,
		Background: Background{Gradient: &Gradient{
			X0: 0, Y0: 0, X1: 1, Y1: 1,
			Stops: []Stop{
				{Offset: 0, Color: domain.Color{R: 255, G: 94, B: 58, A: 255}},
				{Offset: 0.55, Color: domain.Color{R: 255, G: 45, B: 85, A: 255}},
				{Offset: 1, Color: domain.Color{R: 88, G: 24, B: 108, A: 255}},
			},
		}},
		TextColor: white,
	},
	domain.ThemeOcean: {
		Name: domain.ThemeOcean,
		Background: Background{Gradient: &Gradient{
			X0: 0, Y0: 0, X1: 0, Y1: 1,
			Stops: []Stop{
				{Offset: 0, Color: domain.Color{R: 0, G: 122, B: 255, A: 255}},
				{Offset: 1, Color: domain.Color{R: 10, G: 35, B: 66, A: 255}},
			},
		}},
		TextColor: white,
	},
	domain.ThemeForest: {
		Name: domain.ThemeForest,
		Background: Background{Gradient: &Gradient{
			X0: 0, Y0: 0, X1: 0, Y1: 1,
			Stops: []Stop{
				{Offset: 0, Color: domain.Color{R: 52, G: 120, B: 62, A: 255}},
				{Offset: 1, Color: domain.Color{R: 16, G: 44, B: 24, A: 255}},
			},
		}},
		TextColor: white,
	},
}

// Stops are normalized to ascending offset order once. ColorAt runs per pixel
// and relies on that order instead of sorting on every call.
func init() {
	for _, p := range presets {
		if g := p.Background.Gradient; g != nil {
			sort.Slice(g.Stops, func(i, j int) bool { return g.Stops[i].Offset < g.Stops[j].Offset })
		}
	}
}

// Lookup returns the preset for the theme, falling back to classic for
// unknown names so a document written by a newer version still renders.
func Lookup(t domain.Theme) Preset {
	if p, ok := presets[t]; ok {
		return p
	}
	return presets[domain.ThemeClassic]
}

// Names returns all known theme names in stable order.
func Names() []domain.Theme {
	out := make([]domain.Theme, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ColorAt evaluates the gradient at unit coordinates (u, v) by projecting the
// point onto the gradient line. Offsets are clamped (pad extend).
func (g *Gradient) ColorAt(u, v float64) domain.Color {
	dx := g.X1 - g.X0
	dy := g.Y1 - g.Y0
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 || len(g.Stops) == 0 {
		if len(g.Stops) > 0 {
			return g.Stops[0].Color
		}
		return domain.Color{}
	}
	t := ((u-g.X0)*dx + (v-g.Y0)*dy) / lengthSq
	return colorAtOffset(g.Stops, t)
}

// colorAtOffset expects stops in ascending offset order.
func colorAtOffset(stops []Stop, t float64) domain.Color {
	if t <= stops[0].Offset {
		return stops[0].Color
	}
	last := stops[len(stops)-1]
	if t >= last.Offset {
		return last.Color
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].Offset {
			a, b := stops[i-1], stops[i]
			span := b.Offset - a.Offset
			if span == 0 {
				return b.Color
			}
			return lerpColor(a.Color, b.Color, (t-a.Offset)/span)
		}
	}
	return last.Color
}

func lerpColor(a, b domain.Color, t float64) domain.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return domain.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
