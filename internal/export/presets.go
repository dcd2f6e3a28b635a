/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"fmt"

	"postcanvas/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetShare is the full-resolution output for publishing.
	PresetShare PresetName = "share"
	// PresetThumbnail is the small preview used in galleries and pickers.
	PresetThumbnail PresetName = "thumbnail"
)

// Multiplier returns the raster scale for a preset and page format. Share
// output upscales posts to 2160x2160 and stories to 1620x2880; thumbnails
// are a fifth of the base size regardless of format.
func Multiplier(p PresetName, f domain.Format) (float64, error) {
	switch p {
	case PresetShare:
		if f == domain.FormatStory {
			return 1.5, nil
		}
		return 2.0, nil
	case PresetThumbnail:
		return 0.2, nil
	}
	return 0, fmt.Errorf("unknown export preset %q", p)
}

// OutputSize returns the pixel dimensions a preset produces for a format.
func OutputSize(p PresetName, f domain.Format) (w, h int, err error) {
	m, err := Multiplier(p, f)
	if err != nil {
		return 0, 0, err
	}
	bw, bh := f.BaseSize()
	return int(float64(bw) * m), int(float64(bh) * m), nil
}
