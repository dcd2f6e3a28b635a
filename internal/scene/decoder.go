/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package scene

import (
	"bytes"
	"context"
	"image"

	// Register the formats the editor accepts for image elements.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Decoder is the bitmap decode service. Decode is called off the mutation
// path; implementations must be safe for concurrent use.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (image.Image, error)
}

// StdDecoder decodes with the standard image registry (PNG, JPEG, GIF).
type StdDecoder struct{}

func (StdDecoder) Decode(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}
