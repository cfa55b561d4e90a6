// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"

	"github.com/gomlx/imgpipe/pkg/core/images"
	"github.com/gomlx/imgpipe/pkg/ml/data/augment"
	"github.com/gomlx/imgpipe/pkg/support/xsync"
)

// ImageHandle to an image being loaded in the background.
type ImageHandle struct {
	future *xsync.Future[[2]*images.Image]
}

// Image starts loading the image at path in the background, and returns immediately a handle to wait for
// it. The image is returned at its original size and resized (or letterboxed) to width x height.
func Image(ctx context.Context, path string, width, height, channels int, letterbox bool) *ImageHandle {
	return &ImageHandle{future: xsync.Go(func() ([2]*images.Image, error) {
		if err := ctx.Err(); err != nil {
			return [2]*images.Image{}, err
		}
		orig, resized, err := augment.Raw(path, width, height, channels, letterbox)
		return [2]*images.Image{orig, resized}, err
	})}
}

// Wait blocks until the image is loaded.
func (h *ImageHandle) Wait() (orig, resized *images.Image, err error) {
	pair, err := h.future.Wait()
	if err != nil {
		return nil, nil, err
	}
	return pair[0], pair[1], nil
}

// Done returns a channel closed when the image is loaded.
func (h *ImageHandle) Done() <-chan struct{} {
	return h.future.Done()
}
