// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// Extra decoders: imaging already covers jpeg, png, gif, bmp and tiff.
	_ "golang.org/x/image/webp"
)

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", path)
	}
	return img, nil
}

// Load decodes the image at path, resizes it to width x height (if they are > 0 and differ from the original
// size) and converts it to the planar float format with the given number of channels.
func Load(path string, width, height, channels int) (*Image, error) {
	img, err := Open(path)
	if err != nil {
		return nil, err
	}
	if width > 0 && height > 0 {
		img = Resize(img, width, height)
	}
	return FromImage(img, channels), nil
}

// Save the image to path; the format is taken from the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save image to %q", path)
	}
	return nil
}
