// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Crop returns the rectangle rect of src. Pixels of rect that fall outside of src replicate the nearest border
// pixel, so crop windows with negative margins (zoom out) are valid.
func Crop(src image.Image, rect image.Rectangle) *image.NRGBA {
	in := toNRGBA(src)
	w, h := in.Rect.Dx(), in.Rect.Dy()
	if rect.In(in.Rect) {
		return imaging.Crop(in, rect)
	}
	out := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := range rect.Dy() {
		srcY := Clamp(rect.Min.Y+y, 0, h-1)
		for x := range rect.Dx() {
			srcX := Clamp(rect.Min.X+x, 0, w-1)
			copy(out.Pix[y*out.Stride+4*x:y*out.Stride+4*x+4], in.Pix[srcY*in.Stride+4*srcX:srcY*in.Stride+4*srcX+4])
		}
	}
	return out
}

// Resize src to exactly width x height using bilinear interpolation. It returns src itself (as NRGBA) if it
// already has the requested size.
func Resize(src image.Image, width, height int) *image.NRGBA {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return toNRGBA(src)
	}
	return imaging.Resize(src, width, height, imaging.Linear)
}

// FlipH mirrors the image horizontally.
func FlipH(src image.Image) *image.NRGBA {
	return imaging.FlipH(src)
}

// Blur applies a gaussian blur with the given sigma.
func Blur(src image.Image, sigma float64) *image.NRGBA {
	return imaging.Blur(src, sigma)
}

// Rotate src by the given angle in degrees (counter-clockwise), growing the canvas as needed. Uncovered
// areas are filled with the Gray background.
func Rotate(src image.Image, degrees float64) *image.NRGBA {
	if degrees == 0 {
		return toNRGBA(src)
	}
	return imaging.Rotate(src, degrees, Gray)
}

// Letterbox resizes src to fit width x height keeping its aspect ratio, and pads the rest with the Gray
// background, keeping the image centered.
func Letterbox(src image.Image, width, height int) *image.NRGBA {
	size := src.Bounds().Size()
	wRatio := float64(width) / float64(size.X)
	hRatio := float64(height) / float64(size.Y)
	adjustedWidth, adjustedHeight := width, height
	if wRatio < hRatio {
		adjustedHeight = max(1, int(math.Round(wRatio*float64(size.Y))))
	} else if hRatio < wRatio {
		adjustedWidth = max(1, int(math.Round(hRatio*float64(size.X))))
	}
	resized := Resize(src, adjustedWidth, adjustedHeight)
	if adjustedWidth == width && adjustedHeight == height {
		return resized
	}
	return imaging.PasteCenter(imaging.New(width, height, Gray), resized)
}

// DrawBox draws the outline of rect on dst with the given color and line thickness.
// Parts of the rectangle outside dst are ignored.
func DrawBox(dst *image.NRGBA, rect image.Rectangle, c color.NRGBA, thickness int) {
	bounds := dst.Bounds()
	fill := func(r image.Rectangle) {
		r = r.Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				dst.SetNRGBA(x, y, c)
			}
		}
	}
	t := max(thickness, 1)
	fill(image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+t))
	fill(image.Rect(rect.Min.X, rect.Max.Y-t, rect.Max.X, rect.Max.Y))
	fill(image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+t, rect.Max.Y))
	fill(image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Max.Y))
}
