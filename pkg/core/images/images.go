// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package images holds the image primitives used by the data pipeline: decoding, cropping with border
// replication, resizing, flipping, color distortion, letterboxing and conversion to the planar float layout
// used for dataset rows.
//
// Geometric operations work on Go's image.Image (mostly *image.NRGBA, as returned by the imaging package),
// and the final sample is converted to an Image, a planar float32 buffer with values in [0, 1].
package images

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// Image is a planar (channels-first) float32 image with values in [0, 1].
//
// The value of channel c at (x, y) is Data[c*Width*Height + y*Width + x], which is also the layout of a
// dataset row.
type Image struct {
	Width, Height, Channels int
	Data                    []float32
}

// New returns a zero-filled Image.
func New(width, height, channels int) *Image {
	if width <= 0 || height <= 0 || channels <= 0 {
		exceptions.Panicf("images.New(%d, %d, %d): invalid dimensions", width, height, channels)
	}
	return &Image{Width: width, Height: height, Channels: channels, Data: make([]float32, width*height*channels)}
}

// Size returns the number of float32 values in the image.
func (img *Image) Size() int { return img.Width * img.Height * img.Channels }

// At returns the value of channel c at (x, y).
func (img *Image) At(x, y, c int) float32 {
	return img.Data[c*img.Width*img.Height+y*img.Width+x]
}

// Set the value of channel c at (x, y).
func (img *Image) Set(x, y, c int, v float32) {
	img.Data[c*img.Width*img.Height+y*img.Width+x] = v
}

// Clamp value to the range [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FromImage converts a Go image to the planar float format.
//
// channels can be 1 (luminance), 3 (RGB) or 4 (RGBA). Transparency is not blended: RGB values are taken
// as is (non-premultiplied).
func FromImage(src image.Image, channels int) *Image {
	if channels != 1 && channels != 3 && channels != 4 {
		exceptions.Panicf("images.FromImage(): channels must be 1, 3 or 4, got %d", channels)
	}
	nrgba := toNRGBA(src)
	width, height := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	img := New(width, height, channels)
	plane := width * height
	const scale = 1.0 / 255.0
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*width]
		for x := range width {
			pix := row[4*x : 4*x+4]
			idx := y*width + x
			if channels == 1 {
				lum := 0.299*float32(pix[0]) + 0.587*float32(pix[1]) + 0.114*float32(pix[2])
				img.Data[idx] = lum * scale
				continue
			}
			for c := range channels {
				img.Data[c*plane+idx] = float32(pix[c]) * scale
			}
		}
	}
	return img
}

// ToNRGBA converts the image back to a Go image, for saving or drawing. Values are clamped to [0, 1].
// Images with 1 channel become gray, images with 3 channels are opaque.
func (img *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	plane := img.Width * img.Height
	toByte := func(v float32) uint8 { return uint8(Clamp(v, 0, 1)*255 + 0.5) }
	for y := range img.Height {
		for x := range img.Width {
			idx := y*img.Width + x
			pix := out.Pix[y*out.Stride+4*x : y*out.Stride+4*x+4]
			pix[3] = 255
			switch img.Channels {
			case 1:
				v := toByte(img.Data[idx])
				pix[0], pix[1], pix[2] = v, v, v
			default:
				for c := range min(img.Channels, 4) {
					pix[c] = toByte(img.Data[c*plane+idx])
				}
			}
		}
	}
	return out
}

// Blend mixes other into img in place: img = alpha*img + (1-alpha)*other.
// Both images must have the same dimensions.
func (img *Image) Blend(other *Image, alpha float32) {
	if img.Width != other.Width || img.Height != other.Height || img.Channels != other.Channels {
		exceptions.Panicf("images.Blend(): mismatched images %dx%dx%d and %dx%dx%d",
			img.Width, img.Height, img.Channels, other.Width, other.Height, other.Channels)
	}
	beta := 1 - alpha
	for i, v := range other.Data {
		img.Data[i] = alpha*img.Data[i] + beta*v
	}
}

// toNRGBA returns src as a *image.NRGBA whose bounds start at (0, 0), converting only if needed.
func toNRGBA(src image.Image) *image.NRGBA {
	if nrgba, ok := src.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(src)
}

// Gray is the background used for padding (letterbox): 0.5 on every channel.
var Gray = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
