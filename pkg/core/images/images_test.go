// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient returns a w x h image where R encodes the column and G the row.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	return img
}

func TestFromImage(t *testing.T) {
	src := gradient(4, 3)
	img := FromImage(src, 3)
	require.Equal(t, 4*3*3, img.Size())
	assert.InDelta(t, 30.0/255, img.At(3, 0, 0), 1e-6)
	assert.InDelta(t, 20.0/255, img.At(0, 2, 1), 1e-6)
	assert.InDelta(t, 200.0/255, img.At(1, 1, 2), 1e-6)

	// Round trip back to a Go image.
	back := img.ToNRGBA()
	assert.Equal(t, src.Pix, back.Pix)

	gray := FromImage(src, 1)
	require.Equal(t, 1, gray.Channels)
	assert.InDelta(t, (0.299*30+0.587*20+0.114*200)/255, gray.At(3, 2, 0), 1e-5)
}

func TestCropBorderReplication(t *testing.T) {
	src := gradient(4, 4)
	inside := Crop(src, image.Rect(1, 1, 3, 3))
	assert.Equal(t, image.Rect(0, 0, 2, 2), inside.Bounds())
	assert.Equal(t, uint8(10), inside.NRGBAAt(0, 0).R)

	// Crop window larger than the image: border pixels are replicated.
	outside := Crop(src, image.Rect(-2, -1, 6, 5))
	assert.Equal(t, image.Rect(0, 0, 8, 6), outside.Bounds())
	assert.Equal(t, src.NRGBAAt(0, 0), outside.NRGBAAt(0, 0))
	assert.Equal(t, src.NRGBAAt(3, 3), outside.NRGBAAt(7, 5))
	assert.Equal(t, src.NRGBAAt(1, 0), outside.NRGBAAt(3, 0))
}

func TestResizeAndFlip(t *testing.T) {
	src := gradient(8, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 2), Resize(src, 4, 2).Bounds())
	assert.Same(t, src, Resize(src, 8, 4))

	flipped := FlipH(src)
	assert.Equal(t, src.NRGBAAt(0, 1), flipped.NRGBAAt(7, 1))
	assert.Equal(t, src.Pix, FlipH(flipped).Pix)
}

func TestLetterbox(t *testing.T) {
	src := gradient(20, 10)
	boxed := Letterbox(src, 16, 16)
	require.Equal(t, image.Rect(0, 0, 16, 16), boxed.Bounds())
	// Top and bottom bands are padding.
	assert.Equal(t, Gray, boxed.NRGBAAt(8, 0))
	assert.Equal(t, Gray, boxed.NRGBAAt(8, 15))
	assert.Equal(t, uint8(200), boxed.NRGBAAt(8, 8).B)
}

func TestDistort(t *testing.T) {
	src := gradient(5, 5)
	assert.Same(t, src, Distort(src, 0, 1, 1))

	// Exposure 0 makes everything black.
	dark := Distort(src, 0, 1, 0)
	assert.Equal(t, color.NRGBA{A: 255}, dark.NRGBAAt(2, 2))

	// Zero saturation yields gray pixels.
	desaturated := Distort(src, 0, 0, 1)
	c := desaturated.NRGBAAt(3, 3)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)

	// A full turn of hue is the identity.
	for _, rgb := range [][3]float64{{1, 0, 0}, {0.2, 0.7, 0.1}, {0.3, 0.3, 0.9}} {
		h, s, v := rgbToHSV(rgb[0], rgb[1], rgb[2])
		r, g, b := hsvToRGB(h, s, v)
		assert.InDeltaSlice(t, rgb[:], []float64{r, g, b}, 1e-9)
	}
}

func TestBlend(t *testing.T) {
	a, b := New(2, 2, 1), New(2, 2, 1)
	for i := range a.Data {
		a.Data[i] = 1
	}
	a.Blend(b, 0.5)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, a.Data)
	assert.Panics(t, func() { a.Blend(New(3, 2, 1), 0.5) })
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, Save(gradient(6, 4), path))
	img, err := Load(path, 3, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 2, img.Height)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"), 0, 0, 3)
	require.Error(t, err)
}

func TestDrawBox(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	red := color.NRGBA{R: 255, A: 255}
	DrawBox(dst, image.Rect(2, 2, 8, 8), red, 1)
	assert.Equal(t, red, dst.NRGBAAt(2, 5))
	assert.Equal(t, red, dst.NRGBAAt(7, 7))
	assert.Equal(t, color.NRGBA{}, dst.NRGBAAt(5, 5))
	// Partially outside is fine.
	DrawBox(dst, image.Rect(-5, -5, 20, 20), red, 2)
}
