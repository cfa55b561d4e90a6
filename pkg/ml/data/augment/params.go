// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"image"
	"math/rand/v2"

	"github.com/gomlx/imgpipe/pkg/ml/data/boxes"
)

// Params configures the random augmentations. The zero value means no augmentation.
type Params struct {
	// Jitter is the maximum crop margin, as a fraction of the image width/height, drawn independently for
	// each side. Negative margins zoom out (the border is replicated).
	Jitter float64

	// Flip enables random horizontal flips (probability 1/2).
	Flip bool

	// Hue is the maximum hue shift, in fractions of a full turn.
	Hue float64

	// Saturation and Exposure are the maximum scale factors: a scale s is drawn from [1, Saturation] and
	// inverted with probability 1/2. 0 is taken as 1 (no change).
	Saturation, Exposure float64

	// Blur enables random gaussian blur (probability 1/2) of detection samples.
	Blur bool

	// Mixup enables, with probability 1/2 per shard, blending each detection sample with a second one.
	Mixup bool

	// Letterbox keeps the aspect ratio of the image when cropping for the network input size.
	Letterbox bool

	// Track keeps the same augmentation for all the samples of one pass, for temporally correlated data.
	Track bool

	// Angle (degrees), Aspect (max aspect ratio scale), Min/Max (range of the shorter side after scaling)
	// and Size (output side) configure the classification augmentation. Aspect 0 is taken as 1.
	Angle, Aspect float64
	Min, Max, Size int
}

// Normalized returns the parameters with the "0 means 1" scale factors fixed.
func (p Params) Normalized() Params {
	if p.Saturation == 0 {
		p.Saturation = 1
	}
	if p.Exposure == 0 {
		p.Exposure = 1
	}
	if p.Aspect == 0 {
		p.Aspect = 1
	}
	return p
}

// Draw holds the random decisions for one augmentation.
type Draw struct {
	// Margins holds the uniform draws in [0, 1) used for the left, right, top and bottom crop margins.
	Margins [4]float64

	// Hue shift, Saturation and Exposure scales.
	Hue, Saturation, Exposure float64

	Flip, Blur bool
}

// Uniform returns a random value in [lo, hi) (or [hi, lo) if they are swapped).
func Uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// RandScale returns a random scale factor s in [1, maxScale], or its inverse 1/s with probability 1/2.
func RandScale(rng *rand.Rand, maxScale float64) float64 {
	s := Uniform(rng, 1, maxScale)
	if rng.IntN(2) == 0 {
		return s
	}
	return 1 / s
}

// NewDraw draws a new random augmentation.
func NewDraw(rng *rand.Rand, p Params) Draw {
	p = p.Normalized()
	var d Draw
	for i := range d.Margins {
		d.Margins[i] = rng.Float64()
	}
	d.Hue = Uniform(rng, -p.Hue, p.Hue)
	d.Saturation = RandScale(rng, p.Saturation)
	d.Exposure = RandScale(rng, p.Exposure)
	if p.Flip {
		d.Flip = rng.IntN(2) == 1
	}
	if p.Blur {
		d.Blur = rng.IntN(2) == 1
	}
	return d
}

// Crop is the crop window of an image, in pixels of the original image, and the corresponding
// mapping of normalized coordinates.
type Crop struct {
	// Left, Right, Top, Bottom margins: positive margins cut into the image, negative ones extend it.
	Left, Right, Top, Bottom int

	// Width and Height of the window.
	Width, Height int

	// SX, SY is the size of the window relative to the original image.
	SX, SY float32

	// DX, DY is the offset of the window, in units of the window size.
	DX, DY float32
}

// Rect returns the window in pixel coordinates of the original image.
func (c Crop) Rect() image.Rectangle {
	return image.Rect(c.Left, c.Top, c.Left+c.Width, c.Top+c.Height)
}

// Transform returns the mapping of normalized coordinates of the original image to normalized coordinates
// of the crop (after resizing), optionally flipped.
func (c Crop) Transform(flip bool) boxes.Transform {
	return boxes.Transform{DX: c.DX, DY: c.DY, SX: 1 / c.SX, SY: 1 / c.SY, Flip: flip}
}

// Window computes the crop window of an ow x oh image for a netW x netH network input.
//
// Each margin is -d + r*(2*d), truncated, where d is jitter times the image extent and r the corresponding
// value of d.Margins. With letterbox, the margins of the short dimension (relative to the network aspect
// ratio) are decreased symmetrically so the window has the network aspect ratio (before jitter).
func Window(d Draw, ow, oh, netW, netH int, jitter float64, letterbox bool) Crop {
	dw := float64(int(float64(ow) * jitter))
	dh := float64(int(float64(oh) * jitter))
	margin := func(r, delta float64) int { return int(-delta + r*2*delta) }
	c := Crop{
		Left:   margin(d.Margins[0], dw),
		Right:  margin(d.Margins[1], dw),
		Top:    margin(d.Margins[2], dh),
		Bottom: margin(d.Margins[3], dh),
	}
	if letterbox {
		imgAR := float64(ow) / float64(oh)
		netAR := float64(netW) / float64(netH)
		if imgAR/netAR > 1 {
			deltaH := (float64(ow)/netAR - float64(oh)) / 2
			c.Top = int(float64(c.Top) - deltaH)
			c.Bottom = int(float64(c.Bottom) - deltaH)
		} else {
			deltaW := (float64(oh)*netAR - float64(ow)) / 2
			c.Left = int(float64(c.Left) - deltaW)
			c.Right = int(float64(c.Right) - deltaW)
		}
	}
	c.Width = max(ow-c.Left-c.Right, 1)
	c.Height = max(oh-c.Top-c.Bottom, 1)
	c.SX = float32(c.Width) / float32(ow)
	c.SY = float32(c.Height) / float32(oh)
	c.DX = (float32(c.Left) / float32(ow)) / c.SX
	c.DY = (float32(c.Top) / float32(oh)) / c.SY
	return c
}
