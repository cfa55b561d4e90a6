// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package images

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Distort shifts hue and scales saturation and value (exposure) of every pixel, in HSV space.
//
// hue is added to the hue in units of a full turn (so it is in [-1, 1]), wrapping around. saturation and
// exposure are multiplicative factors. Distort(img, 0, 1, 1) leaves the image unchanged (up to rounding).
func Distort(src image.Image, hue, saturation, exposure float64) *image.NRGBA {
	if hue == 0 && saturation == 1 && exposure == 1 {
		return toNRGBA(src)
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		h, s, v := rgbToHSV(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
		s *= saturation
		v *= exposure
		h += hue
		if h > 1 {
			h -= 1
		} else if h < 0 {
			h += 1
		}
		r, g, b := hsvToRGB(h, Clamp(s, 0, 1), Clamp(v, 0, 1))
		return color.NRGBA{R: toUint8(r), G: toUint8(g), B: toUint8(b), A: c.A}
	})
}

func toUint8(v float64) uint8 {
	return uint8(Clamp(v, 0, 1)*255 + 0.5)
}

// rgbToHSV converts values in [0, 1] to hue (a fraction of a turn, in [0, 1)), saturation and value.
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	delta := maxC - minC
	v = maxC
	if maxC == 0 || delta == 0 {
		return 0, 0, v
	}
	s = delta / maxC
	switch maxC {
	case r:
		h = (g - b) / delta
	case g:
		h = 2 + (b-r)/delta
	default:
		h = 4 + (r-g)/delta
	}
	h /= 6
	if h < 0 {
		h += 1
	}
	return
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	if s == 0 {
		return v, v, v
	}
	h6 := h * 6
	index := math.Floor(h6)
	f := h6 - index
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch int(index) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
