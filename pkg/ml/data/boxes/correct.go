// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package boxes

import "github.com/gomlx/imgpipe/pkg/core/images"

// Transform maps normalized coordinates of the original image to normalized coordinates of the augmented
// image: e' = e*S - D, on each axis, followed by an optional horizontal flip.
type Transform struct {
	DX, DY float32
	SX, SY float32
	Flip   bool
}

// Identity transform.
var Identity = Transform{SX: 1, SY: 1}

// Correct applies the transform t to every label in place.
//
// Labels centered exactly at (0, 0) are marked DropPlaceholder. Labels entirely outside [0, 1]x[0, 1], in the
// original annotation or after the transform, are marked DropOutOfFrame. Otherwise edges are transformed,
// flipped and clamped to [0, 1], and the center and size are recomputed from the clamped edges.
// Labels already dropped are left untouched.
func Correct(labels []Label, t Transform) {
	for i := range labels {
		l := &labels[i]
		if l.IsDropped() {
			continue
		}
		if l.X == 0 && l.Y == 0 {
			l.Drop = DropPlaceholder
			continue
		}
		if outOfFrame(l.X-l.W/2, l.X+l.W/2, l.Y-l.H/2, l.Y+l.H/2) {
			l.Drop = DropOutOfFrame
			continue
		}

		left := l.Left*t.SX - t.DX
		right := l.Right*t.SX - t.DX
		top := l.Top*t.SY - t.DY
		bottom := l.Bottom*t.SY - t.DY
		if t.Flip {
			left, right = 1-right, 1-left
		}
		if outOfFrame(left, right, top, bottom) {
			l.Drop = DropOutOfFrame
			continue
		}

		l.Left = images.Clamp(left, 0, 1)
		l.Right = images.Clamp(right, 0, 1)
		l.Top = images.Clamp(top, 0, 1)
		l.Bottom = images.Clamp(bottom, 0, 1)

		l.X = (l.Left + l.Right) / 2
		l.Y = (l.Top + l.Bottom) / 2
		l.W = images.Clamp(l.Right-l.Left, 0, 1)
		l.H = images.Clamp(l.Bottom-l.Top, 0, 1)
	}
}

func outOfFrame(left, right, top, bottom float32) bool {
	return right < 0 || bottom < 0 || left > 1 || top > 1
}
