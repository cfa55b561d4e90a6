// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package truth encodes labels into the fixed-size target rows ("truth") expected by each training task:
//
//   - Classification: one-hot over the known class names, optionally propagated through a Tree.
//   - Region: a size x size grid with one object per cell.
//   - Detection: up to numBoxes slots of [x, y, w, h, class_id].
//   - Swag: up to 30 slots of [x, y, w, h, one-hot(classes)].
//   - Tags: multi-label list of tag indices.
//
// The encoders write into a zero-filled row provided by the caller. Box encoders take labels already mapped
// through the image augmentation (see boxes.Correct).
package truth

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrBadAnnotation is returned by loaders configured to fail on malformed annotations, instead of skipping
// them.
var ErrBadAnnotation = errors.New("bad annotation")

// Stats counts what happened to the boxes of one sample during encoding.
type Stats struct {
	// Written boxes into the truth.
	Written int

	// Skipped boxes: too small, dropped during correction, beyond capacity or malformed.
	Skipped int

	// Clamped boxes whose width or height was larger than 1.
	Clamped int

	// Malformed annotations (out of range class ids or coordinates): they are also counted in Skipped
	// or Clamped, and were recorded in the bad-label log.
	Malformed int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Written += other.Written
	s.Skipped += other.Skipped
	s.Clamped += other.Clamped
	s.Malformed += other.Malformed
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("written=%d skipped=%d clamped=%d malformed=%d", s.Written, s.Skipped, s.Clamped, s.Malformed)
}
