// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package truth

import "github.com/gomlx/imgpipe/pkg/ml/data/boxes"

// MinRegionSize is the smallest normalized width or height of a box encoded in a region grid.
const MinRegionSize = 0.001

// RegionSize returns the length of a region truth row: size*size cells of 5+classes values.
func RegionSize(classes, size int) int {
	return size * size * (5 + classes)
}

// Region encodes labels into a size x size grid. Each cell holds
// [objectness, one-hot(classes), x offset in cell, y offset in cell, w, h].
//
// A box goes to the cell containing its center. Boxes smaller than MinRegionSize, dropped boxes and boxes
// landing on a cell already taken by a previous box are skipped, so a cell holds at most one object.
func Region(labels []boxes.Label, row []float32, classes, size int) Stats {
	var stats Stats
	cellSize := 5 + classes
	for _, l := range labels {
		if l.IsDropped() || l.W < MinRegionSize || l.H < MinRegionSize {
			stats.Skipped++
			continue
		}
		col := min(int(l.X*float32(size)), size-1)
		rowIdx := min(int(l.Y*float32(size)), size-1)
		x := l.X*float32(size) - float32(col)
		y := l.Y*float32(size) - float32(rowIdx)

		cell := row[(col+rowIdx*size)*cellSize : (col+rowIdx*size+1)*cellSize]
		if cell[0] != 0 {
			stats.Skipped++
			continue
		}
		cell[0] = 1
		if l.ID >= 0 && l.ID < classes {
			cell[1+l.ID] = 1
		}
		coords := cell[1+classes:]
		coords[0], coords[1], coords[2], coords[3] = x, y, l.W, l.H
		stats.Written++
	}
	return stats
}
