// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"math"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"
)

// DefaultSmoothing is the label smoothing factor used by LoadCIFAR10Dir.
const DefaultSmoothing = 0.1

// ScaleRows multiplies every value of the matrix by s, in place.
func ScaleRows(m Matrix, s float32) {
	for _, row := range m.Vals {
		blas32.Scal(s, blas32.Vector{N: len(row), Inc: 1, Data: row})
	}
}

// TranslateRows adds s to every value of the matrix, in place.
func TranslateRows(m Matrix, s float32) {
	for _, row := range m.Vals {
		for j := range row {
			row[j] += s
		}
	}
}

// NormalizeRows makes each row zero mean and unit (population) standard deviation, in place.
// Constant rows are only centered.
func NormalizeRows(m Matrix) {
	buf := make([]float64, m.Cols)
	for _, row := range m.Vals {
		buf = buf[:len(row)]
		for j, v := range row {
			buf[j] = float64(v)
		}
		mean, std := stat.PopMeanStdDev(buf, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for j, v := range buf {
			row[j] = float32((v - mean) / std)
		}
	}
}

// Smooth applies label smoothing to one-hot (or probability) rows, in place: y = eps/cols + (1-eps)*y.
func Smooth(m Matrix, eps float32) {
	if m.Cols == 0 {
		return
	}
	scale := 1 - eps
	offset := eps / float32(m.Cols)
	for _, row := range m.Vals {
		for j := range row {
			row[j] = offset + scale*row[j]
		}
	}
}

// Float16 returns the matrix values in row-major order converted to half precision.
func (m Matrix) Float16() []float16.Float16 {
	flat := make([]float16.Float16, 0, m.Rows*m.Cols)
	for _, row := range m.Vals {
		for _, v := range row {
			flat = append(flat, float16.Fromfloat32(v))
		}
	}
	return flat
}
