// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package datasets holds in-memory datasets: pairs of matrices with one example per row (X, the inputs, and
// Y, the targets), and the algebra used to assemble and split batches (concatenation, partitions, random
// subsets) without copying rows.
//
// Every Dataset has an explicit Ownership: an Owned dataset is responsible for its row buffers, a Borrowed one
// is a view over rows owned by other datasets. All the algebra functions return Borrowed views; only freshly
// loaded data, Clone and Merge return Owned datasets.
package datasets

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Matrix of float32 values stored as independent row buffers, so two matrices can share rows.
type Matrix struct {
	Rows, Cols int
	Vals       [][]float32
}

// NewMatrix returns a zero-filled matrix, with each row allocated separately.
func NewMatrix(rows, cols int) Matrix {
	m := Matrix{Rows: rows, Cols: cols, Vals: make([][]float32, rows)}
	for i := range m.Vals {
		m.Vals[i] = make([]float32, cols)
	}
	return m
}

// Flat copies the rows of the matrix into a contiguous row-major buffer of Rows*Cols values.
func (m Matrix) Flat() []float32 {
	flat := make([]float32, 0, m.Rows*m.Cols)
	for _, row := range m.Vals {
		flat = append(flat, row...)
	}
	return flat
}

// view returns a matrix sharing the rows of m, with its own slice of row pointers.
func (m Matrix) view(rows [][]float32) Matrix {
	return Matrix{Rows: len(rows), Cols: m.Cols, Vals: rows}
}

// Ownership of the row buffers of a Dataset.
type Ownership uint8

const (
	// Owned datasets release their row buffers when freed.
	Owned Ownership = iota

	// Borrowed datasets are views over rows owned elsewhere: freeing them only drops the view.
	Borrowed
)

// String implements fmt.Stringer.
func (o Ownership) String() string {
	switch o {
	case Owned:
		return "Owned"
	case Borrowed:
		return "Borrowed"
	default:
		return fmt.Sprintf("Ownership(%d)", int(o))
	}
}

// ErrFreed is returned when freeing a dataset more than once.
var ErrFreed = errors.New("dataset already freed")

// Dataset is a pair of matrices (X, Y) with the same number of rows, one example per row.
type Dataset struct {
	X, Y Matrix

	// Width and Height of the images in X, if they are images. Informative only.
	Width, Height int

	ownership Ownership
	freed     bool
}

// New returns an Owned dataset of zero-filled rows. Rows that are never filled (e.g. skipped samples) remain
// zero.
func New(rows, xCols, yCols int) *Dataset {
	return &Dataset{X: NewMatrix(rows, xCols), Y: NewMatrix(rows, yCols), ownership: Owned}
}

// FromMatrices returns a dataset with the given matrices and ownership. It panics if x and y have a
// different number of rows.
func FromMatrices(x, y Matrix, ownership Ownership) *Dataset {
	if x.Rows != y.Rows || len(x.Vals) != x.Rows || len(y.Vals) != y.Rows {
		exceptions.Panicf("datasets.FromMatrices(): X has %d rows (%d buffers) and Y has %d rows (%d buffers)",
			x.Rows, len(x.Vals), y.Rows, len(y.Vals))
	}
	return &Dataset{X: x, Y: y, ownership: ownership}
}

// borrow returns a Borrowed dataset over the given rows of d.
func (d *Dataset) borrow(xRows, yRows [][]float32) *Dataset {
	return &Dataset{
		X: d.X.view(xRows), Y: d.Y.view(yRows),
		Width: d.Width, Height: d.Height,
		ownership: Borrowed,
	}
}

// Len returns the number of rows (examples).
func (d *Dataset) Len() int { return d.X.Rows }

// Ownership of the dataset's rows.
func (d *Dataset) Ownership() Ownership { return d.ownership }

// IsFreed returns whether Free was called.
func (d *Dataset) IsFreed() bool { return d.freed }

// String implements fmt.Stringer.
func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset{rows=%d, X.cols=%d, Y.cols=%d, %s}", d.Len(), d.X.Cols, d.Y.Cols, d.ownership)
}

// Free the dataset. An Owned dataset releases its row buffers (they are cleared so no reference is kept);
// a Borrowed one only drops its view. Either way the dataset is empty afterwards.
// Freeing twice returns ErrFreed.
func (d *Dataset) Free() error {
	if d.freed {
		return errors.Wrapf(ErrFreed, "%s", d)
	}
	if d.ownership == Owned {
		clear(d.X.Vals)
		clear(d.Y.Vals)
	}
	d.X = Matrix{Cols: d.X.Cols}
	d.Y = Matrix{Cols: d.Y.Cols}
	d.freed = true
	return nil
}

// Clone returns an Owned deep copy of d.
func (d *Dataset) Clone() *Dataset {
	clone := New(d.Len(), d.X.Cols, d.Y.Cols)
	for i := range d.Len() {
		copy(clone.X.Vals[i], d.X.Vals[i])
		copy(clone.Y.Vals[i], d.Y.Vals[i])
	}
	clone.Width, clone.Height = d.Width, d.Height
	return clone
}
