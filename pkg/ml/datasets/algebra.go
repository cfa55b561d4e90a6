// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"math/rand/v2"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

func checkCompatible(d1, d2 *Dataset) {
	if d1.X.Cols != d2.X.Cols || d1.Y.Cols != d2.Y.Cols {
		exceptions.Panicf("datasets: can't concatenate %s and %s: columns don't match", d1, d2)
	}
}

// Concat returns a Borrowed dataset with the rows of d1 followed by the rows of d2.
// Width and Height are taken from the first dataset that has them.
func Concat(d1, d2 *Dataset) *Dataset {
	if d1.Len() > 0 && d2.Len() > 0 {
		checkCompatible(d1, d2)
	}
	x := make([][]float32, 0, d1.Len()+d2.Len())
	y := make([][]float32, 0, d1.Len()+d2.Len())
	x = append(append(x, d1.X.Vals...), d2.X.Vals...)
	y = append(append(y, d1.Y.Vals...), d2.Y.Vals...)
	first := d1
	if first.Len() == 0 && first.X.Cols == 0 {
		first = d2
	}
	out := first.borrow(x, y)
	if out.Width == 0 {
		out.Width, out.Height = d2.Width, d2.Height
	}
	return out
}

// ConcatAll returns a Borrowed dataset with the rows of all datasets, in order.
func ConcatAll(ds ...*Dataset) *Dataset {
	out := &Dataset{ownership: Borrowed}
	for _, d := range ds {
		out = Concat(out, d)
	}
	return out
}

// Merge concatenates datasets that are Owned, transferring the ownership of all their rows to the result:
// the result is Owned and the inputs become Borrowed, so freeing them doesn't affect the result.
// It returns an error if any input is not Owned or was already freed.
func Merge(ds ...*Dataset) (*Dataset, error) {
	for i, d := range ds {
		if d.freed || d.ownership != Owned {
			return nil, errors.Errorf("datasets.Merge(): input #%d %s is not an owned dataset (freed=%v)", i, d, d.freed)
		}
	}
	out := ConcatAll(ds...)
	out.ownership = Owned
	for _, d := range ds {
		d.ownership = Borrowed
	}
	return out, nil
}

// Part returns a Borrowed view of the part-th of total contiguous parts of d: rows
// [part*n/total, (part+1)*n/total).
func Part(d *Dataset, part, total int) *Dataset {
	start, end := partRange(d.Len(), part, total)
	return d.borrow(slices.Clone(d.X.Vals[start:end]), slices.Clone(d.Y.Vals[start:end]))
}

func partRange(n, part, total int) (start, end int) {
	if total <= 0 || part < 0 || part >= total {
		exceptions.Panicf("datasets: invalid part %d of %d", part, total)
	}
	return part * n / total, (part + 1) * n / total
}

// Split returns a partition of d in two Borrowed views: test is Part(d, part, total), and train holds all the
// other rows, in order.
func Split(d *Dataset, part, total int) (train, test *Dataset) {
	start, end := partRange(d.Len(), part, total)
	test = d.borrow(slices.Clone(d.X.Vals[start:end]), slices.Clone(d.Y.Vals[start:end]))
	x := make([][]float32, 0, d.Len()-(end-start))
	y := make([][]float32, 0, d.Len()-(end-start))
	x = append(append(x, d.X.Vals[:start]...), d.X.Vals[end:]...)
	y = append(append(y, d.Y.Vals[:start]...), d.Y.Vals[end:]...)
	train = d.borrow(x, y)
	return
}

// RandomSubset returns a Borrowed dataset with n rows of d sampled with replacement.
func RandomSubset(d *Dataset, n int, rng *rand.Rand) *Dataset {
	x := make([][]float32, n)
	y := make([][]float32, n)
	for i := range n {
		index := rng.IntN(d.Len())
		x[i], y[i] = d.X.Vals[index], d.Y.Vals[index]
	}
	return d.borrow(x, y)
}

// Shuffle permutes the rows of d in place (only the row pointers move).
func Shuffle(d *Dataset, rng *rand.Rand) {
	rng.Shuffle(d.Len(), func(i, j int) {
		d.X.Vals[i], d.X.Vals[j] = d.X.Vals[j], d.X.Vals[i]
		d.Y.Vals[i], d.Y.Vals[j] = d.Y.Vals[j], d.Y.Vals[i]
	})
}

func checkBatchBuffers(d *Dataset, n int, x, y []float32) {
	if len(x) < n*d.X.Cols || len(y) < n*d.Y.Cols {
		exceptions.Panicf("datasets: batch buffers too small for %d rows of %s: len(x)=%d, len(y)=%d",
			n, d, len(x), len(y))
	}
}

// RandomBatch copies n rows of d, sampled with replacement, into the row-major buffers x and y.
func RandomBatch(d *Dataset, n int, rng *rand.Rand, x, y []float32) {
	checkBatchBuffers(d, n, x, y)
	for j := range n {
		index := rng.IntN(d.Len())
		copy(x[j*d.X.Cols:(j+1)*d.X.Cols], d.X.Vals[index])
		copy(y[j*d.Y.Cols:(j+1)*d.Y.Cols], d.Y.Vals[index])
	}
}

// NextBatch copies the n rows of d starting at offset into the row-major buffers x and y.
func NextBatch(d *Dataset, n, offset int, x, y []float32) {
	checkBatchBuffers(d, n, x, y)
	if offset < 0 || offset+n > d.Len() {
		exceptions.Panicf("datasets.NextBatch(): rows [%d, %d) out of range for %s", offset, offset+n, d)
	}
	for j := range n {
		copy(x[j*d.X.Cols:(j+1)*d.X.Cols], d.X.Vals[offset+j])
		copy(y[j*d.Y.Cols:(j+1)*d.Y.Cols], d.Y.Vals[offset+j])
	}
}
