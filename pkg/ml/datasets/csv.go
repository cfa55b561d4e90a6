// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"
	"math"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

// LoadCategoricalCSV loads a header-less CSV of numbers where column target holds a class index in [0, k).
// The remaining columns, in order, become X and the target becomes a one-hot row of Y.
// A negative target counts from the last column.
func LoadCategoricalCSV(path string, target, k int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open categorical CSV")
	}
	defer func() { _ = f.Close() }()
	d, err := ReadCategoricalCSV(f, target, k)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", path)
	}
	return d, nil
}

// ReadCategoricalCSV is like LoadCategoricalCSV, but reads from r.
func ReadCategoricalCSV(r io.Reader, target, k int) (*Dataset, error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(false))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to parse CSV")
	}
	rows, cols := df.Dims()
	if cols < 2 {
		return nil, errors.Errorf("categorical CSV needs at least 2 columns, got %d", cols)
	}
	if target < 0 {
		target += cols
	}
	if target < 0 || target >= cols {
		return nil, errors.Errorf("target column %d out of range for %d columns", target, cols)
	}
	if k <= 0 {
		return nil, errors.Errorf("number of classes must be positive, got %d", k)
	}

	d := New(rows, cols-1, k)
	names := df.Names()
	xCol := 0
	for col, name := range names {
		values := df.Col(name).Float()
		if col == target {
			for row, v := range values {
				class := int(v)
				if math.IsNaN(v) || float64(class) != v || class < 0 || class >= k {
					return nil, errors.Errorf("row %d: target %v is not a class in [0, %d)", row, v, k)
				}
				d.Y.Vals[row][class] = 1
			}
			continue
		}
		for row, v := range values {
			d.X.Vals[row][xCol] = float32(v)
		}
		xCol++
	}
	return d, nil
}
