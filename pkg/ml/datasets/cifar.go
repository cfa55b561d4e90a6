// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/gomlx/imgpipe/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CIFAR-10 binary format constants.
const (
	CIFARWidth       = 32
	CIFARHeight      = 32
	CIFARChannels    = 3
	CIFARNumClasses  = 10
	CIFARImageBytes  = CIFARWidth * CIFARHeight * CIFARChannels
	CIFARRecordBytes = 1 + CIFARImageBytes
	CIFARNumBatches  = 5
)

// ReadCIFAR10 reads CIFAR-10 binary records (one label byte followed by 3072 pixel bytes in CHW order)
// until the end of r. X holds the raw pixel values (0-255) and Y the one-hot labels.
func ReadCIFAR10(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	var x, y [][]float32
	record := make([]byte, CIFARRecordBytes)
	for {
		n, err := io.ReadFull(br, record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read only %d bytes of record #%d, wanted %d", n, len(x), CIFARRecordBytes)
		}
		label := int(record[0])
		if label >= CIFARNumClasses {
			return nil, errors.Errorf("record #%d has label %d, wanted < %d", len(x), label, CIFARNumClasses)
		}
		pixels := make([]float32, CIFARImageBytes)
		for i, b := range record[1:] {
			pixels[i] = float32(b)
		}
		oneHot := make([]float32, CIFARNumClasses)
		oneHot[label] = 1
		x = append(x, pixels)
		y = append(y, oneHot)
	}
	d := FromMatrices(
		Matrix{Rows: len(x), Cols: CIFARImageBytes, Vals: x},
		Matrix{Rows: len(y), Cols: CIFARNumClasses, Vals: y},
		Owned)
	d.Width, d.Height = CIFARWidth, CIFARHeight
	return d, nil
}

// LoadCIFAR10 loads one CIFAR-10 binary batch file, with X scaled to [0, 1].
func LoadCIFAR10(filePath string) (*Dataset, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CIFAR-10 file")
	}
	defer func() { _ = f.Close() }()
	d, err := ReadCIFAR10(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", filePath)
	}
	ScaleRows(d.X, 1.0/255.0)
	return d, nil
}

// LoadCIFAR10Dir loads data_batch_1.bin to data_batch_5.bin from dir, merges them, and applies
// DefaultSmoothing to the labels.
func LoadCIFAR10Dir(dir string) (*Dataset, error) {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err != nil {
		return nil, err
	}
	if found, err := fsutil.FileExists(dir); err != nil {
		return nil, err
	} else if !found {
		return nil, errors.Errorf("CIFAR-10 directory %q not found", dir)
	}
	parts := make([]*Dataset, 0, CIFARNumBatches)
	for i := 1; i <= CIFARNumBatches; i++ {
		filePath := path.Join(dir, fmt.Sprintf("data_batch_%d.bin", i))
		d, err := LoadCIFAR10(filePath)
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("loaded %d CIFAR-10 examples from %q", d.Len(), filePath)
		parts = append(parts, d)
	}
	d, err := Merge(parts...)
	if err != nil {
		return nil, err
	}
	Smooth(d.Y, DefaultSmoothing)
	return d, nil
}
