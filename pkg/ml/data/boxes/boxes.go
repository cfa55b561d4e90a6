// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package boxes reads bounding-box annotations and maps them through the geometric transformations
// (crop, scale, flip) applied to their images during augmentation.
//
// A label file holds one object per line, as white-space separated "class_id x y w h", where (x, y) is the
// center of the box and (w, h) its size, all normalized to [0, 1] by the image dimensions.
package boxes

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Drop is the reason a Label was discarded by Correct. Dropped labels keep their values but must not be
// encoded into any truth.
type Drop uint8

const (
	// Kept means the label is valid.
	Kept Drop = iota

	// DropPlaceholder marks an annotation centered exactly at (0, 0), used by some datasets as "no object".
	DropPlaceholder

	// DropOutOfFrame marks a box that lies entirely outside the image, either in the original annotation
	// or after the augmentation crop.
	DropOutOfFrame
)

// String implements fmt.Stringer.
func (d Drop) String() string {
	switch d {
	case Kept:
		return "Kept"
	case DropPlaceholder:
		return "DropPlaceholder"
	case DropOutOfFrame:
		return "DropOutOfFrame"
	default:
		return fmt.Sprintf("Drop(%d)", int(d))
	}
}

// Label is one annotated object.
type Label struct {
	ID int

	// X, Y is the center, W, H the size, all normalized.
	X, Y, W, H float32

	// Left, Right, Top, Bottom edges, derived from the center and size.
	Left, Right, Top, Bottom float32

	Drop Drop
}

// NewLabel creates a label from its class, center and size, deriving the edges.
func NewLabel(id int, x, y, w, h float32) Label {
	return Label{
		ID: id, X: x, Y: y, W: w, H: h,
		Left: x - w/2, Right: x + w/2,
		Top: y - h/2, Bottom: y + h/2,
	}
}

// IsDropped returns whether the label was discarded.
func (l Label) IsDropped() bool { return l.Drop != Kept }

var (
	// ErrMissingLabels is returned by Read when the label file doesn't exist or can't be opened.
	// This is expected for images without objects in some datasets, and callers should only count it.
	ErrMissingLabels = errors.New("missing label file")

	// ErrMalformedLabels is returned when a label file has a field that is not a number, or an incomplete
	// line. The labels parsed before the malformed field are still returned.
	ErrMalformedLabels = errors.New("malformed label file")
)

// Parse reads "class_id x y w h" quintuples from r, separated by any white space.
//
// Parsing stops at the first field that is not a number (or at an incomplete trailing quintuple): the labels
// read so far are returned, along with an error wrapping ErrMalformedLabels.
func Parse(r io.Reader) ([]Label, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	var labels []Label
	var fields [5]string
	for {
		n := 0
		for n < len(fields) && scanner.Scan() {
			fields[n] = scanner.Text()
			n++
		}
		if err := scanner.Err(); err != nil {
			return labels, errors.Wrapf(err, "failed reading labels")
		}
		if n == 0 {
			return labels, nil
		}
		if n < len(fields) {
			return labels, errors.Wrapf(ErrMalformedLabels, "incomplete annotation %q at object #%d", fields[:n], len(labels))
		}
		label, err := parseQuintuple(fields)
		if err != nil {
			return labels, errors.Wrapf(ErrMalformedLabels, "object #%d: %v", len(labels), err)
		}
		labels = append(labels, label)
	}
}

func parseQuintuple(fields [5]string) (Label, error) {
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, errors.Errorf("invalid class id %q", fields[0])
	}
	var values [4]float32
	for i := range values {
		v, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil {
			return Label{}, errors.Errorf("invalid coordinate %q", fields[i+1])
		}
		values[i] = float32(v)
	}
	return NewLabel(id, values[0], values[1], values[2], values[3]), nil
}

// Read the labels from the file at labelPath.
//
// If the file can't be opened, it is recorded in log's bad.list and an error wrapping ErrMissingLabels is
// returned. If it is malformed, it is recorded in bad_label.list and the labels parsed up to the malformed
// field are returned with an error wrapping ErrMalformedLabels. Both are meant to be counted, not to abort
// a batch. log may be nil.
func Read(labelPath string, log *badlog.Log) ([]Label, error) {
	f, err := os.Open(labelPath)
	if err != nil {
		klog.Warningf("boxes: can't open label file %q (this can be normal for images without objects)", labelPath)
		log.MissingFile(labelPath)
		return nil, errors.Wrapf(ErrMissingLabels, "%q: %v", labelPath, err)
	}
	defer func() { _ = f.Close() }()
	labels, err := Parse(f)
	if err != nil {
		klog.Warningf("boxes: %q: %v", labelPath, err)
		log.BadLabel(labelPath, "Wrong annotation: %v", err)
		return labels, errors.WithMessagef(err, "label file %q", labelPath)
	}
	return labels, nil
}

// Shuffle labels in place, so when there are more objects than a truth encoding can hold, a different subset
// is kept each time.
func Shuffle(labels []Label, rng *rand.Rand) {
	n := len(labels)
	for i := range labels {
		j := rng.IntN(n)
		labels[i], labels[j] = labels[j], labels[i]
	}
}
