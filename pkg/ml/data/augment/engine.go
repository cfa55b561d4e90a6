// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package augment produces training samples (image pixels and truth) from image paths, applying random
// geometric and photometric augmentations consistently to the image and its labels.
//
// An Engine is configured for one task (network input size, number of classes, truth capacity) and is
// safe for concurrent use, as long as each goroutine uses its own random stream: all randomness comes from
// the *rand.Rand passed to each method.
package augment

import (
	"image"
	"math/rand/v2"

	"github.com/gomlx/imgpipe/pkg/core/images"
	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/ml/data/boxes"
	"github.com/gomlx/imgpipe/pkg/ml/data/catalog"
	"github.com/gomlx/imgpipe/pkg/ml/data/truth"
	"github.com/pkg/errors"
)

// BlurSigma is the standard deviation, in pixels, of the random blur.
const BlurSigma = 1.0

// Engine generates augmented samples for one task.
type Engine struct {
	// Width, Height and Channels of the network input.
	Width, Height, Channels int

	// Classes is the number of object classes.
	Classes int

	// NumBoxes is the capacity of a detection truth, or the grid size of a region truth.
	NumBoxes int

	Params Params

	// Log records missing and malformed label files. It may be nil.
	Log *badlog.Log

	// DumpDir, if set, is where augmented detection samples are saved, with their boxes drawn.
	DumpDir string
}

// Sample is one generated row of the dataset.
type Sample struct {
	X, Y []float32

	// Boxes statistics, for tasks with boxes.
	Boxes truth.Stats

	// MissingLabels is set if the label file of the sample could not be read: the truth is empty.
	MissingLabels bool

	// MalformedLabels is set if the label file was only partially parsed.
	MalformedLabels bool

	// Matches is the number of class names matched by the path, for classification tasks.
	Matches int
}

// channels returns the number of channels to use, defaulting to 3.
func (e *Engine) channels() int {
	if e.Channels <= 0 {
		return 3
	}
	return e.Channels
}

// DetectionSize returns the length of a detection truth row.
func (e *Engine) DetectionSize() int {
	return e.NumBoxes * truth.DetectionSlotSize
}

// readLabels of the image at path, shuffled and corrected by t.
func (e *Engine) readLabels(rng *rand.Rand, path string, t boxes.Transform, sample *Sample) []boxes.Label {
	labels, err := boxes.Read(catalog.LabelPath(path), e.Log)
	if err != nil {
		switch {
		case errors.Is(err, boxes.ErrMissingLabels):
			sample.MissingLabels = true
		case errors.Is(err, boxes.ErrMalformedLabels):
			sample.MalformedLabels = true
		}
	}
	boxes.Shuffle(labels, rng)
	boxes.Correct(labels, t)
	return labels
}

// jitterCrop opens the image at path, crops it with a jittered window, resizes it to the network size and
// flips it if requested. It returns the resized image and the crop used.
func (e *Engine) jitterCrop(path string, draw Draw, letterbox bool) (*image.NRGBA, Crop, error) {
	orig, err := images.Open(path)
	if err != nil {
		return nil, Crop{}, err
	}
	ow, oh := orig.Bounds().Dx(), orig.Bounds().Dy()
	crop := Window(draw, ow, oh, e.Width, e.Height, e.Params.Jitter, letterbox)
	sized := images.Resize(images.Crop(orig, crop.Rect()), e.Width, e.Height)
	if draw.Flip {
		sized = images.FlipH(sized)
	}
	return sized, crop, nil
}

// Detection generates a sample for fixed-slot detection: the image is cropped with jitter (and letterbox),
// resized, flipped, color distorted and blurred according to draw, and its boxes are corrected accordingly
// and encoded with truth.Detection.
//
// An error is returned only if the image can't be decoded. Label problems are reported in the Sample.
func (e *Engine) Detection(rng *rand.Rand, path string, draw Draw) (Sample, error) {
	var sample Sample
	sized, crop, err := e.jitterCrop(path, draw, e.Params.Letterbox)
	if err != nil {
		return sample, err
	}
	sized = images.Distort(sized, draw.Hue, draw.Saturation, draw.Exposure)
	if draw.Blur {
		sized = images.Blur(sized, BlurSigma)
	}
	sample.X = images.FromImage(sized, e.channels()).Data

	labelPath := catalog.LabelPath(path)
	labels := e.readLabels(rng, path, crop.Transform(draw.Flip), &sample)
	sample.Y = make([]float32, e.DetectionSize())
	sample.Boxes = truth.Detection(labels, sample.Y, truth.DetectionConfig{
		NumBoxes:  e.NumBoxes,
		Classes:   e.Classes,
		NetWidth:  e.Width,
		NetHeight: e.Height,
		LabelPath: labelPath,
		Log:       e.Log,
	})
	return sample, nil
}

// Mixup blends a freshly generated detection sample (newX, newY) into the row (x, y), in place:
// pixels are averaged and the boxes of the new sample are kept first, followed by the boxes of the row
// (see truth.Blend).
func Mixup(x, y, newX, newY []float32, numBoxes int) {
	for i, v := range newX {
		x[i] = 0.5*x[i] + 0.5*v
	}
	truth.Blend(newY, numBoxes, y)
	copy(y, newY)
}

// Region generates a sample for grid (region) detection, with a size x size grid, where size is
// e.NumBoxes. The crop margins are drawn uniformly, and the color distortion is drawn independently.
func (e *Engine) Region(rng *rand.Rand, path string) (Sample, error) {
	var sample Sample
	draw := NewDraw(rng, e.Params)
	sized, crop, err := e.jitterCrop(path, draw, false)
	if err != nil {
		return sample, err
	}
	sized = images.Distort(sized, draw.Hue, draw.Saturation, draw.Exposure)
	sample.X = images.FromImage(sized, e.channels()).Data

	labels := e.readLabels(rng, path, crop.Transform(draw.Flip), &sample)
	sample.Y = make([]float32, truth.RegionSize(e.Classes, e.NumBoxes))
	sample.Boxes = truth.Region(labels, sample.Y, e.Classes, e.NumBoxes)
	return sample, nil
}

// Swag generates a sample for the capped (30 boxes) detection variant: jittered crop and flip, no color
// distortion.
func (e *Engine) Swag(rng *rand.Rand, path string) (Sample, error) {
	var sample Sample
	draw := NewDraw(rng, e.Params)
	sized, crop, err := e.jitterCrop(path, draw, false)
	if err != nil {
		return sample, err
	}
	sample.X = images.FromImage(sized, e.channels()).Data

	labels := e.readLabels(rng, path, crop.Transform(draw.Flip), &sample)
	sample.Y = make([]float32, truth.SwagSize(e.Classes))
	sample.Boxes = truth.Swag(labels, sample.Y, e.Classes)
	return sample, nil
}
