// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/gomlx/imgpipe/pkg/core/images"
	"github.com/gomlx/imgpipe/pkg/ml/data/catalog"
	"github.com/gomlx/imgpipe/pkg/ml/data/truth"
)

// ClassificationLabels configures the truth of classification samples.
type ClassificationLabels struct {
	// Names of the classes, matched as substrings of the image path.
	Names []string

	// Tree, if not nil, propagates positive labels to their ancestors and marks unknown groups as ignored.
	Tree *truth.Tree
}

// Size of the truth row.
func (l ClassificationLabels) Size() int {
	if l.Tree != nil {
		return max(len(l.Names), l.Tree.NumNodes())
	}
	return len(l.Names)
}

func (l ClassificationLabels) fill(path string, sample *Sample) {
	sample.Y = make([]float32, l.Size())
	if len(l.Names) == 0 {
		return
	}
	sample.Matches = truth.Classification(path, l.Names, sample.Y)
	if l.Tree != nil {
		truth.Hierarchy(sample.Y, l.Tree)
	}
}

// Classification generates a plain classification sample: the image resized to the network size, without
// augmentation.
func (e *Engine) Classification(path string, labels ClassificationLabels) (Sample, error) {
	var sample Sample
	img, err := images.Load(path, e.Width, e.Height, e.channels())
	if err != nil {
		return sample, err
	}
	sample.X = img.Data
	labels.fill(path, &sample)
	return sample, nil
}

// augmented returns the image at path with the classification augmentation: random scale, aspect, rotation
// and crop of Params.Size x Params.Size, random flip and color distortion.
func (e *Engine) augmented(rng *rand.Rand, path string) (*image.NRGBA, error) {
	orig, err := images.Open(path)
	if err != nil {
		return nil, err
	}
	p := e.Params.Normalized()
	img := RandomAugment(rng, orig, p.Angle, p.Aspect, p.Min, p.Max, e.augmentSize())
	if p.Flip && rng.IntN(2) == 1 {
		img = images.FlipH(img)
	}
	return images.Distort(img, Uniform(rng, -p.Hue, p.Hue), RandScale(rng, p.Saturation), RandScale(rng, p.Exposure)), nil
}

// augmentSize is the side of augmented classification images: Params.Size or else the network width.
func (e *Engine) augmentSize() int {
	if e.Params.Size > 0 {
		return e.Params.Size
	}
	return e.Width
}

// AugmentedSize returns the length of the X row of augmented classification and tag samples.
func (e *Engine) AugmentedSize() int {
	s := e.augmentSize()
	return s * s * e.channels()
}

// ClassificationAugmented generates a classification sample with random scale, rotation, crop, flip and
// color distortion (see RandomAugment). The image is Params.Size x Params.Size.
func (e *Engine) ClassificationAugmented(rng *rand.Rand, path string, labels ClassificationLabels) (Sample, error) {
	var sample Sample
	img, err := e.augmented(rng, path)
	if err != nil {
		return sample, err
	}
	sample.X = images.FromImage(img, e.channels()).Data
	labels.fill(path, &sample)
	return sample, nil
}

// Tag generates a multi-label sample with k tags: the image is augmented as in ClassificationAugmented, and
// the truth is read from the tag file (see catalog.TagLabelPaths and truth.Tags).
func (e *Engine) Tag(rng *rand.Rand, path string, k int) (Sample, error) {
	var sample Sample
	img, err := e.augmented(rng, path)
	if err != nil {
		return sample, err
	}
	sample.X = images.FromImage(img, e.channels()).Data
	sample.Y = make([]float32, k)
	primary, fallback := catalog.TagLabelPaths(path)
	if !truth.Tags(primary, fallback, sample.Y) {
		sample.MissingLabels = true
	}
	return sample, nil
}

// Super generates a super-resolution sample: Y is a random crop of (Width*scale) x (Height*scale) of the
// image, randomly flipped, and X is the crop resized down to Width x Height.
func (e *Engine) Super(rng *rand.Rand, path string, scale int) (Sample, error) {
	var sample Sample
	orig, err := images.Open(path)
	if err != nil {
		return sample, err
	}
	cw, ch := e.Width*scale, e.Height*scale
	dx := rng.IntN(max(orig.Bounds().Dx()-cw, 0) + 1)
	dy := rng.IntN(max(orig.Bounds().Dy()-ch, 0) + 1)
	crop := images.Crop(orig, image.Rect(dx, dy, dx+cw, dy+ch))
	if e.Params.Flip && rng.IntN(2) == 1 {
		crop = images.FlipH(crop)
	}
	sample.X = images.FromImage(images.Resize(crop, e.Width, e.Height), e.channels()).Data
	sample.Y = images.FromImage(crop, e.channels()).Data
	return sample, nil
}

// Writing generates a segmentation sample: X is the image resized to the network size, and Y is the gray
// label image at labelPath resized to outW x outH.
func (e *Engine) Writing(path, labelPath string, outW, outH int) (Sample, error) {
	var sample Sample
	img, err := images.Load(path, e.Width, e.Height, e.channels())
	if err != nil {
		return sample, err
	}
	label, err := images.Load(labelPath, outW, outH, 1)
	if err != nil {
		return sample, err
	}
	sample.X, sample.Y = img.Data, label.Data
	return sample, nil
}

// RandomAugment scales, rotates and crops img into a size x size image:
//
//   - The aspect ratio is scaled by RandScale(aspect).
//   - The shorter side is scaled to a random length in [low, high] (size if high is 0).
//   - The image is rotated by a random angle in [-angle, angle] degrees.
//   - A size x size window is taken at a random offset from the center, within the scaled image.
func RandomAugment(rng *rand.Rand, img image.Image, angle, aspect float64, low, high, size int) *image.NRGBA {
	aspect = RandScale(rng, aspect)
	r := size
	if high > 0 {
		r = low + rng.IntN(max(high-low, 0)+1)
	}
	w, h := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	scale := float64(r) / min(h, w*aspect)
	rotation := Uniform(rng, -angle, angle)
	dx := (w*scale/aspect - float64(size)) / 2
	dy := (h*scale - float64(size)) / 2
	dx = Uniform(rng, -dx, dx)
	dy = Uniform(rng, -dy, dy)

	scaledW := max(int(math.Round(w*scale/aspect)), 1)
	scaledH := max(int(math.Round(h*scale)), 1)
	out := images.Rotate(images.Resize(img, scaledW, scaledH), rotation)
	cx := float64(out.Bounds().Dx())/2 + dx
	cy := float64(out.Bounds().Dy())/2 + dy
	left := int(math.Round(cx - float64(size)/2))
	top := int(math.Round(cy - float64(size)/2))
	return images.Crop(out, image.Rect(left, top, left+size, top+size))
}

// Raw loads the image at path and returns it at its original size and resized (or letterboxed) to
// width x height.
func Raw(path string, width, height, channels int, letterbox bool) (orig, resized *images.Image, err error) {
	img, err := images.Open(path)
	if err != nil {
		return nil, nil, err
	}
	var sized *image.NRGBA
	if letterbox {
		sized = images.Letterbox(img, width, height)
	} else {
		sized = images.Resize(img, width, height)
	}
	return images.FromImage(img, channels), images.FromImage(sized, channels), nil
}
