// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package catalog loads the list of training image paths from a manifest, samples paths for a batch and maps
// image paths to the paths of their label files.
package catalog

import (
	"strings"

	"github.com/gomlx/imgpipe/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LoadPaths reads a manifest file with one image path per line.
//
// Lines are trimmed of surrounding white space (including a trailing "\r"). Empty lines are kept: the
// samplers never return them. A missing manifest is an error, since there is nothing to train on.
func LoadPaths(manifest string) ([]string, error) {
	paths, err := fsutil.ReadLines(manifest)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load manifest of image paths")
	}
	klog.V(1).Infof("catalog: loaded %d paths from %q", len(paths), manifest)
	return paths, nil
}

// LoadLabels reads the list of class names, one per line, used for classification tasks. Empty lines are
// dropped.
func LoadLabels(path string) ([]string, error) {
	lines, err := fsutil.ReadLines(path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load class labels")
	}
	labels := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			labels = append(labels, line)
		}
	}
	return labels, nil
}

// labelDirReplacements are applied in order, each to its first occurrence, to map an image path to its
// label path. Both "/" and "\" separated variants of the known dataset layouts are covered.
var labelDirReplacements = [][2]string{
	{"/images/train2014/", "/labels/train2014/"}, // COCO
	{"/images/val2014/", "/labels/val2014/"},
	{"/JPEGImages/", "/labels/"}, // Pascal VOC
	{`\images\train2014\`, `\labels\train2014\`},
	{`\images\val2014\`, `\labels\val2014\`},
	{`\JPEGImages\`, `\labels\`},
}

// imageExtensions replaced by ".txt" when they are the suffix of the path.
var imageExtensions = []string{
	".jpg", ".JPG", ".jpeg", ".JPEG", ".png", ".PNG", ".bmp", ".BMP", ".ppm", ".PPM", ".tiff", ".TIFF",
}

// LabelPath returns the path of the label file for the given image path.
//
// It is a pure function of the path: known dataset directories ("JPEGImages", "images/train2014", ...) are
// mapped to their "labels" counterpart, and the image extension is replaced by ".txt".
func LabelPath(imagePath string) string {
	p := imagePath
	for _, r := range labelDirReplacements {
		p = strings.Replace(p, r[0], r[1], 1)
	}
	p = strings.TrimSpace(p)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(p, ext) {
			return p[:len(p)-len(ext)] + ".txt"
		}
	}
	return p
}

// TagLabelPaths returns the primary and fallback label paths of an image used for multi-label (tag)
// training: "imgs" is mapped to "labels" and "_iconl.jpeg" to ".txt"; the fallback replaces "labels" by
// "labels2".
func TagLabelPaths(imagePath string) (primary, fallback string) {
	primary = strings.Replace(imagePath, "imgs", "labels", 1)
	primary = strings.Replace(primary, "_iconl.jpeg", ".txt", 1)
	fallback = strings.Replace(primary, "labels", "labels2", 1)
	return
}

// ReplacePaths returns a new slice with the first occurrence of find replaced by replace in every path.
// E.g.: ReplacePaths(paths, ".png", "-label.png") gives the segmentation masks of the images.
func ReplacePaths(paths []string, find, replace string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.Replace(p, find, replace, 1)
	}
	return out
}
