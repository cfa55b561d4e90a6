// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"fmt"
	"strings"

	"github.com/gomlx/imgpipe/pkg/ml/data/augment"
	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/ml/data/catalog"
	"github.com/gomlx/imgpipe/pkg/ml/data/truth"
	"github.com/pkg/errors"
)

// Kind of the training task: it selects how samples are augmented and how their truth is encoded.
type Kind int

const (
	// Classification samples are resized images with a one-hot truth over Task.Labels.
	Classification Kind = iota

	// ClassificationAugmented samples are randomly scaled, rotated, cropped, flipped and color distorted,
	// with a one-hot truth optionally propagated through Task.Hierarchy.
	ClassificationAugmented

	// Region samples have a Task.NumBoxes x Task.NumBoxes grid truth, one object per cell.
	Region

	// Detection samples have Task.NumBoxes slots of [x, y, w, h, class_id].
	Detection

	// Super samples are a low resolution image (X) and its high resolution crop (Y).
	Super

	// Swag samples have up to 30 slots of [x, y, w, h, one-hot(classes)].
	Swag

	// Tag samples have a multi-label truth over Task.Classes tags.
	Tag

	// Writing samples have a gray segmentation mask ("-label.png" next to the image) as truth.
	Writing
)

var kindNames = []string{"classification", "classification_augmented", "region", "detection", "super", "swag",
	"tag", "writing"}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a name, as returned by Kind.String, to a Kind. It is case-insensitive.
func ParseKind(name string) (Kind, error) {
	for k, kindName := range kindNames {
		if strings.EqualFold(name, kindName) {
			return Kind(k), nil
		}
	}
	return 0, errors.Errorf("unknown task kind %q, valid values are %q", name, kindNames)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	var err error
	*k, err = ParseKind(string(text))
	return err
}

// Task describes the batches to produce. A Task is not modified by the Scheduler, and it can be reused
// for any number of batches.
type Task struct {
	Kind Kind `toml:"kind"`

	// Paths of the images to sample from. If empty, Resolve loads them from Manifest.
	Paths    []string `toml:"-"`
	Manifest string   `toml:"manifest"`

	// N is the number of samples (rows) per batch.
	N int `toml:"batch_size"`

	// Width, Height and Channels of the network input. Channels defaults to 3.
	Width    int `toml:"width"`
	Height   int `toml:"height"`
	Channels int `toml:"channels"`

	// Classes is the number of object classes (or tags, for Tag tasks).
	Classes int `toml:"classes"`

	// NumBoxes is the number of detection slots, or the grid size for Region tasks.
	NumBoxes int `toml:"num_boxes"`

	// Labels are the class names of classification tasks, matched against the image paths. If empty,
	// Resolve loads them from LabelsFile.
	Labels     []string `toml:"-"`
	LabelsFile string   `toml:"labels"`

	// Hierarchy of the classes, used by ClassificationAugmented. If nil, Resolve loads it from HierarchyFile,
	// if set.
	Hierarchy     *truth.Tree `toml:"-"`
	HierarchyFile string      `toml:"hierarchy"`

	// Augment holds the augmentation parameters.
	Augment augment.Params `toml:"augment"`

	// Scale is the up-scaling factor of Super tasks.
	Scale int `toml:"scale"`

	// OutW and OutH are the size of the mask of Writing tasks. They default to Width and Height.
	OutW int `toml:"out_width"`
	OutH int `toml:"out_height"`

	// Threads is the number of shards a batch is split into, each produced by its own goroutine.
	Threads int `toml:"threads"`

	// MiniBatch and AugmentSpeed configure the path sampling when Augment.Track is set: MiniBatch
	// timelines advance through Paths in steps of 1 to AugmentSpeed.
	MiniBatch    int `toml:"mini_batch"`
	AugmentSpeed int `toml:"augment_speed"`

	// Ordered takes the paths in order instead of sampling them: shard i uses the paths starting at the
	// first row of the shard. Requires at least N paths.
	Ordered bool `toml:"ordered"`

	// CheckMistakes makes malformed annotations and undecodable images fail the batch, instead of being
	// skipped and logged.
	CheckMistakes bool `toml:"check_mistakes"`

	// DumpDir, if set, is where detection samples are saved as images with their boxes drawn.
	DumpDir string `toml:"dump_dir"`
}

// Resolve loads Paths, Labels and Hierarchy from their files, if they are not set yet.
func (t *Task) Resolve() error {
	var err error
	if len(t.Paths) == 0 && t.Manifest != "" {
		if t.Paths, err = catalog.LoadPaths(t.Manifest); err != nil {
			return err
		}
	}
	if len(t.Labels) == 0 && t.LabelsFile != "" {
		if t.Labels, err = catalog.LoadLabels(t.LabelsFile); err != nil {
			return err
		}
	}
	if t.Hierarchy == nil && t.HierarchyFile != "" {
		if t.Hierarchy, err = truth.LoadTree(t.HierarchyFile); err != nil {
			return err
		}
	}
	return nil
}

// Validate returns an error if the task can't be used to produce batches.
func (t *Task) Validate() error {
	if t.Kind < Classification || t.Kind > Writing {
		return errors.Errorf("invalid task kind %s", t.Kind)
	}
	if t.N <= 0 {
		return errors.Errorf("batch size must be positive, got %d", t.N)
	}
	if len(t.Paths) == 0 {
		return errors.Wrapf(catalog.ErrNoValidPaths, "task %s has no paths (set Paths or Manifest and call Resolve)", t.Kind)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return errors.Errorf("invalid network size %dx%d", t.Width, t.Height)
	}
	if t.Channels != 0 && t.Channels != 1 && t.Channels != 3 && t.Channels != 4 {
		return errors.Errorf("invalid number of channels %d: must be 1, 3 or 4", t.Channels)
	}
	if t.Threads < 0 {
		return errors.Errorf("invalid number of threads %d", t.Threads)
	}
	if t.Ordered && len(t.Paths) < t.N {
		return errors.Errorf("ordered task needs at least %d paths, got %d", t.N, len(t.Paths))
	}
	if t.Augment.Track && (t.MiniBatch <= 0 || t.AugmentSpeed <= 0) {
		return errors.Errorf("tracking requires positive MiniBatch and AugmentSpeed, got %d and %d",
			t.MiniBatch, t.AugmentSpeed)
	}
	switch t.Kind {
	case Classification, ClassificationAugmented:
		if len(t.Labels) == 0 {
			return errors.Errorf("task %s needs class names (Labels or LabelsFile)", t.Kind)
		}
	case Region, Detection:
		if t.Classes <= 0 || t.NumBoxes <= 0 {
			return errors.Errorf("task %s needs positive Classes and NumBoxes, got %d and %d", t.Kind, t.Classes, t.NumBoxes)
		}
	case Swag, Tag:
		if t.Classes <= 0 {
			return errors.Errorf("task %s needs positive Classes, got %d", t.Kind, t.Classes)
		}
	case Super:
		if t.Scale <= 0 {
			return errors.Errorf("task %s needs a positive Scale, got %d", t.Kind, t.Scale)
		}
	}
	return nil
}

// threads returns the number of shards, at least 1 and at most N.
func (t *Task) threads() int {
	return min(max(t.Threads, 1), t.N)
}

func (t *Task) outSize() (int, int) {
	w, h := t.OutW, t.OutH
	if w <= 0 {
		w = t.Width
	}
	if h <= 0 {
		h = t.Height
	}
	return w, h
}

func (t *Task) classificationLabels() augment.ClassificationLabels {
	return augment.ClassificationLabels{Names: t.Labels, Tree: t.Hierarchy}
}

// engine returns the augmentation engine configured for the task.
func (t *Task) engine(log *badlog.Log) *augment.Engine {
	e := &augment.Engine{
		Width:    t.Width,
		Height:   t.Height,
		Channels: t.Channels,
		Classes:  t.Classes,
		NumBoxes: t.NumBoxes,
		Params:   t.Augment,
		Log:      log,
	}
	if t.Kind == Detection {
		e.DumpDir = t.DumpDir
	}
	return e
}

func (t *Task) channels() int {
	if t.Channels <= 0 {
		return 3
	}
	return t.Channels
}

// Columns returns the number of columns of X and Y of the batches of the task.
func (t *Task) Columns() (xCols, yCols int) {
	xCols = t.Width * t.Height * t.channels()
	switch t.Kind {
	case Classification:
		yCols = t.classificationLabels().Size()
	case ClassificationAugmented:
		xCols = t.engine(nil).AugmentedSize()
		yCols = t.classificationLabels().Size()
	case Tag:
		xCols = t.engine(nil).AugmentedSize()
		yCols = t.Classes
	case Region:
		yCols = truth.RegionSize(t.Classes, t.NumBoxes)
	case Detection:
		yCols = t.NumBoxes * truth.DetectionSlotSize
	case Swag:
		yCols = truth.SwagSize(t.Classes)
	case Super:
		yCols = xCols * t.Scale * t.Scale
	case Writing:
		w, h := t.outSize()
		yCols = w * h
	}
	return
}
