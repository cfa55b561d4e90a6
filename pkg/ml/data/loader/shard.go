// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"math/rand/v2"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/imgpipe/pkg/ml/data/augment"
	"github.com/gomlx/imgpipe/pkg/ml/data/catalog"
	"github.com/gomlx/imgpipe/pkg/ml/data/truth"
	"github.com/gomlx/imgpipe/pkg/ml/datasets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// shard produces the rows [start, start+n) of a batch, with its own random stream.
type shard struct {
	task    *Task
	engine  *augment.Engine
	rng     *rand.Rand
	sampler *catalog.Sampler

	index, start, n int

	data   *datasets.Dataset
	report Report
}

func newShard(task *Task, engine *augment.Engine, rng *rand.Rand, index, start, n int) *shard {
	s := &shard{
		task:    task,
		engine:  engine,
		rng:     rng,
		sampler: catalog.NewSampler(rng),
		index:   index,
		start:   start,
		n:       n,
	}
	xCols, yCols := task.Columns()
	s.data = datasets.New(n, xCols, yCols)
	s.data.Width, s.data.Height = task.Width, task.Height
	return s
}

// run generates the rows of the shard. Panics are converted to errors.
func (s *shard) run(ctx context.Context) (err error) {
	var genErr error
	err = exceptions.TryCatch[error](func() {
		genErr = s.generate(ctx)
	})
	if err == nil {
		err = genErr
	}
	rows := s.n - s.report.SkippedSamples
	s.report.Shards = []ShardReport{{
		Index:   s.index,
		Start:   s.start,
		Rows:    rows,
		Skipped: s.report.SkippedSamples,
		Mixup:   s.report.Mixup > 0,
		Partial: s.report.SkippedSamples > 0 || err != nil,
	}}
	if err != nil {
		err = errors.WithMessagef(err, "shard #%d (rows %d to %d)", s.index, s.start, s.start+s.n)
	}
	return
}

// paths returns the paths used for the rows of the shard. The mixup pass always samples its paths.
func (s *shard) paths(mixupPass bool) ([]string, error) {
	t := s.task
	switch {
	case t.Ordered && !mixupPass:
		return t.Paths[s.start : s.start+s.n], nil
	case t.Augment.Track:
		return s.sampler.Sequential(t.Paths, s.n, t.MiniBatch, t.AugmentSpeed)
	default:
		return s.sampler.Random(t.Paths, s.n)
	}
}

func (s *shard) generate(ctx context.Context) error {
	t := s.task
	passes := 1
	if t.Kind == Detection && t.Augment.Mixup && s.rng.IntN(2) == 1 {
		passes = 2
		s.report.Mixup = 1
	}
	skipped := make([]bool, s.n)
	for pass := range passes {
		paths, err := s.paths(pass > 0)
		if err != nil {
			return err
		}
		var labelPaths []string
		if t.Kind == Writing {
			labelPaths = catalog.ReplacePaths(paths, ".png", "-label.png")
		}

		var draw augment.Draw
		drawn := false
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped[i] {
				// Rows without a first image stay zero-filled.
				continue
			}
			if t.Kind == Detection && (!drawn || !t.Augment.Track) {
				draw = augment.NewDraw(s.rng, t.Augment)
				drawn = true
			}
			var labelPath string
			if labelPaths != nil {
				labelPath = labelPaths[i]
			}
			sample, err := s.sample(path, labelPath, draw)
			if err != nil {
				if t.CheckMistakes {
					return err
				}
				klog.Warningf("skipping sample %q: %v", path, err)
				if pass == 0 {
					skipped[i] = true
					s.report.SkippedSamples++
				}
				continue
			}
			s.report.addSample(&sample)
			if t.CheckMistakes && (sample.MalformedLabels || sample.Boxes.Malformed > 0) {
				return errors.Wrapf(truth.ErrBadAnnotation, "in labels of %q", path)
			}
			s.store(i, pass, &sample)
		}
	}
	if s.engine.DumpDir != "" {
		for i := range s.n {
			if _, err := s.engine.DumpDetection(s.data.X.Vals[i], s.data.Y.Vals[i]); err != nil {
				klog.Warningf("failed to dump augmented sample: %+v", err)
			}
		}
	}
	return nil
}

// store the sample in row i of the shard, blending it with the existing row on the mixup pass.
func (s *shard) store(i, pass int, sample *augment.Sample) {
	x, y := s.data.X.Vals[i], s.data.Y.Vals[i]
	if len(sample.X) != len(x) || len(sample.Y) != len(y) {
		exceptions.Panicf("%s sample has %d values of X and %d of Y, expected %d and %d",
			s.task.Kind, len(sample.X), len(sample.Y), len(x), len(y))
	}
	if pass == 0 {
		copy(x, sample.X)
		copy(y, sample.Y)
		return
	}
	augment.Mixup(x, y, sample.X, sample.Y, s.task.NumBoxes)
}

// sample generates one sample for the task kind.
func (s *shard) sample(path, labelPath string, draw augment.Draw) (augment.Sample, error) {
	t, e := s.task, s.engine
	switch t.Kind {
	case Classification:
		return e.Classification(path, t.classificationLabels())
	case ClassificationAugmented:
		return e.ClassificationAugmented(s.rng, path, t.classificationLabels())
	case Region:
		return e.Region(s.rng, path)
	case Detection:
		return e.Detection(s.rng, path, draw)
	case Super:
		return e.Super(s.rng, path, t.Scale)
	case Swag:
		return e.Swag(s.rng, path)
	case Tag:
		return e.Tag(s.rng, path, t.Classes)
	case Writing:
		w, h := t.outSize()
		return e.Writing(path, labelPath, w, h)
	}
	exceptions.Panicf("task kind %s not supported", t.Kind)
	return augment.Sample{}, nil
}
