// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"io"

	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/imgpipe/pkg/ml/datasets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TrainDataset adapts a Scheduler and a Task to a GoMLX train.Dataset: each Yield returns one batch, with
// the next batch being produced in the background while the current one is used.
//
// Inputs and labels are tensors shaped [Task.N, xCols] and [Task.N, yCols] (see Task.Columns).
type TrainDataset struct {
	name      string
	ctx       context.Context
	scheduler *Scheduler
	task      *Task

	numBatches, yielded int
	half                bool

	next       *Handle
	lastReport *Report
}

var _ train.Dataset = (*TrainDataset)(nil)

// NewTrainDataset returns a dataset yielding batches of task, produced by s. The batches are produced
// until ctx is cancelled, or indefinitely. See also TrainDataset.WithEpochSize.
func NewTrainDataset(ctx context.Context, name string, s *Scheduler, task *Task) *TrainDataset {
	return &TrainDataset{name: name, ctx: ctx, scheduler: s, task: task}
}

// WithEpochSize makes Yield return io.EOF after numBatches batches, until Reset is called.
// 0 means the dataset never ends.
func (ds *TrainDataset) WithEpochSize(numBatches int) *TrainDataset {
	ds.numBatches = numBatches
	return ds
}

// Float16 makes the inputs half precision (dtypes.Float16) tensors. Labels remain float32.
func (ds *TrainDataset) Float16() *TrainDataset {
	ds.half = true
	return ds
}

// Name implements train.Dataset.
func (ds *TrainDataset) Name() string { return ds.name }

// Reset implements train.Dataset. It restarts the epoch count; a batch already being prefetched is kept.
func (ds *TrainDataset) Reset() {
	ds.yielded = 0
}

// LastReport returns the report of the last yielded batch, or nil.
func (ds *TrainDataset) LastReport() *Report { return ds.lastReport }

// Yield implements train.Dataset. The spec is the task kind.
func (ds *TrainDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if ds.numBatches > 0 && ds.yielded >= ds.numBatches {
		return nil, nil, nil, io.EOF
	}
	if ds.next == nil {
		ds.next = ds.scheduler.LoadAsync(ds.ctx, ds.task)
	}
	data, report, err := ds.next.Wait()
	ds.next = nil
	if err != nil {
		return nil, nil, nil, errors.WithMessagef(err, "dataset %q", ds.name)
	}
	ds.yielded++
	if ds.numBatches == 0 || ds.yielded < ds.numBatches {
		ds.next = ds.scheduler.LoadAsync(ds.ctx, ds.task)
	}
	ds.lastReport = report
	klog.V(2).Infof("dataset %q: %s", ds.name, report)

	inputs, labels = ds.toTensors(data)
	if err = data.Free(); err != nil {
		return nil, nil, nil, err
	}
	return ds.task.Kind.String(), inputs, labels, nil
}

func (ds *TrainDataset) toTensors(data *datasets.Dataset) (inputs, labels []*tensors.Tensor) {
	rows := data.Len()
	var x *tensors.Tensor
	if ds.half {
		half := data.X.Float16()
		flat := make([]float16.Float16, len(half))
		for i, h := range half {
			flat[i] = float16.FromBits(h.Bits())
		}
		x = tensors.FromFlatDataAndDimensions(flat, rows, data.X.Cols)
	} else {
		x = tensors.FromFlatDataAndDimensions(data.X.Flat(), rows, data.X.Cols)
	}
	y := tensors.FromFlatDataAndDimensions(data.Y.Flat(), rows, data.Y.Cols)
	return []*tensors.Tensor{x}, []*tensors.Tensor{y}
}
