// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package loader produces batches of training data for a Task, splitting each batch into shards that are
// generated concurrently and merged into one datasets.Dataset.
//
// Example: prefetch the next batch while training on the current one:
//
//	s := loader.New(loader.WithSeed(42), loader.WithBadLog(badlog.New(".")))
//	next := s.LoadAsync(ctx, task)
//	for step := range numSteps {
//		batch, report, err := next.Wait()
//		if err != nil {
//			return err
//		}
//		next = s.LoadAsync(ctx, task)
//		klog.V(1).Infof("step %d: %s", step, report)
//		train(batch)
//		_ = batch.Free()
//	}
package loader

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomlx/imgpipe/internal/workerspool"
	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/ml/datasets"
	"github.com/gomlx/imgpipe/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Scheduler produces batches for tasks. It is safe for concurrent use.
type Scheduler struct {
	seed    uint64
	pool    *workerspool.Pool
	log     *badlog.Log
	batches atomic.Uint64
}

// Option configures a Scheduler.
type Option func(s *Scheduler)

// WithSeed sets the master seed: batch b, shard i uses a random stream seeded with (seed, b, i), so the
// batches are reproducible given the sequence of calls. The default is a random seed.
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) { s.seed = seed }
}

// WithMaxParallelism limits the number of shards being generated at the same time, across all batches.
// 0 generates the shards sequentially in the calling goroutine and a negative value means no limit.
// The default is runtime.NumCPU().
func WithMaxParallelism(n int) Option {
	return func(s *Scheduler) { s.pool = workerspool.New(n) }
}

// WithBadLog sets where missing label files and malformed annotations are recorded. The default
// discards them (they are still logged with klog).
func WithBadLog(log *badlog.Log) Option {
	return func(s *Scheduler) { s.log = log }
}

// New returns a Scheduler configured with the given options.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{seed: rand.Uint64()}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = workerspool.NewDefault()
	}
	return s
}

// Seed returns the master seed of the scheduler.
func (s *Scheduler) Seed() uint64 { return s.seed }

// shardRand returns the random stream of a shard of a batch.
func (s *Scheduler) shardRand(batch uint64, shard int) *rand.Rand {
	return rand.New(rand.NewPCG(s.seed, batch<<32|uint64(shard)))
}

// Load produces one batch of task.N rows, split in task.Threads shards of sizes (i+1)*N/T - i*N/T.
//
// The returned dataset is Owned: the caller must Free it when done. Samples that fail (undecodable
// images) leave zero-filled rows, and are counted in the Report. An error is returned if the task is
// invalid, if ctx is cancelled, or if a shard fails (it panics, or Task.CheckMistakes is set and a
// mistake was found).
func (s *Scheduler) Load(ctx context.Context, task *Task) (*datasets.Dataset, *Report, error) {
	return s.load(ctx, task, s.nextBatch())
}

// nextBatch reserves the index of the next batch, which selects the random streams of its shards.
func (s *Scheduler) nextBatch() uint64 {
	return s.batches.Add(1) - 1
}

func (s *Scheduler) load(ctx context.Context, task *Task, batch uint64) (*datasets.Dataset, *Report, error) {
	if err := task.Validate(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	engine := task.engine(s.log)
	numShards := task.threads()
	shards := make([]*shard, numShards)
	errs := make([]error, numShards)
	var wg sync.WaitGroup
	var startErr error
	for i := range numShards {
		first := i * task.N / numShards
		n := (i+1)*task.N/numShards - first
		shards[i] = newShard(task, engine, s.shardRand(batch, i), i, first, n)
		wg.Add(1)
		err := s.pool.WaitToStart(ctx, func() {
			defer wg.Done()
			errs[i] = shards[i].run(ctx)
		})
		if err != nil {
			wg.Done()
			startErr = errors.WithMessagef(err, "failed to start shard #%d of batch %d", i, batch)
			break
		}
	}
	wg.Wait()

	err := startErr
	for _, shardErr := range errs {
		if shardErr == nil {
			continue
		}
		if err == nil {
			err = shardErr
		} else {
			klog.Errorf("loader: batch %d: %v", batch, shardErr)
		}
	}
	if err != nil {
		klog.Errorf("loader: batch %d of %s failed: %v", batch, task.Kind, err)
		return nil, nil, err
	}

	report := &Report{Kind: task.Kind, Requested: task.N}
	parts := make([]*datasets.Dataset, numShards)
	for i, sh := range shards {
		report.merge(&sh.report)
		parts[i] = sh.data
	}
	data, err := datasets.Merge(parts...)
	if err != nil {
		return nil, nil, err
	}
	data.Width, data.Height = task.Width, task.Height
	report.Produced = report.Requested - report.SkippedSamples
	report.Elapsed = time.Since(start)
	klog.V(1).Infof("loader: batch %d: %s", batch, report)
	return data, report, nil
}

// Handle to a batch being produced in the background.
type Handle struct {
	future *xsync.Future[*result]
}

type result struct {
	data   *datasets.Dataset
	report *Report
}

// LoadAsync starts producing a batch in the background, and returns immediately a handle to wait for it.
// See Load.
//
// The batch takes its place in the sequence of batches of the Scheduler when LoadAsync is called, so with
// a fixed seed the handles yield the same batches as the same sequence of Load calls, regardless of the
// order in which they finish.
func (s *Scheduler) LoadAsync(ctx context.Context, task *Task) *Handle {
	batch := s.nextBatch()
	return &Handle{future: xsync.Go(func() (*result, error) {
		data, report, err := s.load(ctx, task, batch)
		if err != nil {
			return nil, err
		}
		return &result{data: data, report: report}, nil
	})}
}

// Wait blocks until the batch is ready and returns it, as in Scheduler.Load.
// It can be called any number of times, always returning the same values.
func (h *Handle) Wait() (*datasets.Dataset, *Report, error) {
	r, err := h.future.Wait()
	if err != nil {
		return nil, nil, err
	}
	return r.data, r.report, nil
}

// Done returns a channel closed when the batch is ready.
func (h *Handle) Done() <-chan struct{} {
	return h.future.Done()
}
