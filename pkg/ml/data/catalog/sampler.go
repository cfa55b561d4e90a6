// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MinPathLength is the length a path must exceed to be sampled: shorter paths are considered corrupt
// entries of the manifest.
const MinPathLength = 4

// ErrNoValidPaths is returned when a pool has no path longer than MinPathLength.
var ErrNoValidPaths = errors.New("no valid paths to sample from")

// Sampler draws paths for one shard of a batch. It owns its random stream and is not safe for concurrent use:
// each shard worker creates its own.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a Sampler drawing from rng.
func NewSampler(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

func isValidPath(p string) bool {
	return len(p) > MinPathLength
}

func checkPool(pool []string) error {
	for _, p := range pool {
		if isValidPath(p) {
			return nil
		}
	}
	return errors.Wrapf(ErrNoValidPaths, "pool of %d paths", len(pool))
}

// Random draws n paths uniformly with replacement from pool.
//
// Draws that hit a path of length <= MinPathLength are logged and redrawn, so they are never returned.
func (s *Sampler) Random(pool []string, n int) ([]string, error) {
	if err := checkPool(pool); err != nil {
		return nil, err
	}
	paths := make([]string, n)
	for i := range paths {
		for {
			p := pool[s.rng.IntN(len(pool))]
			if isValidPath(p) {
				paths[i] = p
				break
			}
			if p != "" {
				klog.Warningf("catalog: very small path to the image %q, resampling", p)
			}
		}
	}
	return paths, nil
}

// Sequential draws n paths for temporally correlated ("tracking") training.
//
// miniBatch timelines start at independent random positions of pool, and all advance by the same stride,
// drawn uniformly from [1, speed]. Sample i is taken from timeline i % miniBatch, which then advances by
// the stride (wrapping around pool). Invalid paths are skipped, advancing the timeline.
// Timelines are restarted at random positions on every call.
func (s *Sampler) Sequential(pool []string, n, miniBatch, speed int) ([]string, error) {
	if err := checkPool(pool); err != nil {
		return nil, err
	}
	miniBatch = max(miniBatch, 1)
	stride := 1
	if speed > 1 {
		stride = 1 + s.rng.IntN(speed)
	}
	m := len(pool)
	starts := make([]int, miniBatch)
	for i := range starts {
		starts[i] = s.rng.IntN(m)
	}
	paths := make([]string, n)
	for i := range paths {
		timeline := i % miniBatch
		for attempt := 1; ; attempt++ {
			index := starts[timeline] % m
			starts[timeline] = index + stride
			if attempt%m == 0 {
				// The stride may cycle over invalid paths only: shift the timeline.
				starts[timeline]++
			}
			p := pool[index]
			if isValidPath(p) {
				paths[i] = p
				break
			}
			if p != "" {
				klog.Warningf("catalog: very small path to the image %q, skipping", p)
			}
		}
	}
	return paths, nil
}
