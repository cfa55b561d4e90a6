// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/imgpipe/pkg/ml/data/augment"
)

// Report summarizes the production of one batch: samples and boxes that were skipped or modified.
type Report struct {
	Kind Kind

	// Requested rows, and Produced rows: the difference are zero-filled rows of skipped samples.
	Requested, Produced int

	// SkippedSamples are samples whose image could not be decoded: their rows are zero.
	SkippedSamples int

	// MissingLabels is the number of samples without label file: their truth is empty.
	MissingLabels int

	// SkippedBoxes, ClampedBoxes and Malformed annotations over all samples.
	SkippedBoxes, ClampedBoxes, Malformed int

	// Mixup is the number of shards whose samples were blended with a second image.
	Mixup int

	// Elapsed time producing the batch.
	Elapsed time.Duration

	Shards []ShardReport
}

// ShardReport describes the rows produced by one shard.
type ShardReport struct {
	// Index of the shard and Start, its first row in the batch.
	Index, Start int

	// Rows in the shard and Skipped rows (left zero-filled).
	Rows, Skipped int

	// Mixup is set if the shard blended its samples with a second image.
	Mixup bool

	// Partial is set if some of the rows of the shard were skipped.
	Partial bool
}

// addSample accumulates the counts of one generated sample.
func (r *Report) addSample(sample *augment.Sample) {
	if sample.MissingLabels {
		r.MissingLabels++
	}
	if sample.MalformedLabels {
		r.Malformed++
	}
	r.SkippedBoxes += sample.Boxes.Skipped
	r.ClampedBoxes += sample.Boxes.Clamped
	r.Malformed += sample.Boxes.Malformed
}

// merge accumulates the counts of a shard report into r.
func (r *Report) merge(shard *Report) {
	r.SkippedSamples += shard.SkippedSamples
	r.MissingLabels += shard.MissingLabels
	r.SkippedBoxes += shard.SkippedBoxes
	r.ClampedBoxes += shard.ClampedBoxes
	r.Malformed += shard.Malformed
	r.Mixup += shard.Mixup
	r.Shards = append(r.Shards, shard.Shards...)
}

// PartialShards returns the number of shards with skipped rows.
func (r *Report) PartialShards() int {
	var count int
	for _, s := range r.Shards {
		if s.Partial {
			count++
		}
	}
	return count
}

// String implements fmt.Stringer.
func (r *Report) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s batch: %s/%s rows produced", r.Kind,
		humanize.Comma(int64(r.Produced)), humanize.Comma(int64(r.Requested)))
	if r.SkippedSamples > 0 {
		_, _ = fmt.Fprintf(&sb, ", %d skipped samples in %d/%d shards", r.SkippedSamples, r.PartialShards(), len(r.Shards))
	}
	if r.MissingLabels > 0 {
		_, _ = fmt.Fprintf(&sb, ", %d missing label files", r.MissingLabels)
	}
	if r.SkippedBoxes+r.ClampedBoxes+r.Malformed > 0 {
		_, _ = fmt.Fprintf(&sb, ", boxes: %d skipped, %d clamped, %d malformed", r.SkippedBoxes, r.ClampedBoxes, r.Malformed)
	}
	if r.Mixup > 0 {
		_, _ = fmt.Fprintf(&sb, ", mixup in %d/%d shards", r.Mixup, len(r.Shards))
	}
	if r.Elapsed > 0 {
		_, _ = fmt.Fprintf(&sb, " (%s)", r.Elapsed.Round(time.Millisecond))
	}
	return sb.String()
}
