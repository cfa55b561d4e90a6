// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package truth

import (
	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/ml/data/boxes"
	"k8s.io/klog/v2"
)

// DetectionSlotSize is the number of values per box in a detection truth: x, y, w, h, class_id.
const DetectionSlotSize = 5

// DetectionConfig configures the Detection encoder.
type DetectionConfig struct {
	// NumBoxes is the number of slots in the truth.
	NumBoxes int

	// Classes is the number of classes: class ids must be in [0, Classes).
	Classes int

	// NetWidth and NetHeight are the network input dimensions: boxes smaller than one pixel are dropped.
	NetWidth, NetHeight int

	// LabelPath and Log are used to record malformed annotations. Log may be nil.
	LabelPath string
	Log       *badlog.Log
}

// Detection encodes up to cfg.NumBoxes labels into slots of [x, y, w, h, class_id]; the remaining slots are
// left zero. Only the first cfg.NumBoxes labels are considered (shuffle them before, to vary the subset).
//
// Labels are skipped if their class id is out of range, if they were dropped during correction, if they
// are smaller than one network pixel or if their center is outside [0, 1]. Width and height are clamped to
// 1, and a center exactly at 0 is nudged by one pixel, so a populated slot never has x == 0.
func Detection(labels []boxes.Label, row []float32, cfg DetectionConfig) Stats {
	var stats Stats
	if len(labels) > cfg.NumBoxes {
		stats.Skipped += len(labels) - cfg.NumBoxes
		labels = labels[:cfg.NumBoxes]
	}
	lowestW := 1 / float32(cfg.NetWidth)
	lowestH := 1 / float32(cfg.NetHeight)
	slot := 0
	for _, l := range labels {
		if l.ID < 0 || l.ID >= cfg.Classes {
			reportBad(cfg.LabelPath, cfg.Log, "Wrong annotation: class_id = %d. But class_id should be [from 0 to %d]",
				l.ID, cfg.Classes-1)
			stats.Skipped++
			stats.Malformed++
			continue
		}
		if l.IsDropped() {
			if l.Drop == boxes.DropPlaceholder {
				reportBad(cfg.LabelPath, cfg.Log, "Wrong annotation: x = 0 or y = 0")
				stats.Malformed++
			}
			stats.Skipped++
			continue
		}
		x, y, w, h := l.X, l.Y, l.W, l.H
		if w < lowestW || h < lowestH {
			stats.Skipped++
			continue
		}
		if x < 0 || x > 1 || y < 0 || y > 1 {
			reportBad(cfg.LabelPath, cfg.Log, "Wrong annotation: x = %f, y = %f", x, y)
			stats.Skipped++
			stats.Malformed++
			continue
		}
		if w > 1 || h > 1 {
			reportBad(cfg.LabelPath, cfg.Log, "Wrong annotation: w = %f, h = %f", w, h)
			w, h = min(w, 1), min(h, 1)
			stats.Clamped++
			stats.Malformed++
		}
		if x == 0 {
			x += lowestW
		}
		if y == 0 {
			y += lowestH
		}
		s := row[slot*DetectionSlotSize : (slot+1)*DetectionSlotSize]
		s[0], s[1], s[2], s[3], s[4] = x, y, w, h, float32(l.ID)
		slot++
		stats.Written++
	}
	return stats
}

func reportBad(labelPath string, log *badlog.Log, format string, args ...any) {
	klog.Warningf("truth: %q: "+format, append([]any{labelPath}, args...)...)
	log.BadLabel(labelPath, format, args...)
}

// MaxSwagBoxes is the capacity of a swag truth.
const MaxSwagBoxes = 30

// SwagSize returns the length of a swag truth row.
func SwagSize(classes int) int {
	return MaxSwagBoxes * (4 + classes)
}

// Swag encodes up to MaxSwagBoxes labels into slots of [x, y, w, h, one-hot(classes)].
// Dropped labels are skipped; class ids out of range leave the one-hot empty.
func Swag(labels []boxes.Label, row []float32, classes int) Stats {
	var stats Stats
	slotSize := 4 + classes
	slot := 0
	for _, l := range labels {
		if slot >= MaxSwagBoxes || l.IsDropped() {
			stats.Skipped++
			continue
		}
		s := row[slot*slotSize : (slot+1)*slotSize]
		s[0], s[1], s[2], s[3] = l.X, l.Y, l.W, l.H
		if l.ID >= 0 && l.ID < classes {
			s[4+l.ID] = 1
		}
		slot++
		stats.Written++
	}
	return stats
}

// Blend merges the boxes of oldTruth into newTruth, both detection truths with numBoxes slots. It is used
// by mixup, when two images are blended into one sample.
//
// The populated leading slots of newTruth (x != 0) are kept, and the following slots are filled with the
// leading populated slots of oldTruth, until either runs out of slots or oldTruth has an empty slot.
// It returns the number of populated slots in newTruth after the merge.
func Blend(newTruth []float32, numBoxes int, oldTruth []float32) int {
	count := 0
	for count < numBoxes && newTruth[count*DetectionSlotSize] != 0 {
		count++
	}
	for src := 0; count < numBoxes; src, count = src+1, count+1 {
		from := oldTruth[src*DetectionSlotSize : (src+1)*DetectionSlotSize]
		if from[0] == 0 {
			break
		}
		copy(newTruth[count*DetectionSlotSize:(count+1)*DetectionSlotSize], from)
	}
	return count
}
