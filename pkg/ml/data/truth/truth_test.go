// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package truth

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/ml/data/boxes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	labels := []string{"cat", "dog", "bird"}
	row := make([]float32, len(labels))
	assert.Equal(t, 1, Classification("/data/train/dog_001.jpg", labels, row))
	assert.Equal(t, []float32{0, 1, 0}, row)

	row = make([]float32, len(labels))
	assert.Equal(t, 2, Classification("/data/catdog.jpg", labels, row))
	assert.Equal(t, []float32{1, 1, 0}, row)

	row = make([]float32, len(labels))
	assert.Equal(t, 0, Classification("/data/fish.jpg", labels, row))
}

// testTree:
//
//	0: animal (root)    1: vehicle (root)
//	2: cat (animal)     3: dog (animal)
//	4: car (vehicle)    5: bike (vehicle)
//	6: siamese (cat)    7: persian (cat)
func testTree() *Tree {
	return NewTree([]int{-1, -1, 0, 0, 1, 1, 2, 2})
}

func TestNewTree(t *testing.T) {
	tree := testTree()
	assert.Equal(t, 8, tree.NumNodes())
	assert.Equal(t, []int{2, 2, 2, 2}, tree.GroupSize)
	assert.Equal(t, []int{0, 2, 4, 6}, tree.GroupOffset)
	assert.Equal(t, []int{0, 0, 1, 1, 2, 2, 3, 3}, tree.Group)
}

func TestLoadTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.txt")
	contents := "animal -1\nvehicle -1\ncat 0\ndog 0\ncar 1\nbike 1\nsiamese 2\npersian 2\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	tree, err := LoadTree(path)
	require.NoError(t, err)
	assert.Equal(t, testTree().Parent, tree.Parent)
	assert.Equal(t, testTree().GroupOffset, tree.GroupOffset)
	assert.Equal(t, "persian", tree.Names[7])

	require.NoError(t, os.WriteFile(path, []byte("a -1\nb 5\n"), 0o644))
	_, err = LoadTree(path)
	require.Error(t, err)
}

func TestHierarchy(t *testing.T) {
	tree := testTree()
	row := make([]float32, tree.NumNodes())
	row[6] = 1 // siamese
	Hierarchy(row, tree)
	assert.Equal(t, []Target{
		Positive, Negative, // animal, vehicle: roots form one group.
		Positive, Negative, // cat, dog
		Ignore, Ignore, // car, bike
		Positive, Negative, // siamese, persian
	}, Targets(row))

	// Property over random leaves: ancestors are positive, groups are either fully ignored or have no ignore.
	rng := rand.New(rand.NewPCG(1, 1))
	for range 50 {
		row := make([]float32, tree.NumNodes())
		for node := range row {
			if rng.IntN(4) == 0 {
				row[node] = 1
			}
		}
		positives := append([]float32(nil), row...)
		Hierarchy(row, tree)
		for node, v := range positives {
			if v == 0 {
				continue
			}
			for p := tree.Parent[node]; p >= 0; p = tree.Parent[p] {
				assert.Equal(t, float32(1), row[p])
			}
		}
		for g, size := range tree.GroupSize {
			group := row[tree.GroupOffset[g] : tree.GroupOffset[g]+size]
			ignored := 0
			for _, v := range group {
				if IsIgnore(v) {
					ignored++
				}
			}
			assert.True(t, ignored == 0 || ignored == size, "group %d mixes ignore and 0/1: %v", g, group)
		}
	}
}

func TestRegion(t *testing.T) {
	const classes, size = 3, 4
	row := make([]float32, RegionSize(classes, size))
	labels := []boxes.Label{
		boxes.NewLabel(2, 0.3, 0.6, 0.2, 0.2),   // Cell (col 1, row 2).
		boxes.NewLabel(0, 0.4, 0.7, 0.1, 0.1),   // Same cell: skipped.
		boxes.NewLabel(1, 0.9, 0.1, 0.0005, 0.2), // Too small.
		boxes.NewLabel(1, 1.0, 1.0, 0.2, 0.2),   // Bottom-right border: last cell.
	}
	stats := Region(labels, row, classes, size)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 2, stats.Skipped)

	cellSize := 5 + classes
	cell := row[(1+2*size)*cellSize : (2+2*size)*cellSize]
	assert.Equal(t, float32(1), cell[0])
	assert.Equal(t, []float32{0, 0, 1}, cell[1:4])
	assert.InDelta(t, 0.2, cell[4], 1e-5)
	assert.InDelta(t, 0.4, cell[5], 1e-5)
	assert.InDelta(t, 0.2, cell[6], 1e-5)

	last := row[(size*size-1)*cellSize:]
	assert.Equal(t, float32(1), last[0])
	assert.Equal(t, float32(1), last[2])

	// At most one object per cell, for random boxes.
	rng := rand.New(rand.NewPCG(2, 2))
	for range 20 {
		row := make([]float32, RegionSize(classes, size))
		var labels []boxes.Label
		for range 30 {
			labels = append(labels, boxes.NewLabel(rng.IntN(classes), rng.Float32(), rng.Float32(), 0.1, 0.1))
		}
		stats := Region(labels, row, classes, size)
		occupied := 0
		for c := range size * size {
			cell := row[c*cellSize : (c+1)*cellSize]
			if cell[0] == 0 {
				continue
			}
			occupied++
			classCount := 0
			for _, v := range cell[1 : 1+classes] {
				classCount += int(v)
			}
			assert.Equal(t, 1, classCount)
		}
		assert.Equal(t, stats.Written, occupied)
	}
}

func TestDetection(t *testing.T) {
	dir := t.TempDir()
	cfg := DetectionConfig{
		NumBoxes: 4, Classes: 3, NetWidth: 100, NetHeight: 100,
		LabelPath: "img1.txt", Log: badlog.New(dir),
	}
	placeholder := boxes.NewLabel(1, 0, 0, 0.2, 0.2)
	placeholder.Drop = boxes.DropPlaceholder
	labels := []boxes.Label{
		boxes.NewLabel(0, 0.5, 0.5, 0.2, 0.2),
		boxes.NewLabel(7, 0.5, 0.5, 0.2, 0.2),    // Class out of range.
		boxes.NewLabel(1, 0.5, 0.5, 0.005, 0.2),  // Smaller than one pixel.
		placeholder,
		boxes.NewLabel(2, 0.3, 0.3, 0.1, 0.1), // Beyond NumBoxes.
	}
	row := make([]float32, cfg.NumBoxes*DetectionSlotSize)
	stats := Detection(labels, row, cfg)
	assert.Equal(t, Stats{Written: 1, Skipped: 4, Malformed: 2}, stats)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.2, 0.2, 0}, row[:5], 1e-6)
	for _, v := range row[5:] {
		assert.Zero(t, v)
	}
	bad := string(must.M1(os.ReadFile(filepath.Join(dir, badlog.BadLabelFileName))))
	assert.Equal(t, 2, strings.Count(bad, "img1.txt "))
	assert.Contains(t, bad, "class_id = 7")

	// Clamping and nudging.
	clamped := boxes.Label{ID: 1, X: 0, Y: 0.5, W: 1.5, H: 0.5}
	row = make([]float32, cfg.NumBoxes*DetectionSlotSize)
	stats = Detection([]boxes.Label{clamped}, row, cfg)
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 1, stats.Clamped)
	assert.InDeltaSlice(t, []float32{0.01, 0.5, 1, 0.5, 1}, row[:5], 1e-6)

	// Center outside the image.
	row = make([]float32, cfg.NumBoxes*DetectionSlotSize)
	stats = Detection([]boxes.Label{{ID: 1, X: 1.2, Y: 0.5, W: 0.2, H: 0.2}}, row, cfg)
	assert.Equal(t, 0, stats.Written)
	assert.Equal(t, 1, stats.Malformed)
}

func TestSwag(t *testing.T) {
	const classes = 2
	row := make([]float32, SwagSize(classes))
	var labels []boxes.Label
	for i := range 35 {
		labels = append(labels, boxes.NewLabel(i%classes, 0.5, 0.5, 0.1, 0.1))
	}
	labels[0].Drop = boxes.DropOutOfFrame
	stats := Swag(labels, row, classes)
	assert.Equal(t, MaxSwagBoxes, stats.Written)
	assert.Equal(t, 5, stats.Skipped)
	// First slot holds the second label (class 1), since the first was dropped.
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.1, 0.1, 0, 1}, row[:6], 1e-6)
}

func TestBlend(t *testing.T) {
	const numBoxes = 3
	a := make([]float32, numBoxes*DetectionSlotSize)
	b := make([]float32, numBoxes*DetectionSlotSize)
	copy(a, []float32{0.2, 0.2, 0.1, 0.1, 3})
	copy(b, []float32{0.6, 0.6, 0.1, 0.1, 1})
	assert.Equal(t, 2, Blend(a, numBoxes, b))
	assert.Equal(t, []float32{0.2, 0.2, 0.1, 0.1, 3}, a[:5])
	assert.Equal(t, []float32{0.6, 0.6, 0.1, 0.1, 1}, a[5:10])
	assert.Equal(t, []float32{0, 0, 0, 0, 0}, a[10:])

	// Capacity limits the merge.
	full := []float32{0.1, 0.1, 0.1, 0.1, 0, 0.2, 0.2, 0.1, 0.1, 0}
	assert.Equal(t, 2, Blend(full, 2, b))
	assert.Equal(t, float32(0.2), full[5])
}

func TestTags(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "labels2.txt")
	require.NoError(t, os.WriteFile(fallback, []byte("1 3\n9\n"), 0o644))
	row := make([]float32, 5)
	assert.True(t, Tags(filepath.Join(dir, "missing.txt"), fallback, row))
	assert.Equal(t, []float32{0, 1, 0, 1, 0}, row)
	assert.False(t, Tags(filepath.Join(dir, "missing.txt"), filepath.Join(dir, "missing2.txt"), row))
}
