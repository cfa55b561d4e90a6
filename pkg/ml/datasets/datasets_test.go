// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"bytes"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// sequential returns an owned dataset where row i has X = [i, i] and Y = [-i].
func sequential(n int) *Dataset {
	d := New(n, 2, 1)
	for i := range n {
		d.X.Vals[i][0], d.X.Vals[i][1] = float32(i), float32(i)
		d.Y.Vals[i][0] = -float32(i)
	}
	return d
}

func firstColumn(d *Dataset) []int {
	ids := make([]int, d.Len())
	for i, row := range d.X.Vals {
		ids[i] = int(row[0])
	}
	return ids
}

func TestConcat(t *testing.T) {
	d1, d2 := sequential(3), sequential(2)
	d1.Width, d1.Height = 4, 5
	c := Concat(d1, d2)
	assert.Equal(t, []int{0, 1, 2, 0, 1}, firstColumn(c))
	assert.Equal(t, Borrowed, c.Ownership())
	assert.Equal(t, 4, c.Width)
	assert.Equal(t, 2, c.X.Cols)
	assert.Equal(t, 1, c.Y.Cols)

	// Rows are shared, not copied.
	c.X.Vals[3][1] = 100
	assert.Equal(t, float32(100), d2.X.Vals[0][1])

	all := ConcatAll(sequential(1), sequential(2), sequential(3))
	assert.Equal(t, []int{0, 0, 1, 0, 1, 2}, firstColumn(all))

	require.Panics(t, func() { Concat(d1, New(1, 3, 1)) })
}

func TestPartAndSplit(t *testing.T) {
	d := sequential(10)
	total := 3
	var sizes []int
	var seen []int
	for part := range total {
		p := Part(d, part, total)
		sizes = append(sizes, p.Len())
		seen = append(seen, firstColumn(p)...)
	}
	assert.Equal(t, []int{3, 3, 4}, sizes)
	assert.Equal(t, firstColumn(d), seen)

	train, test := Split(d, 1, total)
	assert.Equal(t, []int{3, 4, 5}, firstColumn(test))
	assert.Equal(t, []int{0, 1, 2, 6, 7, 8, 9}, firstColumn(train))

	// Appending to a part must not overwrite the next rows of the original.
	p := Part(d, 0, 2)
	_ = append(p.X.Vals, []float32{-1, -1})
	assert.Equal(t, float32(5), d.X.Vals[5][0])

	// Shuffling a view must not reorder the rows of the original.
	rng := rand.New(rand.NewPCG(3, 4))
	for range 10 {
		Shuffle(Part(d, 0, 2), rng)
		_, test = Split(d, 0, 2)
		Shuffle(test, rng)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, firstColumn(d))

	require.Panics(t, func() { Part(d, 3, 3) })
}

func TestSplitPartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		n := rng.IntN(40)
		total := 1 + rng.IntN(8)
		part := rng.IntN(total)
		d := sequential(n)
		train, test := Split(d, part, total)
		require.Equal(t, n, train.Len()+test.Len())
		counts := make(map[int]int)
		for _, id := range append(firstColumn(train), firstColumn(test)...) {
			counts[id]++
		}
		for i := range n {
			require.Equal(t, 1, counts[i], "row %d in n=%d, part=%d/%d", i, n, part, total)
		}
	}
}

func TestRandomSubsetAndShuffle(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	d := sequential(5)
	sub := RandomSubset(d, 20, rng)
	assert.Equal(t, 20, sub.Len())
	for _, row := range sub.X.Vals {
		assert.True(t, row[0] >= 0 && row[0] < 5)
		assert.Equal(t, row[0], row[1])
	}

	Shuffle(d, rng)
	ids := firstColumn(d)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, ids)
	for i, row := range d.Y.Vals {
		assert.Equal(t, -float32(ids[i]), row[0], "X and Y rows must move together")
	}
}

func TestBatches(t *testing.T) {
	d := sequential(6)
	x := make([]float32, 3*2)
	y := make([]float32, 3)
	NextBatch(d, 3, 2, x, y)
	assert.Equal(t, []float32{2, 2, 3, 3, 4, 4}, x)
	assert.Equal(t, []float32{-2, -3, -4}, y)
	require.Panics(t, func() { NextBatch(d, 3, 4, x, y) })

	rng := rand.New(rand.NewPCG(5, 6))
	RandomBatch(d, 3, rng, x, y)
	for j := range 3 {
		assert.Equal(t, x[2*j], -y[j])
	}
	require.Panics(t, func() { RandomBatch(d, 4, rng, x, y) })
}

func TestFreeAndMerge(t *testing.T) {
	d1, d2 := sequential(2), sequential(3)
	view := Concat(d1, d2)
	require.NoError(t, view.Free())
	assert.Equal(t, 0, view.Len())
	assert.Equal(t, float32(1), d1.X.Vals[1][0], "freeing a view must not touch the owner")
	assert.ErrorIs(t, view.Free(), ErrFreed)

	merged, err := Merge(d1, d2)
	require.NoError(t, err)
	assert.Equal(t, Owned, merged.Ownership())
	assert.Equal(t, Borrowed, d1.Ownership())
	require.NoError(t, d1.Free())
	require.NoError(t, d2.Free())
	assert.Equal(t, []int{0, 1, 0, 1, 2}, firstColumn(merged))

	_, err = Merge(d1)
	require.Error(t, err)
	_, err = Merge(merged, Part(merged, 0, 2))
	require.Error(t, err)

	clone := merged.Clone()
	require.NoError(t, merged.Free())
	assert.Equal(t, []int{0, 1, 0, 1, 2}, firstColumn(clone))
	assert.Equal(t, Owned, clone.Ownership())
}

func TestRowTransforms(t *testing.T) {
	m := Matrix{Rows: 2, Cols: 4, Vals: [][]float32{{1, 2, 3, 4}, {5, 5, 5, 5}}}
	ScaleRows(m, 2)
	assert.Equal(t, []float32{2, 4, 6, 8}, m.Vals[0])
	TranslateRows(m, -1)
	assert.Equal(t, []float32{1, 3, 5, 7}, m.Vals[0])
	assert.Equal(t, []float32{9, 9, 9, 9}, m.Vals[1])

	NormalizeRows(m)
	var sum, sumSq float64
	for _, v := range m.Vals[0] {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 0, sum/4, 1e-5)
	assert.InDelta(t, 1, math.Sqrt(sumSq/4), 1e-5)
	assert.Equal(t, []float32{0, 0, 0, 0}, m.Vals[1])

	y := Matrix{Rows: 1, Cols: 4, Vals: [][]float32{{0, 1, 0, 0}}}
	Smooth(y, 0.1)
	assert.InDeltaSlice(t, []float32{0.025, 0.925, 0.025, 0.025}, y.Vals[0], 1e-6)

	half := Matrix{Rows: 1, Cols: 2, Vals: [][]float32{{0.5, -2}}}.Float16()
	assert.Equal(t, []float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}, half)
	flat := Matrix{Rows: 2, Cols: 2, Vals: [][]float32{{1, 3}, {5, 7}}}.Flat()
	assert.Equal(t, []float32{1, 3, 5, 7}, flat)
}

func TestReadCategoricalCSV(t *testing.T) {
	csv := "1.5,2,0\n3,4.5,2\n"
	d := must.M1(ReadCategoricalCSV(strings.NewReader(csv), -1, 3))
	require.Equal(t, 2, d.Len())
	assert.Equal(t, []float32{1.5, 2}, d.X.Vals[0])
	assert.Equal(t, []float32{3, 4.5}, d.X.Vals[1])
	assert.Equal(t, []float32{1, 0, 0}, d.Y.Vals[0])
	assert.Equal(t, []float32{0, 0, 1}, d.Y.Vals[1])

	// Target in the middle.
	d = must.M1(ReadCategoricalCSV(strings.NewReader("7,1,8\n9,0,10\n"), 1, 2))
	assert.Equal(t, []float32{7, 8}, d.X.Vals[0])
	assert.Equal(t, []float32{0, 1}, d.Y.Vals[0])

	_, err := ReadCategoricalCSV(strings.NewReader(csv), 2, 2)
	require.Error(t, err, "class 2 is out of range for k=2")
	_, err = ReadCategoricalCSV(strings.NewReader(csv), 5, 3)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	d = must.M1(LoadCategoricalCSV(path, 2, 3))
	assert.Equal(t, 2, d.Len())
	_, err = LoadCategoricalCSV(path+".missing", 2, 3)
	require.Error(t, err)
}

func cifarRecords(labels ...byte) []byte {
	var buf bytes.Buffer
	for _, label := range labels {
		buf.WriteByte(label)
		pixels := bytes.Repeat([]byte{255}, CIFARImageBytes)
		pixels[0] = label
		buf.Write(pixels)
	}
	return buf.Bytes()
}

func TestCIFAR10(t *testing.T) {
	d := must.M1(ReadCIFAR10(bytes.NewReader(cifarRecords(3, 7))))
	require.Equal(t, 2, d.Len())
	assert.Equal(t, float32(1), d.Y.Vals[0][3])
	assert.Equal(t, float32(1), d.Y.Vals[1][7])
	assert.Equal(t, float32(7), d.X.Vals[1][0])
	assert.Equal(t, 32, d.Width)

	_, err := ReadCIFAR10(bytes.NewReader(cifarRecords(3)[:100]))
	require.Error(t, err, "truncated record")
	_, err = ReadCIFAR10(bytes.NewReader(cifarRecords(10)))
	require.Error(t, err, "label out of range")

	dir := t.TempDir()
	for i := 1; i <= CIFARNumBatches; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("data_batch_%d.bin", i)),
			cifarRecords(byte(i)), 0o644))
	}
	all := must.M1(LoadCIFAR10Dir(dir))
	require.Equal(t, CIFARNumBatches, all.Len())
	assert.Equal(t, Owned, all.Ownership())
	assert.InDelta(t, 1.0, all.X.Vals[0][1], 1e-6)
	assert.InDelta(t, 0.91, all.Y.Vals[0][1], 1e-6)
	assert.InDelta(t, 0.01, all.Y.Vals[0][0], 1e-6)

	_, err = LoadCIFAR10Dir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}
