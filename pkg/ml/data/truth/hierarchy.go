// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package truth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/imgpipe/pkg/support/fsutil"
	"github.com/pkg/errors"
)

// IgnoreValue marks a truth value to be excluded from the loss: "we don't know" rather than negative.
// Use IsIgnore or Targets to test for it, never compare with the number directly.
const IgnoreValue float32 = -1234

// IsIgnore returns whether v is the ignore marker.
func IsIgnore(v float32) bool { return v == IgnoreValue }

// Target is the typed view of a classification truth value.
type Target uint8

const (
	Negative Target = iota
	Positive
	Ignore
)

// String implements fmt.Stringer.
func (t Target) String() string {
	switch t {
	case Negative:
		return "Negative"
	case Positive:
		return "Positive"
	case Ignore:
		return "Ignore"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Targets returns the typed view of a classification truth row.
func Targets(row []float32) []Target {
	targets := make([]Target, len(row))
	for i, v := range row {
		switch {
		case IsIgnore(v):
			targets[i] = Ignore
		case v != 0:
			targets[i] = Positive
		}
	}
	return targets
}

// Tree is a label taxonomy: a forest where each node is a class.
//
// Nodes are grouped into sibling groups of contiguous indices: group g holds the nodes
// [GroupOffset[g], GroupOffset[g]+GroupSize[g]).
type Tree struct {
	// Parent of each node, -1 for roots.
	Parent []int

	// Group of each node.
	Group []int

	GroupSize, GroupOffset []int

	// Names of the nodes, optional.
	Names []string
}

// NewTree builds a Tree from the parent of each node: consecutive nodes with the same parent form a group.
func NewTree(parents []int) *Tree {
	t := &Tree{Parent: parents, Group: make([]int, len(parents))}
	for i, parent := range parents {
		if i == 0 || parent != parents[i-1] {
			t.GroupOffset = append(t.GroupOffset, i)
			t.GroupSize = append(t.GroupSize, 0)
		}
		g := len(t.GroupSize) - 1
		t.GroupSize[g]++
		t.Group[i] = g
	}
	return t
}

// NumNodes in the tree.
func (t *Tree) NumNodes() int { return len(t.Parent) }

// NumGroups in the tree.
func (t *Tree) NumGroups() int { return len(t.GroupSize) }

// LoadTree reads a tree file: one node per line, "name parent_index", with parent -1 (or missing) for roots.
// Parents must come before their children.
func LoadTree(path string) (*Tree, error) {
	lines, err := fsutil.ReadLines(path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load hierarchy tree")
	}
	var names []string
	var parents []int
	for lineNum, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		parent := -1
		if len(fields) > 1 {
			parent, err = strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Errorf("hierarchy tree %q, line %d: invalid parent %q", path, lineNum+1, fields[1])
			}
		}
		if parent >= len(parents) {
			return nil, errors.Errorf("hierarchy tree %q, line %d: parent %d of %q is not defined before it",
				path, lineNum+1, parent, fields[0])
		}
		names = append(names, fields[0])
		parents = append(parents, parent)
	}
	t := NewTree(parents)
	t.Names = names
	return t, nil
}

// Hierarchy completes a classification truth row, whose first tree.NumNodes() values hold the one-hot leaf
// labels:
//
//  1. Every ancestor of a positive node is set positive.
//  2. Every group without any positive node is set to IgnoreValue entirely.
func Hierarchy(row []float32, tree *Tree) {
	for node := range tree.NumNodes() {
		if row[node] == 0 || IsIgnore(row[node]) {
			continue
		}
		for parent := tree.Parent[node]; parent >= 0; parent = tree.Parent[parent] {
			row[parent] = 1
		}
	}
	for g, size := range tree.GroupSize {
		group := row[tree.GroupOffset[g] : tree.GroupOffset[g]+size]
		hasPositive := false
		for _, v := range group {
			if v != 0 && !IsIgnore(v) {
				hasPositive = true
				break
			}
		}
		if !hasPositive {
			for i := range group {
				group[i] = IgnoreValue
			}
		}
	}
}
