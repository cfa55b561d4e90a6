// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package truth

import (
	"bufio"
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

// Tags sets row[tag] = 1 for every integer tag listed (white-space separated) in the file at labelPath,
// falling back to fallbackPath if it can't be opened. Tags outside [0, len(row)) are ignored.
//
// It returns false if neither file could be opened, in which case the row is left untouched.
func Tags(labelPath, fallbackPath string, row []float32) bool {
	f, err := os.Open(labelPath)
	if err != nil && fallbackPath != "" {
		f, err = os.Open(fallbackPath)
	}
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		tag, err := strconv.Atoi(scanner.Text())
		if err != nil {
			klog.Warningf("truth: invalid tag %q in %q", scanner.Text(), f.Name())
			break
		}
		if tag >= 0 && tag < len(row) {
			row[tag] = 1
		}
	}
	return true
}
