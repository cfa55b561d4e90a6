// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package truth

import (
	"strings"

	"k8s.io/klog/v2"
)

// Classification sets row[i] = 1 for every class name labels[i] that is a substring of the image path, and
// returns the number of matches.
//
// A count other than 1 means the path is ambiguous or unlabeled: it is logged, but the row is used as is.
func Classification(path string, labels []string, row []float32) int {
	count := 0
	for i, label := range labels {
		if strings.Contains(path, label) {
			row[i] = 1
			count++
		}
	}
	if count != 1 {
		klog.Warningf("truth: image %q matched %d class labels (want exactly 1)", path, count)
	}
	return count
}
