// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/gomlx/imgpipe/pkg/core/images"
	"github.com/gomlx/imgpipe/pkg/ml/data/truth"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// boxColor used to draw the truth boxes on dumped samples.
var boxColor = color.NRGBA{R: 150, G: 100, B: 50, A: 255}

// DumpDetection saves a detection row (x, y) as a PNG image in e.DumpDir, with its truth boxes drawn, named
// "aug_<uuid>.png". It returns the path of the saved file, or "" if DumpDir is not set.
func (e *Engine) DumpDetection(x, y []float32) (string, error) {
	if e.DumpDir == "" {
		return "", nil
	}
	img := &images.Image{Width: e.Width, Height: e.Height, Channels: e.channels(), Data: x}
	canvas := img.ToNRGBA()
	for slot := range e.NumBoxes {
		s := y[slot*truth.DetectionSlotSize : (slot+1)*truth.DetectionSlotSize]
		if s[0] == 0 {
			break
		}
		bx, by, bw, bh := s[0], s[1], s[2], s[3]
		rect := image.Rect(
			int((bx-bw/2)*float32(e.Width)), int((by-bh/2)*float32(e.Height)),
			int((bx+bw/2)*float32(e.Width)), int((by+bh/2)*float32(e.Height)))
		images.DrawBox(canvas, rect, boxColor, 1)
	}
	if err := os.MkdirAll(e.DumpDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create dump directory %q", e.DumpDir)
	}
	path := filepath.Join(e.DumpDir, "aug_"+uuid.NewString()+".png")
	if err := images.Save(canvas, path); err != nil {
		return "", err
	}
	klog.V(2).Infof("augment: saved %s", path)
	return path, nil
}
