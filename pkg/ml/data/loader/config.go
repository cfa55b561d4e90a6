// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"github.com/BurntSushi/toml"
	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config is the TOML configuration of a loader: the Task and the Scheduler options.
//
// Example:
//
//	seed = 42
//	bad_log_dir = "~/work/logs"
//	max_parallelism = 8
//
//	[task]
//	kind = "detection"
//	manifest = "~/data/train.txt"
//	batch_size = 64
//	width = 416
//	height = 416
//	classes = 80
//	num_boxes = 90
//	threads = 8
//
//	[task.augment]
//	jitter = 0.3
//	flip = true
//	hue = 0.1
//	saturation = 1.5
//	exposure = 1.5
type Config struct {
	// Seed of the Scheduler. If 0 a random seed is used.
	Seed uint64 `toml:"seed"`

	// MaxParallelism of the Scheduler, if not nil.
	MaxParallelism *int `toml:"max_parallelism"`

	// BadLogDir is where bad.list and bad_label.list are written. If empty they are not written.
	BadLogDir string `toml:"bad_log_dir"`

	Task Task `toml:"task"`
}

// LoadConfig reads a TOML configuration file and resolves the files of its task (see Task.Resolve).
func LoadConfig(path string) (*Config, error) {
	path, err := fsutil.ReplaceTildeInDir(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse loader configuration %q", path)
	}
	for _, key := range meta.Undecoded() {
		klog.Warningf("loader configuration %q: unknown key %q", path, key.String())
	}
	for _, p := range []*string{&cfg.BadLogDir, &cfg.Task.Manifest, &cfg.Task.LabelsFile, &cfg.Task.HierarchyFile, &cfg.Task.DumpDir} {
		if *p == "" {
			continue
		}
		if *p, err = fsutil.ReplaceTildeInDir(*p); err != nil {
			return nil, err
		}
	}
	if err = cfg.Task.Resolve(); err != nil {
		return nil, errors.WithMessagef(err, "loader configuration %q", path)
	}
	return cfg, nil
}

// Options returns the Scheduler options of the configuration.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Seed != 0 {
		opts = append(opts, WithSeed(c.Seed))
	}
	if c.MaxParallelism != nil {
		opts = append(opts, WithMaxParallelism(*c.MaxParallelism))
	}
	if c.BadLogDir != "" {
		opts = append(opts, WithBadLog(badlog.New(c.BadLogDir)))
	}
	return opts
}
