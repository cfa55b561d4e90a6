// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// imgpipe produces training batches from a loader configuration and reports what was skipped or fixed
// along the way. It is used to check a dataset (manifest, label files) and to measure the throughput of
// the augmentations before a training run.
//
// Usage:
//
//	imgpipe -config loader.toml -batches 100
//	imgpipe -kind detection -manifest train.txt -width 416 -height 416 -classes 80 -boxes 90 -batch 64
//	imgpipe -cifar ~/data/cifar-10-batches-bin
//	imgpipe -csv iris.csv -target -1 -k 3
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/imgpipe/pkg/ml/data/badlog"
	"github.com/gomlx/imgpipe/pkg/ml/data/loader"
	"github.com/gomlx/imgpipe/pkg/ml/datasets"
	"github.com/gomlx/imgpipe/pkg/support/fsutil"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagConfig  = flag.String("config", "", "TOML loader configuration. If set, the task flags below are ignored.")
	flagBatches = flag.Int("batches", 10, "Number of batches to produce.")

	flagKind     = flag.String("kind", "detection", "Task kind: classification, classification_augmented, region, detection, super, swag, tag or writing.")
	flagManifest = flag.String("manifest", "", "File with the paths of the images, one per line.")
	flagLabels   = flag.String("labels", "", "File with the class names, for classification tasks.")
	flagBatch    = flag.Int("batch", 64, "Number of rows per batch.")
	flagWidth    = flag.Int("width", 416, "Network input width.")
	flagHeight   = flag.Int("height", 416, "Network input height.")
	flagClasses  = flag.Int("classes", 80, "Number of classes.")
	flagBoxes    = flag.Int("boxes", 90, "Number of truth slots for detection, or grid size for region tasks.")
	flagThreads  = flag.Int("threads", 8, "Number of shards per batch.")
	flagJitter   = flag.Float64("jitter", 0.3, "Crop jitter.")
	flagFlip     = flag.Bool("flip", true, "Random horizontal flips.")
	flagMixup    = flag.Bool("mixup", false, "Mixup detection samples.")
	flagSeed     = flag.Uint64("seed", 0, "Master seed. 0 for a random seed.")
	flagBadLog   = flag.String("bad_log", "", "Directory where bad.list and bad_label.list are written.")
	flagDump     = flag.String("dump", "", "Directory where augmented detection samples are saved.")
	flagStrict   = flag.Bool("strict", false, "Fail on malformed annotations instead of skipping them.")

	flagCIFAR  = flag.String("cifar", "", "Directory with the CIFAR-10 binary batches: if set, loads them and prints a summary.")
	flagCSV    = flag.String("csv", "", "Categorical CSV file: if set, loads it and prints a summary.")
	flagTarget = flag.Int("target", -1, "Target column of -csv. Negative values count from the end.")
	flagK      = flag.Int("k", 2, "Number of classes of the target column of -csv.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch {
	case *flagCIFAR != "":
		summarize("CIFAR-10", must.M1(datasets.LoadCIFAR10Dir(*flagCIFAR)))
	case *flagCSV != "":
		summarize(*flagCSV, must.M1(datasets.LoadCategoricalCSV(*flagCSV, *flagTarget, *flagK)))
	default:
		cfg, err := configFromFlags()
		if err != nil {
			klog.Exitf("Invalid configuration: %+v", err)
		}
		if err = run(ctx, cfg, *flagBatches); err != nil {
			klog.Exitf("Failed: %+v", err)
		}
	}
}

func configFromFlags() (*loader.Config, error) {
	if *flagConfig != "" {
		return loader.LoadConfig(*flagConfig)
	}
	if *flagManifest == "" {
		return nil, errors.New("either -config or -manifest must be given, see 'imgpipe -help'")
	}
	kind, err := loader.ParseKind(*flagKind)
	if err != nil {
		return nil, err
	}
	cfg := &loader.Config{Seed: *flagSeed, BadLogDir: *flagBadLog}
	cfg.Task = loader.Task{
		Kind:          kind,
		Manifest:      *flagManifest,
		LabelsFile:    *flagLabels,
		N:             *flagBatch,
		Width:         *flagWidth,
		Height:        *flagHeight,
		Classes:       *flagClasses,
		NumBoxes:      *flagBoxes,
		Threads:       *flagThreads,
		CheckMistakes: *flagStrict,
		DumpDir:       *flagDump,
	}
	cfg.Task.Augment.Jitter = *flagJitter
	cfg.Task.Augment.Flip = *flagFlip
	cfg.Task.Augment.Mixup = *flagMixup
	for _, p := range []*string{&cfg.Task.Manifest, &cfg.Task.LabelsFile} {
		if *p == "" {
			continue
		}
		if *p, err = fsutil.ReplaceTildeInDir(*p); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Task.Resolve()
}

// totals accumulates the reports of all batches.
type totals struct {
	batches int
	loader.Report
}

// run produces numBatches batches: the producer keeps one batch being loaded in the background while the
// consumer (here only accounting) handles the previous one.
func run(ctx context.Context, cfg *loader.Config, numBatches int) error {
	if err := cfg.Task.Validate(); err != nil {
		return err
	}
	s := loader.New(cfg.Options()...)
	klog.Infof("Producing %d batches of %d %s rows from %s paths (seed %d)", numBatches, cfg.Task.N, cfg.Task.Kind,
		humanize.Comma(int64(len(cfg.Task.Paths))), s.Seed())

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan *loader.Handle, 1)
	g.Go(func() error {
		defer close(batches)
		for range numBatches {
			select {
			case batches <- s.LoadAsync(ctx, &cfg.Task):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var sum totals
	bar := progressbar.Default(int64(numBatches), "Producing batches")
	start := time.Now()
	g.Go(func() error {
		for h := range batches {
			data, report, err := h.Wait()
			if err != nil {
				return err
			}
			sum.add(report)
			if err := data.Free(); err != nil {
				return err
			}
			_ = bar.Add(1)
		}
		return nil
	})
	err := g.Wait()
	_ = bar.Finish()
	if err != nil {
		return err
	}
	sum.Elapsed = time.Since(start)
	fmt.Println(sum.table().Render())
	if cfg.BadLogDir != "" && sum.MissingLabels+sum.Malformed > 0 {
		fmt.Printf("See %s and %s in %s\n", badlog.MissingFileName, badlog.BadLabelFileName, cfg.BadLogDir)
	}
	return nil
}

func (t *totals) add(r *loader.Report) {
	t.batches++
	t.Kind = r.Kind
	t.Requested += r.Requested
	t.Produced += r.Produced
	t.SkippedSamples += r.SkippedSamples
	t.MissingLabels += r.MissingLabels
	t.SkippedBoxes += r.SkippedBoxes
	t.ClampedBoxes += r.ClampedBoxes
	t.Malformed += r.Malformed
	t.Mixup += r.Mixup
	t.Shards = append(t.Shards, r.Shards...)
}

func (t *totals) table() *lgtable.Table {
	table := newPlainTable()
	comma := func(v int) string { return humanize.Comma(int64(v)) }
	table.Row("kind", t.Kind.String())
	table.Row("batches", comma(t.batches))
	table.Row("rows produced", fmt.Sprintf("%s / %s", comma(t.Produced), comma(t.Requested)))
	table.Row("skipped samples", comma(t.SkippedSamples))
	table.Row("partial shards", fmt.Sprintf("%s / %s", comma(t.PartialShards()), comma(len(t.Shards))))
	table.Row("missing label files", comma(t.MissingLabels))
	table.Row("skipped boxes", comma(t.SkippedBoxes))
	table.Row("clamped boxes", comma(t.ClampedBoxes))
	table.Row("malformed annotations", comma(t.Malformed))
	table.Row("mixup shards", comma(t.Mixup))
	table.Row("elapsed", t.Elapsed.Round(time.Millisecond).String())
	if seconds := t.Elapsed.Seconds(); seconds > 0 {
		table.Row("rows/s", humanize.CommafWithDigits(float64(t.Produced)/seconds, 1))
	}
	return table
}

func summarize(name string, d *datasets.Dataset) {
	table := newPlainTable()
	table.Row("dataset", name)
	table.Row("rows", humanize.Comma(int64(d.Len())))
	table.Row("X columns", humanize.Comma(int64(d.X.Cols)))
	table.Row("Y columns", humanize.Comma(int64(d.Y.Cols)))
	if d.Width > 0 {
		table.Row("image size", fmt.Sprintf("%dx%d", d.Width, d.Height))
	}
	table.Row("memory", humanize.Bytes(uint64(4*d.Len()*(d.X.Cols+d.Y.Cols))))
	fmt.Println(table.Render())
	must.M(d.Free())
}

var (
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}
