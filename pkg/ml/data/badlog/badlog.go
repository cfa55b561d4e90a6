// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package badlog records unreadable label files and malformed annotations to append-only text files, for
// offline inspection of a dataset.
//
// Two files are kept in the log directory:
//
//   - bad.list: one path per line, for label files that could not be opened.
//   - bad_label.list: one line per malformed annotation, "<label path> <message>".
//
// A Log is safe for concurrent use. A nil *Log is valid and discards everything, which is convenient for tests
// and for callers that don't want the files.
package badlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// MissingFileName is the name of the file listing label files that could not be opened.
	MissingFileName = "bad.list"

	// BadLabelFileName is the name of the file listing malformed annotations.
	BadLabelFileName = "bad_label.list"
)

// Log of bad files. Create it with New.
type Log struct {
	dir string
	mu  sync.Mutex
}

// New returns a Log that appends to files in dir. If dir is empty the current directory is used.
// The directory is created on first write if it doesn't exist.
func New(dir string) *Log {
	return &Log{dir: dir}
}

// Dir where the log files are written.
func (l *Log) Dir() string {
	if l == nil {
		return ""
	}
	return l.dir
}

// MissingFile records path as a label file that could not be opened.
func (l *Log) MissingFile(path string) {
	l.append(MissingFileName, path)
}

// BadLabel records a malformed annotation in the label file at path.
func (l *Log) BadLabel(path, format string, args ...any) {
	l.append(BadLabelFileName, path+" "+fmt.Sprintf(format, args...))
}

func (l *Log) append(name, line string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.lockedAppend(name, line); err != nil {
		klog.Warningf("badlog: %+v", err)
	}
}

func (l *Log) lockedAppend(name, line string) error {
	if l.dir != "" {
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %q", l.dir)
		}
	}
	path := filepath.Join(l.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q for append", path)
	}
	if _, err = fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to append to %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %q", path)
}
