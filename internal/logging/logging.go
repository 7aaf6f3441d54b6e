// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging configures the process logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultTimestampFormat = "2006/01/02 15:04:05.000000"

// New builds a logger at the given level writing to stdout and, when dir is
// set, also to dir/cube_tracker.log. An unknown level falls back to info.
// The returned closer releases the log file; call it once logging is done.
func New(level, dir string) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&LineFormatter{TimestampFormat: defaultTimestampFormat})

	if dir == "" {
		l.SetOutput(os.Stdout)
		return l, nopCloser{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, "cube_tracker.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	l.SetOutput(io.MultiWriter(os.Stdout, f))
	return l, &fileCloser{l: l, f: f}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fileCloser points the logger back at stdout before closing the file, so
// late log calls do not hit a closed descriptor.
type fileCloser struct {
	l *logrus.Logger
	f *os.File
}

func (c *fileCloser) Close() error {
	c.l.SetOutput(os.Stdout)
	return c.f.Close()
}

// Discard returns an entry that drops everything. Handy in tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// LineFormatter writes one line per entry, close to the standard log package:
//
//	2026/01/02 17:30:00.000000 [INF] session: tracking started component=session
type LineFormatter struct {
	TimestampFormat string
}

func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	format := f.TimestampFormat
	if format == "" {
		format = defaultTimestampFormat
	}
	b.WriteString(entry.Time.Format(format))

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 3 {
		level = level[:3]
	}
	fmt.Fprintf(b, " [%s] %s", level, entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
