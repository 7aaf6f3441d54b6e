// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFormatter(t *testing.T) {
	f := &LineFormatter{}
	e := &logrus.Entry{
		Time:    time.Date(2026, 1, 2, 17, 30, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "session: sink unavailable",
		Data:    logrus.Fields{"session": "abc", "component": "session"},
	}

	out, err := f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "2026/01/02 17:30:00.000000 [WAR] session: sink unavailable component=session session=abc\n", string(out))
}

func TestNewLevelsAndFile(t *testing.T) {
	dir := t.TempDir()
	l, closer, err := New("debug", dir)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.Info("hello")
	require.NoError(t, closer.Close())
	l.Info("after close")

	b, err := os.ReadFile(filepath.Join(dir, "cube_tracker.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "[INF] hello")
	assert.NotContains(t, string(b), "after close")

	l, closer, err = New("loud", "")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.NoError(t, closer.Close())
}
