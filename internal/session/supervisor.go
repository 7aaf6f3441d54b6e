// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Supervisor keeps a session attached to the device. When the link is lost
// or cannot be opened it waits Delay and tries again, until ctx ends.
type Supervisor struct {
	// Open returns a fresh byte source.
	Open func(ctx context.Context) (io.ReadCloser, error)
	// Build wraps a source in a session, registering any observers.
	Build func(src io.ReadCloser) *Session
	Delay time.Duration
	Log   *logrus.Entry

	current  atomic.Pointer[Session]
	attempts atomic.Uint64
}

// Current returns the live session, or nil between attempts.
func (sv *Supervisor) Current() *Session {
	return sv.current.Load()
}

// Attempts counts how many times a source has been opened successfully.
func (sv *Supervisor) Attempts() uint64 {
	return sv.attempts.Load()
}

// Run returns nil when ctx is cancelled. A session ending without a link
// failure (for example a direct Close) also ends Run.
func (sv *Supervisor) Run(ctx context.Context) error {
	for {
		src, err := sv.Open(ctx)
		if err != nil {
			sv.Log.Warnf("supervisor: open byte source: %v", err)
		} else {
			sv.attempts.Add(1)
			s := sv.Build(src)
			sv.current.Store(s)
			err = s.Run(ctx)
			sv.current.Store(nil)

			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, ErrLinkLost) {
				return err
			}
			sv.Log.Warnf("supervisor: %v, reattaching in %s", err, sv.Delay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sv.Delay):
		}
	}
}
