// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package camera

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable means there is currently no view to move. It is expected
// while nobody is watching and is retried on the next frame.
var ErrUnavailable = errors.New("camera: no active view")

// Sink applies a pose to a view.
type Sink interface {
	Apply(ctx context.Context, p Pose) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Pose) error

func (f SinkFunc) Apply(ctx context.Context, p Pose) error { return f(ctx, p) }

// MultiSink fans a pose out to several sinks. It reports ErrUnavailable only
// when no sink accepted the pose and none failed for another reason.
type MultiSink []Sink

func (m MultiSink) Apply(ctx context.Context, p Pose) error {
	if len(m) == 0 {
		return ErrUnavailable
	}

	var errs []error
	unavailable := 0
	for i, s := range m {
		err := s.Apply(ctx, p)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnavailable):
			unavailable++
		default:
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if unavailable == len(m) {
		return ErrUnavailable
	}
	return nil
}
